package validx_test

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/adrisa007/guardiao/pkg/validx"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	phone := regexp.MustCompile(`^(\(\d{2}\)\s?)?9\d{4}-\d{4}$`)

	tests := []struct {
		name   string
		fields []validx.Field
		want   validx.Errors
	}{
		{
			name: "all valid",
			fields: []validx.Field{
				validx.Req("nome", "Maria Silva", validx.Len(3, 150)),
				validx.Req("email", "maria@email.com.br", validx.Email()),
				validx.Req("cpf", "12345678909", validx.Digits(11)),
				validx.Str("telefone", "(11) 98765-4321", validx.Pattern(phone)),
			},
		},
		{
			name:   "required missing",
			fields: []validx.Field{validx.Req("nome", "   ", validx.Len(3, 150))},
			want:   validx.Errors{"nome é obrigatório"},
		},
		{
			name:   "optional empty skips rules",
			fields: []validx.Field{validx.Str("descricao", "", validx.Len(10, 1000))},
		},
		{
			name: "collects every violation",
			fields: []validx.Field{
				validx.Req("nome", "Al", validx.Len(3, 150)),
				validx.Req("cpf", "123", validx.Digits(11)),
				validx.Str("telefone", "1234", validx.Pattern(phone).Msg("Telefone inválido. Use formato (11) 98765-4321")),
			},
			want: validx.Errors{
				"nome deve ter entre 3 e 150 caracteres",
				"cpf deve conter exatamente 11 dígitos numéricos",
				"Telefone inválido. Use formato (11) 98765-4321",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validx.Check(tt.fields...)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			var errs validx.Errors
			require.True(t, errors.As(err, &errs))
			require.Equal(t, tt.want, errs)
		})
	}
}

func TestRules(t *testing.T) {
	tests := []struct {
		name string
		rule validx.Rule
		good []string
		bad  []string
	}{
		{"email", validx.Email(), []string{"a@b.com", "dpo@empresa.com.br"}, []string{"a", "a@b", "Name <a@b.com>", "a@@b.com"}},
		{"uuid", validx.UUID(), []string{"9f0d2f8e-1c1b-4a53-9a53-2b1f4e9b7c11"}, []string{"9f0d2f8e1c1b4a539a532b1f4e9b7c11", "x"}},
		{"ulid", validx.ULID(), []string{"01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV"}, []string{"01HQ7T3Z", "../etc"}},
		{"oneof", validx.OneOf("JSON", "CSV", "XML"), []string{"CSV"}, []string{"csv", "PDF"}},
		{"password", validx.StrongPassword(), []string{"Senha@2025!", "Abcdef1$"}, []string{"senha@2025!", "SENHA@2025!", "Senha2025", "Sen@1", "Aa1@" + strings.Repeat("x", 69)}},
		{"maxlen runes", validx.MaxLen(3), []string{"ção"}, []string{"ações"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, v := range tt.good {
				require.NoError(t, validx.Check(validx.Req("f", v, tt.rule)), v)
			}
			for _, v := range tt.bad {
				require.Error(t, validx.Check(validx.Req("f", v, tt.rule)), v)
			}
		})
	}
}

func TestJoin(t *testing.T) {
	require.NoError(t, validx.Join(nil, nil))

	err := validx.Join(
		validx.Check(validx.Req("a", "")),
		errors.New("formato é obrigatório para PORTABILIDADE"),
	)
	var errs validx.Errors
	require.True(t, errors.As(err, &errs))
	require.Equal(t, validx.Errors{"a é obrigatório", "formato é obrigatório para PORTABILIDADE"}, errs)
}

func TestOnlyDigits(t *testing.T) {
	require.Equal(t, "12345678909", validx.OnlyDigits("123.456.789-09"))
	require.Equal(t, "", validx.OnlyDigits("abc"))
}
