// Package validx validates request fields against a declarative table of
// constraints. Handlers describe each field once and get back every
// violation in a single error.
package validx

import (
	"fmt"
	"net/mail"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Errors is the list of human-readable violations for one request.
type Errors []string

func (e Errors) Error() string {
	return "validation failed: " + strings.Join(e, "; ")
}

// Rule is one constraint on a string value.
type Rule struct {
	ok  func(string) bool
	msg string
}

// Msg replaces the default violation message.
func (r Rule) Msg(msg string) Rule {
	r.msg = msg
	return r
}

// Field is a single row of the constraint table.
type Field struct {
	Name     string
	Value    string
	Required bool
	Rules    []Rule
}

// Str builds an optional field.
func Str(name, value string, rules ...Rule) Field {
	return Field{Name: name, Value: value, Rules: rules}
}

// Req builds a required field. Blank values fail with "<name> é obrigatório".
func Req(name, value string, rules ...Rule) Field {
	return Field{Name: name, Value: value, Required: true, Rules: rules}
}

// Check evaluates every field and returns Errors, or nil when all pass.
// Optional fields that are empty skip their rules. A required field that
// is blank reports only the missing value.
func Check(fields ...Field) error {
	var errs Errors
	for _, f := range fields {
		if strings.TrimSpace(f.Value) == "" {
			if f.Required {
				errs = append(errs, f.Name+" é obrigatório")
			}
			continue
		}
		for _, r := range f.Rules {
			if !r.ok(f.Value) {
				errs = append(errs, strings.ReplaceAll(r.msg, "{field}", f.Name))
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Join merges the results of several Check calls or ad-hoc errors.
func Join(errs ...error) error {
	var out Errors
	for _, err := range errs {
		switch e := err.(type) {
		case nil:
		case Errors:
			out = append(out, e...)
		default:
			out = append(out, e.Error())
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func MinLen(n int) Rule {
	return Rule{
		ok:  func(s string) bool { return utf8.RuneCountInString(s) >= n },
		msg: fmt.Sprintf("{field} deve ter no mínimo %d caracteres", n),
	}
}

func MaxLen(n int) Rule {
	return Rule{
		ok:  func(s string) bool { return utf8.RuneCountInString(s) <= n },
		msg: fmt.Sprintf("{field} deve ter no máximo %d caracteres", n),
	}
}

// Len bounds the rune length to [min, max].
func Len(min, max int) Rule {
	return Rule{
		ok: func(s string) bool {
			n := utf8.RuneCountInString(s)
			return n >= min && n <= max
		},
		msg: fmt.Sprintf("{field} deve ter entre %d e %d caracteres", min, max),
	}
}

func Pattern(re *regexp.Regexp) Rule {
	return Rule{ok: re.MatchString, msg: "{field} em formato inválido"}
}

func OneOf(values ...string) Rule {
	return Rule{
		ok:  func(s string) bool { return slices.Contains(values, s) },
		msg: "{field} deve ser um dos valores: " + strings.Join(values, ", "),
	}
}

func Email() Rule {
	return Rule{
		ok: func(s string) bool {
			addr, err := mail.ParseAddress(s)
			return err == nil && addr.Address == s && strings.Contains(s[strings.LastIndex(s, "@"):], ".")
		},
		msg: "E-mail inválido",
	}
}

func UUID() Rule {
	return Rule{
		ok: func(s string) bool {
			_, err := uuid.Parse(s)
			return err == nil && len(s) == 36
		},
		msg: "{field} deve ser um UUID",
	}
}

// ULID accepts entity identifiers.
func ULID() Rule {
	return Rule{
		ok: func(s string) bool {
			_, err := ulid.ParseStrict(s)
			return err == nil
		},
		msg: "{field} deve ser um identificador válido",
	}
}

// Digits requires exactly n ASCII digits.
func Digits(n int) Rule {
	return Rule{
		ok: func(s string) bool {
			if len(s) != n {
				return false
			}
			for _, c := range s {
				if c < '0' || c > '9' {
					return false
				}
			}
			return true
		},
		msg: fmt.Sprintf("{field} deve conter exatamente %d dígitos numéricos", n),
	}
}

// MaxPasswordBytes is the most bcrypt will hash; longer input is refused
// rather than silently truncated.
const MaxPasswordBytes = 72

// StrongPassword requires 8+ chars with upper, lower, digit and one of
// @$!%*?&, and at most MaxPasswordBytes bytes.
func StrongPassword() Rule {
	return Rule{
		ok:  isStrongPassword,
		msg: "A senha deve ter entre 8 caracteres e 72 bytes, com maiúscula, minúscula, número e caractere especial (@$!%*?&)",
	}
}

func isStrongPassword(s string) bool {
	if utf8.RuneCountInString(s) < 8 || len(s) > MaxPasswordBytes {
		return false
	}
	var upper, lower, digit, special bool
	for _, c := range s {
		switch {
		case c >= 'A' && c <= 'Z':
			upper = true
		case c >= 'a' && c <= 'z':
			lower = true
		case c >= '0' && c <= '9':
			digit = true
		case strings.ContainsRune("@$!%*?&", c):
			special = true
		}
	}
	return upper && lower && digit && special
}

// OnlyDigits strips everything but ASCII digits, e.g. "123.456.789-09".
func OnlyDigits(s string) string {
	var b strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	return b.String()
}
