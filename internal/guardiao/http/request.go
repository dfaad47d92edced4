package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/adrisa007/guardiao/pkg/httpx"
)

// decodeOptionalJSON is DecodeJSON for endpoints whose body may be absent.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return nil
	}
	return httpx.DecodeJSON(w, r, dst)
}

// queryInt reads a non-negative integer query parameter; absent means 0.
func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, httpx.BadRequest("Parâmetro inválido", name+" deve ser um número inteiro positivo")
	}
	return n, nil
}

func pageParams(r *http.Request) (page, limit int, err error) {
	if page, err = queryInt(r, "page"); err != nil {
		return 0, 0, err
	}
	if limit, err = queryInt(r, "limit"); err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}

// queryDate accepts an RFC 3339 timestamp or a plain YYYY-MM-DD date.
func queryDate(r *http.Request, name string) (*time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, httpx.BadRequest("Parâmetro inválido", name+" deve ser uma data ISO 8601")
}
