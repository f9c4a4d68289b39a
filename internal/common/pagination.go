package common

import (
	"net/http"
)

// Page holds the limit/offset window for list endpoints.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ParsePagination extracts limit and offset parameters from query values,
// clamping the limit to maxLimit.
func ParsePagination(r *http.Request, defaultLimit, maxLimit int) Page {
	q := r.URL.Query()
	p := Page{Limit: AtoiDefault(q.Get("limit"), defaultLimit)}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if o := AtoiDefault(q.Get("offset"), 0); o > 0 {
		p.Offset = o
	}
	return p
}
