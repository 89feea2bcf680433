package pagination

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params is a limit/offset window parsed from query parameters.
type Params struct {
	Limit  int
	Offset int
}

// FromContext reads limit/offset (or the FHIR-style _count/_offset) from
// the query string. Invalid or negative values fall back to defaults and
// the limit is capped at MaxLimit.
func FromContext(c echo.Context) Params {
	return Parse(c.QueryParams())
}

func Parse(q url.Values) Params {
	limit := firstInt(q, "limit", "_count")
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	offset := firstInt(q, "offset", "_offset")
	if offset < 0 {
		offset = 0
	}
	return Params{Limit: limit, Offset: offset}
}

func firstInt(q url.Values, keys ...string) int {
	for _, k := range keys {
		if v := q.Get(k); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return 0
			}
			return n
		}
	}
	return 0
}

// Page is the envelope for list responses.
type Page struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"has_more"`
	Next    string      `json:"next,omitempty"`
}

// NewPage builds the envelope; basePath, when set, is used for the next link.
func (p Params) NewPage(data interface{}, total int, basePath string) *Page {
	page := &Page{
		Data:    data,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: p.HasNext(total),
	}
	if page.HasMore && basePath != "" {
		page.Next = fmt.Sprintf("%s?limit=%d&offset=%d", basePath, p.Limit, p.Offset+p.Limit)
	}
	return page
}

// HasNext reports whether rows remain past this window.
func (p Params) HasNext(total int) bool {
	return p.Offset < total-p.Limit
}
