// Package pagination implements page-number pagination: query parsing,
// page window resolution and the paginated response body.
package pagination

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/dmitrijs2005/apikit/internal/server/apierr"
)

const (
	PageParam     = "page"
	PageSizeParam = "page_size"
	LastPage      = "last"

	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Params are the pagination inputs of a request. The page itself is kept
// raw until the total count is known, because "last" depends on it.
type Params struct {
	PageSize int
	page     string
}

// ParseParams reads page and page_size from q. An absent page means the
// first one; a missing, non-positive or malformed page_size falls back to
// the default and is capped at MaxPageSize.
func ParseParams(q url.Values) Params {
	p := Params{PageSize: DefaultPageSize, page: q.Get(PageParam)}

	if raw := q.Get(PageSizeParam); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			p.PageSize = min(n, MaxPageSize)
		}
	}
	return p
}

// TotalPages is at least 1, so an empty collection still has a first page.
func TotalPages(count, pageSize int) int {
	if count <= 0 || pageSize <= 0 {
		return 1
	}
	return (count + pageSize - 1) / pageSize
}

// Window resolves the requested page against count. It returns the page
// number with the matching limit and offset, or apierr.InvalidPage when
// the page is malformed or out of range.
func (p Params) Window(count int) (number, limit, offset int, err error) {
	total := TotalPages(count, p.PageSize)

	switch p.page {
	case "":
		number = 1
	case LastPage:
		number = total
	default:
		number, err = strconv.Atoi(p.page)
		if err != nil {
			return 0, 0, 0, apierr.InvalidPage()
		}
	}

	if number < 1 || number > total {
		return 0, 0, 0, apierr.InvalidPage()
	}

	return number, p.PageSize, (number - 1) * p.PageSize, nil
}

// Page is the paginated response body.
type Page[T any] struct {
	Count       int     `json:"count"`
	Next        *string `json:"next"`
	Previous    *string `json:"previous"`
	Results     []T     `json:"results"`
	TotalPages  int     `json:"total_pages"`
	CurrentPage int     `json:"current_page"`
}

// NewPage assembles a page. requestURL must be absolute; next and previous
// links are built from it with the page parameter replaced, and previous
// drops the parameter when pointing at page 1.
func NewPage[T any](results []T, count, number, pageSize int, requestURL *url.URL) *Page[T] {
	if results == nil {
		results = []T{}
	}
	total := TotalPages(count, pageSize)

	p := &Page[T]{
		Count:       count,
		Results:     results,
		TotalPages:  total,
		CurrentPage: number,
	}

	if number < total {
		link := withPage(requestURL, number+1)
		p.Next = &link
	}
	if number > 1 {
		link := withPage(requestURL, number-1)
		p.Previous = &link
	}
	return p
}

func withPage(u *url.URL, number int) string {
	c := *u
	q := c.Query()
	if number == 1 {
		q.Del(PageParam)
	} else {
		q.Set(PageParam, strconv.Itoa(number))
	}
	c.RawQuery = q.Encode()
	return c.String()
}

// AbsoluteURL reconstructs the full URL of r.
func AbsoluteURL(r *http.Request) *url.URL {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	u := *r.URL
	u.Scheme = scheme
	u.Host = r.Host
	return &u
}
