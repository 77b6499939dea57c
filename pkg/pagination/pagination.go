package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext extracts pagination parameters from the echo context.
// Zero-based page/size take precedence over limit/offset.
func FromContext(c echo.Context) Params {
	size, _ := strconv.Atoi(c.QueryParam("size"))
	if size <= 0 {
		size, _ = strconv.Atoi(c.QueryParam("limit"))
	}

	var offset int
	if page, err := strconv.Atoi(c.QueryParam("page")); err == nil && page > 0 {
		offset = page * clamp(size)
	} else {
		offset, _ = strconv.Atoi(c.QueryParam("offset"))
	}

	return New(size, offset)
}

// New normalizes a limit and offset into bounds.
func New(limit, offset int) Params {
	if offset < 0 {
		offset = 0
	}
	return Params{Limit: clamp(limit), Offset: offset}
}

func clamp(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Page returns the zero-based page number the offset falls in.
func (p Params) Page() int {
	if p.Limit <= 0 {
		return 0
	}
	return p.Offset / p.Limit
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// Page is one slice of an ordered result set.
type Page[T any] struct {
	Data    []T  `json:"data"`
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	Page    int  `json:"page"`
	HasMore bool `json:"has_more"`
}

func NewPage[T any](data []T, total int, p Params) Page[T] {
	if data == nil {
		data = []T{}
	}
	return Page[T]{
		Data:    data,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		Page:    p.Page(),
		HasMore: p.HasNext(total),
	}
}

// Map converts every item of a page, keeping its bounds.
func Map[T, U any](in Page[T], fn func(T) U) Page[U] {
	out := make([]U, len(in.Data))
	for i, v := range in.Data {
		out[i] = fn(v)
	}
	return Page[U]{
		Data:    out,
		Total:   in.Total,
		Limit:   in.Limit,
		Offset:  in.Offset,
		Page:    in.Page,
		HasMore: in.HasMore,
	}
}
