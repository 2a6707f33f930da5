package model

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// Pagination is embedded into list requests.
type Pagination struct {
	Page     int `query:"page" validate:"omitempty,min=1"`
	PageSize int `query:"pageSize" validate:"omitempty,min=1,max=100"`
}

func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	return min(p.PageSize, MaxPageSize)
}

func (p Pagination) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

type PaginatedResponse[T any] struct {
	Data     []T `json:"data"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
	Total    int `json:"total"`
}

func NewPaginatedResponse[T any](data []T, p Pagination, total int) *PaginatedResponse[T] {
	if data == nil {
		data = []T{}
	}
	return &PaginatedResponse[T]{
		Data:     data,
		Page:     max(p.Page, 1),
		PageSize: p.Limit(),
		Total:    total,
	}
}

func (r *PaginatedResponse[T]) ResultCount() int {
	return len(r.Data)
}
