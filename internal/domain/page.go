package domain

const (
	DefaultPageNumber = 1
	DefaultPageSize   = 10
	MaxPageNumber     = 10000
	MaxPageSize       = 100
)

// PageRequest задаёт номер страницы (с 1) и её размер.
type PageRequest struct {
	Number int
	Size   int
}

// Validate проверяет границы пагинации.
func (r PageRequest) Validate() error {
	if r.Number < 1 || r.Number > MaxPageNumber || r.Size < 1 || r.Size > MaxPageSize {
		return ErrPageInvalid
	}
	return nil
}

// Offset — количество пропускаемых записей.
func (r PageRequest) Offset() int {
	return (r.Number - 1) * r.Size
}

// Page — страница результатов с метаданными.
type Page[T any] struct {
	Items      []T
	TotalCount int
	PageNumber int
	PageSize   int
	TotalPages int
}

// NewPage собирает страницу; TotalPages = ceil(total / size).
func NewPage[T any](items []T, total int, req PageRequest) Page[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if req.Size > 0 {
		totalPages = (total + req.Size - 1) / req.Size
	}
	return Page[T]{
		Items:      items,
		TotalCount: total,
		PageNumber: req.Number,
		PageSize:   req.Size,
		TotalPages: totalPages,
	}
}

// PageBounds возвращает границы среза [start, end) для offset/limit над n элементами.
func PageBounds(n, offset, limit int) (int, int) {
	if offset >= n || limit <= 0 {
		return n, n
	}
	end := offset + limit
	if end > n {
		end = n
	}
	return offset, end
}
