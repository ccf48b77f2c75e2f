package pagination

// MinItemsPerPage is the smallest page size a user can select.
const MinItemsPerPage = 10

// State is the page position over one collection. The zero value is not
// usable; create states with NewState.
type State[T any] struct {
	CurrentPage  int
	ItemsPerPage int

	// Filter selects the items that count towards pages. Nil keeps all.
	Filter func(T) bool
}

// NewState returns a state on the first page with MinItemsPerPage items.
func NewState[T any]() *State[T] {
	return &State[T]{ItemsPerPage: MinItemsPerPage}
}

func (s *State[T]) pageSize() int {
	if s.ItemsPerPage < 1 {
		return MinItemsPerPage
	}
	return s.ItemsPerPage
}

// Apply returns the items matching the filter, in collection order. Without
// a filter items is returned as is.
func (s *State[T]) Apply(items []T) []T {
	if s.Filter == nil {
		return items
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		if s.Filter(it) {
			out = append(out, it)
		}
	}
	return out
}

// Count returns the number of items that take part in paging.
func (s *State[T]) Count(items []T) int {
	if s.Filter == nil {
		return len(items)
	}
	n := 0
	for _, it := range items {
		if s.Filter(it) {
			n++
		}
	}
	return n
}

// Next moves to the following page unless the current one is the last.
func (s *State[T]) Next(total int) {
	size := s.pageSize()
	if total-s.CurrentPage*size > size {
		s.CurrentPage++
	}
}

// Prev moves to the previous page. It is a no-op on the first page.
func (s *State[T]) Prev() {
	if s.CurrentPage > 0 {
		s.CurrentPage--
	}
}

// SetItemsPerPage changes the page size, bounded to [MinItemsPerPage,
// total], and moves the current page back inside the collection.
func (s *State[T]) SetItemsPerPage(n, total int) {
	if n > total {
		n = total
	}
	if n < MinItemsPerPage {
		n = MinItemsPerPage
	}
	s.ItemsPerPage = n
	s.Clamp(total)
}

// Clamp moves the current page to the last non-empty page when the
// collection no longer reaches it, for example after a narrower filter.
func (s *State[T]) Clamp(total int) {
	if s.CurrentPage < 0 {
		s.CurrentPage = 0
	}
	size := s.pageSize()
	if s.CurrentPage*size < total {
		return
	}
	if total == 0 {
		s.CurrentPage = 0
		return
	}
	s.CurrentPage = (total - 1) / size
}

// VisibleSlice returns the current page of items. The filter is applied
// before the window is cut. A page past the end yields an empty slice.
func VisibleSlice[T any](items []T, s *State[T]) []T {
	filtered := s.Apply(items)

	size := s.pageSize()
	page := s.CurrentPage
	if page < 0 {
		page = 0
	}

	start := page * size
	if start >= len(filtered) {
		return nil
	}
	end := start + size
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[start:end:end]
}
