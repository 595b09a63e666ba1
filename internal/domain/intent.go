// Package domain holds the record types of every service together with
// their validation rules and pure mutation functions.
//
// Mutation functions never touch storage. They return the updated record
// and an Intent telling the caller what, if anything, must be persisted.
package domain

// Intent is the persistence action implied by a mutation.
type Intent int

const (
	// NoChange means the record is already in the requested state.
	NoChange Intent = iota
	// Update means the returned record must be written back.
	Update
	// Delete means the record must be removed.
	Delete
)

func (i Intent) String() string {
	switch i {
	case Update:
		return "update"
	case Delete:
		return "delete"
	default:
		return "none"
	}
}

// Page is a limit/offset window, clamped by Clamp.
type Page struct {
	Limit  int
	Offset int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// NewPage builds a clamped page from optional GraphQL arguments.
func NewPage(limit, offset *int32) Page {
	p := Page{Limit: DefaultPageSize}
	if limit != nil {
		p.Limit = int(*limit)
	}
	if offset != nil {
		p.Offset = int(*offset)
	}
	return p.Clamp()
}

// Clamp bounds the page to sane values.
func (p Page) Clamp() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Window slices n items according to the page, returning start and end
// indexes safe for slicing.
func (p Page) Window(n int) (int, int) {
	start := p.Offset
	if start > n {
		start = n
	}
	end := start + p.Limit
	if end > n {
		end = n
	}
	return start, end
}
