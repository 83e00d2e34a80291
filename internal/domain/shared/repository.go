package shared

import "context"

// Transactor runs work inside a database transaction carried on the context.
// Nested calls join the outer transaction through a savepoint, so a failing
// inner unit rolls back on its own without aborting the caller.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	// AfterCommit defers fn until the outermost transaction commits.
	// Outside a transaction fn runs immediately.
	AfterCommit(ctx context.Context, fn func(ctx context.Context))
}

// Filter represents query filter options
type Filter struct {
	Page     int
	PageSize int
}

// DefaultFilter returns a filter with default values
func DefaultFilter() Filter {
	return Filter{
		Page:     1,
		PageSize: 50,
	}
}

// Offset returns the row offset for the current page
func (f Filter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}
