package uow

import (
	"time"

	"ytsoob/internal/core/entity"
)

// Entry is one tracked entity and its pending state.
type Entry struct {
	Entity entity.Persistable
	State  entity.State

	softDeleted bool
}

// SoftDeleted reports whether a delete on this entry was rewritten into a flag update.
func (e *Entry) SoftDeleted() bool {
	return e.softDeleted
}

// MarkSoftDeleted rewrites a pending delete into a logical update.
func (e *Entry) MarkSoftDeleted() {
	e.State = entity.Modified
	e.softDeleted = true
}

// SaveContext is what interceptors see for a single commit.
// Now and Actor are resolved once, so every stamp in a commit is identical.
type SaveContext struct {
	Now     time.Time
	Actor   *int64
	Entries []*Entry
}

// Interceptor rewrites staged field values before they are flushed.
// Implementations must not perform I/O and cannot fail the commit.
type Interceptor interface {
	SavingChanges(sc *SaveContext)
}

// InterceptorFunc adapts a function to Interceptor.
type InterceptorFunc func(sc *SaveContext)

// SavingChanges implements Interceptor.
func (f InterceptorFunc) SavingChanges(sc *SaveContext) {
	f(sc)
}
