package uow

import (
	"ytsoob/internal/core/entity"
)

// AuditInterceptor stamps Created/CreatedBy on Added and LastModified/LastModifiedBy on
// Modified entities. Creator-only entities are stamped on Added only.
type AuditInterceptor struct{}

// SavingChanges implements Interceptor.
func (AuditInterceptor) SavingChanges(sc *SaveContext) {
	for _, e := range sc.Entries {
		if e.softDeleted {
			continue
		}
		switch ent := e.Entity.(type) {
		case entity.Auditable:
			switch e.State {
			case entity.Added:
				ent.SetCreated(sc.Now, copyActor(sc.Actor))
			case entity.Modified:
				ent.SetLastModified(sc.Now, copyActor(sc.Actor))
			}
		case entity.CreatorAware:
			if e.State == entity.Added {
				ent.SetCreated(sc.Now, copyActor(sc.Actor))
			}
		}
	}
}

// SoftDeleteInterceptor forces IsDeleted=false on Added entities and turns deletes of
// soft-deletable entities into Modified with IsDeleted=true.
type SoftDeleteInterceptor struct{}

// SavingChanges implements Interceptor.
func (SoftDeleteInterceptor) SavingChanges(sc *SaveContext) {
	for _, e := range sc.Entries {
		sd, ok := e.Entity.(entity.SoftDeletable)
		if !ok {
			continue
		}
		switch e.State {
		case entity.Added:
			sd.SetDeleted(false)
		case entity.Deleted:
			e.MarkSoftDeleted()
			sd.SetDeleted(true)
		}
	}
}

// DefaultInterceptors returns the interceptors every module registers.
func DefaultInterceptors() []Interceptor {
	return []Interceptor{AuditInterceptor{}, SoftDeleteInterceptor{}}
}

// copyActor returns a fresh pointer so entities never share the same actor variable.
func copyActor(actor *int64) *int64 {
	if actor == nil {
		return nil
	}
	v := *actor
	return &v
}
