// Package uow implements the unit of work: a change tracker over domain entities
// that is flushed atomically by SaveChanges.
//
// SaveChanges runs inside one transaction:
//
//	resolve now + actor (once)
//	-> interceptors (audit stamping, soft-delete rewrite; in-memory only)
//	-> EntityStore Insert/Update/Delete per entry
//	-> Participant.CommitAndPersist (outbox rows)
//	-> commit
//
// Any error after the interceptors aborts the whole transaction.
package uow
