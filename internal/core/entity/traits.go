package entity

import (
	"time"
)

// CreatorAware is the creator-only capability: creation time and creating actor.
type CreatorAware interface {
	SetCreated(at time.Time, by *int64)
}

// Auditable is the full audit capability: creation plus last-modification stamps.
type Auditable interface {
	CreatorAware
	SetLastModified(at time.Time, by *int64)
}

// SoftDeletable entities are never physically removed; deletion flips a flag.
type SoftDeletable interface {
	IsDeleted() bool
	SetDeleted(deleted bool)
}

// Creator is a trait for entities that record who created them and when.
type Creator struct {
	Created   time.Time `db:"created" json:"created"`
	CreatedBy *int64    `db:"created_by" json:"createdBy,omitempty"`
}

// SetCreated implements CreatorAware.
func (c *Creator) SetCreated(at time.Time, by *int64) {
	c.Created = at
	c.CreatedBy = by
}

// Audit is a trait for entities that record creation and last modification.
type Audit struct {
	Created        time.Time  `db:"created" json:"created"`
	CreatedBy      *int64     `db:"created_by" json:"createdBy,omitempty"`
	LastModified   *time.Time `db:"last_modified" json:"lastModified,omitempty"`
	LastModifiedBy *int64     `db:"last_modified_by" json:"lastModifiedBy,omitempty"`
}

// SetCreated implements CreatorAware.
func (a *Audit) SetCreated(at time.Time, by *int64) {
	a.Created = at
	a.CreatedBy = by
}

// SetLastModified implements Auditable.
func (a *Audit) SetLastModified(at time.Time, by *int64) {
	a.LastModified = &at
	a.LastModifiedBy = by
}

// SoftDelete is a trait for entities that support logical deletion.
type SoftDelete struct {
	Deleted bool `db:"is_deleted" json:"isDeleted"`
}

// IsDeleted implements SoftDeletable.
func (s *SoftDelete) IsDeleted() bool {
	return s.Deleted
}

// SetDeleted implements SoftDeletable.
func (s *SoftDelete) SetDeleted(deleted bool) {
	s.Deleted = deleted
}
