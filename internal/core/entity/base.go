// Package entity provides base types and capability traits for all domain entities.
//
// Capabilities are opt-in: an entity embeds Audit, Creator or SoftDelete and thereby
// satisfies Auditable, CreatorAware or SoftDeletable. The save pipeline in core/uow
// discovers them with type assertions, there is no base-class hierarchy.
package entity

import (
	"context"

	"ytsoob/internal/core/id"
)

// Validatable is implemented by entities that support self-validation.
// Validation checks internal invariants (without database access).
type Validatable interface {
	Validate(ctx context.Context) error
}

// Persistable is implemented by every entity the unit of work can flush.
type Persistable interface {
	// TableName returns the schema-qualified table name.
	TableName() string
	GetID() int64
	GetVersion() int
	SetVersion(v int)
}

// BaseEntity contains common fields for all entities.
type BaseEntity struct {
	// ID is the primary key (snowflake, node-scoped)
	ID int64 `db:"id" json:"id"`

	// Version for optimistic locking (incremented on each update)
	Version int `db:"version" json:"version"`
}

// NewBaseEntity creates a new BaseEntity with generated ID.
func NewBaseEntity() BaseEntity {
	return BaseEntity{
		ID:      id.NextID(),
		Version: 1,
	}
}

// GetID returns the primary key.
func (b *BaseEntity) GetID() int64 {
	return b.ID
}

// GetVersion returns the optimistic lock version.
func (b *BaseEntity) GetVersion() int {
	return b.Version
}

// SetVersion updates the version number (used by repository after sync).
func (b *BaseEntity) SetVersion(v int) {
	b.Version = v
}
