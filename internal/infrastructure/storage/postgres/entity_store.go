package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"ytsoob/internal/core/apperror"
	"ytsoob/internal/core/entity"
	"ytsoob/internal/core/uow"
)

var _ uow.EntityStore = (*EntityStore)(nil)

// immutableColumns are written on insert only.
var immutableColumns = map[string]bool{
	"id":         true,
	"version":    true,
	"created":    true,
	"created_by": true,
}

// EntityStore flushes unit-of-work entries using the entities' "db" tags.
// Updates and deletes are optimistic: they match on the version the entity was loaded with.
type EntityStore struct {
	txManager *TxManager
}

// NewEntityStore creates a store bound to txManager.
func NewEntityStore(txManager *TxManager) *EntityStore {
	return &EntityStore{txManager: txManager}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Insert implements uow.EntityStore.
func (s *EntityStore) Insert(ctx context.Context, e entity.Persistable) error {
	q, err := insertQuery(e)
	if err != nil {
		return err
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", e.TableName(), mapError(err))
	}
	return nil
}

// Update implements uow.EntityStore. On success the entity's version is advanced.
func (s *EntityStore) Update(ctx context.Context, e entity.Persistable) error {
	q, err := updateQuery(e)
	if err != nil {
		return err
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	result, err := s.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", e.TableName(), mapError(err))
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(e.TableName(), e.GetID())
	}
	e.SetVersion(e.GetVersion() + 1)
	return nil
}

// Delete implements uow.EntityStore. Soft-deletable entities never reach it.
func (s *EntityStore) Delete(ctx context.Context, e entity.Persistable) error {
	sql, args, err := deleteQuery(e).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	result, err := s.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", e.TableName(), mapError(err))
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(e.TableName(), e.GetID())
	}
	return nil
}

func insertQuery(e entity.Persistable) (squirrel.InsertBuilder, error) {
	data := StructToMap(e)
	if len(data) == 0 {
		return squirrel.InsertBuilder{}, fmt.Errorf("no db tags found in %T", e)
	}
	return Builder().Insert(e.TableName()).SetMap(data), nil
}

func updateQuery(e entity.Persistable) (squirrel.UpdateBuilder, error) {
	data := StructToMap(e)
	if len(data) == 0 {
		return squirrel.UpdateBuilder{}, fmt.Errorf("no db tags found in %T", e)
	}
	set := make(map[string]any, len(data))
	for col, val := range data {
		if immutableColumns[col] {
			continue
		}
		set[col] = val
	}
	return Builder().
		Update(e.TableName()).
		SetMap(set).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": e.GetID()}).
		Where(squirrel.Eq{"version": e.GetVersion()}), nil
}

func deleteQuery(e entity.Persistable) squirrel.DeleteBuilder {
	return Builder().
		Delete(e.TableName()).
		Where(squirrel.Eq{"id": e.GetID()}).
		Where(squirrel.Eq{"version": e.GetVersion()})
}
