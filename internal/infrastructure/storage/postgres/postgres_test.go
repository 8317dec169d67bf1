package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytsoob/internal/core/apperror"
	"ytsoob/internal/core/entity"
	"ytsoob/internal/core/id"
	"ytsoob/internal/messaging"
	"ytsoob/internal/messaging/outbox"
)

type widget struct {
	entity.BaseEntity
	entity.Audit
	entity.SoftDelete
	Name     string  `db:"name"`
	Note     *string `db:"note"`
	internal string
	Ignored  string `db:"-"`
}

func (*widget) TableName() string { return "test.widgets" }

func TestExtractDBColumns_FlattensCapabilities(t *testing.T) {
	cols := ExtractDBColumns[widget]()

	assert.ElementsMatch(t, []string{
		"id", "version",
		"created", "created_by", "last_modified", "last_modified_by",
		"is_deleted", "name", "note",
	}, cols)
}

func TestStructToMap_PointerAndEmbedded(t *testing.T) {
	actor := int64(5)
	w := &widget{
		BaseEntity: entity.BaseEntity{ID: 10, Version: 3},
		Name:       "gear",
	}
	w.SetCreated(time.Unix(0, 0).UTC(), &actor)
	w.SetDeleted(true)

	m := StructToMap(w)

	assert.Equal(t, int64(10), m["id"])
	assert.Equal(t, 3, m["version"])
	assert.Equal(t, &actor, m["created_by"])
	assert.Equal(t, true, m["is_deleted"])
	assert.Equal(t, "gear", m["name"])
	assert.NotContains(t, m, "internal")
	assert.NotContains(t, m, "Ignored")
	assert.Nil(t, StructToMap((*widget)(nil)))
	assert.Nil(t, StructToMap(42))
}

func TestInsertQuery_SQL(t *testing.T) {
	w := &widget{BaseEntity: entity.BaseEntity{ID: 1, Version: 1}, Name: "a"}
	q, err := insertQuery(w)
	require.NoError(t, err)

	sql, args, err := q.ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"INSERT INTO test.widgets (created,created_by,id,is_deleted,last_modified,last_modified_by,name,note,version) "+
			"VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)", sql)
	assert.Len(t, args, 9)
}

func TestUpdateQuery_OptimisticLockAndImmutableColumns(t *testing.T) {
	w := &widget{BaseEntity: entity.BaseEntity{ID: 7, Version: 4}, Name: "b"}
	q, err := updateQuery(w)
	require.NoError(t, err)

	sql, args, err := q.ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"UPDATE test.widgets SET is_deleted = $1, last_modified = $2, last_modified_by = $3, name = $4, note = $5, "+
			"version = version + 1 WHERE id = $6 AND version = $7", sql)
	assert.Equal(t, int64(7), args[5])
	assert.Equal(t, 4, args[6])
	assert.NotContains(t, sql, "created")
}

func TestDeleteQuery_SQL(t *testing.T) {
	w := &widget{BaseEntity: entity.BaseEntity{ID: 7, Version: 2}}

	sql, args, err := deleteQuery(w).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM test.widgets WHERE id = $1 AND version = $2", sql)
	assert.Equal(t, []any{int64(7), 2}, args)
}

func TestOutboxColumns_MatchRecord(t *testing.T) {
	assert.Equal(t, []string{
		"id", "message_type", "payload", "compressed", "delivery_type", "status",
		"retry_count", "last_error", "correlation_id", "created_at", "processed_at",
		"claimed_until", "claimed_by",
	}, outboxColumns)
	assert.Contains(t, claimSQL, "FOR UPDATE SKIP LOCKED")
	assert.Contains(t, claimSQL, "ORDER BY created_at, id")
	assert.Contains(t, claimSQL, "delivery_type = ANY($6::text[])")
}

func TestClaimDeliveryTypes(t *testing.T) {
	assert.Nil(t, deliveryTypes(outbox.ClaimRequest{}))
	assert.Equal(t, []string{"internal"}, deliveryTypes(outbox.ClaimRequest{
		DeliveryTypes: []messaging.DeliveryType{messaging.DeliveryInternal},
	}))
}

func TestMarkRetryQuery_ParksAtThreshold(t *testing.T) {
	recordID := id.New()
	sql, args, err := markRetryQuery(recordID, "w1", "boom", 5).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "retry_count = retry_count + 1")
	assert.Contains(t, sql, "status = CASE WHEN retry_count + 1 >= $")
	assert.Contains(t, sql, "RETURNING status")
	assert.Contains(t, args, 5)
	assert.Contains(t, args, string(outbox.StatusParked))
	assert.Contains(t, args, "w1")
	// squirrel binds driver.Valuer arguments through Value()
	assert.Contains(t, args, recordID.String())
}

func TestListParkedQuery_SQL(t *testing.T) {
	sql, args, err := listParkedQuery(20, 40).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE status = $1 ORDER BY created_at, id LIMIT 20 OFFSET 40")
	assert.Equal(t, []any{"parked"}, args)
}

func TestMapError(t *testing.T) {
	dup := mapError(&pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "posts_pkey"})
	require.True(t, apperror.IsAppError(dup))
	appErr, _ := apperror.AsAppError(dup)
	assert.Equal(t, apperror.CodeConflict, appErr.Code)
	assert.Equal(t, "posts_pkey", appErr.Details["constraint"])

	timeout := mapError(context.DeadlineExceeded)
	appErr, _ = apperror.AsAppError(timeout)
	assert.Equal(t, apperror.CodeTimeout, appErr.Code)

	plain := errors.New("x")
	assert.Same(t, plain, mapError(plain))
	assert.Nil(t, mapError(nil))
}

func TestInboxSQL_IsIdempotentInsert(t *testing.T) {
	assert.Contains(t, markConsumedSQL, "INSERT INTO "+InboxTable)
	assert.Contains(t, markConsumedSQL, "ON CONFLICT (consumer, message_id) DO NOTHING")
	assert.Contains(t, strings.Join(InboxSchema, "\n"), "PRIMARY KEY (consumer, message_id)")
}
