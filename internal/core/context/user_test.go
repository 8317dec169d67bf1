package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActorID_NeverFails(t *testing.T) {
	assert.Nil(t, ActorID(nil))
	assert.Nil(t, ActorID(context.Background()))
	assert.Nil(t, ActorID(WithUser(context.Background(), &UserContext{UserName: "anon"})))

	actor := int64(17)
	ctx := WithUser(context.Background(), &UserContext{ActorID: &actor})
	got := ActorID(ctx)
	if assert.NotNil(t, got) {
		assert.Equal(t, int64(17), *got)
	}

	*got = 99
	assert.Equal(t, int64(17), *ActorID(ctx), "returned pointer must be a copy")
}

func TestParseActorID(t *testing.T) {
	assert.Nil(t, ParseActorID(""))
	assert.Nil(t, ParseActorID("abc"))
	assert.Nil(t, ParseActorID("1.5"))
	if v := ParseActorID("123456789012"); assert.NotNil(t, v) {
		assert.Equal(t, int64(123456789012), *v)
	}
}

func TestGetCorrelationID_FallsBackToRequestID(t *testing.T) {
	ctx := WithTrace(context.Background(), &TraceContext{RequestID: "req-1"})
	assert.Equal(t, "req-1", GetCorrelationID(ctx))

	ctx = WithTrace(context.Background(), &TraceContext{RequestID: "req-1", CorrelationID: "corr-9"})
	assert.Equal(t, "corr-9", GetCorrelationID(ctx))

	assert.Equal(t, "", GetCorrelationID(context.Background()))
}
