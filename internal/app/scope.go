// Package app holds the request scope shared by command handlers and the
// behavior that commits it.
package app

import (
	"context"
	"errors"

	"ytsoob/internal/core/tx"
	"ytsoob/internal/core/uow"
	"ytsoob/internal/messaging"
	"ytsoob/internal/messaging/outbox"
)

// ErrNoScope is returned when a handler that needs a scope runs outside one.
var ErrNoScope = errors.New("no request scope in context")

// Scope is one unit of work plus the outbox service enlisted in it.
type Scope struct {
	UoW    *uow.UnitOfWork
	Outbox *outbox.Service
}

// Publish stages payload for the external bus.
func (s *Scope) Publish(ctx context.Context, payload any, opts ...messaging.EnvelopeOption) *messaging.Envelope {
	env := messaging.NewEnvelope(payload, opts...)
	s.Outbox.StagePublish(ctx, env)
	return env
}

// Notify stages payload for in-process consumers.
func (s *Scope) Notify(ctx context.Context, payload any, opts ...messaging.EnvelopeOption) *messaging.Envelope {
	env := messaging.NewEnvelope(payload, opts...)
	s.Outbox.StageInternal(ctx, env)
	return env
}

type scopeKey struct{}

// WithScope stores s in ctx.
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFrom returns the scope carried by ctx.
func ScopeFrom(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(*Scope)
	return s, ok && s != nil
}

// MustScope returns the scope carried by ctx or ErrNoScope.
func MustScope(ctx context.Context) (*Scope, error) {
	s, ok := ScopeFrom(ctx)
	if !ok {
		return nil, ErrNoScope
	}
	return s, nil
}

// ScopeFactory builds fresh scopes over shared infrastructure.
type ScopeFactory struct {
	txManager tx.Manager
	store     uow.EntityStore
	repo      outbox.Repository
	codec     *messaging.Codec
	opts      []uow.Option
}

// NewScopeFactory creates a factory. opts are applied to every unit of work.
func NewScopeFactory(txManager tx.Manager, store uow.EntityStore, repo outbox.Repository, codec *messaging.Codec, opts ...uow.Option) *ScopeFactory {
	return &ScopeFactory{
		txManager: txManager,
		store:     store,
		repo:      repo,
		codec:     codec,
		opts:      opts,
	}
}

// New returns an empty scope.
func (f *ScopeFactory) New() *Scope {
	svc := outbox.NewService(f.repo, f.codec)
	opts := append(append([]uow.Option(nil), f.opts...), uow.WithParticipants(svc))
	return &Scope{
		UoW:    uow.New(f.txManager, f.store, opts...),
		Outbox: svc,
	}
}
