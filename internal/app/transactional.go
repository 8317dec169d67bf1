package app

import (
	"context"

	"ytsoob/internal/core/mediator"
)

// Transactional gives the handler a fresh scope and saves it when the handler
// succeeds. A handler error, or a save error, is returned and nothing is
// committed. When ctx already carries a scope the handler joins it and the
// outer Transactional saves.
func Transactional[Req, Resp any](scopes *ScopeFactory) mediator.Behavior[Req, Resp] {
	return func(next mediator.HandlerFunc[Req, Resp]) mediator.HandlerFunc[Req, Resp] {
		return func(ctx context.Context, req Req) (Resp, error) {
			if _, ok := ScopeFrom(ctx); ok {
				return next(ctx, req)
			}

			scope := scopes.New()
			ctx = WithScope(ctx, scope)

			var zero Resp
			resp, err := next(ctx, req)
			if err != nil {
				return zero, err
			}
			if err := scope.UoW.SaveChanges(ctx); err != nil {
				return zero, err
			}
			return resp, nil
		}
	}
}
