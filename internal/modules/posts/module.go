package posts

import (
	"time"

	"ytsoob/internal/app"
	"ytsoob/internal/core/mediator"
)

// Module exposes the composed command and query pipelines.
type Module struct {
	CreatePost         mediator.HandlerFunc[CreatePost, *Post]
	UpdatePost         mediator.HandlerFunc[UpdatePost, *Post]
	DeletePost         mediator.HandlerFunc[DeletePost, *Post]
	AddComment         mediator.HandlerFunc[AddComment, *Comment]
	DeleteComment      mediator.HandlerFunc[DeleteComment, *Comment]
	CreateSubscription mediator.HandlerFunc[CreateSubscription, *Subscription]

	GetPost         mediator.HandlerFunc[GetPost, *Post]
	GetSubscription mediator.HandlerFunc[GetSubscription, *Subscription]
	ListComments    mediator.HandlerFunc[ListComments, CommentPage]
}

// ModuleConfig wires the module.
type ModuleConfig struct {
	Repo        Repository
	Scopes      *app.ScopeFactory
	Cache       mediator.Cache
	Invalidator mediator.Invalidator
	CacheTTL    time.Duration
}

// NewModule composes the pipelines. Commands run
// Logging -> Tracing -> Validation -> InvalidateCaching -> Transactional,
// queries run Logging -> Tracing -> Validation -> Caching.
func NewModule(cfg ModuleConfig) *Module {
	h := NewHandlers(cfg.Repo)

	return &Module{
		CreatePost: command(h.CreatePost, cfg, nil),
		UpdatePost: command(h.UpdatePost, cfg, func(cmd UpdatePost, _ *Post) []string {
			return []string{PostCacheKey(cmd.ID)}
		}),
		DeletePost: command(h.DeletePost, cfg, func(cmd DeletePost, _ *Post) []string {
			return []string{PostCacheKey(cmd.ID)}
		}),
		AddComment:         command(h.AddComment, cfg, nil),
		DeleteComment:      command(h.DeleteComment, cfg, nil),
		CreateSubscription: command(h.CreateSubscription, cfg, nil),

		GetPost: query(h.GetPost, cfg, func(q GetPost) string {
			return PostCacheKey(q.ID)
		}),
		GetSubscription: query(h.GetSubscription, cfg, nil),
		ListComments:    query(h.ListComments, cfg, nil),
	}
}

func command[Req, Resp any](h mediator.HandlerFunc[Req, Resp], cfg ModuleConfig, keys func(Req, Resp) []string) mediator.HandlerFunc[Req, Resp] {
	behaviors := []mediator.Behavior[Req, Resp]{
		mediator.Logging[Req, Resp](),
		mediator.Tracing[Req, Resp](),
		mediator.Validation[Req, Resp](),
	}
	if keys != nil && cfg.Invalidator != nil {
		behaviors = append(behaviors, mediator.InvalidateCaching(cfg.Invalidator, keys))
	}
	behaviors = append(behaviors, app.Transactional[Req, Resp](cfg.Scopes))
	return mediator.Chain(h, behaviors...)
}

func query[Req, Resp any](h mediator.HandlerFunc[Req, Resp], cfg ModuleConfig, key func(Req) string) mediator.HandlerFunc[Req, Resp] {
	behaviors := []mediator.Behavior[Req, Resp]{
		mediator.Logging[Req, Resp](),
		mediator.Tracing[Req, Resp](),
		mediator.Validation[Req, Resp](),
	}
	if key != nil && cfg.Cache != nil {
		behaviors = append(behaviors, mediator.Caching[Req, Resp](cfg.Cache, key, cfg.CacheTTL))
	}
	return mediator.Chain(h, behaviors...)
}
