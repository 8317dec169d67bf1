// Package mediator composes request handlers with cross-cutting behaviors.
//
// A pipeline is built once at wiring time with Chain; there is no runtime
// registry and no reflection-based dispatch. The first behavior passed to
// Chain is the outermost:
//
//	create := mediator.Chain(h.CreatePost,
//	    mediator.Logging[CreatePost, *Post](),
//	    mediator.Tracing[CreatePost, *Post](),
//	    mediator.Validation[CreatePost, *Post](),
//	    app.Transactional[CreatePost, *Post](scopes),
//	)
package mediator

import (
	"context"
	"fmt"
	"strings"
)

// HandlerFunc handles one request type.
type HandlerFunc[Req, Resp any] func(ctx context.Context, req Req) (Resp, error)

// Behavior wraps a handler.
type Behavior[Req, Resp any] func(next HandlerFunc[Req, Resp]) HandlerFunc[Req, Resp]

// Chain wraps h with behaviors, first behavior outermost.
func Chain[Req, Resp any](h HandlerFunc[Req, Resp], behaviors ...Behavior[Req, Resp]) HandlerFunc[Req, Resp] {
	for i := len(behaviors) - 1; i >= 0; i-- {
		h = behaviors[i](h)
	}
	return h
}

// Named lets a request report its own name for logs and spans.
type Named interface {
	RequestName() string
}

// RequestName returns the request's name: Named if implemented, else the
// unqualified type name.
func RequestName(req any) string {
	if n, ok := req.(Named); ok {
		return n.RequestName()
	}
	name := strings.TrimPrefix(fmt.Sprintf("%T", req), "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}
