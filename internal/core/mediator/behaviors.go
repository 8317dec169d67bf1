package mediator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ytsoob/internal/core/apperror"
	"ytsoob/pkg/logger"
)

var tracer = otel.Tracer("ytsoob/mediator")

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared struct validator.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// SelfValidating requests check invariants a struct tag cannot express.
type SelfValidating interface {
	Validate(ctx context.Context) error
}

// Validation rejects requests failing their `validate` tags or their own
// Validate method with a validation AppError. The handler is not called.
func Validation[Req, Resp any]() Behavior[Req, Resp] {
	return func(next HandlerFunc[Req, Resp]) HandlerFunc[Req, Resp] {
		return func(ctx context.Context, req Req) (Resp, error) {
			if err := ValidateRequest(ctx, req); err != nil {
				var zero Resp
				return zero, err
			}
			return next(ctx, req)
		}
	}
}

// ValidateRequest runs tag and self validation on req.
func ValidateRequest(ctx context.Context, req any) error {
	if isStruct(req) {
		if err := Validator().Struct(req); err != nil {
			return validationError(err)
		}
	}
	if sv, ok := req.(SelfValidating); ok {
		if err := sv.Validate(ctx); err != nil {
			if apperror.IsAppError(err) {
				return err
			}
			return apperror.NewValidation(err.Error())
		}
	}
	return nil
}

func isStruct(v any) bool {
	t := reflect.TypeOf(v)
	if t == nil {
		return false
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}

func validationError(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return apperror.NewValidation(err.Error())
	}

	fields := make([]map[string]any, 0, len(ve))
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msg := fieldMessage(fe)
		fields = append(fields, map[string]any{
			"field":   fe.Field(),
			"tag":     fe.Tag(),
			"message": msg,
		})
		msgs = append(msgs, fe.Field()+": "+msg)
	}
	return apperror.NewValidation(strings.Join(msgs, "; ")).WithDetail("fields", fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// Logging logs each request with duration and outcome.
func Logging[Req, Resp any]() Behavior[Req, Resp] {
	return func(next HandlerFunc[Req, Resp]) HandlerFunc[Req, Resp] {
		return func(ctx context.Context, req Req) (Resp, error) {
			name := RequestName(req)
			start := time.Now()
			resp, err := next(ctx, req)
			elapsed := time.Since(start)

			switch {
			case err == nil:
				logger.Debug(ctx, "request handled", "request", name, "duration", elapsed)
			case apperror.GetHTTPStatus(err) >= 500:
				logger.Error(ctx, "request failed", "request", name, "duration", elapsed, "error", err)
			default:
				logger.Info(ctx, "request rejected", "request", name, "duration", elapsed, "error", err)
			}
			return resp, err
		}
	}
}

// Tracing wraps each request in a span.
func Tracing[Req, Resp any]() Behavior[Req, Resp] {
	return func(next HandlerFunc[Req, Resp]) HandlerFunc[Req, Resp] {
		return func(ctx context.Context, req Req) (Resp, error) {
			name := RequestName(req)
			ctx, span := tracer.Start(ctx, "mediator."+name,
				trace.WithAttributes(attribute.String("request.name", name)),
			)
			defer span.End()

			resp, err := next(ctx, req)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return resp, err
		}
	}
}
