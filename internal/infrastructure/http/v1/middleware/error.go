package middleware

import (
	"github.com/gin-gonic/gin"

	"ytsoob/internal/core/apperror"
	"ytsoob/pkg/logger"
)

// ErrorHandler renders the last gin error as an AppError JSON body.
// Internal causes are logged, never returned.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		if appErr, ok := apperror.AsAppError(err); ok {
			if appErr.Err != nil {
				logger.Error(c.Request.Context(), "request error",
					"code", appErr.Code,
					"cause", appErr.Err,
				)
			}
			c.JSON(appErr.HTTPStatus, appErr.Response())
			return
		}

		logger.Error(c.Request.Context(), "unhandled error", "error", err)
		internal := apperror.NewInternal(err).WithDetail("request_id", c.GetString("request_id"))
		c.JSON(internal.HTTPStatus, internal.Response())
	}
}
