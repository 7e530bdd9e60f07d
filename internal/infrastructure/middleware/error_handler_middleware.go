package middleware

import (
	"net/http"

	"dealerhub/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandlerMiddleware renders the last error attached with c.Error.
// AppErrors keep their code and status; anything else becomes a 500.
func ErrorHandlerMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		appErr := errors.GetAppError(err)
		if appErr == nil {
			logger.Errorw("unhandled error",
				"error", err.Error(),
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   string(errors.ErrCodeInternal),
				"message": "Internal server error",
			})
			return
		}

		fields := []interface{}{
			"code", appErr.Code,
			"message", appErr.Message,
			"status", appErr.HTTPStatus,
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		}
		if appErr.Cause != nil {
			fields = append(fields, "cause", appErr.Cause.Error())
		}
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			logger.Errorw("application error", fields...)
		} else {
			logger.Infow("request rejected", fields...)
		}

		body := gin.H{
			"error":   string(appErr.Code),
			"message": appErr.Message,
		}
		if len(appErr.Context) > 0 {
			body["details"] = appErr.Context
		}
		c.JSON(appErr.HTTPStatus, body)
	}
}

// RecoveryMiddleware turns panics into 500 responses.
func RecoveryMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Errorw("panic recovered",
					"error", err,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":   string(errors.ErrCodeInternal),
					"message": "Internal server error",
				})
			}
		}()

		c.Next()
	}
}
