package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/pipedesk/internal/crmerr"
)

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, crmerr.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, crmerr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, crmerr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, crmerr.ErrIntegrity):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes {"error": msg} with the mapped status. Internal
// errors are logged and their detail is not returned to the client.
func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("api: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// bind decodes the JSON body into v, reporting malformed input as a
// validation error.
func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWithError(c, crmerr.Validation("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		abortWithError(c, crmerr.Validation("invalid request body: %v", err))
		return false
	}
	return true
}
