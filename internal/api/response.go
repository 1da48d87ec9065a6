package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jorge-barreto/tome/internal/pipeline"
	"github.com/jorge-barreto/tome/internal/progress"
)

// Response is the envelope of every JSON reply.
type Response struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Error     *Error    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"requestId,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	CodeNotFound   = "NOT_FOUND"
	CodeBadRequest = "BAD_REQUEST"
	CodeBusy       = "BUSY"
	CodeConflict   = "CONFLICT"
	CodeInternal   = "INTERNAL"
)

func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
		RequestID: requestID(c),
	})
}

func fail(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, Response{
		Success:   false,
		Error:     &Error{Code: code, Message: msg},
		Timestamp: time.Now().UTC(),
		RequestID: requestID(c),
	})
}

// failErr maps store and launcher errors to HTTP statuses.
func failErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, progress.ErrNotFound):
		fail(c, http.StatusNotFound, CodeNotFound, "run not found")
	case errors.Is(err, progress.ErrInvalidRunID):
		fail(c, http.StatusBadRequest, CodeBadRequest, err.Error())
	case errors.Is(err, pipeline.ErrBusy):
		fail(c, http.StatusServiceUnavailable, CodeBusy, err.Error())
	default:
		fail(c, http.StatusInternalServerError, CodeInternal, err.Error())
	}
}
