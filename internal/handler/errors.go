package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/zeromicro/go-zero/core/logx"

	"refcache-api/internal/apperr"
	"refcache-api/internal/types"
)

// ErrorHandler renders errors as {"status","message"}. Client errors carry
// their message; anything else is logged and reported generically.
func ErrorHandler(ctx context.Context, err error) (int, any) {
	status := http.StatusInternalServerError
	switch {
	case apperr.IsClientError(err):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logx.WithContext(ctx).Errorf("request failed: %v", err)
		msg = http.StatusText(status)
	}
	return status, types.ErrorResponse{Status: status, Message: msg}
}

// badRequest marks request parsing failures as client errors.
func badRequest(err error) error {
	return fmt.Errorf("%w: %v", apperr.ErrInvalidFormat, err)
}
