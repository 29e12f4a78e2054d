package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"gbconnect/internal/services"
)

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"invalid input", fmt.Errorf("%w: title is required", services.ErrInvalidInput), http.StatusBadRequest, `{"error":"title is required"}`},
		{"not found", fmt.Errorf("%w: service not found", services.ErrNotFound), http.StatusNotFound, `{"error":"service not found"}`},
		{"conflict", fmt.Errorf("%w: email already in use", services.ErrConflict), http.StatusConflict, `{"error":"email already in use"}`},
		{"unauthorized", fmt.Errorf("%w: invalid credentials", services.ErrUnauthorized), http.StatusUnauthorized, `{"error":"invalid credentials"}`},
		{"forbidden", fmt.Errorf("%w: account not verified", services.ErrForbidden), http.StatusForbidden, `{"error":"account not verified"}`},
		{"throttled", fmt.Errorf("%w: slow down", services.ErrTooManyRequests), http.StatusTooManyRequests, `{"error":"slow down"}`},
		{"unavailable", fmt.Errorf("%w: image storage is not configured", services.ErrUnavailable), http.StatusServiceUnavailable, `{"error":"image storage is not configured"}`},
		{"unknown", errors.New("connection reset by peer"), http.StatusInternalServerError, `{"error":"internal server error"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)

			writeServiceError(rec, req, tt.err, "test")

			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, tt.body, rec.Body.String())
		})
	}
}
