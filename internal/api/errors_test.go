package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/service"
	"github.com/phrazzld/scry-studio/internal/service/auth"
	"github.com/phrazzld/scry-studio/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{auth.ErrExpiredToken, http.StatusUnauthorized},
		{service.ErrNotOwned, http.StatusForbidden},
		{fmt.Errorf("get: %w", service.ErrJobNotFound), http.StatusNotFound},
		{store.ErrJobNotFound, http.StatusNotFound},
		{service.ErrJobSettled, http.StatusConflict},
		{service.ErrNoAudio, http.StatusConflict},
		{store.ErrDuplicateJob, http.StatusConflict},
		{service.ErrNotScorable, http.StatusBadRequest},
		{domain.ErrInvalidJobKind, http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapErrorToStatusCode(tt.err), tt.err.Error())
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
	assert.Equal(t, "Job not found", GetSafeErrorMessage(service.ErrJobNotFound))
	assert.Equal(t, "Validation error", GetSafeErrorMessage(domain.ErrValidation))
	assert.Equal(t, "Validation error: title too long",
		GetSafeErrorMessage(fmt.Errorf("%w: title too long", domain.ErrValidation)))

	leaky := fmt.Errorf("query failed: postgres://scry:pw@db/studio: %w", errors.New("timeout"))
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(leaky))
}
