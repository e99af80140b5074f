package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
)

func decode(t *testing.T, rr *httptest.ResponseRecorder) APIError {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Error
}

func TestWriteErrorMapsDomainErrors(t *testing.T) {
	cases := []struct {
		err       error
		status    int
		code      string
		errorCode int
	}{
		{model.ErrNameTaken, http.StatusConflict, CodeNameTaken, 101},
		{model.ErrEmailTaken, http.StatusConflict, CodeEmailTaken, 102},
		{model.ErrDeviceRegisterLimit, http.StatusTooManyRequests, CodeDeviceRegisterLimit, 103},
		{model.ErrInvalidCredentials, http.StatusUnauthorized, CodeInvalidCredentials, 104},
		{model.ErrLoginDeviceLimit, http.StatusTooManyRequests, CodeLoginDeviceLimit, 105},
		{model.ErrAddressRegisterLimit, http.StatusTooManyRequests, CodeAddressRegisterLimit, 107},
		{model.ErrInvalidSession, http.StatusUnauthorized, CodeUnauthorized, 108},
		{model.ErrInsufficientStamina, http.StatusConflict, CodeInsufficientStamina, 201},
		{model.ErrStepRestriction, http.StatusConflict, CodeRestrictionNotMet, 301},
		{model.ErrMapLockedUntil, http.StatusLocked, CodeMapLocked, 302},
		{model.ErrChartNotFound, http.StatusNotFound, CodeChartNotFound, 402},
		{model.ErrInvalidArgument.WithMessage("score must be positive"), http.StatusBadRequest, CodeInvalidRequest, 1},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			rr := httptest.NewRecorder()
			WriteError(rr, tc.err)

			assert.Equal(t, tc.status, rr.Code)
			body := decode(t, rr)
			assert.Equal(t, tc.code, body.Code)
			assert.Equal(t, tc.errorCode, body.ErrorCode)
		})
	}
}

func TestWriteErrorIncludesBanDetail(t *testing.T) {
	until := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	rr := httptest.NewRecorder()
	WriteError(rr, model.Banned("cheating", until))

	assert.Equal(t, http.StatusForbidden, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, 106, body.ErrorCode)
	require.NotNil(t, body.Ban)
	assert.Equal(t, "cheating", body.Ban.Reason)
	assert.True(t, until.Equal(body.Ban.Until))
}

func TestWriteErrorHidesStorageCause(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, model.WrapStorage(errors.New("dial tcp 10.0.0.5:6379: connection refused")))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.NotContains(t, rr.Body.String(), "10.0.0.5")
}

func TestWriteErrorUnknownIsInternal(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, fmt.Errorf("boom"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, CodeInternalError, decode(t, rr).Code)
}

func TestWriteErrorWrappedDomainError(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, Status(fmt.Errorf("lookup: %w", model.ErrMapNotFound)))
}
