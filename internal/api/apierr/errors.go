package apierr

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code      string   `json:"code"`
	ErrorCode int      `json:"error_code"`
	Message   string   `json:"message"`
	Ban       *BanInfo `json:"ban,omitempty"`
}

// BanInfo is attached to BANNED errors
type BanInfo struct {
	Reason string    `json:"reason"`
	Until  time.Time `json:"until"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeForbidden            = "FORBIDDEN"
	CodeNameTaken            = "NAME_TAKEN"
	CodeEmailTaken           = "EMAIL_TAKEN"
	CodeDeviceRegisterLimit  = "DEVICE_REGISTER_LIMIT"
	CodeAddressRegisterLimit = "ADDRESS_REGISTER_LIMIT"
	CodeInvalidCredentials   = "INVALID_CREDENTIALS"
	CodeLoginDeviceLimit     = "LOGIN_DEVICE_LIMIT"
	CodeBanned               = "BANNED"
	CodePlayerNotFound       = "PLAYER_NOT_FOUND"
	CodeChartNotFound        = "CHART_NOT_FOUND"
	CodeMapNotFound          = "MAP_NOT_FOUND"
	CodeInsufficientStamina  = "INSUFFICIENT_STAMINA"
	CodeBonusNotReady        = "BONUS_NOT_READY"
	CodeRestrictionNotMet    = "RESTRICTION_NOT_MET"
	CodeMapLocked            = "MAP_LOCKED"
	CodeStepOutOfOrder       = "STEP_OUT_OF_ORDER"
	CodeMapCleared           = "MAP_CLEARED"
	CodeStorageUnavailable   = "STORAGE_UNAVAILABLE"
	CodeInternalError        = "INTERNAL_ERROR"
)

type mapping struct {
	status    int
	code      string
	errorCode int
}

// Numeric error codes are what game clients switch on; they are stable.
var byReason = map[model.Reason]mapping{
	model.ReasonNameTaken:            {http.StatusConflict, CodeNameTaken, 101},
	model.ReasonEmailTaken:           {http.StatusConflict, CodeEmailTaken, 102},
	model.ReasonDeviceRegisterLimit:  {http.StatusTooManyRequests, CodeDeviceRegisterLimit, 103},
	model.ReasonInvalidCredentials:   {http.StatusUnauthorized, CodeInvalidCredentials, 104},
	model.ReasonLoginDeviceLimit:     {http.StatusTooManyRequests, CodeLoginDeviceLimit, 105},
	model.ReasonBanned:               {http.StatusForbidden, CodeBanned, 106},
	model.ReasonAddressRegisterLimit: {http.StatusTooManyRequests, CodeAddressRegisterLimit, 107},
	model.ReasonInvalidSession:       {http.StatusUnauthorized, CodeUnauthorized, 108},
	model.ReasonSessionNotFound:      {http.StatusUnauthorized, CodeUnauthorized, 108},

	model.ReasonInsufficientStamina: {http.StatusConflict, CodeInsufficientStamina, 201},
	model.ReasonBonusNotReady:       {http.StatusConflict, CodeBonusNotReady, 202},

	model.ReasonRestrictionNotMet: {http.StatusConflict, CodeRestrictionNotMet, 301},
	model.ReasonMapLocked:         {http.StatusLocked, CodeMapLocked, 302},
	model.ReasonStepOutOfOrder:    {http.StatusBadRequest, CodeStepOutOfOrder, 303},
	model.ReasonMapCleared:        {http.StatusConflict, CodeMapCleared, 304},

	model.ReasonPlayerNotFound: {http.StatusNotFound, CodePlayerNotFound, 401},
	model.ReasonChartNotFound:  {http.StatusNotFound, CodeChartNotFound, 402},
	model.ReasonMapNotFound:    {http.StatusNotFound, CodeMapNotFound, 403},

	model.ReasonInvalidRequest: {http.StatusBadRequest, CodeInvalidRequest, 1},
	model.ReasonStorage:        {http.StatusServiceUnavailable, CodeStorageUnavailable, 2},
}

// Fallbacks for domain errors whose reason has no entry
var byKind = map[model.ErrorKind]mapping{
	model.KindNotFound:             {http.StatusNotFound, CodeInvalidRequest, 1},
	model.KindAlreadyExists:        {http.StatusConflict, CodeInvalidRequest, 1},
	model.KindUnauthorized:         {http.StatusUnauthorized, CodeUnauthorized, 108},
	model.KindBanned:               {http.StatusForbidden, CodeBanned, 106},
	model.KindRateLimited:          {http.StatusTooManyRequests, CodeInvalidRequest, 1},
	model.KindInsufficientResource: {http.StatusConflict, CodeInsufficientStamina, 201},
	model.KindRestrictionNotMet:    {http.StatusConflict, CodeRestrictionNotMet, 301},
	model.KindMapLocked:            {http.StatusLocked, CodeMapLocked, 302},
	model.KindInvalidRequest:       {http.StatusBadRequest, CodeInvalidRequest, 1},
	model.KindStorage:              {http.StatusServiceUnavailable, CodeStorageUnavailable, 2},
}

var internal = mapping{http.StatusInternalServerError, CodeInternalError, 0}

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status err would be written with
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	var de *model.Error
	if !errors.As(err, &de) {
		return internal.toHTTPError("Internal server error")
	}

	m, ok := byReason[de.Reason]
	if !ok {
		if m, ok = byKind[de.Kind]; !ok {
			m = internal
		}
	}

	message := de.Message
	if de.Kind == model.KindStorage {
		// Backend details stay in the logs
		message = "Storage temporarily unavailable"
	}
	out := m.toHTTPError(message)
	if de.Ban != nil {
		out.apiError.Ban = &BanInfo{Reason: de.Ban.Reason, Until: de.Ban.Until}
	}
	return out
}

func (m mapping) toHTTPError(message string) *httpError {
	return &httpError{m.status, APIError{Code: m.code, ErrorCode: m.errorCode, Message: message}}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return byReason[model.ReasonInvalidRequest].toHTTPError(message)
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return byReason[model.ReasonInvalidSession].toHTTPError("Authentication required")
}

// NewForbiddenError creates a forbidden error
func NewForbiddenError() error {
	return &httpError{http.StatusForbidden, APIError{Code: CodeForbidden, ErrorCode: 9, Message: "Forbidden"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return internal.toHTTPError("Internal server error")
}
