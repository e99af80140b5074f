package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a rejection so callers can decide how to react
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindAlreadyExists
	KindUnauthorized
	KindBanned
	KindRateLimited
	KindInsufficientResource
	KindRestrictionNotMet
	KindMapLocked
	KindInvalidRequest
	// KindStorage marks a persistence failure; the operation may be retried by the caller
	KindStorage
)

var kindNames = map[ErrorKind]string{
	KindInternal:             "internal",
	KindNotFound:             "not_found",
	KindAlreadyExists:        "already_exists",
	KindUnauthorized:         "unauthorized",
	KindBanned:               "banned",
	KindRateLimited:          "rate_limited",
	KindInsufficientResource: "insufficient_resource",
	KindRestrictionNotMet:    "restriction_not_met",
	KindMapLocked:            "map_locked",
	KindInvalidRequest:       "invalid_request",
	KindStorage:              "storage",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Reason distinguishes rejections that share a kind (e.g. device vs address limits)
type Reason string

const (
	ReasonPlayerNotFound  Reason = "player_not_found"
	ReasonChartNotFound   Reason = "chart_not_found"
	ReasonMapNotFound     Reason = "map_not_found"
	ReasonSessionNotFound Reason = "session_not_found"

	ReasonNameTaken  Reason = "name_taken"
	ReasonEmailTaken Reason = "email_taken"

	ReasonInvalidCredentials Reason = "invalid_credentials"
	ReasonInvalidSession     Reason = "invalid_session"

	ReasonBanned Reason = "banned"

	ReasonLoginDeviceLimit     Reason = "login_device_limit"
	ReasonDeviceRegisterLimit  Reason = "device_register_limit"
	ReasonAddressRegisterLimit Reason = "address_register_limit"

	ReasonInsufficientStamina Reason = "insufficient_stamina"
	ReasonBonusNotReady       Reason = "bonus_not_ready"

	ReasonRestrictionNotMet Reason = "restriction_not_met"
	ReasonMapLocked         Reason = "map_locked"
	ReasonStepOutOfOrder    Reason = "step_out_of_order"
	ReasonMapCleared        Reason = "map_cleared"
	ReasonInvalidRequest    Reason = "invalid_request"

	ReasonStorage Reason = "storage"
)

// BanDetail is attached to KindBanned errors
type BanDetail struct {
	Reason string
	Until  time.Time
}

// Error is the single error type returned by the engine for domain rejections
type Error struct {
	Kind    ErrorKind
	Reason  Reason
	Message string
	Ban     *BanDetail
	Cause   error
}

// NewError creates an Error of the given kind and reason
func NewError(kind ErrorKind, reason Reason, message string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches on kind and reason so that sentinel comparisons work with
// errors carrying extra detail (ban info, causes, custom messages)
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// WithMessage returns a copy of the error with a different message
func (e *Error) WithMessage(format string, args ...any) *Error {
	c := *e
	c.Message = fmt.Sprintf(format, args...)
	return &c
}

// Kind-only sentinels, usable with errors.Is to match any reason of a kind
var (
	ErrNotFound             = &Error{Kind: KindNotFound, Message: "not found"}
	ErrAlreadyExists        = &Error{Kind: KindAlreadyExists, Message: "already exists"}
	ErrUnauthorized         = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrBanned               = &Error{Kind: KindBanned, Message: "banned"}
	ErrRateLimited          = &Error{Kind: KindRateLimited, Message: "rate limited"}
	ErrInsufficientResource = &Error{Kind: KindInsufficientResource, Message: "insufficient resource"}
	ErrRestrictionNotMet    = &Error{Kind: KindRestrictionNotMet, Message: "restriction not met"}
	ErrMapLocked            = &Error{Kind: KindMapLocked, Message: "map is locked"}
	ErrInvalidRequest       = &Error{Kind: KindInvalidRequest, Message: "invalid request"}
	ErrStorage              = &Error{Kind: KindStorage, Message: "storage failure"}
)

// Common errors used across the application
var (
	ErrPlayerNotFound  = NewError(KindNotFound, ReasonPlayerNotFound, "player not found")
	ErrChartNotFound   = NewError(KindNotFound, ReasonChartNotFound, "chart not found")
	ErrMapNotFound     = NewError(KindNotFound, ReasonMapNotFound, "map not found")
	ErrSessionNotFound = NewError(KindNotFound, ReasonSessionNotFound, "session not found")

	ErrNameTaken  = NewError(KindAlreadyExists, ReasonNameTaken, "name already exists")
	ErrEmailTaken = NewError(KindAlreadyExists, ReasonEmailTaken, "email already exists")

	ErrInvalidCredentials = NewError(KindUnauthorized, ReasonInvalidCredentials, "invalid credentials")
	ErrInvalidSession     = NewError(KindUnauthorized, ReasonInvalidSession, "invalid or expired session")

	ErrLoginDeviceLimit     = NewError(KindRateLimited, ReasonLoginDeviceLimit, "too many devices used in the login window")
	ErrDeviceRegisterLimit  = NewError(KindRateLimited, ReasonDeviceRegisterLimit, "device has registered too recently")
	ErrAddressRegisterLimit = NewError(KindRateLimited, ReasonAddressRegisterLimit, "too many registrations from this address")

	ErrInsufficientStamina = NewError(KindInsufficientResource, ReasonInsufficientStamina, "insufficient stamina")
	ErrBonusNotReady       = NewError(KindInsufficientResource, ReasonBonusNotReady, "bonus stamina is not ready")

	ErrStepRestriction = NewError(KindRestrictionNotMet, ReasonRestrictionNotMet, "step restriction not met")
	ErrMapLockedUntil  = NewError(KindMapLocked, ReasonMapLocked, "map is locked")
	ErrStepOutOfOrder  = NewError(KindInvalidRequest, ReasonStepOutOfOrder, "target step must follow the current position")
	ErrMapAlreadyClear = NewError(KindInvalidRequest, ReasonMapCleared, "no steps remain on this map")
	ErrInvalidArgument = NewError(KindInvalidRequest, ReasonInvalidRequest, "invalid request")
)

// Banned returns a KindBanned error carrying the ban detail
func Banned(reason string, until time.Time) *Error {
	return &Error{
		Kind:    KindBanned,
		Reason:  ReasonBanned,
		Message: "player is banned",
		Ban:     &BanDetail{Reason: reason, Until: until},
	}
}

// WrapStorage marks err as a persistence failure unless it already is a domain error
func WrapStorage(err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Kind: KindStorage, Reason: ReasonStorage, Message: "storage failure", Cause: err}
}

// KindOf returns the kind of err, or KindInternal for foreign errors
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
