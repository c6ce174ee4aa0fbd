package domain

import "errors"

var (
	ErrInvalidBump        = errors.New("bump size must be strictly positive")
	ErrInvalidTolerance   = errors.New("verification tolerance must be strictly positive")
	ErrInvalidFloor       = errors.New("verification floor must be non-negative")
	ErrInvalidSmoothing   = errors.New("smoothing epsilon must be non-negative")
	ErrMissingDependency  = errors.New("second-order sensitivity requested without its first-order dependency")
	ErrUnknownSensitivity = errors.New("unknown sensitivity")
	ErrUnknownMethod      = errors.New("unknown differentiation method")
	ErrInvalidParams      = errors.New("invalid pricing parameters")
	ErrPricingFailed      = errors.New("pricing call failed")
	ErrNilPricingCall     = errors.New("pricing call is nil")
	ErrDuplicateTrade     = errors.New("duplicate trade id")
	ErrEmptyTradeID       = errors.New("trade id is required")
	ErrEmptyNettingSet    = errors.New("netting set id is required")
)
