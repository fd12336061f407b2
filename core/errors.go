package core

import "errors"

// Identity errors
var (
	ErrMethodExists     = errors.New("method key already registered") // 409 Conflict
	ErrIdentityNotFound = errors.New("identity not found")            // 404 Not Found
	ErrMethodNotFound   = errors.New("method not found")              // 404 Not Found
)

// Token errors
var (
	ErrTokenInvalid  = errors.New("invalid or expired token") // 401
	ErrTokenConsumed = errors.New("token already used")       // 401
)

// Authentication errors
var (
	ErrInvalidCredentials = errors.New("invalid email or password") // 401 Unauthorized
	ErrInvalidAssertion   = errors.New("invalid session assertion") // 401
)

// Routing errors
var (
	ErrUnknownStrategy = errors.New("unknown strategy")                      // 404
	ErrNotSupported    = errors.New("operation not supported by strategy")   // 404
	ErrStrategyExists  = errors.New("strategy name already registered")      // 500
	ErrUnknownOp       = errors.New("unknown operation")                     // 400
)

// Backend errors
var (
	ErrUnavailable = errors.New("backend unavailable") // 503, retryable
)

// Validation errors (client input)
var (
	ErrEmailRequired    = errors.New("email is required")    // 400
	ErrInvalidEmail     = errors.New("invalid email format") // 400
	ErrPasswordRequired = errors.New("password is required") // 400
	ErrPasswordTooShort = errors.New("password is too short") // 400
	ErrPasswordTooLong  = errors.New("password is too long")  // 400
	ErrTokenRequired    = errors.New("token is required")     // 400
)

// Config errors (server-side configuration)
var (
	ErrSecretRequired  = errors.New("shared secret is required")   // 500
	ErrSecretTooShort  = errors.New("shared secret too short")     // 500
	ErrStorageRequired = errors.New("storage adapter is required") // 500
)
