package domain

import "errors"

// Failure taxonomy. Callers match with errors.Is; every error returned by the
// core wraps one of these.
var (
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrUnknownSymbol     = errors.New("unknown symbol")
	ErrQuoteUnavailable  = errors.New("quote unavailable")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrOversellAttempt   = errors.New("oversell attempt")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrAuthFailure       = errors.New("invalid username and/or password")
	ErrInvalidInput      = errors.New("invalid input")

	// Internal invariant violations. These never describe a user mistake.
	ErrNotFound           = errors.New("user not found")
	ErrLedgerInconsistent = errors.New("ledger inconsistent")
)

// Error codes exposed to API clients
const (
	CodeInvalidQuantity   = "INVALID_QUANTITY"
	CodeUnknownSymbol     = "UNKNOWN_SYMBOL"
	CodeQuoteUnavailable  = "QUOTE_UNAVAILABLE"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeOversellAttempt   = "OVERSELL_ATTEMPT"
	CodeDuplicateUsername = "DUPLICATE_USERNAME"
	CodeAuthFailure       = "AUTH_FAILURE"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeNotFound          = "NOT_FOUND"
	CodeInternal          = "INTERNAL"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrInvalidQuantity, CodeInvalidQuantity},
	{ErrUnknownSymbol, CodeUnknownSymbol},
	{ErrQuoteUnavailable, CodeQuoteUnavailable},
	{ErrInsufficientFunds, CodeInsufficientFunds},
	{ErrOversellAttempt, CodeOversellAttempt},
	{ErrDuplicateUsername, CodeDuplicateUsername},
	{ErrAuthFailure, CodeAuthFailure},
	{ErrInvalidInput, CodeInvalidInput},
	{ErrNotFound, CodeNotFound},
}

// ErrorCode maps an error to its taxonomy code. Unclassified errors, including
// ErrLedgerInconsistent and storage failures, are CodeInternal.
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}

// IsUserError reports whether err describes a problem with the caller's input
// rather than the system's state.
func IsUserError(err error) bool {
	switch ErrorCode(err) {
	case CodeNotFound, CodeInternal, CodeQuoteUnavailable:
		return false
	}
	return true
}
