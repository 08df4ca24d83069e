package apperrors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind classifies an error for callers that only care about the category.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindInsufficientBalance
	KindProvider
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindInsufficientBalance:
		return "insufficient_balance"
	case KindProvider:
		return "provider"
	case KindParse:
		return "parse"
	default:
		return "internal"
	}
}

// Stable machine-readable codes carried on typed errors.
const (
	CodeInvalidFormat    = "INVALID_FORMAT"
	CodeBannedNumber     = "BANNED_NUMBER"
	CodeTemplateNotFound = "TEMPLATE_NOT_FOUND"
	CodeGroupNotFound    = "GROUP_NOT_FOUND"
	CodeEmptyGroup       = "EMPTY_GROUP"
	CodeInsufficientFund = "INSUF_FUNDS"
	CodeBalanceNotFound  = "BALANCE_NOT_FOUND"
	CodeDebitNotFound    = "DEBIT_NOT_FOUND"
	CodeBindFailed       = "BIND_FAILED"
	CodeSubmitRejected   = "SUBMIT_REJECTED"
	CodeSubmitTimeout    = "SUBMIT_TIMEOUT"
	CodeUnparseablePush  = "UNPARSEABLE_PUSH"
)

// Error is the typed error carried across component boundaries. Code is
// stable and machine readable, Message is for humans.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error

	// ProviderStatus carries the numeric command status on gateway nacks.
	ProviderStatus uint32

	// Required and Available are populated on insufficient-balance errors.
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Validationf builds a validation error rejected before any billing.
func Validationf(code, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a not-found error rejected before any billing.
func NotFoundf(code, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}

// InsufficientBalance reports required-vs-available amounts.
func InsufficientBalance(required, available decimal.Decimal) *Error {
	return &Error{
		Kind:      KindInsufficientBalance,
		Code:      CodeInsufficientFund,
		Message:   fmt.Sprintf("insufficient balance: required %s, available %s", required, available),
		Required:  required,
		Available: available,
	}
}

// Providerf builds a gateway protocol error. status is the numeric command
// status from the provider acknowledgment (0 when not applicable).
func Providerf(code string, status uint32, format string, args ...any) *Error {
	return &Error{Kind: KindProvider, Code: code, ProviderStatus: status, Message: fmt.Sprintf(format, args...)}
}

// Parsef builds a reconciliation parse error. These are logged and dropped,
// never escalated into the session loop.
func Parsef(format string, args ...any) *Error {
	return &Error{Kind: KindParse, Code: CodeUnparseablePush, Message: fmt.Sprintf(format, args...)}
}

// Internalf wraps an unexpected failure.
func Internalf(err error, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Code: codeFor(err), Message: fmt.Sprintf(format, args...), Err: err}
}

func codeFor(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return "SYS_ERR"
}

// IsKind reports whether err (or anything it wraps) is a typed error of the
// given kind.
func IsKind(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// CodeOf extracts the stable code from err, or empty when untyped.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
