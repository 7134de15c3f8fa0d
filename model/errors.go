package model

import "fmt"

type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"
	ErrInvalidCID      ErrorCode = "INVALID_CID"
	ErrInvalidDocument ErrorCode = "INVALID_DOCUMENT"
	ErrMissingCAS      ErrorCode = "MISSING_CAS"
	ErrNotFound        ErrorCode = "NOT_FOUND"
	ErrCIDMismatch     ErrorCode = "CID_MISMATCH"
	ErrWrongKind       ErrorCode = "WRONG_KIND"
	ErrNotWellFormed   ErrorCode = "NOT_WELL_FORMED"
	ErrSigning         ErrorCode = "SIGNING"
	ErrInternal        ErrorCode = "INTERNAL"
)

// CodedError is a stable error with a machine-readable code and a human message.
//
// Rule violations also carry the rule ID and the location in the protocol.
type CodedError struct {
	Code    ErrorCode `json:"code" yaml:"code"`
	RuleID  string    `json:"ruleID,omitempty" yaml:"ruleID,omitempty"`
	Message string    `json:"message" yaml:"message"`
	Path    string    `json:"path,omitempty" yaml:"path,omitempty"`
	Label   string    `json:"label,omitempty" yaml:"label,omitempty"`
	Role    string    `json:"role,omitempty" yaml:"role,omitempty"`
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	if e.RuleID != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.RuleID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code ErrorCode, message string) *CodedError {
	return &CodedError{Code: code, Message: message}
}
