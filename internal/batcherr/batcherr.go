// Package batcherr implements a closed set of typed errors, rather
// than ad hoc strings, so that retryability is a pure, exhaustive
// function over the set.
package batcherr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is one of the closed error categories the core classifies
// failures into.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindTransient     Kind = "transient_network"
	KindPermanent     Kind = "permanent_remote"
	KindRateLimited   Kind = "rate_limited"
	KindMetadataMiss  Kind = "metadata_missing"
	KindCompose       Kind = "compose_error"
	KindRepository    Kind = "repository_error"
)

// Error wraps a failure with its classification and the operation it
// occurred in, carrying enough context to log and to classify.
type Error struct {
	Kind  Kind
	Op    string // e.g. "jellyfin.download_primary", "composer.compose"
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

func Validation(op string, cause error) *Error   { return newErr(KindValidation, op, cause) }
func Transient(op string, cause error) *Error    { return newErr(KindTransient, op, cause) }
func Permanent(op string, cause error) *Error    { return newErr(KindPermanent, op, cause) }
func RateLimited(op string, cause error) *Error  { return newErr(KindRateLimited, op, cause) }
func MetadataMiss(op string, cause error) *Error { return newErr(KindMetadataMiss, op, cause) }
func Compose(op string, cause error) *Error      { return newErr(KindCompose, op, cause) }
func Repository(op string, cause error) *Error   { return newErr(KindRepository, op, cause) }

// IsRetryable reports whether err warrants another attempt: it must be
// a transient-network or rate-limited error, and its message must not
// carry a blocking keyword like "file_missing" or "permission_denied".
func IsRetryable(err error) bool {
	var be *Error
	if !errors.As(err, &be) {
		return false
	}
	switch be.Kind {
	case KindTransient, KindRateLimited:
		return !hasBlockingKeyword(be)
	case KindValidation, KindPermanent, KindMetadataMiss, KindCompose, KindRepository:
		return false
	default:
		// Unknown variant: fail closed. Exhaustiveness is checked in
		// batcherr_test.go against the Kind const block.
		return false
	}
}

func hasBlockingKeyword(be *Error) bool {
	msg := be.Error()
	for _, kw := range []string{"file_missing", "permission_denied"} {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}
