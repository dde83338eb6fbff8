// Package errs collects the three-axis error taxonomy shared across the
// connector: codec errors, ILP reject categories, and claim-domain errors.
package errs

import "fmt"

// Wrap adds context to an error message. It returns nil if err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// CodecKind enumerates the two failure modes of the OER codec.
type CodecKind string

const (
	BufferUnderflow CodecKind = "BufferUnderflow"
	InvalidPacket   CodecKind = "InvalidPacket"
)

// CodecError is raised by internal/oer. It never panics; callers at the BTP
// boundary convert it into a BTP ERROR frame and discard the offending frame.
type CodecError struct {
	Kind CodecKind
	Msg  string
}

func (e *CodecError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Msg) }

func NewBufferUnderflow(msg string) *CodecError { return &CodecError{Kind: BufferUnderflow, Msg: msg} }
func NewInvalidPacket(msg string) *CodecError   { return &CodecError{Kind: InvalidPacket, Msg: msg} }

// ILPCategory is the leading character of a three-character ILP error code.
type ILPCategory byte

const (
	CategoryFinal     ILPCategory = 'F' // do not retry
	CategoryTransient ILPCategory = 'T' // retry safe
	CategoryRelative  ILPCategory = 'R' // relative-time / expiry
)

// Closed set of ILP error codes recognized by the packet handler (spec.md §7).
const (
	CodeInvalidPacket        = "F01"
	CodeUnreachable          = "F02"
	CodeInvalidAmount        = "F03"
	CodeWrongCondition       = "F05"
	CodeApplicationErrorF    = "F99"
	CodeInternalError        = "T00"
	CodePeerUnreachable      = "T01"
	CodeInsufficientLiquidity = "T04"
	CodeApplicationErrorT    = "T99"
	CodeTransferTimedOut     = "R00"
)

// Category returns the ILPCategory implied by a code's leading byte.
func Category(code string) ILPCategory {
	if len(code) == 0 {
		return CategoryFinal
	}
	return ILPCategory(code[0])
}

// ClaimErrorKind classifies a claim-domain failure. These never propagate to
// the packet path; they are logged and the claim exchange is short-circuited.
type ClaimErrorKind string

const (
	ClaimSignatureInvalid    ClaimErrorKind = "signature-invalid"
	ClaimStaleNonce          ClaimErrorKind = "stale-nonce"
	ClaimAmountExceedsDeposit ClaimErrorKind = "amount-exceeds-deposit"
	ClaimStoreWriteFailure   ClaimErrorKind = "store-write-failure"
	ClaimChainNotConfigured  ClaimErrorKind = "chain-not-configured"
)

// ClaimError is a local-only, non-fatal error surfaced by the claim manager.
type ClaimError struct {
	Kind ClaimErrorKind
	Msg  string
}

func (e *ClaimError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Msg) }

func NewClaimError(kind ClaimErrorKind, msg string) *ClaimError {
	return &ClaimError{Kind: kind, Msg: msg}
}

// AdminErrorKind classifies structured admin-surface responses (spec.md §7).
type AdminErrorKind string

const (
	AdminBadRequest        AdminErrorKind = "bad-request"
	AdminNotFound          AdminErrorKind = "not-found"
	AdminConflict          AdminErrorKind = "conflict"
	AdminServiceUnavailable AdminErrorKind = "service-unavailable"
	AdminTimeout           AdminErrorKind = "timeout"
	AdminInternal          AdminErrorKind = "internal"
)

// AdminError is returned by the admin surface (internal/admin) so that HTTP
// and CLI bindings can classify the failure without re-deriving it.
type AdminError struct {
	Kind AdminErrorKind
	Msg  string
}

func (e *AdminError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Msg) }

func NewAdminError(kind AdminErrorKind, msg string) *AdminError {
	return &AdminError{Kind: kind, Msg: msg}
}
