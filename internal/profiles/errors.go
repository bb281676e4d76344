package profiles

import (
	"errors"
	"fmt"
)

// Kind classifies the errors returned by the Directory and the Ledger.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindForbidden
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	case KindInvalid:
		return "invalid"
	}
	return "unknown"
}

var (
	ErrProfileNotFound         = errors.New("profile not found")
	ErrRelationshipNotFound    = errors.New("relationship not found")
	ErrRelationshipExists      = errors.New("relationship already exists")
	ErrReverseInvitationExists = errors.New("the other profile already invited you")
	ErrNotProfileOwner         = errors.New("only the owner can modify this profile")
	ErrSelfRelationship        = errors.New("cannot create a relationship with yourself")
)

var kinds = map[error]Kind{
	ErrProfileNotFound:         KindNotFound,
	ErrRelationshipNotFound:    KindNotFound,
	ErrRelationshipExists:      KindConflict,
	ErrReverseInvitationExists: KindConflict,
	ErrNotProfileOwner:         KindForbidden,
	ErrSelfRelationship:        KindInvalid,
}

// Error carries the operation that failed along with a sentinel describing why.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Kind reports the classification of the wrapped sentinel.
func (e *Error) Kind() Kind {
	for sentinel, kind := range kinds {
		if errors.Is(e.Err, sentinel) {
			return kind
		}
	}
	return KindUnknown
}

func opError(op string, err error) error {
	return &Error{Op: op, Err: err}
}

// KindOf returns the Kind of err, or KindUnknown for store failures and foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind()
	}
	return KindUnknown
}

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsConflict reports whether err is a Conflict error.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsForbidden reports whether err is a Forbidden error.
func IsForbidden(err error) bool { return KindOf(err) == KindForbidden }
