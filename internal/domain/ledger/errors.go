package ledger

import "errors"

// Kind classifies ledger errors for callers that map them onto transports.
type Kind uint8

// Error kinds.
const (
	KindUnknown Kind = iota
	KindAuthorization
	KindNotFound
	KindValidation
	KindConflict
	KindState
	KindResource
)

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindState:
		return "state"
	case KindResource:
		return "resource"
	default:
		return "unknown"
	}
}

// Error is a classified ledger failure. Sentinels below are compared with
// errors.Is; details are added by wrapping with fmt.Errorf("%w: ...").
type Error struct {
	Kind Kind
	Code string
	msg  string
}

func (e *Error) Error() string { return e.msg }

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, msg: msg}
}

// Sentinel ledger errors.
var (
	ErrUnauthorized = newError(KindAuthorization, "unauthorized", "caller is not allowed to perform this operation")

	ErrModelNotFound      = newError(KindNotFound, "model_not_found", "model not found")
	ErrEvaluationNotFound = newError(KindNotFound, "evaluation_not_found", "evaluation not found")
	ErrCategoryNotSeeded  = newError(KindNotFound, "category_not_seeded", "category leaderboard not seeded")

	ErrInvalidCategory      = newError(KindValidation, "invalid_category", "category is not in the taxonomy")
	ErrInvalidLength        = newError(KindValidation, "invalid_length", "field length out of bounds")
	ErrInvalidRating        = newError(KindValidation, "invalid_rating", "rating must be between 1 and 10")
	ErrInvalidCommentLength = newError(KindValidation, "invalid_comment_length", "comment must be between 1 and 200 characters")
	ErrInvalidOwner         = newError(KindValidation, "invalid_owner", "owner identity is empty")

	ErrDuplicateVote      = newError(KindConflict, "duplicate_vote", "participant already evaluated this model")
	ErrCapacityExceeded   = newError(KindConflict, "capacity_exceeded", "staked model list is full")
	ErrAlreadyInitialized = newError(KindConflict, "already_initialized", "platform already initialized")

	ErrModelDeactivated   = newError(KindState, "model_deactivated", "model is deactivated")
	ErrWithdrawalTooEarly = newError(KindState, "withdrawal_too_early", "stake is still locked")
	ErrStakeWithdrawn     = newError(KindState, "stake_withdrawn", "stake already withdrawn")
	ErrNotInitialized     = newError(KindState, "not_initialized", "platform not initialized")

	ErrInsufficientBalance = newError(KindResource, "insufficient_balance", "balance below minimum stake")
	ErrInsufficientStake   = newError(KindResource, "insufficient_stake", "withdrawal exceeds staked amount")
)

// KindOf returns the kind of a ledger error, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the stable code of a ledger error, or "internal".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}
