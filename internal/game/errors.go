package game

// ErrorKind groups rejected operations for callers: validation and state
// errors are final for that call, concurrency and ledger errors are safely
// retryable, config errors mean no session may begin.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindConcurrency ErrorKind = "concurrency"
	KindState       ErrorKind = "state"
	KindLedger      ErrorKind = "ledger"
	KindConfig      ErrorKind = "config"
)

// Error is a machine-readable rejection. Every rejected operation returns one
// of these and leaves the session untouched.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrInvalidStake = &Error{
		Kind:    KindValidation,
		Code:    "InvalidStake",
		Message: "stake is below the configured minimum",
	}
	ErrInvalidSeed = &Error{
		Kind:    KindValidation,
		Code:    "InvalidSeed",
		Message: "client seed must be printable and at most 64 characters",
	}
	ErrInsufficientFunds = &Error{
		Kind:    KindLedger,
		Code:    "InsufficientFunds",
		Message: "wallet balance does not cover the stake",
	}
	ErrFlipInProgress = &Error{
		Kind:    KindConcurrency,
		Code:    "FlipInProgress",
		Message: "a flip is already in flight for this session",
	}
	ErrSessionNotFound = &Error{
		Kind:    KindState,
		Code:    "SessionNotFound",
		Message: "session does not exist",
	}
	ErrSessionNotActive = &Error{
		Kind:    KindState,
		Code:    "SessionNotActive",
		Message: "session is not active",
	}
	ErrSessionNotPaused = &Error{
		Kind:    KindState,
		Code:    "SessionNotPaused",
		Message: "session is not paused",
	}
	ErrSessionExpired = &Error{
		Kind:    KindState,
		Code:    "SessionExpired",
		Message: "session exceeded its maximum duration",
	}
	ErrCashoutTooEarly = &Error{
		Kind:    KindState,
		Code:    "CashoutTooEarly",
		Message: "minimum flip count for cashout not reached",
	}
	ErrNothingToCashOut = &Error{
		Kind:    KindState,
		Code:    "NothingToCashOut",
		Message: "cashout balance is zero",
	}
	ErrNoActiveConfig = &Error{
		Kind:    KindConfig,
		Code:    "NoActiveConfig",
		Message: "no active payout configuration for this currency",
	}
	ErrEmptyDenominationPool = &Error{
		Kind:    KindConfig,
		Code:    "EmptyDenominationPool",
		Message: "no active win denominations are eligible for this stake",
	}
	ErrLedgerFailure = &Error{
		Kind:    KindLedger,
		Code:    "LedgerFailure",
		Message: "ledger settlement failed, session state unchanged",
	}
)
