package auth

import (
	"time"

	"github.com/sentra/authengine/internal/verify"
)

// Kinds produced by the orchestrator itself, on top of the verifier
// taxonomy.
const (
	KindRateLimitExceeded verify.Kind = "rate_limit_exceeded"
	KindBlocked           verify.Kind = "blocked"
)

// NextAction tells a presentation layer how to react without inspecting the
// error kind.
type NextAction string

const (
	ActionRetry          NextAction = "retry"
	ActionSwitchMethod   NextAction = "switch_method"
	ActionWait           NextAction = "wait"
	ActionContactSupport NextAction = "contact_support"
)

// Result is the outcome of one authentication attempt. Exactly one of
// SessionToken and ErrorKind is set on terminal outcomes; a non-terminal
// fallback carries ErrorKind plus RequiresAction and a challenge token for
// the next step.
type Result struct {
	Method           Method        `json:"method"`
	Success          bool          `json:"success"`
	ErrorKind        verify.Kind   `json:"errorKind,omitempty"`
	RequiresAction   *Method       `json:"requiresAction,omitempty"`
	NextAction       NextAction    `json:"nextAction,omitempty"`
	SessionToken     string        `json:"sessionToken,omitempty"`
	ChallengeToken   string        `json:"challengeToken,omitempty"`
	LockoutRemaining time.Duration `json:"lockoutRemaining,omitempty"`
	ProcessingTime   time.Duration `json:"processingTime"`
}

// hintFor maps an error kind to the caller's next move. Lockouts and rate
// limits mean wait; transport problems mean switch; a block is out-of-band.
func hintFor(kind verify.Kind, hasFallback bool) NextAction {
	switch kind {
	case KindRateLimitExceeded, verify.KindCredentialLockedOut:
		return ActionWait
	case KindBlocked:
		return ActionContactSupport
	case verify.KindTransportUnavailable:
		if hasFallback {
			return ActionSwitchMethod
		}
		return ActionContactSupport
	case verify.KindInvalidFormat:
		return ActionRetry
	case verify.KindChallengeExpired, verify.KindChallengeAlreadyResolved:
		return ActionRetry
	case verify.KindCredentialMismatch, verify.KindProviderFailure:
		if hasFallback {
			return ActionSwitchMethod
		}
		return ActionRetry
	}
	return ActionRetry
}
