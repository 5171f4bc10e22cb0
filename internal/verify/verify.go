// Package verify implements the per-method credential verifiers. Each
// verifier validates a single method's proof against stored credentials and
// injected external providers; none of them knows about the fallback chain.
package verify

import "time"

// Kind classifies a non-success verification outcome. Kinds are returned as
// values, never panicked across the API.
type Kind string

const (
	KindInvalidFormat            Kind = "invalid_credential_format"
	KindCredentialMismatch       Kind = "credential_mismatch"
	KindCredentialLockedOut      Kind = "credential_locked_out"
	KindChallengeExpired         Kind = "challenge_expired"
	KindChallengeAlreadyResolved Kind = "challenge_already_resolved"
	KindTransportUnavailable     Kind = "transport_unavailable"
	KindProviderFailure          Kind = "provider_failure"
)

// Result is a single verifier decision.
type Result struct {
	Success          bool
	Kind             Kind
	RemainingLockout time.Duration
}

func ok() Result {
	return Result{Success: true}
}

func fail(kind Kind) Result {
	return Result{Kind: kind}
}
