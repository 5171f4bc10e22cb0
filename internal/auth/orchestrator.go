package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sentra/authengine/internal/events"
	"github.com/sentra/authengine/internal/fingerprint"
	"github.com/sentra/authengine/internal/metrics"
	"github.com/sentra/authengine/internal/ratelimit"
	"github.com/sentra/authengine/internal/risk"
	"github.com/sentra/authengine/internal/session"
	"github.com/sentra/authengine/internal/verify"
	"github.com/sentra/authengine/pkg/logger"
	"github.com/sentra/authengine/pkg/utils"
)

// Narrow verifier contracts so the orchestrator never sees storage or
// transport details.
type PinChecker interface {
	Verify(ctx context.Context, identity, pin string) verify.Result
}

type SmsChecker interface {
	Verify(ctx context.Context, identity, code string) verify.Result
}

type PushResolver interface {
	Complete(ctx context.Context, token string, approved bool) verify.Result
}

type PlatformChecker interface {
	FinishAuthentication(ctx context.Context, identity string, assertion json.RawMessage) verify.Result
}

type TotpChecker interface {
	Verify(ctx context.Context, identity, code string) verify.Result
}

// EventRecorder is the fire-and-forget audit boundary.
type EventRecorder interface {
	RecordAsync(entry events.Entry)
}

// Request is one authentication attempt. Method may be empty, in which case
// the chain's first method is tried. Exactly one proof field matching the
// method is expected.
type Request struct {
	Identity       string
	Method         Method
	ChallengeToken string

	Pin          string
	Code         string
	PushToken    string
	PushApproved bool
	Assertion    json.RawMessage

	Fingerprint *fingerprint.Fingerprint
}

type Orchestrator struct {
	Limiter  *ratelimit.Limiter
	Sessions *session.Manager
	Chain    Chain

	Platform PlatformChecker
	Pin      PinChecker
	Sms      SmsChecker
	Push     PushResolver
	Totp     TotpChecker

	Fraud  risk.FraudAssessor
	Events EventRecorder

	now func() time.Time
}

func NewOrchestrator(limiter *ratelimit.Limiter, sessions *session.Manager, chain Chain) *Orchestrator {
	return &Orchestrator{
		Limiter:  limiter,
		Sessions: sessions,
		Chain:    chain,
		now:      time.Now,
	}
}

// Authenticate runs one attempt through the state machine: rate limit,
// optional fraud veto, verifier dispatch, session mint or fallback.
func (o *Orchestrator) Authenticate(ctx context.Context, req Request) Result {
	start := o.now()

	method := req.Method
	if method == "" {
		method = o.Chain.First()
	}

	var pendingJTI string
	if req.ChallengeToken != "" {
		bound, jti, ok := o.checkChallengeToken(req)
		if !ok {
			return o.finish(Result{
				Method:     method,
				ErrorKind:  verify.KindChallengeExpired,
				NextAction: ActionRetry,
			}, start)
		}
		method = bound
		pendingJTI = jti
	}

	decision := o.Limiter.CheckAndConsume(req.Identity)
	if !decision.Allowed {
		metrics.RecordRateLimited()
		o.record(req, "rate_limited", method, nil)
		return o.finish(Result{
			Method:           method,
			ErrorKind:        KindRateLimitExceeded,
			NextAction:       ActionWait,
			LockoutRemaining: decision.RemainingLockout,
		}, start)
	}

	var riskScore *float64
	if o.Fraud != nil && req.Fingerprint != nil {
		assessment, err := o.Fraud.AssessFraudSignal(ctx, req.Identity, *req.Fingerprint)
		if err != nil {
			logger.ErrorWithIdentity(req.Identity, "fraud_signal_failed", err, nil)
		} else {
			riskScore = &assessment.RiskScore
			metrics.ObserveRiskScore(assessment.RiskScore)
			if assessment.ShouldBlock {
				metrics.RecordBlocked()
				o.recordWithMetadata(req, "fraud_detected", method, riskScore, map[string]interface{}{
					"anomalies": assessment.Anomalies,
				})
				o.record(req, "account_locked", method, riskScore)
				return o.finish(Result{
					Method:     method,
					ErrorKind:  KindBlocked,
					NextAction: ActionContactSupport,
				}, start)
			}
		}
	}

	// The token is burned only once a verifier actually runs. A rate-limited
	// or blocked attempt keeps it usable, so the caller can retry after the
	// window without losing their place in the chain. The consume is atomic:
	// of two concurrent requests carrying the same token, exactly one
	// reaches a verifier.
	if pendingJTI != "" && !utils.ConsumeJTI(pendingJTI) {
		return o.finish(Result{
			Method:     method,
			ErrorKind:  verify.KindChallengeExpired,
			NextAction: ActionRetry,
		}, start)
	}

	res := o.dispatch(ctx, method, req)

	if res.Success {
		record, err := o.Sessions.Create(ctx, req.Identity, string(method))
		if err != nil {
			logger.ErrorWithIdentity(req.Identity, "session_mint_failed", err, nil)
			metrics.RecordAuthAttempt(string(method), "error")
			return o.finish(Result{
				Method:     method,
				ErrorKind:  verify.KindProviderFailure,
				NextAction: ActionRetry,
			}, start)
		}

		metrics.RecordAuthAttempt(string(method), "success")
		metrics.SetActiveSessions(o.Sessions.ActiveCount())
		o.record(req, "auth_success", method, riskScore)
		return o.finish(Result{
			Method:       method,
			Success:      true,
			SessionToken: record.Token,
		}, start)
	}

	if res.Kind == verify.KindCredentialLockedOut {
		metrics.RecordLockout(string(method))
	}
	metrics.RecordAuthAttempt(string(method), "failure")
	o.record(req, "auth_failure", method, riskScore)

	result := Result{
		Method:           method,
		ErrorKind:        res.Kind,
		LockoutRemaining: res.RemainingLockout,
	}

	next, hasNext := o.nextAfter(method, res.Kind)
	result.NextAction = hintFor(res.Kind, hasNext)
	if hasNext {
		result.RequiresAction = &next
		token, err := utils.GenerateChallengeToken(req.Identity, string(next))
		if err != nil {
			logger.ErrorWithIdentity(req.Identity, "challenge_token_mint_failed", err, nil)
		} else {
			result.ChallengeToken = token
		}
	}
	return o.finish(result, start)
}

func (o *Orchestrator) dispatch(ctx context.Context, method Method, req Request) verify.Result {
	switch method {
	case MethodPlatform:
		if o.Platform == nil {
			return verify.Result{Kind: verify.KindTransportUnavailable}
		}
		return o.Platform.FinishAuthentication(ctx, req.Identity, req.Assertion)
	case MethodPin:
		if o.Pin == nil {
			return verify.Result{Kind: verify.KindTransportUnavailable}
		}
		return o.Pin.Verify(ctx, req.Identity, req.Pin)
	case MethodSms:
		if o.Sms == nil {
			return verify.Result{Kind: verify.KindTransportUnavailable}
		}
		return o.Sms.Verify(ctx, req.Identity, req.Code)
	case MethodPush:
		if o.Push == nil {
			return verify.Result{Kind: verify.KindTransportUnavailable}
		}
		return o.Push.Complete(ctx, req.PushToken, req.PushApproved)
	case MethodTotp:
		if o.Totp == nil {
			return verify.Result{Kind: verify.KindTransportUnavailable}
		}
		return o.Totp.Verify(ctx, req.Identity, req.Code)
	}
	return verify.Result{Kind: verify.KindTransportUnavailable}
}

// nextAfter picks the fallback method. A method-level lockout still falls
// through to the next method; only format errors keep the caller on the
// same method, since the credential itself was never judged.
func (o *Orchestrator) nextAfter(method Method, kind verify.Kind) (Method, bool) {
	if kind == verify.KindInvalidFormat {
		return "", false
	}
	return o.Chain.Next(method)
}

// checkChallengeToken validates a pending-auth token minted by an earlier
// fallback step and returns its bound method and JTI. Tokens are bound to
// identity and method; the single-use consume happens later, just before
// verifier dispatch.
func (o *Orchestrator) checkChallengeToken(req Request) (Method, string, bool) {
	claims, err := utils.ValidateChallengeToken(req.ChallengeToken)
	if err != nil {
		return "", "", false
	}
	if claims.Identity != req.Identity {
		return "", "", false
	}
	if !utils.IsJTIValid(claims.JTI) {
		return "", "", false
	}

	method, err := ParseMethod(claims.Method)
	if err != nil {
		return "", "", false
	}
	if req.Method != "" && req.Method != method {
		return "", "", false
	}
	return method, claims.JTI, true
}

func (o *Orchestrator) record(req Request, kind string, method Method, riskScore *float64) {
	o.recordWithMetadata(req, kind, method, riskScore, nil)
}

func (o *Orchestrator) recordWithMetadata(req Request, kind string, method Method, riskScore *float64, metadata map[string]interface{}) {
	if o.Events == nil {
		return
	}
	if req.Fingerprint != nil {
		if metadata == nil {
			metadata = map[string]interface{}{}
		}
		metadata["fingerprint_id"] = req.Fingerprint.ID
	}
	o.Events.RecordAsync(events.Entry{
		Identity:  req.Identity,
		EventKind: kind,
		Method:    string(method),
		RiskScore: riskScore,
		Metadata:  metadata,
	})
}

func (o *Orchestrator) finish(result Result, start time.Time) Result {
	result.ProcessingTime = o.now().Sub(start)
	return result
}
