// Package delivery holds the out-of-band transports the verifiers dispatch
// through. The log-backed implementations stand in for a real SMS gateway
// and push provider; deployments swap them by satisfying verify.CodeSender
// and verify.PushDispatcher.
package delivery

import (
	"context"

	"github.com/sentra/authengine/pkg/logger"
)

// LogCodeSender writes the delivery event to the structured log instead of
// an SMS gateway. The code itself is never logged.
type LogCodeSender struct{}

func (LogCodeSender) SendOneTimeCode(_ context.Context, identity, phone, code string) error {
	logger.InfoWithIdentity(identity, "one_time_code_dispatched", map[string]interface{}{
		"phone_suffix": phoneSuffix(phone),
		"code_length":  len(code),
	})
	return nil
}

// LogPushDispatcher records the challenge dispatch in the structured log.
type LogPushDispatcher struct{}

func (LogPushDispatcher) DispatchPushChallenge(_ context.Context, identity string, payload map[string]interface{}) error {
	logger.InfoWithIdentity(identity, "push_challenge_dispatched", map[string]interface{}{
		"payload_type": payload["type"],
	})
	return nil
}

func phoneSuffix(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return "..." + phone[len(phone)-4:]
}
