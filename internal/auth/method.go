// Package auth coordinates the method fallback chain: rate limit first,
// optional fraud veto, then the method-specific verifier, then a session on
// success.
package auth

import (
	"fmt"
	"strings"
)

type Method string

const (
	MethodPlatform Method = "platform"
	MethodPin      Method = "pin"
	MethodSms      Method = "sms"
	MethodPush     Method = "push"
	MethodTotp     Method = "totp"
)

func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case MethodPlatform:
		return MethodPlatform, nil
	case MethodPin:
		return MethodPin, nil
	case MethodSms:
		return MethodSms, nil
	case MethodPush:
		return MethodPush, nil
	case MethodTotp:
		return MethodTotp, nil
	}
	return "", fmt.Errorf("unknown authentication method %q", s)
}

// Chain is the ordered fallback sequence. The default order is
// platform, pin, sms, push.
type Chain struct {
	methods []Method
}

func NewChain(methods []string) (Chain, error) {
	if len(methods) == 0 {
		return Chain{}, fmt.Errorf("fallback chain must not be empty")
	}
	parsed := make([]Method, 0, len(methods))
	seen := map[Method]bool{}
	for _, raw := range methods {
		m, err := ParseMethod(raw)
		if err != nil {
			return Chain{}, err
		}
		if seen[m] {
			return Chain{}, fmt.Errorf("method %q appears twice in fallback chain", m)
		}
		seen[m] = true
		parsed = append(parsed, m)
	}
	return Chain{methods: parsed}, nil
}

func DefaultChain() Chain {
	return Chain{methods: []Method{MethodPlatform, MethodPin, MethodSms, MethodPush}}
}

// First is the method tried when the caller states no preference.
func (c Chain) First() Method {
	return c.methods[0]
}

// Next returns the fallback after the given method, or false when the chain
// is exhausted. A method outside the chain has no fallback.
func (c Chain) Next(m Method) (Method, bool) {
	for i, cur := range c.methods {
		if cur == m {
			if i+1 < len(c.methods) {
				return c.methods[i+1], true
			}
			return "", false
		}
	}
	return "", false
}

// Contains reports whether the method participates in the chain.
func (c Chain) Contains(m Method) bool {
	for _, cur := range c.methods {
		if cur == m {
			return true
		}
	}
	return false
}

func (c Chain) Methods() []Method {
	out := make([]Method, len(c.methods))
	copy(out, c.methods)
	return out
}
