// Package fingerprint derives a stable device identifier and a confidence
// score from a set of optional environment signals.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Fingerprint is the derived identifier plus the raw signals it was computed
// from. It is regenerated per authentication unless explicitly cached by the
// caller.
type Fingerprint struct {
	ID         string              `json:"id"`
	RawSignals map[Category]Signal `json:"rawSignals"`
	Confidence float64             `json:"confidence"`
	CreatedAt  time.Time           `json:"createdAt"`
}

// degenerateSentinels are values a probe reports when it technically ran but
// produced nothing identifying. They still participate in ID derivation (two
// devices failing the same probe the same way is itself a signal) but add no
// confidence.
var degenerateSentinels = map[string]bool{
	"":            true,
	"error":       true,
	"unsupported": true,
	"denied":      true,
}

type Generator struct {
	salt string
	now  func() time.Time
}

func NewGenerator(salt string) *Generator {
	return &Generator{salt: salt, now: time.Now}
}

// Generate collects every signal category from the provider and derives the
// fingerprint. Individual probes may be absent; only a hashing failure would
// be fatal, and sha256 over an in-memory string cannot fail.
func (g *Generator) Generate(provider SignalProvider) Fingerprint {
	signals := collect(provider)

	var sb strings.Builder
	sb.WriteString(g.salt)
	for _, category := range categories {
		sb.WriteByte('|')
		sb.WriteString(string(category))
		sb.WriteByte('=')
		if s := signals[category]; s.Present {
			sb.WriteString(s.Value)
		}
	}

	sum := sha256.Sum256([]byte(sb.String()))

	confidence := 0.0
	for _, category := range categories {
		s := signals[category]
		if s.Present && !degenerateSentinels[strings.ToLower(strings.TrimSpace(s.Value))] {
			confidence += confidenceWeights[category]
		}
	}
	if confidence > 1 {
		confidence = 1
	}

	return Fingerprint{
		ID:         hex.EncodeToString(sum[:]),
		RawSignals: signals,
		Confidence: confidence,
		CreatedAt:  g.now().UTC(),
	}
}

// Signal accessors used by the risk layer.

func (f Fingerprint) Signal(c Category) Signal {
	return f.RawSignals[c]
}

func (f Fingerprint) Has(c Category) bool {
	s, ok := f.RawSignals[c]
	return ok && s.Present && !degenerateSentinels[strings.ToLower(strings.TrimSpace(s.Value))]
}
