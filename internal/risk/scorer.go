// Package risk turns a device fingerprint into an additive heuristic score
// with human-readable reasons. Scoring is pure: no I/O, no mutation, the same
// fingerprint always yields the same assessment.
package risk

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sentra/authengine/internal/fingerprint"
)

type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

type Assessment struct {
	Score   float64  `json:"score"`
	Level   Level    `json:"level"`
	Reasons []string `json:"reasons"`
}

// Indicator weights. Kept small and non-overlapping so the raw sum rarely
// approaches 1; Assess still clamps to [0,1].
const (
	weightAnonymityMarker   = 0.3
	weightTinyResolution    = 0.2
	weightLowConfidence     = 0.3
	weightMissingMemory     = 0.1
	weightMissingRenderer   = 0.1
	lowConfidenceThreshold  = 0.5
	minResolutionWidth      = 800
	minResolutionHeight     = 600
)

var anonymityMarkers = []string{"tor", "vpn", "proxy", "anonym", "headless", "phantomjs"}

type Scorer struct {
	mediumThreshold float64
	highThreshold   float64
}

func NewScorer(mediumThreshold, highThreshold float64) *Scorer {
	return &Scorer{mediumThreshold: mediumThreshold, highThreshold: highThreshold}
}

// DefaultScorer uses the standard low < 0.3 <= medium < 0.6 <= high bands.
func DefaultScorer() *Scorer {
	return NewScorer(0.3, 0.6)
}

func (s *Scorer) Assess(fp fingerprint.Fingerprint) Assessment {
	score := 0.0
	var reasons []string

	if marker := anonymityMarker(fp); marker != "" {
		score += weightAnonymityMarker
		reasons = append(reasons, fmt.Sprintf("anonymity marker %q in client identity", marker))
	}

	if w, h, ok := parseResolution(fp.Signal(fingerprint.CategoryScreen).Value); ok {
		if w < minResolutionWidth || h < minResolutionHeight {
			score += weightTinyResolution
			reasons = append(reasons, fmt.Sprintf("resolution %dx%d below minimum floor", w, h))
		}
	}

	if fp.Confidence < lowConfidenceThreshold {
		score += weightLowConfidence
		reasons = append(reasons, fmt.Sprintf("low fingerprint confidence %.2f", fp.Confidence))
	}

	if !hasMemorySignal(fp) {
		score += weightMissingMemory
		reasons = append(reasons, "hardware memory signal missing")
	}

	if !fp.Has(fingerprint.CategoryRenderEngine) {
		score += weightMissingRenderer
		reasons = append(reasons, "render engine vendor missing")
	}

	if score > 1 {
		score = 1
	}

	return Assessment{
		Score:   score,
		Level:   s.level(score),
		Reasons: reasons,
	}
}

func (s *Scorer) level(score float64) Level {
	switch {
	case score >= s.highThreshold:
		return LevelHigh
	case score >= s.mediumThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}

func anonymityMarker(fp fingerprint.Fingerprint) string {
	haystack := strings.ToLower(
		fp.Signal(fingerprint.CategoryUserAgent).Value + " " +
			fp.Signal(fingerprint.CategoryPlatform).Value,
	)
	for _, marker := range anonymityMarkers {
		if strings.Contains(haystack, marker) {
			return marker
		}
	}
	return ""
}

// parseResolution expects "WxH" or "WxHxDepth".
func parseResolution(value string) (int, int, bool) {
	parts := strings.Split(value, "x")
	if len(parts) < 2 {
		return 0, 0, false
	}
	w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errW != nil || errH != nil {
		return 0, 0, false
	}
	return w, h, true
}

// hasMemorySignal checks the hardware category for a memory hint, e.g.
// "cores=8;memory=16".
func hasMemorySignal(fp fingerprint.Fingerprint) bool {
	if !fp.Has(fingerprint.CategoryHardware) {
		return false
	}
	return strings.Contains(strings.ToLower(fp.Signal(fingerprint.CategoryHardware).Value), "memory=")
}
