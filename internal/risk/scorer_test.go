package risk

import (
	"testing"

	"github.com/sentra/authengine/internal/fingerprint"
)

func cleanFixture() fingerprint.StaticProvider {
	return fingerprint.StaticProvider{Signals: map[fingerprint.Category]fingerprint.Signal{
		fingerprint.CategoryUserAgent:    fingerprint.Present("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)"),
		fingerprint.CategoryScreen:       fingerprint.Present("2560x1440x24"),
		fingerprint.CategoryTimezone:     fingerprint.Present("America/Sao_Paulo"),
		fingerprint.CategoryLanguages:    fingerprint.Present("pt-BR,en-US"),
		fingerprint.CategoryPlatform:     fingerprint.Present("MacIntel"),
		fingerprint.CategoryHardware:     fingerprint.Present("cores=8;memory=16"),
		fingerprint.CategoryRenderEngine: fingerprint.Present("Apple Inc.|Apple M1"),
		fingerprint.CategoryCanvasDigest: fingerprint.Present("c1a9e0f2b4d6"),
		fingerprint.CategoryAudioDigest:  fingerprint.Present("124.0434752"),
		fingerprint.CategoryFonts:        fingerprint.Present("Arial,Helvetica,Menlo"),
		fingerprint.CategoryPlugins:      fingerprint.Present("internal-pdf-viewer"),
	}}
}

func generate(t *testing.T, p fingerprint.StaticProvider) fingerprint.Fingerprint {
	t.Helper()
	return fingerprint.NewGenerator("test-salt").Generate(p)
}

func TestCleanDeviceScoresLow(t *testing.T) {
	a := DefaultScorer().Assess(generate(t, cleanFixture()))
	if a.Score != 0 {
		t.Fatalf("expected score 0 for clean device, got %v (%v)", a.Score, a.Reasons)
	}
	if a.Level != LevelLow {
		t.Fatalf("expected low level, got %s", a.Level)
	}
	if len(a.Reasons) != 0 {
		t.Fatalf("expected no reasons, got %v", a.Reasons)
	}
}

func TestAnonymityMarkerRaisesScore(t *testing.T) {
	fixture := cleanFixture()
	fixture.Signals[fingerprint.CategoryUserAgent] = fingerprint.Present("Mozilla/5.0 TorBrowser/13.0")

	a := DefaultScorer().Assess(generate(t, fixture))
	if a.Score != 0.3 {
		t.Fatalf("expected score 0.3, got %v", a.Score)
	}
	if a.Level != LevelMedium {
		t.Fatalf("expected medium level, got %s", a.Level)
	}
	if len(a.Reasons) != 1 {
		t.Fatalf("expected one reason, got %v", a.Reasons)
	}
}

func TestTinyResolutionRaisesScore(t *testing.T) {
	fixture := cleanFixture()
	fixture.Signals[fingerprint.CategoryScreen] = fingerprint.Present("640x480x24")

	a := DefaultScorer().Assess(generate(t, fixture))
	if a.Score != 0.2 {
		t.Fatalf("expected score 0.2, got %v (%v)", a.Score, a.Reasons)
	}
}

func TestMissingSignalsStack(t *testing.T) {
	fixture := cleanFixture()
	fixture.Signals[fingerprint.CategoryHardware] = fingerprint.Absent()
	fixture.Signals[fingerprint.CategoryRenderEngine] = fingerprint.Absent()

	a := DefaultScorer().Assess(generate(t, fixture))
	// missing memory 0.1 + missing renderer 0.1
	if a.Score != 0.2 {
		t.Fatalf("expected score 0.2, got %v (%v)", a.Score, a.Reasons)
	}
	if len(a.Reasons) != 2 {
		t.Fatalf("expected two reasons, got %v", a.Reasons)
	}
}

func TestLowConfidenceRaisesScore(t *testing.T) {
	// Keep only user agent and screen: confidence 0.25, resolution fine.
	fixture := fingerprint.StaticProvider{Signals: map[fingerprint.Category]fingerprint.Signal{
		fingerprint.CategoryUserAgent: fingerprint.Present("Mozilla/5.0"),
		fingerprint.CategoryScreen:    fingerprint.Present("1920x1080x24"),
	}}

	a := DefaultScorer().Assess(generate(t, fixture))
	// low confidence 0.3 + missing memory 0.1 + missing renderer 0.1
	if a.Score != 0.5 {
		t.Fatalf("expected score 0.5, got %v (%v)", a.Score, a.Reasons)
	}
	if a.Level != LevelMedium {
		t.Fatalf("expected medium level, got %s", a.Level)
	}
}

func TestScoreIsMonotonic(t *testing.T) {
	scorer := DefaultScorer()
	baseScore := scorer.Assess(generate(t, cleanFixture())).Score

	degrade := []struct {
		name   string
		mutate func(fingerprint.StaticProvider)
	}{
		{"anonymity marker", func(p fingerprint.StaticProvider) {
			p.Signals[fingerprint.CategoryUserAgent] = fingerprint.Present("vpn-client/2.1")
		}},
		{"tiny resolution", func(p fingerprint.StaticProvider) {
			p.Signals[fingerprint.CategoryScreen] = fingerprint.Present("320x240")
		}},
		{"missing memory", func(p fingerprint.StaticProvider) {
			p.Signals[fingerprint.CategoryHardware] = fingerprint.Present("cores=8")
		}},
		{"missing renderer", func(p fingerprint.StaticProvider) {
			p.Signals[fingerprint.CategoryRenderEngine] = fingerprint.Absent()
		}},
		{"low confidence", func(p fingerprint.StaticProvider) {
			// Keep user agent, hardware and renderer: confidence 0.40.
			for _, c := range []fingerprint.Category{
				fingerprint.CategoryScreen,
				fingerprint.CategoryTimezone,
				fingerprint.CategoryLanguages,
				fingerprint.CategoryPlatform,
				fingerprint.CategoryCanvasDigest,
				fingerprint.CategoryAudioDigest,
				fingerprint.CategoryFonts,
				fingerprint.CategoryPlugins,
			} {
				p.Signals[c] = fingerprint.Absent()
			}
		}},
	}

	for _, tc := range degrade {
		fixture := cleanFixture()
		tc.mutate(fixture)
		a := scorer.Assess(generate(t, fixture))
		if a.Score < baseScore {
			t.Fatalf("%s decreased the score: %v < %v", tc.name, a.Score, baseScore)
		}
		if a.Score <= baseScore {
			t.Fatalf("%s did not raise the score above the clean baseline: %v", tc.name, a.Score)
		}
	}

	// Indicators stack: every additional one keeps the score non-decreasing.
	stacked := cleanFixture()
	prev := baseScore
	for _, tc := range degrade {
		tc.mutate(stacked)
		score := scorer.Assess(generate(t, stacked)).Score
		if score < prev {
			t.Fatalf("adding %s decreased the stacked score: %v < %v", tc.name, score, prev)
		}
		prev = score
	}
}

func TestScoreClamped(t *testing.T) {
	a := DefaultScorer().Assess(generate(t, fingerprint.StaticProvider{
		Signals: map[fingerprint.Category]fingerprint.Signal{
			fingerprint.CategoryUserAgent: fingerprint.Present("tor proxy headless"),
			fingerprint.CategoryScreen:    fingerprint.Present("1x1"),
		},
	}))
	if a.Score > 1 {
		t.Fatalf("score above 1: %v", a.Score)
	}
	if a.Level != LevelHigh {
		t.Fatalf("expected high level, got %s", a.Level)
	}
}

func TestConfigurableThresholds(t *testing.T) {
	strict := NewScorer(0.1, 0.2)
	fixture := cleanFixture()
	fixture.Signals[fingerprint.CategoryScreen] = fingerprint.Present("640x480")

	a := strict.Assess(generate(t, fixture))
	if a.Level != LevelHigh {
		t.Fatalf("expected high level with strict thresholds, got %s", a.Level)
	}
}
