package fingerprint

import (
	"math"
	"testing"
)

func fullFixture() StaticProvider {
	return StaticProvider{Signals: map[Category]Signal{
		CategoryUserAgent:    Present("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)"),
		CategoryScreen:       Present("2560x1440x24"),
		CategoryTimezone:     Present("America/Sao_Paulo"),
		CategoryLanguages:    Present("pt-BR,en-US"),
		CategoryPlatform:     Present("MacIntel"),
		CategoryHardware:     Present("cores=8;memory=16"),
		CategoryRenderEngine: Present("Apple Inc.|Apple M1"),
		CategoryCanvasDigest: Present("c1a9e0f2b4d6"),
		CategoryAudioDigest:  Present("124.0434752"),
		CategoryFonts:        Present("Arial,Helvetica,Menlo"),
		CategoryPlugins:      Present("internal-pdf-viewer"),
	}}
}

func TestGenerateIsDeterministic(t *testing.T) {
	g := NewGenerator("test-salt")

	a := g.Generate(fullFixture())
	b := g.Generate(fullFixture())

	if a.ID != b.ID {
		t.Fatalf("same signals produced different IDs: %s vs %s", a.ID, b.ID)
	}
	if a.Confidence != b.Confidence {
		t.Fatalf("same signals produced different confidence: %v vs %v", a.Confidence, b.Confidence)
	}
}

func TestGenerateChangesWithAnySignal(t *testing.T) {
	g := NewGenerator("test-salt")
	base := g.Generate(fullFixture())

	for _, category := range categories {
		fixture := fullFixture()
		fixture.Signals[category] = Present("changed-value")
		changed := g.Generate(fixture)
		if changed.ID == base.ID {
			t.Fatalf("changing %s did not change the fingerprint ID", category)
		}
	}
}

func TestGenerateSaltChangesID(t *testing.T) {
	a := NewGenerator("salt-a").Generate(fullFixture())
	b := NewGenerator("salt-b").Generate(fullFixture())
	if a.ID == b.ID {
		t.Fatal("different salts produced the same ID")
	}
}

func TestConfidenceFullFixture(t *testing.T) {
	fp := NewGenerator("test-salt").Generate(fullFixture())
	if math.Abs(fp.Confidence-1.0) > 1e-9 {
		t.Fatalf("expected confidence 1.0 with all signals, got %v", fp.Confidence)
	}
}

func TestConfidenceDropsWithMissingSignals(t *testing.T) {
	g := NewGenerator("test-salt")

	fixture := fullFixture()
	fixture.Signals[CategoryCanvasDigest] = Absent()
	fixture.Signals[CategoryRenderEngine] = Absent()

	fp := g.Generate(fixture)
	if math.Abs(fp.Confidence-0.70) > 1e-9 {
		t.Fatalf("expected confidence 0.70, got %v", fp.Confidence)
	}
}

func TestDegenerateSignalCountsForIDButNotConfidence(t *testing.T) {
	g := NewGenerator("test-salt")

	fixture := fullFixture()
	fixture.Signals[CategoryCanvasDigest] = Present("error")
	fp := g.Generate(fixture)

	full := g.Generate(fullFixture())
	if fp.ID == full.ID {
		t.Fatal("degenerate canvas digest should still alter the ID")
	}
	if math.Abs(fp.Confidence-0.85) > 1e-9 {
		t.Fatalf("expected confidence 0.85 with degenerate canvas, got %v", fp.Confidence)
	}
}

func TestGenerateWithNoSignals(t *testing.T) {
	fp := NewGenerator("test-salt").Generate(StaticProvider{})
	if fp.ID == "" {
		t.Fatal("empty provider must still derive an ID")
	}
	if fp.Confidence != 0 {
		t.Fatalf("expected zero confidence, got %v", fp.Confidence)
	}
}

func TestWeightsSumToOne(t *testing.T) {
	sum := 0.0
	for _, w := range confidenceWeights {
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("weights sum to %v, want 1.0", sum)
	}
}
