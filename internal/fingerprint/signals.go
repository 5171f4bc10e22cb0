package fingerprint

// Signal is one collected environment value. Absent signals are normal; a
// probe that fails or is unsupported reports Present=false instead of an
// error.
type Signal struct {
	Value   string `json:"value"`
	Present bool   `json:"present"`
}

func Present(value string) Signal {
	return Signal{Value: value, Present: true}
}

func Absent() Signal {
	return Signal{}
}

// Category identifies one fingerprint signal class. The order of the
// categories slice below is the canonical concatenation order for ID
// derivation and must not change between releases.
type Category string

const (
	CategoryUserAgent    Category = "user_agent"
	CategoryScreen       Category = "screen"
	CategoryTimezone     Category = "timezone"
	CategoryLanguages    Category = "languages"
	CategoryPlatform     Category = "platform"
	CategoryHardware     Category = "hardware"
	CategoryRenderEngine Category = "render_engine"
	CategoryCanvasDigest Category = "canvas_digest"
	CategoryAudioDigest  Category = "audio_digest"
	CategoryFonts        Category = "fonts"
	CategoryPlugins      Category = "plugins"
)

var categories = []Category{
	CategoryUserAgent,
	CategoryScreen,
	CategoryTimezone,
	CategoryLanguages,
	CategoryPlatform,
	CategoryHardware,
	CategoryRenderEngine,
	CategoryCanvasDigest,
	CategoryAudioDigest,
	CategoryFonts,
	CategoryPlugins,
}

// confidenceWeights sum to 1.0 across the categories. A category contributes
// its weight only when its signal is present and non-degenerate.
var confidenceWeights = map[Category]float64{
	CategoryUserAgent:    0.15,
	CategoryScreen:       0.10,
	CategoryTimezone:     0.10,
	CategoryLanguages:    0.05,
	CategoryPlatform:     0.05,
	CategoryHardware:     0.10,
	CategoryRenderEngine: 0.15,
	CategoryCanvasDigest: 0.15,
	CategoryAudioDigest:  0.10,
	CategoryFonts:        0.10,
	CategoryPlugins:      0.05,
}

// SignalProvider supplies one value per signal category. The production
// implementation binds to whatever runtime collected the signals (typically a
// client payload); tests supply fixed fixtures.
type SignalProvider interface {
	UserAgent() Signal
	Screen() Signal
	Timezone() Signal
	Languages() Signal
	Platform() Signal
	Hardware() Signal
	RenderEngine() Signal
	CanvasDigest() Signal
	AudioDigest() Signal
	Fonts() Signal
	Plugins() Signal
}

// StaticProvider is a SignalProvider over a fixed map, used both for client
// payloads delivered over the wire and for test fixtures.
type StaticProvider struct {
	Signals map[Category]Signal
}

func (p StaticProvider) get(c Category) Signal {
	if s, ok := p.Signals[c]; ok {
		return s
	}
	return Absent()
}

func (p StaticProvider) UserAgent() Signal    { return p.get(CategoryUserAgent) }
func (p StaticProvider) Screen() Signal       { return p.get(CategoryScreen) }
func (p StaticProvider) Timezone() Signal     { return p.get(CategoryTimezone) }
func (p StaticProvider) Languages() Signal    { return p.get(CategoryLanguages) }
func (p StaticProvider) Platform() Signal     { return p.get(CategoryPlatform) }
func (p StaticProvider) Hardware() Signal     { return p.get(CategoryHardware) }
func (p StaticProvider) RenderEngine() Signal { return p.get(CategoryRenderEngine) }
func (p StaticProvider) CanvasDigest() Signal { return p.get(CategoryCanvasDigest) }
func (p StaticProvider) AudioDigest() Signal  { return p.get(CategoryAudioDigest) }
func (p StaticProvider) Fonts() Signal        { return p.get(CategoryFonts) }
func (p StaticProvider) Plugins() Signal      { return p.get(CategoryPlugins) }

// ProviderFromValues builds a StaticProvider from a wire payload keyed by
// category name. Unknown keys are ignored; missing categories stay absent.
func ProviderFromValues(values map[string]string) StaticProvider {
	signals := make(map[Category]Signal, len(values))
	for _, c := range categories {
		if v, ok := values[string(c)]; ok {
			signals[c] = Present(v)
		}
	}
	return StaticProvider{Signals: signals}
}

func collect(p SignalProvider) map[Category]Signal {
	return map[Category]Signal{
		CategoryUserAgent:    p.UserAgent(),
		CategoryScreen:       p.Screen(),
		CategoryTimezone:     p.Timezone(),
		CategoryLanguages:    p.Languages(),
		CategoryPlatform:     p.Platform(),
		CategoryHardware:     p.Hardware(),
		CategoryRenderEngine: p.RenderEngine(),
		CategoryCanvasDigest: p.CanvasDigest(),
		CategoryAudioDigest:  p.AudioDigest(),
		CategoryFonts:        p.Fonts(),
		CategoryPlugins:      p.Plugins(),
	}
}
