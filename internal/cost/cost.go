package cost

import (
	"fmt"
	"strings"
)

// Per-second pricing in USD for supported video models.
var perSecondRates = map[string]float64{
	"veo-3.1-generate-preview":      0.40,
	"veo-3.1-fast-generate-preview": 0.15,
	"seedance-1-5-pro-251215":       0.026,
}

// Fallback rates per provider for model names not in the table.
var providerFallbackRates = map[string]float64{
	"veo":      0.40,
	"seedance": 0.026,
}

// Rate returns the per-second price for a model, falling back to the
// provider's most expensive known rate so estimates err high.
func Rate(provider, model string) (float64, error) {
	if rate, ok := perSecondRates[model]; ok {
		return rate, nil
	}
	if rate, ok := providerFallbackRates[provider]; ok {
		return rate, nil
	}
	return 0, fmt.Errorf("no pricing known for provider %q model %q", provider, model)
}

// Breakdown details the cost of generating all clips for a run.
type Breakdown struct {
	Provider       string
	Model          string
	SceneCount     int
	SecondsPerClip int
	RatePerSecond  float64
	Total          float64
}

// Estimate computes the full generation cost for sceneCount clips of
// secondsPerClip seconds each.
func Estimate(provider, model string, sceneCount, secondsPerClip int) (Breakdown, error) {
	if sceneCount <= 0 {
		return Breakdown{}, fmt.Errorf("scene count must be positive, got %d", sceneCount)
	}
	if secondsPerClip <= 0 {
		return Breakdown{}, fmt.Errorf("clip duration must be positive, got %d", secondsPerClip)
	}
	rate, err := Rate(provider, model)
	if err != nil {
		return Breakdown{}, err
	}
	return Breakdown{
		Provider:       provider,
		Model:          model,
		SceneCount:     sceneCount,
		SecondsPerClip: secondsPerClip,
		RatePerSecond:  rate,
		Total:          rate * float64(sceneCount) * float64(secondsPerClip),
	}, nil
}

// ActualCost computes what completed clips cost.
func (b Breakdown) ActualCost(completedClips int) float64 {
	if completedClips < 0 {
		return 0
	}
	return b.RatePerSecond * float64(completedClips) * float64(b.SecondsPerClip)
}

// FormatSummary renders the breakdown for the pre-generation confirmation
// prompt.
func (b Breakdown) FormatSummary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Provider:        %s\n", b.Provider)
	fmt.Fprintf(&sb, "Model:           %s\n", b.Model)
	fmt.Fprintf(&sb, "Scenes:          %d x %ds\n", b.SceneCount, b.SecondsPerClip)
	fmt.Fprintf(&sb, "Rate:            $%.3f/second\n", b.RatePerSecond)
	fmt.Fprintf(&sb, "Estimated total: $%.2f", b.Total)
	return sb.String()
}
