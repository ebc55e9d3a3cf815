// Package llm provides model configuration, the Gemini client and the JSON
// completion capability used by deep scoring and resume tailoring.
package llm

// ModelTier selects how capable (and how expensive) a model a call gets.
type ModelTier string

const (
	// TierLite answers short structured questions such as deep match scores.
	TierLite ModelTier = "lite"
	// TierStandard rewrites resume sections for tailoring.
	TierStandard ModelTier = "standard"
)

// Provider names an LLM vendor.
type Provider string

// ProviderGemini is Google Gemini, the only provider wired today.
const ProviderGemini Provider = "gemini"

// DefaultTemperature keeps answers close to deterministic.
const DefaultTemperature float32 = 0.1

// Config maps tiers to concrete model names.
type Config struct {
	Provider    Provider             `json:"provider"`
	Models      map[ModelTier]string `json:"models,omitempty"`
	Temperature float32              `json:"temperature,omitempty"`
}

// DefaultConfig returns the Gemini model lineup.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
		},
		Temperature: DefaultTemperature,
	}
}

// Model resolves tier to a model name. A tier without its own entry borrows
// the standard model, then the lite one. It returns "" when nothing fits.
func (c *Config) Model(tier ModelTier) string {
	for _, t := range []ModelTier{tier, TierStandard, TierLite} {
		if name := c.Models[t]; name != "" {
			return name
		}
	}
	return ""
}

func (c *Config) temperature() float32 {
	if c.Temperature <= 0 {
		return DefaultTemperature
	}
	return c.Temperature
}
