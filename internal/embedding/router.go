package embedding

import (
	embeddingopts "github.com/kart-io/cortex-x/pkg/options/embedding"
)

// route returns the models serving the given profile, in configuration
// order. When no model lists the profile, the primary models with an empty
// profile set act as the wildcard fallback.
func route(models []embeddingopts.ModelOptions, profile string) []embeddingopts.ModelOptions {
	var active []embeddingopts.ModelOptions
	for _, m := range models {
		for _, p := range m.Profiles {
			if p == profile {
				active = append(active, m)
				break
			}
		}
	}
	if len(active) > 0 {
		return active
	}

	for _, m := range models {
		if m.Role == embeddingopts.RolePrimary && len(m.Profiles) == 0 {
			active = append(active, m)
		}
	}
	return active
}

// truncateForModel caps text at MaxInputTokens worth of characters (four
// characters per token) and reports whether it cut anything.
func truncateForModel(text string, m embeddingopts.ModelOptions) (string, bool) {
	if m.MaxInputTokens <= 0 {
		return text, false
	}
	maxChars := m.MaxInputTokens * 4
	if len(text) <= maxChars {
		return text, false
	}
	// Do not cut inside a multi-byte rune.
	for maxChars > 0 && text[maxChars]&0xC0 == 0x80 {
		maxChars--
	}
	return text[:maxChars], true
}
