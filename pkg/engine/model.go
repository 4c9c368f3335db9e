package engine

// ModelInfo describes a model offered by a provider.
type ModelInfo struct {
	ID                 string                 `json:"id" yaml:"id"`
	Name               string                 `json:"name,omitempty" yaml:"name,omitempty"`
	Description        string                 `json:"description,omitempty" yaml:"description,omitempty"`
	ContextWindow      int                    `json:"context_window,omitempty" yaml:"context_window,omitempty"`
	MaxOutputTokens    int                    `json:"max_output_tokens,omitempty" yaml:"max_output_tokens,omitempty"`
	MaxTemperature     float64                `json:"max_temperature,omitempty" yaml:"max_temperature,omitempty"`
	DefaultTemperature float64                `json:"default_temperature,omitempty" yaml:"default_temperature,omitempty"`
	Vision             bool                   `json:"vision,omitempty" yaml:"vision,omitempty"`
	Extra              map[string]interface{} `json:"extra,omitempty" yaml:"extra,omitempty"`
}

func (m ModelInfo) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}

// MaxTokensOr returns the model output limit, or def when unknown.
func (m *ModelInfo) MaxTokensOr(def int) int {
	if m == nil || m.MaxOutputTokens <= 0 {
		return def
	}
	return m.MaxOutputTokens
}
