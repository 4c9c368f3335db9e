package anthropic

import "github.com/go-go-golems/basilisk/pkg/engine"

func models() []engine.ModelInfo {
	return []engine.ModelInfo{
		{
			ID:                 "claude-sonnet-4-20250514",
			Name:               "Claude Sonnet 4",
			Description:        "High intelligence and balanced performance",
			ContextWindow:      200000,
			MaxOutputTokens:    64000,
			MaxTemperature:     1,
			DefaultTemperature: 1,
			Vision:             true,
		},
		{
			ID:                 "claude-opus-4-20250514",
			Name:               "Claude Opus 4",
			Description:        "Most capable model for complex tasks",
			ContextWindow:      200000,
			MaxOutputTokens:    32000,
			MaxTemperature:     1,
			DefaultTemperature: 1,
			Vision:             true,
		},
		{
			ID:                 "claude-3-7-sonnet-latest",
			Name:               "Claude 3.7 Sonnet",
			Description:        "Extended thinking capable model",
			ContextWindow:      200000,
			MaxOutputTokens:    64000,
			MaxTemperature:     1,
			DefaultTemperature: 1,
			Vision:             true,
		},
		{
			ID:                 "claude-3-5-sonnet-latest",
			Name:               "Claude 3.5 Sonnet",
			ContextWindow:      200000,
			MaxOutputTokens:    8192,
			MaxTemperature:     1,
			DefaultTemperature: 1,
			Vision:             true,
		},
		{
			ID:                 "claude-3-5-haiku-latest",
			Name:               "Claude 3.5 Haiku",
			Description:        "Fastest model",
			ContextWindow:      200000,
			MaxOutputTokens:    8192,
			MaxTemperature:     1,
			DefaultTemperature: 1,
		},
		{
			ID:                 "claude-3-opus-latest",
			Name:               "Claude 3 Opus",
			ContextWindow:      200000,
			MaxOutputTokens:    4096,
			MaxTemperature:     1,
			DefaultTemperature: 1,
			Vision:             true,
		},
	}
}
