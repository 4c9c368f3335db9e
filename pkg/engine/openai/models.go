package openai

import "github.com/go-go-golems/basilisk/pkg/engine"

func openAIModels() []engine.ModelInfo {
	return []engine.ModelInfo{
		{
			ID:                 "gpt-4.1",
			Name:               "GPT-4.1",
			Description:        "Flagship model for complex tasks",
			ContextWindow:      1047576,
			MaxOutputTokens:    32768,
			MaxTemperature:     2,
			DefaultTemperature: 1,
			Vision:             true,
		},
		{
			ID:                 "gpt-4.1-mini",
			Name:               "GPT-4.1 mini",
			ContextWindow:      1047576,
			MaxOutputTokens:    32768,
			MaxTemperature:     2,
			DefaultTemperature: 1,
			Vision:             true,
		},
		{
			ID:                 "gpt-4o",
			Name:               "GPT-4o",
			Description:        "Fast, intelligent, flexible GPT model",
			ContextWindow:      128000,
			MaxOutputTokens:    16384,
			MaxTemperature:     2,
			DefaultTemperature: 1,
			Vision:             true,
		},
		{
			ID:                 "gpt-4o-mini",
			Name:               "GPT-4o mini",
			ContextWindow:      128000,
			MaxOutputTokens:    16384,
			MaxTemperature:     2,
			DefaultTemperature: 1,
			Vision:             true,
		},
		{
			ID:              "o3-mini",
			Name:            "o3-mini",
			Description:     "Small reasoning model",
			ContextWindow:   200000,
			MaxOutputTokens: 100000,
		},
	}
}
