package mistral

import "github.com/go-go-golems/basilisk/pkg/engine"

func model(id, name, description string, contextWindow int, vision bool) engine.ModelInfo {
	return engine.ModelInfo{
		ID:                 id,
		Name:               name,
		Description:        description,
		ContextWindow:      contextWindow,
		MaxTemperature:     1,
		DefaultTemperature: 0.7,
		Vision:             vision,
	}
}

func models() []engine.ModelInfo {
	return []engine.ModelInfo{
		model("ministral-3b-latest", "Ministral 3B", "Edge model", 131000, false),
		model("ministral-8b-latest", "Ministral 8B", "Edge model with a high performance to price ratio", 128000, false),
		model("mistral-large-latest", "Mistral Large", "Top-tier reasoning model for high-complexity tasks", 131000, false),
		model("pixtral-large-latest", "Pixtral Large", "Frontier-class multimodal model", 131000, true),
		model("mistral-small-latest", "Mistral Small", "Enterprise-grade small model", 32000, false),
		model("codestral-latest", "Codestral", "Language model for coding", 256000, false),
		model("pixtral-12b-2409", "Pixtral", "12B model with image understanding", 131000, true),
		model("open-mistral-nemo", "Mistral Nemo", "12B model built in partnership with Nvidia", 128000, false),
		model("open-codestral-mamba", "Codestral Mamba", "Mamba 2 language model specialized in code generation", 256000, false),
	}
}
