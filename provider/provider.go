package provider

import (
	"context"
	"fmt"

	"quester/config"
	"quester/provider/openai"
)

// Message is a single chat message sent to the model.
type Message = openai.Message

// LLMProvider is the contract the workflow steps talk to. Model is a logical
// model name resolved against the provider's configured models.
type LLMProvider interface {
	Generate(ctx context.Context, model string, messages []Message) (string, error)
	GenerateStream(ctx context.Context, model string, messages []Message, onDelta func(delta string)) (string, error)
}

// New builds the configured provider. Only the openai type is implemented;
// the configuration keeps room for more.
func New(cfg config.LLMConfig) (LLMProvider, error) {
	for name, p := range cfg.Providers {
		switch p.Type {
		case "openai":
			return openai.New(p), nil
		default:
			return nil, fmt.Errorf("provider: unsupported type %q for provider %q", p.Type, name)
		}
	}
	return nil, fmt.Errorf("provider: no llm providers configured")
}
