// Package llm provides the external judgement capability used by AI-mode
// rules: a provider-backed yes/no classification of one message against a
// user-authored prompt.
package llm

import (
	"context"
	"fmt"
)

// DefaultSystemPrompt is applied when a rule's stored system prompt is
// empty. The judge must answer with exactly MATCH or NO_MATCH.
const DefaultSystemPrompt = `You are an email classification assistant. Based on the user's query and the provided email content (subject and body), determine if the email matches the user's criteria.
Respond with only 'MATCH' if it matches, or 'NO_MATCH' if it does not. Do not provide any explanation or any other text.`

// Config is the provider selection resolved once per rule-engine run.
type Config struct {
	Provider string
	APIKey   string
	Model    string
}

// Judge decides whether a message matches a user-defined criterion.
type Judge interface {
	JudgeMail(ctx context.Context, systemPrompt, userPrompt, subject, body string) (bool, error)
}

// New builds the judge for the configured provider. Unsupported providers
// return an error; callers treat that as "AI rules disabled", not fatal.
func New(cfg Config) (Judge, error) {
	switch cfg.Provider {
	case "google":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm provider google: api key missing")
		}
		if cfg.Model == "" {
			return nil, fmt.Errorf("llm provider google: model missing")
		}
		return NewGemini(cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
