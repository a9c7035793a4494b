package llm

import (
	"context"
	"errors"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyCompletion is returned when a backend answers without any text.
var ErrEmptyCompletion = errors.New("llm: empty completion")

// Message is one chat entry in the backend-neutral shape.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string
	JSON        bool
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

// WithJSONOutput constrains generation to a single JSON object, which the
// reply parser expects for {"subject","body"} emails.
func WithJSONOutput() Option {
	return func(o *Options) {
		o.JSON = true
	}
}

// Apply resolves options over a provider's defaults.
func Apply(defaultModel string, defaultTemperature float64, opts ...Option) *Options {
	o := &Options{Model: defaultModel, Temperature: defaultTemperature}
	for _, opt := range opts {
		opt(o)
	}
	if o.Model == "" {
		o.Model = defaultModel
	}
	return o
}

// NormalizeRole maps legacy role names onto the chat-completion vocabulary.
func NormalizeRole(role string) string {
	switch role {
	case "model", "agent":
		return RoleAssistant
	case "":
		return RoleUser
	default:
		return role
	}
}

// LLMProvider is implemented by every generation backend.
type LLMProvider interface {
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)
}
