package core

import "context"

// AIConfig is the provider configuration resolved from a bot owner's
// account settings. Provider selects the wire protocol; APIKey/BaseURL are
// passed through to the vendor client.
type AIConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
}

// EmbedConfig carries optional caller-supplied credentials for remote
// embedding calls. Nil means "use the process-wide defaults".
type EmbedConfig struct {
	APIKey  string
	BaseURL string
}

// EmbeddingProvider turns one text into a fixed-size vector. An empty
// vector (with nil error) means the provider path was unavailable and the
// caller should degrade rather than abort.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text, model string, cfg *EmbedConfig) ([]float32, error)
}

// ChatMessage is one entry of the conversation sent to a chat provider.
type ChatMessage struct {
	Role    string
	Content string
}

// ChatRequest is a provider-agnostic chat completion request.
type ChatRequest struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Messages    []ChatMessage
	Config      AIConfig
}

// ChatTransport streams a chat completion; yield is called once per text
// delta, in the exact order the vendor emits them. A non-nil return from
// yield stops the stream with that error.
type ChatTransport interface {
	Stream(ctx context.Context, req ChatRequest, yield func(text string) error) error
}

// TextExtractor converts an uploaded binary into plain UTF-8 text based on
// the declared file extension.
type TextExtractor interface {
	Extract(data []byte, ext string) (string, error)
}
