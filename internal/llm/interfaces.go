package llm

import "context"

// ChatCompleter is implemented by every adapter that speaks the
// OpenAI-compatible chat completions dialect (OpenAI, OpenRouter, Ollama /v1).
type ChatCompleter interface {
	ChatComplete(ctx context.Context, req ChatRequest) (string, error)
	GetModel() string
}

// ChatRequest is one chat completion call.
type ChatRequest struct {
	Messages []ChatMessage
	// JSONMode asks the provider to return a single JSON object.
	JSONMode bool
}

// ChatMessage is a single message. Exactly one of Content or Parts is used;
// Parts makes the message multimodal.
type ChatMessage struct {
	Role    string
	Content string
	Parts   []ContentPart
}

// ContentPart is one piece of a multimodal message.
type ContentPart struct {
	Type     string // "text" or "image_url"
	Text     string
	ImageURL string // data URL, e.g. data:image/jpeg;base64,...
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: "text", Text: text}
}

// ImagePart builds an image content part from a base64 payload. The payload
// is always declared as JPEG, which every supported provider tolerates.
func ImagePart(base64Payload string) ContentPart {
	return ContentPart{Type: "image_url", ImageURL: "data:image/jpeg;base64," + base64Payload}
}
