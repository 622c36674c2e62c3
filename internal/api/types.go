// Package api defines the OpenAI-compatible wire types the gateway speaks
// to its clients, independent of the backend's native shapes.
package api

// Message represents a single chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents an incoming chat completion request
type ChatRequest struct {
	Model    string    `json:"model,omitempty"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream,omitempty"`
}

// ChatChoice is one entry of a single-shot chat completion
type ChatChoice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// ChatCompletion is the single-shot chat completion envelope
type ChatCompletion struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
}

// ChunkDelta carries the incremental part of one streamed chunk. Role is set
// on the first content-bearing chunk of a response and never again.
type ChunkDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// ChunkChoice is one entry of a streamed chunk
type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

// ChatCompletionChunk is a single SSE chunk of a streamed chat completion.
// ID and Created are captured once per response and repeated on every chunk.
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

// CompletionRequest represents an incoming text completion request
type CompletionRequest struct {
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt"`
}

// CompletionChoice is one entry of a text completion
type CompletionChoice struct {
	Index        int    `json:"index"`
	FinishReason string `json:"finish_reason"`
	Text         string `json:"text"`
	Logprobs     any    `json:"logprobs"`
}

// Completion is the text completion envelope
type Completion struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
}

// EmbeddingsRequest represents an incoming embeddings request. Input may be
// a single string or an array of strings.
type EmbeddingsRequest struct {
	Input any `json:"input"`
}

// Embedding is a single embedding vector
type Embedding struct {
	Object    string    `json:"object"`
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

// Usage reports token accounting. The backend does not expose counts, so the
// gateway always reports zeros.
type Usage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// EmbeddingsResponse is the embeddings envelope
type EmbeddingsResponse struct {
	Object string      `json:"object"`
	Data   []Embedding `json:"data"`
	Model  string      `json:"model"`
	Usage  Usage       `json:"usage"`
}

// TranscriptionResponse is returned by both audio endpoints
type TranscriptionResponse struct {
	Text string `json:"text"`
}

// ImageRequest represents an incoming image generation request
type ImageRequest struct {
	Prompt string `json:"prompt"`
	Format string `json:"format,omitempty"`
}

// ImageDatum carries exactly one of an inline image or a retrieval URL
type ImageDatum struct {
	B64JSON string `json:"b64_json,omitempty"`
	URL     string `json:"url,omitempty"`
}

// ImageResponse is the image generation envelope
type ImageResponse struct {
	Created int64        `json:"created"`
	Data    []ImageDatum `json:"data"`
}

// ResponsesRequest represents an incoming request to the generic responses
// endpoint. Input may be a plain string or an array of messages.
type ResponsesRequest struct {
	Model string `json:"model,omitempty"`
	Input any    `json:"input"`
}

// OutputContent is one content part of a response output item
type OutputContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// OutputItem is one item of the structured output array
type OutputItem struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Role    string          `json:"role"`
	Content []OutputContent `json:"content"`
}

// Response is the generic responses envelope
type Response struct {
	ID         string       `json:"id"`
	Object     string       `json:"object"`
	Created    int64        `json:"created"`
	Model      string       `json:"model"`
	Output     []OutputItem `json:"output"`
	OutputText string       `json:"output_text"`
}

// Model is a single model catalog entry
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelList is the model catalog envelope
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}
