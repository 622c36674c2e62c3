package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chew-z/workers-ai-proxy/internal/ai"
	"github.com/chew-z/workers-ai-proxy/internal/api"
)

// Backend-native model identifiers used when the caller does not pick one.
const (
	defaultTextModel = "@cf/mistral/mistral-7b-instruct-v0.1"
	embeddingsModel  = "@cf/baai/bge-base-en-v1.5"
	whisperModel     = "@cf/openai/whisper"
	languageIDModel  = "@cf/meta/llama-2-7b-chat-int8"
	translationModel = "@cf/meta/m2m100-1.2b"
	imageModel       = "@cf/stabilityai/stable-diffusion-xl-base-1.0"
)

// handleError sends a standardized error response with context-aware cancellation handling
func handleError(c *gin.Context, err error) {
	if errors.Is(err, context.Canceled) {
		c.JSON(499, gin.H{"error": "request canceled"})
		return
	}
	if se, ok := err.(*api.StatusError); ok {
		c.JSON(se.StatusCode, se)
		return
	}
	c.JSON(http.StatusInternalServerError, api.StatusError{ErrorMessage: err.Error()})
}

// resolveModel applies the configured model mapping. The backend is called
// with the mapped name; the caller-supplied name is what responses echo.
func (s *Server) resolveModel(requested string) (backend, public string) {
	if requested == "" {
		return defaultTextModel, defaultTextModel
	}
	return s.config.MapModel(requested), requested
}

// requireJSON rejects requests without a JSON body content type.
func requireJSON(c *gin.Context) bool {
	if c.ContentType() != "application/json" {
		handleError(c, api.ErrBadRequest("invalid content type"))
		return false
	}
	return true
}

// handleModels returns the upstream model catalog. Listing is advisory, so
// upstream failures degrade to an empty catalog instead of an error.
func (s *Server) handleModels(c *gin.Context) {
	models, err := s.lister.ListModels(c.Request.Context())
	if err != nil {
		slog.Debug("model catalog fetch failed", "error", err)
		models = nil
	}

	data := make([]api.Model, 0, len(models))
	for _, m := range models {
		ownedBy := "huggingface"
		if m.Source == 1 {
			ownedBy = "cloudflare"
		}
		data = append(data, api.Model{
			ID:      m.Name,
			Object:  "model",
			Created: 0,
			OwnedBy: ownedBy,
		})
	}

	c.JSON(http.StatusOK, api.ModelList{Object: "list", Data: data})
}

// handleChatCompletions serves single-shot and streaming chat completions
func (s *Server) handleChatCompletions(c *gin.Context) {
	id := uuid.NewString()
	created := time.Now().Unix()

	if !requireJSON(c) {
		return
	}

	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, api.ErrBadRequest(err.Error()))
		return
	}
	if len(req.Messages) == 0 {
		handleError(c, api.ErrBadRequest("no messages provided"))
		return
	}

	backendModel, publicModel := s.resolveModel(req.Model)

	result, err := s.ai.Run(c.Request.Context(), backendModel, map[string]any{
		"messages": req.Messages,
		"stream":   req.Stream,
	})
	if err != nil {
		handleError(c, api.ErrBadRequest(err.Error()))
		return
	}

	if !req.Stream {
		if result.Kind == ai.KindStream {
			result.Stream.Close()
		}
		content := result.Text()
		if content == "" {
			handleError(c, api.ErrBadGateway("empty model response"))
			return
		}
		c.JSON(http.StatusOK, api.ChatCompletion{
			ID:      id,
			Object:  "chat.completion",
			Created: created,
			Model:   publicModel,
			Choices: []api.ChatChoice{
				{
					Index:        0,
					Message:      api.Message{Role: "assistant", Content: content},
					FinishReason: "stop",
				},
			},
		})
		return
	}

	if result.Kind != ai.KindStream {
		handleError(c, api.ErrBadRequest("backend did not return a stream"))
		return
	}
	defer result.Stream.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	transcoder := newChatTranscoder(id, publicModel, created)
	if err := transcodeStream(c.Request.Context(), c.Writer, result.Stream, transcoder); err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Debug("client disconnected during streaming")
		}
		return
	}
}

// handleCompletions serves legacy text completions
func (s *Server) handleCompletions(c *gin.Context) {
	id := uuid.NewString()
	created := time.Now().Unix()

	if !requireJSON(c) {
		return
	}

	var req api.CompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, api.ErrBadRequest(err.Error()))
		return
	}
	if req.Prompt == "" {
		handleError(c, api.ErrBadRequest("no prompt provided"))
		return
	}

	backendModel, publicModel := s.resolveModel(req.Model)

	result, err := s.ai.Run(c.Request.Context(), backendModel, map[string]any{
		"prompt": req.Prompt,
	})
	if err != nil {
		handleError(c, api.ErrBadRequest(err.Error()))
		return
	}

	text := result.Text()
	if text == "" {
		handleError(c, api.ErrBadGateway("empty completion"))
		return
	}

	c.JSON(http.StatusOK, api.Completion{
		ID:      id,
		Object:  "text_completion",
		Created: created,
		Model:   publicModel,
		Choices: []api.CompletionChoice{
			{
				Index:        0,
				FinishReason: "stop",
				Text:         text,
				Logprobs:     nil,
			},
		},
	})
}

// handleEmbeddings serves embeddings. Only the first backend vector is
// returned, whatever the input cardinality.
func (s *Server) handleEmbeddings(c *gin.Context) {
	if !requireJSON(c) {
		return
	}

	var req api.EmbeddingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, api.ErrBadRequest(err.Error()))
		return
	}
	if req.Input == nil {
		handleError(c, api.ErrBadRequest("no input provided"))
		return
	}

	result, err := s.ai.Run(c.Request.Context(), embeddingsModel, map[string]any{
		"text": req.Input,
	})
	if err != nil {
		handleError(c, api.ErrBadRequest(err.Error()))
		return
	}

	vector, ok := firstVector(result)
	if !ok {
		handleError(c, api.ErrBadGateway("empty model response"))
		return
	}

	c.JSON(http.StatusOK, api.EmbeddingsResponse{
		Object: "list",
		Data: []api.Embedding{
			{
				Object:    "embedding",
				Embedding: vector,
				Index:     0,
			},
		},
		Model: embeddingsModel,
		Usage: api.Usage{},
	})
}

// firstVector extracts the first embedding vector of an object result.
func firstVector(result ai.Result) ([]float64, bool) {
	if result.Kind != ai.KindObject {
		return nil, false
	}
	rows, ok := result.Object["data"].([]any)
	if !ok || len(rows) == 0 {
		return nil, false
	}
	values, ok := rows[0].([]any)
	if !ok {
		return nil, false
	}
	vector := make([]float64, 0, len(values))
	for _, v := range values {
		f, ok := v.(float64)
		if !ok {
			return nil, false
		}
		vector = append(vector, f)
	}
	return vector, true
}

// inputMessages converts the responses input (a plain string or an array of
// role/content messages) into a message sequence.
func inputMessages(input any) ([]api.Message, error) {
	if s, ok := input.(string); ok {
		return []api.Message{{Role: "user", Content: s}}, nil
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, errors.New("invalid input")
	}
	var messages []api.Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, errors.New("invalid input")
	}
	return messages, nil
}

// handleResponses serves the generic single-shot responses endpoint
func (s *Server) handleResponses(c *gin.Context) {
	id := uuid.NewString()
	created := time.Now().Unix()

	if !requireJSON(c) {
		return
	}

	var req api.ResponsesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, api.ErrBadRequest(err.Error()))
		return
	}
	if req.Input == nil {
		handleError(c, api.ErrBadRequest("no input provided"))
		return
	}

	messages, err := inputMessages(req.Input)
	if err != nil {
		handleError(c, api.ErrBadRequest(err.Error()))
		return
	}

	backendModel, publicModel := s.resolveModel(req.Model)

	result, err := s.ai.Run(c.Request.Context(), backendModel, map[string]any{
		"messages": messages,
	})
	if err != nil {
		handleError(c, api.ErrBadRequest(err.Error()))
		return
	}

	text := result.Text()
	if text == "" {
		handleError(c, api.ErrBadGateway("empty model response"))
		return
	}

	c.JSON(http.StatusOK, api.Response{
		ID:      id,
		Object:  "response",
		Created: created,
		Model:   publicModel,
		Output: []api.OutputItem{
			{
				ID:   uuid.NewString(),
				Type: "message",
				Role: "assistant",
				Content: []api.OutputContent{
					{Type: "output_text", Text: text},
				},
			},
		},
		OutputText: text,
	})
}
