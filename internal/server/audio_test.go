package server

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chew-z/workers-ai-proxy/internal/ai"
	"github.com/chew-z/workers-ai-proxy/internal/api"
)

func audioRequest(t *testing.T, target string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "clip.wav")
	require.NoError(t, err)
	_, err = part.Write([]byte{0x01, 0x02, 0x03})
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return authorized(req)
}

func TestTranscription(t *testing.T) {
	s := setupTestServer(t)
	s.ai = &fakeRunner{run: func(ctx context.Context, model string, input map[string]any) (ai.Result, error) {
		assert.Equal(t, whisperModel, model)
		assert.Equal(t, []int{1, 2, 3}, input["audio"])
		return ai.ObjectResult(map[string]any{"text": "hello world"}), nil
	}}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, audioRequest(t, "/audio/transcriptions"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"text":"hello world"}`, w.Body.String())
}

func TestTranscription_Validation(t *testing.T) {
	s := setupTestServer(t)

	t.Run("wrong content type", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/audio/transcriptions", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		s.router.ServeHTTP(w, authorized(req))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid content type")
	})

	t.Run("missing file field", func(t *testing.T) {
		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		require.NoError(t, writer.WriteField("notfile", "x"))
		require.NoError(t, writer.Close())

		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/audio/transcriptions", &body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		s.router.ServeHTTP(w, authorized(req))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "no audio provided")
	})
}

func TestTranslation(t *testing.T) {
	s := setupTestServer(t)

	var calls []string
	s.ai = &fakeRunner{run: func(ctx context.Context, model string, input map[string]any) (ai.Result, error) {
		calls = append(calls, model)
		switch model {
		case whisperModel:
			return ai.ObjectResult(map[string]any{"text": "hola mundo"}), nil
		case languageIDModel:
			messages := input["messages"].([]api.Message)
			require.NotEmpty(t, messages)
			assert.Contains(t, messages[len(messages)-1].Content, "hola mundo")
			return ai.ObjectResult(map[string]any{"response": "spanish"}), nil
		case translationModel:
			assert.Equal(t, "hola mundo", input["text"])
			assert.Equal(t, "spanish", input["source_lang"])
			assert.Equal(t, "english", input["target_lang"])
			return ai.ObjectResult(map[string]any{"translated_text": "hello world"}), nil
		}
		t.Fatalf("unexpected model %s", model)
		return ai.Result{}, nil
	}}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, audioRequest(t, "/v1/audio/translations"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"text":"hello world"}`, w.Body.String())
	assert.Equal(t, []string{whisperModel, languageIDModel, translationModel}, calls)
}

func TestTranslation_Failure(t *testing.T) {
	s := setupTestServer(t)
	s.ai = &fakeRunner{run: func(ctx context.Context, model string, input map[string]any) (ai.Result, error) {
		switch model {
		case whisperModel:
			return ai.ObjectResult(map[string]any{"text": "bonjour"}), nil
		case languageIDModel:
			return ai.ObjectResult(map[string]any{"response": "french"}), nil
		default:
			return ai.ObjectResult(map[string]any{}), nil
		}
	}}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, audioRequest(t, "/audio/translations"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "translation failed")
}

func TestLanguageID(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"spanish", "spanish"},
		{"Spanish", "spanish"},
		{"german\nbecause of the umlauts", "german"},
		{"french probably", "french"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, languageID(tt.input))
		})
	}
}
