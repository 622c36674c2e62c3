package server

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/chew-z/workers-ai-proxy/internal/api"
)

// languageIDPrompt is a few-shot prompt that coaxes a chat model into
// answering with a bare language name.
var languageIDPrompt = []api.Message{
	{
		Role: "user",
		Content: "Output one of the following: english, chinese, french, spanish, arabic, russian, german, japanese, portuguese, hindi. " +
			"Identify the following languages.\nQ:'Hola mi nombre es brian y el tuyo?'",
	},
	{Role: "assistant", Content: "spanish"},
	{Role: "user", Content: "Was für ein schönes Baby!"},
	{Role: "assistant", Content: "german"},
}

// handleTranscription transcribes an uploaded audio file
func (s *Server) handleTranscription(c *gin.Context) {
	text, err := s.transcribe(c)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.TranscriptionResponse{Text: text})
}

// handleTranslation transcribes an uploaded audio file, identifies the
// source language, and translates the transcript to English.
func (s *Server) handleTranslation(c *gin.Context) {
	text, err := s.transcribe(c)
	if err != nil {
		handleError(c, err)
		return
	}

	messages := make([]api.Message, 0, len(languageIDPrompt)+1)
	messages = append(messages, languageIDPrompt...)
	messages = append(messages, api.Message{Role: "user", Content: text})

	langResult, err := s.ai.Run(c.Request.Context(), languageIDModel, map[string]any{
		"messages": messages,
	})
	if err != nil {
		handleError(c, api.ErrBadRequest(err.Error()))
		return
	}
	sourceLang := languageID(langResult.Text())

	translation, err := s.ai.Run(c.Request.Context(), translationModel, map[string]any{
		"text":        text,
		"source_lang": sourceLang,
		"target_lang": "english",
	})
	if err != nil {
		handleError(c, api.ErrBadRequest(err.Error()))
		return
	}

	translated, _ := translationText(translation.Object)
	if translated == "" {
		handleError(c, api.ErrBadRequest("translation failed"))
		return
	}

	c.JSON(http.StatusOK, api.TranscriptionResponse{Text: translated})
}

// transcribe validates the multipart upload and runs it through whisper.
func (s *Server) transcribe(c *gin.Context) (string, error) {
	if c.ContentType() != "multipart/form-data" {
		return "", api.ErrBadRequest("invalid content type")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return "", api.ErrBadRequest("no audio provided")
	}

	audio, err := readUpload(fileHeader)
	if err != nil {
		return "", api.ErrBadRequest(err.Error())
	}

	result, err := s.ai.Run(c.Request.Context(), whisperModel, map[string]any{
		"audio": audioSamples(audio),
	})
	if err != nil {
		return "", api.ErrBadRequest(err.Error())
	}

	text, _ := result.Object["text"].(string)
	return text, nil
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	file, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

// audioSamples widens raw bytes into a JSON-friendly number array, the shape
// whisper expects its audio input in.
func audioSamples(data []byte) []int {
	samples := make([]int, len(data))
	for i, b := range data {
		samples[i] = int(b)
	}
	return samples
}

// languageID extracts a language name from a model answer: the first line if
// the answer spans lines, else the first word.
func languageID(text string) string {
	lower := strings.ToLower(text)

	if strings.Contains(lower, "\n") {
		return strings.SplitN(lower, "\n", 2)[0]
	}
	if strings.Contains(lower, " ") {
		return strings.SplitN(lower, " ", 2)[0]
	}
	return lower
}

// translationText resolves the translated text field of an m2m100 result.
func translationText(obj map[string]any) (string, bool) {
	s, ok := obj["translated_text"].(string)
	return s, ok && s != ""
}
