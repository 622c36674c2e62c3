package server

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chew-z/workers-ai-proxy/internal/api"
)

const streamID = "test-id"
const streamModel = "test-model"

func feedAll(t *testing.T, input string, fragments []string) string {
	t.Helper()
	tr := newChatTranscoder(streamID, streamModel, 1700000000)
	var out strings.Builder
	if fragments == nil {
		out.Write(tr.Feed([]byte(input)))
	} else {
		for _, f := range fragments {
			out.Write(tr.Feed([]byte(f)))
		}
	}
	tr.Finish()
	return out.String()
}

// parseEvents splits an SSE byte stream into its data payloads.
func parseEvents(t *testing.T, raw string) []string {
	t.Helper()
	var payloads []string
	for _, block := range strings.Split(raw, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		require.True(t, strings.HasPrefix(block, "data: "), "unexpected SSE block: %q", block)
		payloads = append(payloads, strings.TrimPrefix(block, "data: "))
	}
	return payloads
}

const backendInput = "data: {\"response\":\"Hel\"}\n" +
	"\n" +
	"data: {\"response\":\"lo\"}\n" +
	"event: noise\n" +
	"data: {\"p\":1}\n" +
	"data: {\"response\":\"!\"}\n" +
	"data: [DONE]\n"

func TestTranscoder_SingleChunk(t *testing.T) {
	out := feedAll(t, backendInput, nil)
	payloads := parseEvents(t, out)

	// Three content chunks, one terminal chunk, one sentinel.
	require.Len(t, payloads, 5)
	assert.Equal(t, "[DONE]", payloads[4])

	var first api.ChatCompletionChunk
	require.NoError(t, json.Unmarshal([]byte(payloads[0]), &first))
	assert.Equal(t, streamID, first.ID)
	assert.Equal(t, "chat.completion.chunk", first.Object)
	assert.Equal(t, "assistant", first.Choices[0].Delta.Role)
	assert.Equal(t, "Hel", first.Choices[0].Delta.Content)
	assert.Nil(t, first.Choices[0].FinishReason)

	var second api.ChatCompletionChunk
	require.NoError(t, json.Unmarshal([]byte(payloads[1]), &second))
	assert.Empty(t, second.Choices[0].Delta.Role)
	assert.Equal(t, "lo", second.Choices[0].Delta.Content)

	var terminal api.ChatCompletionChunk
	require.NoError(t, json.Unmarshal([]byte(payloads[3]), &terminal))
	assert.Empty(t, terminal.Choices[0].Delta.Content)
	require.NotNil(t, terminal.Choices[0].FinishReason)
	assert.Equal(t, "stop", *terminal.Choices[0].FinishReason)
}

func TestTranscoder_FragmentationEquivalence(t *testing.T) {
	whole := feedAll(t, backendInput, nil)

	tests := []struct {
		name      string
		fragments []string
	}{
		{
			name: "split exactly at newline",
			fragments: []string{
				"data: {\"response\":\"Hel\"}\n",
				"\ndata: {\"response\":\"lo\"}\nevent: noise\ndata: {\"p\":1}\ndata: {\"response\":\"!\"}\ndata: [DONE]\n",
			},
		},
		{
			name: "split mid-field",
			fragments: []string{
				"data: {\"resp",
				"onse\":\"Hel\"}\n\ndata: {\"response\":\"lo\"}\nevent: noise\ndata: {\"p\":1}\ndata: {\"respo",
				"nse\":\"!\"}\ndata: [DONE]\n",
			},
		},
		{
			name:      "byte at a time",
			fragments: strings.Split(backendInput, ""),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, whole, feedAll(t, backendInput, tt.fragments))
		})
	}
}

func TestTranscoder_RoleSentOnce(t *testing.T) {
	out := feedAll(t, backendInput, nil)
	assert.Equal(t, 1, strings.Count(out, `"role":"assistant"`))
}

func TestTranscoder_SentinelTerminates(t *testing.T) {
	tr := newChatTranscoder(streamID, streamModel, 1700000000)

	out := string(tr.Feed([]byte("data: {\"response\":\"hi\"}\ndata: [DONE]\n")))
	assert.True(t, strings.HasSuffix(out, "data: [DONE]\n\n"))
	assert.True(t, tr.Done())

	// Input after the sentinel is ignored.
	late := tr.Feed([]byte("data: {\"response\":\"late\"}\n"))
	assert.Empty(t, late)
}

func TestTranscoder_DanglingPartialLineDropped(t *testing.T) {
	tr := newChatTranscoder(streamID, streamModel, 1700000000)

	out := string(tr.Feed([]byte("data: {\"response\":\"hi\"}\ndata: {\"respo")))
	tr.Finish()

	payloads := parseEvents(t, out)
	require.Len(t, payloads, 1)
	assert.Contains(t, payloads[0], `"content":"hi"`)

	// Whatever was buffered is gone; a later newline cannot resurrect it.
	assert.Empty(t, tr.Feed([]byte("\n")))
}

func TestTranscoder_SkipsContentlessLines(t *testing.T) {
	input := "data: {\"tokens\":3}\n" +
		": comment\n" +
		"data: not-json\n" +
		"data: [DONE]\n"
	out := feedAll(t, input, nil)
	payloads := parseEvents(t, out)

	// Only the terminal chunk and the sentinel come out.
	require.Len(t, payloads, 2)
	assert.Contains(t, payloads[0], `"finish_reason":"stop"`)
	assert.Equal(t, "[DONE]", payloads[1])
}

func TestTranscoder_CreatedStableAcrossChunks(t *testing.T) {
	out := feedAll(t, backendInput, nil)
	payloads := parseEvents(t, out)

	var created int64 = -1
	for _, p := range payloads {
		if p == "[DONE]" {
			continue
		}
		var chunk api.ChatCompletionChunk
		require.NoError(t, json.Unmarshal([]byte(p), &chunk))
		if created == -1 {
			created = chunk.Created
		}
		assert.Equal(t, created, chunk.Created)
		assert.Equal(t, streamID, chunk.ID)
	}
}
