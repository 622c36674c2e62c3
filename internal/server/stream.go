package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/chew-z/workers-ai-proxy/internal/api"
)

// doneSentinel is the literal end-of-stream payload, on the backend side and
// on ours.
const doneSentinel = "[DONE]"

// chatTranscoder converts the backend's line-delimited event stream into
// OpenAI-style chat completion chunks. All state is scoped to one response:
// the id and created timestamp are fixed across every emitted chunk, the
// assistant role is announced exactly once, and a line split across two
// delivered fragments stays buffered until its newline arrives.
type chatTranscoder struct {
	id       string
	model    string
	created  int64
	buf      bytes.Buffer
	sentRole bool
	done     bool
}

func newChatTranscoder(id, model string, created int64) *chatTranscoder {
	return &chatTranscoder{id: id, model: model, created: created}
}

// backendEvent is the decoded payload of one backend data line.
type backendEvent struct {
	Response string `json:"response"`
}

// Feed appends one delivered fragment and returns the encoded SSE events
// completed by it. After the sentinel has been seen all further input is
// ignored.
func (t *chatTranscoder) Feed(p []byte) []byte {
	if t.done {
		return nil
	}
	t.buf.Write(p)

	var out bytes.Buffer
	for {
		data := t.buf.Bytes()
		newline := bytes.IndexByte(data, '\n')
		if newline < 0 {
			break
		}
		line := strings.TrimSpace(string(data[:newline]))
		t.buf.Next(newline + 1)

		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(line[len("data:"):])

		if payload == doneSentinel {
			t.done = true
			t.buf.Reset()
			stop := "stop"
			t.writeChunk(&out, api.ChunkDelta{}, &stop)
			fmt.Fprintf(&out, "data: %s\n\n", doneSentinel)
			return out.Bytes()
		}

		var event backendEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			continue
		}
		if event.Response == "" {
			continue
		}

		delta := api.ChunkDelta{Content: event.Response}
		if !t.sentRole {
			delta.Role = "assistant"
			t.sentRole = true
		}
		t.writeChunk(&out, delta, nil)
	}
	return out.Bytes()
}

// Done reports whether the sentinel has been seen.
func (t *chatTranscoder) Done() bool {
	return t.done
}

// Finish discards any dangling partial line. A backend stream that closes
// without the sentinel loses its unterminated tail rather than having a
// chunk fabricated from it.
func (t *chatTranscoder) Finish() {
	t.buf.Reset()
}

func (t *chatTranscoder) writeChunk(out *bytes.Buffer, delta api.ChunkDelta, finishReason *string) {
	chunk := api.ChatCompletionChunk{
		ID:      t.id,
		Object:  "chat.completion.chunk",
		Created: t.created,
		Model:   t.model,
		Choices: []api.ChunkChoice{
			{
				Index:        0,
				Delta:        delta,
				FinishReason: finishReason,
			},
		},
	}
	payload, err := json.Marshal(chunk)
	if err != nil {
		return
	}
	fmt.Fprintf(out, "data: %s\n\n", payload)
}

// transcodeStream pumps the backend stream through the transcoder into the
// response writer, flushing after every emitted event batch.
func transcodeStream(ctx context.Context, w gin.ResponseWriter, src io.Reader, t *chatTranscoder) error {
	buf := make([]byte, 32*1024)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := src.Read(buf)
		if n > 0 {
			if out := t.Feed(buf[:n]); len(out) > 0 {
				if _, writeErr := w.Write(out); writeErr != nil {
					return writeErr
				}
				w.Flush()
			}
			if t.Done() {
				return nil
			}
		}
		if err == io.EOF {
			t.Finish()
			return nil
		}
		if err != nil {
			return err
		}
	}
}
