// Package ai binds the gateway to the Workers AI inference backend: run a
// named model with structured input and get structured output or a byte
// stream back.
package ai

import (
	"context"
	"io"
)

// ResultKind tags the physical shape of a backend result.
type ResultKind int

const (
	// KindObject is a decoded JSON object (text generation, embeddings, audio).
	KindObject ResultKind = iota
	// KindBytes is a raw byte buffer (image generation).
	KindBytes
	// KindStream is an undrained byte stream. The consumer owns closing it.
	KindStream
	// KindList is an array of results; only the first element is meaningful.
	KindList
)

// Result is the tagged union of backend output shapes. Exactly the field
// matching Kind is populated.
type Result struct {
	Kind   ResultKind
	Object map[string]any
	Bytes  []byte
	Stream io.ReadCloser
	List   []Result
}

// ObjectResult wraps a decoded JSON object
func ObjectResult(obj map[string]any) Result {
	return Result{Kind: KindObject, Object: obj}
}

// BytesResult wraps a raw byte buffer
func BytesResult(b []byte) Result {
	return Result{Kind: KindBytes, Bytes: b}
}

// StreamResult wraps an undrained byte stream
func StreamResult(rc io.ReadCloser) Result {
	return Result{Kind: KindStream, Stream: rc}
}

// ListResult wraps an array of results
func ListResult(items []Result) Result {
	return Result{Kind: KindList, List: items}
}

// textFields is the ordered list of field names a text-generation model may
// populate with its output.
var textFields = []string{"response", "text", "output_text"}

// Text resolves the generated text of an object result by probing the
// accepted field names in order. It returns "" when none is populated,
// which callers treat as an empty upstream response.
func (r Result) Text() string {
	if r.Kind != KindObject {
		return ""
	}
	for _, field := range textFields {
		if s, ok := r.Object[field].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Runner invokes a named backend model with structured input.
type Runner interface {
	Run(ctx context.Context, model string, input map[string]any) (Result, error)
}

// CatalogModel is one upstream model catalog entry.
type CatalogModel struct {
	Name   string `json:"name"`
	Source int    `json:"source"`
}

// Lister fetches the upstream model catalog.
type Lister interface {
	ListModels(ctx context.Context) ([]CatalogModel, error)
}
