// Package gateway talks to the model runtime. Two backends implement
// the same contract: Ollama's native API and any OpenAI-compatible
// endpoint.
package gateway

import "context"

// Request is one model call. JSONMode contracts the model to return
// only JSON; callers still re-extract defensively.
type Request struct {
	Model  string
	Prompt string
	System string
	JSON   bool
}

// Chunk is one streamed delta. Err is set on the final chunk when the
// stream failed mid-flight.
type Chunk struct {
	Text string
	Done bool
	Err  error
}

// Client is the outbound boundary of the generation core.
type Client interface {
	// Complete performs a non-streaming call and returns the full text.
	Complete(ctx context.Context, req Request) (string, error)
	// Stream performs a streaming call. The channel is closed after the
	// terminal chunk (Done or Err set). Cancelling ctx aborts the call.
	Stream(ctx context.Context, req Request) (<-chan Chunk, error)
	// ListModels returns the model names the runtime offers.
	ListModels(ctx context.Context) ([]string, error)
}
