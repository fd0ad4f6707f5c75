package ai

import (
	"context"
	"errors"
	"sync/atomic"
)

var (
	// ErrUnavailable means no generator is configured. It selects the
	// deterministic path and is never reported to callers.
	ErrUnavailable = errors.New("ai generator is not configured")
	// ErrTransport covers network failures, timeouts and cancellation.
	ErrTransport = errors.New("ai request failed")
	// ErrParse means the response held no usable JSON object.
	ErrParse = errors.New("ai response could not be parsed")
	// ErrOutOfRange means the response carried an overall score outside 0..100.
	ErrOutOfRange = errors.New("ai response value out of range")
)

// Generator sends a prompt to a generative model and returns its text output.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Handle is a swappable reference to the current generator. Scorers read it on
// every call, so rotating credentials only needs a Store.
type Handle struct {
	current atomic.Pointer[handleEntry]
}

type handleEntry struct {
	generator Generator
}

func NewHandle(generator Generator) *Handle {
	h := &Handle{}
	h.Store(generator)
	return h
}

// Load returns the current generator or nil when none is configured.
func (h *Handle) Load() Generator {
	if h == nil {
		return nil
	}
	entry := h.current.Load()
	if entry == nil {
		return nil
	}
	return entry.generator
}

// Store replaces the generator. A nil generator turns the AI path off.
func (h *Handle) Store(generator Generator) {
	if generator == nil {
		h.current.Store(nil)
		return
	}
	h.current.Store(&handleEntry{generator: generator})
}
