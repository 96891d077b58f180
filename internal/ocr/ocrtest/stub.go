// Package ocrtest provides a deterministic engine for tests.
package ocrtest

import (
	"context"
	"sync"
	"time"

	"github.com/franckalain/scaneats/internal/ocr"
)

// Engine returns canned text or a canned error. Delay simulates a slow
// engine.
type Engine struct {
	Text  string
	Err   error
	Delay time.Duration
	// IgnoreContext makes Recognize sleep through cancellation.
	IgnoreContext bool

	mu     sync.Mutex
	inputs []ocr.Input
}

func (e *Engine) Name() string { return "stub" }

func (e *Engine) Load(ctx context.Context) error { return nil }

func (e *Engine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	e.mu.Lock()
	e.inputs = append(e.inputs, in)
	e.mu.Unlock()

	if e.Delay > 0 {
		if e.IgnoreContext {
			time.Sleep(e.Delay)
		} else {
			select {
			case <-ctx.Done():
				return ocr.Result{}, ctx.Err()
			case <-time.After(e.Delay):
			}
		}
	}
	if e.Err != nil {
		return ocr.Result{}, e.Err
	}
	return ocr.Result{Text: e.Text, Engine: e.Name()}, nil
}

// Inputs returns a copy of every input seen so far.
func (e *Engine) Inputs() []ocr.Input {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ocr.Input(nil), e.inputs...)
}

// Calls returns how many times Recognize was invoked.
func (e *Engine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.inputs)
}
