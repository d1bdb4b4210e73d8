package reveal

import (
	"context"
	"sync"
	"time"
)

// Frame is one step of a reveal. Text is the prefix shown so far; Done marks
// the final frame, which always carries the full source.
type Frame struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// Reveal paces text out one rune per interval. For a source of N runes it
// emits N frames with Done=false (prefix lengths 1..N) and then one Done
// frame. The channel is closed after the Done frame, or as soon as ctx is
// canceled, in which case nothing further is emitted.
func Reveal(ctx context.Context, text string, interval time.Duration) <-chan Frame {
	return run(ctx, text, interval, nil)
}

func run(ctx context.Context, text string, interval time.Duration, progress func(revealed int, done bool)) <-chan Frame {
	out := make(chan Frame)
	runes := []rune(text)

	go func() {
		defer close(out)

		send := func(f Frame, revealed int) bool {
			if ctx.Err() != nil {
				return false
			}
			select {
			case <-ctx.Done():
				return false
			case out <- f:
			}
			if progress != nil {
				progress(revealed, f.Done)
			}
			return true
		}

		if len(runes) == 0 {
			send(Frame{Done: true}, 0)
			return
		}

		if interval <= 0 {
			interval = time.Millisecond
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for i := 1; i <= len(runes)+1; i++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if ctx.Err() != nil {
				return
			}
			if i > len(runes) {
				send(Frame{Text: text, Done: true}, len(runes))
				return
			}
			if !send(Frame{Text: string(runes[:i])}, i) {
				return
			}
		}
	}()

	return out
}

// State is the progress of the current reveal.
type State struct {
	Source   string
	Revealed int // runes
	Done     bool
}

// Revealer owns at most one running reveal. Starting a new one cancels the
// previous sequence, and progress restarts from zero.
type Revealer struct {
	interval time.Duration

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	state  State
}

func NewRevealer(interval time.Duration) *Revealer {
	return &Revealer{interval: interval}
}

func (r *Revealer) Start(ctx context.Context, text string) <-chan Frame {
	ctx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.gen++
	gen := r.gen
	r.cancel = cancel
	r.state = State{Source: text}
	r.mu.Unlock()

	return run(ctx, text, r.interval, func(revealed int, done bool) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.gen != gen {
			return
		}
		r.state.Revealed = revealed
		r.state.Done = done
	})
}

// Stop cancels the running reveal, if any. Safe to call repeatedly.
func (r *Revealer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *Revealer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}
