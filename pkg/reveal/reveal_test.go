package reveal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(ch <-chan Frame) []Frame {
	var frames []Frame
	for f := range ch {
		frames = append(frames, f)
	}
	return frames
}

func TestRevealEmitsOnePrefixPerRune(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"ascii", "Great picks"},
		{"multibyte", "Amélie ✨"},
		{"single rune", "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames := collect(Reveal(context.Background(), tt.text, time.Millisecond))
			runes := []rune(tt.text)

			require.Len(t, frames, len(runes)+1)
			for i := 0; i < len(runes); i++ {
				assert.Equal(t, string(runes[:i+1]), frames[i].Text)
				assert.False(t, frames[i].Done)
			}
			last := frames[len(frames)-1]
			assert.True(t, last.Done)
			assert.Equal(t, tt.text, last.Text)
		})
	}
}

func TestRevealEmptyCompletesImmediately(t *testing.T) {
	frames := collect(Reveal(context.Background(), "", time.Hour))

	require.Len(t, frames, 1)
	assert.Equal(t, Frame{Done: true}, frames[0])
}

func TestRevealStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := Reveal(ctx, "a long overview that will not finish", time.Millisecond)

	first := <-ch
	assert.Equal(t, "a", first.Text)
	cancel()

	// At most one frame may already be in flight; the channel must close
	// without ever reaching the final frame.
	rest := collect(ch)
	assert.LessOrEqual(t, len(rest), 1)
	for _, f := range rest {
		assert.False(t, f.Done)
	}
}

func TestRevealerRestartResetsProgress(t *testing.T) {
	r := NewRevealer(time.Millisecond)

	first := r.Start(context.Background(), "first overview text")
	<-first
	<-first
	assert.Equal(t, "first overview text", r.State().Source)
	assert.GreaterOrEqual(t, r.State().Revealed, 1)

	second := r.Start(context.Background(), "next")
	state := r.State()
	assert.Equal(t, "next", state.Source)
	assert.Equal(t, 0, state.Revealed)
	assert.False(t, state.Done)

	// The superseded sequence closes without completing.
	for f := range first {
		assert.False(t, f.Done)
	}

	frames := collect(second)
	require.Len(t, frames, 5)
	assert.Equal(t, "n", frames[0].Text)
	assert.True(t, frames[4].Done)

	final := r.State()
	assert.Equal(t, 4, final.Revealed)
	assert.True(t, final.Done)
}

func TestRevealerStopIsIdempotent(t *testing.T) {
	r := NewRevealer(time.Millisecond)
	ch := r.Start(context.Background(), "stop me")

	r.Stop()
	r.Stop()

	for f := range ch {
		assert.False(t, f.Done)
	}
}
