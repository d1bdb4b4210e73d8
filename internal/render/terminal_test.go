package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"moviesearch-client/pkg/movie"
	"moviesearch-client/pkg/search"
	"moviesearch-client/pkg/searchapi"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// syncBuffer guards the buffer shared with the reveal goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func rating(v float64) *float64 { return &v }

func samplePage() *movie.ResultPage {
	return &movie.ResultPage{
		Query:      "heist",
		TotalCount: 2,
		Items: []movie.Movie{
			{ID: 949, Title: "Heat", ReleaseDate: "1995-12-15", Genres: "Action, Crime", VoteAverage: rating(7.9), PosterPath: "/heat.jpg"},
			{ID: 388, Title: "Inside Man"},
		},
		Timings: &movie.SearchTimings{TotalMs: 42},
	}
}

func waitDone(t *testing.T, term *Terminal) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, term.Wait(ctx))
}

func TestRenderStreamingSession(t *testing.T) {
	out := &syncBuffer{}
	term := NewTerminal(out, time.Millisecond, WithPosters(searchapi.NewPosterResolver("", ""), searchapi.PosterW200))

	id := uuid.New()
	q := search.Query{Text: "heist", WantsOverview: true}
	page := samplePage()
	ov := &movie.Overview{
		Summary:      "Crews and vaults.",
		Explanations: []movie.Explanation{{ID: 949, Title: "Heat", Explanation: "A professional crew."}},
		Metadata:     movie.OverviewMetadata{DecodeStatus: movie.DecodeRepaired},
	}

	term.Render(search.State{SessionID: id, Query: q, Status: search.StatusLoading})
	term.Render(search.State{SessionID: id, Query: q, Status: search.StatusOverviewPending, Results: page})
	term.Render(search.State{SessionID: id, Query: q, Status: search.StatusOverviewPending, Results: page, Overview: ov})
	term.Render(search.State{SessionID: id, Query: q, Status: search.StatusSettled, Results: page, Overview: ov})

	waitDone(t, term)
	text := out.String()

	assert.Contains(t, text, `Searching "heist"`)
	assert.Contains(t, text, "2 results in 42ms")
	assert.Contains(t, text, "  1. Heat (1995)  ★ 7.9  Action, Crime")
	assert.Contains(t, text, "  2. Inside Man\n")
	assert.Contains(t, text, "https://image.tmdb.org/t/p/w200/heat.jpg")
	assert.Contains(t, text, "/placeholder-poster.svg")
	assert.Contains(t, text, "Overview (repaired)\nCrews and vaults.\n")
	assert.Contains(t, text, "  • Heat: A professional crew.")
}

func TestRenderErrorKeepsResults(t *testing.T) {
	out := &syncBuffer{}
	term := NewTerminal(out, time.Millisecond)

	id := uuid.New()
	q := search.Query{Text: "heist", WantsOverview: true}
	term.Render(search.State{SessionID: id, Query: q, Status: search.StatusOverviewPending, Results: samplePage()})
	term.Render(search.State{
		SessionID: id, Query: q, Status: search.StatusSettled, Results: samplePage(),
		Err: searchapi.NewError(searchapi.KindUpstream, "generation failed", nil),
	})

	waitDone(t, term)
	assert.Contains(t, out.String(), "Heat")
	assert.Contains(t, out.String(), "Search failed: generation failed. Try again in a moment.")
}

func TestRenderEmptyOverview(t *testing.T) {
	out := &syncBuffer{}
	term := NewTerminal(out, time.Millisecond)

	id := uuid.New()
	ov := &movie.Overview{Explanations: []movie.Explanation{}, Metadata: movie.OverviewMetadata{DecodeStatus: movie.DecodeEmpty}}
	term.Render(search.State{SessionID: id, Status: search.StatusSettled, Results: samplePage(), Overview: ov})

	waitDone(t, term)
	assert.Contains(t, out.String(), "Overview (unavailable)\nNo overview could be generated for this search.")
}

func TestRenderOverviewHeaderAndExplanationCap(t *testing.T) {
	out := &syncBuffer{}
	term := NewTerminal(out, time.Millisecond)

	var explanations []movie.Explanation
	for i := 1; i <= 7; i++ {
		explanations = append(explanations, movie.Explanation{ID: int64(i), Title: fmt.Sprintf("Movie %d", i), Explanation: "fits"})
	}
	ov := &movie.Overview{
		Summary:      "Seven picks.",
		Explanations: explanations,
		Metadata: movie.OverviewMetadata{
			DecodeStatus:   movie.DecodeOK,
			Model:          "llama3.1:8b",
			GenerationTime: 2400 * time.Millisecond,
		},
	}
	term.Render(search.State{SessionID: uuid.New(), Status: search.StatusSettled, Results: samplePage(), Overview: ov})

	waitDone(t, term)
	text := out.String()
	assert.Contains(t, text, "Overview  llama3.1:8b · 2.4s\nSeven picks.\n")
	assert.Contains(t, text, "  • Movie 5: fits")
	assert.NotContains(t, text, "Movie 6")
	assert.Contains(t, text, "  … 2 more")
}

func TestNewSessionAbandonsReveal(t *testing.T) {
	out := &syncBuffer{}
	term := NewTerminal(out, 20*time.Millisecond)

	first := uuid.New()
	long := &movie.Overview{Summary: "This summary is far too long to finish", Metadata: movie.OverviewMetadata{DecodeStatus: movie.DecodeOK}}
	term.Render(search.State{SessionID: first, Status: search.StatusSettled, Results: samplePage(), Overview: long})
	time.Sleep(50 * time.Millisecond)

	second := uuid.New()
	term.Render(search.State{SessionID: second, Query: search.Query{Text: "noir"}, Status: search.StatusLoading})
	before := out.String()
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, before, out.String(), "no characters of the old reveal after a new session")
	assert.NotContains(t, out.String(), "finish")

	term.Render(search.State{Status: search.StatusIdle})
	waitDone(t, term)
}
