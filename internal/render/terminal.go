package render

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"moviesearch-client/pkg/movie"
	"moviesearch-client/pkg/reveal"
	"moviesearch-client/pkg/search"
	"moviesearch-client/pkg/searchapi"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

var (
	cyan   = color.New(color.FgCyan, color.Bold).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed, color.Bold).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// Terminal prints orchestrator states as they arrive and types the overview
// summary out with a Revealer. Render is safe to use as a search.Listener.
type Terminal struct {
	out        io.Writer
	posters    *searchapi.PosterResolver
	posterSize searchapi.PosterSize
	revealer   *reveal.Revealer

	mu        sync.Mutex
	session   uuid.UUID
	results   bool
	overview  *movie.Overview
	settled   bool
	revealing bool
	gen       uint64
	done      chan struct{}
}

// Only the first few explanations are listed.
const maxExplanations = 5

type Option func(*Terminal)

// WithPosters prints a poster URL under every result.
func WithPosters(resolver searchapi.PosterResolver, size searchapi.PosterSize) Option {
	return func(t *Terminal) {
		t.posters = &resolver
		t.posterSize = size
	}
}

func NewTerminal(out io.Writer, revealInterval time.Duration, opts ...Option) *Terminal {
	t := &Terminal{
		out:      out,
		revealer: reveal.NewRevealer(revealInterval),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Terminal) Render(st search.State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if st.SessionID != t.session || t.done == nil {
		t.beginLocked(st)
		if st.Status == search.StatusIdle {
			t.settled = true
			t.finishLocked()
			return
		}
	}

	if st.Results != nil && !t.results {
		t.results = true
		t.printResults(st.Results)
	}

	if st.Overview != nil && st.Overview != t.overview {
		t.overview = st.Overview
		t.startRevealLocked(*st.Overview)
	}

	if st.Settled() && !t.settled {
		t.settled = true
		if st.Err != nil {
			t.printError(st.Err)
		} else if st.Results != nil && st.Results.TotalCount == 0 {
			fmt.Fprintln(t.out, yellow("No movies matched."))
		}
		t.finishLocked()
	}
}

// Wait blocks until the current session has settled and its overview has
// been fully revealed.
func (t *Terminal) Wait(ctx context.Context) error {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop abandons any running reveal.
func (t *Terminal) Stop() {
	t.mu.Lock()
	t.gen++
	t.revealing = false
	t.finishLocked()
	t.mu.Unlock()
	t.revealer.Stop()
}

func (t *Terminal) beginLocked(st search.State) {
	t.revealer.Stop()
	t.gen++
	t.session = st.SessionID
	t.results = false
	t.overview = nil
	t.settled = false
	t.revealing = false
	t.done = make(chan struct{})

	if st.Status != search.StatusIdle {
		fmt.Fprintf(t.out, "%s %q\n", cyan("Searching"), st.Query.Text)
	}
}

func (t *Terminal) finishLocked() {
	if !t.settled || t.revealing || t.done == nil {
		return
	}
	select {
	case <-t.done:
	default:
		close(t.done)
	}
}

func (t *Terminal) printResults(page *movie.ResultPage) {
	summary := fmt.Sprintf("%d results", page.TotalCount)
	if page.Timings != nil {
		summary += fmt.Sprintf(" in %.0fms", page.Timings.TotalMs)
	}
	if page.Retrieval != nil {
		summary += fmt.Sprintf(" (vector %d, bm25 %d, fused %d)", page.Retrieval.Vector, page.Retrieval.BM25, page.Retrieval.Fused)
	}
	fmt.Fprintln(t.out, faint(summary))

	for i, m := range page.Items {
		fmt.Fprintf(t.out, "%3d. %s\n", i+1, formatMovie(m))
		if t.posters != nil {
			fmt.Fprintf(t.out, "     %s\n", faint(t.posters.URL(m.PosterPath, t.posterSize)))
		}
	}
}

func formatMovie(m movie.Movie) string {
	var b strings.Builder
	b.WriteString(bold(m.Title))
	if year := m.ReleaseYear(); year != "" {
		fmt.Fprintf(&b, " (%s)", year)
	}
	if m.VoteAverage != nil {
		fmt.Fprintf(&b, "  %s", yellow(fmt.Sprintf("★ %.1f", *m.VoteAverage)))
	}
	if genres := m.GenreList(); len(genres) > 0 {
		fmt.Fprintf(&b, "  %s", faint(strings.Join(genres, ", ")))
	}
	return b.String()
}

func (t *Terminal) printError(err *searchapi.Error) {
	msg := fmt.Sprintf("Search failed: %s", err.Reason)
	if err.Retryable() {
		msg += ". Try again in a moment."
	}
	fmt.Fprintln(t.out, red(msg))
}

func (t *Terminal) startRevealLocked(ov movie.Overview) {
	t.gen++
	gen := t.gen
	t.revealing = true

	label := "Overview"
	switch ov.Metadata.DecodeStatus {
	case movie.DecodeRepaired:
		label += " " + faint("(repaired)")
	case movie.DecodeError, movie.DecodeEmpty:
		if ov.Summary == "" {
			label += " " + faint("(unavailable)")
		}
	}
	if meta := overviewMeta(ov.Metadata); meta != "" {
		label += "  " + faint(meta)
	}
	fmt.Fprintf(t.out, "\n%s\n", green(label))

	frames := t.revealer.Start(context.Background(), ov.Summary)
	go func() {
		written := 0
		for f := range frames {
			t.mu.Lock()
			if t.gen != gen {
				t.mu.Unlock()
				return
			}
			if len(f.Text) > written {
				io.WriteString(t.out, f.Text[written:])
				written = len(f.Text)
			}
			if f.Done {
				t.finishOverviewLocked(ov)
			}
			t.mu.Unlock()
		}
	}()
}

func (t *Terminal) finishOverviewLocked(ov movie.Overview) {
	if ov.Summary == "" {
		fmt.Fprint(t.out, faint("No overview could be generated for this search."))
	}
	fmt.Fprintln(t.out)
	for i, e := range ov.Explanations {
		if i == maxExplanations {
			fmt.Fprintln(t.out, faint(fmt.Sprintf("  … %d more", len(ov.Explanations)-maxExplanations)))
			break
		}
		fmt.Fprintf(t.out, "  • %s: %s\n", bold(e.Title), e.Explanation)
	}
	t.revealing = false
	t.finishLocked()
}

// overviewMeta formats model and generation time, e.g. "llama3.1:8b · 2.4s".
func overviewMeta(m movie.OverviewMetadata) string {
	var parts []string
	if m.Model != "" {
		parts = append(parts, m.Model)
	}
	if m.GenerationTime > 0 {
		parts = append(parts, fmt.Sprintf("%.1fs", m.GenerationTime.Seconds()))
	}
	return strings.Join(parts, " · ")
}
