package movie

import (
	"strings"
	"time"
)

// Movie is one ranked item from the retrieval service.
// Everything except ID and Title is optional; the score fields are diagnostics only.
type Movie struct {
	ID               int64    `json:"id"`
	Title            string   `json:"title"`
	OriginalTitle    string   `json:"original_title,omitempty"`
	Overview         string   `json:"overview,omitempty"`
	Tagline          string   `json:"tagline,omitempty"`
	Genres           string   `json:"genres,omitempty"` // comma separated
	ReleaseDate      string   `json:"release_date,omitempty"`
	OriginalLanguage string   `json:"original_language,omitempty"`
	PosterPath       string   `json:"poster_path,omitempty"`
	VoteAverage      *float64 `json:"vote_average,omitempty"`
	VoteCount        *int     `json:"vote_count,omitempty"`
	Popularity       *float64 `json:"popularity,omitempty"`

	RerankScore *float64 `json:"rerank_score,omitempty"`
	RRFScore    *float64 `json:"rrf_score,omitempty"`
	VectorRank  *int     `json:"vector_rank,omitempty"`
	BM25Rank    *int     `json:"bm25_rank,omitempty"`
	Distance    *float64 `json:"distance,omitempty"`
}

// ReleaseYear is the year part of ReleaseDate, or "" when unknown.
func (m Movie) ReleaseYear() string {
	if m.ReleaseDate == "" {
		return ""
	}
	return strings.SplitN(m.ReleaseDate, "-", 2)[0]
}

func (m Movie) GenreList() []string {
	if strings.TrimSpace(m.Genres) == "" {
		return nil
	}
	parts := strings.Split(m.Genres, ",")
	genres := make([]string, 0, len(parts))
	for _, p := range parts {
		if g := strings.TrimSpace(p); g != "" {
			genres = append(genres, g)
		}
	}
	return genres
}

type SearchConfig struct {
	Alpha            float64 `json:"alpha"`
	RRFK             int     `json:"rrf_k"`
	VectorCandidates int     `json:"vector_candidates,omitempty"`
	BM25Candidates   int     `json:"bm25_candidates,omitempty"`
	RerankCandidates int     `json:"rerank_candidates,omitempty"`
}

type SearchTimings struct {
	EncodeMs    float64 `json:"encode_ms"`
	RetrievalMs float64 `json:"retrieval_ms"`
	FusionMs    float64 `json:"fusion_ms"`
	FetchMs     float64 `json:"fetch_ms"`
	RerankMs    float64 `json:"rerank_ms"`
	TotalMs     float64 `json:"total_ms"`
}

type RetrievalCounts struct {
	Vector int `json:"vector"`
	BM25   int `json:"bm25"`
	Fused  int `json:"fused"`
}

// SearchResponse is the wire body of a single-shot search and of a `results` frame.
type SearchResponse struct {
	Query      string           `json:"query"`
	Config     *SearchConfig    `json:"config,omitempty"`
	Timings    *SearchTimings   `json:"timings,omitempty"`
	Retrieval  *RetrievalCounts `json:"retrieval,omitempty"`
	Count      int              `json:"count"`
	Results    []Movie          `json:"results"`
	AIOverview *RawOverview     `json:"ai_overview,omitempty"`
}

// ResultPage is the immutable, display-ready result list of one session.
type ResultPage struct {
	Query      string           `json:"query"`
	TotalCount int              `json:"total_count"`
	Items      []Movie          `json:"items"`
	Timings    *SearchTimings   `json:"timings,omitempty"`
	Retrieval  *RetrievalCounts `json:"retrieval,omitempty"`
}

func (r SearchResponse) Page() ResultPage {
	items := r.Results
	if items == nil {
		items = []Movie{}
	}
	return ResultPage{
		Query:      r.Query,
		TotalCount: r.Count,
		Items:      items,
		Timings:    r.Timings,
		Retrieval:  r.Retrieval,
	}
}

type Explanation struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Explanation string `json:"explanation"`
}

// AIMetadata is the generator's own report, attached to overview payloads.
type AIMetadata struct {
	Model            string  `json:"model"`
	GenerationTimeMs float64 `json:"generation_time_ms"`
	Status           string  `json:"status"` // success | parse_error | error | no_results
	EvalCount        int     `json:"eval_count,omitempty"`
	PromptEvalCount  int     `json:"prompt_eval_count,omitempty"`
	Error            string  `json:"error,omitempty"`
}

const (
	UpstreamSuccess    = "success"
	UpstreamParseError = "parse_error"
	UpstreamError      = "error"
	UpstreamNoResults  = "no_results"
)

// RawOverview is the envelope the service wraps generated overviews in.
type RawOverview struct {
	Overview          string        `json:"overview"`
	MovieExplanations []Explanation `json:"movie_explanations"`
	AIMetadata        *AIMetadata   `json:"ai_metadata,omitempty"`
}

type DecodeStatus string

const (
	DecodeOK       DecodeStatus = "ok"
	DecodeRepaired DecodeStatus = "repaired"
	DecodeError    DecodeStatus = "error"
	DecodeEmpty    DecodeStatus = "empty"
)

type OverviewMetadata struct {
	Model           string        `json:"model,omitempty"`
	GenerationTime  time.Duration `json:"generation_time"`
	UpstreamStatus  string        `json:"upstream_status,omitempty"`
	EvalCount       int           `json:"eval_count,omitempty"`
	PromptEvalCount int           `json:"prompt_eval_count,omitempty"`
	UpstreamError   string        `json:"upstream_error,omitempty"`
	DecodeStatus    DecodeStatus  `json:"decode_status"`
}

// Overview is the decoded, best-effort result of the generation phase.
type Overview struct {
	Summary      string           `json:"summary"`
	Explanations []Explanation    `json:"explanations"`
	Metadata     OverviewMetadata `json:"metadata"`
}

// HasContent reports whether there is anything worth rendering.
func (o Overview) HasContent() bool {
	return o.Summary != "" || len(o.Explanations) > 0
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ReadyResponse struct {
	Status       string             `json:"status"`
	ModelsLoaded bool               `json:"models_loaded"`
	LoadTimes    map[string]float64 `json:"load_times"`
}
