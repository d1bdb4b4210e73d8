package overview

import (
	"encoding/json"
	"strings"
	"time"

	"moviesearch-client/internal/pkg/logger"
	"moviesearch-client/pkg/movie"
)

const logModule = "OverviewDecoder"

// Decoder turns raw generator payloads into a best-effort Overview. It never
// fails: whatever could not be recovered is reported through DecodeStatus.
type Decoder struct {
	repairers []Repairer
	logger    logger.ILogger
}

// NewDecoder uses DefaultRepairers when none are given.
func NewDecoder(log logger.ILogger, repairers ...Repairer) *Decoder {
	if len(repairers) == 0 {
		repairers = DefaultRepairers()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Decoder{repairers: repairers, logger: log}
}

type payload struct {
	Overview          *string             `json:"overview"`
	MovieExplanations []movie.Explanation `json:"movie_explanations"`
	AIMetadata        *movie.AIMetadata   `json:"ai_metadata"`
}

func (d *Decoder) Decode(raw string) movie.Overview {
	return d.decode(raw, true)
}

func (d *Decoder) decode(raw string, allowNested bool) movie.Overview {
	text, applied := d.repair(raw)

	if p, ok := parseObject(text); ok {
		status := movie.DecodeOK
		if len(applied) > 0 {
			status = movie.DecodeRepaired
			d.logger.Debug(logModule, "Payload repaired before parse", map[string]interface{}{"repairs": applied})
		}
		return d.fromPayload(p, status, allowNested)
	}

	if summary, ok := salvageSummary(raw); ok {
		d.logger.Warn(logModule, "Structural parse failed, salvaged overview text", map[string]interface{}{
			"payload_length": len(raw),
			"repairs":        applied,
		})
		return build(summary, nil, movie.OverviewMetadata{DecodeStatus: movie.DecodeRepaired})
	}

	d.logger.Warn(logModule, "Nothing recoverable in overview payload", map[string]interface{}{"payload_length": len(raw)})
	return build("", nil, movie.OverviewMetadata{DecodeStatus: movie.DecodeEmpty})
}

func (d *Decoder) repair(raw string) (string, []string) {
	text := strings.TrimSpace(raw)
	var applied []string
	for _, r := range d.repairers {
		var changed bool
		text, changed = r.Repair(text)
		if changed {
			applied = append(applied, r.Name())
		}
	}
	return text, applied
}

func parseObject(text string) (payload, bool) {
	var p payload
	if !strings.HasPrefix(text, "{") {
		return p, false
	}
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return p, false
	}
	return p, true
}

func (d *Decoder) fromPayload(p payload, status movie.DecodeStatus, allowNested bool) movie.Overview {
	summary := ""
	if p.Overview != nil {
		summary = *p.Overview
	}
	meta := metadataFrom(p.AIMetadata)
	meta.DecodeStatus = status

	if p.AIMetadata == nil {
		return build(summary, p.MovieExplanations, meta)
	}

	switch p.AIMetadata.Status {
	case movie.UpstreamParseError:
		// The envelope parsed but its overview field holds the generator's raw,
		// unparsed output. Decode that instead.
		if !allowNested || summary == "" {
			break
		}
		inner := d.decode(summary, false)
		if inner.Metadata.DecodeStatus == movie.DecodeEmpty {
			// Unrecoverable inner payload: show the envelope text as-is.
			meta.DecodeStatus = movie.DecodeRepaired
			return build(summary, p.MovieExplanations, meta)
		}
		explanations := inner.Explanations
		if len(explanations) == 0 {
			explanations = p.MovieExplanations
		}
		meta.DecodeStatus = inner.Metadata.DecodeStatus
		if meta.DecodeStatus == movie.DecodeOK {
			meta.DecodeStatus = movie.DecodeRepaired
		}
		return build(inner.Summary, explanations, meta)
	case movie.UpstreamError:
		meta.DecodeStatus = movie.DecodeError
	case movie.UpstreamNoResults:
		if summary == "" && len(p.MovieExplanations) == 0 {
			meta.DecodeStatus = movie.DecodeEmpty
		}
	}

	return build(summary, p.MovieExplanations, meta)
}

func metadataFrom(m *movie.AIMetadata) movie.OverviewMetadata {
	if m == nil {
		return movie.OverviewMetadata{}
	}
	return movie.OverviewMetadata{
		Model:           m.Model,
		GenerationTime:  time.Duration(m.GenerationTimeMs * float64(time.Millisecond)),
		UpstreamStatus:  m.Status,
		EvalCount:       m.EvalCount,
		PromptEvalCount: m.PromptEvalCount,
		UpstreamError:   m.Error,
	}
}

func build(summary string, explanations []movie.Explanation, meta movie.OverviewMetadata) movie.Overview {
	if explanations == nil {
		explanations = []movie.Explanation{}
	}
	return movie.Overview{Summary: summary, Explanations: explanations, Metadata: meta}
}
