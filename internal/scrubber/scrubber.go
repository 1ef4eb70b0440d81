// Package scrubber detects personally identifiable information in text and
// replaces it with entity placeholders such as {{EMAIL}} or {{NAME}}.
//
// The HTTP layer only depends on the Engine interface; Scrubber is the
// default, recognizer based implementation.
package scrubber

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/mpilhlt/dhamps-anonymizer/internal/scrubber")

const (
	// DefaultMinScore is the minimum confidence a match needs to be replaced.
	DefaultMinScore = 0.5

	// ContextBoost is added to a match's score when one of its recognizer's
	// context words occurs near the match.
	ContextBoost = 0.35

	// ContextWindow is the number of bytes searched for context words on
	// each side of a match.
	ContextWindow = 100
)

// Engine removes PII from text. Implementations must be safe for concurrent
// use and must not retain the text after returning.
type Engine interface {
	Clean(ctx context.Context, text string) (string, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, text string) (string, error)

func (f EngineFunc) Clean(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// Finding is one detected PII span. Start and End are byte offsets into the
// scanned text.
type Finding struct {
	Entity     string  `json:"entity"`
	Recognizer string  `json:"recognizer"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float64 `json:"score"`
}

// Placeholder returns the replacement token for an entity type.
func Placeholder(entity string) string {
	return "{{" + entity + "}}"
}

// Scrubber is the default Engine. It is immutable after construction.
type Scrubber struct {
	recognizers []recognizer
	minScore    float64
}

// Option configures a Scrubber.
type Option func(*config)

type config struct {
	patternFile      string
	extra            []RecognizerConfig
	enabledEntities  []string
	disabledEntities []string
	minScore         float64
}

// WithPatternFile layers the recognizers of a YAML file over the defaults.
func WithPatternFile(path string) Option {
	return func(c *config) { c.patternFile = path }
}

// WithRecognizers layers recognizers over the defaults and the pattern file.
func WithRecognizers(recognizers ...RecognizerConfig) Option {
	return func(c *config) { c.extra = append(c.extra, recognizers...) }
}

// WithEnabledEntities restricts the scrubber to the given entity types.
func WithEnabledEntities(entities []string) Option {
	return func(c *config) { c.enabledEntities = entities }
}

// WithDisabledEntities removes the given entity types.
func WithDisabledEntities(entities []string) Option {
	return func(c *config) { c.disabledEntities = entities }
}

// WithMinScore overrides DefaultMinScore. Values <= 0 keep the default.
func WithMinScore(score float64) Option {
	return func(c *config) { c.minScore = score }
}

// New builds a Scrubber from the embedded recognizers and the given options.
func New(opts ...Option) (*Scrubber, error) {
	var cfg config
	for _, o := range opts {
		o(&cfg)
	}

	defaults, err := DefaultRecognizers()
	if err != nil {
		return nil, err
	}

	var fromFile []RecognizerConfig
	if cfg.patternFile != "" {
		rf, err := LoadRecognizerFile(cfg.patternFile)
		if err != nil {
			return nil, err
		}
		fromFile = rf.Recognizers
	}

	merged := MergeRecognizers(defaults, fromFile, cfg.extra)
	merged = FilterByEntities(merged, cfg.enabledEntities, cfg.disabledEntities)

	compiled, err := compileRecognizers(merged)
	if err != nil {
		return nil, err
	}

	minScore := DefaultMinScore
	if cfg.minScore > 0 {
		minScore = cfg.minScore
	}

	return &Scrubber{recognizers: compiled, minScore: minScore}, nil
}

// MustNew is like New but panics on error.
func MustNew(opts ...Option) *Scrubber {
	s, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("scrubber.New: %v", err))
	}
	return s
}

// Entities lists the entity types this scrubber detects, sorted.
func (s *Scrubber) Entities() []string {
	seen := map[string]bool{}
	entities := []string{}
	for _, r := range s.recognizers {
		if !seen[r.entity] {
			seen[r.entity] = true
			entities = append(entities, r.entity)
		}
	}
	sort.Strings(entities)
	return entities
}

// Scan returns every match that passes its validator and reaches the minimum
// score, ordered by position.
func (s *Scrubber) Scan(ctx context.Context, text string) ([]Finding, error) {
	findings := []Finding{}
	for _, r := range s.recognizers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, p := range r.patterns {
			for _, m := range p.re.FindAllStringSubmatchIndex(text, -1) {
				start, end := m[2*p.group], m[2*p.group+1]
				if start < 0 || start == end {
					continue
				}
				if r.validator != "" && !validate(r.validator, text[start:end]) {
					continue
				}
				score := boostWithContext(text, start, end, p.score, r.context)
				if score < s.minScore {
					continue
				}
				findings = append(findings, Finding{
					Entity:     r.entity,
					Recognizer: r.name,
					Start:      start,
					End:        end,
					Score:      score,
				})
			}
		}
	}

	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Start != findings[j].Start {
			return findings[i].Start < findings[j].Start
		}
		return findings[i].End > findings[j].End
	})
	return findings, nil
}

// Clean replaces every finding with its entity placeholder. Overlapping
// findings collapse into one placeholder covering their union; the finding
// with the highest score names it.
func (s *Scrubber) Clean(ctx context.Context, text string) (string, error) {
	ctx, span := tracer.Start(ctx, "scrubber.clean")
	defer span.End()

	findings, err := s.Scan(ctx, text)
	if err != nil {
		span.SetAttributes(attribute.Bool("scrubber.cancelled", true))
		return "", err
	}
	span.SetAttributes(
		attribute.Int("scrubber.text_length", len(text)),
		attribute.Int("scrubber.finding_count", len(findings)),
	)
	if len(findings) == 0 {
		return text, nil
	}

	merged := mergeOverlapping(findings)

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, f := range merged {
		b.WriteString(text[last:f.Start])
		b.WriteString(Placeholder(f.Entity))
		last = f.End
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

// mergeOverlapping expects findings sorted by Start (longest first).
func mergeOverlapping(findings []Finding) []Finding {
	merged := []Finding{}
	for _, f := range findings {
		if len(merged) == 0 {
			merged = append(merged, f)
			continue
		}
		last := &merged[len(merged)-1]
		if f.Start >= last.End {
			merged = append(merged, f)
			continue
		}
		if f.Score > last.Score {
			last.Entity = f.Entity
			last.Recognizer = f.Recognizer
			last.Score = f.Score
		}
		if f.End > last.End {
			last.End = f.End
		}
	}
	return merged
}

func boostWithContext(text string, start, end int, score float64, words []string) float64 {
	if len(words) == 0 {
		return score
	}
	from := start - ContextWindow
	if from < 0 {
		from = 0
	}
	to := end + ContextWindow
	if to > len(text) {
		to = len(text)
	}
	window := strings.ToLower(text[from:to])
	for _, w := range words {
		if strings.Contains(window, w) {
			return score + ContextBoost
		}
	}
	return score
}
