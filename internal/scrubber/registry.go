package scrubber

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed recognizers.yaml
var defaultRecognizersYAML []byte

// Recognizer validators
const (
	ValidatorLuhn = "luhn"
	ValidatorIBAN = "iban"
)

// DefaultDenyListScore is used for deny list matches when a recognizer does
// not set deny_list_score.
const DefaultDenyListScore = 1.0

var ErrInvalidRecognizer = errors.New("invalid recognizer")

// RecognizerFile is the top-level YAML structure of a recognizer file.
type RecognizerFile struct {
	Recognizers []RecognizerConfig `yaml:"recognizers"`
}

// RecognizerConfig describes one recognizer. A recognizer detects exactly one
// entity type, either by regex patterns or by a list of literal terms.
type RecognizerConfig struct {
	Name            string          `yaml:"name" json:"name"`
	SupportedEntity string          `yaml:"supported_entity" json:"supported_entity"`
	Enabled         *bool           `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Patterns        []PatternConfig `yaml:"patterns,omitempty" json:"patterns,omitempty"`
	Context         []string        `yaml:"context,omitempty" json:"context,omitempty"`
	DenyList        []string        `yaml:"deny_list,omitempty" json:"deny_list,omitempty"`
	DenyListScore   float64         `yaml:"deny_list_score,omitempty" json:"deny_list_score,omitempty"`
	Validator       string          `yaml:"validator,omitempty" json:"validator,omitempty"`
}

// PatternConfig is a single regex within a recognizer. Group selects the
// submatch that gets replaced; 0 means the whole match.
type PatternConfig struct {
	Name  string  `yaml:"name" json:"name"`
	Regex string  `yaml:"regex" json:"regex"`
	Score float64 `yaml:"score" json:"score"`
	Group int     `yaml:"group,omitempty" json:"group,omitempty"`
}

func (r *RecognizerConfig) isEnabled() bool {
	if r.Enabled == nil {
		return true
	}
	return *r.Enabled
}

// DefaultRecognizers returns the recognizers embedded in the binary.
func DefaultRecognizers() ([]RecognizerConfig, error) {
	rf, err := ParseRecognizerFile(defaultRecognizersYAML)
	if err != nil {
		return nil, fmt.Errorf("parsing embedded recognizers: %w", err)
	}
	return rf.Recognizers, nil
}

// ParseRecognizerFile parses recognizer YAML.
func ParseRecognizerFile(data []byte) (*RecognizerFile, error) {
	var rf RecognizerFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing recognizer YAML: %w", err)
	}
	return &rf, nil
}

// LoadRecognizerFile reads and parses a recognizer file from disk.
func LoadRecognizerFile(path string) (*RecognizerFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading recognizer file %s: %w", path, err)
	}
	return ParseRecognizerFile(data)
}

// MergeRecognizers merges recognizer layers. A recognizer in a later layer
// replaces the one with the same name in an earlier layer; new names are
// appended in the order they appear.
func MergeRecognizers(layers ...[]RecognizerConfig) []RecognizerConfig {
	merged := []RecognizerConfig{}
	index := map[string]int{}
	for _, layer := range layers {
		for _, r := range layer {
			if i, ok := index[r.Name]; ok {
				merged[i] = r
				continue
			}
			index[r.Name] = len(merged)
			merged = append(merged, r)
		}
	}
	return merged
}

// FilterByEntities drops disabled recognizers and applies the entity allow
// and deny lists. An empty allow list allows every entity.
func FilterByEntities(recognizers []RecognizerConfig, enabled, disabled []string) []RecognizerConfig {
	allow := toEntitySet(enabled)
	deny := toEntitySet(disabled)

	filtered := []RecognizerConfig{}
	for _, r := range recognizers {
		if !r.isEnabled() {
			continue
		}
		entity := normalizeEntity(r.SupportedEntity)
		if len(allow) > 0 && !allow[entity] {
			continue
		}
		if deny[entity] {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

// compiled form of a recognizer
type recognizer struct {
	name      string
	entity    string
	patterns  []pattern
	context   []string
	validator string
}

type pattern struct {
	name  string
	re    *regexp.Regexp
	score float64
	group int
}

func compileRecognizers(configs []RecognizerConfig) ([]recognizer, error) {
	compiled := make([]recognizer, 0, len(configs))
	for _, c := range configs {
		r, err := compileRecognizer(c)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, r)
	}
	return compiled, nil
}

func compileRecognizer(c RecognizerConfig) (recognizer, error) {
	if c.Name == "" {
		return recognizer{}, fmt.Errorf("%w: missing name", ErrInvalidRecognizer)
	}
	entity := normalizeEntity(c.SupportedEntity)
	if entity == "" {
		return recognizer{}, fmt.Errorf("%w: %s has no supported_entity", ErrInvalidRecognizer, c.Name)
	}
	switch c.Validator {
	case "", ValidatorLuhn, ValidatorIBAN:
	default:
		return recognizer{}, fmt.Errorf("%w: %s uses unknown validator %q", ErrInvalidRecognizer, c.Name, c.Validator)
	}
	if len(c.Patterns) == 0 && len(c.DenyList) == 0 {
		return recognizer{}, fmt.Errorf("%w: %s has neither patterns nor deny_list", ErrInvalidRecognizer, c.Name)
	}

	r := recognizer{
		name:      c.Name,
		entity:    entity,
		validator: c.Validator,
	}
	for _, w := range c.Context {
		if w = strings.TrimSpace(w); w != "" {
			r.context = append(r.context, strings.ToLower(w))
		}
	}

	for _, p := range c.Patterns {
		if p.Score < 0 || p.Score > 1 {
			return recognizer{}, fmt.Errorf("%w: %s/%s score %.2f out of range [0,1]", ErrInvalidRecognizer, c.Name, p.Name, p.Score)
		}
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return recognizer{}, fmt.Errorf("%w: %s/%s: %v", ErrInvalidRecognizer, c.Name, p.Name, err)
		}
		if p.Group < 0 || p.Group > re.NumSubexp() {
			return recognizer{}, fmt.Errorf("%w: %s/%s selects group %d of %d", ErrInvalidRecognizer, c.Name, p.Name, p.Group, re.NumSubexp())
		}
		r.patterns = append(r.patterns, pattern{name: p.Name, re: re, score: p.Score, group: p.Group})
	}

	if len(c.DenyList) > 0 {
		terms := make([]string, 0, len(c.DenyList))
		for _, term := range c.DenyList {
			if term = strings.TrimSpace(term); term != "" {
				terms = append(terms, regexp.QuoteMeta(term))
			}
		}
		if len(terms) > 0 {
			score := c.DenyListScore
			if score == 0 {
				score = DefaultDenyListScore
			}
			re, err := regexp.Compile(`\b(?:` + strings.Join(terms, "|") + `)\b`)
			if err != nil {
				return recognizer{}, fmt.Errorf("%w: %s deny_list: %v", ErrInvalidRecognizer, c.Name, err)
			}
			r.patterns = append(r.patterns, pattern{name: "deny_list", re: re, score: score})
		}
	}

	return r, nil
}

func normalizeEntity(entity string) string {
	return strings.ToUpper(strings.TrimSpace(entity))
}

func toEntitySet(entities []string) map[string]bool {
	set := map[string]bool{}
	for _, e := range entities {
		if e = normalizeEntity(e); e != "" {
			set[e] = true
		}
	}
	return set
}
