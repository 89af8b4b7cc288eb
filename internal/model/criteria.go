package model

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// Criteria payloads are stored as JSON on the marking rule and decoded into
// the typed struct for the rule's type. Decoding happens once at authoring
// time (validation) and once per evaluation; the evaluator never touches
// raw maps. Field names follow the wire format used by rule authors.

// OptionCriteria tunes option_based rules.
type OptionCriteria struct {
	MinimumScore *float64 `json:"minimum_score,omitempty"`
}

// RangeCriteria is the [min-tolerance, max+tolerance] window for range_based.
type RangeCriteria struct {
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Tolerance float64 `json:"tolerance,omitempty"`
}

func (c *RangeCriteria) validate() error {
	if c.Max < c.Min {
		return fmt.Errorf("range criteria: max %v below min %v", c.Max, c.Min)
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("range criteria: negative tolerance")
	}
	return nil
}

// ExactMatchCriteria compares text answers against expected values.
type ExactMatchCriteria struct {
	ExpectedValues []string `json:"expected_values"`
	CaseSensitive  bool     `json:"case_sensitive,omitempty"`
	TrimWhitespace *bool    `json:"trim_whitespace,omitempty"` // default true
}

func (c *ExactMatchCriteria) Trim() bool {
	return c.TrimWhitespace == nil || *c.TrimWhitespace
}

// PartialMatchCriteria awards word-overlap similarity above a threshold.
type PartialMatchCriteria struct {
	ExpectedValues []string `json:"expected_values"`
	Threshold      *float64 `json:"threshold,omitempty"` // default 0.7
	Proportional   bool     `json:"proportional,omitempty"`
}

func (c *PartialMatchCriteria) ThresholdOrDefault() float64 {
	if c.Threshold == nil {
		return 0.7
	}
	return *c.Threshold
}

// KeywordCriteria counts case-insensitive keyword hits.
type KeywordCriteria struct {
	Keywords     []string `json:"keywords"`
	Proportional bool     `json:"proportional,omitempty"`
}

// FormatCriteria validates text against a built-in or custom pattern.
type FormatCriteria struct {
	Format  string `json:"format"` // email, url, phone, custom
	Pattern string `json:"pattern,omitempty"`
}

func (c *FormatCriteria) validate() error {
	switch c.Format {
	case "email", "url", "phone":
		return nil
	case "custom", "":
		if c.Pattern == "" {
			return fmt.Errorf("format criteria: custom format requires a pattern")
		}
		return nil
	default:
		return fmt.Errorf("format criteria: unknown format %q", c.Format)
	}
}

// StepInterval is one [min,max] band of a step_based rule. A nil Points
// falls back to the rule's default points.
type StepInterval struct {
	Min    float64  `json:"min"`
	Max    float64  `json:"max"`
	Points *float64 `json:"points,omitempty"`
}

type StepCriteria struct {
	Intervals []StepInterval `json:"step_intervals"`
}

func (c *StepCriteria) validate() error {
	for i, iv := range c.Intervals {
		if iv.Max < iv.Min {
			return fmt.Errorf("step criteria: interval %d has max below min", i)
		}
	}
	return nil
}

// ToleranceCriteria awards full points within |value-expected| <= tolerance.
type ToleranceCriteria struct {
	ExpectedValue float64 `json:"expected_value"`
	Tolerance     float64 `json:"tolerance,omitempty"`
}

// DateRangeCriteria accepts answers between start and end, inclusive.
// Dates use the 2006-01-02 layout.
type DateRangeCriteria struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (c *DateRangeCriteria) validate() error {
	if _, err := ParseAnswerDate(c.StartDate); err != nil {
		return fmt.Errorf("date range criteria: bad start_date: %w", err)
	}
	if _, err := ParseAnswerDate(c.EndDate); err != nil {
		return fmt.Errorf("date range criteria: bad end_date: %w", err)
	}
	return nil
}

// TimeCriteria accepts a time-of-day within a minute tolerance. Times use
// the 15:04 layout.
type TimeCriteria struct {
	ExpectedTime     string  `json:"expected_time"`
	ToleranceMinutes float64 `json:"time_tolerance,omitempty"`
}

// OverlapCriteria scores day-overlap between the answer date range and the
// expected range.
type OverlapCriteria struct {
	ExpectedStart string `json:"expected_start"`
	ExpectedEnd   string `json:"expected_end"`
	Proportional  bool   `json:"proportional,omitempty"`
}

func (c *OverlapCriteria) validate() error {
	if _, err := ParseAnswerDate(c.ExpectedStart); err != nil {
		return fmt.Errorf("overlap criteria: bad expected_start: %w", err)
	}
	if _, err := ParseAnswerDate(c.ExpectedEnd); err != nil {
		return fmt.Errorf("overlap criteria: bad expected_end: %w", err)
	}
	return nil
}

// FileCriteria validates file answer metadata for file/size/type rules.
type FileCriteria struct {
	AllowedTypes []string `json:"allowed_types,omitempty"` // MIME allow-list
	MaxSizeBytes int64    `json:"max_size_bytes,omitempty"`
}

// StrengthCriteria accumulates 25% of points per satisfied check:
// minimum length, uppercase, lowercase, digit.
type StrengthCriteria struct {
	MinLength int `json:"min_length,omitempty"` // default 8
}

func (c *StrengthCriteria) MinLengthOrDefault() int {
	if c.MinLength <= 0 {
		return 8
	}
	return c.MinLength
}

// ContentRule is one sub-rule of a content_analysis rule.
type ContentRule struct {
	Kind   string  `json:"kind"` // word_count, sentence_count, paragraph_count
	Min    int     `json:"min"`
	Max    int     `json:"max"`
	Points float64 `json:"points"`
}

type ContentAnalysisCriteria struct {
	Rules []ContentRule `json:"rules"`
}

func (c *ContentAnalysisCriteria) validate() error {
	for i, r := range c.Rules {
		switch r.Kind {
		case "word_count", "sentence_count", "paragraph_count":
		default:
			return fmt.Errorf("content analysis criteria: rule %d has unknown kind %q", i, r.Kind)
		}
		if r.Max != 0 && r.Max < r.Min {
			return fmt.Errorf("content analysis criteria: rule %d has max below min", i)
		}
	}
	return nil
}

// DecodeCriteria parses and validates the criteria payload for a rule type,
// returning the concrete typed struct. Empty payloads decode to zero-valued
// criteria so every rule type works with defaults.
func DecodeCriteria(t RuleType, raw datatypes.JSON) (interface{}, error) {
	switch t {
	case RuleOptionBased:
		c := &OptionCriteria{}
		return c, decodeInto(raw, c)
	case RuleRangeBased:
		c := &RangeCriteria{}
		if err := decodeInto(raw, c); err != nil {
			return nil, err
		}
		return c, c.validate()
	case RuleExactMatch:
		c := &ExactMatchCriteria{}
		return c, decodeInto(raw, c)
	case RulePartialMatch:
		c := &PartialMatchCriteria{}
		return c, decodeInto(raw, c)
	case RuleKeywordBased:
		c := &KeywordCriteria{}
		return c, decodeInto(raw, c)
	case RuleFormatBased:
		c := &FormatCriteria{}
		if err := decodeInto(raw, c); err != nil {
			return nil, err
		}
		return c, c.validate()
	case RuleStepBased:
		c := &StepCriteria{}
		if err := decodeInto(raw, c); err != nil {
			return nil, err
		}
		return c, c.validate()
	case RuleToleranceBased:
		c := &ToleranceCriteria{}
		return c, decodeInto(raw, c)
	case RuleDateRangeBased:
		c := &DateRangeCriteria{}
		if err := decodeInto(raw, c); err != nil {
			return nil, err
		}
		return c, c.validate()
	case RuleTimeBased:
		c := &TimeCriteria{}
		return c, decodeInto(raw, c)
	case RuleOverlapBased:
		c := &OverlapCriteria{}
		if err := decodeInto(raw, c); err != nil {
			return nil, err
		}
		return c, c.validate()
	case RuleFileBased, RuleSizeBased, RuleTypeBased, RuleContentBased:
		c := &FileCriteria{}
		return c, decodeInto(raw, c)
	case RuleStrengthBased:
		c := &StrengthCriteria{}
		return c, decodeInto(raw, c)
	case RuleContentAnalysis:
		c := &ContentAnalysisCriteria{}
		if err := decodeInto(raw, c); err != nil {
			return nil, err
		}
		return c, c.validate()
	default:
		return nil, fmt.Errorf("unknown rule type %q", t)
	}
}

func decodeInto(raw datatypes.JSON, dst interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
