package service

import (
	"math"
	"questionnaire_backend/internal/model"
	"questionnaire_backend/pkg/logger"
	"regexp"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
)

// Built-in format patterns for format_based rules.
var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	urlPattern   = regexp.MustCompile(`^https?://[^\s]+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9][0-9\s\-()]{5,19}$`)
)

// RuleEvaluator computes the score of a single response under a single
// marking rule. Evaluation is pure: malformed or missing answers score 0
// and are logged, never raised, so one bad response cannot abort a whole
// session's aggregation.
type RuleEvaluator struct {
	log *zap.Logger
}

func NewRuleEvaluator() *RuleEvaluator {
	l := logger.Log
	if l == nil {
		l = zap.NewNop()
	}
	return &RuleEvaluator{log: l}
}

// Evaluate returns the non-negative score a rule awards a response.
func (e *RuleEvaluator) Evaluate(resp *model.QuestionResponse, rule *model.MarkingRule) float64 {
	score, _ := e.EvaluateWithDetails(resp, rule)
	return score
}

// EvaluateWithDetails also reports which criteria matched, for the
// scoring_details audit trail on ResponseScore.
func (e *RuleEvaluator) EvaluateWithDetails(resp *model.QuestionResponse, rule *model.MarkingRule) (float64, map[string]interface{}) {
	if resp == nil || rule == nil {
		return 0, nil
	}

	criteria, err := model.DecodeCriteria(rule.RuleType, rule.Criteria)
	if err != nil {
		e.log.Warn("undecodable rule criteria",
			zap.Uint("ruleId", rule.ID),
			zap.String("ruleType", string(rule.RuleType)),
			zap.Error(err))
		return 0, map[string]interface{}{"error": "undecodable criteria"}
	}

	var score float64
	var details map[string]interface{}

	switch c := criteria.(type) {
	case *model.OptionCriteria:
		score, details = e.evalOptionBased(resp, rule, c)
	case *model.RangeCriteria:
		score, details = e.evalRangeBased(resp, rule, c)
	case *model.ExactMatchCriteria:
		score, details = e.evalExactMatch(resp, rule, c)
	case *model.PartialMatchCriteria:
		score, details = e.evalPartialMatch(resp, rule, c)
	case *model.KeywordCriteria:
		score, details = e.evalKeywordBased(resp, rule, c)
	case *model.FormatCriteria:
		score, details = e.evalFormatBased(resp, rule, c)
	case *model.StepCriteria:
		score, details = e.evalStepBased(resp, rule, c)
	case *model.ToleranceCriteria:
		score, details = e.evalToleranceBased(resp, rule, c)
	case *model.DateRangeCriteria:
		score, details = e.evalDateRangeBased(resp, rule, c)
	case *model.TimeCriteria:
		score, details = e.evalTimeBased(resp, rule, c)
	case *model.OverlapCriteria:
		score, details = e.evalOverlapBased(resp, rule, c)
	case *model.FileCriteria:
		score, details = e.evalFileRule(resp, rule, c)
	case *model.StrengthCriteria:
		score, details = e.evalStrengthBased(resp, rule, c)
	case *model.ContentAnalysisCriteria:
		score, details = e.evalContentAnalysis(resp, rule, c)
	default:
		e.log.Warn("unknown rule type", zap.String("ruleType", string(rule.RuleType)))
		return 0, nil
	}

	if score < 0 {
		score = 0
	}
	return score, details
}

// evalOptionBased sums the points of selected options flagged correct. An
// option without explicit points falls back to the rule's default points;
// incorrect selections contribute nothing.
func (e *RuleEvaluator) evalOptionBased(resp *model.QuestionResponse, rule *model.MarkingRule, c *model.OptionCriteria) (float64, map[string]interface{}) {
	var score float64
	correct := make([]uint, 0, len(resp.SelectedOptions))
	for _, sel := range resp.SelectedOptions {
		if sel.Option == nil || !sel.Option.IsCorrectAnswer {
			continue
		}
		if sel.Option.Points != nil {
			score += *sel.Option.Points
		} else {
			score += rule.Points
		}
		correct = append(correct, sel.OptionID)
	}
	if c.MinimumScore != nil && score < *c.MinimumScore {
		score = *c.MinimumScore
	}
	return score, map[string]interface{}{
		"correctSelections": correct,
		"selectedCount":     len(resp.SelectedOptions),
	}
}

func (e *RuleEvaluator) evalRangeBased(resp *model.QuestionResponse, rule *model.MarkingRule, c *model.RangeCriteria) (float64, map[string]interface{}) {
	value, ok := resp.NumberValue()
	if !ok {
		return 0, map[string]interface{}{"matched": false, "reason": "no numeric answer"}
	}
	lo, hi := c.Min-c.Tolerance, c.Max+c.Tolerance
	if value >= lo && value <= hi {
		return rule.Points, map[string]interface{}{"matched": true, "value": value}
	}
	return 0, map[string]interface{}{"matched": false, "value": value}
}

func (e *RuleEvaluator) evalExactMatch(resp *model.QuestionResponse, rule *model.MarkingRule, c *model.ExactMatchCriteria) (float64, map[string]interface{}) {
	text, ok := resp.TextValue()
	if !ok {
		return 0, map[string]interface{}{"matched": false, "reason": "no text answer"}
	}
	answer := text
	if c.Trim() {
		answer = strings.TrimSpace(answer)
	}
	for _, expected := range c.ExpectedValues {
		candidate := expected
		if c.Trim() {
			candidate = strings.TrimSpace(candidate)
		}
		if c.CaseSensitive {
			if answer == candidate {
				return rule.Points, map[string]interface{}{"matched": true, "expected": expected}
			}
		} else if strings.EqualFold(answer, candidate) {
			return rule.Points, map[string]interface{}{"matched": true, "expected": expected}
		}
	}
	return 0, map[string]interface{}{"matched": false}
}

// evalPartialMatch scores word-overlap similarity (intersection over union
// of word sets) against each expected phrase, keeping the best.
func (e *RuleEvaluator) evalPartialMatch(resp *model.QuestionResponse, rule *model.MarkingRule, c *model.PartialMatchCriteria) (float64, map[string]interface{}) {
	text, ok := resp.TextValue()
	if !ok {
		return 0, map[string]interface{}{"matched": false, "reason": "no text answer"}
	}
	best := 0.0
	for _, expected := range c.ExpectedValues {
		if sim := wordOverlap(text, expected); sim > best {
			best = sim
		}
	}
	threshold := c.ThresholdOrDefault()
	if best < threshold {
		return 0, map[string]interface{}{"matched": false, "similarity": round2(best)}
	}
	if c.Proportional {
		return round2(best * rule.Points), map[string]interface{}{"matched": true, "similarity": round2(best)}
	}
	return rule.Points, map[string]interface{}{"matched": true, "similarity": round2(best)}
}

func (e *RuleEvaluator) evalKeywordBased(resp *model.QuestionResponse, rule *model.MarkingRule, c *model.KeywordCriteria) (float64, map[string]interface{}) {
	text, ok := resp.TextValue()
	if !ok || len(c.Keywords) == 0 {
		return 0, map[string]interface{}{"matched": false, "hits": 0}
	}
	low := strings.ToLower(text)
	hits := 0
	matched := make([]string, 0, len(c.Keywords))
	for _, kw := range c.Keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(low, strings.ToLower(kw)) {
			hits++
			matched = append(matched, kw)
		}
	}
	details := map[string]interface{}{"hits": hits, "keywords": matched}
	if c.Proportional {
		return round2(rule.Points * float64(hits) / float64(len(c.Keywords))), details
	}
	if hits == len(c.Keywords) {
		return rule.Points, details
	}
	return 0, details
}

func (e *RuleEvaluator) evalFormatBased(resp *model.QuestionResponse, rule *model.MarkingRule, c *model.FormatCriteria) (float64, map[string]interface{}) {
	text, ok := resp.TextValue()
	if !ok {
		return 0, map[string]interface{}{"matched": false, "reason": "no text answer"}
	}
	answer := strings.TrimSpace(text)

	var pattern *regexp.Regexp
	switch c.Format {
	case "email":
		pattern = emailPattern
	case "url":
		pattern = urlPattern
	case "phone":
		pattern = phonePattern
	default:
		compiled, err := regexp.Compile(c.Pattern)
		if err != nil {
			e.log.Warn("bad custom format pattern", zap.Uint("ruleId", rule.ID), zap.Error(err))
			return 0, map[string]interface{}{"matched": false, "reason": "bad pattern"}
		}
		pattern = compiled
	}
	if pattern.MatchString(answer) {
		return rule.Points, map[string]interface{}{"matched": true, "format": c.Format}
	}
	return 0, map[string]interface{}{"matched": false, "format": c.Format}
}

// evalStepBased picks the first interval containing the value and awards
// its own point value, falling back to the rule default.
func (e *RuleEvaluator) evalStepBased(resp *model.QuestionResponse, rule *model.MarkingRule, c *model.StepCriteria) (float64, map[string]interface{}) {
	value, ok := resp.NumberValue()
	if !ok {
		return 0, map[string]interface{}{"matched": false, "reason": "no numeric answer"}
	}
	for i, iv := range c.Intervals {
		if value >= iv.Min && value <= iv.Max {
			points := rule.Points
			if iv.Points != nil {
				points = *iv.Points
			}
			return points, map[string]interface{}{"matched": true, "interval": i}
		}
	}
	return 0, map[string]interface{}{"matched": false, "value": value}
}

func (e *RuleEvaluator) evalToleranceBased(resp *model.QuestionResponse, rule *model.MarkingRule, c *model.ToleranceCriteria) (float64, map[string]interface{}) {
	value, ok := resp.NumberValue()
	if !ok {
		return 0, map[string]interface{}{"matched": false, "reason": "no numeric answer"}
	}
	if math.Abs(value-c.ExpectedValue) <= c.Tolerance {
		return rule.Points, map[string]interface{}{"matched": true, "value": value}
	}
	return 0, map[string]interface{}{"matched": false, "value": value}
}

func (e *RuleEvaluator) evalDateRangeBased(resp *model.QuestionResponse, rule *model.MarkingRule, c *model.DateRangeCriteria) (float64, map[string]interface{}) {
	answer, ok := resp.DateValue()
	if !ok {
		return 0, map[string]interface{}{"matched": false, "reason": "no date answer"}
	}
	start, err1 := model.ParseAnswerDate(c.StartDate)
	end, err2 := model.ParseAnswerDate(c.EndDate)
	if err1 != nil || err2 != nil {
		return 0, map[string]interface{}{"matched": false, "reason": "bad criteria dates"}
	}
	if !answer.Before(start) && !answer.After(end.Add(24*time.Hour-time.Nanosecond)) {
		return rule.Points, map[string]interface{}{"matched": true}
	}
	return 0, map[string]interface{}{"matched": false}
}

func (e *RuleEvaluator) evalTimeBased(resp *model.QuestionResponse, rule *model.MarkingRule, c *model.TimeCriteria) (float64, map[string]interface{}) {
	answerMinutes, ok := answerTimeOfDay(resp)
	if !ok {
		return 0, map[string]interface{}{"matched": false, "reason": "no time answer"}
	}
	expected, err := time.Parse("15:04", c.ExpectedTime)
	if err != nil {
		return 0, map[string]interface{}{"matched": false, "reason": "bad expected time"}
	}
	expectedMinutes := float64(expected.Hour()*60 + expected.Minute())
	if math.Abs(answerMinutes-expectedMinutes) <= c.ToleranceMinutes {
		return rule.Points, map[string]interface{}{"matched": true}
	}
	return 0, map[string]interface{}{"matched": false}
}

// evalOverlapBased scores the day-overlap between the answered date range
// and the expected range, proportionally or all-or-nothing.
func (e *RuleEvaluator) evalOverlapBased(resp *model.QuestionResponse, rule *model.MarkingRule, c *model.OverlapCriteria) (float64, map[string]interface{}) {
	answerStart, answerEnd, ok := resp.DateRangeValue()
	if !ok {
		return 0, map[string]interface{}{"matched": false, "reason": "no date range answer"}
	}
	expectedStart, err1 := model.ParseAnswerDate(c.ExpectedStart)
	expectedEnd, err2 := model.ParseAnswerDate(c.ExpectedEnd)
	if err1 != nil || err2 != nil || expectedEnd.Before(expectedStart) {
		return 0, map[string]interface{}{"matched": false, "reason": "bad criteria range"}
	}

	overlap := overlapDays(answerStart, answerEnd, expectedStart, expectedEnd)
	if overlap <= 0 {
		return 0, map[string]interface{}{"matched": false, "overlapDays": 0}
	}
	details := map[string]interface{}{"matched": true, "overlapDays": overlap}
	if !c.Proportional {
		return rule.Points, details
	}
	expectedDays := expectedEnd.Sub(expectedStart).Hours()/24 + 1
	fraction := float64(overlap) / expectedDays
	if fraction > 1 {
		fraction = 1
	}
	return round2(fraction * rule.Points), details
}

// evalFileRule validates file answer metadata. file_based checks both the
// MIME allow-list and the size ceiling, size_based and type_based each
// check one, and content_based is a pass-through awarding full points.
func (e *RuleEvaluator) evalFileRule(resp *model.QuestionResponse, rule *model.MarkingRule, c *model.FileCriteria) (float64, map[string]interface{}) {
	file, ok := resp.FileValue()
	if !ok {
		return 0, map[string]interface{}{"matched": false, "reason": "no file answer"}
	}

	checkType := rule.RuleType == model.RuleFileBased || rule.RuleType == model.RuleTypeBased
	checkSize := rule.RuleType == model.RuleFileBased || rule.RuleType == model.RuleSizeBased

	if checkType && !mimeAllowed(file.ContentType, c.AllowedTypes) {
		return 0, map[string]interface{}{"matched": false, "reason": "disallowed type", "contentType": file.ContentType}
	}
	if checkSize && c.MaxSizeBytes > 0 && file.SizeBytes > c.MaxSizeBytes {
		return 0, map[string]interface{}{"matched": false, "reason": "too large", "sizeBytes": file.SizeBytes}
	}
	return rule.Points, map[string]interface{}{"matched": true}
}

// evalStrengthBased accumulates 25% of the rule's points per satisfied
// check: minimum length, uppercase, lowercase, digit.
func (e *RuleEvaluator) evalStrengthBased(resp *model.QuestionResponse, rule *model.MarkingRule, c *model.StrengthCriteria) (float64, map[string]interface{}) {
	text, ok := resp.TextValue()
	if !ok {
		return 0, map[string]interface{}{"matched": false, "reason": "no text answer"}
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range text {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	satisfied := 0
	if len([]rune(text)) >= c.MinLengthOrDefault() {
		satisfied++
	}
	if hasUpper {
		satisfied++
	}
	if hasLower {
		satisfied++
	}
	if hasDigit {
		satisfied++
	}
	return round2(rule.Points * float64(satisfied) * 0.25), map[string]interface{}{"satisfied": satisfied}
}

// evalContentAnalysis sums each sub-rule's points when the corresponding
// count falls inside its configured band. Max 0 means unbounded above.
func (e *RuleEvaluator) evalContentAnalysis(resp *model.QuestionResponse, rule *model.MarkingRule, c *model.ContentAnalysisCriteria) (float64, map[string]interface{}) {
	text, ok := resp.TextValue()
	if !ok {
		return 0, map[string]interface{}{"matched": false, "reason": "no text answer"}
	}
	var score float64
	satisfied := make([]string, 0, len(c.Rules))
	for _, sub := range c.Rules {
		var count int
		switch sub.Kind {
		case "word_count":
			count = len(strings.Fields(text))
		case "sentence_count":
			count = sentenceCount(text)
		case "paragraph_count":
			count = paragraphCount(text)
		default:
			continue
		}
		if count >= sub.Min && (sub.Max == 0 || count <= sub.Max) {
			score += sub.Points
			satisfied = append(satisfied, sub.Kind)
		}
	}
	return round2(score), map[string]interface{}{"satisfied": satisfied}
}

// --- helpers ---

func answerTimeOfDay(resp *model.QuestionResponse) (float64, bool) {
	v := resp.Value()
	if v == nil || v.Date == "" {
		return 0, false
	}
	if t, err := time.Parse("15:04", v.Date); err == nil {
		return float64(t.Hour()*60 + t.Minute()), true
	}
	t, err := model.ParseAnswerDate(v.Date)
	if err != nil {
		return 0, false
	}
	return float64(t.Hour()*60 + t.Minute()), true
}

func overlapDays(aStart, aEnd, bStart, bEnd time.Time) int {
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

func mimeAllowed(contentType string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == contentType {
			return true
		}
		if prefix, ok := strings.CutSuffix(a, "/*"); ok && strings.HasPrefix(contentType, prefix+"/") {
			return true
		}
	}
	return false
}

// wordOverlap is intersection over union of the lowercased word sets.
func wordOverlap(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.TrimFunc(w, unicode.IsPunct)
		if w != "" {
			out[w] = struct{}{}
		}
	}
	return out
}

func sentenceCount(text string) int {
	count := 0
	inSentence := false
	for _, r := range text {
		switch r {
		case '.', '!', '?':
			if inSentence {
				count++
				inSentence = false
			}
		default:
			if !unicode.IsSpace(r) {
				inSentence = true
			}
		}
	}
	if inSentence {
		count++
	}
	return count
}

func paragraphCount(text string) int {
	count := 0
	for _, block := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(block) != "" {
			count++
		}
	}
	return count
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
