package service

import (
	"math"
	"strconv"
	"testing"
	"time"

	"questionnaire_backend/internal/model"

	"gorm.io/datatypes"
)

func answer(raw string) *model.QuestionResponse {
	return &model.QuestionResponse{Answer: datatypes.JSON([]byte(raw))}
}

func newRule(rt model.RuleType, points float64, criteria string) *model.MarkingRule {
	r := &model.MarkingRule{RuleType: rt, Points: points, IsActive: true}
	if criteria != "" {
		r.Criteria = datatypes.JSON([]byte(criteria))
	}
	return r
}

func floatPtr(f float64) *float64 { return &f }

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestEvaluateExactMatch(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		criteria string
		points   float64
		want     float64
	}{
		{"case insensitive by default", `{"kind":"text","text":"Blue"}`, `{"expected_values":["blue"]}`, 10, 10},
		{"case sensitive mismatch", `{"kind":"text","text":"Blue"}`, `{"expected_values":["blue"],"case_sensitive":true}`, 10, 0},
		{"case sensitive match", `{"kind":"text","text":"blue"}`, `{"expected_values":["blue"],"case_sensitive":true}`, 10, 10},
		{"trimmed by default", `{"kind":"text","text":"  blue  "}`, `{"expected_values":["blue"]}`, 10, 10},
		{"trim disabled", `{"kind":"text","text":"  blue  "}`, `{"expected_values":["blue"],"trim_whitespace":false}`, 10, 0},
		{"any of several expected", `{"kind":"text","text":"azure"}`, `{"expected_values":["blue","azure"]}`, 10, 10},
		{"no match", `{"kind":"text","text":"red"}`, `{"expected_values":["blue"]}`, 10, 0},
	}
	e := NewRuleEvaluator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Evaluate(answer(tt.text), newRule(model.RuleExactMatch, tt.points, tt.criteria))
			if got != tt.want {
				t.Errorf("score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateRangeBased(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		criteria string
		want     float64
	}{
		{"inside range", `{"kind":"number","number":3}`, `{"min":1,"max":5}`, 5},
		{"at upper bound", `{"kind":"number","number":5}`, `{"min":1,"max":5}`, 5},
		{"outside range", `{"kind":"number","number":6}`, `{"min":1,"max":5}`, 0},
		{"inside via tolerance", `{"kind":"number","number":5.5}`, `{"min":1,"max":5,"tolerance":1}`, 5},
		{"no numeric answer", `{"kind":"text","text":"3"}`, `{"min":1,"max":5}`, 0},
	}
	e := NewRuleEvaluator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Evaluate(answer(tt.value), newRule(model.RuleRangeBased, 5, tt.criteria))
			if got != tt.want {
				t.Errorf("score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateStrengthBased(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"all four checks", "abcdEFG1", 8},
		{"missing uppercase", "abcdefg1", 6},
		{"missing digit and uppercase", "abcdefgh", 4},
		{"too short with upper lower digit", "aB1", 6},
		{"empty", "", 0},
	}
	e := NewRuleEvaluator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := answer(`{"kind":"text","text":"` + tt.text + `"}`)
			got := e.Evaluate(resp, newRule(model.RuleStrengthBased, 8, ""))
			if got != tt.want {
				t.Errorf("score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateKeywordBased(t *testing.T) {
	text := `{"kind":"text","text":"Goroutines make concurrency in Go approachable."}`
	e := NewRuleEvaluator()

	t.Run("proportional partial hits", func(t *testing.T) {
		rule := newRule(model.RuleKeywordBased, 10, `{"keywords":["concurrency","channels"],"proportional":true}`)
		if got := e.Evaluate(answer(text), rule); got != 5 {
			t.Errorf("score = %v, want 5", got)
		}
	})
	t.Run("all or nothing misses", func(t *testing.T) {
		rule := newRule(model.RuleKeywordBased, 10, `{"keywords":["concurrency","channels"]}`)
		if got := e.Evaluate(answer(text), rule); got != 0 {
			t.Errorf("score = %v, want 0", got)
		}
	})
	t.Run("all hit case insensitive", func(t *testing.T) {
		rule := newRule(model.RuleKeywordBased, 10, `{"keywords":["CONCURRENCY","go"]}`)
		if got := e.Evaluate(answer(text), rule); got != 10 {
			t.Errorf("score = %v, want 10", got)
		}
	})
}

func TestEvaluatePartialMatch(t *testing.T) {
	// word sets: answer {the,quick,brown,fox}, expected {quick,brown,fox}
	// intersection 3, union 4, similarity 0.75
	resp := answer(`{"kind":"text","text":"the quick brown fox"}`)
	e := NewRuleEvaluator()

	t.Run("above threshold full points", func(t *testing.T) {
		rule := newRule(model.RulePartialMatch, 10, `{"expected_values":["quick brown fox"]}`)
		if got := e.Evaluate(resp, rule); got != 10 {
			t.Errorf("score = %v, want 10", got)
		}
	})
	t.Run("proportional scales by similarity", func(t *testing.T) {
		rule := newRule(model.RulePartialMatch, 10, `{"expected_values":["quick brown fox"],"proportional":true}`)
		if got := e.Evaluate(resp, rule); !almostEqual(got, 7.5) {
			t.Errorf("score = %v, want 7.5", got)
		}
	})
	t.Run("below threshold scores zero", func(t *testing.T) {
		rule := newRule(model.RulePartialMatch, 10, `{"expected_values":["a completely different phrase entirely"]}`)
		if got := e.Evaluate(resp, rule); got != 0 {
			t.Errorf("score = %v, want 0", got)
		}
	})
	t.Run("custom threshold", func(t *testing.T) {
		rule := newRule(model.RulePartialMatch, 10, `{"expected_values":["quick brown fox"],"threshold":0.8}`)
		if got := e.Evaluate(resp, rule); got != 0 {
			t.Errorf("score = %v, want 0", got)
		}
	})
}

func TestEvaluateFormatBased(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		criteria string
		want     float64
	}{
		{"valid email", "user@example.com", `{"format":"email"}`, 5},
		{"invalid email", "not-an-email", `{"format":"email"}`, 0},
		{"valid url", "https://example.com/path", `{"format":"url"}`, 5},
		{"invalid url", "ftp://example.com", `{"format":"url"}`, 0},
		{"valid phone", "+44 20 7946 0958", `{"format":"phone"}`, 5},
		{"custom pattern match", "AB-1234", `{"format":"custom","pattern":"^[A-Z]{2}-\\d{4}$"}`, 5},
		{"custom pattern mismatch", "ab-1234", `{"format":"custom","pattern":"^[A-Z]{2}-\\d{4}$"}`, 0},
	}
	e := NewRuleEvaluator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := answer(`{"kind":"text","text":"` + tt.text + `"}`)
			got := e.Evaluate(resp, newRule(model.RuleFormatBased, 5, tt.criteria))
			if got != tt.want {
				t.Errorf("score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateStepBased(t *testing.T) {
	criteria := `{"step_intervals":[{"min":0,"max":10,"points":2},{"min":11,"max":20,"points":5},{"min":21,"max":30}]}`
	tests := []struct {
		name  string
		value float64
		want  float64
	}{
		{"first interval", 7, 2},
		{"second interval", 15, 5},
		{"interval without points uses rule default", 25, 3},
		{"no interval", 40, 0},
	}
	e := NewRuleEvaluator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := answer(`{"kind":"number","number":` + strconv.FormatFloat(tt.value, 'f', -1, 64) + `}`)
			got := e.Evaluate(resp, newRule(model.RuleStepBased, 3, criteria))
			if got != tt.want {
				t.Errorf("score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateToleranceBased(t *testing.T) {
	e := NewRuleEvaluator()
	rule := newRule(model.RuleToleranceBased, 4, `{"expected_value":100,"tolerance":5}`)

	if got := e.Evaluate(answer(`{"kind":"number","number":104}`), rule); got != 4 {
		t.Errorf("within tolerance: score = %v, want 4", got)
	}
	if got := e.Evaluate(answer(`{"kind":"number","number":106}`), rule); got != 0 {
		t.Errorf("outside tolerance: score = %v, want 0", got)
	}
}

func TestEvaluateToleranceBasedOnDates(t *testing.T) {
	// date answers are treated as days since epoch, so a day tolerance works
	e := NewRuleEvaluator()
	expected, err := model.ParseAnswerDate("2024-06-15")
	if err != nil {
		t.Fatal(err)
	}
	days := float64(expected.Unix()) / 86400
	rule := newRule(model.RuleToleranceBased, 6,
		`{"expected_value":`+strconv.FormatFloat(days, 'f', -1, 64)+`,"tolerance":2}`)

	if got := e.Evaluate(answer(`{"kind":"date","date":"2024-06-16"}`), rule); got != 6 {
		t.Errorf("one day off: score = %v, want 6", got)
	}
	if got := e.Evaluate(answer(`{"kind":"date","date":"2024-06-20"}`), rule); got != 0 {
		t.Errorf("five days off: score = %v, want 0", got)
	}
}

func TestEvaluateDateRangeBased(t *testing.T) {
	criteria := `{"start_date":"2024-01-01","end_date":"2024-01-31"}`
	tests := []struct {
		name string
		date string
		want float64
	}{
		{"start inclusive", "2024-01-01", 5},
		{"end inclusive", "2024-01-31", 5},
		{"middle", "2024-01-15", 5},
		{"after end", "2024-02-01", 0},
		{"before start", "2023-12-31", 0},
	}
	e := NewRuleEvaluator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := answer(`{"kind":"date","date":"` + tt.date + `"}`)
			got := e.Evaluate(resp, newRule(model.RuleDateRangeBased, 5, criteria))
			if got != tt.want {
				t.Errorf("score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateTimeBased(t *testing.T) {
	rule := newRule(model.RuleTimeBased, 3, `{"expected_time":"14:00","time_tolerance":30}`)
	e := NewRuleEvaluator()

	if got := e.Evaluate(answer(`{"kind":"date","date":"14:25"}`), rule); got != 3 {
		t.Errorf("within tolerance: score = %v, want 3", got)
	}
	if got := e.Evaluate(answer(`{"kind":"date","date":"15:00"}`), rule); got != 0 {
		t.Errorf("outside tolerance: score = %v, want 0", got)
	}
	if got := e.Evaluate(answer(`{"kind":"date","date":"2024-06-15T13:45"}`), rule); got != 3 {
		t.Errorf("datetime answer: score = %v, want 3", got)
	}
}

func TestEvaluateOverlapBased(t *testing.T) {
	e := NewRuleEvaluator()
	criteria := `{"expected_start":"2024-01-06","expected_end":"2024-01-15","proportional":true}`
	rule := newRule(model.RuleOverlapBased, 10, criteria)

	t.Run("proportional partial overlap", func(t *testing.T) {
		// answer Jan 1-10 overlaps Jan 6-15 by 5 of 10 expected days
		resp := answer(`{"kind":"date","date":"2024-01-01","endDate":"2024-01-10"}`)
		if got := e.Evaluate(resp, rule); !almostEqual(got, 5) {
			t.Errorf("score = %v, want 5", got)
		}
	})
	t.Run("no overlap", func(t *testing.T) {
		resp := answer(`{"kind":"date","date":"2024-02-01","endDate":"2024-02-10"}`)
		if got := e.Evaluate(resp, rule); got != 0 {
			t.Errorf("score = %v, want 0", got)
		}
	})
	t.Run("all or nothing any overlap", func(t *testing.T) {
		strict := newRule(model.RuleOverlapBased, 10, `{"expected_start":"2024-01-06","expected_end":"2024-01-15"}`)
		resp := answer(`{"kind":"date","date":"2024-01-15","endDate":"2024-01-20"}`)
		if got := e.Evaluate(resp, strict); got != 10 {
			t.Errorf("score = %v, want 10", got)
		}
	})
	t.Run("single date collapses to one day", func(t *testing.T) {
		resp := answer(`{"kind":"date","date":"2024-01-10"}`)
		if got := e.Evaluate(resp, rule); !almostEqual(got, 1) {
			t.Errorf("score = %v, want 1", got)
		}
	})
}

func TestEvaluateFileRules(t *testing.T) {
	pngAnswer := `{"kind":"file","file":{"name":"chart.png","contentType":"image/png","sizeBytes":2048}}`
	pdfAnswer := `{"kind":"file","file":{"name":"doc.pdf","contentType":"application/pdf","sizeBytes":4096}}`

	tests := []struct {
		name     string
		ruleType model.RuleType
		raw      string
		criteria string
		want     float64
	}{
		{"file_based accepts allowed type and size", model.RuleFileBased, pngAnswer, `{"allowed_types":["image/*"],"max_size_bytes":10000}`, 2},
		{"file_based rejects disallowed type", model.RuleFileBased, pdfAnswer, `{"allowed_types":["image/*"]}`, 0},
		{"file_based rejects oversize", model.RuleFileBased, pngAnswer, `{"allowed_types":["image/*"],"max_size_bytes":1024}`, 0},
		{"type_based ignores size", model.RuleTypeBased, pngAnswer, `{"allowed_types":["image/png"],"max_size_bytes":1024}`, 2},
		{"size_based ignores type", model.RuleSizeBased, pdfAnswer, `{"allowed_types":["image/*"],"max_size_bytes":10000}`, 2},
		{"size_based rejects oversize", model.RuleSizeBased, pdfAnswer, `{"max_size_bytes":1024}`, 0},
		{"content_based passes through", model.RuleContentBased, pdfAnswer, "", 2},
		{"empty allow list accepts any type", model.RuleTypeBased, pdfAnswer, "", 2},
	}
	e := NewRuleEvaluator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Evaluate(answer(tt.raw), newRule(tt.ruleType, 2, tt.criteria))
			if got != tt.want {
				t.Errorf("score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateOptionBased(t *testing.T) {
	e := NewRuleEvaluator()
	rule := newRule(model.RuleOptionBased, 2, "")

	correct := &model.Option{Text: "Yes", IsCorrectAnswer: true}
	correctWithPoints := &model.Option{Text: "Both", IsCorrectAnswer: true, Points: floatPtr(3)}
	wrong := &model.Option{Text: "No"}

	t.Run("sums correct selections", func(t *testing.T) {
		resp := &model.QuestionResponse{SelectedOptions: []model.SelectedOption{
			{OptionID: 1, Option: correct},
			{OptionID: 2, Option: correctWithPoints},
			{OptionID: 3, Option: wrong},
		}}
		// 2 (rule default) + 3 (option override), wrong adds nothing
		if got := e.Evaluate(resp, rule); got != 5 {
			t.Errorf("score = %v, want 5", got)
		}
	})
	t.Run("nothing correct scores zero", func(t *testing.T) {
		resp := &model.QuestionResponse{SelectedOptions: []model.SelectedOption{{OptionID: 3, Option: wrong}}}
		if got := e.Evaluate(resp, rule); got != 0 {
			t.Errorf("score = %v, want 0", got)
		}
	})
	t.Run("minimum score floor", func(t *testing.T) {
		floored := newRule(model.RuleOptionBased, 2, `{"minimum_score":1}`)
		resp := &model.QuestionResponse{SelectedOptions: []model.SelectedOption{{OptionID: 3, Option: wrong}}}
		if got := e.Evaluate(resp, floored); got != 1 {
			t.Errorf("score = %v, want 1", got)
		}
	})
}

func TestEvaluateContentAnalysis(t *testing.T) {
	criteria := `{"rules":[
		{"kind":"word_count","min":5,"max":0,"points":4},
		{"kind":"sentence_count","min":2,"max":3,"points":3},
		{"kind":"paragraph_count","min":2,"max":0,"points":2}
	]}`
	e := NewRuleEvaluator()
	rule := newRule(model.RuleContentAnalysis, 0, criteria)

	t.Run("all bands satisfied", func(t *testing.T) {
		text := "First paragraph has some words. It also has two sentences.\\n\\nSecond paragraph here."
		resp := answer(`{"kind":"text","text":"` + text + `"}`)
		if got := e.Evaluate(resp, rule); got != 9 {
			t.Errorf("score = %v, want 9", got)
		}
	})
	t.Run("only word count satisfied", func(t *testing.T) {
		resp := answer(`{"kind":"text","text":"five words in one sentence."}`)
		if got := e.Evaluate(resp, rule); got != 4 {
			t.Errorf("score = %v, want 4", got)
		}
	})
	t.Run("nothing satisfied", func(t *testing.T) {
		resp := answer(`{"kind":"text","text":"too short"}`)
		if got := e.Evaluate(resp, rule); got != 0 {
			t.Errorf("score = %v, want 0", got)
		}
	})
}

func TestEvaluateMalformedInputs(t *testing.T) {
	e := NewRuleEvaluator()

	t.Run("nil response", func(t *testing.T) {
		if got := e.Evaluate(nil, newRule(model.RuleExactMatch, 5, `{"expected_values":["x"]}`)); got != 0 {
			t.Errorf("score = %v, want 0", got)
		}
	})
	t.Run("undecodable criteria", func(t *testing.T) {
		rule := newRule(model.RuleRangeBased, 5, `{"min":10,"max":1}`)
		score, details := e.EvaluateWithDetails(answer(`{"kind":"number","number":3}`), rule)
		if score != 0 {
			t.Errorf("score = %v, want 0", score)
		}
		if details["error"] == nil {
			t.Error("expected error detail for undecodable criteria")
		}
	})
	t.Run("malformed answer json", func(t *testing.T) {
		resp := answer(`{not json`)
		if got := e.Evaluate(resp, newRule(model.RuleExactMatch, 5, `{"expected_values":["x"]}`)); got != 0 {
			t.Errorf("score = %v, want 0", got)
		}
	})
	t.Run("unknown rule type", func(t *testing.T) {
		rule := &model.MarkingRule{RuleType: "telepathy_based", Points: 5}
		if got := e.Evaluate(answer(`{"kind":"text","text":"x"}`), rule); got != 0 {
			t.Errorf("score = %v, want 0", got)
		}
	})
}

func TestEvaluateDetails(t *testing.T) {
	e := NewRuleEvaluator()
	rule := newRule(model.RuleKeywordBased, 10, `{"keywords":["alpha","beta"],"proportional":true}`)
	_, details := e.EvaluateWithDetails(answer(`{"kind":"text","text":"alpha only"}`), rule)
	if details["hits"] != 1 {
		t.Errorf("hits = %v, want 1", details["hits"])
	}
}

func TestWordOverlap(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"the quick brown fox", "quick brown fox", 0.75},
		{"alpha beta", "gamma delta", 0},
		{"same words", "same words", 1},
		{"Punctuation, matters!", "punctuation matters", 1},
		{"", "anything", 0},
	}
	for _, tt := range tests {
		if got := wordOverlap(tt.a, tt.b); !almostEqual(got, tt.want) {
			t.Errorf("wordOverlap(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSentenceAndParagraphCount(t *testing.T) {
	if got := sentenceCount("One. Two! Three?"); got != 3 {
		t.Errorf("sentenceCount = %d, want 3", got)
	}
	if got := sentenceCount("trailing without period"); got != 1 {
		t.Errorf("sentenceCount = %d, want 1", got)
	}
	if got := sentenceCount("ellipsis... counts once"); got != 2 {
		t.Errorf("sentenceCount = %d, want 2", got)
	}
	if got := paragraphCount("a\n\nb\n\n\n\nc"); got != 3 {
		t.Errorf("paragraphCount = %d, want 3", got)
	}
	if got := paragraphCount("   "); got != 0 {
		t.Errorf("paragraphCount = %d, want 0", got)
	}
}

func TestMimeAllowed(t *testing.T) {
	tests := []struct {
		contentType string
		allowed     []string
		want        bool
	}{
		{"image/png", []string{"image/*"}, true},
		{"image/png", []string{"image/png"}, true},
		{"application/pdf", []string{"image/*"}, false},
		{"imagepng", []string{"image/*"}, false},
		{"anything/at-all", nil, true},
	}
	for _, tt := range tests {
		if got := mimeAllowed(tt.contentType, tt.allowed); got != tt.want {
			t.Errorf("mimeAllowed(%q, %v) = %v, want %v", tt.contentType, tt.allowed, got, tt.want)
		}
	}
}

func TestOverlapDays(t *testing.T) {
	day := func(s string) time.Time {
		tm, err := time.Parse("2006-01-02", s)
		if err != nil {
			t.Fatal(err)
		}
		return tm
	}
	tests := []struct {
		name                         string
		aStart, aEnd, bStart, bEnd   string
		want                         int
	}{
		{"partial overlap", "2024-01-01", "2024-01-10", "2024-01-06", "2024-01-15", 5},
		{"shared boundary day", "2024-01-01", "2024-01-10", "2024-01-10", "2024-01-20", 1},
		{"disjoint", "2024-01-01", "2024-01-05", "2024-01-10", "2024-01-20", 0},
		{"contained", "2024-01-05", "2024-01-07", "2024-01-01", "2024-01-31", 3},
		{"identical single day", "2024-01-05", "2024-01-05", "2024-01-05", "2024-01-05", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := overlapDays(day(tt.aStart), day(tt.aEnd), day(tt.bStart), day(tt.bEnd))
			if got != tt.want {
				t.Errorf("overlapDays = %d, want %d", got, tt.want)
			}
		})
	}
}
