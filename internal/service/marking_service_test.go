package service

import (
	"testing"

	"questionnaire_backend/internal/model"

	"gorm.io/datatypes"
)

func testScheme() *model.MarkingScheme {
	return &model.MarkingScheme{
		BaseModel:          model.BaseModel{ID: 1},
		AssessmentID:       1,
		Name:               "Standard",
		TotalPossibleScore: 100,
		PassingScore:       60,
		GradeBoundaries: datatypes.NewJSONSlice([]model.GradeBoundary{
			{Grade: "A", MinPercentage: 90},
			{Grade: "B", MinPercentage: 80},
			{Grade: "C", MinPercentage: 70},
			{Grade: "D", MinPercentage: 60},
		}),
		FeedbackTemplates: datatypes.JSON([]byte(`{"A":"excellent","F":"see a reviewer"}`)),
	}
}

func ruleWithID(id uint, rt model.RuleType, points float64, order int, criteria string) model.MarkingRule {
	r := model.MarkingRule{
		BaseModel: model.BaseModel{ID: id},
		RuleType:  rt, Points: points, Order: order, IsActive: true,
	}
	if criteria != "" {
		r.Criteria = datatypes.JSON([]byte(criteria))
	}
	return r
}

func TestScoreResponseBestRuleWins(t *testing.T) {
	s := NewMarkingService(nil)
	resp := answer(`{"kind":"text","text":"blue whale"}`)
	resp.ID = 5

	rules := []model.MarkingRule{
		ruleWithID(1, model.RuleExactMatch, 10, 1, `{"expected_values":["sperm whale"]}`),
		ruleWithID(2, model.RuleKeywordBased, 8, 2, `{"keywords":["whale"],"proportional":true}`),
		ruleWithID(3, model.RuleKeywordBased, 4, 3, `{"keywords":["blue"],"proportional":true}`),
	}

	score := s.scoreResponse(resp, testScheme(), rules)
	if score == nil {
		t.Fatal("scoreResponse returned nil")
	}
	if score.RuleID != 2 {
		t.Errorf("RuleID = %d, want 2 (highest scoring rule)", score.RuleID)
	}
	if score.ScoreEarned != 8 {
		t.Errorf("ScoreEarned = %v, want 8", score.ScoreEarned)
	}
	if score.MaxPossibleScore != 8 {
		t.Errorf("MaxPossibleScore = %v, want 8 (winning rule's points)", score.MaxPossibleScore)
	}
	if score.ResponseID != 5 || score.SchemeID != 1 {
		t.Errorf("score attribution = (%d, %d), want (5, 1)", score.ResponseID, score.SchemeID)
	}
}

func TestScoreResponseTieKeepsFirstRule(t *testing.T) {
	s := NewMarkingService(nil)
	resp := answer(`{"kind":"text","text":"blue"}`)

	rules := []model.MarkingRule{
		ruleWithID(1, model.RuleExactMatch, 10, 1, `{"expected_values":["blue"]}`),
		ruleWithID(2, model.RuleExactMatch, 10, 2, `{"expected_values":["blue","azure"]}`),
	}

	score := s.scoreResponse(resp, testScheme(), rules)
	if score.RuleID != 1 {
		t.Errorf("RuleID = %d, want 1 (ties keep the first rule by order)", score.RuleID)
	}
}

func TestScoreResponseAllZeroAttributedToFirstRule(t *testing.T) {
	s := NewMarkingService(nil)
	resp := answer(`{"kind":"text","text":"red"}`)

	rules := []model.MarkingRule{
		ruleWithID(1, model.RuleExactMatch, 10, 1, `{"expected_values":["blue"]}`),
		ruleWithID(2, model.RuleExactMatch, 6, 2, `{"expected_values":["green"]}`),
	}

	score := s.scoreResponse(resp, testScheme(), rules)
	if score == nil {
		t.Fatal("scoreResponse returned nil")
	}
	if score.RuleID != 1 {
		t.Errorf("RuleID = %d, want 1", score.RuleID)
	}
	if score.ScoreEarned != 0 {
		t.Errorf("ScoreEarned = %v, want 0", score.ScoreEarned)
	}
	if score.MaxPossibleScore != 10 {
		t.Errorf("MaxPossibleScore = %v, want 10 so the miss still counts against the total", score.MaxPossibleScore)
	}
}

func TestScoreResponseNoRules(t *testing.T) {
	s := NewMarkingService(nil)
	if score := s.scoreResponse(answer(`{"kind":"text","text":"x"}`), testScheme(), nil); score != nil {
		t.Errorf("expected nil score without rules, got %+v", score)
	}
}

func TestAggregate(t *testing.T) {
	s := NewMarkingService(nil)
	scheme := testScheme()

	tests := []struct {
		name      string
		scores    []*model.ResponseScore
		wantTotal float64
		wantMax   float64
		wantGrade string
	}{
		{
			"grade A at 91 percent",
			[]*model.ResponseScore{
				{ScoreEarned: 50, MaxPossibleScore: 50},
				{ScoreEarned: 41, MaxPossibleScore: 50},
			},
			91, 100, "A",
		},
		{
			"grade B at 85 percent",
			[]*model.ResponseScore{{ScoreEarned: 17, MaxPossibleScore: 20}},
			17, 20, "B",
		},
		{
			"boundary is inclusive",
			[]*model.ResponseScore{{ScoreEarned: 12, MaxPossibleScore: 20}},
			12, 20, "D",
		},
		{
			"grade F below every boundary",
			[]*model.ResponseScore{{ScoreEarned: 1, MaxPossibleScore: 10}},
			1, 10, "F",
		},
		{
			"nil scores are skipped",
			[]*model.ResponseScore{nil, {ScoreEarned: 9, MaxPossibleScore: 10}, nil},
			9, 10, "A",
		},
		{
			"nothing scorable",
			nil,
			0, 0, "F",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.aggregate(tt.scores, scheme)
			if got.TotalScore != tt.wantTotal || got.MaxPossibleScore != tt.wantMax {
				t.Errorf("total = %v/%v, want %v/%v", got.TotalScore, got.MaxPossibleScore, tt.wantTotal, tt.wantMax)
			}
			if got.Grade != tt.wantGrade {
				t.Errorf("grade = %q, want %q", got.Grade, tt.wantGrade)
			}
		})
	}
}

func TestAggregateFeedback(t *testing.T) {
	s := NewMarkingService(nil)
	scheme := testScheme()

	out := s.aggregate([]*model.ResponseScore{{ScoreEarned: 19, MaxPossibleScore: 20}}, scheme)
	if out.Feedback != "excellent" {
		t.Errorf("feedback = %q, want template for grade A", out.Feedback)
	}

	out = s.aggregate([]*model.ResponseScore{{ScoreEarned: 8, MaxPossibleScore: 20}}, scheme)
	if out.Feedback != "see a reviewer" {
		t.Errorf("feedback = %q, want template for grade F", out.Feedback)
	}

	// grade without a template gets no feedback
	out = s.aggregate([]*model.ResponseScore{{ScoreEarned: 17, MaxPossibleScore: 20}}, scheme)
	if out.Feedback != "" {
		t.Errorf("feedback = %q, want empty", out.Feedback)
	}
}

func TestGradeFor(t *testing.T) {
	scheme := testScheme()
	tests := []struct {
		percentage float64
		want       string
	}{
		{100, "A"}, {91, "A"}, {90, "A"}, {89.9, "B"}, {85, "B"},
		{70, "C"}, {60, "D"}, {59.9, "F"}, {10, "F"}, {0, "F"},
	}
	for _, tt := range tests {
		if got := scheme.GradeFor(tt.percentage); got != tt.want {
			t.Errorf("GradeFor(%v) = %q, want %q", tt.percentage, got, tt.want)
		}
	}
}

func TestScoreResponseOptionBased(t *testing.T) {
	s := NewMarkingService(nil)
	resp := &model.QuestionResponse{
		BaseModel: model.BaseModel{ID: 7},
		SelectedOptions: []model.SelectedOption{
			{OptionID: 10, Option: &model.Option{BaseModel: model.BaseModel{ID: 10}, IsCorrectAnswer: true, Points: floatPtr(4)}},
			{OptionID: 11, Option: &model.Option{BaseModel: model.BaseModel{ID: 11}}},
		},
	}
	rules := []model.MarkingRule{ruleWithID(9, model.RuleOptionBased, 2, 1, "")}

	score := s.scoreResponse(resp, testScheme(), rules)
	if score.ScoreEarned != 4 {
		t.Errorf("ScoreEarned = %v, want 4", score.ScoreEarned)
	}
	if score.RuleID != 9 {
		t.Errorf("RuleID = %d, want 9", score.RuleID)
	}
}
