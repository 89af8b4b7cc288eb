package service

import (
	"testing"

	"questionnaire_backend/internal/model"

	"gorm.io/datatypes"
)

func uintPtr(u uint) *uint { return &u }

// surveyCatalog builds a three-section assessment:
//
//	section 1: Q1 radio (options 10/11), Q2 rich text shown when Q1 = option 10
//	section 2: shown when Q1 = option 11, holds required Q3 (range)
//	section 3: hidden for USA respondents, holds optional Q4
func surveyCatalog() *Catalog {
	q1 := model.Question{
		BaseModel: model.BaseModel{ID: 1},
		SectionID: 1, Type: model.Radio, Text: "Do you own a car?",
		Order: 1, IsRequired: true, Active: true,
		Options: []model.Option{
			{BaseModel: model.BaseModel{ID: 10}, QuestionID: 1, Text: "Yes", Order: 1},
			{BaseModel: model.BaseModel{ID: 11}, QuestionID: 1, Text: "No", Order: 2},
		},
	}
	q2 := model.Question{
		BaseModel: model.BaseModel{ID: 2},
		SectionID: 1, Type: model.RichText, Text: "Which model?",
		Order: 2, IsRequired: true, Active: true,
		IsConditional:     true,
		TriggerQuestionID: uintPtr(1),
		TriggerValues:     datatypes.NewJSONSlice([]string{"10"}),
		Operator:          model.OpEquals,
	}
	q3 := model.Question{
		BaseModel: model.BaseModel{ID: 3},
		SectionID: 2, Type: model.RangeType, Text: "How many trips per week?",
		Order: 1, IsRequired: true, Active: true,
	}
	q4 := model.Question{
		BaseModel: model.BaseModel{ID: 4},
		SectionID: 3, Type: model.RichText, Text: "Anything else?",
		Order: 1, Active: true,
	}

	sections := []model.Section{
		{BaseModel: model.BaseModel{ID: 1}, AssessmentID: 1, Name: "Ownership", Order: 1, Questions: []model.Question{q1, q2}},
		{
			BaseModel: model.BaseModel{ID: 2}, AssessmentID: 1, Name: "Alternatives", Order: 2,
			IsConditional:     true,
			TriggerQuestionID: uintPtr(1),
			TriggerValues:     datatypes.NewJSONSlice([]string{"11"}),
			Operator:          model.OpEquals,
			Questions:         []model.Question{q3},
		},
		{
			BaseModel: model.BaseModel{ID: 3}, AssessmentID: 1, Name: "Extras", Order: 3,
			HasCountryRestriction: true,
			RestrictedCountries:   datatypes.NewJSONSlice([]string{"USA"}),
			Questions:             []model.Question{q4},
		},
	}
	return NewCatalog(sections)
}

func sessionWith(country string, responses ...model.QuestionResponse) *model.ResponseSession {
	return &model.ResponseSession{
		User:      &model.User{CountryCode: country},
		Responses: responses,
	}
}

func choiceResponse(questionID uint, optionIDs ...uint) model.QuestionResponse {
	resp := model.QuestionResponse{QuestionID: questionID}
	for _, id := range optionIDs {
		resp.SelectedOptions = append(resp.SelectedOptions, model.SelectedOption{OptionID: id})
	}
	return resp
}

func textResponse(questionID uint, text string) model.QuestionResponse {
	return model.QuestionResponse{
		QuestionID: questionID,
		Answer:     datatypes.JSON([]byte(`{"kind":"text","text":"` + text + `"}`)),
	}
}

func numberResponse(questionID uint, raw string) model.QuestionResponse {
	return model.QuestionResponse{
		QuestionID: questionID,
		Answer:     datatypes.JSON([]byte(`{"kind":"number","number":` + raw + `}`)),
	}
}

func TestQuestionVisibilityFollowsTrigger(t *testing.T) {
	cat := surveyCatalog()
	v := NewVisibilityService()
	q2 := cat.Question(2)

	tests := []struct {
		name    string
		session *model.ResponseSession
		want    bool
	}{
		{"trigger option selected", sessionWith("GBR", choiceResponse(1, 10)), true},
		{"other option selected", sessionWith("GBR", choiceResponse(1, 11)), false},
		{"trigger unanswered", sessionWith("GBR"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.QuestionVisible(cat, q2, tt.session); got != tt.want {
				t.Errorf("QuestionVisible = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSectionVisibilityFollowsTrigger(t *testing.T) {
	cat := surveyCatalog()
	v := NewVisibilityService()

	yes := sessionWith("GBR", choiceResponse(1, 10))
	no := sessionWith("GBR", choiceResponse(1, 11))

	if v.SectionVisible(cat, &cat.Sections[1], yes) {
		t.Error("conditional section visible though trigger not met")
	}
	if !v.SectionVisible(cat, &cat.Sections[1], no) {
		t.Error("conditional section hidden though trigger met")
	}

	// a question inside a hidden section is hidden regardless of its own state
	if v.QuestionVisible(cat, cat.Question(3), yes) {
		t.Error("question visible inside hidden section")
	}
}

func TestCountryRestriction(t *testing.T) {
	cat := surveyCatalog()
	v := NewVisibilityService()

	if v.SectionVisible(cat, &cat.Sections[2], sessionWith("USA")) {
		t.Error("restricted section visible for USA")
	}
	if !v.SectionVisible(cat, &cat.Sections[2], sessionWith("GBR")) {
		t.Error("section hidden for unrestricted country")
	}
	if v.QuestionVisible(cat, cat.Question(4), sessionWith("USA")) {
		t.Error("question visible inside country-restricted section")
	}
}

func TestInactiveQuestionHidden(t *testing.T) {
	cat := surveyCatalog()
	v := NewVisibilityService()
	cat.Question(1).Active = false

	if v.QuestionVisible(cat, cat.Question(1), sessionWith("GBR")) {
		t.Error("inactive question reported visible")
	}
	if qs := v.VisibleQuestionsInSection(cat, &cat.Sections[0], sessionWith("GBR", choiceResponse(1, 10))); len(qs) != 1 || qs[0].ID != 2 {
		t.Errorf("visible questions = %v, want only question 2", questionIDs(qs))
	}
}

func questionIDs(qs []*model.Question) []uint {
	out := make([]uint, len(qs))
	for i, q := range qs {
		out[i] = q.ID
	}
	return out
}

func TestVisibleSectionsOrdering(t *testing.T) {
	cat := surveyCatalog()
	v := NewVisibilityService()

	secs := v.VisibleSections(cat, sessionWith("GBR", choiceResponse(1, 11)))
	if len(secs) != 3 {
		t.Fatalf("visible sections = %d, want 3", len(secs))
	}
	for i, wantID := range []uint{1, 2, 3} {
		if secs[i].ID != wantID {
			t.Errorf("section[%d].ID = %d, want %d", i, secs[i].ID, wantID)
		}
	}

	secs = v.VisibleSections(cat, sessionWith("USA", choiceResponse(1, 10)))
	if len(secs) != 1 || secs[0].ID != 1 {
		t.Errorf("expected only section 1, got %d sections", len(secs))
	}
}

func TestQuestionNavigation(t *testing.T) {
	cat := surveyCatalog()
	v := NewVisibilityService()
	session := sessionWith("GBR", choiceResponse(1, 11))
	// visible flat order: Q1, Q3, Q4 (Q2 hidden, trigger is option 10)

	if q := v.NextVisibleQuestion(cat, session, 0); q == nil || q.ID != 1 {
		t.Errorf("first question = %v, want 1", q)
	}
	if q := v.NextVisibleQuestion(cat, session, 1); q == nil || q.ID != 3 {
		t.Errorf("after Q1 = %v, want 3", q)
	}
	if q := v.NextVisibleQuestion(cat, session, 4); q != nil {
		t.Errorf("next after last = %v, want nil", q.ID)
	}
	if q := v.PreviousVisibleQuestion(cat, session, 3); q == nil || q.ID != 1 {
		t.Errorf("before Q3 = %v, want 1", q)
	}
	if q := v.PreviousVisibleQuestion(cat, session, 1); q != nil {
		t.Errorf("previous before first = %v, want nil", q.ID)
	}
}

func TestSectionNavigation(t *testing.T) {
	cat := surveyCatalog()
	v := NewVisibilityService()
	session := sessionWith("GBR", choiceResponse(1, 10))
	// section 2 hidden: visible order is 1, 3

	if s := v.NextVisibleSection(cat, session, 0); s == nil || s.ID != 1 {
		t.Errorf("first section = %v, want 1", s)
	}
	if s := v.NextVisibleSection(cat, session, 1); s == nil || s.ID != 3 {
		t.Errorf("section after 1 = %v, want 3 (2 is hidden)", s)
	}
	if s := v.NextVisibleSection(cat, session, 3); s != nil {
		t.Errorf("next after last = %v, want nil", s.ID)
	}
	if s := v.PreviousVisibleSection(cat, session, 3); s == nil || s.ID != 1 {
		t.Errorf("section before 3 = %v, want 1", s)
	}
}

func TestCanAccessSection(t *testing.T) {
	cat := surveyCatalog()
	v := NewVisibilityService()

	// Q1 answered "No": section 2 visible, but required Q1 is the only
	// answered question in section 1, so section 2 is reachable.
	ready := sessionWith("GBR", choiceResponse(1, 11))
	if !v.CanAccessSection(cat, &cat.Sections[1], ready) {
		t.Error("section 2 inaccessible though section 1 complete")
	}

	// Q1 answered "Yes" exposes required Q2; section 3 stays locked until
	// Q2 is answered.
	partial := sessionWith("GBR", choiceResponse(1, 10))
	if v.CanAccessSection(cat, &cat.Sections[2], partial) {
		t.Error("section 3 accessible with required question unanswered")
	}
	full := sessionWith("GBR", choiceResponse(1, 10), textResponse(2, "a hatchback"))
	if !v.CanAccessSection(cat, &cat.Sections[2], full) {
		t.Error("section 3 inaccessible though prerequisites answered")
	}

	// hidden sections are never accessible
	if v.CanAccessSection(cat, &cat.Sections[1], partial) {
		t.Error("hidden section reported accessible")
	}
}

func TestAllRequiredVisibleQuestionsAnswered(t *testing.T) {
	cat := surveyCatalog()
	v := NewVisibilityService()

	t.Run("missing required question is named", func(t *testing.T) {
		session := sessionWith("GBR", choiceResponse(1, 10))
		ok, missing := v.AllRequiredVisibleQuestionsAnswered(cat, session)
		if ok {
			t.Fatal("complete though Q2 unanswered")
		}
		if len(missing) != 1 || missing[0] != 2 {
			t.Errorf("missing = %v, want [2]", missing)
		}
	})
	t.Run("hidden required questions do not block", func(t *testing.T) {
		// Q1 = "Yes" hides section 2, so required Q3 is not demanded
		session := sessionWith("GBR", choiceResponse(1, 10), textResponse(2, "a van"))
		if ok, missing := v.AllRequiredVisibleQuestionsAnswered(cat, session); !ok {
			t.Errorf("incomplete, missing %v", missing)
		}
	})
	t.Run("alternate branch demands its own questions", func(t *testing.T) {
		session := sessionWith("GBR", choiceResponse(1, 11))
		ok, missing := v.AllRequiredVisibleQuestionsAnswered(cat, session)
		if ok {
			t.Fatal("complete though Q3 unanswered")
		}
		if len(missing) != 1 || missing[0] != 3 {
			t.Errorf("missing = %v, want [3]", missing)
		}
	})
	t.Run("empty answers do not count", func(t *testing.T) {
		session := sessionWith("GBR", choiceResponse(1, 11), textResponse(3, ""))
		if ok, _ := v.AllRequiredVisibleQuestionsAnswered(cat, session); ok {
			t.Error("blank answer accepted as valid response")
		}
	})
}

func TestCompletionPercentage(t *testing.T) {
	cat := surveyCatalog()
	v := NewVisibilityService()

	// three required active questions assessment-wide: Q1, Q2, Q3.
	// the percentage deliberately ignores visibility.
	tests := []struct {
		name    string
		session *model.ResponseSession
		want    float64
	}{
		{"nothing answered", sessionWith("GBR"), 0},
		{"one of three", sessionWith("GBR", choiceResponse(1, 10)), 100.0 / 3},
		{"two of three", sessionWith("GBR", choiceResponse(1, 10), textResponse(2, "x")), 200.0 / 3},
		{"all three", sessionWith("GBR", choiceResponse(1, 10), textResponse(2, "x"), numberResponse(3, "4")), 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.CompletionPercentage(cat, tt.session); !almostEqual(got, tt.want) {
				t.Errorf("CompletionPercentage = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConditionOperators(t *testing.T) {
	// a range question triggering on its numeric answer
	trigger := model.Question{
		BaseModel: model.BaseModel{ID: 7},
		SectionID: 1, Type: model.RangeType, Text: "Years of experience", Order: 1, Active: true,
	}
	cat := NewCatalog([]model.Section{
		{BaseModel: model.BaseModel{ID: 1}, Order: 1, Questions: []model.Question{trigger}},
	})
	v := NewVisibilityService()

	cond := func(op model.ConditionOperator, values ...string) *model.VisibilityCondition {
		return &model.VisibilityCondition{TriggerQuestionID: 7, TriggerValues: values, Operator: op}
	}

	tests := []struct {
		name    string
		cond    *model.VisibilityCondition
		session *model.ResponseSession
		want    bool
	}{
		{"equals match", cond(model.OpEquals, "5"), sessionWith("", numberResponse(7, "5")), true},
		{"equals mismatch", cond(model.OpEquals, "5"), sessionWith("", numberResponse(7, "6")), false},
		{"not_equals", cond(model.OpNotEquals, "5"), sessionWith("", numberResponse(7, "6")), true},
		{"greater_than true", cond(model.OpGreaterThan, "3"), sessionWith("", numberResponse(7, "5")), true},
		{"greater_than equal is false", cond(model.OpGreaterThan, "5"), sessionWith("", numberResponse(7, "5")), false},
		{"less_than", cond(model.OpLessThan, "10"), sessionWith("", numberResponse(7, "5")), true},
		{"between inclusive", cond(model.OpBetween, "3", "5"), sessionWith("", numberResponse(7, "5")), true},
		{"between outside", cond(model.OpBetween, "3", "5"), sessionWith("", numberResponse(7, "6")), false},
		{"no response hides", cond(model.OpEquals, "5"), sessionWith(""), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.conditionMet(cat, tt.cond, tt.session); got != tt.want {
				t.Errorf("conditionMet = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConditionSetOperators(t *testing.T) {
	// multi-select trigger: answers are option id sets
	trigger := model.Question{
		BaseModel: model.BaseModel{ID: 8},
		SectionID: 1, Type: model.MultipleChoice, Text: "Which apply?", Order: 1, Active: true,
	}
	cat := NewCatalog([]model.Section{
		{BaseModel: model.BaseModel{ID: 1}, Order: 1, Questions: []model.Question{trigger}},
	})
	v := NewVisibilityService()

	cond := func(op model.ConditionOperator, values ...string) *model.VisibilityCondition {
		return &model.VisibilityCondition{TriggerQuestionID: 8, TriggerValues: values, Operator: op}
	}
	selected := sessionWith("", choiceResponse(8, 20, 21))

	tests := []struct {
		name string
		cond *model.VisibilityCondition
		want bool
	}{
		{"any hits one", cond(model.OpAny, "21", "99"), true},
		{"any hits none", cond(model.OpAny, "98", "99"), false},
		{"contains is any", cond(model.OpContains, "20"), true},
		{"all satisfied", cond(model.OpAll, "20", "21"), true},
		{"all partially satisfied", cond(model.OpAll, "20", "99"), false},
		{"none satisfied", cond(model.OpNone, "98", "99"), true},
		{"none violated", cond(model.OpNone, "21"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.conditionMet(cat, tt.cond, selected); got != tt.want {
				t.Errorf("conditionMet = %v, want %v", got, tt.want)
			}
		})
	}
}
