package model

import (
	"testing"

	"gorm.io/datatypes"
)

func TestDecodeCriteria(t *testing.T) {
	tests := []struct {
		name     string
		ruleType RuleType
		raw      string
		wantErr  bool
	}{
		{"range ok", RuleRangeBased, `{"min":1,"max":5}`, false},
		{"range inverted", RuleRangeBased, `{"min":5,"max":1}`, true},
		{"range negative tolerance", RuleRangeBased, `{"min":1,"max":5,"tolerance":-1}`, true},
		{"format builtin", RuleFormatBased, `{"format":"email"}`, false},
		{"format unknown", RuleFormatBased, `{"format":"carrier-pigeon"}`, true},
		{"format custom without pattern", RuleFormatBased, `{"format":"custom"}`, true},
		{"format custom with pattern", RuleFormatBased, `{"format":"custom","pattern":"^x$"}`, false},
		{"step inverted interval", RuleStepBased, `{"step_intervals":[{"min":10,"max":1}]}`, true},
		{"date range bad date", RuleDateRangeBased, `{"start_date":"not a date","end_date":"2024-01-01"}`, true},
		{"overlap ok", RuleOverlapBased, `{"expected_start":"2024-01-01","expected_end":"2024-01-31"}`, false},
		{"content analysis unknown kind", RuleContentAnalysis, `{"rules":[{"kind":"emoji_count","min":1}]}`, true},
		{"content analysis inverted band", RuleContentAnalysis, `{"rules":[{"kind":"word_count","min":10,"max":5}]}`, true},
		{"empty payload uses defaults", RuleExactMatch, "", false},
		{"unknown rule type", RuleType("vibes_based"), "{}", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCriteria(tt.ruleType, datatypes.JSON([]byte(tt.raw)))
			if (err != nil) != tt.wantErr {
				t.Errorf("DecodeCriteria error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMarkingRuleValidate(t *testing.T) {
	rangeQ := &Question{Type: RangeType}
	textQ := &Question{Type: RichText}

	tests := []struct {
		name    string
		rule    MarkingRule
		q       *Question
		wantErr bool
	}{
		{"applicable", MarkingRule{RuleType: RuleRangeBased, Points: 5, Criteria: datatypes.JSON(`{"min":1,"max":5}`)}, rangeQ, false},
		{"wrong question type", MarkingRule{RuleType: RuleRangeBased, Points: 5, Criteria: datatypes.JSON(`{"min":1,"max":5}`)}, textQ, true},
		{"negative points", MarkingRule{RuleType: RuleExactMatch, Points: -1}, textQ, true},
		{"unknown type", MarkingRule{RuleType: "telepathy_based", Points: 1}, textQ, true},
		{"bad criteria", MarkingRule{RuleType: RuleRangeBased, Points: 5, Criteria: datatypes.JSON(`{"min":9,"max":1}`)}, rangeQ, true},
		{"nil question skips applicability", MarkingRule{RuleType: RuleExactMatch, Points: 1}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate(tt.q)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRuleApplicability(t *testing.T) {
	tests := []struct {
		rule RuleType
		q    QuestionType
		want bool
	}{
		{RuleOptionBased, Radio, true},
		{RuleOptionBased, RichText, false},
		{RuleToleranceBased, RangeType, true},
		{RuleToleranceBased, DateType, true},
		{RuleToleranceBased, RichText, false},
		{RuleFileBased, FileUpload, true},
		{RuleContentAnalysis, RichText, true},
	}
	for _, tt := range tests {
		if got := tt.rule.AppliesTo(tt.q); got != tt.want {
			t.Errorf("%s applies to %s = %v, want %v", tt.rule, tt.q, got, tt.want)
		}
	}
}
