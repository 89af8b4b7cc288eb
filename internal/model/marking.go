package model

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

type RuleType string

const (
	RuleOptionBased     RuleType = "option_based"
	RuleRangeBased      RuleType = "range_based"
	RuleExactMatch      RuleType = "exact_match"
	RulePartialMatch    RuleType = "partial_match"
	RuleKeywordBased    RuleType = "keyword_based"
	RuleFormatBased     RuleType = "format_based"
	RuleStepBased       RuleType = "step_based"
	RuleToleranceBased  RuleType = "tolerance_based"
	RuleDateRangeBased  RuleType = "date_range_based"
	RuleTimeBased       RuleType = "time_based"
	RuleOverlapBased    RuleType = "overlap_based"
	RuleFileBased       RuleType = "file_based"
	RuleSizeBased       RuleType = "size_based"
	RuleTypeBased       RuleType = "type_based"
	RuleContentBased    RuleType = "content_based"
	RuleStrengthBased   RuleType = "strength_based"
	RuleContentAnalysis RuleType = "content_analysis"
)

// ruleApplicability constrains each rule type to the question types it can
// score. Enforced when a rule is authored.
var ruleApplicability = map[RuleType][]QuestionType{
	RuleOptionBased:     {MultipleChoice, Radio, BooleanType},
	RuleRangeBased:      {RangeType},
	RuleStepBased:       {RangeType},
	RuleToleranceBased:  {RangeType, DateType},
	RuleDateRangeBased:  {DateType},
	RuleTimeBased:       {DateType},
	RuleOverlapBased:    {DateType},
	RuleExactMatch:      {RichText},
	RulePartialMatch:    {RichText},
	RuleKeywordBased:    {RichText},
	RuleFormatBased:     {RichText},
	RuleStrengthBased:   {RichText},
	RuleContentAnalysis: {RichText},
	RuleFileBased:       {FileUpload},
	RuleSizeBased:       {FileUpload},
	RuleTypeBased:       {FileUpload},
	RuleContentBased:    {FileUpload},
}

func (t RuleType) Valid() bool {
	_, ok := ruleApplicability[t]
	return ok
}

// AppliesTo reports whether the rule type can score the question type.
func (t RuleType) AppliesTo(q QuestionType) bool {
	for _, allowed := range ruleApplicability[t] {
		if allowed == q {
			return true
		}
	}
	return false
}

// GradeBoundary maps a letter grade to its minimum percentage. Boundaries
// are evaluated in stored order, highest threshold first.
type GradeBoundary struct {
	Grade         string  `json:"grade"`
	MinPercentage float64 `json:"minPercentage"`
}

type MarkingScheme struct {
	BaseModel
	AssessmentID       uint                               `gorm:"index;not null" json:"assessmentId"`
	Name               string                             `gorm:"size:255;not null" json:"name"`
	IsActive           bool                               `gorm:"default:false" json:"isActive"`
	TotalPossibleScore float64                            `gorm:"default:0" json:"totalPossibleScore"`
	PassingScore       float64                            `gorm:"default:0" json:"passingScore"` // absolute points
	GradeBoundaries    datatypes.JSONSlice[GradeBoundary] `json:"gradeBoundaries,omitempty"`
	FeedbackTemplates  datatypes.JSON                     `json:"feedbackTemplates,omitempty"` // grade -> message

	Rules []MarkingRule `gorm:"foreignKey:SchemeID;constraint:OnDelete:CASCADE" json:"rules,omitempty"`
}

func (MarkingScheme) TableName() string {
	return "marking_schemes"
}

// GradeFor scans the boundaries in stored order and returns the first grade
// whose threshold the percentage meets. Defaults to "F".
func (s *MarkingScheme) GradeFor(percentage float64) string {
	for _, b := range s.GradeBoundaries {
		if percentage >= b.MinPercentage {
			return b.Grade
		}
	}
	return "F"
}

// FeedbackFor looks up the feedback template for a grade, empty when none.
func (s *MarkingScheme) FeedbackFor(grade string) string {
	if len(s.FeedbackTemplates) == 0 {
		return ""
	}
	var templates map[string]string
	if err := json.Unmarshal(s.FeedbackTemplates, &templates); err != nil {
		return ""
	}
	return templates[grade]
}

// PassingScorePercentage expresses the absolute passing score against the
// scheme's total possible score.
func (s *MarkingScheme) PassingScorePercentage() float64 {
	if s.TotalPossibleScore <= 0 {
		return 0
	}
	return s.PassingScore / s.TotalPossibleScore * 100
}

type MarkingRule struct {
	BaseModel
	QuestionID uint           `gorm:"index;not null" json:"questionId"`
	SchemeID   uint           `gorm:"index;not null" json:"schemeId"`
	RuleType   RuleType       `gorm:"size:30;not null" json:"ruleType"`
	Points     float64        `gorm:"not null" json:"points"`
	IsActive   bool           `gorm:"default:true" json:"isActive"`
	Order      int            `gorm:"default:0" json:"order"`
	Criteria   datatypes.JSON `json:"criteria,omitempty"`
}

func (MarkingRule) TableName() string {
	return "marking_rules"
}

// Validate checks the rule against its question at authoring time.
func (r *MarkingRule) Validate(q *Question) error {
	if !r.RuleType.Valid() {
		return fmt.Errorf("unknown rule type %q", r.RuleType)
	}
	if q != nil && !r.RuleType.AppliesTo(q.Type) {
		return fmt.Errorf("rule type %q not applicable to %q question", r.RuleType, q.Type)
	}
	if r.Points < 0 {
		return fmt.Errorf("rule points must be non-negative")
	}
	_, err := DecodeCriteria(r.RuleType, r.Criteria)
	return err
}
