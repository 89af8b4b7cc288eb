package model

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	Radio          QuestionType = "radio"
	BooleanType    QuestionType = "boolean"
	DateType       QuestionType = "date"
	RangeType      QuestionType = "range"
	RichText       QuestionType = "rich_text"
	FileUpload     QuestionType = "file_upload"
)

func (t QuestionType) Valid() bool {
	switch t {
	case MultipleChoice, Radio, BooleanType, DateType, RangeType, RichText, FileUpload:
		return true
	}
	return false
}

// IsChoice reports whether answers are recorded as selected options.
func (t QuestionType) IsChoice() bool {
	return t == MultipleChoice || t == Radio || t == BooleanType
}

// SingleSelection reports whether at most one option may be selected.
func (t QuestionType) SingleSelection() bool {
	return t == Radio || t == BooleanType
}

type TriggerResponseType string

const (
	TriggerOptionSelected TriggerResponseType = "option_selected"
	TriggerValueEquals    TriggerResponseType = "value_equals"
	TriggerValueRange     TriggerResponseType = "value_range"
)

type ConditionOperator string

const (
	OpEquals      ConditionOperator = "equals"
	OpNotEquals   ConditionOperator = "not_equals"
	OpContains    ConditionOperator = "contains"
	OpGreaterThan ConditionOperator = "greater_than"
	OpLessThan    ConditionOperator = "less_than"
	OpBetween     ConditionOperator = "between"
	OpAny         ConditionOperator = "any"
	OpAll         ConditionOperator = "all"
	OpNone        ConditionOperator = "none"
)

func (o ConditionOperator) Valid() bool {
	switch o {
	case OpEquals, OpNotEquals, OpContains, OpGreaterThan, OpLessThan, OpBetween, OpAny, OpAll, OpNone:
		return true
	}
	return false
}

// VisibilityCondition is the decoded trigger condition shared by
// conditional sections and questions.
type VisibilityCondition struct {
	TriggerQuestionID   uint                `json:"triggerQuestionId"`
	TriggerResponseType TriggerResponseType `json:"triggerResponseType"`
	TriggerValues       []string            `json:"triggerValues"`
	Operator            ConditionOperator   `json:"operator"`
}

type Question struct {
	BaseModel
	AssessmentID uint           `gorm:"index;not null" json:"assessmentId"`
	SectionID    uint           `gorm:"not null;uniqueIndex:idx_question_order" json:"sectionId"`
	Type         QuestionType   `gorm:"size:30;not null" json:"type"`
	Text         string         `gorm:"type:text;not null" json:"text"`
	HelpText     string         `gorm:"type:text" json:"helpText,omitempty"`
	Order        int            `gorm:"not null;uniqueIndex:idx_question_order" json:"order"`
	IsRequired   bool           `gorm:"default:false" json:"isRequired"`
	Active       bool           `gorm:"default:true" json:"active"`
	MetaData     datatypes.JSON `json:"metaData,omitempty"`

	IsConditional         bool                        `gorm:"default:false" json:"isConditional"`
	TriggerQuestionID     *uint                       `gorm:"index" json:"triggerQuestionId,omitempty"`
	TriggerResponseType   TriggerResponseType         `gorm:"size:30" json:"triggerResponseType,omitempty"`
	TriggerValues         datatypes.JSONSlice[string] `json:"triggerValues,omitempty"`
	Operator              ConditionOperator           `gorm:"size:20" json:"operator,omitempty"`
	HasCountryRestriction bool                        `gorm:"default:false" json:"hasCountryRestrictions"`
	RestrictedCountries   datatypes.JSONSlice[string] `json:"restrictedCountries,omitempty"`

	Options []Option `gorm:"constraint:OnDelete:CASCADE" json:"options,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

func (q *Question) Condition() *VisibilityCondition {
	if !q.IsConditional || q.TriggerQuestionID == nil {
		return nil
	}
	return &VisibilityCondition{
		TriggerQuestionID:   *q.TriggerQuestionID,
		TriggerResponseType: q.TriggerResponseType,
		TriggerValues:       []string(q.TriggerValues),
		Operator:            q.Operator,
	}
}

func (q *Question) RestrictedFor(countryCode string) bool {
	if !q.HasCountryRestriction {
		return false
	}
	for _, c := range q.RestrictedCountries {
		if c == countryCode {
			return true
		}
	}
	return false
}

// RangeMeta is the meta_data payload for range questions.
type RangeMeta struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step,omitempty"`
}

// DateMeta is the meta_data payload for date questions.
type DateMeta struct {
	IncludeTime bool `json:"includeTime,omitempty"`
	AllowRange  bool `json:"allowRange,omitempty"`
}

// TextMeta is the meta_data payload for rich text questions.
type TextMeta struct {
	MaxLength int `json:"maxLength,omitempty"`
}

// FileMetaConfig is the meta_data payload for file upload questions.
type FileMetaConfig struct {
	AllowedTypes []string `json:"allowedTypes,omitempty"`
	MaxSizeBytes int64    `json:"maxSizeBytes,omitempty"`
}

// DecodeRangeMeta parses and validates range question metadata.
func (q *Question) DecodeRangeMeta() (*RangeMeta, error) {
	if q.Type != RangeType {
		return nil, fmt.Errorf("question %d is not a range question", q.ID)
	}
	var m RangeMeta
	if len(q.MetaData) > 0 {
		if err := json.Unmarshal(q.MetaData, &m); err != nil {
			return nil, err
		}
	}
	if m.Max < m.Min {
		return nil, fmt.Errorf("range question %d: max %v below min %v", q.ID, m.Max, m.Min)
	}
	return &m, nil
}

// ValidateMetaData checks the type-specific metadata payload at authoring time.
func (q *Question) ValidateMetaData() error {
	if len(q.MetaData) == 0 {
		return nil
	}
	switch q.Type {
	case RangeType:
		_, err := q.DecodeRangeMeta()
		return err
	case DateType:
		var m DateMeta
		return json.Unmarshal(q.MetaData, &m)
	case RichText:
		var m TextMeta
		return json.Unmarshal(q.MetaData, &m)
	case FileUpload:
		var m FileMetaConfig
		return json.Unmarshal(q.MetaData, &m)
	default:
		return nil
	}
}
