package model

import (
	"gorm.io/datatypes"
)

// swagger:model Assessment
type Assessment struct {
	BaseModel
	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	IsActive    bool   `gorm:"default:true" json:"isActive"`

	Sections       []Section       `gorm:"constraint:OnDelete:CASCADE" json:"sections,omitempty"`
	Questions      []Question      `gorm:"constraint:OnDelete:CASCADE" json:"questions,omitempty"`
	MarkingSchemes []MarkingScheme `gorm:"constraint:OnDelete:CASCADE" json:"markingSchemes,omitempty"`
}

func (Assessment) TableName() string {
	return "assessments"
}

// Section groups questions inside an assessment. Order is unique per
// assessment and auto-assigned (max existing + 1) when absent; gaps left
// by deleted sections are never renumbered.
type Section struct {
	BaseModel
	AssessmentID uint   `gorm:"not null;uniqueIndex:idx_section_order" json:"assessmentId"`
	Name         string `gorm:"size:255" json:"name"`
	Description  string `gorm:"type:text" json:"description"`
	Order        int    `gorm:"not null;uniqueIndex:idx_section_order" json:"order"`

	IsConditional         bool                         `gorm:"default:false" json:"isConditional"`
	TriggerQuestionID     *uint                        `gorm:"index" json:"triggerQuestionId,omitempty"`
	TriggerResponseType   TriggerResponseType          `gorm:"size:30" json:"triggerResponseType,omitempty"`
	TriggerValues         datatypes.JSONSlice[string]  `json:"triggerValues,omitempty"`
	Operator              ConditionOperator            `gorm:"size:20" json:"operator,omitempty"`
	HasCountryRestriction bool                         `gorm:"default:false" json:"hasCountryRestrictions"`
	RestrictedCountries   datatypes.JSONSlice[string]  `json:"restrictedCountries,omitempty"` // ISO alpha-3

	Questions []Question `gorm:"constraint:OnDelete:CASCADE" json:"questions,omitempty"`
}

func (Section) TableName() string {
	return "sections"
}

// Condition returns the section's visibility condition, nil when the
// section is unconditional.
func (s *Section) Condition() *VisibilityCondition {
	if !s.IsConditional || s.TriggerQuestionID == nil {
		return nil
	}
	return &VisibilityCondition{
		TriggerQuestionID:   *s.TriggerQuestionID,
		TriggerResponseType: s.TriggerResponseType,
		TriggerValues:       []string(s.TriggerValues),
		Operator:            s.Operator,
	}
}

// RestrictedFor reports whether the section is hidden for a country code.
func (s *Section) RestrictedFor(countryCode string) bool {
	if !s.HasCountryRestriction {
		return false
	}
	for _, c := range s.RestrictedCountries {
		if c == countryCode {
			return true
		}
	}
	return false
}
