package model

// Option belongs to a choice-type question. Points overrides the marking
// rule's default points when set.
type Option struct {
	BaseModel
	QuestionID      uint     `gorm:"index;not null" json:"questionId"`
	Text            string   `gorm:"type:text;not null" json:"text"`
	Order           int      `gorm:"default:0" json:"order"`
	IsCorrectAnswer bool     `gorm:"default:false" json:"isCorrectAnswer"`
	Points          *float64 `json:"points,omitempty"`
}

func (Option) TableName() string {
	return "options"
}
