package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type SessionState string

const (
	StateDraft       SessionState = "draft"
	StateStarted     SessionState = "started"
	StateInProgress  SessionState = "in_progress"
	StateCompleted   SessionState = "completed"
	StateSubmitted   SessionState = "submitted"
	StateUnderReview SessionState = "under_review"
	StateMarked      SessionState = "marked"
	StatePublished   SessionState = "published"
	StateCancelled   SessionState = "cancelled"
	StateExpired     SessionState = "expired"
)

// ResponseSession is one respondent's attempt at one assessment, unique per
// (user, assessment).
type ResponseSession struct {
	UUIDBase
	UserID       uint         `gorm:"not null;uniqueIndex:idx_session_user_assessment" json:"userId"`
	AssessmentID uint         `gorm:"not null;uniqueIndex:idx_session_user_assessment" json:"assessmentId"`
	State        SessionState `gorm:"size:20;not null;default:'draft'" json:"state"`

	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	MarkedAt    *time.Time `json:"markedAt,omitempty"`

	TotalScore       float64 `gorm:"default:0" json:"totalScore"`
	MaxPossibleScore float64 `gorm:"default:0" json:"maxPossibleScore"`
	Grade            string  `gorm:"size:10" json:"grade,omitempty"`
	Feedback         string  `gorm:"type:text" json:"feedback,omitempty"`

	User      *User              `json:"user,omitempty"`
	Responses []QuestionResponse `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"responses,omitempty"`
}

func (ResponseSession) TableName() string {
	return "response_sessions"
}

// ScorePercentage is earned over possible, 0 when nothing was scorable.
func (s *ResponseSession) ScorePercentage() float64 {
	if s.MaxPossibleScore <= 0 {
		return 0
	}
	return s.TotalScore / s.MaxPossibleScore * 100
}

// Passed is only meaningful once the session reached the marked state.
// The scheme's passing score is absolute points, so both sides are
// normalized to percentages before comparing.
func (s *ResponseSession) Passed(scheme *MarkingScheme) bool {
	if s.State != StateMarked && s.State != StatePublished {
		return false
	}
	return s.ScorePercentage() >= scheme.PassingScorePercentage()
}

// Duration is wall clock from start to completion, or to now while the
// attempt is still open.
func (s *ResponseSession) Duration() time.Duration {
	if s.StartedAt == nil {
		return 0
	}
	if s.CompletedAt != nil {
		return s.CompletedAt.Sub(*s.StartedAt)
	}
	return time.Since(*s.StartedAt)
}

// ResponseByQuestion finds the loaded response for a question, nil if absent.
func (s *ResponseSession) ResponseByQuestion(questionID uint) *QuestionResponse {
	for i := range s.Responses {
		if s.Responses[i].QuestionID == questionID {
			return &s.Responses[i]
		}
	}
	return nil
}

// AnswerValue is the typed value of a non-choice answer, keyed by kind.
type AnswerValue struct {
	Kind    string   `json:"kind"` // number, text, date, file
	Number  *float64 `json:"number,omitempty"`
	Text    string   `json:"text,omitempty"`
	Date    string   `json:"date,omitempty"`    // 2006-01-02 or RFC3339
	EndDate string   `json:"endDate,omitempty"` // date ranges
	File    *FileRef `json:"file,omitempty"`
}

// FileRef is the stored metadata of an uploaded answer file. File rules
// validate against this, never against the blob itself.
type FileRef struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
	StorageKey  string `json:"storageKey,omitempty"`
}

type QuestionResponse struct {
	BaseModel
	SessionID  string `gorm:"type:varchar(36);not null;uniqueIndex:idx_response_session_question" json:"sessionId"`
	QuestionID uint   `gorm:"not null;uniqueIndex:idx_response_session_question" json:"questionId"`

	Answer datatypes.JSON `json:"answer,omitempty"`

	Question        *Question        `json:"question,omitempty"`
	SelectedOptions []SelectedOption `gorm:"foreignKey:ResponseID;constraint:OnDelete:CASCADE" json:"selectedOptions,omitempty"`
}

func (QuestionResponse) TableName() string {
	return "question_responses"
}

// Value decodes the typed answer payload, nil when empty or malformed.
func (r *QuestionResponse) Value() *AnswerValue {
	if len(r.Answer) == 0 {
		return nil
	}
	var v AnswerValue
	if err := json.Unmarshal(r.Answer, &v); err != nil {
		return nil
	}
	return &v
}

// NumberValue returns the numeric answer. Date answers encode to days since
// epoch so tolerance rules can treat them numerically.
func (r *QuestionResponse) NumberValue() (float64, bool) {
	v := r.Value()
	if v == nil {
		return 0, false
	}
	if v.Number != nil {
		return *v.Number, true
	}
	if v.Date != "" {
		if d, err := ParseAnswerDate(v.Date); err == nil {
			return float64(d.Unix()) / 86400, true
		}
	}
	return 0, false
}

func (r *QuestionResponse) TextValue() (string, bool) {
	v := r.Value()
	if v == nil || v.Kind != "text" {
		return "", false
	}
	return v.Text, v.Text != ""
}

func (r *QuestionResponse) DateValue() (time.Time, bool) {
	v := r.Value()
	if v == nil || v.Date == "" {
		return time.Time{}, false
	}
	d, err := ParseAnswerDate(v.Date)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// DateRangeValue returns the answered [start, end] range; a single date
// answer collapses to a one-day range.
func (r *QuestionResponse) DateRangeValue() (time.Time, time.Time, bool) {
	start, ok := r.DateValue()
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	v := r.Value()
	if v.EndDate == "" {
		return start, start, true
	}
	end, err := ParseAnswerDate(v.EndDate)
	if err != nil || end.Before(start) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func (r *QuestionResponse) FileValue() (*FileRef, bool) {
	v := r.Value()
	if v == nil || v.File == nil {
		return nil, false
	}
	return v.File, true
}

// HasValidResponse reports whether the response counts as answered for the
// question's type. Used by the completeness guard.
func (r *QuestionResponse) HasValidResponse(q *Question) bool {
	if q == nil {
		return false
	}
	if q.Type.IsChoice() {
		return len(r.SelectedOptions) > 0
	}
	v := r.Value()
	if v == nil {
		return false
	}
	switch q.Type {
	case RichText:
		return strings.TrimSpace(v.Text) != ""
	case RangeType:
		return v.Number != nil
	case DateType:
		_, ok := r.DateValue()
		return ok
	case FileUpload:
		return v.File != nil
	default:
		return false
	}
}

// TriggerValueSet flattens the response into the string set trigger
// conditions compare against: selected option IDs for choice questions,
// the formatted value otherwise.
func (r *QuestionResponse) TriggerValueSet(q *Question) []string {
	if q != nil && q.Type.IsChoice() {
		out := make([]string, 0, len(r.SelectedOptions))
		for _, sel := range r.SelectedOptions {
			out = append(out, fmt.Sprintf("%d", sel.OptionID))
		}
		return out
	}
	v := r.Value()
	if v == nil {
		return nil
	}
	switch {
	case v.Number != nil:
		return []string{trimFloat(*v.Number)}
	case v.Text != "":
		return []string{v.Text}
	case v.Date != "":
		return []string{v.Date}
	}
	return nil
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%g", f)
	return s
}

// SelectedOption links a choice answer to one of the question's options.
type SelectedOption struct {
	BaseModel
	ResponseID uint `gorm:"not null;uniqueIndex:idx_selected_response_option" json:"responseId"`
	OptionID   uint `gorm:"not null;uniqueIndex:idx_selected_response_option" json:"optionId"`

	Option *Option `json:"option,omitempty"`
}

func (SelectedOption) TableName() string {
	return "selected_options"
}

// ResponseScore is the authoritative score of one response under one
// scheme, produced by the best-scoring applicable rule.
type ResponseScore struct {
	BaseModel
	ResponseID       uint           `gorm:"not null;uniqueIndex:idx_score_response_scheme" json:"responseId"`
	SchemeID         uint           `gorm:"not null;uniqueIndex:idx_score_response_scheme" json:"schemeId"`
	RuleID           uint           `gorm:"index;not null" json:"ruleId"`
	ScoreEarned      float64        `gorm:"default:0" json:"scoreEarned"`
	MaxPossibleScore float64        `gorm:"default:0" json:"maxPossibleScore"`
	ScoringDetails   datatypes.JSON `json:"scoringDetails,omitempty"`
}

func (ResponseScore) TableName() string {
	return "response_scores"
}

var answerDateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04"}

// ParseAnswerDate parses the date layouts accepted in answers and criteria.
func ParseAnswerDate(s string) (time.Time, error) {
	for _, layout := range answerDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
