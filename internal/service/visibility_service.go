package service

import (
	"sort"
	"strconv"

	"questionnaire_backend/internal/model"
)

// Catalog is an in-memory snapshot of one assessment's sections, questions
// and options, ordered for traversal. Visibility is always derived from it
// plus a session's current responses, never stored.
type Catalog struct {
	Sections      []model.Section
	questionsByID map[uint]*model.Question
}

// NewCatalog orders the sections and their questions and indexes questions
// by id.
func NewCatalog(sections []model.Section) *Catalog {
	cat := &Catalog{
		Sections:      sections,
		questionsByID: make(map[uint]*model.Question),
	}
	sort.Slice(cat.Sections, func(i, j int) bool {
		return cat.Sections[i].Order < cat.Sections[j].Order
	})
	for i := range cat.Sections {
		sec := &cat.Sections[i]
		sort.Slice(sec.Questions, func(a, b int) bool {
			return sec.Questions[a].Order < sec.Questions[b].Order
		})
		for j := range sec.Questions {
			cat.questionsByID[sec.Questions[j].ID] = &sec.Questions[j]
		}
	}
	return cat
}

// Question looks up a question by id, nil when unknown.
func (c *Catalog) Question(id uint) *model.Question {
	return c.questionsByID[id]
}

// VisibilityService decides what a given session actually sees: which
// sections and questions are shown, how to navigate between them, and
// whether the session satisfies the completeness guard. Everything is
// recomputed per call because visibility depends on mutable answers.
type VisibilityService struct{}

func NewVisibilityService() *VisibilityService {
	return &VisibilityService{}
}

// SectionVisible applies the country restriction and, for conditional
// sections, the trigger condition against the session's responses.
func (v *VisibilityService) SectionVisible(cat *Catalog, section *model.Section, session *model.ResponseSession) bool {
	if section.RestrictedFor(sessionCountry(session)) {
		return false
	}
	if cond := section.Condition(); cond != nil {
		return v.conditionMet(cat, cond, session)
	}
	return true
}

// QuestionVisible requires the question to be active, pass its own country
// and trigger checks, and sit inside a visible section.
func (v *VisibilityService) QuestionVisible(cat *Catalog, question *model.Question, session *model.ResponseSession) bool {
	if !question.Active {
		return false
	}
	if question.RestrictedFor(sessionCountry(session)) {
		return false
	}
	if cond := question.Condition(); cond != nil && !v.conditionMet(cat, cond, session) {
		return false
	}
	for i := range cat.Sections {
		if cat.Sections[i].ID == question.SectionID {
			return v.SectionVisible(cat, &cat.Sections[i], session)
		}
	}
	return false
}

// VisibleSections returns the ordered sections shown to this session.
func (v *VisibilityService) VisibleSections(cat *Catalog, session *model.ResponseSession) []*model.Section {
	out := make([]*model.Section, 0, len(cat.Sections))
	for i := range cat.Sections {
		if v.SectionVisible(cat, &cat.Sections[i], session) {
			out = append(out, &cat.Sections[i])
		}
	}
	return out
}

// VisibleQuestionsInSection returns the ordered visible questions of one
// section for this session.
func (v *VisibilityService) VisibleQuestionsInSection(cat *Catalog, section *model.Section, session *model.ResponseSession) []*model.Question {
	if !v.SectionVisible(cat, section, session) {
		return nil
	}
	out := make([]*model.Question, 0, len(section.Questions))
	for i := range section.Questions {
		q := &section.Questions[i]
		if !q.Active || q.RestrictedFor(sessionCountry(session)) {
			continue
		}
		if cond := q.Condition(); cond != nil && !v.conditionMet(cat, cond, session) {
			continue
		}
		out = append(out, q)
	}
	return out
}

// flattenedVisibleQuestions walks the visible sections in order and
// concatenates their visible questions.
func (v *VisibilityService) flattenedVisibleQuestions(cat *Catalog, session *model.ResponseSession) []*model.Question {
	var out []*model.Question
	for _, sec := range v.VisibleSections(cat, session) {
		out = append(out, v.VisibleQuestionsInSection(cat, sec, session)...)
	}
	return out
}

// NextVisibleQuestion scans forward from the current question across the
// flattened visible sequence; nil at the end. A zero current id returns
// the first visible question.
func (v *VisibilityService) NextVisibleQuestion(cat *Catalog, session *model.ResponseSession, currentID uint) *model.Question {
	flat := v.flattenedVisibleQuestions(cat, session)
	if currentID == 0 {
		if len(flat) == 0 {
			return nil
		}
		return flat[0]
	}
	for i, q := range flat {
		if q.ID == currentID && i+1 < len(flat) {
			return flat[i+1]
		}
	}
	return nil
}

// PreviousVisibleQuestion scans backward; nil at the start.
func (v *VisibilityService) PreviousVisibleQuestion(cat *Catalog, session *model.ResponseSession, currentID uint) *model.Question {
	flat := v.flattenedVisibleQuestions(cat, session)
	for i, q := range flat {
		if q.ID == currentID && i > 0 {
			return flat[i-1]
		}
	}
	return nil
}

// NextVisibleSection returns the visible section after the current one,
// nil at the boundary.
func (v *VisibilityService) NextVisibleSection(cat *Catalog, session *model.ResponseSession, currentID uint) *model.Section {
	visible := v.VisibleSections(cat, session)
	if currentID == 0 {
		if len(visible) == 0 {
			return nil
		}
		return visible[0]
	}
	for i, sec := range visible {
		if sec.ID == currentID && i+1 < len(visible) {
			return visible[i+1]
		}
	}
	return nil
}

func (v *VisibilityService) PreviousVisibleSection(cat *Catalog, session *model.ResponseSession, currentID uint) *model.Section {
	visible := v.VisibleSections(cat, session)
	for i, sec := range visible {
		if sec.ID == currentID && i > 0 {
			return visible[i-1]
		}
	}
	return nil
}

// CanAccessSection enforces strictly sequential completion: the section
// must be visible and every required visible question in every preceding
// visible section must already hold a valid response.
func (v *VisibilityService) CanAccessSection(cat *Catalog, section *model.Section, session *model.ResponseSession) bool {
	if !v.SectionVisible(cat, section, session) {
		return false
	}
	for _, sec := range v.VisibleSections(cat, session) {
		if sec.Order >= section.Order {
			break
		}
		for _, q := range v.VisibleQuestionsInSection(cat, sec, session) {
			if !q.IsRequired {
				continue
			}
			resp := session.ResponseByQuestion(q.ID)
			if resp == nil || !resp.HasValidResponse(q) {
				return false
			}
		}
	}
	return true
}

// AllRequiredVisibleQuestionsAnswered is the completeness guard for the
// complete transition. It returns the ids of unanswered required visible
// questions so the rejection can name them.
func (v *VisibilityService) AllRequiredVisibleQuestionsAnswered(cat *Catalog, session *model.ResponseSession) (bool, []uint) {
	var missing []uint
	for _, q := range v.flattenedVisibleQuestions(cat, session) {
		if !q.IsRequired {
			continue
		}
		resp := session.ResponseByQuestion(q.ID)
		if resp == nil || !resp.HasValidResponse(q) {
			missing = append(missing, q.ID)
		}
	}
	return len(missing) == 0, missing
}

// CompletionPercentage counts answered required questions over all
// required questions assessment-wide. Deliberately not filtered by
// visibility: this feeds progress bars, while the complete guard above is
// the strict, visibility-aware gate.
func (v *VisibilityService) CompletionPercentage(cat *Catalog, session *model.ResponseSession) float64 {
	total, answered := 0, 0
	for i := range cat.Sections {
		for j := range cat.Sections[i].Questions {
			q := &cat.Sections[i].Questions[j]
			if !q.Active || !q.IsRequired {
				continue
			}
			total++
			if resp := session.ResponseByQuestion(q.ID); resp != nil && resp.HasValidResponse(q) {
				answered++
			}
		}
	}
	if total == 0 {
		return 100
	}
	return float64(answered) / float64(total) * 100
}

// conditionMet evaluates a trigger condition against the session's
// existing response to the trigger question. No response means hidden.
func (v *VisibilityService) conditionMet(cat *Catalog, cond *model.VisibilityCondition, session *model.ResponseSession) bool {
	resp := session.ResponseByQuestion(cond.TriggerQuestionID)
	if resp == nil {
		return false
	}
	values := resp.TriggerValueSet(cat.Question(cond.TriggerQuestionID))
	if len(values) == 0 {
		return false
	}

	switch cond.Operator {
	case model.OpEquals:
		return intersects(values, cond.TriggerValues)
	case model.OpNotEquals:
		return !intersects(values, cond.TriggerValues)
	case model.OpContains, model.OpAny:
		return intersects(values, cond.TriggerValues)
	case model.OpAll:
		return superset(values, cond.TriggerValues)
	case model.OpNone:
		return !intersects(values, cond.TriggerValues)
	case model.OpGreaterThan:
		answer, expected, ok := numericPair(values, cond.TriggerValues)
		return ok && answer > expected
	case model.OpLessThan:
		answer, expected, ok := numericPair(values, cond.TriggerValues)
		return ok && answer < expected
	case model.OpBetween:
		if len(cond.TriggerValues) < 2 {
			return false
		}
		answer, ok1 := parseNumeric(values[0])
		lo, ok2 := parseNumeric(cond.TriggerValues[0])
		hi, ok3 := parseNumeric(cond.TriggerValues[1])
		return ok1 && ok2 && ok3 && answer >= lo && answer <= hi
	default:
		return false
	}
}

func sessionCountry(session *model.ResponseSession) string {
	if session == nil || session.User == nil {
		return ""
	}
	return session.User.CountryCode
}

func intersects(values, expected []string) bool {
	for _, v := range values {
		for _, e := range expected {
			if v == e {
				return true
			}
		}
	}
	return false
}

func superset(values, expected []string) bool {
	if len(expected) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	for _, e := range expected {
		if _, ok := set[e]; !ok {
			return false
		}
	}
	return true
}

func numericPair(values, expected []string) (float64, float64, bool) {
	if len(values) == 0 || len(expected) == 0 {
		return 0, 0, false
	}
	answer, ok1 := parseNumeric(values[0])
	want, ok2 := parseNumeric(expected[0])
	return answer, want, ok1 && ok2
}

func parseNumeric(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}
