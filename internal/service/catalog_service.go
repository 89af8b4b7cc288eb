package service

import (
	"errors"
	"fmt"

	"questionnaire_backend/internal/model"
	"questionnaire_backend/internal/repository"
	"questionnaire_backend/internal/util"

	"gorm.io/gorm"
)

// CatalogService is the authoring surface: assessments, sections,
// questions, options, marking schemes and rules. All structural
// invariants (order uniqueness, condition shape, rule applicability)
// are enforced here so the storage layer stays dumb.
type CatalogService struct {
	assessments *repository.AssessmentRepository
	marking     *repository.MarkingRepository
}

func NewCatalogService(assessments *repository.AssessmentRepository, marking *repository.MarkingRepository) *CatalogService {
	return &CatalogService{assessments: assessments, marking: marking}
}

func (s *CatalogService) CreateAssessment(a *model.Assessment) error {
	if a.Title == "" {
		return util.NewValidationError("title", "title is required")
	}
	return s.assessments.Create(a)
}

func (s *CatalogService) GetAssessment(id uint) (*model.Assessment, error) {
	a, err := s.assessments.FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrAssessmentNotFound
	}
	return a, err
}

// GetAssessmentStructure returns the assessment with its full ordered
// section and question tree.
func (s *CatalogService) GetAssessmentStructure(id uint) (*model.Assessment, error) {
	a, err := s.GetAssessment(id)
	if err != nil {
		return nil, err
	}
	sections, err := s.assessments.LoadSections(id)
	if err != nil {
		return nil, err
	}
	a.Sections = sections
	return a, nil
}

func (s *CatalogService) ListAssessments(page, limit int) ([]model.Assessment, int64, error) {
	return s.assessments.List(page, limit)
}

func (s *CatalogService) UpdateAssessment(a *model.Assessment) error {
	if _, err := s.GetAssessment(a.ID); err != nil {
		return err
	}
	if a.Title == "" {
		return util.NewValidationError("title", "title is required")
	}
	return s.assessments.Update(a)
}

func (s *CatalogService) DeleteAssessment(id uint) error {
	if _, err := s.GetAssessment(id); err != nil {
		return err
	}
	return s.assessments.Delete(id)
}

// validateCondition checks the trigger condition shape shared by
// conditional sections and questions. selfID guards a question against
// triggering on itself.
func (s *CatalogService) validateCondition(assessmentID uint, conditional bool, triggerID *uint, operator model.ConditionOperator, selfID uint) error {
	if !conditional {
		return nil
	}
	if triggerID == nil {
		return util.NewValidationError("triggerQuestionId", "conditional visibility requires a trigger question")
	}
	if selfID != 0 && *triggerID == selfID {
		return util.NewValidationError("triggerQuestionId", "question cannot trigger on itself")
	}
	if !operator.Valid() {
		return util.NewValidationError("operator", "unknown operator %q", operator)
	}
	trigger, err := s.assessments.FindQuestionByID(*triggerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return util.NewValidationError("triggerQuestionId", "trigger question %d does not exist", *triggerID)
	}
	if err != nil {
		return err
	}
	if trigger.AssessmentID != assessmentID {
		return util.NewValidationError("triggerQuestionId", "trigger question %d belongs to a different assessment", *triggerID)
	}
	return nil
}

// CreateSection appends a section to the assessment. Order and name are
// auto-assigned when absent; an explicit order must be free.
func (s *CatalogService) CreateSection(sec *model.Section) error {
	if _, err := s.GetAssessment(sec.AssessmentID); err != nil {
		return err
	}
	if err := s.validateCondition(sec.AssessmentID, sec.IsConditional, sec.TriggerQuestionID, sec.Operator, 0); err != nil {
		return err
	}
	if sec.Order == 0 {
		max, err := s.assessments.MaxSectionOrder(sec.AssessmentID)
		if err != nil {
			return err
		}
		sec.Order = max + 1
	} else {
		taken, err := s.assessments.SectionOrderTaken(sec.AssessmentID, sec.Order, 0)
		if err != nil {
			return err
		}
		if taken {
			return util.NewValidationError("order", "order %d is already taken", sec.Order)
		}
	}
	// named after the assigned order, which is unique per assessment
	if sec.Name == "" {
		sec.Name = fmt.Sprintf("Section %d", sec.Order)
	}
	return s.assessments.CreateSection(sec)
}

func (s *CatalogService) GetSection(id uint) (*model.Section, error) {
	sec, err := s.assessments.FindSectionByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrSectionNotFound
	}
	return sec, err
}

func (s *CatalogService) UpdateSection(sec *model.Section) error {
	existing, err := s.GetSection(sec.ID)
	if err != nil {
		return err
	}
	sec.AssessmentID = existing.AssessmentID
	if err := s.validateCondition(sec.AssessmentID, sec.IsConditional, sec.TriggerQuestionID, sec.Operator, 0); err != nil {
		return err
	}
	if sec.Order != existing.Order {
		taken, err := s.assessments.SectionOrderTaken(sec.AssessmentID, sec.Order, sec.ID)
		if err != nil {
			return err
		}
		if taken {
			return util.NewValidationError("order", "order %d is already taken", sec.Order)
		}
	}
	return s.assessments.UpdateSection(sec)
}

func (s *CatalogService) DeleteSection(id uint) error {
	if _, err := s.GetSection(id); err != nil {
		return err
	}
	return s.assessments.DeleteSection(id)
}

// CreateQuestion adds a question to a section, validating its type, order
// slot, metadata payload and trigger condition.
func (s *CatalogService) CreateQuestion(q *model.Question) error {
	sec, err := s.GetSection(q.SectionID)
	if err != nil {
		return err
	}
	q.AssessmentID = sec.AssessmentID
	if !q.Type.Valid() {
		return util.NewValidationError("type", "unknown question type %q", q.Type)
	}
	if q.Text == "" {
		return util.NewValidationError("text", "question text is required")
	}
	if err := q.ValidateMetaData(); err != nil {
		return util.NewValidationError("metaData", "%v", err)
	}
	if err := s.validateCondition(q.AssessmentID, q.IsConditional, q.TriggerQuestionID, q.Operator, q.ID); err != nil {
		return err
	}
	if q.Order == 0 {
		max, err := s.assessments.MaxQuestionOrder(q.SectionID)
		if err != nil {
			return err
		}
		q.Order = max + 1
	} else {
		taken, err := s.assessments.QuestionOrderTaken(q.SectionID, q.Order, 0)
		if err != nil {
			return err
		}
		if taken {
			return util.NewValidationError("order", "order %d is already taken in section %d", q.Order, q.SectionID)
		}
	}
	return s.assessments.CreateQuestion(q)
}

func (s *CatalogService) GetQuestion(id uint) (*model.Question, error) {
	q, err := s.assessments.FindQuestionByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrQuestionNotFound
	}
	return q, err
}

func (s *CatalogService) UpdateQuestion(q *model.Question) error {
	existing, err := s.GetQuestion(q.ID)
	if err != nil {
		return err
	}
	q.AssessmentID = existing.AssessmentID
	q.SectionID = existing.SectionID
	if !q.Type.Valid() {
		return util.NewValidationError("type", "unknown question type %q", q.Type)
	}
	if err := q.ValidateMetaData(); err != nil {
		return util.NewValidationError("metaData", "%v", err)
	}
	if err := s.validateCondition(q.AssessmentID, q.IsConditional, q.TriggerQuestionID, q.Operator, q.ID); err != nil {
		return err
	}
	if q.Order != existing.Order {
		taken, err := s.assessments.QuestionOrderTaken(q.SectionID, q.Order, q.ID)
		if err != nil {
			return err
		}
		if taken {
			return util.NewValidationError("order", "order %d is already taken in section %d", q.Order, q.SectionID)
		}
	}
	return s.assessments.UpdateQuestion(q)
}

func (s *CatalogService) DeleteQuestion(id uint) error {
	if _, err := s.GetQuestion(id); err != nil {
		return err
	}
	return s.assessments.DeleteQuestion(id)
}

// CreateOption attaches an answer option to a choice question.
func (s *CatalogService) CreateOption(o *model.Option) error {
	q, err := s.GetQuestion(o.QuestionID)
	if err != nil {
		return err
	}
	if !q.Type.IsChoice() {
		return util.NewValidationError("questionId", "%s questions do not take options", q.Type)
	}
	if o.Text == "" {
		return util.NewValidationError("text", "option text is required")
	}
	if o.Points != nil && *o.Points < 0 {
		return util.NewValidationError("points", "points must not be negative")
	}
	if o.Order == 0 {
		opts, err := s.assessments.OptionsByQuestion(o.QuestionID)
		if err != nil {
			return err
		}
		o.Order = len(opts) + 1
	}
	return s.assessments.CreateOption(o)
}

func (s *CatalogService) UpdateOption(o *model.Option) error {
	existing, err := s.assessments.FindOptionByID(o.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return util.ErrOptionNotFound
	}
	if err != nil {
		return err
	}
	o.QuestionID = existing.QuestionID
	if o.Points != nil && *o.Points < 0 {
		return util.NewValidationError("points", "points must not be negative")
	}
	return s.assessments.UpdateOption(o)
}

func (s *CatalogService) DeleteOption(id uint) error {
	if _, err := s.assessments.FindOptionByID(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrOptionNotFound
		}
		return err
	}
	return s.assessments.DeleteOption(id)
}

// CreateScheme creates a marking scheme for an assessment. The first
// scheme of an assessment is activated automatically.
func (s *CatalogService) CreateScheme(scheme *model.MarkingScheme) error {
	if _, err := s.GetAssessment(scheme.AssessmentID); err != nil {
		return err
	}
	if err := validateScheme(scheme); err != nil {
		return err
	}
	existing, err := s.marking.SchemesByAssessment(scheme.AssessmentID)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		scheme.IsActive = true
	}
	return s.marking.CreateScheme(scheme)
}

func validateScheme(scheme *model.MarkingScheme) error {
	if scheme.Name == "" {
		return util.NewValidationError("name", "scheme name is required")
	}
	if scheme.PassingScore < 0 {
		return util.NewValidationError("passingScore", "passing score must not be negative")
	}
	if scheme.TotalPossibleScore > 0 && scheme.PassingScore > scheme.TotalPossibleScore {
		return util.NewValidationError("passingScore", "passing score must not exceed the total possible score")
	}
	for i, b := range scheme.GradeBoundaries {
		if b.Grade == "" {
			return util.NewValidationError("gradeBoundaries", "boundary %d is missing a grade", i)
		}
		if b.MinPercentage < 0 || b.MinPercentage > 100 {
			return util.NewValidationError("gradeBoundaries", "boundary %q must be within [0, 100]", b.Grade)
		}
	}
	return nil
}

func (s *CatalogService) GetScheme(id uint) (*model.MarkingScheme, error) {
	scheme, err := s.marking.FindSchemeByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrSchemeNotFound
	}
	return scheme, err
}

func (s *CatalogService) ListSchemes(assessmentID uint) ([]model.MarkingScheme, error) {
	if _, err := s.GetAssessment(assessmentID); err != nil {
		return nil, err
	}
	return s.marking.SchemesByAssessment(assessmentID)
}

func (s *CatalogService) UpdateScheme(scheme *model.MarkingScheme) error {
	existing, err := s.GetScheme(scheme.ID)
	if err != nil {
		return err
	}
	scheme.AssessmentID = existing.AssessmentID
	if err := validateScheme(scheme); err != nil {
		return err
	}
	return s.marking.UpdateScheme(scheme)
}

// ActivateScheme makes the scheme authoritative for its assessment.
func (s *CatalogService) ActivateScheme(id uint) error {
	scheme, err := s.GetScheme(id)
	if err != nil {
		return err
	}
	return s.marking.ActivateScheme(scheme.AssessmentID, scheme.ID)
}

func (s *CatalogService) DeleteScheme(id uint) error {
	if _, err := s.GetScheme(id); err != nil {
		return err
	}
	return s.marking.DeleteScheme(id)
}

// CreateRule binds a marking rule to a question under a scheme. Rule type
// applicability against the question type is enforced here, not at
// evaluation time.
func (s *CatalogService) CreateRule(rule *model.MarkingRule) error {
	scheme, err := s.GetScheme(rule.SchemeID)
	if err != nil {
		return err
	}
	q, err := s.GetQuestion(rule.QuestionID)
	if err != nil {
		return err
	}
	if q.AssessmentID != scheme.AssessmentID {
		return util.NewValidationError("questionId", "question %d belongs to a different assessment than scheme %d", q.ID, scheme.ID)
	}
	if err := rule.Validate(q); err != nil {
		return util.NewValidationError("rule", "%v", err)
	}
	return s.marking.CreateRule(rule)
}

func (s *CatalogService) GetRule(id uint) (*model.MarkingRule, error) {
	rule, err := s.marking.FindRuleByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrRuleNotFound
	}
	return rule, err
}

func (s *CatalogService) ListRules(schemeID uint) ([]model.MarkingRule, error) {
	if _, err := s.GetScheme(schemeID); err != nil {
		return nil, err
	}
	return s.marking.RulesByScheme(schemeID)
}

func (s *CatalogService) UpdateRule(rule *model.MarkingRule) error {
	existing, err := s.GetRule(rule.ID)
	if err != nil {
		return err
	}
	rule.SchemeID = existing.SchemeID
	rule.QuestionID = existing.QuestionID
	q, err := s.GetQuestion(rule.QuestionID)
	if err != nil {
		return err
	}
	if err := rule.Validate(q); err != nil {
		return util.NewValidationError("rule", "%v", err)
	}
	return s.marking.UpdateRule(rule)
}

func (s *CatalogService) DeleteRule(id uint) error {
	if _, err := s.GetRule(id); err != nil {
		return err
	}
	return s.marking.DeleteRule(id)
}
