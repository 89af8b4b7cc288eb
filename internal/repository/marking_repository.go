package repository

import (
	"questionnaire_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MarkingRepository struct {
	DB *gorm.DB
}

func NewMarkingRepository(db *gorm.DB) *MarkingRepository {
	return &MarkingRepository{DB: db}
}

func (r *MarkingRepository) CreateScheme(s *model.MarkingScheme) error {
	return r.DB.Create(s).Error
}

func (r *MarkingRepository) FindSchemeByID(id uint) (*model.MarkingScheme, error) {
	var s model.MarkingScheme
	err := r.DB.First(&s, id).Error
	return &s, err
}

func (r *MarkingRepository) UpdateScheme(s *model.MarkingScheme) error {
	return r.DB.Save(s).Error
}

func (r *MarkingRepository) DeleteScheme(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("scheme_id = ?", id).Delete(&model.MarkingRule{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.MarkingScheme{}, id).Error
	})
}

func (r *MarkingRepository) SchemesByAssessment(assessmentID uint) ([]model.MarkingScheme, error) {
	var schemes []model.MarkingScheme
	err := r.DB.Where("assessment_id = ?", assessmentID).Order("created_at asc").Find(&schemes).Error
	return schemes, err
}

// ActiveScheme returns the assessment's single authoritative scheme.
func (r *MarkingRepository) ActiveScheme(assessmentID uint) (*model.MarkingScheme, error) {
	var s model.MarkingScheme
	err := r.DB.Where("assessment_id = ? AND is_active = ?", assessmentID, true).First(&s).Error
	return &s, err
}

// ActivateScheme makes one scheme authoritative, deactivating its siblings
// in the same transaction so exactly one is active at a time.
func (r *MarkingRepository) ActivateScheme(assessmentID, schemeID uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.MarkingScheme{}).
			Where("assessment_id = ? AND id <> ?", assessmentID, schemeID).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Model(&model.MarkingScheme{}).
			Where("id = ?", schemeID).
			Update("is_active", true).Error
	})
}

func (r *MarkingRepository) CreateRule(rule *model.MarkingRule) error {
	return r.DB.Create(rule).Error
}

func (r *MarkingRepository) FindRuleByID(id uint) (*model.MarkingRule, error) {
	var rule model.MarkingRule
	err := r.DB.First(&rule, id).Error
	return &rule, err
}

func (r *MarkingRepository) UpdateRule(rule *model.MarkingRule) error {
	return r.DB.Save(rule).Error
}

func (r *MarkingRepository) DeleteRule(id uint) error {
	return r.DB.Delete(&model.MarkingRule{}, id).Error
}

// ActiveRulesForQuestion returns the active rules binding a question under
// a scheme, in rule order. The order drives the first-rule tie-break.
func (r *MarkingRepository) ActiveRulesForQuestion(schemeID, questionID uint) ([]model.MarkingRule, error) {
	var rules []model.MarkingRule
	err := r.DB.Where("scheme_id = ? AND question_id = ? AND is_active = ?", schemeID, questionID, true).
		Order("`order` asc, id asc").
		Find(&rules).Error
	return rules, err
}

func (r *MarkingRepository) RulesByScheme(schemeID uint) ([]model.MarkingRule, error) {
	var rules []model.MarkingRule
	err := r.DB.Where("scheme_id = ?", schemeID).Order("question_id asc, `order` asc").Find(&rules).Error
	return rules, err
}

// UpsertResponseScore writes the authoritative score for one (response,
// scheme) pair, overwriting any prior row so re-marking stays idempotent.
func (r *MarkingRepository) UpsertResponseScore(score *model.ResponseScore) error {
	return r.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "response_id"}, {Name: "scheme_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"rule_id", "score_earned", "max_possible_score", "scoring_details", "updated_at",
		}),
	}).Create(score).Error
}

func (r *MarkingRepository) ScoresBySession(sessionID string, schemeID uint) ([]model.ResponseScore, error) {
	var scores []model.ResponseScore
	err := r.DB.
		Joins("JOIN question_responses ON question_responses.id = response_scores.response_id").
		Where("question_responses.session_id = ? AND response_scores.scheme_id = ?", sessionID, schemeID).
		Find(&scores).Error
	return scores, err
}
