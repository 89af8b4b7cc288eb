package repository

import (
	"questionnaire_backend/internal/model"

	"gorm.io/gorm"
)

type AssessmentRepository struct {
	DB *gorm.DB
}

func NewAssessmentRepository(db *gorm.DB) *AssessmentRepository {
	return &AssessmentRepository{DB: db}
}

func (r *AssessmentRepository) Create(a *model.Assessment) error {
	return r.DB.Create(a).Error
}

func (r *AssessmentRepository) FindByID(id uint) (*model.Assessment, error) {
	var a model.Assessment
	err := r.DB.First(&a, id).Error
	return &a, err
}

func (r *AssessmentRepository) List(page, limit int) ([]model.Assessment, int64, error) {
	var as []model.Assessment
	var total int64
	query := r.DB.Model(&model.Assessment{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&as).Error
	return as, total, err
}

func (r *AssessmentRepository) Update(a *model.Assessment) error {
	return r.DB.Save(a).Error
}

// Delete cascades to everything the assessment owns.
func (r *AssessmentRepository) Delete(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("assessment_id = ?", id).Delete(&model.MarkingScheme{}).Error; err != nil {
			return err
		}
		var questionIDs []uint
		if err := tx.Model(&model.Question{}).Where("assessment_id = ?", id).Pluck("id", &questionIDs).Error; err != nil {
			return err
		}
		if len(questionIDs) > 0 {
			if err := tx.Where("question_id IN ?", questionIDs).Delete(&model.MarkingRule{}).Error; err != nil {
				return err
			}
			if err := tx.Where("question_id IN ?", questionIDs).Delete(&model.Option{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("assessment_id = ?", id).Delete(&model.Question{}).Error; err != nil {
			return err
		}
		if err := tx.Where("assessment_id = ?", id).Delete(&model.Section{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Assessment{}, id).Error
	})
}

// LoadSections returns the assessment's sections with questions and
// options preloaded, ordered for catalog building.
func (r *AssessmentRepository) LoadSections(assessmentID uint) ([]model.Section, error) {
	var sections []model.Section
	err := r.DB.Where("assessment_id = ?", assessmentID).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.`order` asc")
		}).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("options.`order` asc")
		}).
		Order("`order` asc").
		Find(&sections).Error
	return sections, err
}

func (r *AssessmentRepository) CreateSection(s *model.Section) error {
	return r.DB.Create(s).Error
}

func (r *AssessmentRepository) FindSectionByID(id uint) (*model.Section, error) {
	var s model.Section
	err := r.DB.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("questions.`order` asc")
	}).First(&s, id).Error
	return &s, err
}

func (r *AssessmentRepository) UpdateSection(s *model.Section) error {
	return r.DB.Save(s).Error
}

func (r *AssessmentRepository) DeleteSection(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var questionIDs []uint
		if err := tx.Model(&model.Question{}).Where("section_id = ?", id).Pluck("id", &questionIDs).Error; err != nil {
			return err
		}
		if len(questionIDs) > 0 {
			if err := tx.Where("question_id IN ?", questionIDs).Delete(&model.MarkingRule{}).Error; err != nil {
				return err
			}
			if err := tx.Where("question_id IN ?", questionIDs).Delete(&model.Option{}).Error; err != nil {
				return err
			}
			if err := tx.Where("section_id = ?", id).Delete(&model.Question{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&model.Section{}, id).Error
	})
}

// MaxSectionOrder returns the highest order among the assessment's
// sections, 0 when there are none. Deleted sections keep their slot.
func (r *AssessmentRepository) MaxSectionOrder(assessmentID uint) (int, error) {
	var max *int
	err := r.DB.Model(&model.Section{}).
		Where("assessment_id = ?", assessmentID).
		Select("MAX(`order`)").Scan(&max).Error
	if err != nil || max == nil {
		return 0, err
	}
	return *max, nil
}

func (r *AssessmentRepository) SectionOrderTaken(assessmentID uint, order int, excludeID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.Section{}).
		Where("assessment_id = ? AND `order` = ? AND id <> ?", assessmentID, order, excludeID).
		Count(&count).Error
	return count > 0, err
}


func (r *AssessmentRepository) CreateQuestion(q *model.Question) error {
	return r.DB.Create(q).Error
}

func (r *AssessmentRepository) FindQuestionByID(id uint) (*model.Question, error) {
	var q model.Question
	err := r.DB.Preload("Options", func(db *gorm.DB) *gorm.DB {
		return db.Order("options.`order` asc")
	}).First(&q, id).Error
	return &q, err
}

func (r *AssessmentRepository) UpdateQuestion(q *model.Question) error {
	return r.DB.Save(q).Error
}

func (r *AssessmentRepository) DeleteQuestion(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", id).Delete(&model.MarkingRule{}).Error; err != nil {
			return err
		}
		if err := tx.Where("question_id = ?", id).Delete(&model.Option{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Question{}, id).Error
	})
}

func (r *AssessmentRepository) MaxQuestionOrder(sectionID uint) (int, error) {
	var max *int
	err := r.DB.Model(&model.Question{}).
		Where("section_id = ?", sectionID).
		Select("MAX(`order`)").Scan(&max).Error
	if err != nil || max == nil {
		return 0, err
	}
	return *max, nil
}

func (r *AssessmentRepository) QuestionOrderTaken(sectionID uint, order int, excludeID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.Question{}).
		Where("section_id = ? AND `order` = ? AND id <> ?", sectionID, order, excludeID).
		Count(&count).Error
	return count > 0, err
}

func (r *AssessmentRepository) CreateOption(o *model.Option) error {
	return r.DB.Create(o).Error
}

func (r *AssessmentRepository) FindOptionByID(id uint) (*model.Option, error) {
	var o model.Option
	err := r.DB.First(&o, id).Error
	return &o, err
}

func (r *AssessmentRepository) UpdateOption(o *model.Option) error {
	return r.DB.Save(o).Error
}

func (r *AssessmentRepository) DeleteOption(id uint) error {
	return r.DB.Delete(&model.Option{}, id).Error
}

func (r *AssessmentRepository) OptionsByQuestion(questionID uint) ([]model.Option, error) {
	var opts []model.Option
	err := r.DB.Where("question_id = ?", questionID).Order("`order` asc").Find(&opts).Error
	return opts, err
}
