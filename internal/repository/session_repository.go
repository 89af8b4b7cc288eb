package repository

import (
	"time"

	"questionnaire_backend/internal/model"

	"gorm.io/gorm"
)

type SessionRepository struct {
	DB *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{DB: db}
}

func (r *SessionRepository) Create(s *model.ResponseSession) error {
	return r.DB.Create(s).Error
}

// FindByID loads a session with its user and responses, including selected
// options and their option rows, which option-based scoring reads.
func (r *SessionRepository) FindByID(id string) (*model.ResponseSession, error) {
	var s model.ResponseSession
	err := r.DB.
		Preload("User").
		Preload("Responses").
		Preload("Responses.SelectedOptions").
		Preload("Responses.SelectedOptions.Option").
		First(&s, "id = ?", id).Error
	return &s, err
}

func (r *SessionRepository) FindByUserAndAssessment(userID, assessmentID uint) (*model.ResponseSession, error) {
	var s model.ResponseSession
	err := r.DB.
		Preload("User").
		Preload("Responses").
		Preload("Responses.SelectedOptions").
		Preload("Responses.SelectedOptions.Option").
		Where("user_id = ? AND assessment_id = ?", userID, assessmentID).
		First(&s).Error
	return &s, err
}

func (r *SessionRepository) Update(s *model.ResponseSession) error {
	return r.DB.Save(s).Error
}

func (r *SessionRepository) ListByAssessment(assessmentID uint, state string, page, limit int) ([]model.ResponseSession, int64, error) {
	var sessions []model.ResponseSession
	var total int64
	query := r.DB.Model(&model.ResponseSession{}).Where("assessment_id = ?", assessmentID)
	if state != "" && state != "all" {
		query = query.Where("state = ?", state)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Preload("User").Order("created_at desc").Offset(offset).Limit(limit).Find(&sessions).Error
	return sessions, total, err
}

// SessionIDsByAssessment returns ids of sessions in any of the given
// states, for bulk marking.
func (r *SessionRepository) SessionIDsByAssessment(assessmentID uint, states []model.SessionState) ([]string, error) {
	var ids []string
	err := r.DB.Model(&model.ResponseSession{}).
		Where("assessment_id = ? AND state IN ?", assessmentID, states).
		Pluck("id", &ids).Error
	return ids, err
}

// StaleSessionIDs returns ids of in-flight sessions untouched since the
// cutoff, candidates for expiry.
func (r *SessionRepository) StaleSessionIDs(cutoff time.Time) ([]string, error) {
	var ids []string
	err := r.DB.Model(&model.ResponseSession{}).
		Where("state IN ? AND updated_at < ?", []model.SessionState{
			model.StateStarted, model.StateInProgress,
		}, cutoff).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *SessionRepository) FindResponse(sessionID string, questionID uint) (*model.QuestionResponse, error) {
	var resp model.QuestionResponse
	err := r.DB.
		Preload("SelectedOptions").
		Preload("SelectedOptions.Option").
		Where("session_id = ? AND question_id = ?", sessionID, questionID).
		First(&resp).Error
	return &resp, err
}

// SaveResponse upserts the answer for one (session, question) pair. For
// choice answers the selected options are replaced wholesale inside the
// same transaction: clear prior selections, insert the new set. A partial
// write can never survive.
func (r *SessionRepository) SaveResponse(resp *model.QuestionResponse, optionIDs []uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var existing model.QuestionResponse
		err := tx.Where("session_id = ? AND question_id = ?", resp.SessionID, resp.QuestionID).
			First(&existing).Error
		switch {
		case err == nil:
			existing.Answer = resp.Answer
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			resp.ID = existing.ID
		case err == gorm.ErrRecordNotFound:
			if err := tx.Create(resp).Error; err != nil {
				return err
			}
		default:
			return err
		}

		if err := tx.Where("response_id = ?", resp.ID).Delete(&model.SelectedOption{}).Error; err != nil {
			return err
		}
		seen := make(map[uint]bool, len(optionIDs))
		for _, optionID := range optionIDs {
			if seen[optionID] {
				continue
			}
			seen[optionID] = true
			sel := model.SelectedOption{ResponseID: resp.ID, OptionID: optionID}
			if err := tx.Create(&sel).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveReset discards every response, selection and score and persists the reset
// session in the same transaction, so a failed discard never leaves a
// draft session still holding answers.
func (r *SessionRepository) SaveReset(s *model.ResponseSession) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := deleteResponsesTx(tx, s.ID); err != nil {
			return err
		}
		return tx.Save(s).Error
	})
}

func deleteResponsesTx(tx *gorm.DB, sessionID string) error {
	var responseIDs []uint
	if err := tx.Model(&model.QuestionResponse{}).
		Where("session_id = ?", sessionID).
		Pluck("id", &responseIDs).Error; err != nil {
		return err
	}
	if len(responseIDs) > 0 {
		if err := tx.Where("response_id IN ?", responseIDs).Delete(&model.SelectedOption{}).Error; err != nil {
			return err
		}
		if err := tx.Where("response_id IN ?", responseIDs).Delete(&model.ResponseScore{}).Error; err != nil {
			return err
		}
	}
	return tx.Where("session_id = ?", sessionID).Delete(&model.QuestionResponse{}).Error
}
