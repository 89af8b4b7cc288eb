package service

import (
	"encoding/json"
	"sync"

	"questionnaire_backend/internal/model"
	"questionnaire_backend/internal/repository"
	"questionnaire_backend/internal/util"
	"questionnaire_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// MarkingService turns a session's responses into scores under a marking
// scheme. Per-response evaluation is pure and parallelized; persistence
// happens after all evaluations finish, and re-running the whole pass for
// an unchanged session produces identical results.
type MarkingService struct {
	marking   *repository.MarkingRepository
	evaluator *RuleEvaluator
	log       *zap.Logger
}

func NewMarkingService(marking *repository.MarkingRepository) *MarkingService {
	l := logger.Log
	if l == nil {
		l = zap.NewNop()
	}
	return &MarkingService{
		marking:   marking,
		evaluator: NewRuleEvaluator(),
		log:       l,
	}
}

// SessionScore is the aggregated outcome written back onto the session.
type SessionScore struct {
	TotalScore       float64
	MaxPossibleScore float64
	Percentage       float64
	Grade            string
	Feedback         string
}

// scoreResponse evaluates every active rule for the response's question and
// keeps the best-scoring one; ties keep the first by order. When no rule
// scores above zero the first rule is still recorded so max_possible_score
// stays attributable. Rules must arrive ordered.
func (s *MarkingService) scoreResponse(resp *model.QuestionResponse, scheme *model.MarkingScheme, rules []model.MarkingRule) *model.ResponseScore {
	if len(rules) == 0 {
		return nil
	}

	bestIdx := 0
	bestScore := 0.0
	var bestDetails map[string]interface{}
	for i := range rules {
		score, details := s.evaluator.EvaluateWithDetails(resp, &rules[i])
		if score > bestScore {
			bestIdx = i
			bestScore = score
			bestDetails = details
		} else if i == 0 {
			bestDetails = details
		}
	}

	chosen := &rules[bestIdx]
	detailsJSON, _ := json.Marshal(bestDetails)
	return &model.ResponseScore{
		ResponseID:       resp.ID,
		SchemeID:         scheme.ID,
		RuleID:           chosen.ID,
		ScoreEarned:      bestScore,
		MaxPossibleScore: chosen.Points,
		ScoringDetails:   datatypes.JSON(detailsJSON),
	}
}

// aggregate sums per-response scores into the session total, percentage,
// grade and feedback.
func (s *MarkingService) aggregate(scores []*model.ResponseScore, scheme *model.MarkingScheme) SessionScore {
	var out SessionScore
	for _, sc := range scores {
		if sc == nil {
			continue
		}
		out.TotalScore += sc.ScoreEarned
		out.MaxPossibleScore += sc.MaxPossibleScore
	}
	if out.MaxPossibleScore > 0 {
		out.Percentage = out.TotalScore / out.MaxPossibleScore * 100
	}
	out.Grade = scheme.GradeFor(out.Percentage)
	out.Feedback = scheme.FeedbackFor(out.Grade)
	return out
}

// GradeResponse scores one response under a scheme and persists the
// authoritative ResponseScore.
func (s *MarkingService) GradeResponse(resp *model.QuestionResponse, scheme *model.MarkingScheme) (*model.ResponseScore, error) {
	rules, err := s.marking.ActiveRulesForQuestion(scheme.ID, resp.QuestionID)
	if err != nil {
		return nil, err
	}
	score := s.scoreResponse(resp, scheme, rules)
	if score == nil {
		return nil, nil
	}
	if err := s.marking.UpsertResponseScore(score); err != nil {
		return nil, err
	}
	return score, nil
}

// MarkSession scores every response of the session under the scheme,
// persists the per-response scores and returns the aggregate. Evaluations
// run concurrently; responses without rules contribute nothing.
func (s *MarkingService) MarkSession(session *model.ResponseSession, scheme *model.MarkingScheme) (SessionScore, error) {
	rulesByQuestion := make(map[uint][]model.MarkingRule, len(session.Responses))
	for i := range session.Responses {
		qid := session.Responses[i].QuestionID
		if _, ok := rulesByQuestion[qid]; ok {
			continue
		}
		rules, err := s.marking.ActiveRulesForQuestion(scheme.ID, qid)
		if err != nil {
			return SessionScore{}, err
		}
		rulesByQuestion[qid] = rules
	}

	scores := make([]*model.ResponseScore, len(session.Responses))
	var wg sync.WaitGroup
	for i := range session.Responses {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			resp := &session.Responses[idx]
			scores[idx] = s.scoreResponse(resp, scheme, rulesByQuestion[resp.QuestionID])
		}(i)
	}
	wg.Wait()

	for _, score := range scores {
		if score == nil {
			continue
		}
		if err := s.marking.UpsertResponseScore(score); err != nil {
			return SessionScore{}, err
		}
	}

	result := s.aggregate(scores, scheme)
	s.log.Info("session marked",
		zap.String("sessionId", session.ID),
		zap.Uint("schemeId", scheme.ID),
		zap.Float64("totalScore", result.TotalScore),
		zap.Float64("maxPossibleScore", result.MaxPossibleScore),
		zap.String("grade", result.Grade))
	return result, nil
}

// SessionScores returns the persisted per-response scores of a session
// under a scheme.
func (s *MarkingService) SessionScores(sessionID string, schemeID uint) ([]model.ResponseScore, error) {
	return s.marking.ScoresBySession(sessionID, schemeID)
}

// SchemeForAssessment resolves the scheme to mark with: an explicit id, or
// the assessment's active scheme.
func (s *MarkingService) SchemeForAssessment(assessmentID, schemeID uint) (*model.MarkingScheme, error) {
	if schemeID != 0 {
		return s.marking.FindSchemeByID(schemeID)
	}
	scheme, err := s.marking.ActiveScheme(assessmentID)
	if err != nil {
		return nil, util.ErrNoActiveScheme
	}
	return scheme, nil
}
