package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"questionnaire_backend/internal/model"
	"questionnaire_backend/internal/repository"
	"questionnaire_backend/internal/util"
	"questionnaire_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MarkingEnqueuer hands a marking job to the background queue.
type MarkingEnqueuer interface {
	Enqueue(ctx context.Context, sessionID string, schemeID uint) error
}

// SessionService owns the response session lifecycle. It is the only code
// that fires FSM events, asks the visibility resolver for completeness, or
// triggers the marking scheme.
type SessionService struct {
	sessions    *repository.SessionRepository
	assessments *repository.AssessmentRepository
	marking     *MarkingService
	visibility  *VisibilityService
	fsm         *SessionFSM
	queue       MarkingEnqueuer
	log         *zap.Logger
}

func NewSessionService(
	sessions *repository.SessionRepository,
	assessments *repository.AssessmentRepository,
	marking *MarkingService,
) *SessionService {
	l := logger.Log
	if l == nil {
		l = zap.NewNop()
	}
	visibility := NewVisibilityService()
	return &SessionService{
		sessions:    sessions,
		assessments: assessments,
		marking:     marking,
		visibility:  visibility,
		fsm:         NewSessionFSM(visibility),
		log:         l,
	}
}

// SetQueue attaches the background marking queue once it exists. Without a
// queue, queue_marking falls back to synchronous marking.
func (s *SessionService) SetQueue(q MarkingEnqueuer) {
	s.queue = q
}

// StartSession returns the user's session for the assessment, creating and
// starting a fresh draft when none exists. One session per (user,
// assessment).
func (s *SessionService) StartSession(userID, assessmentID uint) (*model.ResponseSession, error) {
	assessment, err := s.assessments.FindByID(assessmentID)
	if err != nil {
		return nil, util.ErrAssessmentNotFound
	}
	if !assessment.IsActive {
		return nil, util.NewValidationError("assessmentId", "assessment is not active")
	}

	session, err := s.sessions.FindByUserAndAssessment(userID, assessmentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		session = &model.ResponseSession{
			UserID:       userID,
			AssessmentID: assessmentID,
			State:        model.StateDraft,
		}
		if err := s.sessions.Create(session); err != nil {
			return nil, err
		}
		session, err = s.sessions.FindByID(session.ID)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	if session.State == model.StateDraft {
		if err := s.fsm.Fire(EventStart, &TransitionContext{Session: session, Now: time.Now()}); err != nil {
			return nil, err
		}
		if err := s.sessions.Update(session); err != nil {
			return nil, err
		}
	}
	return session, nil
}

func (s *SessionService) GetSession(sessionID string) (*model.ResponseSession, error) {
	session, err := s.sessions.FindByID(sessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrSessionNotFound
	}
	return session, err
}

// ListByAssessment pages through an assessment's sessions, optionally
// filtered by state.
func (s *SessionService) ListByAssessment(assessmentID uint, state string, page, limit int) ([]model.ResponseSession, int64, error) {
	return s.sessions.ListByAssessment(assessmentID, state, page, limit)
}

// loadContext fetches the session and builds the catalog snapshot its
// assessment currently defines.
func (s *SessionService) loadContext(sessionID string) (*model.ResponseSession, *Catalog, error) {
	session, err := s.GetSession(sessionID)
	if err != nil {
		return nil, nil, err
	}
	sections, err := s.assessments.LoadSections(session.AssessmentID)
	if err != nil {
		return nil, nil, err
	}
	return session, NewCatalog(sections), nil
}

// SectionProgress is one visible section with its visible questions.
type SectionProgress struct {
	Section    *model.Section    `json:"section"`
	Questions  []*model.Question `json:"questions"`
	Accessible bool              `json:"accessible"`
}

// SessionProgress is what the UI needs to render navigation and a
// progress bar.
type SessionProgress struct {
	Session              *model.ResponseSession `json:"session"`
	Sections             []SectionProgress      `json:"sections"`
	CompletionPercentage float64                `json:"completionPercentage"`
	CanComplete          bool                   `json:"canComplete"`
	MissingQuestionIDs   []uint                 `json:"missingQuestionIds,omitempty"`
}

// Progress resolves the session's current visible structure. Visibility is
// recomputed on every call; nothing here is cached across requests.
func (s *SessionService) Progress(sessionID string) (*SessionProgress, error) {
	session, cat, err := s.loadContext(sessionID)
	if err != nil {
		return nil, err
	}
	visible := s.visibility.VisibleSections(cat, session)
	sections := make([]SectionProgress, 0, len(visible))
	for _, sec := range visible {
		sections = append(sections, SectionProgress{
			Section:    sec,
			Questions:  s.visibility.VisibleQuestionsInSection(cat, sec, session),
			Accessible: s.visibility.CanAccessSection(cat, sec, session),
		})
	}
	complete, missing := s.visibility.AllRequiredVisibleQuestionsAnswered(cat, session)
	return &SessionProgress{
		Session:              session,
		Sections:             sections,
		CompletionPercentage: s.visibility.CompletionPercentage(cat, session),
		CanComplete:          complete,
		MissingQuestionIDs:   missing,
	}, nil
}

// NextQuestion and the other navigation helpers scan the flattened
// visible sequence; a nil result marks the boundary.
func (s *SessionService) NextQuestion(sessionID string, currentID uint) (*model.Question, error) {
	session, cat, err := s.loadContext(sessionID)
	if err != nil {
		return nil, err
	}
	return s.visibility.NextVisibleQuestion(cat, session, currentID), nil
}

func (s *SessionService) PreviousQuestion(sessionID string, currentID uint) (*model.Question, error) {
	session, cat, err := s.loadContext(sessionID)
	if err != nil {
		return nil, err
	}
	return s.visibility.PreviousVisibleQuestion(cat, session, currentID), nil
}

func (s *SessionService) NextSection(sessionID string, currentID uint) (*model.Section, error) {
	session, cat, err := s.loadContext(sessionID)
	if err != nil {
		return nil, err
	}
	return s.visibility.NextVisibleSection(cat, session, currentID), nil
}

func (s *SessionService) PreviousSection(sessionID string, currentID uint) (*model.Section, error) {
	session, cat, err := s.loadContext(sessionID)
	if err != nil {
		return nil, err
	}
	return s.visibility.PreviousVisibleSection(cat, session, currentID), nil
}

// AnswerRequest is one typed answer submission.
type AnswerRequest struct {
	SelectedOptionIDs []uint         `json:"selectedOptionIds,omitempty"`
	Number            *float64       `json:"number,omitempty"`
	Text              string         `json:"text,omitempty"`
	Date              string         `json:"date,omitempty"`
	EndDate           string         `json:"endDate,omitempty"`
	File              *model.FileRef `json:"file,omitempty"`
}

// SaveAnswer validates and upserts the answer for one question,
// replace-all for choice selections. Answering from draft or started
// moves the session to in_progress.
func (s *SessionService) SaveAnswer(sessionID string, questionID uint, req AnswerRequest) (*model.QuestionResponse, error) {
	session, cat, err := s.loadContext(sessionID)
	if err != nil {
		return nil, err
	}

	switch session.State {
	case model.StateInProgress:
	case model.StateDraft, model.StateStarted:
		if err := s.fsm.Fire(EventBeginAnswering, &TransitionContext{Session: session, Now: time.Now()}); err != nil {
			return nil, err
		}
		if err := s.sessions.Update(session); err != nil {
			return nil, err
		}
	default:
		return nil, &util.TransitionError{
			Event:  "answer",
			From:   string(session.State),
			Reason: "session no longer accepts answers",
		}
	}

	question := cat.Question(questionID)
	if question == nil || question.AssessmentID != session.AssessmentID {
		return nil, util.ErrQuestionNotFound
	}
	if !s.visibility.QuestionVisible(cat, question, session) {
		return nil, util.NewValidationError("questionId", "question is not visible for this session")
	}

	answer, optionIDs, err := buildAnswer(question, req)
	if err != nil {
		return nil, err
	}

	resp := &model.QuestionResponse{
		SessionID:  sessionID,
		QuestionID: questionID,
		Answer:     answer,
	}
	if err := s.sessions.SaveResponse(resp, optionIDs); err != nil {
		return nil, err
	}
	return s.sessions.FindResponse(sessionID, questionID)
}

// buildAnswer validates the request against the question type and encodes
// the typed answer payload. Choice answers return option ids instead.
func buildAnswer(question *model.Question, req AnswerRequest) (datatypes.JSON, []uint, error) {
	if question.Type.IsChoice() {
		if len(req.SelectedOptionIDs) == 0 {
			return nil, nil, util.NewValidationError("selectedOptionIds", "at least one option is required")
		}
		if question.Type.SingleSelection() && len(req.SelectedOptionIDs) > 1 {
			return nil, nil, util.NewValidationError("selectedOptionIds", "%s questions allow a single selection", question.Type)
		}
		valid := make(map[uint]bool, len(question.Options))
		for _, opt := range question.Options {
			valid[opt.ID] = true
		}
		for _, id := range req.SelectedOptionIDs {
			if !valid[id] {
				return nil, nil, util.NewValidationError("selectedOptionIds", "option %d does not belong to question %d", id, question.ID)
			}
		}
		return nil, req.SelectedOptionIDs, nil
	}

	var value model.AnswerValue
	switch question.Type {
	case model.RangeType:
		if req.Number == nil {
			return nil, nil, util.NewValidationError("number", "numeric answer is required")
		}
		if meta, err := question.DecodeRangeMeta(); err == nil && meta.Max > meta.Min {
			if *req.Number < meta.Min || *req.Number > meta.Max {
				return nil, nil, util.NewValidationError("number", "value %v outside range [%v, %v]", *req.Number, meta.Min, meta.Max)
			}
		}
		value = model.AnswerValue{Kind: "number", Number: req.Number}
	case model.RichText:
		if req.Text == "" {
			return nil, nil, util.NewValidationError("text", "text answer is required")
		}
		value = model.AnswerValue{Kind: "text", Text: req.Text}
	case model.DateType:
		if req.Date == "" {
			return nil, nil, util.NewValidationError("date", "date answer is required")
		}
		if _, err := model.ParseAnswerDate(req.Date); err != nil {
			return nil, nil, util.NewValidationError("date", "unrecognized date %q", req.Date)
		}
		if req.EndDate != "" {
			if _, err := model.ParseAnswerDate(req.EndDate); err != nil {
				return nil, nil, util.NewValidationError("endDate", "unrecognized date %q", req.EndDate)
			}
		}
		value = model.AnswerValue{Kind: "date", Date: req.Date, EndDate: req.EndDate}
	case model.FileUpload:
		if req.File == nil {
			return nil, nil, util.NewValidationError("file", "file metadata is required")
		}
		value = model.AnswerValue{Kind: "file", File: req.File}
	default:
		return nil, nil, util.NewValidationError("type", "unsupported question type %q", question.Type)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, nil, err
	}
	return datatypes.JSON(raw), nil, nil
}

// fire loads the session, attempts the transition and persists on
// success. Complete is the only event that needs the catalog for its
// guard.
func (s *SessionService) fire(sessionID string, event SessionEvent) (*model.ResponseSession, error) {
	var session *model.ResponseSession
	var cat *Catalog
	var err error
	if event == EventComplete {
		session, cat, err = s.loadContext(sessionID)
	} else {
		session, err = s.GetSession(sessionID)
	}
	if err != nil {
		return nil, err
	}
	if err := s.fsm.Fire(event, &TransitionContext{Session: session, Catalog: cat, Now: time.Now()}); err != nil {
		return nil, err
	}
	if err := s.sessions.Update(session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *SessionService) Complete(sessionID string) (*model.ResponseSession, error) {
	return s.fire(sessionID, EventComplete)
}

func (s *SessionService) Submit(sessionID string) (*model.ResponseSession, error) {
	return s.fire(sessionID, EventSubmit)
}

func (s *SessionService) SendForReview(sessionID string) (*model.ResponseSession, error) {
	return s.fire(sessionID, EventSendForReview)
}

func (s *SessionService) PublishResults(sessionID string) (*model.ResponseSession, error) {
	return s.fire(sessionID, EventPublishResults)
}

func (s *SessionService) Cancel(sessionID string) (*model.ResponseSession, error) {
	return s.fire(sessionID, EventCancel)
}

func (s *SessionService) Expire(sessionID string) (*model.ResponseSession, error) {
	return s.fire(sessionID, EventExpire)
}

func (s *SessionService) Reopen(sessionID string) (*model.ResponseSession, error) {
	return s.fire(sessionID, EventReopen)
}

// Reset returns the session to draft and discards every response and
// score. A full discard-and-retry, not a cancellation of in-flight work.
// The discard and the state change commit together.
func (s *SessionService) Reset(sessionID string) (*model.ResponseSession, error) {
	session, err := s.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.fsm.Fire(EventReset, &TransitionContext{Session: session, Now: time.Now()}); err != nil {
		return nil, err
	}
	if err := s.sessions.SaveReset(session); err != nil {
		return nil, err
	}
	return session, nil
}

// ExpireStale expires every in-flight session untouched for longer than
// maxIdle and returns how many were expired.
func (s *SessionService) ExpireStale(maxIdle time.Duration) (int, error) {
	ids, err := s.sessions.StaleSessionIDs(time.Now().Add(-maxIdle))
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, id := range ids {
		if _, err := s.Expire(id); err != nil {
			s.log.Warn("failed to expire stale session", zap.String("sessionId", id), zap.Error(err))
			continue
		}
		expired++
	}
	return expired, nil
}

// QueueMarking moves the session under review and enqueues an
// asynchronous marking job. Falls back to marking synchronously when no
// queue is attached.
func (s *SessionService) QueueMarking(sessionID string, schemeID uint) (*model.ResponseSession, error) {
	session, err := s.fire(sessionID, EventQueueMarking)
	if err != nil {
		return nil, err
	}
	if s.queue == nil {
		return s.Mark(sessionID, schemeID)
	}
	if err := s.queue.Enqueue(context.Background(), sessionID, schemeID); err != nil {
		s.log.Error("failed to enqueue marking job", zap.String("sessionId", sessionID), zap.Error(err))
		return nil, err
	}
	return session, nil
}

// QueueAssessmentMarking enqueues marking for every submitted or
// under-review session of an assessment and returns how many were queued.
func (s *SessionService) QueueAssessmentMarking(assessmentID, schemeID uint) (int, error) {
	ids, err := s.sessions.SessionIDsByAssessment(assessmentID, []model.SessionState{
		model.StateSubmitted, model.StateUnderReview,
	})
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, id := range ids {
		if _, err := s.QueueMarking(id, schemeID); err != nil {
			s.log.Warn("skipping session in bulk marking", zap.String("sessionId", id), zap.Error(err))
			continue
		}
		queued++
	}
	return queued, nil
}

// Mark runs the marking scheme aggregation and stamps the session marked.
// Idempotent: re-running overwrites the prior scores and totals. The state
// change is only persisted after aggregation succeeds.
func (s *SessionService) Mark(sessionID string, schemeID uint) (*model.ResponseSession, error) {
	session, err := s.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	scheme, err := s.marking.SchemeForAssessment(session.AssessmentID, schemeID)
	if err != nil {
		return nil, err
	}
	if scheme.AssessmentID != session.AssessmentID {
		return nil, util.NewValidationError("schemeId", "scheme %d does not belong to assessment %d", scheme.ID, session.AssessmentID)
	}

	if err := s.fsm.Fire(EventMark, &TransitionContext{Session: session, Now: time.Now()}); err != nil {
		return nil, err
	}

	result, err := s.marking.MarkSession(session, scheme)
	if err != nil {
		return nil, err
	}
	session.TotalScore = result.TotalScore
	session.MaxPossibleScore = result.MaxPossibleScore
	session.Grade = result.Grade
	session.Feedback = result.Feedback

	if err := s.sessions.Update(session); err != nil {
		return nil, err
	}
	return session, nil
}

// SessionResult is the respondent-facing outcome of a marked session.
type SessionResult struct {
	State            model.SessionState `json:"state"`
	TotalScore       float64            `json:"totalScore"`
	MaxPossibleScore float64            `json:"maxPossibleScore"`
	ScorePercentage  float64            `json:"scorePercentage"`
	Grade            string             `json:"grade"`
	Feedback         string             `json:"feedback"`
	Passed           bool               `json:"passed"`
	DurationSeconds  float64            `json:"durationSeconds"`
}

// Result exposes scores once they are published; admins may read them from
// the marked state onward.
func (s *SessionService) Result(sessionID string, includeUnpublished bool) (*SessionResult, error) {
	session, err := s.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	switch session.State {
	case model.StatePublished:
	case model.StateMarked:
		if !includeUnpublished {
			return nil, util.NewValidationError("state", "results are not published yet")
		}
	default:
		return nil, util.NewValidationError("state", "session has no results in state %s", session.State)
	}

	scheme, err := s.marking.SchemeForAssessment(session.AssessmentID, 0)
	if err != nil {
		return nil, err
	}
	return &SessionResult{
		State:            session.State,
		TotalScore:       session.TotalScore,
		MaxPossibleScore: session.MaxPossibleScore,
		ScorePercentage:  session.ScorePercentage(),
		Grade:            session.Grade,
		Feedback:         session.Feedback,
		Passed:           session.Passed(scheme),
		DurationSeconds:  session.Duration().Seconds(),
	}, nil
}
