package service

import (
	"fmt"
	"strings"
	"time"

	"questionnaire_backend/internal/model"
	"questionnaire_backend/internal/util"
)

type SessionEvent string

const (
	EventStart          SessionEvent = "start"
	EventBeginAnswering SessionEvent = "begin_answering"
	EventComplete       SessionEvent = "complete"
	EventSubmit         SessionEvent = "submit"
	EventSendForReview  SessionEvent = "send_for_review"
	EventQueueMarking   SessionEvent = "queue_marking"
	EventMark           SessionEvent = "mark"
	EventPublishResults SessionEvent = "publish_results"
	EventCancel         SessionEvent = "cancel"
	EventExpire         SessionEvent = "expire"
	EventReopen         SessionEvent = "reopen"
	EventReset          SessionEvent = "reset"
)

// TransitionContext carries what guards and effects need: the session and
// the catalog snapshot used for visibility-aware completeness.
type TransitionContext struct {
	Session *model.ResponseSession
	Catalog *Catalog
	Now     time.Time
}

type transition struct {
	from   []model.SessionState
	to     model.SessionState
	guard  func(*TransitionContext) error
	effect func(*TransitionContext)
}

// SessionFSM is the response session lifecycle as data: one transition per
// event, each with an optional guard and effect. Guards run before any
// mutation; a failed guard leaves the session untouched.
type SessionFSM struct {
	visibility *VisibilityService
	table      map[SessionEvent]transition
}

func NewSessionFSM(visibility *VisibilityService) *SessionFSM {
	f := &SessionFSM{visibility: visibility}
	anyState := []model.SessionState{
		model.StateDraft, model.StateStarted, model.StateInProgress, model.StateCompleted,
		model.StateSubmitted, model.StateUnderReview, model.StateMarked, model.StatePublished,
		model.StateCancelled, model.StateExpired,
	}
	f.table = map[SessionEvent]transition{
		EventStart: {
			from:   []model.SessionState{model.StateDraft},
			to:     model.StateStarted,
			effect: func(ctx *TransitionContext) { ctx.Session.StartedAt = timePtr(ctx.Now) },
		},
		EventBeginAnswering: {
			from: []model.SessionState{model.StateDraft, model.StateStarted},
			to:   model.StateInProgress,
		},
		EventComplete: {
			from:   []model.SessionState{model.StateStarted, model.StateInProgress},
			to:     model.StateCompleted,
			guard:  f.guardAllRequiredAnswered,
			effect: func(ctx *TransitionContext) { ctx.Session.CompletedAt = timePtr(ctx.Now) },
		},
		EventSubmit: {
			from:   []model.SessionState{model.StateCompleted},
			to:     model.StateSubmitted,
			effect: func(ctx *TransitionContext) { ctx.Session.SubmittedAt = timePtr(ctx.Now) },
		},
		EventSendForReview: {
			from: []model.SessionState{model.StateSubmitted},
			to:   model.StateUnderReview,
		},
		EventQueueMarking: {
			from: []model.SessionState{model.StateSubmitted, model.StateUnderReview},
			to:   model.StateUnderReview,
		},
		EventMark: {
			// marked is a legal source so a re-delivered marking job
			// overwrites instead of erroring.
			from:   []model.SessionState{model.StateSubmitted, model.StateUnderReview, model.StateMarked},
			to:     model.StateMarked,
			effect: func(ctx *TransitionContext) { ctx.Session.MarkedAt = timePtr(ctx.Now) },
		},
		EventPublishResults: {
			from: []model.SessionState{model.StateMarked},
			to:   model.StatePublished,
		},
		EventCancel: {
			from: []model.SessionState{model.StateDraft, model.StateStarted, model.StateInProgress},
			to:   model.StateCancelled,
		},
		EventExpire: {
			from: []model.SessionState{model.StateDraft, model.StateStarted, model.StateInProgress, model.StateCompleted},
			to:   model.StateExpired,
		},
		EventReopen: {
			from: []model.SessionState{model.StateCancelled, model.StateExpired},
			to:   model.StateInProgress,
		},
		EventReset: {
			from:   anyState,
			to:     model.StateDraft,
			effect: resetEffect,
		},
	}
	return f
}

// Fire attempts a transition. On success the session's state is updated
// and the effect applied; on rejection a TransitionError is returned and
// the session is left exactly as it was.
func (f *SessionFSM) Fire(event SessionEvent, ctx *TransitionContext) error {
	t, ok := f.table[event]
	if !ok {
		return &util.TransitionError{Event: string(event), From: string(ctx.Session.State), Reason: "unknown event"}
	}
	if !stateAllowed(ctx.Session.State, t.from) {
		return &util.TransitionError{
			Event:  string(event),
			From:   string(ctx.Session.State),
			Reason: fmt.Sprintf("event not allowed in state %s", ctx.Session.State),
		}
	}
	if t.guard != nil {
		if err := t.guard(ctx); err != nil {
			return err
		}
	}
	if ctx.Now.IsZero() {
		ctx.Now = time.Now()
	}
	ctx.Session.State = t.to
	if t.effect != nil {
		t.effect(ctx)
	}
	return nil
}

// CanFire reports whether the event is listed for the current state,
// without evaluating guards.
func (f *SessionFSM) CanFire(event SessionEvent, state model.SessionState) bool {
	t, ok := f.table[event]
	return ok && stateAllowed(state, t.from)
}

func (f *SessionFSM) guardAllRequiredAnswered(ctx *TransitionContext) error {
	if ctx.Catalog == nil {
		return &util.TransitionError{
			Event:  string(EventComplete),
			From:   string(ctx.Session.State),
			Reason: "catalog unavailable for completeness check",
		}
	}
	ok, missing := f.visibility.AllRequiredVisibleQuestionsAnswered(ctx.Catalog, ctx.Session)
	if ok {
		return nil
	}
	names := make([]string, len(missing))
	for i, id := range missing {
		names[i] = fmt.Sprintf("%d", id)
	}
	return &util.TransitionError{
		Event:  string(EventComplete),
		From:   string(ctx.Session.State),
		Reason: fmt.Sprintf("required question %s not answered", strings.Join(names, ", ")),
	}
}

// resetEffect returns the session to a blank draft. Discarding the stored
// responses and scores is the session service's job.
func resetEffect(ctx *TransitionContext) {
	s := ctx.Session
	s.StartedAt = nil
	s.CompletedAt = nil
	s.SubmittedAt = nil
	s.MarkedAt = nil
	s.TotalScore = 0
	s.MaxPossibleScore = 0
	s.Grade = ""
	s.Feedback = ""
	s.Responses = nil
}

func stateAllowed(state model.SessionState, allowed []model.SessionState) bool {
	for _, s := range allowed {
		if s == state {
			return true
		}
	}
	return false
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return &t
}
