package controller

import (
	"strconv"

	"questionnaire_backend/internal/service"
	"questionnaire_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// MarkingController is the reviewer/admin side of the lifecycle: review,
// marking (sync and queued), publishing and score inspection.
type MarkingController struct {
	Sessions *service.SessionService
	Marking  *service.MarkingService
}

func NewMarkingController(sessions *service.SessionService, marking *service.MarkingService) *MarkingController {
	return &MarkingController{Sessions: sessions, Marking: marking}
}

// @Summary List an assessment's sessions, optionally by state
// @Tags review
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "assessment id"
// @Param state query string false "session state filter"
// @Param page query int false "page" default(1)
// @Param limit query int false "page size" default(20)
// @Success 200 {object} util.Response
// @Router /api/review/assessments/{id}/sessions [get]
func (c *MarkingController) ListSessions(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	sessions, total, err := c.Sessions.ListByAssessment(id, ctx.Query("state"), page, limit)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: sessions, Total: total, Page: page, Limit: limit})
}

// @Summary Move a submitted session under review
// @Tags review
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "session id"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/review/sessions/{id}/review [post]
func (c *MarkingController) SendForReview(ctx *gin.Context) {
	session, err := c.Sessions.SendForReview(ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, session)
}

type MarkRequest struct {
	SchemeID uint `json:"schemeId"`
}

// @Summary Queue asynchronous marking for a session
// @Tags review
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "session id"
// @Param body body MarkRequest false "scheme override; active scheme when omitted"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/review/sessions/{id}/queue-marking [post]
func (c *MarkingController) QueueMarking(ctx *gin.Context) {
	var req MarkRequest
	_ = ctx.ShouldBindJSON(&req)

	session, err := c.Sessions.QueueMarking(ctx.Param("id"), req.SchemeID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, session)
}

// @Summary Mark a session synchronously
// @Tags review
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "session id"
// @Param body body MarkRequest false "scheme override; active scheme when omitted"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/review/sessions/{id}/mark [post]
func (c *MarkingController) Mark(ctx *gin.Context) {
	var req MarkRequest
	_ = ctx.ShouldBindJSON(&req)

	session, err := c.Sessions.Mark(ctx.Param("id"), req.SchemeID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, session)
}

// @Summary Queue marking for every submitted session of an assessment
// @Tags review
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "assessment id"
// @Param body body MarkRequest false "scheme override; active scheme when omitted"
// @Success 200 {object} util.Response
// @Router /api/review/assessments/{id}/mark [post]
func (c *MarkingController) MarkAssessment(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req MarkRequest
	_ = ctx.ShouldBindJSON(&req)

	queued, err := c.Sessions.QueueAssessmentMarking(id, req.SchemeID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"queued": queued})
}

// @Summary Publish a marked session's results
// @Tags review
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "session id"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/review/sessions/{id}/publish [post]
func (c *MarkingController) PublishResults(ctx *gin.Context) {
	session, err := c.Sessions.PublishResults(ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, session)
}

// @Summary Expire an inactive session
// @Tags review
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "session id"
// @Success 200 {object} util.Response
// @Router /api/review/sessions/{id}/expire [post]
func (c *MarkingController) Expire(ctx *gin.Context) {
	session, err := c.Sessions.Expire(ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, session)
}

// @Summary Re-score a single response under a scheme
// @Tags review
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "session id"
// @Param questionId path int true "question id"
// @Param body body MarkRequest false "scheme override; active scheme when omitted"
// @Success 200 {object} util.Response
// @Router /api/review/sessions/{id}/responses/{questionId}/score [post]
func (c *MarkingController) GradeResponse(ctx *gin.Context) {
	session, err := c.Sessions.GetSession(ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	questionID, err := strconv.Atoi(ctx.Param("questionId"))
	if err != nil || questionID <= 0 {
		util.BadRequest(ctx, "invalid questionId")
		return
	}
	var req MarkRequest
	_ = ctx.ShouldBindJSON(&req)

	scheme, err := c.Marking.SchemeForAssessment(session.AssessmentID, req.SchemeID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	resp := session.ResponseByQuestion(uint(questionID))
	if resp == nil {
		util.RespondError(ctx, util.ErrResponseNotFound)
		return
	}

	score, err := c.Marking.GradeResponse(resp, scheme)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, score)
}

// @Summary Per-response scores of a session under a scheme
// @Tags review
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "session id"
// @Param schemeId query int false "scheme id; active scheme when omitted"
// @Success 200 {object} util.Response
// @Router /api/review/sessions/{id}/scores [get]
func (c *MarkingController) SessionScores(ctx *gin.Context) {
	session, err := c.Sessions.GetSession(ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	schemeID := uint(0)
	if s := ctx.Query("schemeId"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			schemeID = uint(v)
		}
	}
	scheme, err := c.Marking.SchemeForAssessment(session.AssessmentID, schemeID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	scores, err := c.Marking.SessionScores(session.ID, scheme.ID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"schemeId": scheme.ID, "scores": scores})
}
