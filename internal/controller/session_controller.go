package controller

import (
	"path/filepath"
	"strconv"

	"questionnaire_backend/internal/model"
	"questionnaire_backend/internal/service"
	"questionnaire_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// SessionController is the respondent-facing API: one session per
// assessment, typed answers, visibility-aware navigation and the
// lifecycle transitions up to submission.
type SessionController struct {
	Service *service.SessionService
	Storage *service.StorageService
}

func NewSessionController(svc *service.SessionService, storage *service.StorageService) *SessionController {
	return &SessionController{Service: svc, Storage: storage}
}

// ownSession loads the session and checks the caller owns it; reviewers
// and admins may read any session.
func (c *SessionController) ownSession(ctx *gin.Context) (*model.ResponseSession, bool) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return nil, false
	}
	session, err := c.Service.GetSession(ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return nil, false
	}
	if session.UserID != claims.UserID && claims.Role == model.Respondent {
		util.Forbidden(ctx)
		return nil, false
	}
	return session, true
}

type StartSessionRequest struct {
	AssessmentID uint `json:"assessmentId" binding:"required"`
}

// @Summary Start (or resume) the caller's session for an assessment
// @Tags sessions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body StartSessionRequest true "assessment"
// @Success 200 {object} util.Response
// @Router /api/sessions [post]
func (c *SessionController) StartSession(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	var req StartSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	session, err := c.Service.StartSession(claims.UserID, req.AssessmentID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, session)
}

// @Summary Session with visible structure and completion state
// @Tags sessions
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "session id"
// @Success 200 {object} util.Response
// @Router /api/sessions/{id} [get]
func (c *SessionController) GetProgress(ctx *gin.Context) {
	if _, ok := c.ownSession(ctx); !ok {
		return
	}
	progress, err := c.Service.Progress(ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// @Summary Save the answer to one question
// @Tags sessions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "session id"
// @Param questionId path int true "question id"
// @Param body body service.AnswerRequest true "answer"
// @Success 200 {object} util.Response
// @Router /api/sessions/{id}/answers/{questionId} [put]
func (c *SessionController) SaveAnswer(ctx *gin.Context) {
	if _, ok := c.ownSession(ctx); !ok {
		return
	}
	questionID, err := strconv.Atoi(ctx.Param("questionId"))
	if err != nil || questionID <= 0 {
		util.BadRequest(ctx, "invalid questionId")
		return
	}
	var req service.AnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	resp, err := c.Service.SaveAnswer(ctx.Param("id"), uint(questionID), req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, resp)
}

// @Summary Upload a file answer for a file upload question
// @Tags sessions
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "session id"
// @Param questionId path int true "question id"
// @Param file formData file true "answer file"
// @Success 200 {object} util.Response
// @Router /api/sessions/{id}/answers/{questionId}/file [post]
func (c *SessionController) UploadAnswerFile(ctx *gin.Context) {
	if _, ok := c.ownSession(ctx); !ok {
		return
	}
	questionID, err := strconv.Atoi(ctx.Param("questionId"))
	if err != nil || questionID <= 0 {
		util.BadRequest(ctx, "invalid questionId")
		return
	}
	header, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	src, err := header.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer src.Close()

	contentType := header.Header.Get("Content-Type")
	key := ctx.Param("id") + "/" + ctx.Param("questionId") + "_" + model.GenerateUUID() + filepath.Ext(header.Filename)
	url, err := c.Storage.Upload(ctx.Request.Context(), key, src, header.Size, contentType)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	resp, err := c.Service.SaveAnswer(ctx.Param("id"), uint(questionID), service.AnswerRequest{
		File: &model.FileRef{
			Name:        header.Filename,
			ContentType: contentType,
			SizeBytes:   header.Size,
			StorageKey:  key,
		},
	})
	if err != nil {
		// answer rejected, drop the stored blob
		_ = c.Storage.Delete(ctx.Request.Context(), key)
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"response": resp, "url": url})
}

// @Summary Next or previous visible question relative to the current one
// @Tags sessions
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "session id"
// @Param from query int false "current question id, 0 for the start"
// @Param direction query string false "next or previous" default(next)
// @Success 200 {object} util.Response
// @Router /api/sessions/{id}/navigate [get]
func (c *SessionController) Navigate(ctx *gin.Context) {
	if _, ok := c.ownSession(ctx); !ok {
		return
	}
	from, _ := strconv.Atoi(ctx.DefaultQuery("from", "0"))

	var q *model.Question
	var err error
	if ctx.DefaultQuery("direction", "next") == "previous" {
		q, err = c.Service.PreviousQuestion(ctx.Param("id"), uint(from))
	} else {
		q, err = c.Service.NextQuestion(ctx.Param("id"), uint(from))
	}
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"question": q})
}

// transitionHandler wraps a single lifecycle transition endpoint.
func (c *SessionController) transitionHandler(fn func(string) (*model.ResponseSession, error)) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if _, ok := c.ownSession(ctx); !ok {
			return
		}
		session, err := fn(ctx.Param("id"))
		if err != nil {
			util.RespondError(ctx, err)
			return
		}
		util.Success(ctx, session)
	}
}

// @Summary Complete the session (all required visible questions answered)
// @Tags sessions
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "session id"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/sessions/{id}/complete [post]
func (c *SessionController) Complete(ctx *gin.Context) {
	c.transitionHandler(c.Service.Complete)(ctx)
}

// @Summary Submit the completed session
// @Tags sessions
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "session id"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/sessions/{id}/submit [post]
func (c *SessionController) Submit(ctx *gin.Context) {
	c.transitionHandler(c.Service.Submit)(ctx)
}

// @Summary Cancel the session
// @Tags sessions
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "session id"
// @Success 200 {object} util.Response
// @Router /api/sessions/{id}/cancel [post]
func (c *SessionController) Cancel(ctx *gin.Context) {
	c.transitionHandler(c.Service.Cancel)(ctx)
}

// @Summary Reopen a cancelled or expired session
// @Tags sessions
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "session id"
// @Success 200 {object} util.Response
// @Router /api/sessions/{id}/reopen [post]
func (c *SessionController) Reopen(ctx *gin.Context) {
	c.transitionHandler(c.Service.Reopen)(ctx)
}

// @Summary Reset the session to draft, discarding all answers
// @Tags sessions
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "session id"
// @Success 200 {object} util.Response
// @Router /api/sessions/{id}/reset [post]
func (c *SessionController) Reset(ctx *gin.Context) {
	c.transitionHandler(c.Service.Reset)(ctx)
}

// @Summary Published results for the session
// @Tags sessions
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "session id"
// @Success 200 {object} util.Response
// @Router /api/sessions/{id}/results [get]
func (c *SessionController) Results(ctx *gin.Context) {
	if _, ok := c.ownSession(ctx); !ok {
		return
	}
	claims := util.GetUserFromContext(ctx)
	includeUnpublished := claims != nil && claims.Role != model.Respondent

	result, err := c.Service.Result(ctx.Param("id"), includeUnpublished)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
