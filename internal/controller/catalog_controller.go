package controller

import (
	"strconv"

	"questionnaire_backend/internal/model"
	"questionnaire_backend/internal/service"
	"questionnaire_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// CatalogController exposes the authoring API for assessments, their
// structure and their marking configuration.
type CatalogController struct {
	Service *service.CatalogService
}

func NewCatalogController(svc *service.CatalogService) *CatalogController {
	return &CatalogController{Service: svc}
}

func pathID(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil || id <= 0 {
		util.BadRequest(ctx, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// @Summary Create an assessment
// @Tags catalog
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body model.Assessment true "assessment"
// @Success 201 {object} util.Response
// @Router /api/admin/assessments [post]
func (c *CatalogController) CreateAssessment(ctx *gin.Context) {
	var a model.Assessment
	if err := ctx.ShouldBindJSON(&a); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.Service.CreateAssessment(&a); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, a)
}

// @Summary List assessments
// @Tags catalog
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "page" default(1)
// @Param limit query int false "page size" default(20)
// @Success 200 {object} util.Response
// @Router /api/admin/assessments [get]
func (c *CatalogController) ListAssessments(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	as, total, err := c.Service.ListAssessments(page, limit)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: as, Total: total, Page: page, Limit: limit})
}

// @Summary Assessment with full section and question tree
// @Tags catalog
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "assessment id"
// @Success 200 {object} util.Response
// @Router /api/admin/assessments/{id} [get]
func (c *CatalogController) GetAssessment(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	a, err := c.Service.GetAssessmentStructure(id)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, a)
}

// @Summary Update an assessment
// @Tags catalog
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "assessment id"
// @Param body body model.Assessment true "assessment"
// @Success 200 {object} util.Response
// @Router /api/admin/assessments/{id} [put]
func (c *CatalogController) UpdateAssessment(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var a model.Assessment
	if err := ctx.ShouldBindJSON(&a); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	a.ID = id
	if err := c.Service.UpdateAssessment(&a); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, a)
}

// @Summary Delete an assessment and everything it owns
// @Tags catalog
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "assessment id"
// @Success 200 {object} util.Response
// @Router /api/admin/assessments/{id} [delete]
func (c *CatalogController) DeleteAssessment(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	if err := c.Service.DeleteAssessment(id); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"deleted": id})
}

// @Summary Add a section to an assessment
// @Tags catalog
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "assessment id"
// @Param body body model.Section true "section"
// @Success 201 {object} util.Response
// @Router /api/admin/assessments/{id}/sections [post]
func (c *CatalogController) CreateSection(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var sec model.Section
	if err := ctx.ShouldBindJSON(&sec); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	sec.AssessmentID = id
	if err := c.Service.CreateSection(&sec); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, sec)
}

// @Summary Update a section
// @Tags catalog
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "section id"
// @Param body body model.Section true "section"
// @Success 200 {object} util.Response
// @Router /api/admin/sections/{id} [put]
func (c *CatalogController) UpdateSection(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var sec model.Section
	if err := ctx.ShouldBindJSON(&sec); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	sec.ID = id
	if err := c.Service.UpdateSection(&sec); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, sec)
}

// @Summary Delete a section and its questions
// @Tags catalog
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "section id"
// @Success 200 {object} util.Response
// @Router /api/admin/sections/{id} [delete]
func (c *CatalogController) DeleteSection(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	if err := c.Service.DeleteSection(id); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"deleted": id})
}

// @Summary Add a question to a section
// @Tags catalog
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "section id"
// @Param body body model.Question true "question"
// @Success 201 {object} util.Response
// @Router /api/admin/sections/{id}/questions [post]
func (c *CatalogController) CreateQuestion(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var q model.Question
	if err := ctx.ShouldBindJSON(&q); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	q.SectionID = id
	if err := c.Service.CreateQuestion(&q); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, q)
}

// @Summary Question detail with its options
// @Tags catalog
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "question id"
// @Success 200 {object} util.Response
// @Router /api/admin/questions/{id} [get]
func (c *CatalogController) GetQuestion(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	q, err := c.Service.GetQuestion(id)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, q)
}

// @Summary Update a question
// @Tags catalog
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "question id"
// @Param body body model.Question true "question"
// @Success 200 {object} util.Response
// @Router /api/admin/questions/{id} [put]
func (c *CatalogController) UpdateQuestion(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var q model.Question
	if err := ctx.ShouldBindJSON(&q); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	q.ID = id
	if err := c.Service.UpdateQuestion(&q); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, q)
}

// @Summary Delete a question, its options and rules
// @Tags catalog
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "question id"
// @Success 200 {object} util.Response
// @Router /api/admin/questions/{id} [delete]
func (c *CatalogController) DeleteQuestion(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	if err := c.Service.DeleteQuestion(id); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"deleted": id})
}

// @Summary Add an option to a choice question
// @Tags catalog
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "question id"
// @Param body body model.Option true "option"
// @Success 201 {object} util.Response
// @Router /api/admin/questions/{id}/options [post]
func (c *CatalogController) CreateOption(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var o model.Option
	if err := ctx.ShouldBindJSON(&o); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	o.QuestionID = id
	if err := c.Service.CreateOption(&o); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, o)
}

// @Summary Update an option
// @Tags catalog
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "option id"
// @Param body body model.Option true "option"
// @Success 200 {object} util.Response
// @Router /api/admin/options/{id} [put]
func (c *CatalogController) UpdateOption(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var o model.Option
	if err := ctx.ShouldBindJSON(&o); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	o.ID = id
	if err := c.Service.UpdateOption(&o); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, o)
}

// @Summary Delete an option
// @Tags catalog
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "option id"
// @Success 200 {object} util.Response
// @Router /api/admin/options/{id} [delete]
func (c *CatalogController) DeleteOption(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	if err := c.Service.DeleteOption(id); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"deleted": id})
}

// @Summary Create a marking scheme for an assessment
// @Tags marking
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "assessment id"
// @Param body body model.MarkingScheme true "scheme"
// @Success 201 {object} util.Response
// @Router /api/admin/assessments/{id}/schemes [post]
func (c *CatalogController) CreateScheme(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var scheme model.MarkingScheme
	if err := ctx.ShouldBindJSON(&scheme); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	scheme.AssessmentID = id
	if err := c.Service.CreateScheme(&scheme); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, scheme)
}

// @Summary List an assessment's marking schemes
// @Tags marking
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "assessment id"
// @Success 200 {object} util.Response
// @Router /api/admin/assessments/{id}/schemes [get]
func (c *CatalogController) ListSchemes(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	schemes, err := c.Service.ListSchemes(id)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, schemes)
}

// @Summary Update a marking scheme
// @Tags marking
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "scheme id"
// @Param body body model.MarkingScheme true "scheme"
// @Success 200 {object} util.Response
// @Router /api/admin/schemes/{id} [put]
func (c *CatalogController) UpdateScheme(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var scheme model.MarkingScheme
	if err := ctx.ShouldBindJSON(&scheme); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	scheme.ID = id
	if err := c.Service.UpdateScheme(&scheme); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, scheme)
}

// @Summary Make a scheme the active one for its assessment
// @Tags marking
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "scheme id"
// @Success 200 {object} util.Response
// @Router /api/admin/schemes/{id}/activate [post]
func (c *CatalogController) ActivateScheme(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	if err := c.Service.ActivateScheme(id); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"activated": id})
}

// @Summary Delete a marking scheme and its rules
// @Tags marking
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "scheme id"
// @Success 200 {object} util.Response
// @Router /api/admin/schemes/{id} [delete]
func (c *CatalogController) DeleteScheme(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	if err := c.Service.DeleteScheme(id); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"deleted": id})
}

// @Summary Add a marking rule to a scheme
// @Tags marking
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "scheme id"
// @Param body body model.MarkingRule true "rule"
// @Success 201 {object} util.Response
// @Router /api/admin/schemes/{id}/rules [post]
func (c *CatalogController) CreateRule(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var rule model.MarkingRule
	if err := ctx.ShouldBindJSON(&rule); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	rule.SchemeID = id
	if err := c.Service.CreateRule(&rule); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, rule)
}

// @Summary List a scheme's rules
// @Tags marking
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "scheme id"
// @Success 200 {object} util.Response
// @Router /api/admin/schemes/{id}/rules [get]
func (c *CatalogController) ListRules(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	rules, err := c.Service.ListRules(id)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, rules)
}

// @Summary Update a marking rule
// @Tags marking
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "rule id"
// @Param body body model.MarkingRule true "rule"
// @Success 200 {object} util.Response
// @Router /api/admin/rules/{id} [put]
func (c *CatalogController) UpdateRule(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var rule model.MarkingRule
	if err := ctx.ShouldBindJSON(&rule); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	rule.ID = id
	if err := c.Service.UpdateRule(&rule); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, rule)
}

// @Summary Delete a marking rule
// @Tags marking
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "rule id"
// @Success 200 {object} util.Response
// @Router /api/admin/rules/{id} [delete]
func (c *CatalogController) DeleteRule(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	if err := c.Service.DeleteRule(id); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"deleted": id})
}
