package controller

import (
	"examhub_backend/internal/service"
	"examhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	AttemptService *service.AttemptService
}

func NewAttemptController(attemptService *service.AttemptService) *AttemptController {
	return &AttemptController{AttemptService: attemptService}
}

// GetStatus godoc
// @Summary 作答状态查询
// @Description 开考前查询：已作答时返回记录供客户端跳转成绩页
// @Tags 作答
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "测试ID"
// @Success 200 {object} util.Response{data=service.AttemptStatusInfo} "成功"
// @Router /api/assessments/{id}/attempt-status [get]
func (c *AttemptController) GetStatus(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	assessmentID := util.MustParseUint(ctx.Param("id"))

	info, err := c.AttemptService.GetAttemptStatus(claims.UserID, assessmentID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, info)
}

// Start godoc
// @Summary 开始作答
// @Description 创建作答记录并启动服务端计时，重复作答返回 409
// @Tags 作答
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "测试ID"
// @Success 201 {object} util.Response{data=model.AssessmentAttempt} "开始成功"
// @Failure 403 {object} util.Response "未发布或未选课"
// @Failure 409 {object} util.Response "已作答过该测试"
// @Router /api/assessments/{id}/attempts [post]
func (c *AttemptController) Start(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	assessmentID := util.MustParseUint(ctx.Param("id"))

	attempt, err := c.AttemptService.StartAttempt(claims.UserID, assessmentID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Created(ctx, attempt)
}

// swagger:model DraftRequest
type DraftRequest struct {
	QuestionID       uint   `json:"questionId" binding:"required"`
	SelectedOptionID *uint  `json:"selectedOptionId"`
	TextAnswer       string `json:"textAnswer"`
}

// SaveDraft godoc
// @Summary 保存答案草稿
// @Description 作答过程中的自动保存，交卷或超时前可反复覆盖
// @Tags 作答
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "作答ID"
// @Param   body body DraftRequest true "单题草稿"
// @Success 200 {object} util.Response "保存成功"
// @Failure 409 {object} util.Response "已交卷"
// @Router /api/attempts/{id}/draft [put]
func (c *AttemptController) SaveDraft(ctx *gin.Context) {
	var req DraftRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	attemptID := util.MustParseUint(ctx.Param("id"))

	draft := service.AnswerDraft{
		SelectedOptionID: req.SelectedOptionID,
		TextAnswer:       req.TextAnswer,
	}

	if err := c.AttemptService.SaveDraft(ctx.Request.Context(), claims.UserID, attemptID, req.QuestionID, draft); err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// GetDetail godoc
// @Summary 作答详情
// @Description 作答中返回剩余秒数、题目与草稿；交卷后成绩未发布时不含分数与答案
// @Tags 作答
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "作答ID"
// @Success 200 {object} util.Response{data=service.AttemptDetail} "成功"
// @Router /api/attempts/{id} [get]
func (c *AttemptController) GetDetail(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	attemptID := util.MustParseUint(ctx.Param("id"))

	detail, err := c.AttemptService.GetAttemptDetail(ctx.Request.Context(), claims.UserID, attemptID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// swagger:model SubmitRequest
type SubmitRequest struct {
	Answers []DraftRequest `json:"answers"`
	Force   bool           `json:"force"` // 存在未作答题目时是否仍然交卷
}

// Submit godoc
// @Summary 交卷
// @Description 未作答题目存在且未确认时返回 409 要求确认；answers 为空时使用服务端草稿
// @Tags 作答
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "作答ID"
// @Param   body body SubmitRequest true "最终答案"
// @Success 200 {object} util.Response{data=model.AssessmentAttempt} "交卷成功"
// @Failure 409 {object} util.Response "已交卷或存在未作答题目"
// @Router /api/attempts/{id}/submit [post]
func (c *AttemptController) Submit(ctx *gin.Context) {
	var req SubmitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	attemptID := util.MustParseUint(ctx.Param("id"))

	var answers map[uint]service.AnswerDraft
	if len(req.Answers) > 0 {
		answers = make(map[uint]service.AnswerDraft, len(req.Answers))
		for _, a := range req.Answers {
			answers[a.QuestionID] = service.AnswerDraft{
				SelectedOptionID: a.SelectedOptionID,
				TextAnswer:       a.TextAnswer,
			}
		}
	}

	attempt, err := c.AttemptService.SubmitAttempt(ctx.Request.Context(), claims.UserID, attemptID, answers, req.Force)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}
