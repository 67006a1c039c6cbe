package controller

import (
	"examhub_backend/internal/service"
	"examhub_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type GradingController struct {
	GradingService *service.GradingService
}

func NewGradingController(gradingService *service.GradingService) *GradingController {
	return &GradingController{GradingService: gradingService}
}

// ListAttempts godoc
// @Summary 测试作答列表（教师）
// @Tags 评分
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "测试ID"
// @Param   page query int false "页码"
// @Param   limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse} "成功"
// @Router /api/teacher/assessments/{id}/attempts [get]
func (c *GradingController) ListAttempts(ctx *gin.Context) {
	assessmentID := util.MustParseUint(ctx.Param("id"))
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	attempts, total, err := c.GradingService.ListAttempts(assessmentID, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: attempts, Total: total, Page: page, Limit: limit})
}

// GetAttemptAnswers godoc
// @Summary 作答批阅视图（教师）
// @Description 题目与作答并排返回，含正确答案与评分状态
// @Tags 评分
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "作答ID"
// @Success 200 {object} util.Response{data=[]service.AnswerReviewRow} "成功"
// @Router /api/teacher/attempts/{id}/answers [get]
func (c *GradingController) GetAttemptAnswers(ctx *gin.Context) {
	attemptID := util.MustParseUint(ctx.Param("id"))

	rows, err := c.GradingService.GetAttemptAnswers(attemptID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, rows)
}

// swagger:model UpdateScoreRequest
type UpdateScoreRequest struct {
	Score int `json:"score"`
}

// UpdateScore godoc
// @Summary 人工评分
// @Description 仅主观题可评分，分数必须在 [0, 题目分值] 区间内
// @Tags 评分
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "答案ID"
// @Param   body body UpdateScoreRequest true "分数"
// @Success 200 {object} util.Response{data=model.AttemptAnswer} "评分成功"
// @Failure 400 {object} util.Response "分数越界或题型不可评分"
// @Router /api/teacher/answers/{id}/score [put]
func (c *GradingController) UpdateScore(ctx *gin.Context) {
	var req UpdateScoreRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	answerID := util.MustParseUint(ctx.Param("id"))

	answer, err := c.GradingService.UpdateScore(claims.UserID, answerID, req.Score)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, answer)
}

// swagger:model BatchScoreRequest
type BatchScoreRequest struct {
	Updates []service.ScoreUpdate `json:"updates" binding:"required,dive"`
}

// BatchUpdateScores godoc
// @Summary 批量评分
// @Description 单条失败不影响其余，逐条返回成功/跳过/失败结果
// @Tags 评分
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body BatchScoreRequest true "批量分数"
// @Success 200 {object} util.Response{data=service.BatchResult} "处理完成"
// @Router /api/teacher/answers/scores [put]
func (c *GradingController) BatchUpdateScores(ctx *gin.Context) {
	var req BatchScoreRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	result := c.GradingService.BatchUpdateScores(claims.UserID, req.Updates)
	util.Success(ctx, result)
}

// EvaluateAnswer godoc
// @Summary AI 评分建议（单条）
// @Description 生成建议分供教师参考，不直接落分；AI 不可用时回退关键词匹配
// @Tags 评分
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "答案ID"
// @Success 200 {object} util.Response{data=service.EvaluationResult} "成功"
// @Failure 409 {object} util.Response "已评估过"
// @Router /api/teacher/answers/{id}/evaluate [post]
func (c *GradingController) EvaluateAnswer(ctx *gin.Context) {
	answerID := util.MustParseUint(ctx.Param("id"))

	result, err := c.GradingService.EvaluateAnswer(ctx.Request.Context(), answerID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// EvaluateAll godoc
// @Summary AI 评分建议（全量）
// @Description 为测试下所有未评估的主观题作答并发生成建议
// @Tags 评分
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "测试ID"
// @Success 200 {object} util.Response{data=[]service.EvaluationResult} "成功"
// @Router /api/teacher/assessments/{id}/evaluate-all [post]
func (c *GradingController) EvaluateAll(ctx *gin.Context) {
	assessmentID := util.MustParseUint(ctx.Param("id"))

	results, err := c.GradingService.EvaluateAll(ctx.Request.Context(), assessmentID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, results)
}
