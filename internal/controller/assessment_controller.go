package controller

import (
	"examhub_backend/internal/model"
	"examhub_backend/internal/service"
	"examhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AssessmentController struct {
	AssessmentService *service.AssessmentService
}

func NewAssessmentController(assessmentService *service.AssessmentService) *AssessmentController {
	return &AssessmentController{AssessmentService: assessmentService}
}

// swagger:model AssessmentRequest
type AssessmentRequest struct {
	CourseID    uint   `json:"courseId" binding:"required"`
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	TimeLimit   int    `json:"timeLimit" binding:"required,min=1"` // 分钟
}

// CreateAssessment godoc
// @Summary 创建测试
// @Tags 测试管理
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body AssessmentRequest true "测试信息"
// @Success 201 {object} util.Response{data=model.Assessment} "创建成功"
// @Router /api/teacher/assessments [post]
func (c *AssessmentController) CreateAssessment(ctx *gin.Context) {
	var req AssessmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	assessment := &model.Assessment{
		CourseID:    req.CourseID,
		Title:       req.Title,
		Description: req.Description,
		TimeLimit:   req.TimeLimit,
	}

	if err := c.AssessmentService.CreateAssessment(claims.UserID, assessment); err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Created(ctx, assessment)
}

// UpdateAssessment godoc
// @Summary 更新测试（仅未发布且无作答时）
// @Tags 测试管理
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "测试ID"
// @Param   body body AssessmentRequest true "测试信息"
// @Success 200 {object} util.Response{data=model.Assessment} "更新成功"
// @Failure 409 {object} util.Response "已发布或已有作答"
// @Router /api/teacher/assessments/{id} [put]
func (c *AssessmentController) UpdateAssessment(ctx *gin.Context) {
	var req AssessmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	assessmentID := util.MustParseUint(ctx.Param("id"))

	assessment, err := c.AssessmentService.UpdateAssessment(claims.UserID, assessmentID, req.Title, req.Description, req.TimeLimit)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, assessment)
}

// DeleteAssessment godoc
// @Summary 删除测试（仅未发布且无作答时）
// @Tags 测试管理
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "测试ID"
// @Success 200 {object} util.Response "删除成功"
// @Router /api/teacher/assessments/{id} [delete]
func (c *AssessmentController) DeleteAssessment(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	assessmentID := util.MustParseUint(ctx.Param("id"))

	if err := c.AssessmentService.DeleteAssessment(claims.UserID, assessmentID); err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// ListCourseAssessments godoc
// @Summary 课程下的测试列表
// @Description 学生只返回已发布的测试，教师返回全部
// @Tags 测试管理
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "课程ID"
// @Success 200 {object} util.Response{data=[]model.Assessment} "成功"
// @Router /api/courses/{id}/assessments [get]
func (c *AssessmentController) ListCourseAssessments(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("id"))

	assessments, err := c.AssessmentService.ListCourseAssessments(claims.UserID, claims.Role, courseID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, assessments)
}

// Publish godoc
// @Summary 发布测试
// @Description 发布后学生可开始作答，题目结构锁定
// @Tags 测试管理
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "测试ID"
// @Success 200 {object} util.Response "发布成功"
// @Failure 409 {object} util.Response "已发布"
// @Router /api/teacher/assessments/{id}/publish [post]
func (c *AssessmentController) Publish(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	assessmentID := util.MustParseUint(ctx.Param("id"))

	if err := c.AssessmentService.Publish(claims.UserID, assessmentID); err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// swagger:model ReleaseResultsRequest
type ReleaseResultsRequest struct {
	Released bool `json:"released"`
}

// ReleaseResults godoc
// @Summary 发布/撤回成绩
// @Description 同步更新该测试下所有作答记录的成绩可见性
// @Tags 测试管理
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "测试ID"
// @Param   body body ReleaseResultsRequest true "发布标志"
// @Success 200 {object} util.Response "操作成功"
// @Router /api/teacher/assessments/{id}/release-results [post]
func (c *AssessmentController) ReleaseResults(ctx *gin.Context) {
	var req ReleaseResultsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	assessmentID := util.MustParseUint(ctx.Param("id"))

	if err := c.AssessmentService.ReleaseResults(claims.UserID, assessmentID, req.Released); err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// GetTeacherSummary godoc
// @Summary 测试概览（教师）
// @Tags 测试管理
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "测试ID"
// @Success 200 {object} util.Response{data=service.TeacherAssessmentSummary} "成功"
// @Router /api/teacher/assessments/{id} [get]
func (c *AssessmentController) GetTeacherSummary(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	assessmentID := util.MustParseUint(ctx.Param("id"))

	summary, err := c.AssessmentService.GetTeacherSummary(claims.UserID, assessmentID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}

// swagger:model QuestionRequest
type QuestionRequest struct {
	AssessmentID   uint            `json:"assessmentId" binding:"required"`
	QuestionType   string          `json:"questionType" binding:"required,oneof=single_choice free_text"`
	Content        string          `json:"content" binding:"required"`
	Points         int             `json:"points" binding:"required,min=1"`
	Order          int             `json:"order"`
	ExpectedAnswer string          `json:"expectedAnswer"`
	Options        []OptionRequest `json:"options"`
}

type OptionRequest struct {
	Content   string `json:"content" binding:"required"`
	IsCorrect bool   `json:"isCorrect"`
	Order     int    `json:"order"`
}

func (r *QuestionRequest) toModel() *model.Question {
	q := &model.Question{
		AssessmentID:   r.AssessmentID,
		QuestionType:   r.QuestionType,
		Content:        r.Content,
		Points:         r.Points,
		Order:          r.Order,
		ExpectedAnswer: r.ExpectedAnswer,
	}
	for _, opt := range r.Options {
		q.Options = append(q.Options, model.QuestionOption{
			Content:   opt.Content,
			IsCorrect: opt.IsCorrect,
			Order:     opt.Order,
		})
	}
	return q
}

// AddQuestion godoc
// @Summary 添加题目
// @Tags 题目管理
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body QuestionRequest true "题目信息"
// @Success 201 {object} util.Response{data=model.Question} "创建成功"
// @Failure 400 {object} util.Response "题目不合法"
// @Router /api/teacher/questions [post]
func (c *AssessmentController) AddQuestion(ctx *gin.Context) {
	var req QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	question := req.toModel()

	if err := c.AssessmentService.AddQuestion(claims.UserID, question); err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Created(ctx, question)
}

// UpdateQuestion godoc
// @Summary 更新题目
// @Tags 题目管理
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "题目ID"
// @Param   body body QuestionRequest true "题目信息"
// @Success 200 {object} util.Response{data=model.Question} "更新成功"
// @Router /api/teacher/questions/{id} [put]
func (c *AssessmentController) UpdateQuestion(ctx *gin.Context) {
	var req QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	questionID := util.MustParseUint(ctx.Param("id"))

	question, err := c.AssessmentService.UpdateQuestion(claims.UserID, questionID, req.toModel())
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, question)
}

// DeleteQuestion godoc
// @Summary 删除题目
// @Tags 题目管理
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "题目ID"
// @Success 200 {object} util.Response "删除成功"
// @Router /api/teacher/questions/{id} [delete]
func (c *AssessmentController) DeleteQuestion(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	questionID := util.MustParseUint(ctx.Param("id"))

	if err := c.AssessmentService.DeleteQuestion(claims.UserID, questionID); err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// ListQuestions godoc
// @Summary 题目列表（教师，含正确答案）
// @Tags 题目管理
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "测试ID"
// @Success 200 {object} util.Response{data=[]model.Question} "成功"
// @Router /api/teacher/assessments/{id}/questions [get]
func (c *AssessmentController) ListQuestions(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	assessmentID := util.MustParseUint(ctx.Param("id"))

	questions, err := c.AssessmentService.ListQuestions(claims.UserID, assessmentID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, questions)
}

// UploadAttachment godoc
// @Summary 上传题目附件
// @Tags 题目管理
// @Accept  multipart/form-data
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "题目ID"
// @Param   file formData file true "附件文件"
// @Success 200 {object} util.Response{data=object} "上传成功"
// @Router /api/teacher/questions/{id}/attachment [post]
func (c *AssessmentController) UploadAttachment(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	questionID := util.MustParseUint(ctx.Param("id"))

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "缺少上传文件")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	url, err := c.AssessmentService.UploadAttachment(ctx.Request.Context(),
		claims.UserID, questionID, fileHeader.Filename, file, fileHeader.Size)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"url": url})
}
