package service

import (
	"context"
	"examhub_backend/internal/model"
	"examhub_backend/internal/repository"
	"examhub_backend/internal/util"
	"fmt"
	"io"
	"path/filepath"

	"github.com/google/uuid"
)

type AssessmentService struct {
	AssessmentRepo *repository.AssessmentRepository
	AttemptRepo    *repository.AttemptRepository
	CourseRepo     *repository.CourseRepository
	Storage        *StorageService
}

func NewAssessmentService(
	assessmentRepo *repository.AssessmentRepository,
	attemptRepo *repository.AttemptRepository,
	courseRepo *repository.CourseRepository,
	storage *StorageService,
) *AssessmentService {
	return &AssessmentService{
		AssessmentRepo: assessmentRepo,
		AttemptRepo:    attemptRepo,
		CourseRepo:     courseRepo,
		Storage:        storage,
	}
}

// requireOwner 校验测试归属：必须是所在课程的授课教师
func (s *AssessmentService) requireOwner(teacherID, assessmentID uint) (*model.Assessment, error) {
	assessment, err := s.AssessmentRepo.FindAssessmentByID(assessmentID)
	if err != nil {
		return nil, util.ErrAssessmentNotFound
	}
	course, err := s.CourseRepo.FindByID(assessment.CourseID)
	if err != nil {
		return nil, err
	}
	if course.TeacherID != teacherID {
		return nil, util.ErrPermissionDenied
	}
	return assessment, nil
}

// requireEditable 发布后、或已有学生作答的测试不允许改动题目结构
func (s *AssessmentService) requireEditable(teacherID, assessmentID uint) (*model.Assessment, error) {
	assessment, err := s.requireOwner(teacherID, assessmentID)
	if err != nil {
		return nil, err
	}
	if assessment.IsPublished {
		return nil, util.ErrAssessmentPublished
	}
	count, err := s.AttemptRepo.CountByAssessment(assessmentID)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, util.ErrAssessmentHasAttempts
	}
	return assessment, nil
}

func (s *AssessmentService) CreateAssessment(teacherID uint, a *model.Assessment) error {
	course, err := s.CourseRepo.FindByID(a.CourseID)
	if err != nil {
		return util.ErrCourseNotFound
	}
	if course.TeacherID != teacherID {
		return util.ErrPermissionDenied
	}
	a.CreatorID = teacherID
	return s.AssessmentRepo.CreateAssessment(a)
}

func (s *AssessmentService) GetAssessment(id uint) (*model.Assessment, error) {
	a, err := s.AssessmentRepo.FindAssessmentByID(id)
	if err != nil {
		return nil, util.ErrAssessmentNotFound
	}
	return a, nil
}

func (s *AssessmentService) UpdateAssessment(teacherID, assessmentID uint, title, description string, timeLimit int) (*model.Assessment, error) {
	assessment, err := s.requireEditable(teacherID, assessmentID)
	if err != nil {
		return nil, err
	}
	assessment.Title = title
	assessment.Description = description
	assessment.TimeLimit = timeLimit
	if err := s.AssessmentRepo.UpdateAssessment(assessment); err != nil {
		return nil, err
	}
	return assessment, nil
}

func (s *AssessmentService) DeleteAssessment(teacherID, assessmentID uint) error {
	if _, err := s.requireEditable(teacherID, assessmentID); err != nil {
		return err
	}
	return s.AssessmentRepo.DeleteAssessment(assessmentID)
}

// ListCourseAssessments 学生只看已发布的测试，教师可见全部
func (s *AssessmentService) ListCourseAssessments(userID uint, role model.UserRole, courseID uint) ([]model.Assessment, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		return nil, util.ErrCourseNotFound
	}

	if role == model.Teacher || role == model.Admin {
		if course.TeacherID == userID || role == model.Admin {
			return s.AssessmentRepo.ListByCourse(courseID, false)
		}
	}

	enrolled, err := s.CourseRepo.IsEnrolled(userID, courseID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, util.ErrNotEnrolled
	}
	return s.AssessmentRepo.ListByCourse(courseID, true)
}

// Publish 发布测试：至少包含一道题目，发布后题目结构锁定
func (s *AssessmentService) Publish(teacherID, assessmentID uint) error {
	assessment, err := s.requireOwner(teacherID, assessmentID)
	if err != nil {
		return err
	}
	if assessment.IsPublished {
		return util.ErrAssessmentPublished
	}

	questions, err := s.AssessmentRepo.ListQuestions(assessmentID)
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		return fmt.Errorf("无法发布没有题目的测试")
	}
	return s.AssessmentRepo.Publish(assessmentID)
}

// ReleaseResults 发布成绩：测试与其下所有作答记录的可见标志同步更新
func (s *AssessmentService) ReleaseResults(teacherID, assessmentID uint, released bool) error {
	if _, err := s.requireOwner(teacherID, assessmentID); err != nil {
		return err
	}
	return s.AssessmentRepo.ReleaseResults(assessmentID, released)
}

// validateQuestion 题目合法性：分值为正；单选题必须有选项且恰好一个正确答案
func validateQuestion(q *model.Question) error {
	if q.Points <= 0 {
		return fmt.Errorf("题目分值必须大于 0")
	}
	switch q.QuestionType {
	case model.QuestionSingleChoice:
		if len(q.Options) < 2 {
			return util.ErrInvalidOptionSet
		}
		correct := 0
		for _, opt := range q.Options {
			if opt.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return util.ErrInvalidOptionSet
		}
	case model.QuestionFreeText:
		if len(q.Options) > 0 {
			return util.ErrInvalidOptionSet
		}
	default:
		return fmt.Errorf("不支持的题目类型: %s", q.QuestionType)
	}
	return nil
}

func (s *AssessmentService) AddQuestion(teacherID uint, q *model.Question) error {
	if _, err := s.requireEditable(teacherID, q.AssessmentID); err != nil {
		return err
	}
	if err := validateQuestion(q); err != nil {
		return err
	}
	return s.AssessmentRepo.CreateQuestion(q)
}

func (s *AssessmentService) UpdateQuestion(teacherID, questionID uint, updated *model.Question) (*model.Question, error) {
	existing, err := s.AssessmentRepo.FindQuestionByID(questionID)
	if err != nil {
		return nil, util.ErrQuestionNotFound
	}
	if _, err := s.requireEditable(teacherID, existing.AssessmentID); err != nil {
		return nil, err
	}

	existing.QuestionType = updated.QuestionType
	existing.Content = updated.Content
	existing.Points = updated.Points
	existing.Order = updated.Order
	existing.ExpectedAnswer = updated.ExpectedAnswer
	existing.Options = updated.Options
	if err := validateQuestion(existing); err != nil {
		return nil, err
	}
	if err := s.AssessmentRepo.UpdateQuestion(existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *AssessmentService) DeleteQuestion(teacherID, questionID uint) error {
	existing, err := s.AssessmentRepo.FindQuestionByID(questionID)
	if err != nil {
		return util.ErrQuestionNotFound
	}
	if _, err := s.requireEditable(teacherID, existing.AssessmentID); err != nil {
		return err
	}
	return s.AssessmentRepo.DeleteQuestion(questionID)
}

func (s *AssessmentService) ListQuestions(teacherID, assessmentID uint) ([]model.Question, error) {
	if _, err := s.requireOwner(teacherID, assessmentID); err != nil {
		return nil, err
	}
	return s.AssessmentRepo.ListQuestions(assessmentID)
}

// UploadAttachment 上传题目附件（题干配图等），返回可访问地址
func (s *AssessmentService) UploadAttachment(ctx context.Context, teacherID, questionID uint, filename string, reader io.ReadSeeker, size int64) (string, error) {
	question, err := s.AssessmentRepo.FindQuestionByID(questionID)
	if err != nil {
		return "", util.ErrQuestionNotFound
	}
	if _, err := s.requireEditable(teacherID, question.AssessmentID); err != nil {
		return "", err
	}

	// 嗅探真实 MIME 类型而不是信任客户端声明
	mimeType, err := util.ValidateMimeType(reader, []string{util.MimeImage, util.MimePDF})
	if err != nil {
		return "", fmt.Errorf("%w: %s", util.ErrInvalidFileType, mimeType)
	}
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	objectName := fmt.Sprintf("questions/%d/%s%s",
		question.AssessmentID,
		uuid.New().String(),
		filepath.Ext(filename))

	url, err := s.Storage.Upload(ctx, objectName, reader, size, mimeType)
	if err != nil {
		return "", err
	}

	question.AttachmentURL = url
	if err := s.AssessmentRepo.UpdateQuestion(question); err != nil {
		return "", err
	}
	return url, nil
}

// TeacherAssessmentSummary 教师工作台的测试概览
type TeacherAssessmentSummary struct {
	Assessment    model.Assessment `json:"assessment"`
	QuestionCount int              `json:"questionCount"`
	AttemptCount  int64            `json:"attemptCount"`
}

func (s *AssessmentService) GetTeacherSummary(teacherID, assessmentID uint) (*TeacherAssessmentSummary, error) {
	assessment, err := s.requireOwner(teacherID, assessmentID)
	if err != nil {
		return nil, err
	}
	questions, err := s.AssessmentRepo.ListQuestions(assessmentID)
	if err != nil {
		return nil, err
	}
	count, err := s.AttemptRepo.CountByAssessment(assessmentID)
	if err != nil {
		return nil, err
	}
	return &TeacherAssessmentSummary{
		Assessment:    *assessment,
		QuestionCount: len(questions),
		AttemptCount:  count,
	}, nil
}
