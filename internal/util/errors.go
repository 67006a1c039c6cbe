package util

import "errors"

var (
	ErrUserNotFound            = errors.New("用户不存在")
	ErrEmailRegistered         = errors.New("该邮箱已被注册")
	ErrPermissionDenied        = errors.New("permission denied")
	ErrCourseNotFound          = errors.New("course not found")
	ErrNotEnrolled             = errors.New("not enrolled in course")
	ErrAlreadyEnrolled         = errors.New("already enrolled in course")
	ErrAssessmentNotFound      = errors.New("assessment not found")
	ErrAssessmentNotPublished  = errors.New("assessment not published or not accessible")
	ErrAssessmentPublished     = errors.New("assessment already published")
	ErrAssessmentHasAttempts   = errors.New("assessment already attempted, questions are locked")
	ErrQuestionNotFound        = errors.New("question not found")
	ErrInvalidOptionSet        = errors.New("single choice question requires exactly one correct option")
	ErrAttemptNotFound         = errors.New("attempt not found")
	ErrAttemptExists           = errors.New("assessment already attempted")
	ErrAttemptCompleted        = errors.New("attempt already submitted")
	ErrUnansweredQuestions     = errors.New("unanswered questions require confirmation")
	ErrAnswerNotFound          = errors.New("answer not found")
	ErrNotManuallyGradable     = errors.New("only free text answers can be graded manually")
	ErrScoreOutOfRange         = errors.New("score out of range")
	ErrAnswerAlreadyEvaluated  = errors.New("answer already has a pending AI suggestion")
	ErrResultsNotReleased      = errors.New("results not released")
	ErrInvalidFileType         = errors.New("unsupported attachment file type")
)
