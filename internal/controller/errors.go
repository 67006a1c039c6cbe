package controller

import (
	"errors"
	"examhub_backend/internal/util"
	"net/http"

	"github.com/gin-gonic/gin"
)

// 业务错误到 HTTP 状态码的统一映射
var errStatus = map[error]int{
	util.ErrUserNotFound:           http.StatusNotFound,
	util.ErrEmailRegistered:        http.StatusConflict,
	util.ErrPermissionDenied:       http.StatusForbidden,
	util.ErrCourseNotFound:         http.StatusNotFound,
	util.ErrNotEnrolled:            http.StatusForbidden,
	util.ErrAlreadyEnrolled:        http.StatusConflict,
	util.ErrAssessmentNotFound:     http.StatusNotFound,
	util.ErrAssessmentNotPublished: http.StatusForbidden,
	util.ErrAssessmentPublished:    http.StatusConflict,
	util.ErrAssessmentHasAttempts:  http.StatusConflict,
	util.ErrQuestionNotFound:       http.StatusNotFound,
	util.ErrInvalidOptionSet:       http.StatusBadRequest,
	util.ErrAttemptNotFound:        http.StatusNotFound,
	util.ErrAttemptExists:          http.StatusConflict,
	util.ErrAttemptCompleted:       http.StatusConflict,
	util.ErrUnansweredQuestions:    http.StatusConflict,
	util.ErrAnswerNotFound:         http.StatusNotFound,
	util.ErrNotManuallyGradable:    http.StatusBadRequest,
	util.ErrScoreOutOfRange:        http.StatusBadRequest,
	util.ErrAnswerAlreadyEvaluated: http.StatusConflict,
	util.ErrResultsNotReleased:     http.StatusForbidden,
	util.ErrInvalidFileType:        http.StatusBadRequest,
}

func handleServiceError(ctx *gin.Context, err error) {
	for sentinel, status := range errStatus {
		if errors.Is(err, sentinel) {
			util.Error(ctx, status, sentinel.Error())
			return
		}
	}
	util.LogInternalError(ctx, err)
}
