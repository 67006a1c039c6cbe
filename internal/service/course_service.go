package service

import (
	"errors"
	"examhub_backend/internal/model"
	"examhub_backend/internal/repository"
	"examhub_backend/internal/util"

	"gorm.io/gorm"
)

type CourseService struct {
	CourseRepo *repository.CourseRepository
}

func NewCourseService(courseRepo *repository.CourseRepository) *CourseService {
	return &CourseService{CourseRepo: courseRepo}
}

func (s *CourseService) CreateCourse(course *model.Course) error {
	return s.CourseRepo.Create(course)
}

func (s *CourseService) GetCourse(id uint) (*model.Course, error) {
	course, err := s.CourseRepo.FindByID(id)
	if err != nil {
		return nil, util.ErrCourseNotFound
	}
	return course, nil
}

func (s *CourseService) UpdateCourse(teacherID, courseID uint, name, description string) (*model.Course, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		return nil, util.ErrCourseNotFound
	}
	if course.TeacherID != teacherID {
		return nil, util.ErrPermissionDenied
	}

	course.Name = name
	course.Description = description
	if err := s.CourseRepo.Update(course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) DeleteCourse(teacherID, courseID uint) error {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		return util.ErrCourseNotFound
	}
	if course.TeacherID != teacherID {
		return util.ErrPermissionDenied
	}
	return s.CourseRepo.Delete(courseID)
}

func (s *CourseService) ListTeacherCourses(teacherID uint, page, limit int) ([]model.Course, int64, error) {
	return s.CourseRepo.ListByTeacher(teacherID, page, limit)
}

func (s *CourseService) ListEnrolledCourses(userID uint) ([]model.Course, error) {
	return s.CourseRepo.ListEnrolled(userID)
}

// Enroll 选课，重复选课返回 ErrAlreadyEnrolled
func (s *CourseService) Enroll(userID, courseID uint) error {
	if _, err := s.CourseRepo.FindByID(courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrCourseNotFound
		}
		return err
	}

	enrolled, err := s.CourseRepo.IsEnrolled(userID, courseID)
	if err != nil {
		return err
	}
	if enrolled {
		return util.ErrAlreadyEnrolled
	}

	return s.CourseRepo.Enroll(&model.Enrollment{
		CourseID: courseID,
		UserID:   userID,
	})
}

func (s *CourseService) ListStudents(teacherID, courseID uint) ([]model.User, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		return nil, util.ErrCourseNotFound
	}
	if course.TeacherID != teacherID {
		return nil, util.ErrPermissionDenied
	}
	return s.CourseRepo.ListStudents(courseID)
}
