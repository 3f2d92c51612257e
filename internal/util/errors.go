package util

import "errors"

var (
	// 报名生命周期
	ErrDuplicateEnrollment    = errors.New("duplicate enrollment for user and course")
	ErrCourseFull             = errors.New("course is full")
	ErrInvalidTransition      = errors.New("invalid enrollment status transition")
	ErrIncompleteRequirements = errors.New("mandatory course content not fully completed")
	ErrConcurrentModification = errors.New("enrollment was modified concurrently")
	ErrEnrollmentNotActive    = errors.New("enrollment is not active")

	// 目录结构
	ErrInvalidCourseStructure = errors.New("invalid course structure")
	ErrCourseNotPublished     = errors.New("course not published")
	ErrModuleReferenced       = errors.New("module is referenced by enrollments, archive instead")

	// 查找失败
	ErrCourseNotFound      = errors.New("course not found")
	ErrModuleNotFound      = errors.New("module not found")
	ErrLessonNotFound      = errors.New("lesson not found")
	ErrEnrollmentNotFound  = errors.New("enrollment not found")
	ErrCertificateNotFound = errors.New("certificate not found")
	ErrTargetNotFound      = errors.New("completion target not found in course")
	ErrUserNotFound        = errors.New("用户不存在")
	ErrEmailRegistered     = errors.New("该邮箱已被注册")

	ErrPermissionDenied = errors.New("permission denied")
)

// IsNotFound 所有查找失败类错误的统一判断
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCourseNotFound) ||
		errors.Is(err, ErrModuleNotFound) ||
		errors.Is(err, ErrLessonNotFound) ||
		errors.Is(err, ErrEnrollmentNotFound) ||
		errors.Is(err, ErrCertificateNotFound) ||
		errors.Is(err, ErrTargetNotFound) ||
		errors.Is(err, ErrUserNotFound)
}
