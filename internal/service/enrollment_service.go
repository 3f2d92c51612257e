package service

import (
	"context"
	"errors"
	"progression_backend/internal/model"
	"progression_backend/internal/repository"
	"progression_backend/internal/util"
	"progression_backend/pkg/logger"
	"progression_backend/pkg/monitoring"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EnrollmentService 报名生命周期：创建、状态流转、退出。
// 状态机只有这几条合法边，其它一律 ErrInvalidTransition：
//
//	pending  -> active | withdrawn
//	active   -> completed | withdrawn
type EnrollmentService struct {
	EnrollmentRepo  *repository.EnrollmentRepository
	CatalogRepo     *repository.CatalogRepository
	CertificateRepo *repository.CertificateRepository
	UserRepo        *repository.UserRepository
	Aggregator      *AggregatorService
	Notifier        CompletionNotifier
}

func NewEnrollmentService(
	enrollmentRepo *repository.EnrollmentRepository,
	catalogRepo *repository.CatalogRepository,
	certificateRepo *repository.CertificateRepository,
	userRepo *repository.UserRepository,
	aggregator *AggregatorService,
	notifier CompletionNotifier,
) *EnrollmentService {
	return &EnrollmentService{
		EnrollmentRepo:  enrollmentRepo,
		CatalogRepo:     catalogRepo,
		CertificateRepo: certificateRepo,
		UserRepo:        userRepo,
		Aggregator:      aggregator,
		Notifier:        notifier,
	}
}

var allowedTransitions = map[model.EnrollmentStatus][]model.EnrollmentStatus{
	model.EnrollmentPending: {model.EnrollmentActive, model.EnrollmentWithdrawn},
	model.EnrollmentActive:  {model.EnrollmentCompleted, model.EnrollmentWithdrawn},
}

func transitionAllowed(from, to model.EnrollmentStatus) bool {
	for _, t := range allowedTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

type EnrollRequest struct {
	ExpectedCompletionDate *time.Time `json:"expectedCompletionDate,omitempty"`
}

// Enroll 创建报名。课程必须已发布；同一用户同一课程最多一条非 withdrawn 报名；
// 设置了 MaxStudents 的课程座位用原子条件自增占用，并发报名不会超卖。
func (s *EnrollmentService) Enroll(userID, courseID uint, req EnrollRequest) (*model.Enrollment, error) {
	course, err := s.CatalogRepo.FindCourseByID(courseID)
	if err != nil {
		return nil, err
	}
	if course.Status != model.CoursePublished {
		return nil, util.ErrCourseNotPublished
	}

	status := model.EnrollmentActive
	if course.RequiresApproval {
		status = model.EnrollmentPending
	}

	enrollment := &model.Enrollment{
		CourseID:               courseID,
		UserID:                 userID,
		Status:                 status,
		EnrollmentDate:         time.Now(),
		ExpectedCompletionDate: req.ExpectedCompletionDate,
	}

	if err := s.EnrollmentRepo.CreateWithSeat(course, enrollment); err != nil {
		return nil, err
	}

	monitoring.EnrollmentsCreated.Inc()
	logger.Log.Info("enrollment created",
		zap.Uint("userId", userID),
		zap.Uint("courseId", courseID),
		zap.String("status", string(status)),
	)

	return enrollment, nil
}

// Transition 校验并执行状态流转。转 completed 前必修内容必须 100% 完成，
// 否则 ErrIncompleteRequirements；成功后签发证书（课程开启时）并发完成通知。
func (s *EnrollmentService) Transition(enrollmentID uint, to model.EnrollmentStatus) (*model.Enrollment, error) {
	enrollment, err := s.EnrollmentRepo.FindByID(enrollmentID)
	if err != nil {
		return nil, err
	}

	if !transitionAllowed(enrollment.Status, to) {
		return nil, util.ErrInvalidTransition
	}

	var completionDate *time.Time
	if to == model.EnrollmentCompleted {
		percent, err := s.Aggregator.PercentComplete(enrollmentID)
		if err != nil {
			return nil, err
		}
		if percent < 100 {
			return nil, util.ErrIncompleteRequirements
		}
		now := time.Now()
		completionDate = &now
	}

	if err := s.EnrollmentRepo.UpdateStatusCAS(enrollment, to, completionDate); err != nil {
		return nil, err
	}

	switch to {
	case model.EnrollmentWithdrawn:
		// 退出不删台账历史，只释放座位
		if err := s.EnrollmentRepo.ReleaseSeat(enrollment.CourseID); err != nil {
			logger.Log.Error("seat release failed", zap.Uint("courseId", enrollment.CourseID), zap.Error(err))
		}
	case model.EnrollmentCompleted:
		s.finishCompletion(enrollment)
	}

	return enrollment, nil
}

// finishCompletion 完成后的副作用：证书签发 + 完成通知。
// 都是尽力而为，失败只记日志，不回滚已完成状态。
func (s *EnrollmentService) finishCompletion(enrollment *model.Enrollment) {
	monitoring.CoursesCompleted.Inc()

	course, err := s.CatalogRepo.FindCourseByID(enrollment.CourseID)
	if err != nil {
		logger.Log.Error("course load failed after completion", zap.Error(err))
		return
	}

	serial := ""
	if course.CertificateAvailable {
		cert := &model.Certificate{
			EnrollmentID: enrollment.ID,
			Serial:       uuid.New().String(),
			IssuedAt:     time.Now(),
		}
		if err := s.CertificateRepo.Create(cert); err != nil {
			logger.Log.Error("certificate issue failed", zap.Uint("enrollmentId", enrollment.ID), zap.Error(err))
		} else {
			serial = cert.Serial
		}
	}

	notice := model.CompletionNotice{
		EnrollmentID:      enrollment.ID,
		CourseID:          course.ID,
		UserID:            enrollment.UserID,
		CourseTitle:       course.Title,
		CertificateSerial: serial,
		CompletedAt:       time.Now(),
	}
	if user, err := s.UserRepo.FindByID(enrollment.UserID); err == nil {
		notice.UserName = user.Name
		notice.UserEmail = user.Email
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.Notifier.NotifyCompletion(ctx, notice); err != nil {
		logger.Log.Error("completion notification failed", zap.Uint("enrollmentId", enrollment.ID), zap.Error(err))
	}
}

// Withdraw 学员自助退出，校验归属
func (s *EnrollmentService) Withdraw(userID, enrollmentID uint) (*model.Enrollment, error) {
	enrollment, err := s.EnrollmentRepo.FindByID(enrollmentID)
	if err != nil {
		return nil, err
	}
	if userID != 0 && enrollment.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	return s.Transition(enrollmentID, model.EnrollmentWithdrawn)
}

// Approve 讲师批准 pending 报名
func (s *EnrollmentService) Approve(enrollmentID uint) (*model.Enrollment, error) {
	return s.Transition(enrollmentID, model.EnrollmentActive)
}

func (s *EnrollmentService) ListForUser(userID uint) ([]model.Enrollment, error) {
	return s.EnrollmentRepo.FindByUser(userID)
}

func (s *EnrollmentService) ListForCourse(courseID uint, status model.EnrollmentStatus) ([]model.Enrollment, error) {
	return s.EnrollmentRepo.FindByCourse(courseID, status)
}

func (s *EnrollmentService) Get(userID, enrollmentID uint) (*model.Enrollment, error) {
	enrollment, err := s.EnrollmentRepo.FindByID(enrollmentID)
	if err != nil {
		return nil, err
	}
	if userID != 0 && enrollment.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	return enrollment, nil
}

// Certificate 查询报名对应的证书
func (s *EnrollmentService) Certificate(userID, enrollmentID uint) (*model.Certificate, error) {
	enrollment, err := s.EnrollmentRepo.FindByID(enrollmentID)
	if err != nil {
		return nil, err
	}
	if userID != 0 && enrollment.UserID != userID {
		return nil, util.ErrPermissionDenied
	}

	cert, err := s.CertificateRepo.FindByEnrollment(enrollmentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCertificateNotFound
	}
	return cert, err
}
