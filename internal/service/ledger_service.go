package service

import (
	"errors"
	"progression_backend/internal/model"
	"progression_backend/internal/repository"
	"progression_backend/internal/util"
	"progression_backend/pkg/monitoring"
	"time"

	"gorm.io/gorm"
)

// LedgerService 进度台账。记录完成是幂等的：同一 (报名, 目标) 以相同结果
// 重复提交不报错，返回"已记录"标记——客户端重复点击不应该变成失败。
// 不同结果（比如补考通过）追加新事件并顶替 latest 指针。
type LedgerService struct {
	ProgressRepo   *repository.ProgressRepository
	EnrollmentRepo *repository.EnrollmentRepository
	CatalogRepo    *repository.CatalogRepository
}

func NewLedgerService(
	progressRepo *repository.ProgressRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	catalogRepo *repository.CatalogRepository,
) *LedgerService {
	return &LedgerService{
		ProgressRepo:   progressRepo,
		EnrollmentRepo: enrollmentRepo,
		CatalogRepo:    catalogRepo,
	}
}

type RecordCompletionRequest struct {
	TargetType model.TargetType      `json:"targetType" binding:"required"`
	TargetID   uint                  `json:"targetId" binding:"required"`
	Outcome    model.ProgressOutcome `json:"outcome" binding:"required"`
	Score      *int                  `json:"score,omitempty"`
}

// RecordResult 区分"新记录"和"重复但无害"的提交
type RecordResult struct {
	Event           *model.ProgressEvent `json:"event"`
	AlreadyRecorded bool                 `json:"alreadyRecorded"`
}

func validOutcome(o model.ProgressOutcome) bool {
	return o == model.OutcomeCompleted || o == model.OutcomePassed || o == model.OutcomeFailed
}

func validTargetType(t model.TargetType) bool {
	return t == model.TargetLesson || t == model.TargetQuiz || t == model.TargetAssignment
}

func sameScore(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// RecordCompletion 追加一条完成事件。
// 校验：报名存在且 active、目标存在且属于报名的课程。
// 调用方只能写自己的报名，归属校验在接口层做。
func (s *LedgerService) RecordCompletion(userID uint, enrollmentID uint, req RecordCompletionRequest) (*RecordResult, error) {
	if !validTargetType(req.TargetType) || !validOutcome(req.Outcome) {
		return nil, util.ErrTargetNotFound
	}

	enrollment, err := s.EnrollmentRepo.FindByID(enrollmentID)
	if err != nil {
		return nil, err
	}
	if userID != 0 && enrollment.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	if enrollment.Status != model.EnrollmentActive {
		return nil, util.ErrEnrollmentNotActive
	}

	ref := model.TargetRef{Type: req.TargetType, ID: req.TargetID}
	courseID, err := s.CatalogRepo.TargetCourseID(ref)
	if err != nil {
		return nil, err
	}
	if courseID != enrollment.CourseID {
		return nil, util.ErrTargetNotFound
	}

	// 幂等检查：最新事件已是同样的结果则不再追加
	latest, err := s.ProgressRepo.LatestFor(enrollmentID, ref)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if latest != nil && latest.Outcome == req.Outcome && sameScore(latest.Score, req.Score) {
		return &RecordResult{
			Event: &model.ProgressEvent{
				ID:           latest.EventID,
				EnrollmentID: latest.EnrollmentID,
				TargetType:   latest.TargetType,
				TargetID:     latest.TargetID,
				Outcome:      latest.Outcome,
				Score:        latest.Score,
				RecordedAt:   latest.RecordedAt,
			},
			AlreadyRecorded: true,
		}, nil
	}

	event := &model.ProgressEvent{
		EnrollmentID: enrollmentID,
		TargetType:   req.TargetType,
		TargetID:     req.TargetID,
		Outcome:      req.Outcome,
		Score:        req.Score,
		RecordedAt:   time.Now(),
	}

	if err := s.ProgressRepo.AppendWithLatest(event); err != nil {
		return nil, err
	}

	monitoring.CompletionsRecorded.WithLabelValues(string(req.TargetType)).Inc()

	return &RecordResult{Event: event, AlreadyRecorded: false}, nil
}

// History 分页返回台账历史，时间升序
func (s *LedgerService) History(userID uint, enrollmentID uint, page, limit int) ([]model.ProgressEvent, int64, error) {
	enrollment, err := s.EnrollmentRepo.FindByID(enrollmentID)
	if err != nil {
		return nil, 0, err
	}
	if userID != 0 && enrollment.UserID != userID {
		return nil, 0, util.ErrPermissionDenied
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	return s.ProgressRepo.History(enrollmentID, (page-1)*limit, limit)
}
