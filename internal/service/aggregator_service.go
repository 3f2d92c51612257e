package service

import (
	"errors"
	"progression_backend/internal/model"
	"progression_backend/internal/repository"
	"progression_backend/internal/util"
	"time"
)

// AggregatorService 进度聚合：完成度、证书资格、讲师端模块统计。
// 一律从台账现算，不落地派生值。
type AggregatorService struct {
	CatalogRepo    *repository.CatalogRepository
	EnrollmentRepo *repository.EnrollmentRepository
	ProgressRepo   *repository.ProgressRepository
}

func NewAggregatorService(
	catalogRepo *repository.CatalogRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	progressRepo *repository.ProgressRepository,
) *AggregatorService {
	return &AggregatorService{
		CatalogRepo:    catalogRepo,
		EnrollmentRepo: enrollmentRepo,
		ProgressRepo:   progressRepo,
	}
}

// BuildSnapshot 纯计算：课程结构 + 报名 + 最新进度 → 快照。
// 完成度只数必修目标，向下取整；没有必修目标时是 0 而不是除零。
func BuildSnapshot(
	course *model.Course,
	enrollment *model.Enrollment,
	latest map[model.TargetRef]model.ProgressLatest,
) *model.ProgressSnapshot {
	mandatory := MandatoryTargets(course)

	done := 0
	for _, ref := range mandatory {
		if TargetComplete(latest, ref) {
			done++
		}
	}

	completed := make([]model.TargetRef, 0, len(latest))
	for ref, row := range latest {
		if row.Outcome.Counts() {
			completed = append(completed, ref)
		}
	}

	percent := 0
	if len(mandatory) > 0 {
		percent = done * 100 / len(mandatory)
	}

	return &model.ProgressSnapshot{
		EnrollmentID:       enrollment.ID,
		CourseID:           course.ID,
		PercentComplete:    percent,
		MandatoryTotal:     len(mandatory),
		MandatoryCompleted: done,
		CompletedTargets:   completed,
		CertificateEligible: percent == 100 &&
			course.CertificateAvailable &&
			enrollment.Status == model.EnrollmentCompleted,
	}
}

func (s *AggregatorService) Snapshot(enrollmentID uint) (*model.ProgressSnapshot, error) {
	enrollment, err := s.EnrollmentRepo.FindByID(enrollmentID)
	if err != nil {
		return nil, err
	}

	course, err := s.CatalogRepo.FindCourseStructure(enrollment.CourseID)
	if err != nil {
		return nil, err
	}

	latest, err := s.ProgressRepo.LatestByEnrollment(enrollmentID)
	if err != nil {
		return nil, err
	}

	return BuildSnapshot(course, enrollment, latest), nil
}

func (s *AggregatorService) PercentComplete(enrollmentID uint) (int, error) {
	snapshot, err := s.Snapshot(enrollmentID)
	if err != nil {
		return 0, err
	}
	return snapshot.PercentComplete, nil
}

func (s *AggregatorService) IsCertificateEligible(enrollmentID uint) (bool, error) {
	snapshot, err := s.Snapshot(enrollmentID)
	if err != nil {
		return false, err
	}
	return snapshot.CertificateEligible, nil
}

// Accessible 计算 userID 当前在课程内可访问的内容集合。
// userID 为 0 或没有未退出报名时按游客处理，只返回试看内容。
func (s *AggregatorService) Accessible(userID, courseID uint) (*model.AccessibleContentLists, error) {
	course, err := s.CatalogRepo.FindCourseStructure(courseID)
	if err != nil {
		return nil, err
	}

	var enrollment *model.Enrollment
	latest := map[model.TargetRef]model.ProgressLatest{}
	if userID != 0 {
		enrollment, err = s.EnrollmentRepo.FindNonWithdrawn(userID, courseID)
		if err != nil && !errors.Is(err, util.ErrEnrollmentNotFound) {
			return nil, err
		}
		if enrollment != nil {
			latest, err = s.ProgressRepo.LatestByEnrollment(enrollment.ID)
			if err != nil {
				return nil, err
			}
		}
	}

	content, err := AccessibleContent(course, enrollment, latest, time.Now())
	if err != nil {
		return nil, err
	}
	lists := content.Lists()
	return &lists, nil
}

// ModuleStats 每个 published 模块的课时数、触达报名数、完成率
func (s *AggregatorService) ModuleStats(courseID uint) ([]model.ModuleStats, error) {
	course, err := s.CatalogRepo.FindCourseStructure(courseID)
	if err != nil {
		return nil, err
	}

	enrollments, err := s.EnrollmentRepo.FindNonWithdrawnByCourse(courseID)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(enrollments))
	for _, e := range enrollments {
		ids = append(ids, e.ID)
	}

	rows, err := s.ProgressRepo.LatestByEnrollments(ids)
	if err != nil {
		return nil, err
	}

	// enrollment -> target -> latest
	perEnrollment := make(map[uint]map[model.TargetRef]model.ProgressLatest, len(ids))
	for _, row := range rows {
		m, ok := perEnrollment[row.EnrollmentID]
		if !ok {
			m = make(map[model.TargetRef]model.ProgressLatest)
			perEnrollment[row.EnrollmentID] = m
		}
		m[row.Ref()] = row
	}

	var stats []model.ModuleStats
	for i := range course.Modules {
		m := &course.Modules[i]
		if m.Status != model.ModulePublished {
			continue
		}

		moduleRefs := make(map[model.TargetRef]bool)
		for j := range m.Lessons {
			for _, ref := range lessonTargets(&m.Lessons[j], false) {
				moduleRefs[ref] = true
			}
		}

		touched := 0
		completedCount := 0
		for _, id := range ids {
			latest := perEnrollment[id]
			hit := false
			for ref := range latest {
				if moduleRefs[ref] {
					hit = true
					break
				}
			}
			if hit {
				touched++
			}
			if ModuleMandatoryComplete(m, latest) {
				completedCount++
			}
		}

		rate := 0.0
		if len(enrollments) > 0 {
			rate = float64(completedCount) / float64(len(enrollments))
		}

		stats = append(stats, model.ModuleStats{
			ModuleID:           m.ID,
			Title:              m.Title,
			Order:              m.Order,
			TotalLessons:       len(m.Lessons),
			EnrollmentsTouched: touched,
			CompletionRate:     rate,
		})
	}

	return stats, nil
}
