package service

import (
	"progression_backend/internal/model"
	"testing"
)

// 完成度向下取整：3 个必修完成 1 个是 33 而不是 34
func TestPercentCompleteFloors(t *testing.T) {
	env := newTestEnv(t)
	course, lessons := env.seedCourse(t, nil)

	var module model.CourseModule
	env.db.First(&module, "course_id = ?", course.ID)
	extra := &model.Lesson{ModuleID: module.ID, Title: "Extra", Order: 2}
	env.mustCreate(t, extra)

	enrollment := env.activeEnrollmentFor(t, course.ID)
	env.recordLesson(t, enrollment.ID, lessons[0].ID)

	percent, err := env.aggregator.PercentComplete(enrollment.ID)
	if err != nil {
		t.Fatalf("percent: %v", err)
	}
	if percent != 33 {
		t.Fatalf("want 33, got %d", percent)
	}
}

// 没有必修目标时完成度是 0，不允许除零
func TestPercentCompleteEmptyCourse(t *testing.T) {
	env := newTestEnv(t)
	course := &model.Course{Title: "Empty", Status: model.CoursePublished}
	env.mustCreate(t, course)

	enrollment := env.activeEnrollmentFor(t, course.ID)
	percent, err := env.aggregator.PercentComplete(enrollment.ID)
	if err != nil {
		t.Fatalf("percent: %v", err)
	}
	if percent != 0 {
		t.Fatalf("want 0 for course without mandatory targets, got %d", percent)
	}
}

// 选修内容不计入完成度
func TestOptionalTargetsExcluded(t *testing.T) {
	env := newTestEnv(t)
	course, lessons := env.seedCourse(t, nil)

	var module model.CourseModule
	env.db.First(&module, "course_id = ?", course.ID)
	optional := &model.Lesson{ModuleID: module.ID, Title: "Optional", Order: 2, IsOptional: true}
	env.mustCreate(t, optional)

	enrollment := env.activeEnrollmentFor(t, course.ID)
	env.recordLesson(t, enrollment.ID, lessons[0].ID)
	env.recordLesson(t, enrollment.ID, lessons[1].ID)

	percent, err := env.aggregator.PercentComplete(enrollment.ID)
	if err != nil {
		t.Fatalf("percent: %v", err)
	}
	if percent != 100 {
		t.Fatalf("optional lesson must not count, want 100 got %d", percent)
	}
}

func TestCertificateEligibilityGating(t *testing.T) {
	env := newTestEnv(t)
	course, lessons := env.seedCourse(t, func(c *model.Course) { c.CertificateAvailable = true })
	enrollment := env.activeEnrollmentFor(t, course.ID)

	env.recordLesson(t, enrollment.ID, lessons[0].ID)
	env.recordLesson(t, enrollment.ID, lessons[1].ID)

	// 100% 但还没结课：不发证
	eligible, err := env.aggregator.IsCertificateEligible(enrollment.ID)
	if err != nil {
		t.Fatalf("eligible: %v", err)
	}
	if eligible {
		t.Fatal("certificate requires completed status, not just 100%")
	}

	if _, err := env.enrollment.Transition(enrollment.ID, model.EnrollmentCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}
	eligible, _ = env.aggregator.IsCertificateEligible(enrollment.ID)
	if !eligible {
		t.Fatal("completed enrollment at 100% with certificate enabled should be eligible")
	}
}

func TestSnapshotCountsLatestOnly(t *testing.T) {
	env := newTestEnv(t)
	course, lessons := env.seedCourse(t, nil)
	enrollment := env.activeEnrollmentFor(t, course.ID)

	quiz := &model.Quiz{LessonID: lessons[0].ID, Title: "Quiz", PassThreshold: 60}
	env.mustCreate(t, quiz)

	fail := 30
	if _, err := env.ledger.RecordCompletion(0, enrollment.ID, RecordCompletionRequest{
		TargetType: model.TargetQuiz, TargetID: quiz.ID, Outcome: model.OutcomeFailed, Score: &fail,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	snapshot, err := env.aggregator.Snapshot(enrollment.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snapshot.MandatoryCompleted != 0 {
		t.Fatalf("failed quiz must not count, got %d", snapshot.MandatoryCompleted)
	}
	// 两个课时 + 一个测验 = 3 个必修目标
	if snapshot.MandatoryTotal != 3 {
		t.Fatalf("want 3 mandatory targets, got %d", snapshot.MandatoryTotal)
	}

	pass := 90
	if _, err := env.ledger.RecordCompletion(0, enrollment.ID, RecordCompletionRequest{
		TargetType: model.TargetQuiz, TargetID: quiz.ID, Outcome: model.OutcomePassed, Score: &pass,
	}); err != nil {
		t.Fatalf("retake: %v", err)
	}

	snapshot, _ = env.aggregator.Snapshot(enrollment.ID)
	if snapshot.MandatoryCompleted != 1 {
		t.Fatalf("latest passing attempt should count once, got %d", snapshot.MandatoryCompleted)
	}
}

func TestModuleStats(t *testing.T) {
	env := newTestEnv(t)
	course, lessons := env.seedCourse(t, nil)

	e1 := env.activeEnrollmentFor(t, course.ID)
	second := env.seedUser(t, "stats-second@example.com")
	e2, err := env.enrollment.Enroll(second.ID, course.ID, EnrollRequest{})
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}

	// e1 完成模块1，e2 没有任何进度
	env.recordLesson(t, e1.ID, lessons[0].ID)
	_ = e2

	stats, err := env.aggregator.ModuleStats(course.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("want stats for 2 modules, got %d", len(stats))
	}

	first := stats[0]
	if first.TotalLessons != 1 || first.EnrollmentsTouched != 1 {
		t.Fatalf("module 1: lessons=%d touched=%d", first.TotalLessons, first.EnrollmentsTouched)
	}
	if first.CompletionRate != 0.5 {
		t.Fatalf("module 1 completion rate want 0.5, got %f", first.CompletionRate)
	}
	if stats[1].CompletionRate != 0 {
		t.Fatalf("module 2 completion rate want 0, got %f", stats[1].CompletionRate)
	}
}
