package service

import (
	"errors"
	"progression_backend/internal/model"
	"progression_backend/internal/util"
	"testing"
	"time"
)

func (e *testEnv) activeEnrollmentFor(t *testing.T, courseID uint) *model.Enrollment {
	t.Helper()
	user := e.seedUser(t, "learner-"+t.Name()+"@example.com")
	enrollment, err := e.enrollment.Enroll(user.ID, courseID, EnrollRequest{})
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	return enrollment
}

func TestRecordCompletionIdempotent(t *testing.T) {
	env := newTestEnv(t)
	course, lessons := env.seedCourse(t, nil)
	enrollment := env.activeEnrollmentFor(t, course.ID)

	req := RecordCompletionRequest{
		TargetType: model.TargetLesson,
		TargetID:   lessons[0].ID,
		Outcome:    model.OutcomeCompleted,
	}

	first, err := env.ledger.RecordCompletion(enrollment.UserID, enrollment.ID, req)
	if err != nil {
		t.Fatalf("first record: %v", err)
	}
	if first.AlreadyRecorded {
		t.Fatal("first record must not be flagged as duplicate")
	}

	second, err := env.ledger.RecordCompletion(enrollment.UserID, enrollment.ID, req)
	if err != nil {
		t.Fatalf("duplicate record must not error: %v", err)
	}
	if !second.AlreadyRecorded {
		t.Fatal("duplicate record should be flagged alreadyRecorded")
	}
	if second.Event.ID != first.Event.ID {
		t.Fatalf("duplicate should return the original event, got %d want %d", second.Event.ID, first.Event.ID)
	}

	var count int64
	env.db.Model(&model.ProgressEvent{}).Where("enrollment_id = ?", enrollment.ID).Count(&count)
	if count != 1 {
		t.Fatalf("ledger should hold 1 event, got %d", count)
	}
}

// 不同结果追加新事件并顶替 latest（补考通过的场景）
func TestRecordCompletionSupersede(t *testing.T) {
	env := newTestEnv(t)
	course, lessons := env.seedCourse(t, nil)
	enrollment := env.activeEnrollmentFor(t, course.ID)

	quiz := &model.Quiz{LessonID: lessons[0].ID, Title: "Quiz", PassThreshold: 60}
	env.mustCreate(t, quiz)

	fail := 40
	pass := 85
	ref := model.TargetRef{Type: model.TargetQuiz, ID: quiz.ID}

	if _, err := env.ledger.RecordCompletion(0, enrollment.ID, RecordCompletionRequest{
		TargetType: model.TargetQuiz, TargetID: quiz.ID, Outcome: model.OutcomeFailed, Score: &fail,
	}); err != nil {
		t.Fatalf("record failure: %v", err)
	}

	latest, err := env.progRepo.LatestFor(enrollment.ID, ref)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Outcome.Counts() {
		t.Fatal("failed attempt must not count as complete")
	}

	if _, err := env.ledger.RecordCompletion(0, enrollment.ID, RecordCompletionRequest{
		TargetType: model.TargetQuiz, TargetID: quiz.ID, Outcome: model.OutcomePassed, Score: &pass,
	}); err != nil {
		t.Fatalf("record retake: %v", err)
	}

	latest, _ = env.progRepo.LatestFor(enrollment.ID, ref)
	if latest.Outcome != model.OutcomePassed || *latest.Score != pass {
		t.Fatalf("latest should be the passing attempt, got %s", latest.Outcome)
	}

	var count int64
	env.db.Model(&model.ProgressEvent{}).Where("enrollment_id = ?", enrollment.ID).Count(&count)
	if count != 2 {
		t.Fatalf("both attempts must stay in the ledger, got %d events", count)
	}
}

func TestRecordCompletionRequiresActiveEnrollment(t *testing.T) {
	env := newTestEnv(t)
	course, lessons := env.seedCourse(t, func(c *model.Course) { c.RequiresApproval = true })
	user := env.seedUser(t, "pending@example.com")

	enrollment, err := env.enrollment.Enroll(user.ID, course.ID, EnrollRequest{})
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if enrollment.Status != model.EnrollmentPending {
		t.Fatalf("approval course should start pending, got %s", enrollment.Status)
	}

	_, err = env.ledger.RecordCompletion(user.ID, enrollment.ID, RecordCompletionRequest{
		TargetType: model.TargetLesson, TargetID: lessons[0].ID, Outcome: model.OutcomeCompleted,
	})
	if !errors.Is(err, util.ErrEnrollmentNotActive) {
		t.Fatalf("want ErrEnrollmentNotActive, got %v", err)
	}
}

// 目标必须属于报名的课程
func TestRecordCompletionForeignTarget(t *testing.T) {
	env := newTestEnv(t)
	course, _ := env.seedCourse(t, nil)
	_, otherLessons := env.seedCourse(t, func(c *model.Course) { c.Title = "Other" })
	enrollment := env.activeEnrollmentFor(t, course.ID)

	_, err := env.ledger.RecordCompletion(0, enrollment.ID, RecordCompletionRequest{
		TargetType: model.TargetLesson, TargetID: otherLessons[0].ID, Outcome: model.OutcomeCompleted,
	})
	if !errors.Is(err, util.ErrTargetNotFound) {
		t.Fatalf("want ErrTargetNotFound, got %v", err)
	}
}

func TestRecordCompletionUnknownTarget(t *testing.T) {
	env := newTestEnv(t)
	course, _ := env.seedCourse(t, nil)
	enrollment := env.activeEnrollmentFor(t, course.ID)

	_, err := env.ledger.RecordCompletion(0, enrollment.ID, RecordCompletionRequest{
		TargetType: model.TargetLesson, TargetID: 9999, Outcome: model.OutcomeCompleted,
	})
	if !errors.Is(err, util.ErrTargetNotFound) {
		t.Fatalf("want ErrTargetNotFound, got %v", err)
	}
}

func TestRecordCompletionOwnership(t *testing.T) {
	env := newTestEnv(t)
	course, lessons := env.seedCourse(t, nil)
	enrollment := env.activeEnrollmentFor(t, course.ID)
	stranger := env.seedUser(t, "stranger@example.com")

	_, err := env.ledger.RecordCompletion(stranger.ID, enrollment.ID, RecordCompletionRequest{
		TargetType: model.TargetLesson, TargetID: lessons[0].ID, Outcome: model.OutcomeCompleted,
	})
	if !errors.Is(err, util.ErrPermissionDenied) {
		t.Fatalf("want ErrPermissionDenied, got %v", err)
	}
}

func TestHistoryChronologicalOrder(t *testing.T) {
	env := newTestEnv(t)
	course, lessons := env.seedCourse(t, nil)
	enrollment := env.activeEnrollmentFor(t, course.ID)

	env.recordLesson(t, enrollment.ID, lessons[0].ID)
	time.Sleep(5 * time.Millisecond)
	env.recordLesson(t, enrollment.ID, lessons[1].ID)

	events, total, err := env.ledger.History(0, enrollment.ID, 1, 50)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if total != 2 || len(events) != 2 {
		t.Fatalf("want 2 events, got total=%d len=%d", total, len(events))
	}
	if events[0].TargetID != lessons[0].ID || events[1].TargetID != lessons[1].ID {
		t.Fatal("history must be in recording order")
	}
	if events[1].RecordedAt.Before(events[0].RecordedAt) {
		t.Fatal("recordedAt must be non-decreasing")
	}
}
