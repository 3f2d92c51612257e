package service

import (
	"errors"
	"progression_backend/internal/model"
	"progression_backend/internal/util"
	"sync"
	"testing"
)

func TestEnrollRequiresPublishedCourse(t *testing.T) {
	env := newTestEnv(t)
	course, _ := env.seedCourse(t, func(c *model.Course) { c.Status = model.CourseDraft })
	user := env.seedUser(t, "draft@example.com")

	_, err := env.enrollment.Enroll(user.ID, course.ID, EnrollRequest{})
	if !errors.Is(err, util.ErrCourseNotPublished) {
		t.Fatalf("want ErrCourseNotPublished, got %v", err)
	}
}

func TestEnrollRejectsDuplicate(t *testing.T) {
	env := newTestEnv(t)
	course, _ := env.seedCourse(t, nil)
	user := env.seedUser(t, "dup@example.com")

	if _, err := env.enrollment.Enroll(user.ID, course.ID, EnrollRequest{}); err != nil {
		t.Fatalf("first enroll: %v", err)
	}
	_, err := env.enrollment.Enroll(user.ID, course.ID, EnrollRequest{})
	if !errors.Is(err, util.ErrDuplicateEnrollment) {
		t.Fatalf("want ErrDuplicateEnrollment, got %v", err)
	}
}

func TestEnrollSeatLimit(t *testing.T) {
	env := newTestEnv(t)
	course, _ := env.seedCourse(t, func(c *model.Course) { c.MaxStudents = 1 })
	first := env.seedUser(t, "first@example.com")
	second := env.seedUser(t, "second@example.com")

	if _, err := env.enrollment.Enroll(first.ID, course.ID, EnrollRequest{}); err != nil {
		t.Fatalf("first enroll: %v", err)
	}
	_, err := env.enrollment.Enroll(second.ID, course.ID, EnrollRequest{})
	if !errors.Is(err, util.ErrCourseFull) {
		t.Fatalf("want ErrCourseFull, got %v", err)
	}
}

// 两人并发抢最后一个座位：恰好一人成功，另一人 ErrCourseFull，不超卖
func TestEnrollConcurrentSeatLimit(t *testing.T) {
	env := newFileTestEnv(t)
	course, _ := env.seedCourse(t, func(c *model.Course) { c.MaxStudents = 1 })
	first := env.seedUser(t, "race1@example.com")
	second := env.seedUser(t, "race2@example.com")

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, userID := range []uint{first.ID, second.ID} {
		wg.Add(1)
		go func(i int, userID uint) {
			defer wg.Done()
			_, errs[i] = env.enrollment.Enroll(userID, course.ID, EnrollRequest{})
		}(i, userID)
	}
	wg.Wait()

	var succeeded, full int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, util.ErrCourseFull):
			full++
		default:
			t.Fatalf("unexpected enroll error: %v", err)
		}
	}
	if succeeded != 1 || full != 1 {
		t.Fatalf("want 1 success + 1 ErrCourseFull, got %v", errs)
	}

	var count int64
	env.db.Model(&model.Enrollment{}).Where("course_id = ?", course.ID).Count(&count)
	if count != 1 {
		t.Fatalf("want 1 enrollment, got %d", count)
	}
	var seat model.Course
	env.db.First(&seat, course.ID)
	if seat.EnrolledCount != 1 {
		t.Fatalf("want enrolledCount=1, got %d", seat.EnrolledCount)
	}
}

// 同一用户并发点两次报名：恰好一条未退出报名，失败方占到的座位随事务回滚
func TestEnrollConcurrentDuplicate(t *testing.T) {
	env := newFileTestEnv(t)
	course, _ := env.seedCourse(t, nil)
	user := env.seedUser(t, "doubleclick@example.com")

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.enrollment.Enroll(user.ID, course.ID, EnrollRequest{})
		}(i)
	}
	wg.Wait()

	var succeeded, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, util.ErrDuplicateEnrollment):
			dup++
		default:
			t.Fatalf("unexpected enroll error: %v", err)
		}
	}
	if succeeded != 1 || dup != 1 {
		t.Fatalf("want 1 success + 1 ErrDuplicateEnrollment, got %v", errs)
	}

	var count int64
	env.db.Model(&model.Enrollment{}).
		Where("user_id = ? AND course_id = ? AND status <> ?", user.ID, course.ID, model.EnrollmentWithdrawn).
		Count(&count)
	if count != 1 {
		t.Fatalf("want 1 non-withdrawn enrollment, got %d", count)
	}
	var seat model.Course
	env.db.First(&seat, course.ID)
	if seat.EnrolledCount != 1 {
		t.Fatalf("want enrolledCount=1 after rollback, got %d", seat.EnrolledCount)
	}
}

// 退出释放座位，之后允许重新报名
func TestWithdrawThenReenroll(t *testing.T) {
	env := newTestEnv(t)
	course, _ := env.seedCourse(t, func(c *model.Course) { c.MaxStudents = 1 })
	user := env.seedUser(t, "again@example.com")

	enrollment, err := env.enrollment.Enroll(user.ID, course.ID, EnrollRequest{})
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if _, err := env.enrollment.Withdraw(user.ID, enrollment.ID); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	var seat model.Course
	env.db.First(&seat, course.ID)
	if seat.EnrolledCount != 0 {
		t.Fatalf("seat should be released, enrolledCount=%d", seat.EnrolledCount)
	}

	if _, err := env.enrollment.Enroll(user.ID, course.ID, EnrollRequest{}); err != nil {
		t.Fatalf("re-enroll after withdraw: %v", err)
	}
}

func TestApprovalFlow(t *testing.T) {
	env := newTestEnv(t)
	course, _ := env.seedCourse(t, func(c *model.Course) { c.RequiresApproval = true })
	user := env.seedUser(t, "pending2@example.com")

	enrollment, err := env.enrollment.Enroll(user.ID, course.ID, EnrollRequest{})
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if enrollment.Status != model.EnrollmentPending {
		t.Fatalf("want pending, got %s", enrollment.Status)
	}

	approved, err := env.enrollment.Approve(enrollment.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != model.EnrollmentActive {
		t.Fatalf("want active, got %s", approved.Status)
	}
}

func TestCompleteRequiresFullProgress(t *testing.T) {
	env := newTestEnv(t)
	course, lessons := env.seedCourse(t, nil)
	user := env.seedUser(t, "half@example.com")
	enrollment, _ := env.enrollment.Enroll(user.ID, course.ID, EnrollRequest{})

	// 两个必修课时完成一个：50%
	env.recordLesson(t, enrollment.ID, lessons[0].ID)
	percent, err := env.aggregator.PercentComplete(enrollment.ID)
	if err != nil || percent != 50 {
		t.Fatalf("want 50%%, got %d (%v)", percent, err)
	}

	_, err = env.enrollment.Transition(enrollment.ID, model.EnrollmentCompleted)
	if !errors.Is(err, util.ErrIncompleteRequirements) {
		t.Fatalf("want ErrIncompleteRequirements, got %v", err)
	}

	env.recordLesson(t, enrollment.ID, lessons[1].ID)
	completed, err := env.enrollment.Transition(enrollment.ID, model.EnrollmentCompleted)
	if err != nil {
		t.Fatalf("complete at 100%%: %v", err)
	}
	if completed.Status != model.EnrollmentCompleted || completed.CompletionDate == nil {
		t.Fatal("completion must set status and completionDate")
	}
}

func TestCompletionIssuesCertificate(t *testing.T) {
	env := newTestEnv(t)
	course, lessons := env.seedCourse(t, func(c *model.Course) { c.CertificateAvailable = true })
	user := env.seedUser(t, "cert@example.com")
	enrollment, _ := env.enrollment.Enroll(user.ID, course.ID, EnrollRequest{})

	env.recordLesson(t, enrollment.ID, lessons[0].ID)
	env.recordLesson(t, enrollment.ID, lessons[1].ID)
	if _, err := env.enrollment.Transition(enrollment.ID, model.EnrollmentCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}

	cert, err := env.enrollment.Certificate(user.ID, enrollment.ID)
	if err != nil {
		t.Fatalf("certificate: %v", err)
	}
	if cert.Serial == "" {
		t.Fatal("certificate must carry a serial")
	}
}

func TestNoCertificateWhenDisabled(t *testing.T) {
	env := newTestEnv(t)
	course, lessons := env.seedCourse(t, nil)
	user := env.seedUser(t, "nocert@example.com")
	enrollment, _ := env.enrollment.Enroll(user.ID, course.ID, EnrollRequest{})

	env.recordLesson(t, enrollment.ID, lessons[0].ID)
	env.recordLesson(t, enrollment.ID, lessons[1].ID)
	if _, err := env.enrollment.Transition(enrollment.ID, model.EnrollmentCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if _, err := env.enrollment.Certificate(user.ID, enrollment.ID); !errors.Is(err, util.ErrCertificateNotFound) {
		t.Fatalf("want ErrCertificateNotFound, got %v", err)
	}
}

func TestInvalidTransitions(t *testing.T) {
	env := newTestEnv(t)
	course, lessons := env.seedCourse(t, nil)
	user := env.seedUser(t, "terminal@example.com")
	enrollment, _ := env.enrollment.Enroll(user.ID, course.ID, EnrollRequest{})

	env.recordLesson(t, enrollment.ID, lessons[0].ID)
	env.recordLesson(t, enrollment.ID, lessons[1].ID)
	if _, err := env.enrollment.Transition(enrollment.ID, model.EnrollmentCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// completed 是终态
	if _, err := env.enrollment.Transition(enrollment.ID, model.EnrollmentWithdrawn); !errors.Is(err, util.ErrInvalidTransition) {
		t.Fatalf("completed->withdrawn: want ErrInvalidTransition, got %v", err)
	}
	if _, err := env.enrollment.Transition(enrollment.ID, model.EnrollmentActive); !errors.Is(err, util.ErrInvalidTransition) {
		t.Fatalf("completed->active: want ErrInvalidTransition, got %v", err)
	}
}

// 乐观锁：基于过期版本的状态更新失败
func TestConcurrentStatusUpdate(t *testing.T) {
	env := newTestEnv(t)
	course, _ := env.seedCourse(t, nil)
	user := env.seedUser(t, "race@example.com")
	enrollment, _ := env.enrollment.Enroll(user.ID, course.ID, EnrollRequest{})

	stale := *enrollment
	if err := env.enrollRepo.UpdateStatusCAS(enrollment, model.EnrollmentWithdrawn, nil); err != nil {
		t.Fatalf("first update: %v", err)
	}

	err := env.enrollRepo.UpdateStatusCAS(&stale, model.EnrollmentWithdrawn, nil)
	if !errors.Is(err, util.ErrConcurrentModification) {
		t.Fatalf("want ErrConcurrentModification, got %v", err)
	}
}

func TestWithdrawOwnership(t *testing.T) {
	env := newTestEnv(t)
	course, _ := env.seedCourse(t, nil)
	owner := env.seedUser(t, "owner@example.com")
	other := env.seedUser(t, "other@example.com")
	enrollment, _ := env.enrollment.Enroll(owner.ID, course.ID, EnrollRequest{})

	if _, err := env.enrollment.Withdraw(other.ID, enrollment.ID); !errors.Is(err, util.ErrPermissionDenied) {
		t.Fatalf("want ErrPermissionDenied, got %v", err)
	}
}
