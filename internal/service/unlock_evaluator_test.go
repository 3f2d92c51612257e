package service

import (
	"errors"
	"progression_backend/internal/model"
	"progression_backend/internal/util"
	"testing"
	"time"
)

func lessonRef(id uint) model.TargetRef {
	return model.TargetRef{Type: model.TargetLesson, ID: id}
}

func doneMap(lessonIDs ...uint) map[model.TargetRef]model.ProgressLatest {
	m := make(map[model.TargetRef]model.ProgressLatest)
	for _, id := range lessonIDs {
		m[lessonRef(id)] = model.ProgressLatest{
			TargetType: model.TargetLesson,
			TargetID:   id,
			Outcome:    model.OutcomeCompleted,
		}
	}
	return m
}

func lesson(id uint, order int) model.Lesson {
	l := model.Lesson{Order: order}
	l.ID = id
	return l
}

func module(id uint, order int, lessons ...model.Lesson) model.CourseModule {
	m := model.CourseModule{Order: order, Status: model.ModulePublished, Lessons: lessons}
	m.ID = id
	return m
}

func course(modules ...model.CourseModule) *model.Course {
	c := &model.Course{Status: model.CoursePublished, Modules: modules}
	c.ID = 1
	return c
}

func activeEnrollment() *model.Enrollment {
	e := &model.Enrollment{Status: model.EnrollmentActive}
	e.ID = 1
	return e
}

func TestValidateStructureDuplicateModuleOrder(t *testing.T) {
	c := course(module(1, 1), module(2, 1))
	if err := ValidateStructure(c); !errors.Is(err, util.ErrInvalidCourseStructure) {
		t.Fatalf("want ErrInvalidCourseStructure, got %v", err)
	}
}

func TestValidateStructureDuplicateLessonOrder(t *testing.T) {
	c := course(module(1, 1, lesson(10, 1), lesson(11, 1)))
	if err := ValidateStructure(c); !errors.Is(err, util.ErrInvalidCourseStructure) {
		t.Fatalf("want ErrInvalidCourseStructure, got %v", err)
	}
}

func TestValidateStructureNonPositiveOrder(t *testing.T) {
	c := course(module(1, 0))
	if err := ValidateStructure(c); !errors.Is(err, util.ErrInvalidCourseStructure) {
		t.Fatalf("want ErrInvalidCourseStructure, got %v", err)
	}
}

func TestAccessibleContentRejectsCorruptStructure(t *testing.T) {
	c := course(module(1, 2), module(2, 2))
	if _, err := AccessibleContent(c, activeEnrollment(), nil, time.Now()); !errors.Is(err, util.ErrInvalidCourseStructure) {
		t.Fatalf("want ErrInvalidCourseStructure, got %v", err)
	}
}

// 第二个模块在第一个模块的必修内容完成前不可访问
func TestAccessibleContentModuleGating(t *testing.T) {
	c := course(
		module(1, 1, lesson(10, 1)),
		module(2, 2, lesson(20, 1)),
	)

	out, err := AccessibleContent(c, activeEnrollment(), nil, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.ModuleIDs[1] {
		t.Fatal("first module should be accessible")
	}
	if out.ModuleIDs[2] || out.LessonIDs[20] {
		t.Fatal("second module should be gated until first is complete")
	}

	out, err = AccessibleContent(c, activeEnrollment(), doneMap(10), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.ModuleIDs[2] || !out.LessonIDs[20] {
		t.Fatal("second module should unlock after first is complete")
	}
}

// 选修课时不阻塞后续模块解锁
func TestAccessibleContentOptionalDoesNotBlock(t *testing.T) {
	optional := lesson(11, 2)
	optional.IsOptional = true
	c := course(
		module(1, 1, lesson(10, 1), optional),
		module(2, 2, lesson(20, 1)),
	)

	out, err := AccessibleContent(c, activeEnrollment(), doneMap(10), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.ModuleIDs[2] {
		t.Fatal("optional lesson must not block module unlock")
	}
}

func TestAccessibleContentSequentialLessons(t *testing.T) {
	c := course(module(1, 1, lesson(10, 1), lesson(11, 2)))
	c.SequentialLessons = true

	out, err := AccessibleContent(c, activeEnrollment(), nil, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.LessonIDs[10] {
		t.Fatal("first lesson should be accessible")
	}
	if out.LessonIDs[11] {
		t.Fatal("second lesson should wait for the first")
	}

	out, _ = AccessibleContent(c, activeEnrollment(), doneMap(10), time.Now())
	if !out.LessonIDs[11] {
		t.Fatal("second lesson should unlock after the first")
	}
}

// 游客与 pending 报名只能访问试看内容
func TestAccessibleContentGuestPreviewOnly(t *testing.T) {
	preview := lesson(11, 2)
	preview.IsFreePreview = true
	c := course(module(1, 1, lesson(10, 1), preview))

	out, err := AccessibleContent(c, nil, nil, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.LessonIDs[10] {
		t.Fatal("guest must not access regular lessons")
	}
	if !out.LessonIDs[11] || !out.ModuleIDs[1] {
		t.Fatal("free preview lesson and its module should be visible to guests")
	}

	pending := activeEnrollment()
	pending.Status = model.EnrollmentPending
	out, _ = AccessibleContent(c, pending, nil, time.Now())
	if out.LessonIDs[10] {
		t.Fatal("pending enrollment must not access regular lessons")
	}
}

func TestAccessibleContentManualLock(t *testing.T) {
	locked := module(1, 1, lesson(10, 1))
	locked.IsLocked = true
	c := course(locked)

	out, err := AccessibleContent(c, activeEnrollment(), nil, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ModuleIDs[1] || out.LessonIDs[10] {
		t.Fatal("manually locked module must not be accessible")
	}
}

func TestAccessibleContentUnlockDate(t *testing.T) {
	future := time.Now().Add(24 * time.Hour)
	timed := module(1, 1, lesson(10, 1))
	timed.UnlockDate = &future
	c := course(timed)

	out, _ := AccessibleContent(c, activeEnrollment(), nil, time.Now())
	if out.LessonIDs[10] {
		t.Fatal("module must stay locked before unlock date")
	}

	out, _ = AccessibleContent(c, activeEnrollment(), nil, future.Add(time.Minute))
	if !out.LessonIDs[10] {
		t.Fatal("module should open after unlock date")
	}
}

// draft 模块既不可访问也不阻塞后续模块
func TestAccessibleContentSkipsUnpublishedModules(t *testing.T) {
	draft := module(1, 1, lesson(10, 1))
	draft.Status = model.ModuleDraft
	c := course(draft, module(2, 2, lesson(20, 1)))

	out, err := AccessibleContent(c, activeEnrollment(), nil, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ModuleIDs[1] || out.LessonIDs[10] {
		t.Fatal("draft module must not be accessible")
	}
	if !out.ModuleIDs[2] {
		t.Fatal("draft module must not gate later modules")
	}
}
