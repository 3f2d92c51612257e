package service

import (
	"fmt"
	"progression_backend/internal/model"
	"progression_backend/internal/util"
	"sort"
	"time"
)

// 解锁评估器：纯函数，吃完整课程结构快照 + 报名 + 最新进度视图，
// 吐可访问内容集合。无隐藏状态，可并发调用，可按 (报名, 课程版本) 缓存。
// 原则：所有解锁判断只在这里做，接口层不允许自行比较 isLocked/unlockDate。

// ValidateStructure 校验课程结构不变量：
// 模块 order 在课程内唯一且为正，课时 order 在模块内唯一且为正。
// 重复 order 属于目录数据损坏，宁可报错也不能悄悄选一个。
func ValidateStructure(course *model.Course) error {
	moduleOrders := make(map[int]uint, len(course.Modules))
	for _, m := range course.Modules {
		if m.Order <= 0 {
			return fmt.Errorf("%w: module %d has non-positive order %d", util.ErrInvalidCourseStructure, m.ID, m.Order)
		}
		if prev, ok := moduleOrders[m.Order]; ok {
			return fmt.Errorf("%w: modules %d and %d share order %d in course %d",
				util.ErrInvalidCourseStructure, prev, m.ID, m.Order, course.ID)
		}
		moduleOrders[m.Order] = m.ID

		lessonOrders := make(map[int]uint, len(m.Lessons))
		for _, l := range m.Lessons {
			if l.Order <= 0 {
				return fmt.Errorf("%w: lesson %d has non-positive order %d", util.ErrInvalidCourseStructure, l.ID, l.Order)
			}
			if prev, ok := lessonOrders[l.Order]; ok {
				return fmt.Errorf("%w: lessons %d and %d share order %d in module %d",
					util.ErrInvalidCourseStructure, prev, l.ID, l.Order, m.ID)
			}
			lessonOrders[l.Order] = l.ID
		}
	}
	return nil
}

// TargetComplete 最新事件视图下该内容是否算完成
func TargetComplete(latest map[model.TargetRef]model.ProgressLatest, ref model.TargetRef) bool {
	row, ok := latest[ref]
	return ok && row.Outcome.Counts()
}

// lessonTargets 一个课时自身及其挂载的测验/作业的必修目标
func lessonTargets(lesson *model.Lesson, mandatoryOnly bool) []model.TargetRef {
	var refs []model.TargetRef
	if !mandatoryOnly || !lesson.IsOptional {
		refs = append(refs, model.TargetRef{Type: model.TargetLesson, ID: lesson.ID})
	}
	for _, q := range lesson.Quizzes {
		if !mandatoryOnly || !q.IsOptional {
			refs = append(refs, model.TargetRef{Type: model.TargetQuiz, ID: q.ID})
		}
	}
	for _, a := range lesson.Assignments {
		if !mandatoryOnly || !a.IsOptional {
			refs = append(refs, model.TargetRef{Type: model.TargetAssignment, ID: a.ID})
		}
	}
	return refs
}

// MandatoryTargets 课程全部必修目标（仅 published 模块计入完成度）
func MandatoryTargets(course *model.Course) []model.TargetRef {
	var refs []model.TargetRef
	for i := range course.Modules {
		m := &course.Modules[i]
		if m.Status != model.ModulePublished {
			continue
		}
		for j := range m.Lessons {
			refs = append(refs, lessonTargets(&m.Lessons[j], true)...)
		}
	}
	return refs
}

// ModuleMandatoryComplete 单个模块的必修目标是否全部完成
func ModuleMandatoryComplete(module *model.CourseModule, latest map[model.TargetRef]model.ProgressLatest) bool {
	for i := range module.Lessons {
		for _, ref := range lessonTargets(&module.Lessons[i], true) {
			if !TargetComplete(latest, ref) {
				return false
			}
		}
	}
	return true
}

// enrollmentUnlocked 报名状态是否允许访问解锁内容。
// pending 报名和游客一样只能看试看内容；completed 保留访问权。
func enrollmentUnlocked(enrollment *model.Enrollment) bool {
	if enrollment == nil {
		return false
	}
	return enrollment.Status == model.EnrollmentActive || enrollment.Status == model.EnrollmentCompleted
}

// AccessibleContent 计算当前可访问的模块/课时/测验/作业集合。
//
// 模块规则（按 order 升序逐个评估）：
//  1. 含试看课时的模块对所有人可见（仅试看部分可进）；
//  2. 其余内容要求：报名已激活、模块未手动锁定、已过解锁时间、
//     且之前（order 更小）的 published 模块必修内容全部完成；
//  3. 最低 order 的模块没有"之前的模块"，天然是评估候选。
//
// 课时规则：试看课时永远可访问；其余课时要求模块可访问，
// 且在课程开启顺序解锁时，同模块内 order 更小的课时全部完成。
// 测验/作业跟随所属课时。
//
// enrollment 可以为 nil（未报名访客），此时只返回试看内容。
func AccessibleContent(
	course *model.Course,
	enrollment *model.Enrollment,
	latest map[model.TargetRef]model.ProgressLatest,
	now time.Time,
) (*model.AccessibleContent, error) {
	if err := ValidateStructure(course); err != nil {
		return nil, err
	}

	out := model.NewAccessibleContent()
	unlocked := enrollmentUnlocked(enrollment)
	priorComplete := true

	// 不信任入参顺序，自行按 order 升序评估
	moduleIdx := make([]int, 0, len(course.Modules))
	for i := range course.Modules {
		moduleIdx = append(moduleIdx, i)
	}
	sort.Slice(moduleIdx, func(a, b int) bool {
		return course.Modules[moduleIdx[a]].Order < course.Modules[moduleIdx[b]].Order
	})

	for _, i := range moduleIdx {
		m := &course.Modules[i]
		if m.Status != model.ModulePublished {
			continue
		}

		timeOpen := m.UnlockDate == nil || !m.UnlockDate.After(now)
		moduleAccessible := unlocked && !m.IsLocked && timeOpen && priorComplete

		hasPreview := false
		for j := range m.Lessons {
			if m.Lessons[j].IsFreePreview {
				hasPreview = true
				break
			}
		}

		if moduleAccessible || hasPreview {
			out.ModuleIDs[m.ID] = true
		}

		lessonIdx := make([]int, 0, len(m.Lessons))
		for j := range m.Lessons {
			lessonIdx = append(lessonIdx, j)
		}
		sort.Slice(lessonIdx, func(a, b int) bool {
			return m.Lessons[lessonIdx[a]].Order < m.Lessons[lessonIdx[b]].Order
		})

		lowerComplete := true
		for _, j := range lessonIdx {
			l := &m.Lessons[j]

			lessonAccessible := l.IsFreePreview ||
				(moduleAccessible && (!course.SequentialLessons || lowerComplete))

			if lessonAccessible {
				out.LessonIDs[l.ID] = true
				for _, q := range l.Quizzes {
					out.QuizIDs[q.ID] = true
				}
				for _, a := range l.Assignments {
					out.AssignmentIDs[a.ID] = true
				}
			}

			// 顺序解锁只看课时本身的完成情况（不含测验/作业），
			// 课时按 order 升序预加载，这里顺序累积即可
			if !TargetComplete(latest, model.TargetRef{Type: model.TargetLesson, ID: l.ID}) {
				lowerComplete = false
			}
		}

		if !ModuleMandatoryComplete(m, latest) {
			priorComplete = false
		}
	}

	return out, nil
}
