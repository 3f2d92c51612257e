package model

import (
	"sort"
	"time"
)

// 报表/看板用的派生类型，总是由进度台账现算，不落库。

// ProgressSnapshot 单条报名的进度快照
type ProgressSnapshot struct {
	EnrollmentID        uint        `json:"enrollmentId"`
	CourseID            uint        `json:"courseId"`
	PercentComplete     int         `json:"percentComplete"`
	MandatoryTotal      int         `json:"mandatoryTotal"`
	MandatoryCompleted  int         `json:"mandatoryCompleted"`
	CompletedTargets    []TargetRef `json:"completedTargets"`
	CertificateEligible bool        `json:"certificateEligible"`
}

// ModuleStats 讲师端单模块统计
type ModuleStats struct {
	ModuleID           uint    `json:"moduleId"`
	Title              string  `json:"title"`
	Order              int     `json:"order"`
	TotalLessons       int     `json:"totalLessons"`
	EnrollmentsTouched int     `json:"enrollmentsTouched"`
	CompletionRate     float64 `json:"completionRate"`
}

// AccessibleContent 解锁评估结果，按内容类型分组的可访问 id 集合
type AccessibleContent struct {
	ModuleIDs     map[uint]bool `json:"-"`
	LessonIDs     map[uint]bool `json:"-"`
	QuizIDs       map[uint]bool `json:"-"`
	AssignmentIDs map[uint]bool `json:"-"`
}

func NewAccessibleContent() *AccessibleContent {
	return &AccessibleContent{
		ModuleIDs:     make(map[uint]bool),
		LessonIDs:     make(map[uint]bool),
		QuizIDs:       make(map[uint]bool),
		AssignmentIDs: make(map[uint]bool),
	}
}

// Lists 转为可序列化的列表形式（map 的 JSON 键类型不稳定，接口层用这个）
func (a *AccessibleContent) Lists() AccessibleContentLists {
	out := AccessibleContentLists{
		ModuleIDs:     make([]uint, 0, len(a.ModuleIDs)),
		LessonIDs:     make([]uint, 0, len(a.LessonIDs)),
		QuizIDs:       make([]uint, 0, len(a.QuizIDs)),
		AssignmentIDs: make([]uint, 0, len(a.AssignmentIDs)),
	}
	for id := range a.ModuleIDs {
		out.ModuleIDs = append(out.ModuleIDs, id)
	}
	for id := range a.LessonIDs {
		out.LessonIDs = append(out.LessonIDs, id)
	}
	for id := range a.QuizIDs {
		out.QuizIDs = append(out.QuizIDs, id)
	}
	for id := range a.AssignmentIDs {
		out.AssignmentIDs = append(out.AssignmentIDs, id)
	}
	for _, ids := range [][]uint{out.ModuleIDs, out.LessonIDs, out.QuizIDs, out.AssignmentIDs} {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	return out
}

type AccessibleContentLists struct {
	ModuleIDs     []uint `json:"moduleIds"`
	LessonIDs     []uint `json:"lessonIds"`
	QuizIDs       []uint `json:"quizIds"`
	AssignmentIDs []uint `json:"assignmentIds"`
}

// CompletionNotice 完成课程后推送给通知队列的载荷
type CompletionNotice struct {
	EnrollmentID      uint      `json:"enrollmentId"`
	CourseID          uint      `json:"courseId"`
	UserID            uint      `json:"userId"`
	CourseTitle       string    `json:"courseTitle"`
	UserName          string    `json:"userName"`
	UserEmail         string    `json:"userEmail"`
	CertificateSerial string    `json:"certificateSerial,omitempty"`
	CompletedAt       time.Time `json:"completedAt"`
}
