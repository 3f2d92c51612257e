package model

import "time"

type TargetType string

const (
	TargetLesson     TargetType = "lesson"
	TargetQuiz       TargetType = "quiz"
	TargetAssignment TargetType = "assignment"
)

type ProgressOutcome string

const (
	OutcomeCompleted ProgressOutcome = "completed"
	OutcomePassed    ProgressOutcome = "passed"
	OutcomeFailed    ProgressOutcome = "failed"
)

// Counts 判断该结果是否算作完成
func (o ProgressOutcome) Counts() bool {
	return o == OutcomeCompleted || o == OutcomePassed
}

// TargetRef 标识一条可完成内容（课时/测验/作业）
type TargetRef struct {
	Type TargetType `json:"type"`
	ID   uint       `json:"id"`
}

// ProgressEvent 进度台账条目。只追加，从不更新或删除；
// 对同一 target 的更正通过追加新事件完成，最新事件为准。
// swagger:model ProgressEvent
type ProgressEvent struct {
	ID           uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	EnrollmentID uint            `gorm:"index:idx_event_enrollment;not null" json:"enrollmentId"`
	TargetType   TargetType      `gorm:"size:20;not null" json:"targetType"`
	TargetID     uint            `gorm:"not null" json:"targetId"`
	Outcome      ProgressOutcome `gorm:"size:20;not null" json:"outcome"`
	Score        *int            `json:"score,omitempty"`
	RecordedAt   time.Time       `gorm:"index" json:"recordedAt"`
}

func (ProgressEvent) TableName() string {
	return "progress_events"
}

func (e *ProgressEvent) Ref() TargetRef {
	return TargetRef{Type: e.TargetType, ID: e.TargetID}
}

// ProgressLatest 每个 (enrollment, target) 的最新事件指针，
// 与事件追加同一事务内 upsert，唯一索引保证并发提交串行化。
type ProgressLatest struct {
	ID           uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	EnrollmentID uint            `gorm:"uniqueIndex:idx_latest_target;not null" json:"enrollmentId"`
	TargetType   TargetType      `gorm:"size:20;uniqueIndex:idx_latest_target;not null" json:"targetType"`
	TargetID     uint            `gorm:"uniqueIndex:idx_latest_target;not null" json:"targetId"`
	Outcome      ProgressOutcome `gorm:"size:20;not null" json:"outcome"`
	Score        *int            `json:"score,omitempty"`
	EventID      uint            `gorm:"not null" json:"eventId"`
	RecordedAt   time.Time       `json:"recordedAt"`
}

func (ProgressLatest) TableName() string {
	return "progress_latest"
}

func (l *ProgressLatest) Ref() TargetRef {
	return TargetRef{Type: l.TargetType, ID: l.TargetID}
}
