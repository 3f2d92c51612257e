package model

import "time"

type EnrollmentStatus string

const (
	EnrollmentPending   EnrollmentStatus = "pending"
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentWithdrawn EnrollmentStatus = "withdrawn"
)

// Enrollment 报名记录。同一 (UserID, CourseID) 最多存在一条非 withdrawn 记录。
// Version 用于状态变更的乐观锁：并发修改同一条报名时只有一方成功。
// swagger:model Enrollment
type Enrollment struct {
	BaseModel
	CourseID uint             `gorm:"index:idx_enrollment_course;not null" json:"courseId"`
	UserID   uint             `gorm:"index:idx_enrollment_user;not null" json:"userId"`
	Status   EnrollmentStatus `gorm:"size:20;default:'active'" json:"status"`

	EnrollmentDate         time.Time  `json:"enrollmentDate"`
	ExpectedCompletionDate *time.Time `json:"expectedCompletionDate,omitempty"`
	CompletionDate         *time.Time `json:"completionDate,omitempty"`

	Version int `gorm:"default:0" json:"-"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}

// IsTerminal 完成或退出后的报名不再接受状态变更以外的写入
func (e *Enrollment) IsTerminal() bool {
	return e.Status == EnrollmentCompleted || e.Status == EnrollmentWithdrawn
}
