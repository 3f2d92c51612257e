package model

type CourseStatus string

const (
	CourseDraft     CourseStatus = "draft"
	CoursePublished CourseStatus = "published"
	CourseArchived  CourseStatus = "archived"
)

// Course 课程。EnrolledCount 是座位计数器，只允许通过条件更新原子增减，
// 防止并发报名时超出 MaxStudents。
// swagger:model Course
type Course struct {
	BaseModel
	Title        string       `gorm:"size:255;not null" json:"title"`
	Description  string       `gorm:"type:text" json:"description"`
	CoverURL     string       `gorm:"size:255" json:"coverUrl"`
	InstructorID uint         `gorm:"index" json:"instructorId"`
	Status       CourseStatus `gorm:"size:20;default:'draft'" json:"status"`

	// 0 表示不限制人数
	MaxStudents   int `gorm:"default:0" json:"maxStudents"`
	EnrolledCount int `gorm:"default:0" json:"enrolledCount"`

	CertificateAvailable bool `gorm:"default:false" json:"certificateAvailable"`
	// 顺序解锁策略：开启后同一模块内课时必须按 order 顺序完成
	SequentialLessons bool `gorm:"default:false" json:"sequentialLessons"`
	// 开启后报名进入 pending，需讲师审批转为 active
	RequiresApproval bool `gorm:"default:false" json:"requiresApproval"`

	Modules []CourseModule `gorm:"foreignKey:CourseID" json:"modules,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}
