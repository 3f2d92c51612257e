package model

type LessonType string

const (
	LessonVideo      LessonType = "video"
	LessonAudio      LessonType = "audio"
	LessonText       LessonType = "text"
	LessonPractical  LessonType = "practical"
	LessonDiscussion LessonType = "discussion"
	LessonAssignment LessonType = "assignment"
)

// Lesson 课时。Order 在同一模块内唯一。IsFreePreview 的课时不需要报名即可访问，
// IsOptional 的课时不计入完成度。
// swagger:model Lesson
type Lesson struct {
	BaseModel
	ModuleID   uint       `gorm:"index;not null" json:"moduleId"`
	Title      string     `gorm:"size:255;not null" json:"title"`
	Type       LessonType `gorm:"size:20;default:'text'" json:"type"`
	Order      int        `gorm:"not null" json:"order"`
	ContentURL string     `gorm:"size:255" json:"contentUrl"`
	Content    string     `gorm:"type:text" json:"content"`
	// 视频/音频时长（秒），上传媒体时由 ffmpeg 探测写入
	DurationSeconds int  `gorm:"default:0" json:"durationSeconds"`
	IsFreePreview   bool `gorm:"default:false" json:"isFreePreview"`
	IsOptional      bool `gorm:"default:false" json:"isOptional"`

	Quizzes     []Quiz       `gorm:"foreignKey:LessonID" json:"quizzes,omitempty"`
	Assignments []Assignment `gorm:"foreignKey:LessonID" json:"assignments,omitempty"`
}

func (Lesson) TableName() string {
	return "lessons"
}
