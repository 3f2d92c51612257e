package model

// Quiz 课时测验，按百分比设置及格线。
// swagger:model Quiz
type Quiz struct {
	BaseModel
	LessonID uint   `gorm:"index;not null" json:"lessonId"`
	Title    string `gorm:"size:255;not null" json:"title"`
	// 及格分数线（百分比 0-100）
	PassThreshold int  `gorm:"default:60" json:"passThreshold"`
	IsOptional    bool `gorm:"default:false" json:"isOptional"`
}

func (Quiz) TableName() string {
	return "quizzes"
}
