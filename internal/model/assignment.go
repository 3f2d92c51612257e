package model

// Assignment 课时作业。
// swagger:model Assignment
type Assignment struct {
	BaseModel
	LessonID    uint   `gorm:"index;not null" json:"lessonId"`
	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	// 及格分数线（百分比 0-100）
	PassThreshold int  `gorm:"default:60" json:"passThreshold"`
	IsOptional    bool `gorm:"default:false" json:"isOptional"`
}

func (Assignment) TableName() string {
	return "assignments"
}
