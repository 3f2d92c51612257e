package model

import "time"

type ModuleStatus string

const (
	ModuleDraft     ModuleStatus = "draft"
	ModulePublished ModuleStatus = "published"
	ModuleArchived  ModuleStatus = "archived"
)

// CourseModule 课程模块。Order 在同一课程内必须唯一且为正整数，
// 写入时由 CatalogService 校验，解锁评估时再次校验。
// 模块被报名引用后不允许物理删除，只能归档。
// swagger:model CourseModule
type CourseModule struct {
	BaseModel
	CourseID    uint         `gorm:"index;not null" json:"courseId"`
	Title       string       `gorm:"size:255;not null" json:"title"`
	Description string       `gorm:"type:text" json:"description"`
	Order       int          `gorm:"not null" json:"order"`
	Status      ModuleStatus `gorm:"size:20;default:'draft'" json:"status"`

	// 手动锁定开关，讲师可直接关闭一个模块
	IsLocked bool `gorm:"default:false" json:"isLocked"`
	// 定时解锁，为空表示不受时间限制
	UnlockDate *time.Time `json:"unlockDate,omitempty"`
	// 到达 UnlockDate 时由后台任务自动发布（针对 draft 模块）
	PublishAtUnlock bool `gorm:"default:false" json:"publishAtUnlock"`

	Lessons []Lesson `gorm:"foreignKey:ModuleID" json:"lessons,omitempty"`
}

func (CourseModule) TableName() string {
	return "course_modules"
}
