package model

import "time"

// Certificate 结业证书，报名转为 completed 时签发（课程开启证书时）。
// swagger:model Certificate
type Certificate struct {
	BaseModel
	EnrollmentID uint      `gorm:"uniqueIndex;not null" json:"enrollmentId"`
	Serial       string    `gorm:"size:36;uniqueIndex;not null" json:"serial"`
	IssuedAt     time.Time `json:"issuedAt"`
}

func (Certificate) TableName() string {
	return "certificates"
}
