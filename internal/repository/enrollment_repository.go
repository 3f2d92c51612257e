package repository

import (
	"errors"
	"progression_backend/internal/model"
	"progression_backend/internal/util"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EnrollmentRepository struct {
	DB *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: db}
}

func (r *EnrollmentRepository) FindByID(id uint) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := r.DB.First(&enrollment, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrEnrollmentNotFound
	}
	return &enrollment, err
}

// FindNonWithdrawn 查找用户在课程上未退出的报名（唯一性约束：最多一条）
func (r *EnrollmentRepository) FindNonWithdrawn(userID, courseID uint) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := r.DB.
		Where("user_id = ? AND course_id = ? AND status <> ?", userID, courseID, model.EnrollmentWithdrawn).
		First(&enrollment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrEnrollmentNotFound
	}
	return &enrollment, err
}

func (r *EnrollmentRepository) FindByUser(userID uint) ([]model.Enrollment, error) {
	var enrollments []model.Enrollment
	err := r.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&enrollments).Error
	return enrollments, err
}

func (r *EnrollmentRepository) FindByCourse(courseID uint, status model.EnrollmentStatus) ([]model.Enrollment, error) {
	var enrollments []model.Enrollment
	query := r.DB.Where("course_id = ?", courseID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Order("created_at ASC").Find(&enrollments).Error
	return enrollments, err
}

func (r *EnrollmentRepository) FindNonWithdrawnByCourse(courseID uint) ([]model.Enrollment, error) {
	var enrollments []model.Enrollment
	err := r.DB.
		Where("course_id = ? AND status <> ?", courseID, model.EnrollmentWithdrawn).
		Find(&enrollments).Error
	return enrollments, err
}

func (r *EnrollmentRepository) CountNonWithdrawn(courseID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Enrollment{}).
		Where("course_id = ? AND status <> ?", courseID, model.EnrollmentWithdrawn).
		Count(&count).Error
	return count, err
}

// CreateWithSeat 事务内完成：座位占用 + 重复报名检查 + 记录创建。
// 先做课程行的条件更新（enrolled_count < max_students 才自增），
// MySQL 的行锁把同一课程的并发报名串行化；重复检查放在拿锁之后
// 用加锁读执行，避免 REPEATABLE READ 下两个事务的快照读互相看不见。
// 检查失败时事务回滚，座位自增一并撤销。
func (r *EnrollmentRepository) CreateWithSeat(course *model.Course, enrollment *model.Enrollment) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		seat := tx.Model(&model.Course{}).Where("id = ?", course.ID)
		if course.MaxStudents > 0 {
			seat = seat.Where("enrolled_count < max_students")
		}
		res := seat.Update("enrolled_count", gorm.Expr("enrolled_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return util.ErrCourseFull
		}

		var existing model.Enrollment
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND course_id = ? AND status <> ?",
				enrollment.UserID, enrollment.CourseID, model.EnrollmentWithdrawn).
			First(&existing).Error
		if err == nil {
			return util.ErrDuplicateEnrollment
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		return tx.Create(enrollment).Error
	})
}

// UpdateStatusCAS 乐观锁状态更新：version 不匹配说明并发修改，返回 ErrConcurrentModification。
func (r *EnrollmentRepository) UpdateStatusCAS(enrollment *model.Enrollment, to model.EnrollmentStatus, completionDate *time.Time) error {
	updates := map[string]interface{}{
		"status":  to,
		"version": enrollment.Version + 1,
	}
	if completionDate != nil {
		updates["completion_date"] = completionDate
	}

	res := r.DB.Model(&model.Enrollment{}).
		Where("id = ? AND version = ?", enrollment.ID, enrollment.Version).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrConcurrentModification
	}

	enrollment.Status = to
	enrollment.Version++
	if completionDate != nil {
		enrollment.CompletionDate = completionDate
	}
	return nil
}

// ReleaseSeat 退出报名后释放座位
func (r *EnrollmentRepository) ReleaseSeat(courseID uint) error {
	return r.DB.Model(&model.Course{}).
		Where("id = ? AND enrolled_count > 0", courseID).
		Update("enrolled_count", gorm.Expr("enrolled_count - 1")).
		Error
}

type CertificateRepository struct {
	DB *gorm.DB
}

func NewCertificateRepository(db *gorm.DB) *CertificateRepository {
	return &CertificateRepository{DB: db}
}

func (r *CertificateRepository) Create(cert *model.Certificate) error {
	return r.DB.Create(cert).Error
}

func (r *CertificateRepository) FindByEnrollment(enrollmentID uint) (*model.Certificate, error) {
	var cert model.Certificate
	err := r.DB.Where("enrollment_id = ?", enrollmentID).First(&cert).Error
	return &cert, err
}
