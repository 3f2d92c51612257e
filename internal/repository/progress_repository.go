package repository

import (
	"progression_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProgressRepository 进度台账存取。事件表只追加；latest 表按
// (enrollment_id, target_type, target_id) 唯一索引 upsert，
// 并发提交同一 target 时由索引串行化，"最新事件为准"因此是确定的。
type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

// AppendWithLatest 同一事务内追加事件并刷新 latest 指针
func (r *ProgressRepository) AppendWithLatest(event *model.ProgressEvent) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(event).Error; err != nil {
			return err
		}

		latest := model.ProgressLatest{
			EnrollmentID: event.EnrollmentID,
			TargetType:   event.TargetType,
			TargetID:     event.TargetID,
			Outcome:      event.Outcome,
			Score:        event.Score,
			EventID:      event.ID,
			RecordedAt:   event.RecordedAt,
		}

		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "enrollment_id"},
				{Name: "target_type"},
				{Name: "target_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"outcome", "score", "event_id", "recorded_at"}),
		}).Create(&latest).Error
	})
}

func (r *ProgressRepository) LatestFor(enrollmentID uint, ref model.TargetRef) (*model.ProgressLatest, error) {
	var latest model.ProgressLatest
	err := r.DB.
		Where("enrollment_id = ? AND target_type = ? AND target_id = ?", enrollmentID, ref.Type, ref.ID).
		First(&latest).Error
	if err != nil {
		return nil, err
	}
	return &latest, nil
}

// LatestByEnrollment 该报名的最新进度视图，target -> 最新事件
func (r *ProgressRepository) LatestByEnrollment(enrollmentID uint) (map[model.TargetRef]model.ProgressLatest, error) {
	var rows []model.ProgressLatest
	if err := r.DB.Where("enrollment_id = ?", enrollmentID).Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make(map[model.TargetRef]model.ProgressLatest, len(rows))
	for _, row := range rows {
		out[row.Ref()] = row
	}
	return out, nil
}

// LatestByEnrollments 多条报名的最新进度，讲师端统计用
func (r *ProgressRepository) LatestByEnrollments(enrollmentIDs []uint) ([]model.ProgressLatest, error) {
	if len(enrollmentIDs) == 0 {
		return nil, nil
	}
	var rows []model.ProgressLatest
	err := r.DB.Where("enrollment_id IN ?", enrollmentIDs).Find(&rows).Error
	return rows, err
}

// History 按时间升序返回台账历史（同一时刻按事件 id 升序，即追加顺序）
func (r *ProgressRepository) History(enrollmentID uint, offset, limit int) ([]model.ProgressEvent, int64, error) {
	var events []model.ProgressEvent
	var total int64

	query := r.DB.Model(&model.ProgressEvent{}).Where("enrollment_id = ?", enrollmentID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("recorded_at ASC, id ASC").
		Offset(offset).Limit(limit).
		Find(&events).Error
	return events, total, err
}

// HistoryScan 按批次遍历全部历史，避免一次性加载超长台账。
// FindInBatches 按主键分批，事件 id 即追加顺序。
func (r *ProgressRepository) HistoryScan(enrollmentID uint, batchSize int, fn func([]model.ProgressEvent) error) error {
	var batch []model.ProgressEvent
	return r.DB.
		Where("enrollment_id = ?", enrollmentID).
		FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
			return fn(batch)
		}).Error
}
