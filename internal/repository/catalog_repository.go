package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"progression_backend/internal/model"
	"progression_backend/internal/util"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// 结构快照缓存时间。写入口会主动失效，TTL 只兜底
const structureCacheTTL = 5 * time.Minute

// CatalogRepository 课程目录存取。进度引擎只读目录结构，写入口仅供讲师端使用。
// rdb 可以为 nil（测试环境），此时结构快照不走缓存。
type CatalogRepository struct {
	DB  *gorm.DB
	RDB *redis.Client
}

func NewCatalogRepository(db *gorm.DB, rdb *redis.Client) *CatalogRepository {
	return &CatalogRepository{DB: db, RDB: rdb}
}

func structureCacheKey(courseID uint) string {
	return fmt.Sprintf("course:structure:%d", courseID)
}

// invalidateStructure 目录写入后删除结构快照缓存
func (r *CatalogRepository) invalidateStructure(courseID uint) {
	if r.RDB == nil || courseID == 0 {
		return
	}
	r.RDB.Del(context.Background(), structureCacheKey(courseID))
}

func (r *CatalogRepository) CreateCourse(course *model.Course) error {
	return r.DB.Create(course).Error
}

func (r *CatalogRepository) SaveCourse(course *model.Course) error {
	if err := r.DB.Save(course).Error; err != nil {
		return err
	}
	r.invalidateStructure(course.ID)
	return nil
}

func (r *CatalogRepository) FindCourseByID(id uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.First(&course, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCourseNotFound
	}
	return &course, err
}

// FindCourseStructure 加载课程完整结构：模块、课时、测验、作业，
// 模块与课时按 order 升序。解锁评估和进度聚合都吃这份快照，
// 走 redis 缓存，目录写入时失效。
func (r *CatalogRepository) FindCourseStructure(id uint) (*model.Course, error) {
	if r.RDB != nil {
		if raw, err := r.RDB.Get(context.Background(), structureCacheKey(id)).Bytes(); err == nil {
			var cached model.Course
			if json.Unmarshal(raw, &cached) == nil {
				return &cached, nil
			}
		}
	}

	var course model.Course
	err := r.DB.
		Preload("Modules", func(db *gorm.DB) *gorm.DB {
			return db.Order("course_modules.`order` ASC")
		}).
		Preload("Modules.Lessons", func(db *gorm.DB) *gorm.DB {
			return db.Order("lessons.`order` ASC")
		}).
		Preload("Modules.Lessons.Quizzes").
		Preload("Modules.Lessons.Assignments").
		First(&course, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCourseNotFound
	}
	if err == nil && r.RDB != nil {
		if raw, mErr := json.Marshal(&course); mErr == nil {
			r.RDB.Set(context.Background(), structureCacheKey(id), raw, structureCacheTTL)
		}
	}
	return &course, err
}

func (r *CatalogRepository) FindPublishedWithPagination(offset, limit int) ([]model.Course, int64, error) {
	var courses []model.Course
	var total int64

	query := r.DB.Model(&model.Course{}).Where("status = ?", model.CoursePublished)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&courses).Error
	return courses, total, err
}

func (r *CatalogRepository) CreateModule(module *model.CourseModule) error {
	if err := r.DB.Create(module).Error; err != nil {
		return err
	}
	r.invalidateStructure(module.CourseID)
	return nil
}

func (r *CatalogRepository) SaveModule(module *model.CourseModule) error {
	if err := r.DB.Save(module).Error; err != nil {
		return err
	}
	r.invalidateStructure(module.CourseID)
	return nil
}

func (r *CatalogRepository) FindModuleByID(id uint) (*model.CourseModule, error) {
	var module model.CourseModule
	err := r.DB.First(&module, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrModuleNotFound
	}
	return &module, err
}

func (r *CatalogRepository) FindModulesByCourse(courseID uint) ([]model.CourseModule, error) {
	var modules []model.CourseModule
	err := r.DB.Where("course_id = ?", courseID).
		Order("`order` ASC").
		Find(&modules).Error
	return modules, err
}

// DeleteModule 软删除
func (r *CatalogRepository) DeleteModule(id uint) error {
	var courseID uint
	r.DB.Model(&model.CourseModule{}).Select("course_id").Where("id = ?", id).Scan(&courseID)

	if err := r.DB.Delete(&model.CourseModule{}, id).Error; err != nil {
		return err
	}
	r.invalidateStructure(courseID)
	return nil
}

// courseIDForModule 课时写入后失效缓存用
func (r *CatalogRepository) courseIDForModule(moduleID uint) uint {
	var courseID uint
	r.DB.Model(&model.CourseModule{}).Select("course_id").Where("id = ?", moduleID).Scan(&courseID)
	return courseID
}

func (r *CatalogRepository) CreateLesson(lesson *model.Lesson) error {
	if err := r.DB.Create(lesson).Error; err != nil {
		return err
	}
	r.invalidateStructure(r.courseIDForModule(lesson.ModuleID))
	return nil
}

func (r *CatalogRepository) SaveLesson(lesson *model.Lesson) error {
	if err := r.DB.Save(lesson).Error; err != nil {
		return err
	}
	r.invalidateStructure(r.courseIDForModule(lesson.ModuleID))
	return nil
}

func (r *CatalogRepository) FindLessonByID(id uint) (*model.Lesson, error) {
	var lesson model.Lesson
	err := r.DB.First(&lesson, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrLessonNotFound
	}
	return &lesson, err
}

func (r *CatalogRepository) FindLessonsByModule(moduleID uint) ([]model.Lesson, error) {
	var lessons []model.Lesson
	err := r.DB.Where("module_id = ?", moduleID).
		Order("`order` ASC").
		Find(&lessons).Error
	return lessons, err
}

func (r *CatalogRepository) DeleteLesson(id uint) error {
	var moduleID uint
	r.DB.Model(&model.Lesson{}).Select("module_id").Where("id = ?", id).Scan(&moduleID)

	if err := r.DB.Delete(&model.Lesson{}, id).Error; err != nil {
		return err
	}
	r.invalidateStructure(r.courseIDForModule(moduleID))
	return nil
}

func (r *CatalogRepository) CreateQuiz(quiz *model.Quiz) error {
	if err := r.DB.Create(quiz).Error; err != nil {
		return err
	}
	var moduleID uint
	r.DB.Model(&model.Lesson{}).Select("module_id").Where("id = ?", quiz.LessonID).Scan(&moduleID)
	r.invalidateStructure(r.courseIDForModule(moduleID))
	return nil
}

func (r *CatalogRepository) CreateAssignment(assignment *model.Assignment) error {
	if err := r.DB.Create(assignment).Error; err != nil {
		return err
	}
	var moduleID uint
	r.DB.Model(&model.Lesson{}).Select("module_id").Where("id = ?", assignment.LessonID).Scan(&moduleID)
	r.invalidateStructure(r.courseIDForModule(moduleID))
	return nil
}

// TargetCourseID 查询完成目标所属课程，目标不存在返回 ErrTargetNotFound。
// 台账写入前用它校验目标确实挂在报名的课程下。
func (r *CatalogRepository) TargetCourseID(ref model.TargetRef) (uint, error) {
	var courseID uint
	var err error

	switch ref.Type {
	case model.TargetLesson:
		err = r.DB.Model(&model.Lesson{}).
			Select("course_modules.course_id").
			Joins("JOIN course_modules ON course_modules.id = lessons.module_id").
			Where("lessons.id = ?", ref.ID).
			Scan(&courseID).Error
	case model.TargetQuiz:
		err = r.DB.Model(&model.Quiz{}).
			Select("course_modules.course_id").
			Joins("JOIN lessons ON lessons.id = quizzes.lesson_id").
			Joins("JOIN course_modules ON course_modules.id = lessons.module_id").
			Where("quizzes.id = ?", ref.ID).
			Scan(&courseID).Error
	case model.TargetAssignment:
		err = r.DB.Model(&model.Assignment{}).
			Select("course_modules.course_id").
			Joins("JOIN lessons ON lessons.id = assignments.lesson_id").
			Joins("JOIN course_modules ON course_modules.id = lessons.module_id").
			Where("assignments.id = ?", ref.ID).
			Scan(&courseID).Error
	default:
		return 0, util.ErrTargetNotFound
	}

	if err != nil {
		return 0, err
	}
	if courseID == 0 {
		return 0, util.ErrTargetNotFound
	}
	return courseID, nil
}

// ModulesDueForUnlock 查找到达解锁时间但还未发布的模块（后台定时任务）
func (r *CatalogRepository) ModulesDueForUnlock(now time.Time) ([]model.CourseModule, error) {
	var modules []model.CourseModule
	err := r.DB.
		Where("publish_at_unlock = ? AND unlock_date IS NOT NULL AND unlock_date <= ? AND status = ?",
			true, now, model.ModuleDraft).
		Find(&modules).Error
	return modules, err
}
