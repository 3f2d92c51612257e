package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"progression_backend/internal/model"
	"progression_backend/internal/repository"
	"progression_backend/internal/util"
	"progression_backend/pkg/logger"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CatalogService 讲师端课程目录维护。结构不变量（order 唯一且为正）
// 在写入口校验，解锁评估器读到坏数据时还会再拦一次。
type CatalogService struct {
	CatalogRepo    *repository.CatalogRepository
	EnrollmentRepo *repository.EnrollmentRepository
	Storage        *StorageService
	DB             *gorm.DB
}

func NewCatalogService(
	catalogRepo *repository.CatalogRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	storage *StorageService,
	db *gorm.DB,
) *CatalogService {
	return &CatalogService{
		CatalogRepo:    catalogRepo,
		EnrollmentRepo: enrollmentRepo,
		Storage:        storage,
		DB:             db,
	}
}

type CourseCreateRequest struct {
	Title                string `json:"title" binding:"required"`
	Description          string `json:"description"`
	MaxStudents          int    `json:"maxStudents"`
	CertificateAvailable bool   `json:"certificateAvailable"`
	SequentialLessons    bool   `json:"sequentialLessons"`
	RequiresApproval     bool   `json:"requiresApproval"`
}

type ModuleCreateRequest struct {
	Title           string     `json:"title" binding:"required"`
	Description     string     `json:"description"`
	Order           int        `json:"order" binding:"required"`
	IsLocked        bool       `json:"isLocked"`
	UnlockDate      *time.Time `json:"unlockDate,omitempty"`
	PublishAtUnlock bool       `json:"publishAtUnlock"`
}

type LessonCreateRequest struct {
	Title         string           `json:"title" binding:"required"`
	Type          model.LessonType `json:"type"`
	Order         int              `json:"order" binding:"required"`
	Content       string           `json:"content"`
	ContentURL    string           `json:"contentUrl"`
	IsFreePreview bool             `json:"isFreePreview"`
	IsOptional    bool             `json:"isOptional"`
}

type QuizCreateRequest struct {
	Title         string `json:"title" binding:"required"`
	PassThreshold int    `json:"passThreshold"`
	IsOptional    bool   `json:"isOptional"`
}

type AssignmentCreateRequest struct {
	Title         string `json:"title" binding:"required"`
	Description   string `json:"description"`
	PassThreshold int    `json:"passThreshold"`
	IsOptional    bool   `json:"isOptional"`
}

// courseEditable 讲师只能动自己的课程，actorID 为 0 表示管理员放行
func (s *CatalogService) courseEditable(actorID uint, course *model.Course) error {
	if actorID != 0 && course.InstructorID != actorID {
		return util.ErrPermissionDenied
	}
	return nil
}

func (s *CatalogService) CreateCourse(instructorID uint, req CourseCreateRequest) (*model.Course, error) {
	course := &model.Course{
		Title:                req.Title,
		Description:          req.Description,
		InstructorID:         instructorID,
		Status:               model.CourseDraft,
		MaxStudents:          req.MaxStudents,
		CertificateAvailable: req.CertificateAvailable,
		SequentialLessons:    req.SequentialLessons,
		RequiresApproval:     req.RequiresApproval,
	}
	if err := s.CatalogRepo.CreateCourse(course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CatalogService) PublishCourse(actorID, courseID uint) (*model.Course, error) {
	return s.setCourseStatus(actorID, courseID, model.CoursePublished)
}

func (s *CatalogService) ArchiveCourse(actorID, courseID uint) (*model.Course, error) {
	return s.setCourseStatus(actorID, courseID, model.CourseArchived)
}

func (s *CatalogService) setCourseStatus(actorID, courseID uint, status model.CourseStatus) (*model.Course, error) {
	course, err := s.CatalogRepo.FindCourseByID(courseID)
	if err != nil {
		return nil, err
	}
	if err := s.courseEditable(actorID, course); err != nil {
		return nil, err
	}

	course.Status = status
	if err := s.CatalogRepo.SaveCourse(course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CatalogService) GetCourse(courseID uint) (*model.Course, error) {
	return s.CatalogRepo.FindCourseStructure(courseID)
}

func (s *CatalogService) ListPublished(page, limit int) ([]model.Course, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.CatalogRepo.FindPublishedWithPagination((page-1)*limit, limit)
}

func (s *CatalogService) CreateModule(actorID, courseID uint, req ModuleCreateRequest) (*model.CourseModule, error) {
	course, err := s.CatalogRepo.FindCourseByID(courseID)
	if err != nil {
		return nil, err
	}
	if err := s.courseEditable(actorID, course); err != nil {
		return nil, err
	}

	if req.Order <= 0 {
		return nil, fmt.Errorf("%w: module order must be positive", util.ErrInvalidCourseStructure)
	}
	siblings, err := s.CatalogRepo.FindModulesByCourse(courseID)
	if err != nil {
		return nil, err
	}
	for _, m := range siblings {
		if m.Order == req.Order {
			return nil, fmt.Errorf("%w: order %d already used in course %d", util.ErrInvalidCourseStructure, req.Order, courseID)
		}
	}

	module := &model.CourseModule{
		CourseID:        courseID,
		Title:           req.Title,
		Description:     req.Description,
		Order:           req.Order,
		Status:          model.ModuleDraft,
		IsLocked:        req.IsLocked,
		UnlockDate:      req.UnlockDate,
		PublishAtUnlock: req.PublishAtUnlock,
	}
	if err := s.CatalogRepo.CreateModule(module); err != nil {
		return nil, err
	}
	return module, nil
}

func (s *CatalogService) SetModuleStatus(actorID, moduleID uint, status model.ModuleStatus) (*model.CourseModule, error) {
	module, err := s.CatalogRepo.FindModuleByID(moduleID)
	if err != nil {
		return nil, err
	}
	course, err := s.CatalogRepo.FindCourseByID(module.CourseID)
	if err != nil {
		return nil, err
	}
	if err := s.courseEditable(actorID, course); err != nil {
		return nil, err
	}

	module.Status = status
	if err := s.CatalogRepo.SaveModule(module); err != nil {
		return nil, err
	}
	return module, nil
}

func (s *CatalogService) SetModuleLock(actorID, moduleID uint, locked bool) (*model.CourseModule, error) {
	module, err := s.CatalogRepo.FindModuleByID(moduleID)
	if err != nil {
		return nil, err
	}
	course, err := s.CatalogRepo.FindCourseByID(module.CourseID)
	if err != nil {
		return nil, err
	}
	if err := s.courseEditable(actorID, course); err != nil {
		return nil, err
	}

	module.IsLocked = locked
	if err := s.CatalogRepo.SaveModule(module); err != nil {
		return nil, err
	}
	return module, nil
}

// DeleteModule 有未退出报名引用课程时拒绝删除，只许归档
func (s *CatalogService) DeleteModule(actorID, moduleID uint) error {
	module, err := s.CatalogRepo.FindModuleByID(moduleID)
	if err != nil {
		return err
	}
	course, err := s.CatalogRepo.FindCourseByID(module.CourseID)
	if err != nil {
		return err
	}
	if err := s.courseEditable(actorID, course); err != nil {
		return err
	}

	count, err := s.EnrollmentRepo.CountNonWithdrawn(module.CourseID)
	if err != nil {
		return err
	}
	if count > 0 {
		return util.ErrModuleReferenced
	}

	return s.CatalogRepo.DeleteModule(moduleID)
}

func (s *CatalogService) CreateLesson(actorID, moduleID uint, req LessonCreateRequest) (*model.Lesson, error) {
	module, err := s.CatalogRepo.FindModuleByID(moduleID)
	if err != nil {
		return nil, err
	}
	course, err := s.CatalogRepo.FindCourseByID(module.CourseID)
	if err != nil {
		return nil, err
	}
	if err := s.courseEditable(actorID, course); err != nil {
		return nil, err
	}

	if req.Order <= 0 {
		return nil, fmt.Errorf("%w: lesson order must be positive", util.ErrInvalidCourseStructure)
	}
	siblings, err := s.CatalogRepo.FindLessonsByModule(moduleID)
	if err != nil {
		return nil, err
	}
	for _, l := range siblings {
		if l.Order == req.Order {
			return nil, fmt.Errorf("%w: order %d already used in module %d", util.ErrInvalidCourseStructure, req.Order, moduleID)
		}
	}

	lessonType := req.Type
	if lessonType == "" {
		lessonType = model.LessonText
	}

	lesson := &model.Lesson{
		ModuleID:      moduleID,
		Title:         req.Title,
		Type:          lessonType,
		Order:         req.Order,
		Content:       req.Content,
		ContentURL:    req.ContentURL,
		IsFreePreview: req.IsFreePreview,
		IsOptional:    req.IsOptional,
	}
	if err := s.CatalogRepo.CreateLesson(lesson); err != nil {
		return nil, err
	}
	return lesson, nil
}

func (s *CatalogService) CreateQuiz(actorID, lessonID uint, req QuizCreateRequest) (*model.Quiz, error) {
	if err := s.lessonEditable(actorID, lessonID); err != nil {
		return nil, err
	}

	threshold := req.PassThreshold
	if threshold <= 0 {
		threshold = 60
	}

	quiz := &model.Quiz{
		LessonID:      lessonID,
		Title:         req.Title,
		PassThreshold: threshold,
		IsOptional:    req.IsOptional,
	}
	if err := s.CatalogRepo.CreateQuiz(quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

func (s *CatalogService) CreateAssignment(actorID, lessonID uint, req AssignmentCreateRequest) (*model.Assignment, error) {
	if err := s.lessonEditable(actorID, lessonID); err != nil {
		return nil, err
	}

	threshold := req.PassThreshold
	if threshold <= 0 {
		threshold = 60
	}

	assignment := &model.Assignment{
		LessonID:      lessonID,
		Title:         req.Title,
		Description:   req.Description,
		PassThreshold: threshold,
		IsOptional:    req.IsOptional,
	}
	if err := s.CatalogRepo.CreateAssignment(assignment); err != nil {
		return nil, err
	}
	return assignment, nil
}

func (s *CatalogService) lessonEditable(actorID, lessonID uint) error {
	lesson, err := s.CatalogRepo.FindLessonByID(lessonID)
	if err != nil {
		return err
	}
	module, err := s.CatalogRepo.FindModuleByID(lesson.ModuleID)
	if err != nil {
		return err
	}
	course, err := s.CatalogRepo.FindCourseByID(module.CourseID)
	if err != nil {
		return err
	}
	return s.courseEditable(actorID, course)
}

// UploadCover 上传课程封面
func (s *CatalogService) UploadCover(ctx context.Context, actorID, courseID uint, filename string, reader io.Reader, size int64, contentType string) (*model.Course, error) {
	course, err := s.CatalogRepo.FindCourseByID(courseID)
	if err != nil {
		return nil, err
	}
	if err := s.courseEditable(actorID, course); err != nil {
		return nil, err
	}

	url, err := s.Storage.Upload(ctx, fmt.Sprintf("covers/%d/%s", courseID, filename), reader, size, contentType)
	if err != nil {
		return nil, err
	}

	course.CoverURL = url
	if err := s.CatalogRepo.SaveCourse(course); err != nil {
		return nil, err
	}
	return course, nil
}

// UploadLessonMedia 上传课时媒体文件。视频/音频课时用 ffprobe 探测时长回填，
// 探测失败不阻断上传，时长保持 0。
func (s *CatalogService) UploadLessonMedia(ctx context.Context, actorID, lessonID uint, localPath, filename, contentType string) (*model.Lesson, error) {
	lesson, err := s.CatalogRepo.FindLessonByID(lessonID)
	if err != nil {
		return nil, err
	}
	if err := s.lessonEditable(actorID, lessonID); err != nil {
		return nil, err
	}

	if lesson.Type == model.LessonVideo || lesson.Type == model.LessonAudio {
		if info, err := util.GetMediaInfo(localPath); err == nil {
			lesson.DurationSeconds = int(info.Duration)
		}
	}

	f, err := os.Open(localPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	url, err := s.Storage.Upload(ctx, fmt.Sprintf("lessons/%d/%s", lessonID, filename), f, stat.Size(), contentType)
	if err != nil {
		return nil, err
	}

	lesson.ContentURL = url
	if err := s.CatalogRepo.SaveLesson(lesson); err != nil {
		return nil, err
	}
	return lesson, nil
}

// ProcessDueUnlocks 后台任务：把到达解锁时间的定时模块发布出去
func (s *CatalogService) ProcessDueUnlocks() error {
	modules, err := s.CatalogRepo.ModulesDueForUnlock(time.Now())
	if err != nil {
		return err
	}
	for i := range modules {
		modules[i].Status = model.ModulePublished
		if err := s.CatalogRepo.SaveModule(&modules[i]); err != nil {
			logger.Log.Error("scheduled unlock failed", zap.Uint("moduleId", modules[i].ID), zap.Error(err))
			continue
		}
	}
	return nil
}
