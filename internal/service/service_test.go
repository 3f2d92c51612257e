package service

import (
	"fmt"
	"path/filepath"
	"progression_backend/internal/model"
	"progression_backend/internal/repository"
	"progression_backend/pkg/database"
	"progression_backend/pkg/logger"
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// 测试环境：内存 sqlite 跑完整服务栈，通知用 Nop 实现
type testEnv struct {
	db          *gorm.DB
	userRepo    *repository.UserRepository
	catalogRepo *repository.CatalogRepository
	enrollRepo  *repository.EnrollmentRepository
	certRepo    *repository.CertificateRepository
	progRepo    *repository.ProgressRepository

	aggregator *AggregatorService
	enrollment *EnrollmentService
	ledger     *LedgerService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return openTestEnv(t, fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
}

// newFileTestEnv 文件库 + busy_timeout，供并发写测试用。
// 内存共享库在并发写事务下会直接报 SQLITE_BUSY，文件库能排队等锁。
func newFileTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "progression.db") + "?_busy_timeout=5000"
	return openTestEnv(t, dsn)
}

func openTestEnv(t *testing.T, dsn string) *testEnv {
	t.Helper()
	logger.Log = zap.NewNop()

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	env := &testEnv{
		db:          db,
		userRepo:    repository.NewUserRepository(db),
		catalogRepo: repository.NewCatalogRepository(db, nil),
		enrollRepo:  repository.NewEnrollmentRepository(db),
		certRepo:    repository.NewCertificateRepository(db),
		progRepo:    repository.NewProgressRepository(db),
	}
	env.aggregator = NewAggregatorService(env.catalogRepo, env.enrollRepo, env.progRepo)
	env.enrollment = NewEnrollmentService(
		env.enrollRepo, env.catalogRepo, env.certRepo, env.userRepo, env.aggregator, NopNotifier{})
	env.ledger = NewLedgerService(env.progRepo, env.enrollRepo, env.catalogRepo)
	return env
}

func (e *testEnv) mustCreate(t *testing.T, value interface{}) {
	t.Helper()
	if err := e.db.Create(value).Error; err != nil {
		t.Fatalf("create %T: %v", value, err)
	}
}

func (e *testEnv) seedUser(t *testing.T, email string) *model.User {
	t.Helper()
	user := &model.User{Name: "Test User", Email: email, Password: "x", Role: model.Student}
	e.mustCreate(t, user)
	return user
}

// seedCourse 已发布课程，2 个已发布模块各 1 个必修课时
func (e *testEnv) seedCourse(t *testing.T, mutate func(*model.Course)) (*model.Course, []model.Lesson) {
	t.Helper()
	course := &model.Course{Title: "Go Basics", Status: model.CoursePublished}
	if mutate != nil {
		mutate(course)
	}
	e.mustCreate(t, course)

	var lessons []model.Lesson
	for i := 1; i <= 2; i++ {
		m := &model.CourseModule{CourseID: course.ID, Title: fmt.Sprintf("Module %d", i), Order: i, Status: model.ModulePublished}
		e.mustCreate(t, m)
		l := &model.Lesson{ModuleID: m.ID, Title: fmt.Sprintf("Lesson %d", i), Order: 1}
		e.mustCreate(t, l)
		lessons = append(lessons, *l)
	}
	return course, lessons
}

func (e *testEnv) recordLesson(t *testing.T, enrollmentID, lessonID uint) {
	t.Helper()
	_, err := e.ledger.RecordCompletion(0, enrollmentID, RecordCompletionRequest{
		TargetType: model.TargetLesson,
		TargetID:   lessonID,
		Outcome:    model.OutcomeCompleted,
	})
	if err != nil {
		t.Fatalf("record lesson %d: %v", lessonID, err)
	}
}
