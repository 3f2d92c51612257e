package controller

import (
	"fmt"
	"os"
	"path/filepath"
	"progression_backend/internal/model"
	"progression_backend/internal/service"
	"progression_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

// CatalogController 课程目录：学员端浏览 + 讲师端维护
type CatalogController struct {
	CatalogService *service.CatalogService
	Aggregator     *service.AggregatorService
}

func NewCatalogController(catalogService *service.CatalogService, aggregator *service.AggregatorService) *CatalogController {
	return &CatalogController{
		CatalogService: catalogService,
		Aggregator:     aggregator,
	}
}

func parseID(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil || id == 0 {
		util.BadRequest(ctx, "无效的ID")
		return 0, false
	}
	return uint(id), true
}

// actorID 讲师端接口的操作者：管理员返回 0 表示越过属主检查
func actorID(ctx *gin.Context) (uint, bool) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return 0, false
	}
	if claims.Role == model.Admin {
		return 0, true
	}
	return claims.UserID, true
}

// ListCourses godoc
// @Summary 获取已发布课程列表
// @Description 分页返回所有已发布课程
// @Tags 课程目录
// @Produce  json
// @Param   page query int false "页码"
// @Param   limit query int false "每页数量"
// @Success 200 {object} util.Response{data=object} "成功"
// @Router /api/courses [get]
func (c *CatalogController) ListCourses(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	courses, total, err := c.CatalogService.ListPublished(page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"courses": courses,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

// GetCourse godoc
// @Summary 获取课程详情
// @Description 返回课程完整结构和当前用户可访问的内容集合；未登录用户只有试看内容可访问
// @Tags 课程目录
// @Produce  json
// @Param   id path int true "课程ID"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/courses/{id} [get]
func (c *CatalogController) GetCourse(ctx *gin.Context) {
	courseID, ok := parseID(ctx, "id")
	if !ok {
		return
	}

	course, err := c.CatalogService.GetCourse(courseID)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}

	var userID uint
	if claims := util.GetUserFromContext(ctx); claims != nil {
		userID = claims.UserID
	}

	accessible, err := c.Aggregator.Accessible(userID, courseID)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"course":     course,
		"accessible": accessible,
	})
}

// GetAccessible godoc
// @Summary 获取可访问内容集合
// @Description 计算当前用户在课程内可访问的模块/课时/测验/作业ID集合
// @Tags 课程目录
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Success 200 {object} util.Response{data=model.AccessibleContentLists} "成功"
// @Failure 404 {object} util.Response "课程不存在"
// @Failure 422 {object} util.Response "课程结构损坏"
// @Router /api/courses/{id}/accessible [get]
func (c *CatalogController) GetAccessible(ctx *gin.Context) {
	courseID, ok := parseID(ctx, "id")
	if !ok {
		return
	}

	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	accessible, err := c.Aggregator.Accessible(claims.UserID, courseID)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}

	util.Success(ctx, accessible)
}

// CreateCourse godoc
// @Summary 创建课程
// @Description 讲师创建新课程（草稿状态）
// @Tags 课程管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.CourseCreateRequest true "课程信息"
// @Success 201 {object} util.Response{data=model.Course} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Router /api/instructor/courses [post]
func (c *CatalogController) CreateCourse(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.CourseCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	course, err := c.CatalogService.CreateCourse(claims.UserID, req)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}

	util.Created(ctx, course)
}

// PublishCourse godoc
// @Summary 发布课程
// @Tags 课程管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Success 200 {object} util.Response{data=model.Course} "成功"
// @Failure 403 {object} util.Response "无权操作"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/instructor/courses/{id}/publish [post]
func (c *CatalogController) PublishCourse(ctx *gin.Context) {
	courseID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	actor, ok := actorID(ctx)
	if !ok {
		return
	}

	course, err := c.CatalogService.PublishCourse(actor, courseID)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// ArchiveCourse godoc
// @Summary 归档课程
// @Description 归档后课程不再接受新报名，已有报名不受影响
// @Tags 课程管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Success 200 {object} util.Response{data=model.Course} "成功"
// @Failure 403 {object} util.Response "无权操作"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/instructor/courses/{id}/archive [post]
func (c *CatalogController) ArchiveCourse(ctx *gin.Context) {
	courseID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	actor, ok := actorID(ctx)
	if !ok {
		return
	}

	course, err := c.CatalogService.ArchiveCourse(actor, courseID)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// CreateModule godoc
// @Summary 创建课程模块
// @Description 在课程下创建模块，order 在课程内必须唯一且为正
// @Tags 课程管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Param   body body service.ModuleCreateRequest true "模块信息"
// @Success 201 {object} util.Response{data=model.CourseModule} "创建成功"
// @Failure 422 {object} util.Response "order 冲突"
// @Router /api/instructor/courses/{id}/modules [post]
func (c *CatalogController) CreateModule(ctx *gin.Context) {
	courseID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	actor, ok := actorID(ctx)
	if !ok {
		return
	}

	var req service.ModuleCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	module, err := c.CatalogService.CreateModule(actor, courseID, req)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}
	util.Created(ctx, module)
}

type ModuleStatusRequest struct {
	Status model.ModuleStatus `json:"status" binding:"required,oneof=draft published archived"`
}

// SetModuleStatus godoc
// @Summary 变更模块状态
// @Tags 课程管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "模块ID"
// @Param   body body ModuleStatusRequest true "目标状态"
// @Success 200 {object} util.Response{data=model.CourseModule} "成功"
// @Router /api/instructor/modules/{id}/status [put]
func (c *CatalogController) SetModuleStatus(ctx *gin.Context) {
	moduleID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	actor, ok := actorID(ctx)
	if !ok {
		return
	}

	var req ModuleStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	module, err := c.CatalogService.SetModuleStatus(actor, moduleID, req.Status)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}
	util.Success(ctx, module)
}

type ModuleLockRequest struct {
	Locked *bool `json:"locked" binding:"required"`
}

// SetModuleLock godoc
// @Summary 手动锁定/解锁模块
// @Tags 课程管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "模块ID"
// @Param   body body ModuleLockRequest true "锁定标志"
// @Success 200 {object} util.Response{data=model.CourseModule} "成功"
// @Router /api/instructor/modules/{id}/lock [put]
func (c *CatalogController) SetModuleLock(ctx *gin.Context) {
	moduleID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	actor, ok := actorID(ctx)
	if !ok {
		return
	}

	var req ModuleLockRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	module, err := c.CatalogService.SetModuleLock(actor, moduleID, *req.Locked)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}
	util.Success(ctx, module)
}

// DeleteModule godoc
// @Summary 删除模块
// @Description 课程存在未退出报名时拒绝删除（返回409），应改用归档
// @Tags 课程管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "模块ID"
// @Success 200 {object} util.Response "删除成功"
// @Failure 409 {object} util.Response "模块仍被报名引用"
// @Router /api/instructor/modules/{id} [delete]
func (c *CatalogController) DeleteModule(ctx *gin.Context) {
	moduleID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	actor, ok := actorID(ctx)
	if !ok {
		return
	}

	if err := c.CatalogService.DeleteModule(actor, moduleID); err != nil {
		util.DomainError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"deleted": moduleID})
}

// CreateLesson godoc
// @Summary 创建课时
// @Tags 课程管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "模块ID"
// @Param   body body service.LessonCreateRequest true "课时信息"
// @Success 201 {object} util.Response{data=model.Lesson} "创建成功"
// @Failure 422 {object} util.Response "order 冲突"
// @Router /api/instructor/modules/{id}/lessons [post]
func (c *CatalogController) CreateLesson(ctx *gin.Context) {
	moduleID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	actor, ok := actorID(ctx)
	if !ok {
		return
	}

	var req service.LessonCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	lesson, err := c.CatalogService.CreateLesson(actor, moduleID, req)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}
	util.Created(ctx, lesson)
}

// CreateQuiz godoc
// @Summary 在课时下创建测验
// @Tags 课程管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课时ID"
// @Param   body body service.QuizCreateRequest true "测验信息"
// @Success 201 {object} util.Response{data=model.Quiz} "创建成功"
// @Router /api/instructor/lessons/{id}/quizzes [post]
func (c *CatalogController) CreateQuiz(ctx *gin.Context) {
	lessonID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	actor, ok := actorID(ctx)
	if !ok {
		return
	}

	var req service.QuizCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	quiz, err := c.CatalogService.CreateQuiz(actor, lessonID, req)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}
	util.Created(ctx, quiz)
}

// CreateAssignment godoc
// @Summary 在课时下创建作业
// @Tags 课程管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课时ID"
// @Param   body body service.AssignmentCreateRequest true "作业信息"
// @Success 201 {object} util.Response{data=model.Assignment} "创建成功"
// @Router /api/instructor/lessons/{id}/assignments [post]
func (c *CatalogController) CreateAssignment(ctx *gin.Context) {
	lessonID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	actor, ok := actorID(ctx)
	if !ok {
		return
	}

	var req service.AssignmentCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	assignment, err := c.CatalogService.CreateAssignment(actor, lessonID, req)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}
	util.Created(ctx, assignment)
}

// UploadCover godoc
// @Summary 上传课程封面
// @Tags 课程管理
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Param   file formData file true "封面图片"
// @Success 200 {object} util.Response{data=model.Course} "成功"
// @Router /api/instructor/courses/{id}/cover [post]
func (c *CatalogController) UploadCover(ctx *gin.Context) {
	courseID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	actor, ok := actorID(ctx)
	if !ok {
		return
	}

	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "缺少文件")
		return
	}

	src, err := file.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer src.Close()

	course, err := c.CatalogService.UploadCover(
		ctx.Request.Context(), actor, courseID,
		file.Filename, src, file.Size, file.Header.Get("Content-Type"))
	if err != nil {
		util.DomainError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// UploadLessonMedia godoc
// @Summary 上传课时媒体
// @Description 视频/音频课时会探测媒体时长并回填
// @Tags 课程管理
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课时ID"
// @Param   file formData file true "媒体文件"
// @Success 200 {object} util.Response{data=model.Lesson} "成功"
// @Router /api/instructor/lessons/{id}/media [post]
func (c *CatalogController) UploadLessonMedia(ctx *gin.Context) {
	lessonID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	actor, ok := actorID(ctx)
	if !ok {
		return
	}

	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "缺少文件")
		return
	}

	// 先落到临时文件，时长探测需要本地路径
	tmpPath := filepath.Join(os.TempDir(), fmt.Sprintf("lesson_%d_%s", lessonID, filepath.Base(file.Filename)))
	if err := ctx.SaveUploadedFile(file, tmpPath); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer os.Remove(tmpPath)

	lesson, err := c.CatalogService.UploadLessonMedia(
		ctx.Request.Context(), actor, lessonID,
		tmpPath, file.Filename, file.Header.Get("Content-Type"))
	if err != nil {
		util.DomainError(ctx, err)
		return
	}
	util.Success(ctx, lesson)
}

// ModuleStats godoc
// @Summary 课程模块统计
// @Description 讲师端报表：每个已发布模块的课时数、触达报名数、完成率
// @Tags 课程管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Success 200 {object} util.Response{data=[]model.ModuleStats} "成功"
// @Router /api/instructor/courses/{id}/stats [get]
func (c *CatalogController) ModuleStats(ctx *gin.Context) {
	courseID, ok := parseID(ctx, "id")
	if !ok {
		return
	}

	stats, err := c.Aggregator.ModuleStats(courseID)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}
