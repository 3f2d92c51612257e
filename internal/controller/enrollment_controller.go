package controller

import (
	"progression_backend/internal/model"
	"progression_backend/internal/service"
	"progression_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type EnrollmentController struct {
	EnrollmentService *service.EnrollmentService
}

func NewEnrollmentController(enrollmentService *service.EnrollmentService) *EnrollmentController {
	return &EnrollmentController{EnrollmentService: enrollmentService}
}

// Enroll godoc
// @Summary 报名课程
// @Description 在已发布课程上创建报名；课程要求审批时报名进入 pending，否则直接激活。
// @Description 同一用户同一课程最多一条未退出报名；报满的课程返回 409。
// @Tags 报名
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Param   body body service.EnrollRequest false "报名选项"
// @Success 201 {object} util.Response{data=model.Enrollment} "报名成功"
// @Failure 404 {object} util.Response "课程不存在"
// @Failure 409 {object} util.Response "重复报名或课程已满"
// @Router /api/courses/{id}/enroll [post]
func (c *EnrollmentController) Enroll(ctx *gin.Context) {
	courseID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.EnrollRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && ctx.Request.ContentLength > 0 {
		util.BadRequest(ctx, err.Error())
		return
	}

	enrollment, err := c.EnrollmentService.Enroll(claims.UserID, courseID, req)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}
	util.Created(ctx, enrollment)
}

// GetEnrollment godoc
// @Summary 获取报名详情
// @Tags 报名
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "报名ID"
// @Success 200 {object} util.Response{data=model.Enrollment} "成功"
// @Failure 404 {object} util.Response "报名不存在"
// @Router /api/enrollments/{id} [get]
func (c *EnrollmentController) GetEnrollment(ctx *gin.Context) {
	enrollmentID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	userID := claims.UserID
	if claims.Role == model.Admin || claims.Role == model.Instructor {
		userID = 0
	}

	enrollment, err := c.EnrollmentService.Get(userID, enrollmentID)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}
	util.Success(ctx, enrollment)
}

// ListMine godoc
// @Summary 获取我的报名列表
// @Tags 报名
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Enrollment} "成功"
// @Router /api/enrollments [get]
func (c *EnrollmentController) ListMine(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	enrollments, err := c.EnrollmentService.ListForUser(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, enrollments)
}

// ListForCourse godoc
// @Summary 获取课程报名列表
// @Description 讲师端查看课程下的报名，可按状态过滤
// @Tags 报名
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Param   status query string false "报名状态过滤"
// @Success 200 {object} util.Response{data=[]model.Enrollment} "成功"
// @Router /api/instructor/courses/{id}/enrollments [get]
func (c *EnrollmentController) ListForCourse(ctx *gin.Context) {
	courseID, ok := parseID(ctx, "id")
	if !ok {
		return
	}

	status := model.EnrollmentStatus(ctx.Query("status"))
	enrollments, err := c.EnrollmentService.ListForCourse(courseID, status)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, enrollments)
}

// Withdraw godoc
// @Summary 退出课程
// @Description pending 和 active 报名都可以退出；退出释放座位，之后允许重新报名
// @Tags 报名
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "报名ID"
// @Success 200 {object} util.Response{data=model.Enrollment} "成功"
// @Failure 404 {object} util.Response "报名不存在"
// @Failure 409 {object} util.Response "状态不允许退出"
// @Router /api/enrollments/{id}/withdraw [post]
func (c *EnrollmentController) Withdraw(ctx *gin.Context) {
	enrollmentID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	enrollment, err := c.EnrollmentService.Withdraw(claims.UserID, enrollmentID)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}
	util.Success(ctx, enrollment)
}

// Complete godoc
// @Summary 结课
// @Description 将报名标记为 completed。要求所有必修内容已完成（完成度100%），
// @Description 否则返回 409；个人资料缺失等外部条件不在此校验。
// @Tags 报名
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "报名ID"
// @Success 200 {object} util.Response{data=model.Enrollment} "成功"
// @Failure 409 {object} util.Response "必修内容未完成或状态不允许"
// @Router /api/enrollments/{id}/complete [post]
func (c *EnrollmentController) Complete(ctx *gin.Context) {
	enrollmentID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	// 属主校验走 Get，讲师/管理员可代办
	userID := claims.UserID
	if claims.Role == model.Admin || claims.Role == model.Instructor {
		userID = 0
	}
	if _, err := c.EnrollmentService.Get(userID, enrollmentID); err != nil {
		util.DomainError(ctx, err)
		return
	}

	enrollment, err := c.EnrollmentService.Transition(enrollmentID, model.EnrollmentCompleted)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}
	util.Success(ctx, enrollment)
}

type TransitionRequest struct {
	Status model.EnrollmentStatus `json:"status" binding:"required,oneof=active completed withdrawn"`
}

// Transition godoc
// @Summary 报名状态流转
// @Description 讲师/管理员驱动的状态变更，按状态机校验合法性
// @Tags 报名
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "报名ID"
// @Param   body body TransitionRequest true "目标状态"
// @Success 200 {object} util.Response{data=model.Enrollment} "成功"
// @Failure 409 {object} util.Response "非法流转"
// @Router /api/instructor/enrollments/{id}/transition [post]
func (c *EnrollmentController) Transition(ctx *gin.Context) {
	enrollmentID, ok := parseID(ctx, "id")
	if !ok {
		return
	}

	var req TransitionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	enrollment, err := c.EnrollmentService.Transition(enrollmentID, req.Status)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}
	util.Success(ctx, enrollment)
}

// Approve godoc
// @Summary 审批报名
// @Description 讲师/管理员将 pending 报名转为 active
// @Tags 报名
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "报名ID"
// @Success 200 {object} util.Response{data=model.Enrollment} "成功"
// @Failure 409 {object} util.Response "状态不允许"
// @Router /api/instructor/enrollments/{id}/approve [post]
func (c *EnrollmentController) Approve(ctx *gin.Context) {
	enrollmentID, ok := parseID(ctx, "id")
	if !ok {
		return
	}

	enrollment, err := c.EnrollmentService.Approve(enrollmentID)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}
	util.Success(ctx, enrollment)
}

// GetCertificate godoc
// @Summary 获取结课证书
// @Description 仅当课程开启证书且报名已结课时存在
// @Tags 报名
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "报名ID"
// @Success 200 {object} util.Response{data=model.Certificate} "成功"
// @Failure 404 {object} util.Response "证书不存在"
// @Router /api/enrollments/{id}/certificate [get]
func (c *EnrollmentController) GetCertificate(ctx *gin.Context) {
	enrollmentID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	userID := claims.UserID
	if claims.Role == model.Admin {
		userID = 0
	}

	cert, err := c.EnrollmentService.Certificate(userID, enrollmentID)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}
	util.Success(ctx, cert)
}
