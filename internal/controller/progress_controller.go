package controller

import (
	"progression_backend/internal/model"
	"progression_backend/internal/service"
	"progression_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ProgressController 进度台账与进度快照
type ProgressController struct {
	LedgerService     *service.LedgerService
	Aggregator        *service.AggregatorService
	EnrollmentService *service.EnrollmentService
}

func NewProgressController(
	ledgerService *service.LedgerService,
	aggregator *service.AggregatorService,
	enrollmentService *service.EnrollmentService,
) *ProgressController {
	return &ProgressController{
		LedgerService:     ledgerService,
		Aggregator:        aggregator,
		EnrollmentService: enrollmentService,
	}
}

// ledgerActor 学员只能操作自己的报名，管理员放行
func ledgerActor(ctx *gin.Context) (uint, bool) {
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

// RecordCompletion godoc
// @Summary 记录内容完成
// @Description 向进度台账追加完成事件。同一目标以相同结果重复提交是幂等的，
// @Description 返回 alreadyRecorded=true 而不是报错；不同结果（如补考通过）追加新事件。
// @Tags 进度
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "报名ID"
// @Param   body body service.RecordCompletionRequest true "完成事件"
// @Success 200 {object} util.Response{data=service.RecordResult} "成功"
// @Failure 404 {object} util.Response "报名或目标不存在"
// @Failure 409 {object} util.Response "报名未激活"
// @Router /api/enrollments/{id}/progress [post]
func (c *ProgressController) RecordCompletion(ctx *gin.Context) {
	enrollmentID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	actor, ok := ledgerActor(ctx)
	if !ok {
		return
	}

	var req service.RecordCompletionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.LedgerService.RecordCompletion(actor, enrollmentID, req)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// GetHistory godoc
// @Summary 获取进度历史
// @Description 按记录时间升序分页返回报名的完整事件流（含被顶替的旧事件）
// @Tags 进度
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "报名ID"
// @Param   page query int false "页码"
// @Param   limit query int false "每页数量"
// @Success 200 {object} util.Response{data=object} "成功"
// @Router /api/enrollments/{id}/history [get]
func (c *ProgressController) GetHistory(ctx *gin.Context) {
	enrollmentID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	actor, ok := ledgerActor(ctx)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "50"))

	events, total, err := c.LedgerService.History(actor, enrollmentID, page, limit)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"events": events,
		"total":  total,
		"page":   page,
		"limit":  limit,
	})
}

// GetSnapshot godoc
// @Summary 获取进度快照
// @Description 从台账现算：必修完成度（向下取整百分比）、已完成目标、证书资格
// @Tags 进度
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "报名ID"
// @Success 200 {object} util.Response{data=model.ProgressSnapshot} "成功"
// @Failure 404 {object} util.Response "报名不存在"
// @Router /api/enrollments/{id}/progress [get]
func (c *ProgressController) GetSnapshot(ctx *gin.Context) {
	enrollmentID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	actor, ok := ledgerActor(ctx)
	if !ok {
		return
	}

	// 归属校验，讲师端走课程统计接口
	if _, err := c.EnrollmentService.Get(actor, enrollmentID); err != nil {
		util.DomainError(ctx, err)
		return
	}

	snapshot, err := c.Aggregator.Snapshot(enrollmentID)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}
	util.Success(ctx, snapshot)
}
