package handler

import (
	"errors"
	"io"
	"strconv"

	"canteen/internal/infrastructure/lock"
	"canteen/internal/model"
	"canteen/internal/repository"
	"canteen/internal/service"
	"canteen/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	accountService     *service.AccountService
	orderService       *service.OrderService
	leaderboardService *service.LeaderboardService
	achievementService *service.AchievementService
	logger             *zap.Logger
}

// Services 处理器依赖的服务
type Services struct {
	Account     *service.AccountService
	Order       *service.OrderService
	Leaderboard *service.LeaderboardService
	Achievement *service.AchievementService
}

func NewHandler(s Services, logger *zap.Logger) *Handler {
	return &Handler{
		accountService:     s.Account,
		orderService:       s.Order,
		leaderboardService: s.Leaderboard,
		achievementService: s.Achievement,
		logger:             logger,
	}
}

// fail 把服务层错误转换成响应码
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, repository.ErrConflict):
		response.Conflict(c, err.Error())
	case errors.Is(err, lock.ErrLockFailed):
		response.BusinessError(c, response.CodeLockBusy, err.Error())
	case errors.Is(err, service.ErrInvalidAmount):
		response.BusinessError(c, response.CodeInvalidAmount, err.Error())
	case errors.Is(err, service.ErrInvalidQuantity):
		response.BusinessError(c, response.CodeInvalidQuantity, err.Error())
	case errors.Is(err, service.ErrInvalidWindow):
		response.BusinessError(c, response.CodeInvalidWindow, err.Error())
	case errors.Is(err, service.ErrInvalidAchievement):
		response.BusinessError(c, response.CodeInvalidAchievement, err.Error())
	default:
		h.logger.Error("请求处理失败",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		response.ServerError(c, "服务器内部错误")
	}
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		response.ParamError(c, name+" 参数错误")
		return 0, false
	}
	return id, true
}

func queryUserID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return 0, false
	}
	return id, true
}

// ============================================================
// 余额和充值
// ============================================================

// GetBalance 查询用户余额
// GET /api/v1/users/:id/balance
func (h *Handler) GetBalance(c *gin.Context) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}

	balance, err := h.accountService.GetBalance(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"user_id": userID,
		"balance": balance.StringFixed(2),
	})
}

// CreateTopUpRequest 充值请求，amount 可以为负数
type CreateTopUpRequest struct {
	UserID int64           `json:"user_id" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

// CreateTopUp 充值
// POST /api/v1/topups
func (h *Handler) CreateTopUp(c *gin.Context) {
	var req CreateTopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	topUp, err := h.accountService.CreateTopUp(c.Request.Context(), req.UserID, req.Amount)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, topUp)
}

// DeleteTopUp 删除充值，余额恢复
// DELETE /api/v1/topups/:id
func (h *Handler) DeleteTopUp(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.accountService.DeleteTopUp(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, gin.H{"message": "充值已删除"})
}

// ListTopUps 用户充值记录
// GET /api/v1/users/:id/topups
func (h *Handler) ListTopUps(c *gin.Context) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}

	topUps, err := h.accountService.ListTopUps(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, topUps)
}

// ListTransactions 余额流水
// GET /api/v1/users/:id/transactions?page=1&page_size=20
func (h *Handler) ListTransactions(c *gin.Context) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	list, total, err := h.accountService.ListTransactions(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":  list,
		"total": total,
	})
}

// ============================================================
// 订单
// ============================================================

// CreateOrderRequest 下单请求
type CreateOrderRequest struct {
	ProductIDs []int64 `json:"product_ids"`
	UserIDs    []int64 `json:"user_ids"`
	Quantity   int     `json:"quantity" binding:"required,gt=0"`
	Split      bool    `json:"split"`
}

// CreateOrder 下单，split=true 时数量和金额由所有用户平摊
// POST /api/v1/orders
func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	orders, err := h.orderService.CreateOrder(c.Request.Context(), &service.CreateOrderRequest{
		ProductIDs: req.ProductIDs,
		UserIDs:    req.UserIDs,
		Quantity:   req.Quantity,
		Split:      req.Split,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, orders)
}

// DeleteOrder 删除订单，退回余额和库存
// DELETE /api/v1/orders/:id
func (h *Handler) DeleteOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.orderService.DeleteOrder(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, gin.H{"message": "订单已删除"})
}

// ListOrders 查询用户订单
// GET /api/v1/orders?user_id=xxx
func (h *Handler) ListOrders(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}

	orders, err := h.orderService.ListOrders(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":  orders,
		"total": len(orders),
	})
}

// ExportOrders 导出用户订单为 CSV
// GET /api/v1/orders/export?user_id=xxx
func (h *Handler) ExportOrders(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}

	orders, err := h.orderService.ListOrders(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", "attachment; filename=orders-"+strconv.FormatInt(userID, 10)+".csv")
	if err := service.WriteOrdersCSV(c.Writer, orders); err != nil {
		h.logger.Error("导出订单失败", zap.Int64("user_id", userID), zap.Error(err))
	}
}

// ============================================================
// 排行榜
// ============================================================

// GetLeaderboard 商品排行榜
// GET /api/v1/leaderboard/:product_id?window=all|month|recent|live
func (h *Handler) GetLeaderboard(c *gin.Context) {
	productID, ok := paramID(c, "product_id")
	if !ok {
		return
	}
	window := model.LeaderboardWindow(c.DefaultQuery("window", string(model.WindowAllTime)))

	entries, err := h.leaderboardService.GetLeaderboard(c.Request.Context(), productID, window)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, entries)
}

// ============================================================
// 成就
// ============================================================

// CreateAchievement 创建成就规则
// POST /api/v1/achievements
func (h *Handler) CreateAchievement(c *gin.Context) {
	var req service.CreateAchievementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	achievement, err := h.achievementService.CreateAchievement(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, achievement)
}

// AwardRequest user_id 为空时发放给所有用户
type AwardRequest struct {
	UserID *int64 `json:"user_id"`
}

// AwardAchievement 手动发放成就
// POST /api/v1/achievements/:id/award
func (h *Handler) AwardAchievement(c *gin.Context) {
	achievementID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req AwardRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	if req.UserID == nil {
		count, err := h.achievementService.AwardToAllUsers(ctx, achievementID)
		if err != nil {
			h.fail(c, err)
			return
		}
		response.Success(c, gin.H{"awarded": count})
		return
	}

	awarded, err := h.achievementService.AwardToUser(ctx, *req.UserID, achievementID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"awarded": awarded})
}

// DeleteAchievementEntries 删除某个成就的全部获得记录
// DELETE /api/v1/achievements/:id/entries
func (h *Handler) DeleteAchievementEntries(c *gin.Context) {
	achievementID, ok := paramID(c, "id")
	if !ok {
		return
	}

	count, err := h.achievementService.DeleteAllEntries(c.Request.Context(), achievementID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": count})
}

// ListUserAchievements 用户已获得的成就
// GET /api/v1/users/:id/achievements
func (h *Handler) ListUserAchievements(c *gin.Context) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}

	entries, err := h.achievementService.ListUserAchievements(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, entries)
}

// MarkAchievementsSeen 把用户的新成就标记为已读
// POST /api/v1/users/:id/achievements/seen
func (h *Handler) MarkAchievementsSeen(c *gin.Context) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}

	count, err := h.achievementService.MarkSeen(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"updated": count})
}
