package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRouter 配置路由
func SetupRouter(h *Handler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware(logger))
	r.Use(LoggerMiddleware(logger))
	r.Use(CORSMiddleware())

	api := r.Group("/api/v1")
	{
		orders := api.Group("/orders")
		{
			orders.POST("", h.CreateOrder)
			orders.GET("", h.ListOrders)
			orders.GET("/export", h.ExportOrders)
			orders.DELETE("/:id", h.DeleteOrder)
		}

		topUps := api.Group("/topups")
		{
			topUps.POST("", h.CreateTopUp)
			topUps.DELETE("/:id", h.DeleteTopUp)
		}

		users := api.Group("/users/:id")
		{
			users.GET("/balance", h.GetBalance)
			users.GET("/topups", h.ListTopUps)
			users.GET("/transactions", h.ListTransactions)
			users.GET("/achievements", h.ListUserAchievements)
			users.POST("/achievements/seen", h.MarkAchievementsSeen)
		}

		api.GET("/leaderboard/:product_id", h.GetLeaderboard)

		achievements := api.Group("/achievements")
		{
			achievements.POST("", h.CreateAchievement)
			achievements.POST("/:id/award", h.AwardAchievement)
			achievements.DELETE("/:id/entries", h.DeleteAchievementEntries)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
