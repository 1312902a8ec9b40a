package job

import (
	"context"
	"time"

	"canteen/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OutboxCleaner 定期删除已投递成功、超过保留时长的 outbox 消息
type OutboxCleaner struct {
	outboxRepo *repository.OutboxRepository
	logger     *zap.Logger
	retention  time.Duration
	interval   time.Duration
	batchSize  int
	now        func() time.Time
}

func NewOutboxCleaner(db *gorm.DB, retention time.Duration, logger *zap.Logger) *OutboxCleaner {
	return &OutboxCleaner{
		outboxRepo: repository.NewOutboxRepository(db),
		logger:     logger.Named("outbox_cleaner"),
		retention:  retention,
		interval:   10 * time.Minute,
		batchSize:  500,
		now:        time.Now,
	}
}

func (c *OutboxCleaner) Start(ctx context.Context) {
	c.logger.Info("消息清理任务启动", zap.Duration("retention", c.retention))

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("收到停止信号，任务退出")
			return
		case <-ticker.C:
			c.clean(ctx)
		}
	}
}

// clean 分批删除，直到没有可删的消息
func (c *OutboxCleaner) clean(ctx context.Context) int64 {
	before := c.now().Add(-c.retention)

	var total int64
	for {
		n, err := c.outboxRepo.DeleteSentBefore(ctx, before, c.batchSize)
		if err != nil {
			c.logger.Error("清理消息失败", zap.Error(err))
			return total
		}
		total += n
		if n < int64(c.batchSize) {
			break
		}
	}

	if total > 0 {
		c.logger.Info("清理已发送消息", zap.Int64("count", total))
	}
	return total
}
