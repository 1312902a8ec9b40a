package job

import (
	"context"
	"time"

	"canteen/internal/model"
	"canteen/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Publisher 消息投递，mq.Producer 实现了它
type Publisher interface {
	SendMessage(topic, key, value string) error
}

// OutboxSender 轮询 outbox 表，把消费通知投递到 Kafka
// 投递失败累计 maxRetryCount 次后标记为 FAILED，不再重试
type OutboxSender struct {
	outboxRepo    *repository.OutboxRepository
	publisher     Publisher
	logger        *zap.Logger
	interval      time.Duration
	batchSize     int
	maxRetryCount int
}

func NewOutboxSender(db *gorm.DB, publisher Publisher, maxRetryCount int, logger *zap.Logger) *OutboxSender {
	return &OutboxSender{
		outboxRepo:    repository.NewOutboxRepository(db),
		publisher:     publisher,
		logger:        logger.Named("outbox_sender"),
		interval:      100 * time.Millisecond,
		batchSize:     100,
		maxRetryCount: maxRetryCount,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.logger.Info("消息发送任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("收到停止信号，任务退出")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) processPendingMessages(ctx context.Context) {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("查询消息失败", zap.Error(err))
		return
	}

	for _, msg := range messages {
		s.sendMessage(ctx, msg)
	}
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) {
	fields := []zap.Field{zap.Int64("id", msg.ID), zap.String("topic", msg.Topic), zap.String("key", msg.MessageKey)}

	err := s.publisher.SendMessage(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		if updateErr := s.outboxRepo.UpdateStatus(ctx, msg.ID, model.OutboxStatusSent); updateErr != nil {
			s.logger.Error("更新消息状态失败", append(fields, zap.Error(updateErr))...)
			return
		}
		s.logger.Debug("消息发送成功", fields...)
		return
	}

	s.logger.Warn("消息发送失败", append(fields, zap.Error(err))...)

	if msg.RetryCount+1 >= s.maxRetryCount {
		if err := s.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
			s.logger.Error("标记消息失败状态失败", append(fields, zap.Error(err))...)
		} else {
			s.logger.Error("消息超过最大重试次数，标记为失败", fields...)
		}
		return
	}

	if err := s.outboxRepo.IncrementRetryCount(ctx, msg.ID); err != nil {
		s.logger.Error("增加重试次数失败", append(fields, zap.Error(err))...)
	}
}
