package worker

import (
	"context"
	"errors"

	"github.com/punchcard-next/internal/logger"
	"github.com/punchcard-next/internal/provider"
	"github.com/punchcard-next/internal/queue"
	"github.com/punchcard-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskCardCompleted, c.handleCardCompleted)
}

func (c *Consumer) handleCardCompleted(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_card_completed_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	payload, err := queue.ParseCardCompletedPayload(task)
	if err != nil {
		// 载荷无法解析时重试没有意义
		logger.Warnw("worker_card_completed_invalid_payload", "error", err)
		return errors.Join(err, asynq.SkipRetry)
	}
	if c.Container == nil || c.CardService == nil {
		logger.Warnw("worker_card_completed_skip_service_nil", "card_id", payload.CardID)
		return nil
	}
	marked, err := c.CardService.MarkCompleted(ctx, payload.CardID, payload.CompletedTime())
	if err != nil {
		if errors.Is(err, service.ErrCardNotFound) {
			logger.Debugw("worker_card_completed_skip_card_not_found", "card_id", payload.CardID)
			return nil
		}
		logger.Warnw("worker_card_completed_failed", "card_id", payload.CardID, "error", err)
		return err
	}
	if !marked {
		logger.Debugw("worker_card_completed_skip_noop", "card_id", payload.CardID)
	}
	return nil
}
