package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/punchcard-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskCardCompleted 集点卡集满记账任务
	TaskCardCompleted = constants.TaskCardCompleted
)

// CardCompletedPayload 集满记账任务载荷
type CardCompletedPayload struct {
	CardID      uint  `json:"card_id"`
	CompletedAt int64 `json:"completed_at"` // 毫秒时间戳
}

// CompletedTime 集满时间，未携带时返回零值
func (p CardCompletedPayload) CompletedTime() time.Time {
	if p.CompletedAt <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(p.CompletedAt)
}

// NewCardCompletedTask 创建集满记账任务
func NewCardCompletedTask(payload CardCompletedPayload) (*asynq.Task, error) {
	if payload.CardID == 0 {
		return nil, errors.New("invalid card id")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCardCompleted, body), nil
}

// ParseCardCompletedPayload 解析集满记账任务载荷
func ParseCardCompletedPayload(task *asynq.Task) (CardCompletedPayload, error) {
	var payload CardCompletedPayload
	if task == nil {
		return payload, errors.New("nil task")
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, err
	}
	if payload.CardID == 0 {
		return payload, errors.New("invalid card id")
	}
	return payload, nil
}

func cardCompletedTaskID(cardID uint) string {
	return fmt.Sprintf("%s:%d", TaskCardCompleted, cardID)
}
