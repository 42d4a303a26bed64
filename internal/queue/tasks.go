package queue

import (
	"encoding/json"

	"github.com/qaznet/partner-core/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskCommissionDistribute 事件分佣任务
	TaskCommissionDistribute = constants.TaskCommissionDistribute
	// TaskEventReverse 事件冲正任务
	TaskEventReverse = constants.TaskEventReverse
)

// CommissionDistributePayload 分佣任务载荷
type CommissionDistributePayload struct {
	SourceEventID uint `json:"source_event_id"`
}

// EventReversePayload 冲正任务载荷
type EventReversePayload struct {
	SourceEventID uint   `json:"source_event_id"`
	Note          string `json:"note"`
}

// NewCommissionDistributeTask 创建分佣任务
func NewCommissionDistributeTask(payload CommissionDistributePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCommissionDistribute, body), nil
}

// NewEventReverseTask 创建冲正任务
func NewEventReverseTask(payload EventReversePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEventReverse, body), nil
}
