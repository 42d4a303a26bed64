package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/qaznet/partner-core/internal/logger"
	"github.com/qaznet/partner-core/internal/provider"
	"github.com/qaznet/partner-core/internal/queue"
	"github.com/qaznet/partner-core/internal/service"

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
	mux.HandleFunc(queue.TaskCommissionDistribute, c.handleCommissionDistribute)
	mux.HandleFunc(queue.TaskEventReverse, c.handleEventReverse)
}

func (c *Consumer) handleCommissionDistribute(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_commission_distribute_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.CommissionDistributePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_commission_distribute_unmarshal_failed", "error", err)
		return err
	}
	if payload.SourceEventID == 0 {
		logger.Debugw("worker_commission_distribute_skip_invalid_payload", "source_event_id", payload.SourceEventID)
		return nil
	}
	if c.CommissionService == nil {
		logger.Warnw("worker_commission_distribute_skip_service_nil", "source_event_id", payload.SourceEventID)
		return nil
	}
	if _, err := c.CommissionService.DistributeSourceEvent(payload.SourceEventID); err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			logger.Debugw("worker_commission_distribute_skip_event_not_found", "source_event_id", payload.SourceEventID)
			return nil
		case errors.Is(err, service.ErrEventReversed):
			logger.Debugw("worker_commission_distribute_skip_event_reversed", "source_event_id", payload.SourceEventID)
			return nil
		default:
			logger.Warnw("worker_commission_distribute_failed", "source_event_id", payload.SourceEventID, "error", err)
			return err
		}
	}
	return nil
}

func (c *Consumer) handleEventReverse(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_event_reverse_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.EventReversePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_event_reverse_unmarshal_failed", "error", err)
		return err
	}
	if payload.SourceEventID == 0 {
		logger.Debugw("worker_event_reverse_skip_invalid_payload", "source_event_id", payload.SourceEventID)
		return nil
	}
	if c.CommissionService == nil {
		logger.Warnw("worker_event_reverse_skip_service_nil", "source_event_id", payload.SourceEventID)
		return nil
	}
	if err := c.CommissionService.ReverseSourceEvent(payload.SourceEventID, payload.Note); err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			logger.Debugw("worker_event_reverse_skip_event_not_found", "source_event_id", payload.SourceEventID)
			return nil
		case errors.Is(err, service.ErrEventReversed):
			logger.Debugw("worker_event_reverse_skip_already_reversed", "source_event_id", payload.SourceEventID)
			return nil
		default:
			logger.Warnw("worker_event_reverse_failed", "source_event_id", payload.SourceEventID, "error", err)
			return err
		}
	}
	return nil
}
