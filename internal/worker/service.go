package worker

import (
	"context"
	"errors"
	"time"

	"github.com/qaznet/partner-core/internal/config"
	"github.com/qaznet/partner-core/internal/logger"
	"github.com/qaznet/partner-core/internal/queue"

	"github.com/hibiken/asynq"
)

const defaultSweepInterval = time.Minute

// Service 异步队列服务
type Service struct {
	name          string
	server        *asynq.Server
	mux           *asynq.ServeMux
	consumer      *Consumer
	sweepInterval time.Duration
}

// NewService 创建异步队列服务
func NewService(cfg *config.Config, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Queue.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(&cfg.Queue)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	interval := defaultSweepInterval
	if cfg.Commission.ThawSweepSeconds > 0 {
		interval = time.Duration(cfg.Commission.ThawSweepSeconds) * time.Second
	}
	return &Service{
		name:          "worker",
		server:        server,
		mux:           mux,
		consumer:      consumer,
		sweepInterval: interval,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.BalanceService != nil {
		go s.runLedgerSweepLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// runLedgerSweepLoop 周期处理待确认到账与冻结到期解冻
func (s *Service) runLedgerSweepLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.BalanceService == nil {
		return
	}
	runOnce := func() {
		now := time.Now()
		if _, err := s.consumer.BalanceService.ConfirmDueCommissions(now); err != nil {
			logger.Warnw("worker_confirm_due_failed", "error", err)
		}
		if _, err := s.consumer.BalanceService.ThawDueCommissions(now); err != nil {
			logger.Warnw("worker_thaw_due_failed", "error", err)
		}
	}
	runOnce()

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
