package queue

import (
	"errors"
	"fmt"
	"strings"

	"github.com/qaznet/partner-core/internal/config"
	"github.com/qaznet/partner-core/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// DefaultQueue 默认队列名称
	DefaultQueue = constants.QueueDefault
	// CriticalQueue 高优先级队列名称（冲正任务）
	CriticalQueue = constants.QueueCritical
)

// ErrQueueDisabled 队列未启用（调用方可降级为同步处理）
var ErrQueueDisabled = errors.New("queue disabled")

// Client 队列客户端封装
type Client struct {
	client       *asynq.Client
	enabled      bool
	defaultQueue string
}

// NewClient 创建队列客户端
func NewClient(cfg *config.QueueConfig) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return &Client{enabled: false, defaultQueue: DefaultQueue}, nil
	}
	opt := buildRedisOpt(cfg)
	client := asynq.NewClient(opt)
	return &Client{
		client:       client,
		enabled:      true,
		defaultQueue: DefaultQueue,
	}, nil
}

// Enabled 判断是否启用
func (c *Client) Enabled() bool {
	return c != nil && c.enabled && c.client != nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueDistribute 推送事件分佣任务
func (c *Client) EnqueueDistribute(eventID uint) error {
	if !c.Enabled() {
		return ErrQueueDisabled
	}
	task, err := NewCommissionDistributeTask(CommissionDistributePayload{SourceEventID: eventID})
	if err != nil {
		return err
	}
	_, err = c.client.Enqueue(task, asynq.Queue(c.defaultQueue), asynq.MaxRetry(5))
	return err
}

// EnqueueReverse 推送事件冲正任务
func (c *Client) EnqueueReverse(eventID uint) error {
	return c.EnqueueReverseWithNote(eventID, "")
}

// EnqueueReverseWithNote 推送带说明的事件冲正任务
func (c *Client) EnqueueReverseWithNote(eventID uint, note string) error {
	if !c.Enabled() {
		return ErrQueueDisabled
	}
	task, err := NewEventReverseTask(EventReversePayload{SourceEventID: eventID, Note: note})
	if err != nil {
		return err
	}
	_, err = c.client.Enqueue(task, asynq.Queue(CriticalQueue), asynq.MaxRetry(5))
	return err
}

// BuildServerConfig 生成队列服务配置
func BuildServerConfig(cfg *config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	opt := buildRedisOpt(cfg)
	concurrency := 10
	if cfg != nil && cfg.Concurrency > 0 {
		concurrency = cfg.Concurrency
	}
	queues := map[string]int{DefaultQueue: 10, CriticalQueue: 5}
	if cfg != nil && len(cfg.Queues) > 0 {
		queues = cfg.Queues
	}
	return opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      queues,
	}
}

func buildRedisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	host := "127.0.0.1"
	port := 6379
	password := ""
	db := 0
	if cfg != nil {
		if strings.TrimSpace(cfg.Host) != "" {
			host = strings.TrimSpace(cfg.Host)
		}
		if cfg.Port > 0 {
			port = cfg.Port
		}
		password = cfg.Password
		db = cfg.DB
	}
	return asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	}
}
