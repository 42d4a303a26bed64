package provider

import (
	"github.com/qaznet/partner-core/internal/cache"
	"github.com/qaznet/partner-core/internal/config"
	"github.com/qaznet/partner-core/internal/logger"
	"github.com/qaznet/partner-core/internal/models"
	"github.com/qaznet/partner-core/internal/network"
	"github.com/qaznet/partner-core/internal/queue"
	"github.com/qaznet/partner-core/internal/repository"
	"github.com/qaznet/partner-core/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	AdminRepo    repository.AdminRepository
	MemberRepo   repository.MemberRepository
	NetworkRepo  repository.NetworkRepository
	RuleRepo     repository.RuleRepository
	EventRepo    repository.SourceEventRepository
	LedgerRepo   repository.LedgerRepository
	WithdrawRepo repository.WithdrawRepository

	// Services
	Resolver          *network.Resolver
	AdminService      *service.AdminService
	MemberService     *service.MemberService
	Evaluator         *service.EligibilityEvaluator
	BalanceService    *service.BalanceService
	CommissionService *service.CommissionService
	ReconcileService  *service.ReconcileService
	StatsService      *service.StatsService
	WithdrawService   *service.WithdrawService
	RuleService       *service.RuleService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}
	c.initRepositories()
	c.initServices()
	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.AdminRepo = repository.NewAdminRepository(db)
	c.MemberRepo = repository.NewMemberRepository(db)
	c.NetworkRepo = repository.NewNetworkRepository(db)
	c.RuleRepo = repository.NewRuleRepository(db)
	c.EventRepo = repository.NewSourceEventRepository(db)
	c.LedgerRepo = repository.NewLedgerRepository(db)
	c.WithdrawRepo = repository.NewWithdrawRepository(db)
}

func (c *Container) initServices() {
	c.Resolver = network.NewResolver(c.NetworkRepo)
	c.AdminService = service.NewAdminService(c.AdminRepo, c.Config)
	c.MemberService = service.NewMemberService(c.MemberRepo, c.NetworkRepo, c.Config)
	c.Evaluator = service.NewEligibilityEvaluator(c.EventRepo, c.NetworkRepo)
	c.BalanceService = service.NewBalanceService(c.MemberRepo, c.LedgerRepo, c.WithdrawRepo, c.EventRepo)

	var enqueuer service.DistributionEnqueuer
	if c.QueueClient.Enabled() {
		enqueuer = c.QueueClient
	}
	c.CommissionService = service.NewCommissionService(
		c.EventRepo,
		c.MemberRepo,
		c.NetworkRepo,
		c.LedgerRepo,
		c.RuleRepo,
		c.Evaluator,
		c.BalanceService,
		c.Config.Commission,
		enqueuer,
	)
	c.ReconcileService = service.NewReconcileService(
		c.EventRepo,
		c.LedgerRepo,
		c.NetworkRepo,
		c.CommissionService,
		c.Config.Commission,
	)
	c.StatsService = service.NewStatsService(
		c.MemberRepo,
		c.NetworkRepo,
		c.LedgerRepo,
		c.RuleRepo,
		c.EventRepo,
		c.Evaluator,
	)
	c.WithdrawService = service.NewWithdrawService(c.WithdrawRepo, c.MemberRepo, c.BalanceService, c.Config.Withdraw)
	c.RuleService = service.NewRuleService(c.RuleRepo)
}
