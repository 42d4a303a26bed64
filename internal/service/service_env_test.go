package service

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/qaznet/partner-core/internal/config"
	"github.com/qaznet/partner-core/internal/constants"
	"github.com/qaznet/partner-core/internal/models"
	"github.com/qaznet/partner-core/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var testSeq atomic.Int64

// svcTestEnv 服务层测试环境：内存库 + 全套仓储与服务
type svcTestEnv struct {
	db          *gorm.DB
	members     repository.MemberRepository
	networks    repository.NetworkRepository
	events      repository.SourceEventRepository
	ledger      repository.LedgerRepository
	rules       repository.RuleRepository
	withdraws   repository.WithdrawRepository
	evaluator   *EligibilityEvaluator
	balances    *BalanceService
	commissions *CommissionService
	reconcile   *ReconcileService
}

func newServiceTestEnv(t *testing.T, cfg config.CommissionConfig) *svcTestEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:service_test_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), testSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Admin{},
		&models.Member{},
		&models.SponsorLink{},
		&models.CommissionRule{},
		&models.SourceEvent{},
		&models.CommissionEntry{},
		&models.CommissionSkip{},
		&models.WithdrawRequest{},
		&models.BalanceAdjustment{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	env := &svcTestEnv{
		db:        db,
		members:   repository.NewMemberRepository(db),
		networks:  repository.NewNetworkRepository(db),
		events:    repository.NewSourceEventRepository(db),
		ledger:    repository.NewLedgerRepository(db),
		rules:     repository.NewRuleRepository(db),
		withdraws: repository.NewWithdrawRepository(db),
	}
	env.evaluator = NewEligibilityEvaluator(env.events, env.networks)
	env.balances = NewBalanceService(env.members, env.ledger, env.withdraws, env.events)
	env.commissions = NewCommissionService(
		env.events, env.members, env.networks, env.ledger, env.rules,
		env.evaluator, env.balances, cfg, nil,
	)
	env.reconcile = NewReconcileService(env.events, env.ledger, env.networks, env.commissions, cfg)
	return env
}

func (env *svcTestEnv) createMember(t *testing.T, name string) *models.Member {
	t.Helper()
	seq := testSeq.Add(1)
	member := &models.Member{
		Phone:              fmt.Sprintf("+7701%07d", seq),
		Name:               name,
		PasswordHash:       "hash",
		ReferralCode:       fmt.Sprintf("CODE%04d", seq),
		Status:             constants.MemberStatusActive,
		SubscriptionStatus: constants.SubscriptionStatusNever,
	}
	if err := env.db.Create(member).Error; err != nil {
		t.Fatalf("create member %s failed: %v", name, err)
	}
	return member
}

func (env *svcTestEnv) linkSponsor(t *testing.T, memberID, sponsorID uint, structure string, boundAt time.Time) {
	t.Helper()
	link := models.SponsorLink{
		MemberID:      memberID,
		SponsorID:     sponsorID,
		StructureType: structure,
		BoundAt:       boundAt,
		BoundBy:       "referral",
	}
	if err := env.db.Create(&link).Error; err != nil {
		t.Fatalf("link %d -> %d failed: %v", memberID, sponsorID, err)
	}
}

// addSubscriptionEvent 直接落一条订阅事件，不触发分佣（用于构造覆盖状态）
func (env *svcTestEnv) addSubscriptionEvent(t *testing.T, memberID uint, occurredAt time.Time, periodDays int) *models.SourceEvent {
	t.Helper()
	event := &models.SourceEvent{
		EventNo:       fmt.Sprintf("SUB-%d", testSeq.Add(1)),
		MemberID:      memberID,
		EventType:     constants.SourceEventTypeSubscription,
		StructureType: constants.StructureSubscription,
		Amount:        10000,
		PeriodDays:    periodDays,
		Status:        constants.SourceEventStatusRecorded,
		OccurredAt:    occurredAt,
	}
	if err := env.db.Create(event).Error; err != nil {
		t.Fatalf("create subscription event failed: %v", err)
	}
	return event
}

func (env *svcTestEnv) seedRules(t *testing.T, structure string, effectiveFrom time.Time, percents map[int]string) {
	t.Helper()
	for level, percent := range percents {
		rule := models.CommissionRule{
			StructureType: structure,
			Level:         level,
			Percent:       decimal.RequireFromString(percent),
			EffectiveFrom: effectiveFrom,
		}
		if err := env.db.Create(&rule).Error; err != nil {
			t.Fatalf("seed rule L%d failed: %v", level, err)
		}
	}
}

func (env *svcTestEnv) countEntries(t *testing.T, eventID uint) int64 {
	t.Helper()
	var count int64
	if err := env.db.Model(&models.CommissionEntry{}).Where("source_event_id = ?", eventID).Count(&count).Error; err != nil {
		t.Fatalf("count entries failed: %v", err)
	}
	return count
}
