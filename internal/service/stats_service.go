package service

import (
	"time"

	"github.com/qaznet/partner-core/internal/constants"
	"github.com/qaznet/partner-core/internal/models"
	"github.com/qaznet/partner-core/internal/network"
	"github.com/qaznet/partner-core/internal/repository"

	"github.com/shopspring/decimal"
)

// StatsService 网络与佣金统计服务
type StatsService struct {
	members   repository.MemberRepository
	networks  repository.NetworkRepository
	ledger    repository.LedgerRepository
	rules     repository.RuleRepository
	events    repository.SourceEventRepository
	evaluator *EligibilityEvaluator
}

// NewStatsService 创建统计服务
func NewStatsService(
	members repository.MemberRepository,
	networks repository.NetworkRepository,
	ledger repository.LedgerRepository,
	rules repository.RuleRepository,
	events repository.SourceEventRepository,
	evaluator *EligibilityEvaluator,
) *StatsService {
	return &StatsService{
		members:   members,
		networks:  networks,
		ledger:    ledger,
		rules:     rules,
		events:    events,
		evaluator: evaluator,
	}
}

// LevelStats 单层级统计
type LevelStats struct {
	Level             int             `json:"level"`
	Percent           decimal.Decimal `json:"percent"`            // 当前生效比例
	Earned            int64           `json:"earned"`             // 已计提佣金（整数坚戈）
	Frozen            int64           `json:"frozen"`             // 冻结佣金
	Volume            int64           `json:"volume"`             // 该层级事件流水
	PartnersCount     int64           `json:"partners_count"`     // 该层级人数
	Unlocked          bool            `json:"unlocked"`           // 是否已解锁
	UnlockRequirement int             `json:"unlock_requirement"` // 解锁所需直推人数（已解锁为 0）
}

// StructureStats 结构维度统计
type StructureStats struct {
	MemberID        uint         `json:"member_id"`
	StructureType   string       `json:"structure_type"`
	DirectReferrals int64        `json:"direct_referrals"`
	Levels          []LevelStats `json:"levels"`
}

// StructureStatsFor 合伙人在指定结构下的逐层统计
func (s *StatsService) StructureStatsFor(memberID uint, structure string, from, to *time.Time) (*StructureStats, error) {
	if !constants.IsValidStructure(structure) {
		return nil, ErrInvalidStructure
	}
	member, err := s.members.GetByID(memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrNotFound
	}

	now := time.Now()
	ruleSet, err := s.rules.ActiveRuleSetAt(structure, now)
	if err != nil {
		return nil, err
	}
	directCount, err := s.networks.CountDirectReferrals(memberID, structure)
	if err != nil {
		return nil, err
	}

	resolver := network.NewResolver(s.networks)
	resolved, err := resolver.Resolve(memberID, structure, constants.StructureMaxLevel(structure))
	if err != nil {
		return nil, err
	}
	partnersByLevel := make(map[int]int64)
	for _, item := range resolved.Members {
		partnersByLevel[item.Level]++
	}

	aggregates, err := s.ledger.AggregateByLevel(memberID, structure, from, to)
	if err != nil {
		return nil, err
	}
	aggregateByLevel := make(map[int]repository.LevelAggregate, len(aggregates))
	for _, aggregate := range aggregates {
		aggregateByLevel[aggregate.Level] = aggregate
	}

	unlockedLevel := constants.StructureMaxLevel(structure)
	if structure == constants.StructureSubscription {
		unlockedLevel, err = s.evaluator.UnlockedLevel(memberID, now)
		if err != nil {
			return nil, err
		}
	}

	stats := &StructureStats{
		MemberID:        memberID,
		StructureType:   structure,
		DirectReferrals: directCount,
		Levels:          make([]LevelStats, 0, constants.StructureMaxLevel(structure)),
	}
	for level := 1; level <= constants.StructureMaxLevel(structure); level++ {
		aggregate := aggregateByLevel[level]
		levelStats := LevelStats{
			Level:         level,
			Percent:       ruleSet[level],
			Earned:        aggregate.EarnedTotal,
			Frozen:        aggregate.FrozenTotal,
			Volume:        aggregate.VolumeTotal,
			PartnersCount: partnersByLevel[level],
			Unlocked:      level <= unlockedLevel,
		}
		if !levelStats.Unlocked {
			levelStats.UnlockRequirement = constants.SubscriptionUnlockThresholds[level]
		}
		stats.Levels = append(stats.Levels, levelStats)
	}
	return stats, nil
}

// NetworkMemberView 网络视图中的单个成员
type NetworkMemberView struct {
	MemberID              uint      `json:"member_id"`
	ParentPartnerID       uint      `json:"parent_partner_id"`
	Name                  string    `json:"name"`
	Phone                 string    `json:"phone"`
	ReferralCode          string    `json:"referral_code"`
	Level                 int       `json:"level"`
	BoundAt               time.Time `json:"bound_at"`
	SubscriptionStatus    string    `json:"subscription_status"`
	MonthlyActivationMet  bool      `json:"monthly_activation_met"`
	HasCommissionReceived bool      `json:"has_commission_received"`
	NoCommissionReason    string    `json:"no_commission_reason,omitempty"`
}

// NetworkView 合伙人网络视图
type NetworkView struct {
	RootID        uint                `json:"root_id"`
	StructureType string              `json:"structure_type"`
	CycleDetected bool                `json:"cycle_detected"`
	TotalMembers  int                 `json:"total_members"`
	Members       []NetworkMemberView `json:"members"`
}

// ResolveNetwork 展开合伙人网络并标注每个成员是否给根节点带来过佣金。
// 未带来佣金的成员附最近一次跳过原因标签。
func (s *StatsService) ResolveNetwork(rootID uint, structure string, maxLevels int) (*NetworkView, error) {
	if !constants.IsValidStructure(structure) {
		return nil, ErrInvalidStructure
	}
	root, err := s.members.GetByID(rootID)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, ErrNotFound
	}

	resolver := network.NewResolver(s.networks)
	resolved, err := resolver.Resolve(rootID, structure, maxLevels)
	if err != nil {
		return nil, err
	}

	view := &NetworkView{
		RootID:        rootID,
		StructureType: structure,
		CycleDetected: resolved.CycleDetected,
		TotalMembers:  len(resolved.Members),
		Members:       make([]NetworkMemberView, 0, len(resolved.Members)),
	}
	if len(resolved.Members) == 0 {
		return view, nil
	}

	memberIDs := make([]uint, 0, len(resolved.Members))
	for _, item := range resolved.Members {
		memberIDs = append(memberIDs, item.MemberID)
	}
	memberRows, err := s.members.GetBatch(memberIDs)
	if err != nil {
		return nil, err
	}

	receivedFrom, reasonFrom, err := s.commissionSourcesFor(rootID, structure)
	if err != nil {
		return nil, err
	}

	for _, item := range resolved.Members {
		row := memberRows[item.MemberID]
		memberView := NetworkMemberView{
			MemberID:              item.MemberID,
			ParentPartnerID:       item.SponsorID,
			Name:                  row.Name,
			Phone:                 row.Phone,
			ReferralCode:          row.ReferralCode,
			Level:                 item.Level,
			BoundAt:               item.BoundAt,
			SubscriptionStatus:    row.SubscriptionStatus,
			MonthlyActivationMet:  row.MonthlyActive,
			HasCommissionReceived: receivedFrom[item.MemberID],
		}
		if !memberView.HasCommissionReceived {
			memberView.NoCommissionReason = reasonFrom[item.MemberID]
		}
		view.Members = append(view.Members, memberView)
	}
	return view, nil
}

// commissionSourcesFor 统计根节点从哪些成员处收到过佣金，以及未收到者的跳过原因
func (s *StatsService) commissionSourcesFor(rootID uint, structure string) (map[uint]bool, map[uint]string, error) {
	received := make(map[uint]bool)
	reasons := make(map[uint]string)

	entries, _, err := s.ledger.ListEntries(repository.CommissionEntryListFilter{
		RecipientID:   rootID,
		StructureType: structure,
		Kind:          constants.CommissionKindLevel,
	})
	if err != nil {
		return nil, nil, err
	}
	for _, entry := range entries {
		if entry.Status == constants.CommissionStatusFailed {
			continue
		}
		received[entry.SourceEvent.MemberID] = true
	}

	skips, err := s.ledger.ListSkipsByRecipient(rootID, structure)
	if err != nil {
		return nil, nil, err
	}
	eventIDs := make([]uint, 0, len(skips))
	for _, skip := range skips {
		eventIDs = append(eventIDs, skip.SourceEventID)
	}
	events, err := s.events.GetBatch(eventIDs)
	if err != nil {
		return nil, nil, err
	}
	// ListSkipsByRecipient 按 id 倒序，首个命中即最近一次原因
	for _, skip := range skips {
		event, ok := events[skip.SourceEventID]
		if !ok {
			continue
		}
		if _, exists := reasons[event.MemberID]; !exists {
			reasons[event.MemberID] = skip.Reason
		}
	}
	return received, reasons, nil
}

// ListMemberCommissions 分页查询合伙人佣金台账
func (s *StatsService) ListMemberCommissions(filter repository.CommissionEntryListFilter) ([]models.CommissionEntry, int64, error) {
	return s.ledger.ListEntries(filter)
}

// ListMemberSkips 查询合伙人的跳过记录
func (s *StatsService) ListMemberSkips(memberID uint, structure string) ([]models.CommissionSkip, error) {
	return s.ledger.ListSkipsByRecipient(memberID, structure)
}
