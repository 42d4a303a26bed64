package network

import (
	"errors"
	"time"

	"github.com/qaznet/partner-core/internal/constants"
	"github.com/qaznet/partner-core/internal/repository"
)

// ErrCycleDetected 推荐链存在环
var ErrCycleDetected = errors.New("network: cycle detected in sponsor chain")

// ResolvedMember 网络展开结果中的单个成员
type ResolvedMember struct {
	MemberID  uint      `json:"member_id"`  // 成员ID
	SponsorID uint      `json:"sponsor_id"` // 其上级ID
	Level     int       `json:"level"`      // 相对根节点的层级（1 为直推）
	BoundAt   time.Time `json:"bound_at"`   // 绑定时间
}

// ResolveResult 网络展开结果
type ResolveResult struct {
	RootID        uint             `json:"root_id"`        // 根节点合伙人ID
	StructureType string           `json:"structure_type"` // 网络结构类型
	MaxLevels     int              `json:"max_levels"`     // 展开层级上限
	CycleDetected bool             `json:"cycle_detected"` // 是否发现环（数据异常）
	Members       []ResolvedMember `json:"members"`        // 成员列表（层级升序、绑定时间升序，每人仅出现一次）
}

// Ancestor 向上追溯得到的上级
type Ancestor struct {
	MemberID uint      // 上级合伙人ID
	Level    int       // 相对起点的层级（1 为直接推荐人）
	BoundAt  time.Time // 下级绑定到该上级的时间
}

// Resolver 推荐网络解析器
type Resolver struct {
	networks repository.NetworkRepository
}

// NewResolver 创建网络解析器
func NewResolver(networks repository.NetworkRepository) *Resolver {
	return &Resolver{networks: networks}
}

// Resolve 按层级展开合伙人的下级网络。
// 逐层 BFS，访问集合保证每个成员只出现一次；重复出现说明数据有环，
// 结果上打 CycleDetected 标记但不中断展开。
func (r *Resolver) Resolve(rootID uint, structure string, maxLevels int) (*ResolveResult, error) {
	limit := constants.StructureMaxLevel(structure)
	if maxLevels <= 0 || maxLevels > limit {
		maxLevels = limit
	}
	result := &ResolveResult{
		RootID:        rootID,
		StructureType: structure,
		MaxLevels:     maxLevels,
		Members:       []ResolvedMember{},
	}
	if rootID == 0 {
		return result, nil
	}

	visited := map[uint]bool{rootID: true}
	frontier := []uint{rootID}
	for level := 1; level <= maxLevels && len(frontier) > 0; level++ {
		links, err := r.networks.ListChildren(frontier, structure)
		if err != nil {
			return nil, err
		}
		next := make([]uint, 0, len(links))
		for _, link := range links {
			if visited[link.MemberID] {
				result.CycleDetected = true
				continue
			}
			visited[link.MemberID] = true
			result.Members = append(result.Members, ResolvedMember{
				MemberID:  link.MemberID,
				SponsorID: link.SponsorID,
				Level:     level,
				BoundAt:   link.BoundAt,
			})
			next = append(next, link.MemberID)
		}
		frontier = next
	}
	return result, nil
}

// AncestorChain 自下而上追溯推荐链（分佣路径）。
// 推荐链成环直接返回 ErrCycleDetected，由调用方决定告警与处置。
func (r *Resolver) AncestorChain(memberID uint, structure string, maxLevels int) ([]Ancestor, error) {
	return r.AncestorChainAt(memberID, structure, time.Now(), maxLevels)
}

// AncestorChainAt 追溯指定时点已生效的推荐链
func (r *Resolver) AncestorChainAt(memberID uint, structure string, at time.Time, maxLevels int) ([]Ancestor, error) {
	limit := constants.StructureMaxLevel(structure)
	if maxLevels <= 0 || maxLevels > limit {
		maxLevels = limit
	}
	if memberID == 0 {
		return nil, nil
	}

	visited := map[uint]bool{memberID: true}
	chain := make([]Ancestor, 0, maxLevels)
	current := memberID
	for level := 1; level <= maxLevels; level++ {
		link, err := r.networks.GetSponsorLinkAt(current, structure, at)
		if err != nil {
			return nil, err
		}
		if link == nil {
			break
		}
		if visited[link.SponsorID] {
			return nil, ErrCycleDetected
		}
		visited[link.SponsorID] = true
		chain = append(chain, Ancestor{
			MemberID: link.SponsorID,
			Level:    level,
			BoundAt:  link.BoundAt,
		})
		current = link.SponsorID
	}
	return chain, nil
}

// WouldCreateCycle 判断将 memberID 绑定到 sponsorID 名下是否会形成环。
// 沿 sponsorID 的上级链走到头，途中遇到 memberID 即成环（含自推）。
func (r *Resolver) WouldCreateCycle(memberID, sponsorID uint, structure string) (bool, error) {
	if memberID == 0 || sponsorID == 0 {
		return false, nil
	}
	if memberID == sponsorID {
		return true, nil
	}
	visited := map[uint]bool{sponsorID: true}
	current := sponsorID
	for {
		link, err := r.networks.GetLink(current, structure)
		if err != nil {
			return false, err
		}
		if link == nil {
			return false, nil
		}
		if link.SponsorID == memberID {
			return true, nil
		}
		if visited[link.SponsorID] {
			// 既有数据已成环，保守拒绝新绑定
			return true, nil
		}
		visited[link.SponsorID] = true
		current = link.SponsorID
	}
}
