package service

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	"github.com/qaznet/partner-core/internal/config"
	"github.com/qaznet/partner-core/internal/constants"
	"github.com/qaznet/partner-core/internal/logger"
	"github.com/qaznet/partner-core/internal/models"
	"github.com/qaznet/partner-core/internal/network"
	"github.com/qaznet/partner-core/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	referralCodeLength   = 8
	referralCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// MemberService 合伙人账号与绑定服务
type MemberService struct {
	members  repository.MemberRepository
	networks repository.NetworkRepository
	cfg      *config.Config
}

// NewMemberService 创建合伙人服务
func NewMemberService(members repository.MemberRepository, networks repository.NetworkRepository, cfg *config.Config) *MemberService {
	return &MemberService{members: members, networks: networks, cfg: cfg}
}

// MemberJWTClaims 合伙人 JWT 声明
type MemberJWTClaims struct {
	MemberID uint   `json:"member_id"`
	Phone    string `json:"phone"`
	jwt.RegisteredClaims
}

// RegisterInput 注册参数
type RegisterInput struct {
	Phone        string
	Name         string
	Password     string
	ReferralCode string // 推荐人推荐码，注册即在两套网络绑定
}

// Register 注册合伙人并绑定推荐人。
// 绑定在注册事务内完成，两套网络各落一条绑定记录。
func (s *MemberService) Register(input RegisterInput) (*models.Member, error) {
	phone := strings.TrimSpace(input.Phone)
	name := strings.TrimSpace(input.Name)
	if phone == "" || name == "" || len(input.Password) < 6 {
		return nil, ErrValidation
	}

	existing, err := s.members.GetByPhone(phone)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrPhoneTaken
	}

	var sponsor *models.Member
	if code := strings.TrimSpace(input.ReferralCode); code != "" {
		sponsor, err = s.members.GetByReferralCode(code)
		if err != nil {
			return nil, err
		}
		if sponsor == nil {
			return nil, ErrReferralCodeInvalid
		}
		if sponsor.Status != constants.MemberStatusActive {
			return nil, ErrMemberDisabled
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	code, err := s.generateReferralCode()
	if err != nil {
		return nil, err
	}

	member := &models.Member{
		Phone:              phone,
		Name:               name,
		PasswordHash:       string(hash),
		ReferralCode:       code,
		Status:             constants.MemberStatusActive,
		SubscriptionStatus: constants.SubscriptionStatusNever,
	}
	err = s.members.Transaction(func(tx *gorm.DB) error {
		memberRepo := s.members.WithTx(tx)
		networkRepo := s.networks.WithTx(tx)
		if err := memberRepo.Create(member); err != nil {
			if isUniqueViolation(err) {
				return ErrPhoneTaken
			}
			return err
		}
		if sponsor == nil {
			return nil
		}
		now := time.Now()
		for _, structure := range []string{constants.StructureSubscription, constants.StructureProduct} {
			link := &models.SponsorLink{
				MemberID:      member.ID,
				SponsorID:     sponsor.ID,
				StructureType: structure,
				BoundAt:       now,
				BoundBy:       "referral",
			}
			if err := networkRepo.CreateLink(link); err != nil {
				if isUniqueViolation(err) {
					return ErrAlreadyBound
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("member_registered", "member_id", member.ID, "has_sponsor", sponsor != nil)
	return member, nil
}

// BindSponsor 为已注册合伙人补绑推荐人（每结构只能绑一次）
func (s *MemberService) BindSponsor(memberID uint, referralCode, structure string) error {
	if !constants.IsValidStructure(structure) {
		return ErrInvalidStructure
	}
	member, err := s.members.GetByID(memberID)
	if err != nil {
		return err
	}
	if member == nil {
		return ErrNotFound
	}
	sponsor, err := s.members.GetByReferralCode(strings.TrimSpace(referralCode))
	if err != nil {
		return err
	}
	if sponsor == nil {
		return ErrReferralCodeInvalid
	}
	if sponsor.ID == memberID {
		return ErrSelfReferral
	}

	existing, err := s.networks.GetLink(memberID, structure)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrAlreadyBound
	}

	resolver := network.NewResolver(s.networks)
	cyclic, err := resolver.WouldCreateCycle(memberID, sponsor.ID, structure)
	if err != nil {
		return err
	}
	if cyclic {
		return ErrCyclicSponsor
	}

	link := &models.SponsorLink{
		MemberID:      memberID,
		SponsorID:     sponsor.ID,
		StructureType: structure,
		BoundAt:       time.Now(),
		BoundBy:       "referral",
	}
	if err := s.networks.CreateLink(link); err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyBound
		}
		return err
	}
	logger.Infow("sponsor_bound", "member_id", memberID, "sponsor_id", sponsor.ID, "structure", structure)
	return nil
}

// OverrideProductSponsor 管理员改写消费网络上级。
// 仅消费网络允许改写；订阅网络绑定不可变更。
func (s *MemberService) OverrideProductSponsor(memberID, newSponsorID, adminID uint) error {
	member, err := s.members.GetByID(memberID)
	if err != nil {
		return err
	}
	if member == nil {
		return ErrNotFound
	}
	sponsor, err := s.members.GetByID(newSponsorID)
	if err != nil {
		return err
	}
	if sponsor == nil {
		return ErrNotFound
	}
	if sponsor.ID == memberID {
		return ErrSelfReferral
	}

	resolver := network.NewResolver(s.networks)
	cyclic, err := resolver.WouldCreateCycle(memberID, newSponsorID, constants.StructureProduct)
	if err != nil {
		return err
	}
	if cyclic {
		return ErrCyclicSponsor
	}

	return s.networks.Transaction(func(tx *gorm.DB) error {
		networkRepo := s.networks.WithTx(tx)
		current, err := networkRepo.GetLink(memberID, constants.StructureProduct)
		if err != nil {
			return err
		}
		if current != nil && current.SponsorID == newSponsorID {
			return nil
		}
		// 追加新绑定覆盖旧记录，历史时点的归属保持可回放
		link := &models.SponsorLink{
			MemberID:      memberID,
			SponsorID:     newSponsorID,
			StructureType: constants.StructureProduct,
			BoundAt:       time.Now(),
			BoundBy:       "admin",
		}
		if err := networkRepo.CreateLink(link); err != nil {
			return err
		}
		logger.Warnw("product_sponsor_overridden",
			"member_id", memberID,
			"sponsor_id", newSponsorID,
			"admin_id", adminID,
		)
		return nil
	})
}

// Login 合伙人登录，返回 JWT
func (s *MemberService) Login(phone, password string) (string, *models.Member, error) {
	member, err := s.members.GetByPhone(strings.TrimSpace(phone))
	if err != nil {
		return "", nil, err
	}
	if member == nil {
		return "", nil, ErrUnauthorized
	}
	if member.Status != constants.MemberStatusActive {
		return "", nil, ErrMemberDisabled
	}
	if err := bcrypt.CompareHashAndPassword([]byte(member.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrUnauthorized
	}

	now := time.Now()
	expiresAt := now.Add(time.Duration(s.cfg.PartnerJWT.ExpireHours) * time.Hour)
	claims := MemberJWTClaims{
		MemberID: member.ID,
		Phone:    member.Phone,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.cfg.PartnerJWT.SecretKey))
	if err != nil {
		return "", nil, err
	}

	if err := s.members.UpdateFields(member.ID, map[string]interface{}{"last_login_at": now}); err != nil {
		logger.Warnw("member_last_login_update_failed", "member_id", member.ID, "error", err)
	}
	return tokenString, member, nil
}

// ParseMemberJWT 解析合伙人 JWT
func (s *MemberService) ParseMemberJWT(tokenString string) (*MemberJWTClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &MemberJWTClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.PartnerJWT.SecretKey), nil
	})
	if err != nil {
		return nil, ErrUnauthorized
	}
	if parsed, ok := token.Claims.(*MemberJWTClaims); ok && token.Valid {
		return parsed, nil
	}
	return nil, ErrUnauthorized
}

// GetMember 获取合伙人
func (s *MemberService) GetMember(memberID uint) (*models.Member, error) {
	member, err := s.members.GetByID(memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrNotFound
	}
	return member, nil
}

// ListMembers 分页查询合伙人
func (s *MemberService) ListMembers(filter repository.MemberListFilter) ([]models.Member, int64, error) {
	return s.members.List(filter)
}

// SetMemberStatus 管理员启停合伙人账号
func (s *MemberService) SetMemberStatus(memberID uint, status string, adminID uint) error {
	if status != constants.MemberStatusActive && status != constants.MemberStatusDisabled {
		return ErrValidation
	}
	member, err := s.members.GetByID(memberID)
	if err != nil {
		return err
	}
	if member == nil {
		return ErrNotFound
	}
	if err := s.members.UpdateFields(memberID, map[string]interface{}{"status": status}); err != nil {
		return err
	}
	logger.Warnw("member_status_changed", "member_id", memberID, "status", status, "admin_id", adminID)
	return nil
}

// SetMarketingExempt 管理员设置市场赠送标记
func (s *MemberService) SetMarketingExempt(memberID uint, exempt bool, adminID uint) error {
	member, err := s.members.GetByID(memberID)
	if err != nil {
		return err
	}
	if member == nil {
		return ErrNotFound
	}
	if err := s.members.UpdateFields(memberID, map[string]interface{}{"marketing_exempt": exempt}); err != nil {
		return err
	}
	logger.Warnw("member_marketing_exempt_changed", "member_id", memberID, "exempt", exempt, "admin_id", adminID)
	return nil
}

// SetMonthlyActive 更新当月活跃标记
func (s *MemberService) SetMonthlyActive(memberID uint, active bool) error {
	member, err := s.members.GetByID(memberID)
	if err != nil {
		return err
	}
	if member == nil {
		return ErrNotFound
	}
	return s.members.UpdateFields(memberID, map[string]interface{}{"monthly_active": active})
}

// generateReferralCode 生成未占用的推荐码
func (s *MemberService) generateReferralCode() (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		buf := make([]byte, referralCodeLength)
		for i := range buf {
			index, err := rand.Int(rand.Reader, big.NewInt(int64(len(referralCodeAlphabet))))
			if err != nil {
				return "", err
			}
			buf[i] = referralCodeAlphabet[index.Int64()]
		}
		code := string(buf)
		existing, err := s.members.GetByReferralCode(code)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return code, nil
		}
	}
	return "", ErrConcurrencyRetry
}
