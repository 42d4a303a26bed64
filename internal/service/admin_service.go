package service

import (
	"strings"
	"time"

	"github.com/qaznet/partner-core/internal/config"
	"github.com/qaznet/partner-core/internal/logger"
	"github.com/qaznet/partner-core/internal/models"
	"github.com/qaznet/partner-core/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AdminService 管理员认证服务
type AdminService struct {
	admins repository.AdminRepository
	cfg    *config.Config
}

// NewAdminService 创建管理员服务
func NewAdminService(admins repository.AdminRepository, cfg *config.Config) *AdminService {
	return &AdminService{admins: admins, cfg: cfg}
}

// AdminJWTClaims 管理员 JWT 声明
type AdminJWTClaims struct {
	AdminID      uint   `json:"admin_id"`
	Username     string `json:"username"`
	TokenVersion uint64 `json:"token_version"`
	jwt.RegisteredClaims
}

// Login 管理员登录，返回 JWT
func (s *AdminService) Login(username, password string) (string, *models.Admin, error) {
	admin, err := s.admins.GetByUsername(strings.TrimSpace(username))
	if err != nil {
		return "", nil, err
	}
	if admin == nil {
		return "", nil, ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrUnauthorized
	}

	now := time.Now()
	expiresAt := now.Add(time.Duration(s.cfg.JWT.ExpireHours) * time.Hour)
	claims := AdminJWTClaims{
		AdminID:      admin.ID,
		Username:     admin.Username,
		TokenVersion: admin.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.cfg.JWT.SecretKey))
	if err != nil {
		return "", nil, err
	}

	if err := s.admins.UpdateLastLogin(admin.ID, now); err != nil {
		logger.Warnw("admin_last_login_update_failed", "admin_id", admin.ID, "error", err)
	}
	return tokenString, admin, nil
}

// ParseAdminJWT 解析管理员 JWT 并校验 Token 版本
func (s *AdminService) ParseAdminJWT(tokenString string) (*AdminJWTClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &AdminJWTClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWT.SecretKey), nil
	})
	if err != nil {
		return nil, ErrUnauthorized
	}
	parsed, ok := token.Claims.(*AdminJWTClaims)
	if !ok || !token.Valid {
		return nil, ErrUnauthorized
	}

	admin, err := s.admins.GetByID(parsed.AdminID)
	if err != nil {
		return nil, err
	}
	if admin == nil {
		return nil, ErrUnauthorized
	}
	if admin.TokenVersion != parsed.TokenVersion {
		return nil, ErrUnauthorized
	}
	if admin.TokenInvalidBefore != nil && parsed.IssuedAt != nil && parsed.IssuedAt.Time.Before(*admin.TokenInvalidBefore) {
		return nil, ErrUnauthorized
	}
	return parsed, nil
}

// ChangePassword 修改管理员密码（旧 Token 全部失效）
func (s *AdminService) ChangePassword(adminID uint, oldPassword, newPassword string) error {
	if len(newPassword) < s.cfg.Security.PasswordPolicy.MinLength {
		return ErrValidation
	}
	admin, err := s.admins.GetByID(adminID)
	if err != nil {
		return err
	}
	if admin == nil {
		return ErrNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrUnauthorized
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.admins.UpdatePassword(adminID, string(hash))
}
