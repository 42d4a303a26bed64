package main

import (
	"fmt"
	"time"

	"github.com/qaznet/partner-core/internal/config"
	"github.com/qaznet/partner-core/internal/constants"
	"github.com/qaznet/partner-core/internal/logger"
	"github.com/qaznet/partner-core/internal/models"
	"github.com/qaznet/partner-core/internal/repository"
	"github.com/qaznet/partner-core/internal/service"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 默认管理员
	if err := models.InitDefaultAdmin("", ""); err != nil {
		stdLog.Printf("Failed to init default admin: %v", err)
	}

	// 默认佣金规则（空表时写入）
	ruleService := service.NewRuleService(repository.NewRuleRepository(models.DB))
	if err := ruleService.SeedDefaultRules(time.Now()); err != nil {
		stdLog.Printf("Failed to seed commission rules: %v", err)
	} else {
		stdLog.Println("Seeded default commission rules")
	}

	// 演示合伙人网络：root 推荐 5 个直推，第一个直推再推荐 2 个
	paidUntil := time.Now().AddDate(0, 1, 0)
	demoMembers := []struct {
		Phone        string
		Name         string
		ReferralCode string
		Sponsor      string // 推荐人手机号，空为根
		Active       bool
	}{
		{Phone: "+77010000001", Name: "Демо Партнёр 1", ReferralCode: "DEMO0001", Sponsor: "", Active: true},
		{Phone: "+77010000002", Name: "Демо Партнёр 2", ReferralCode: "DEMO0002", Sponsor: "+77010000001", Active: true},
		{Phone: "+77010000003", Name: "Демо Партнёр 3", ReferralCode: "DEMO0003", Sponsor: "+77010000001", Active: true},
		{Phone: "+77010000004", Name: "Демо Партнёр 4", ReferralCode: "DEMO0004", Sponsor: "+77010000001", Active: true},
		{Phone: "+77010000005", Name: "Демо Партнёр 5", ReferralCode: "DEMO0005", Sponsor: "+77010000001", Active: false},
		{Phone: "+77010000006", Name: "Демо Партнёр 6", ReferralCode: "DEMO0006", Sponsor: "+77010000001", Active: true},
		{Phone: "+77010000007", Name: "Демо Партнёр 7", ReferralCode: "DEMO0007", Sponsor: "+77010000002", Active: true},
		{Phone: "+77010000008", Name: "Демо Партнёр 8", ReferralCode: "DEMO0008", Sponsor: "+77010000002", Active: false},
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("demo12345"), bcrypt.DefaultCost)
	if err != nil {
		stdLog.Fatalf("Failed to hash demo password: %v", err)
	}

	memberIDs := map[string]uint{}
	for _, dm := range demoMembers {
		var existing models.Member
		if err := models.DB.Where("phone = ?", dm.Phone).First(&existing).Error; err == nil {
			memberIDs[dm.Phone] = existing.ID
			stdLog.Printf("Member already exists: %s", dm.Phone)
			continue
		}

		member := models.Member{
			Phone:              dm.Phone,
			Name:               dm.Name,
			PasswordHash:       string(hash),
			ReferralCode:       dm.ReferralCode,
			Status:             constants.MemberStatusActive,
			SubscriptionStatus: constants.SubscriptionStatusNever,
		}
		if dm.Active {
			member.SubscriptionStatus = constants.SubscriptionStatusActive
			member.SubscriptionPaidUntil = &paidUntil
			member.MonthlyActive = true
		}
		if err := models.DB.Create(&member).Error; err != nil {
			stdLog.Printf("Failed to create member %s: %v", dm.Phone, err)
			continue
		}
		memberIDs[dm.Phone] = member.ID
		stdLog.Printf("Created member: %s (%s)", dm.Phone, dm.ReferralCode)
	}

	// 绑定订阅网络推荐关系（已绑定则跳过）
	boundAt := time.Now().Add(-time.Hour)
	for _, dm := range demoMembers {
		if dm.Sponsor == "" {
			continue
		}
		memberID := memberIDs[dm.Phone]
		sponsorID := memberIDs[dm.Sponsor]
		if memberID == 0 || sponsorID == 0 {
			continue
		}
		var existing models.SponsorLink
		if err := models.DB.Where("member_id = ? AND structure_type = ?", memberID, constants.StructureSubscription).First(&existing).Error; err == nil {
			continue
		}
		link := models.SponsorLink{
			MemberID:      memberID,
			SponsorID:     sponsorID,
			StructureType: constants.StructureSubscription,
			BoundAt:       boundAt,
			BoundBy:       "referral",
		}
		if err := models.DB.Create(&link).Error; err != nil {
			stdLog.Printf("Failed to bind sponsor for %s: %v", dm.Phone, err)
		}
	}

	fmt.Println("\n✅ Seed data created successfully!")
	fmt.Println("Summary:")
	fmt.Println("- Default admin (admin / admin123)")
	fmt.Println("- Commission rules for subscription (5 levels) and product (10 levels)")
	fmt.Println("- 8 demo members with a subscription referral network (password: demo12345)")
}
