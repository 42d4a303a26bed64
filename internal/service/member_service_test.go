package service

import (
	"errors"
	"testing"
	"time"

	"github.com/qaznet/partner-core/internal/config"
	"github.com/qaznet/partner-core/internal/constants"
	"github.com/qaznet/partner-core/internal/models"
)

func newMemberServiceTest(t *testing.T) (*svcTestEnv, *MemberService) {
	t.Helper()
	env := newServiceTestEnv(t, defaultCommissionConfig())
	cfg := &config.Config{
		PartnerJWT: config.JWTConfig{SecretKey: "test-partner-secret", ExpireHours: 1},
	}
	return env, NewMemberService(env.members, env.networks, cfg)
}

func TestMemberRegister(t *testing.T) {
	env, svc := newMemberServiceTest(t)
	sponsor := env.createMember(t, "推荐人")

	member, err := svc.Register(RegisterInput{
		Phone:        "+77051234567",
		Name:         "Айдана",
		Password:     "secret123",
		ReferralCode: sponsor.ReferralCode,
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if member.ReferralCode == "" || member.Status != constants.MemberStatusActive {
		t.Fatalf("member = %+v, want active with referral code", member)
	}

	// 注册即在两套网络各落一条绑定
	for _, structure := range []string{constants.StructureSubscription, constants.StructureProduct} {
		link, err := env.networks.GetLink(member.ID, structure)
		if err != nil {
			t.Fatalf("get link failed: %v", err)
		}
		if link == nil || link.SponsorID != sponsor.ID {
			t.Fatalf("%s link = %+v, want bound to sponsor %d", structure, link, sponsor.ID)
		}
	}

	t.Run("duplicate phone", func(t *testing.T) {
		_, err := svc.Register(RegisterInput{Phone: "+77051234567", Name: "复制", Password: "secret123"})
		if !errors.Is(err, ErrPhoneTaken) {
			t.Fatalf("err = %v, want ErrPhoneTaken", err)
		}
	})

	t.Run("invalid referral code", func(t *testing.T) {
		_, err := svc.Register(RegisterInput{Phone: "+77051234568", Name: "新人", Password: "secret123", ReferralCode: "NOPE1234"})
		if !errors.Is(err, ErrReferralCodeInvalid) {
			t.Fatalf("err = %v, want ErrReferralCodeInvalid", err)
		}
	})

	t.Run("short password", func(t *testing.T) {
		_, err := svc.Register(RegisterInput{Phone: "+77051234569", Name: "新人", Password: "123"})
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("err = %v, want ErrValidation", err)
		}
	})

	t.Run("disabled sponsor", func(t *testing.T) {
		disabled := env.createMember(t, "停用推荐人")
		if err := env.db.Model(&models.Member{}).Where("id = ?", disabled.ID).Update("status", constants.MemberStatusDisabled).Error; err != nil {
			t.Fatalf("disable sponsor failed: %v", err)
		}
		_, err := svc.Register(RegisterInput{Phone: "+77051234570", Name: "新人", Password: "secret123", ReferralCode: disabled.ReferralCode})
		if !errors.Is(err, ErrMemberDisabled) {
			t.Fatalf("err = %v, want ErrMemberDisabled", err)
		}
	})
}

func TestBindSponsor(t *testing.T) {
	env, svc := newMemberServiceTest(t)
	sponsor := env.createMember(t, "推荐人")
	member := env.createMember(t, "合伙人")

	if err := svc.BindSponsor(member.ID, sponsor.ReferralCode, constants.StructureSubscription); err != nil {
		t.Fatalf("bind failed: %v", err)
	}

	t.Run("rebind rejected", func(t *testing.T) {
		other := env.createMember(t, "另一个推荐人")
		err := svc.BindSponsor(member.ID, other.ReferralCode, constants.StructureSubscription)
		if !errors.Is(err, ErrAlreadyBound) {
			t.Fatalf("err = %v, want ErrAlreadyBound", err)
		}
	})

	t.Run("self referral rejected", func(t *testing.T) {
		err := svc.BindSponsor(sponsor.ID, sponsor.ReferralCode, constants.StructureProduct)
		if !errors.Is(err, ErrSelfReferral) {
			t.Fatalf("err = %v, want ErrSelfReferral", err)
		}
	})

	t.Run("cycle rejected", func(t *testing.T) {
		// member 已绑定在 sponsor 名下，反向绑定会成环
		err := svc.BindSponsor(sponsor.ID, member.ReferralCode, constants.StructureSubscription)
		if !errors.Is(err, ErrCyclicSponsor) {
			t.Fatalf("err = %v, want ErrCyclicSponsor", err)
		}
	})

	t.Run("invalid structure", func(t *testing.T) {
		err := svc.BindSponsor(member.ID, sponsor.ReferralCode, "bonus")
		if !errors.Is(err, ErrInvalidStructure) {
			t.Fatalf("err = %v, want ErrInvalidStructure", err)
		}
	})
}

func TestOverrideProductSponsor(t *testing.T) {
	env, svc := newMemberServiceTest(t)
	oldSponsor := env.createMember(t, "原上级")
	newSponsor := env.createMember(t, "新上级")
	member := env.createMember(t, "合伙人")
	env.linkSponsor(t, member.ID, oldSponsor.ID, constants.StructureProduct, time.Now().Add(-time.Hour))

	if err := svc.OverrideProductSponsor(member.ID, newSponsor.ID, 1); err != nil {
		t.Fatalf("override failed: %v", err)
	}
	link, err := env.networks.GetLink(member.ID, constants.StructureProduct)
	if err != nil {
		t.Fatalf("get link failed: %v", err)
	}
	if link.SponsorID != newSponsor.ID || link.BoundBy != "admin" {
		t.Fatalf("link = %+v, want rewritten to %d by admin", link, newSponsor.ID)
	}

	t.Run("history replays to the old sponsor", func(t *testing.T) {
		// 改绑是追加覆盖，改绑前的时点仍归原上级
		past, err := env.networks.GetSponsorLinkAt(member.ID, constants.StructureProduct, time.Now().Add(-30*time.Minute))
		if err != nil {
			t.Fatalf("get link at failed: %v", err)
		}
		if past == nil || past.SponsorID != oldSponsor.ID {
			t.Fatalf("link at past = %+v, want old sponsor %d", past, oldSponsor.ID)
		}

		now := time.Now()
		oldCount, err := env.networks.CountDirectReferralsAt(oldSponsor.ID, constants.StructureProduct, now)
		if err != nil {
			t.Fatalf("count old sponsor failed: %v", err)
		}
		if oldCount != 0 {
			t.Fatalf("old sponsor directs = %d, want 0 after override", oldCount)
		}
		newCount, err := env.networks.CountDirectReferralsAt(newSponsor.ID, constants.StructureProduct, now)
		if err != nil {
			t.Fatalf("count new sponsor failed: %v", err)
		}
		if newCount != 1 {
			t.Fatalf("new sponsor directs = %d, want 1 after override", newCount)
		}
		oldAtPast, err := env.networks.CountDirectReferralsAt(oldSponsor.ID, constants.StructureProduct, now.Add(-30*time.Minute))
		if err != nil {
			t.Fatalf("count old sponsor at past failed: %v", err)
		}
		if oldAtPast != 1 {
			t.Fatalf("old sponsor directs at past = %d, want 1 before override", oldAtPast)
		}
	})

	t.Run("cycle rejected", func(t *testing.T) {
		err := svc.OverrideProductSponsor(newSponsor.ID, member.ID, 1)
		if !errors.Is(err, ErrCyclicSponsor) {
			t.Fatalf("err = %v, want ErrCyclicSponsor", err)
		}
	})
}

func TestMemberLogin(t *testing.T) {
	env, svc := newMemberServiceTest(t)
	member, err := svc.Register(RegisterInput{Phone: "+77059990001", Name: "登录测试", Password: "secret123"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	token, logged, err := svc.Login("+77059990001", "secret123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if token == "" || logged.ID != member.ID {
		t.Fatalf("login returned token=%q member=%d", token, logged.ID)
	}

	claims, err := svc.ParseMemberJWT(token)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if claims.MemberID != member.ID || claims.Phone != member.Phone {
		t.Fatalf("claims = %+v, want member %d", claims, member.ID)
	}

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := svc.Login("+77059990001", "wrong-pass")
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("err = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("disabled member", func(t *testing.T) {
		if err := env.db.Model(&models.Member{}).Where("id = ?", member.ID).Update("status", constants.MemberStatusDisabled).Error; err != nil {
			t.Fatalf("disable member failed: %v", err)
		}
		_, _, err := svc.Login("+77059990001", "secret123")
		if !errors.Is(err, ErrMemberDisabled) {
			t.Fatalf("err = %v, want ErrMemberDisabled", err)
		}
	})
}
