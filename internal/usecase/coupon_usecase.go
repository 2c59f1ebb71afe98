package usecase

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

type CouponUsecase struct {
	couponRepo repo.CouponRepository
	auditRepo  repo.AuditLogRepository
}

func NewCouponUsecase(couponRepo repo.CouponRepository, auditRepo repo.AuditLogRepository) *CouponUsecase {
	return &CouponUsecase{couponRepo: couponRepo, auditRepo: auditRepo}
}

type CreateCouponInput struct {
	Code               string
	DiscountPercentage int64
}

func (u *CouponUsecase) AdminListCoupons(ctx context.Context, adminUserID int64) ([]model.Coupon, error) {
	if adminUserID <= 0 {
		return nil, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	items, err := u.couponRepo.List(ctx)
	if err != nil {
		return nil, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return items, nil
}

func (u *CouponUsecase) AdminCreateCoupon(ctx context.Context, adminUserID int64, in CreateCouponInput) (model.Coupon, error) {
	if adminUserID <= 0 {
		return model.Coupon{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	code := strings.TrimSpace(in.Code)
	if code == "" {
		return model.Coupon{}, NewHTTPError(http.StatusBadRequest, "code required")
	}
	if in.DiscountPercentage < 0 || in.DiscountPercentage > 100 {
		return model.Coupon{}, NewHTTPError(http.StatusBadRequest, "discount_percentage must be 0-100")
	}

	now := time.Now()
	c, err := u.couponRepo.Create(ctx, model.Coupon{
		Code:               code,
		DiscountPercentage: in.DiscountPercentage,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	})
	if err != nil {
		return model.Coupon{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	u.writeAudit(ctx, adminUserID, c.ID, nil, map[string]any{"code": c.Code, "discount_percentage": c.DiscountPercentage, "is_active": true})
	return c, nil
}

func (u *CouponUsecase) AdminSetCouponActive(ctx context.Context, adminUserID int64, couponID int64, active bool) error {
	if adminUserID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if couponID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	err := u.couponRepo.SetActive(ctx, couponID, active)
	if err == repo.ErrNotFound {
		return NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	u.writeAudit(ctx, adminUserID, couponID, nil, map[string]any{"is_active": active})
	return nil
}

// 監査ログはベストエフォート。失敗は本処理に波及させず、ログだけ残す
func (u *CouponUsecase) writeAudit(ctx context.Context, actorID int64, couponID int64, before any, after any) {
	beforeJSON, _ := json.Marshal(before)
	afterJSON, _ := json.Marshal(after)

	if err := u.auditRepo.Create(ctx, model.AuditLog{
		ActorUserID:  actorID,
		Action:       model.AuditActionUpdateCoupon,
		ResourceType: model.AuditResourceCoupon,
		ResourceID:   couponID,
		BeforeJSON:   string(beforeJSON),
		AfterJSON:    string(afterJSON),
		CreatedAt:    time.Now(),
	}); err != nil {
		log.Printf("audit log write failed action=%s resource_id=%d err=%v", model.AuditActionUpdateCoupon, couponID, err)
	}
}
