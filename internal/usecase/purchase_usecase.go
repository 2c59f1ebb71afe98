package usecase

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

type PurchaseUsecase struct {
	purchases repo.PurchaseRepository
	tx        repo.TransactionManager
	auditRepo repo.AuditLogRepository
}

func NewPurchaseUsecase(purchases repo.PurchaseRepository, tx repo.TransactionManager, auditRepo repo.AuditLogRepository) *PurchaseUsecase {
	return &PurchaseUsecase{purchases: purchases, tx: tx, auditRepo: auditRepo}
}

type PurchaseItemOutput struct {
	ProductID int64 `json:"product_id"`
	UnitPrice int64 `json:"unit_price"`
	Quantity  int64 `json:"quantity"`
}

type PurchaseOutput struct {
	ID                  int64                `json:"id"`
	UserID              int64                `json:"user_id"`
	CouponCode          string               `json:"coupon_code,omitempty"`
	TotalBeforeDiscount int64                `json:"total_before_discount"`
	TotalAfterDiscount  int64                `json:"total_after_discount"`
	ShippingCost        int64                `json:"shipping_cost"`
	FinalTotal          int64                `json:"final_total"`
	Address             string               `json:"address"`
	PaymentStatus       string               `json:"payment_status"`
	FulfillmentStatus   string               `json:"fulfillment_status"`
	CreatedAt           time.Time            `json:"created_at"`
	Items               []PurchaseItemOutput `json:"items"`
}

func (u *PurchaseUsecase) ListMyPurchases(ctx context.Context, userID int64) ([]PurchaseOutput, error) {
	if userID <= 0 {
		return []PurchaseOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	purchases, _, err := u.purchases.ListByUserID(ctx, userID, 1, 50)
	if err != nil {
		return []PurchaseOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	outs := make([]PurchaseOutput, 0, len(purchases))
	for _, p := range purchases {
		items, err := u.purchases.ListItemsByPurchaseID(ctx, p.ID)
		if err != nil {
			return []PurchaseOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		outs = append(outs, toPurchaseOutput(p, items))
	}
	return outs, nil
}

func (u *PurchaseUsecase) GetMyPurchase(ctx context.Context, userID int64, purchaseID int64) (PurchaseOutput, error) {
	if userID <= 0 {
		return PurchaseOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if purchaseID <= 0 {
		return PurchaseOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	p, err := u.purchases.FindByID(ctx, purchaseID)
	if err == repo.ErrNotFound {
		return PurchaseOutput{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return PurchaseOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//他人の購入は「存在しない扱い」にする
	if p.UserID != userID {
		return PurchaseOutput{}, NewHTTPError(http.StatusNotFound, "not found")
	}

	items, err := u.purchases.ListItemsByPurchaseID(ctx, purchaseID)
	if err != nil {
		return PurchaseOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return toPurchaseOutput(p, items), nil
}

// 配送キャンセル（管理者）。
// 返金済み＋CANCELEDへ更新し、明細の数量ぶん在庫を戻す。全部同一トランザクション。
func (u *PurchaseUsecase) AdminCancelFulfillment(ctx context.Context, adminUserID int64, purchaseID int64, reason string) error {
	if adminUserID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if purchaseID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	h, err := u.tx.Begin(ctx)
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	r := h.Repos()

	p, err := r.Purchases().FindByID(ctx, purchaseID)
	if err == repo.ErrNotFound {
		_ = h.Rollback()
		return NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		_ = h.Rollback()
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//出荷済みは戻せない、二重キャンセルは409
	switch p.FulfillmentStatus {
	case model.FulfillmentStatusShipped:
		_ = h.Rollback()
		return NewHTTPError(http.StatusBadRequest, "already shipped")
	case model.FulfillmentStatusCanceled:
		_ = h.Rollback()
		return NewHTTPError(http.StatusConflict, "already canceled")
	}

	items, err := r.Purchases().ListItemsByPurchaseID(ctx, purchaseID)
	if err != nil {
		_ = h.Rollback()
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	for _, it := range items {
		if err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity); err != nil {
			_ = h.Rollback()
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
	}

	if err := r.Purchases().UpdateStatuses(ctx, purchaseID, model.PaymentStatusRefunded, model.FulfillmentStatusCanceled); err != nil {
		_ = h.Rollback()
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if err := h.Commit(); err != nil {
		_ = h.Rollback()
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//監査はコミット後にベストエフォート
	u.writeCancelAudit(ctx, adminUserID, p, reason)
	return nil
}

func (u *PurchaseUsecase) writeCancelAudit(ctx context.Context, actorID int64, before model.Purchase, reason string) {
	beforeJSON, _ := json.Marshal(map[string]any{
		"payment_status":     before.PaymentStatus,
		"fulfillment_status": before.FulfillmentStatus,
	})
	afterJSON, _ := json.Marshal(map[string]any{
		"payment_status":     model.PaymentStatusRefunded,
		"fulfillment_status": model.FulfillmentStatusCanceled,
		"reason":             reason,
	})

	if err := u.auditRepo.Create(ctx, model.AuditLog{
		ActorUserID:  actorID,
		Action:       model.AuditActionCancelFulfillment,
		ResourceType: model.AuditResourcePurchase,
		ResourceID:   before.ID,
		BeforeJSON:   string(beforeJSON),
		AfterJSON:    string(afterJSON),
		CreatedAt:    time.Now(),
	}); err != nil {
		log.Printf("audit log write failed action=%s resource_id=%d err=%v", model.AuditActionCancelFulfillment, before.ID, err)
	}
}

func toPurchaseOutput(p model.Purchase, items []model.PurchaseItem) PurchaseOutput {
	outItems := make([]PurchaseItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, PurchaseItemOutput{
			ProductID: it.ProductID,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		})
	}

	return PurchaseOutput{
		ID:                  p.ID,
		UserID:              p.UserID,
		CouponCode:          p.CouponCode,
		TotalBeforeDiscount: p.TotalBeforeDiscount,
		TotalAfterDiscount:  p.TotalAfterDiscount,
		ShippingCost:        p.ShippingCost,
		FinalTotal:          p.FinalTotal,
		Address:             p.Address,
		PaymentStatus:       string(p.PaymentStatus),
		FulfillmentStatus:   string(p.FulfillmentStatus),
		CreatedAt:           p.CreatedAt,
		Items:               outItems,
	}
}
