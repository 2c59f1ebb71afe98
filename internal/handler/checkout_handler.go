package handler

import (
	"net/http"
	"strconv"

	"marketplace/internal/config"
	"marketplace/internal/middleware"
	"marketplace/internal/usecase"

	"github.com/labstack/echo/v4"
)

// チェックアウトのHTTP。
// previewは何度呼んでも安全、buyは副作用あり
type CheckoutHandler struct {
	checkoutUC *usecase.CheckoutUsecase
	purchaseUC *usecase.PurchaseUsecase
}

// DI
func NewCheckoutHandler(checkoutUC *usecase.CheckoutUsecase, purchaseUC *usecase.PurchaseUsecase) *CheckoutHandler {
	return &CheckoutHandler{checkoutUC: checkoutUC, purchaseUC: purchaseUC}
}

type BuyRequest struct {
	CouponCode string `json:"coupon_code"`
}

type CancelFulfillmentRequest struct {
	Reason string `json:"reason"`
}

func (h *CheckoutHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	auth := middleware.AuthJWT(cfg)

	e.GET("/checkout/preview", h.preview, auth)
	e.POST("/checkout", h.buy, auth)

	e.GET("/purchases", h.listPurchases, auth)
	e.GET("/purchases/:id", h.purchaseDetail, auth)

	admin := middleware.AdminRoleGuard()
	e.PATCH("/admin/purchases/:id/cancel", h.adminCancelFulfillment, auth, admin)
}

func (h *CheckoutHandler) preview(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return writeUnauthorized(c)
	}

	out, err := h.checkoutUC.Preview(c.Request().Context(), userID, c.QueryParam("coupon"))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *CheckoutHandler) buy(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return writeUnauthorized(c)
	}

	var req BuyRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, usecase.NewHTTPError(http.StatusBadRequest, "invalid body"))
	}

	out, err := h.checkoutUC.Buy(c.Request().Context(), userID, req.CouponCode)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, out)
}

func (h *CheckoutHandler) listPurchases(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return writeUnauthorized(c)
	}

	out, err := h.purchaseUC.ListMyPurchases(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CheckoutHandler) purchaseDetail(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return writeUnauthorized(c)
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return writeError(c, usecase.NewHTTPError(http.StatusBadRequest, "invalid id"))
	}

	out, err := h.purchaseUC.GetMyPurchase(c.Request().Context(), userID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 配送キャンセル（管理者のみ）。返金ステータスに変えて在庫を戻す
func (h *CheckoutHandler) adminCancelFulfillment(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return writeUnauthorized(c)
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return writeError(c, usecase.NewHTTPError(http.StatusBadRequest, "invalid id"))
	}

	var req CancelFulfillmentRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, usecase.NewHTTPError(http.StatusBadRequest, "invalid body"))
	}

	if err := h.purchaseUC.AdminCancelFulfillment(c.Request().Context(), adminID, id, req.Reason); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
