package handler

import (
	"net/http"

	"marketplace/internal/usecase"

	"github.com/labstack/echo/v4"
)

// problem形式のエラー応答。
// 他サービスが読むのでこの形は崩さないこと。
type Problem struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Status  int    `json:"status"`
	TraceID string `json:"trace_id"`
}

func problemType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusGone:
		return "gone"
	default:
		return "internal_error"
	}
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	//RequestIDミドルウェアが採番したIDをトレースIDとして返す
	traceID := c.Response().Header().Get(echo.HeaderXRequestID)

	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, Problem{
			Type:    problemType(he.Status),
			Title:   he.Message,
			Status:  he.Status,
			TraceID: traceID,
		})
	}

	//500
	return c.JSON(http.StatusInternalServerError, Problem{
		Type:    "internal_error",
		Title:   "internal error",
		Status:  http.StatusInternalServerError,
		TraceID: traceID,
	})
}

func getUserIDFromContext(c echo.Context) (int64, bool) {
	v := c.Get("user_id")
	if v == nil {
		return 0, false
	}

	id, ok := v.(int64)
	if !ok {
		return 0, false
	}

	return id, true
}

func writeUnauthorized(c echo.Context) error {
	return writeError(c, usecase.NewHTTPError(http.StatusUnauthorized, "unauthorized"))
}
