package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// handler側と同じproblem形式。
// ミドルウェアからhandlerはimportできないのでここにも持つ。形を変えるときは両方変えること
type problemBody struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Status  int    `json:"status"`
	TraceID string `json:"trace_id"`
}

func writeProblem(c echo.Context, status int, title string) error {
	typ := "unauthorized"
	if status == http.StatusForbidden {
		typ = "forbidden"
	}

	return c.JSON(status, problemBody{
		Type:    typ,
		Title:   title,
		Status:  status,
		TraceID: c.Response().Header().Get(echo.HeaderXRequestID),
	})
}
