package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/fatflowers/checkout/internal/app/service/session"
	"github.com/fatflowers/checkout/pkg/response"
	"github.com/fatflowers/checkout/pkg/types"
	"github.com/gin-gonic/gin"
)

// SessionScanner lists payment sessions with filters.
type SessionScanner interface {
	Scan(ctx context.Context, req *session.ScanRequest) (*session.ScanResponse, error)
}

// ApiUserSessionList lists a user's payment sessions, newest first.
func ApiUserSessionList(scanner SessionScanner) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("user_id")
		if userID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user_id"))
			return
		}
		// Read pagination from query params
		from := 0
		if v := c.Query("from"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				from = n
			}
		}
		size := 20
		if v := c.Query("size"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				size = n
			} else {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "invalid size"))
				return
			}
		}
		filters := []*types.CommonFilter{{Field: "user_id", Operator: types.CommonFilterOperatorEq, Values: []any{userID}}}
		if st := c.Query("status"); st != "" {
			filters = append(filters, &types.CommonFilter{Field: "status", Operator: types.CommonFilterOperatorEq, Values: []any{st}})
		}

		req := &session.ScanRequest{
			Filters:   filters,
			From:      from,
			Size:      size,
			SortBy:    "created_at",
			SortOrder: "desc",
		}
		res, err := scanner.Scan(c.Request.Context(), req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterUserSessionRoutes(r gin.IRouter, scanner SessionScanner) {
	r.GET("/user/sessions", ApiUserSessionList(scanner))
}
