package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/fatflowers/checkout/internal/app/service/reconcile"
	"github.com/fatflowers/checkout/internal/app/service/session"
	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/pkg/response"
	"github.com/fatflowers/checkout/pkg/types"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type stubScanner struct {
	got *session.ScanRequest
	res *session.ScanResponse
	err error
}

func (s *stubScanner) Scan(_ context.Context, req *session.ScanRequest) (*session.ScanResponse, error) {
	s.got = req
	return s.res, s.err
}

type stubOrders struct{ orders []*models.Order }

func (s stubOrders) ListBySession(context.Context, string) ([]*models.Order, error) {
	return s.orders, nil
}

type stubNotifs struct{}

func (stubNotifs) ListBySession(context.Context, string) ([]*models.PaymentNotificationLog, error) {
	return []*models.PaymentNotificationLog{{ID: "log-1", Status: models.PaymentNotificationLogStatusHandled}}, nil
}

type stubReconcile struct{ got *reconcile.Notification }

func (s *stubReconcile) Reconcile(_ context.Context, n *reconcile.Notification) (*reconcile.Outcome, error) {
	s.got = n
	return &reconcile.Outcome{Reason: types.WebhookReasonNotPaid}, nil
}

func adminRouter(scanner SessionScanner, sessions SessionService, rec SessionReconciler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterAdminRoutes(r.Group("/api/v1/admin"), scanner, sessions, stubOrders{orders: []*models.Order{{ID: "o-1"}}}, stubNotifs{}, rec)
	RegisterUserSessionRoutes(r.Group("/api/v1"), scanner)
	return r
}

func TestApiListPaymentSessions(t *testing.T) {
	scanner := &stubScanner{res: &session.ScanResponse{
		Items: []*models.PaymentSession{{
			SessionID:   "s-1",
			Status:      types.SessionStatusPaid,
			TotalAmount: decimal.RequireFromString("100"),
			Cart: datatypes.NewJSONType([]*models.CartItem{
				{ProductID: "p-1", SellerID: "a", Quantity: 1},
				{ProductID: "p-2", SellerID: "b", Quantity: 1},
			}),
			OrderIDs: datatypes.NewJSONType([]string{"o-1", "o-2"}),
		}},
		Total: 1,
	}}
	r := adminRouter(scanner, &stubSessionService{}, &stubReconcile{})

	w := doJSON(r, http.MethodPost, "/api/v1/admin/list_payment_sessions", map[string]any{
		"filters": []map[string]any{{"field": "status", "operator": "eq", "values": []any{"PAID"}}},
		"size":    5,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var out response.APIResponse[ListPaymentSessionsResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Equal(t, response.APIResponseCodeOK, out.Code)
	require.EqualValues(t, 1, out.Data.Total)
	require.Equal(t, 2, out.Data.Items[0].SellerCount)
	require.Equal(t, []string{"o-1", "o-2"}, out.Data.Items[0].OrderIDs)
	require.Equal(t, "status", scanner.got.Filters[0].Field)
	require.Equal(t, 5, scanner.got.Size)
}

func TestApiListPaymentSessions_ValidationError(t *testing.T) {
	scanner := &stubScanner{err: fmt.Errorf("%w: filter field not allowed: password", session.ErrValidation)}
	w := doJSON(adminRouter(scanner, &stubSessionService{}, &stubReconcile{}), http.MethodPost, "/api/v1/admin/list_payment_sessions", map[string]any{})

	var out response.APIResponse[any]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Equal(t, response.APIResponseCodeBadRequest, out.Code)
}

func TestApiGetPaymentSession(t *testing.T) {
	sessions := &stubSessionService{sess: &models.PaymentSession{SessionID: "s-1"}}
	w := doJSON(adminRouter(&stubScanner{}, sessions, &stubReconcile{}), http.MethodPost, "/api/v1/admin/get_payment_session", map[string]any{"session_id": "s-1"})

	var out response.APIResponse[PaymentSessionDetail]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Equal(t, response.APIResponseCodeOK, out.Code)
	require.Equal(t, "s-1", out.Data.Session.SessionID)
	require.Equal(t, "o-1", out.Data.Orders[0].ID)
	require.Equal(t, "log-1", out.Data.Notifications[0].ID)

	missing := &stubSessionService{getErr: session.ErrSessionMissing}
	w = doJSON(adminRouter(&stubScanner{}, missing, &stubReconcile{}), http.MethodPost, "/api/v1/admin/get_payment_session", map[string]any{"session_id": "nope"})
	var miss response.APIResponse[any]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &miss))
	require.Equal(t, response.APIResponseCodeNotFound, miss.Code)
}

func TestApiReconcilePaymentSession(t *testing.T) {
	rec := &stubReconcile{}
	w := doJSON(adminRouter(&stubScanner{}, &stubSessionService{}, rec), http.MethodPost, "/api/v1/admin/reconcile_payment_session", map[string]any{"session_id": "s-1"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "s-1", rec.got.SessionID)
	require.Equal(t, types.NotificationSourceAdmin, rec.got.Source)
	require.Contains(t, w.Body.String(), `"reason":"NOT_PAID"`)

	w = doJSON(adminRouter(&stubScanner{}, &stubSessionService{}, rec), http.MethodPost, "/api/v1/admin/reconcile_payment_session", map[string]any{})
	var out response.APIResponse[any]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Equal(t, response.APIResponseCodeBadRequest, out.Code)
}

func TestApiUserSessionList(t *testing.T) {
	scanner := &stubScanner{res: &session.ScanResponse{}}
	r := adminRouter(scanner, &stubSessionService{}, &stubReconcile{})

	w := doJSON(r, http.MethodGet, "/api/v1/user/sessions?user_id=u-1&status=PENDING&size=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, scanner.got.Filters, 2)
	require.Equal(t, []any{"u-1"}, scanner.got.Filters[0].Values)
	require.Equal(t, "created_at", scanner.got.SortBy)
	require.Equal(t, 5, scanner.got.Size)

	w = doJSON(r, http.MethodGet, "/api/v1/user/sessions", nil)
	var out response.APIResponse[any]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Equal(t, response.APIResponseCodeBadRequest, out.Code)
}

func TestRegisterRoutes_RegistersEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterHealthRoutes(r.Group("/"), nil)
	RegisterSessionRoutes(r.Group("/api/v1/sessions"), nil, nil)
	RegisterPaymentWebhookRoutes(r.Group("/api/v1/payment"), nil)
	RegisterAdminRoutes(r.Group("/api/v1/admin"), nil, nil, nil, nil, nil)

	routes := r.Routes()
	contains := func(target string) bool {
		for _, rt := range routes {
			if rt.Method+" "+rt.Path == target {
				return true
			}
		}
		return false
	}

	require.True(t, contains("GET /healthz"))
	require.True(t, contains("GET /readyz"))
	require.True(t, contains("POST /api/v1/sessions"))
	require.True(t, contains("GET /api/v1/sessions/:id"))
	require.True(t, contains("POST /api/v1/sessions/:id/invoice"))
	require.True(t, contains("POST /api/v1/payment/webhook"))
	require.True(t, contains("POST /api/v1/admin/list_payment_sessions"))
	require.True(t, contains("POST /api/v1/admin/get_payment_session"))
	require.True(t, contains("POST /api/v1/admin/reconcile_payment_session"))
}

func TestReadyz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterHealthRoutes(r.Group("/"), map[string]Pinger{
		"db":    PingFunc(func(context.Context) error { return nil }),
		"redis": PingFunc(func(context.Context) error { return fmt.Errorf("dial tcp: refused") }),
	})
	w := doJSON(r, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Contains(t, w.Body.String(), "refused")
}
