package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fatflowers/checkout/internal/app/service/session"
	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/internal/platform/gateway"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubSessionService struct {
	createRes *session.CreateSessionResult
	createErr error
	invoice   *gateway.Invoice
	invErr    error
	sess      *models.PaymentSession
	getErr    error
	gotReq    *session.CreateSessionRequest
}

func (s *stubSessionService) CreateSession(_ context.Context, req *session.CreateSessionRequest) (*session.CreateSessionResult, error) {
	s.gotReq = req
	return s.createRes, s.createErr
}

func (s *stubSessionService) CreateInvoice(context.Context, string) (*gateway.Invoice, error) {
	return s.invoice, s.invErr
}

func (s *stubSessionService) Get(context.Context, string) (*models.PaymentSession, error) {
	return s.sess, s.getErr
}

func sessionRouter(svc SessionService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterSessionRoutes(r.Group("/api/v1/sessions"), svc, zap.NewNop().Sugar())
	return r
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const createBody = `{"sessionId":"s-1","ttlSec":10,"sessionData":{"userId":"u-1","cart":[{"productId":"p-1","sellerId":"s-1","quantity":2,"unitPrice":"50"}],"sellers":[{"sellerId":"s-1"}],"totalAmount":100}}`

func TestApiCreateSession_Success(t *testing.T) {
	svc := &stubSessionService{createRes: &session.CreateSessionResult{
		Session: &models.PaymentSession{SessionID: "s-1"},
		Invoice: &gateway.Invoice{InvoiceID: "inv-1", QRText: "qr", ShortURL: "https://s/1"},
	}}
	r := sessionRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", bytes.NewBufferString(createBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"success":true,"sessionId":"s-1","invoice":{"invoiceId":"inv-1","qrText":"qr","shortUrl":"https://s/1"}}`, w.Body.String())
	require.Equal(t, "s-1", svc.gotReq.SessionID)
	require.EqualValues(t, 10, svc.gotReq.TTLSec)
	require.Equal(t, "100", svc.gotReq.SessionData.TotalAmount.String())
	require.Equal(t, int64(2), svc.gotReq.SessionData.Cart[0].Quantity)
}

func TestApiCreateSession_InvoiceFailureStillSucceeds(t *testing.T) {
	svc := &stubSessionService{createRes: &session.CreateSessionResult{
		Session:    &models.PaymentSession{SessionID: "s-1"},
		InvoiceErr: fmt.Errorf("%w: timeout", gateway.ErrGateway),
	}}
	w := doJSON(sessionRouter(svc), http.MethodPost, "/api/v1/sessions", json.RawMessage(createBody))

	require.Equal(t, http.StatusOK, w.Code)
	var out CreateSessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.True(t, out.Success)
	require.Nil(t, out.Invoice)
	require.Contains(t, out.Error, "timeout")
}

func TestApiCreateSession_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: total mismatch", session.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := doJSON(sessionRouter(&stubSessionService{createErr: tc.err}), http.MethodPost, "/api/v1/sessions", json.RawMessage(createBody))
		require.Equal(t, tc.code, w.Code)
		var out CreateSessionResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		require.False(t, out.Success)
		require.Equal(t, tc.err.Error(), out.Error)
	}
}

func TestApiCreateSession_MalformedJSON(t *testing.T) {
	svc := &stubSessionService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", bytes.NewBufferString(`{"ttlSec":"ten"`))
	w := httptest.NewRecorder()
	sessionRouter(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Nil(t, svc.gotReq)
}

func TestApiGetSession(t *testing.T) {
	svc := &stubSessionService{sess: &models.PaymentSession{SessionID: "s-1", UserID: "u-1"}}
	w := doJSON(sessionRouter(svc), http.MethodGet, "/api/v1/sessions/s-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"sessionId":"s-1"`)

	svc = &stubSessionService{getErr: fmt.Errorf("%w: s-2", session.ErrSessionMissing)}
	w = doJSON(sessionRouter(svc), http.MethodGet, "/api/v1/sessions/s-2", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestApiCreateInvoice(t *testing.T) {
	svc := &stubSessionService{invoice: &gateway.Invoice{InvoiceID: "inv-1"}}
	w := doJSON(sessionRouter(svc), http.MethodPost, "/api/v1/sessions/s-1/invoice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"invoiceId":"inv-1"`)

	svc = &stubSessionService{invErr: fmt.Errorf("%w: status PAID", session.ErrSessionClosed)}
	w = doJSON(sessionRouter(svc), http.MethodPost, "/api/v1/sessions/s-1/invoice", nil)
	require.Equal(t, http.StatusConflict, w.Code)

	svc = &stubSessionService{invErr: fmt.Errorf("%w: 503", gateway.ErrGateway)}
	w = doJSON(sessionRouter(svc), http.MethodPost, "/api/v1/sessions/s-1/invoice", nil)
	require.Equal(t, http.StatusBadGateway, w.Code)
}
