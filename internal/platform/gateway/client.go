package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/pkg/config"
	"github.com/fatflowers/checkout/pkg/logctx"
	"github.com/fatflowers/checkout/pkg/metrics"
	"github.com/fatflowers/checkout/pkg/types"
	"github.com/golang-jwt/jwt"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	tokenPath    = "/v2/auth/token"
	invoicePath  = "/v2/invoice"
	checkPath    = "/v2/payment/check"
	tokenLeeway  = time.Minute
	maxInvoiceID = 128
	maxErrorBody = 512
)

// Client talks to the QR-invoice payment gateway.
type Client struct {
	cfg    config.GatewayConfig
	http   *http.Client
	log    *zap.SugaredLogger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	signer *CallbackSigner

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

func New(cfg *config.Config, log *zap.SugaredLogger) *Client {
	return NewWithHTTPClient(cfg.Gateway, &http.Client{Timeout: cfg.Gateway.Timeout}, log)
}

func NewWithHTTPClient(cfg config.GatewayConfig, hc *http.Client, log *zap.SugaredLogger) *Client {
	return &Client{
		cfg:    cfg,
		http:   hc,
		log:    log,
		now:    time.Now,
		sleep:  sleepCtx,
		signer: NewCallbackSigner(cfg.CallbackSecret),
	}
}

func (c *Client) Signer() *CallbackSigner {
	return c.signer
}

// CreateInvoice registers an invoice for the session. The session id is sent
// as sender_invoice_no so a retried call is deduplicated by the gateway.
func (c *Client) CreateInvoice(ctx context.Context, s *models.PaymentSession) (inv *Invoice, err error) {
	defer func(start time.Time) { metrics.ObserveBusinessProcess("gateway", "create_invoice", start, err) }(time.Now())

	callbackURL, err := c.callbackURL(s.SessionID)
	if err != nil {
		return nil, err
	}
	body := createInvoiceRequest{
		InvoiceCode:         c.cfg.InvoiceCode,
		SenderInvoiceNo:     s.SessionID,
		InvoiceReceiverCode: s.UserID,
		InvoiceDescription:  fmt.Sprintf("checkout %s", s.SessionID),
		Amount:              json.Number(s.TotalAmount.StringFixed(2)),
		CallbackURL:         callbackURL,
	}
	var resp createInvoiceResponse
	if err := c.call(ctx, invoicePath, body, &resp); err != nil {
		// a rejected create request is still a gateway failure for the caller
		if errors.Is(err, ErrInvalidInvoice) {
			return nil, fmt.Errorf("%w: create invoice rejected: %v", ErrGateway, err)
		}
		return nil, err
	}
	if resp.InvoiceID == "" {
		return nil, fmt.Errorf("%w: create invoice returned no invoice_id", ErrGateway)
	}
	logctx.FromCtx(ctx, c.log).Infow("gateway_invoice_created", "session_id", s.SessionID, "invoice_id", resp.InvoiceID)
	return &Invoice{
		InvoiceID: resp.InvoiceID,
		QRText:    resp.QRText,
		ShortURL:  resp.QPayShortURL,
		CreatedAt: c.now(),
	}, nil
}

// CheckStatus asks the gateway whether the invoice is paid. Transient failures
// are retried up to cfg.StatusRetries times with linear backoff.
func (c *Client) CheckStatus(ctx context.Context, invoiceID string) (pc *PaymentCheck, err error) {
	defer func(start time.Time) { metrics.ObserveBusinessProcess("gateway", "check_status", start, err) }(time.Now())

	invoiceID = strings.TrimSpace(invoiceID)
	if invoiceID == "" || len(invoiceID) > maxInvoiceID {
		return nil, fmt.Errorf("%w: %q", ErrInvalidInvoice, invoiceID)
	}
	body := checkPaymentRequest{
		ObjectType: "INVOICE",
		ObjectID:   invoiceID,
		Offset:     checkOffset{PageNumber: 1, PageLimit: 100},
	}

	lg := logctx.FromCtx(ctx, c.log)
	attempts := 1 + max(c.cfg.StatusRetries, 0)
	for i := 1; i <= attempts; i++ {
		var resp checkPaymentResponse
		err = c.call(ctx, checkPath, body, &resp)
		if err == nil {
			return toPaymentCheck(&resp), nil
		}
		if !errors.Is(err, ErrGateway) || i == attempts {
			break
		}
		lg.Warnw("gateway_check_retry", "invoice_id", invoiceID, "attempt", i, "err", err)
		if serr := c.sleep(ctx, c.cfg.RetryBackoff*time.Duration(i)); serr != nil {
			return nil, fmt.Errorf("%w: %v", ErrGateway, serr)
		}
	}
	return nil, err
}

func toPaymentCheck(resp *checkPaymentResponse) *PaymentCheck {
	paid := lo.Filter(resp.Rows, func(r paymentRow, _ int) bool {
		return strings.EqualFold(r.PaymentStatus, string(types.PaymentCheckStatusPaid))
	})
	if len(paid) == 0 {
		return &PaymentCheck{Status: types.PaymentCheckStatusNotPaid, PaidAmount: resp.PaidAmount}
	}
	amount := resp.PaidAmount
	if !amount.IsPositive() {
		amount = lo.Reduce(paid, func(acc decimal.Decimal, r paymentRow, _ int) decimal.Decimal {
			return acc.Add(r.PaymentAmount)
		}, decimal.Zero)
	}
	return &PaymentCheck{Status: types.PaymentCheckStatusPaid, PaidAmount: amount, PaymentID: paid[0].PaymentID}
}

func (c *Client) callbackURL(sessionID string) (string, error) {
	if c.cfg.CallbackURL == "" {
		return "", nil
	}
	u, err := url.Parse(c.cfg.CallbackURL)
	if err != nil {
		return "", fmt.Errorf("invalid gateway.callback_url: %w", err)
	}
	q := u.Query()
	q.Set("session_id", sessionID)
	if c.signer.Enabled() {
		tok, err := c.signer.Sign(sessionID)
		if err != nil {
			return "", err
		}
		q.Set("token", tok)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// call POSTs body as JSON with a bearer token and decodes the answer into out.
func (c *Client) call(ctx context.Context, path string, body, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	cctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(cctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrGateway, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.dropToken()
	}
	if err := statusError(path, resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: decode response: %v", ErrGateway, path, err)
	}
	return nil
}

func statusError(path string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	switch {
	case resp.StatusCode >= 500,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusRequestTimeout:
		return fmt.Errorf("%w: %s: status %d: %s", ErrGateway, path, resp.StatusCode, msg)
	default:
		return fmt.Errorf("%w: %s: status %d: %s", ErrInvalidInvoice, path, resp.StatusCode, msg)
	}
}

// accessToken returns the cached token, fetching a new one when it is about
// to expire.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.tokenExp.Add(-tokenLeeway)) {
		return c.token, nil
	}

	cctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(cctx, http.MethodPost, c.cfg.BaseURL+tokenPath, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrGateway, tokenPath, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("%w: %s: status %d: %s", ErrGateway, tokenPath, resp.StatusCode, msg)
	}
	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("%w: %s: decode response: %v", ErrGateway, tokenPath, err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("%w: %s: empty access_token", ErrGateway, tokenPath)
	}
	c.token = tr.AccessToken
	c.tokenExp = c.tokenExpiry(&tr)
	return c.token, nil
}

// tokenExpiry reads the exp claim of the access token. The gateway signs its
// tokens with a key we do not hold, so the token is parsed unverified.
func (c *Client) tokenExpiry(tr *tokenResponse) time.Time {
	claims := &jwt.StandardClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(tr.AccessToken, claims); err == nil && claims.ExpiresAt > 0 {
		return time.Unix(claims.ExpiresAt, 0)
	}
	if tr.ExpiresIn > 0 {
		return c.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return c.now().Add(5 * time.Minute)
}

func (c *Client) dropToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var Module = fx.Options(
	fx.Provide(New),
)
