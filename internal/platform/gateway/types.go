package gateway

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/fatflowers/checkout/pkg/types"
	"github.com/shopspring/decimal"
)

var (
	// ErrGateway marks transient gateway failures: transport errors,
	// timeouts, 5xx and throttling. Callers may retry.
	ErrGateway = errors.New("payment gateway unavailable")
	// ErrInvalidInvoice is returned when the gateway rejects the invoice
	// reference itself. Retrying will not help.
	ErrInvalidInvoice = errors.New("invalid invoice reference")
)

// Invoice is what a client needs to pay: the QR payload and a short link.
type Invoice struct {
	InvoiceID string    `json:"invoiceId"`
	QRText    string    `json:"qrText"`
	ShortURL  string    `json:"shortUrl"`
	CreatedAt time.Time `json:"-"`
}

// PaymentCheck is the gateway's authoritative answer for an invoice.
type PaymentCheck struct {
	Status     types.PaymentCheckStatus
	PaidAmount decimal.Decimal
	PaymentID  string
}

func (p *PaymentCheck) Paid() bool {
	return p != nil && p.Status == types.PaymentCheckStatusPaid
}

type tokenResponse struct {
	TokenType    string `json:"token_type"`
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

type createInvoiceRequest struct {
	InvoiceCode         string      `json:"invoice_code"`
	SenderInvoiceNo     string      `json:"sender_invoice_no"`
	InvoiceReceiverCode string      `json:"invoice_receiver_code"`
	InvoiceDescription  string      `json:"invoice_description"`
	Amount              json.Number `json:"amount"`
	CallbackURL         string      `json:"callback_url"`
}

type createInvoiceResponse struct {
	InvoiceID    string `json:"invoice_id"`
	QRText       string `json:"qr_text"`
	QRImage      string `json:"qr_image"`
	QPayShortURL string `json:"qPay_shortUrl"`
}

type checkOffset struct {
	PageNumber int `json:"page_number"`
	PageLimit  int `json:"page_limit"`
}

type checkPaymentRequest struct {
	ObjectType string      `json:"object_type"`
	ObjectID   string      `json:"object_id"`
	Offset     checkOffset `json:"offset"`
}

type paymentRow struct {
	PaymentID     string          `json:"payment_id"`
	PaymentStatus string          `json:"payment_status"`
	PaymentAmount decimal.Decimal `json:"payment_amount"`
}

type checkPaymentResponse struct {
	Count      int             `json:"count"`
	PaidAmount decimal.Decimal `json:"paid_amount"`
	Rows       []paymentRow    `json:"rows"`
}
