package notification_handler

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/fatflowers/checkout/internal/app/service/reconcile"
	"github.com/fatflowers/checkout/pkg/types"
)

type NotificationParser interface {
	GetSource(ctx context.Context) types.NotificationSource
	GetNotificationTime(ctx context.Context) time.Time
	GetSessionID(ctx context.Context) string
	GetInvoiceID(ctx context.Context) string
	GetNotification(ctx context.Context) *reconcile.Notification
	GetData(ctx context.Context) any
}

// GatewayNotificationParser reads a callback delivered to the webhook URL.
type GatewayNotificationParser struct {
	Notification *reconcile.Notification
	ReceivedAt   time.Time
	Query        url.Values
	Body         json.RawMessage
}

func GetGatewayNotificationParser(query url.Values, body []byte, now time.Time) (*GatewayNotificationParser, error) {
	n, err := reconcile.ParseWebhook(query, body)
	if err != nil {
		return nil, err
	}
	p := &GatewayNotificationParser{Notification: n, ReceivedAt: now, Query: query}
	if json.Valid(body) {
		p.Body = json.RawMessage(body)
	}
	return p, nil
}

func (p *GatewayNotificationParser) GetSource(context.Context) types.NotificationSource {
	return p.Notification.Source
}

func (p *GatewayNotificationParser) GetNotificationTime(context.Context) time.Time {
	return p.ReceivedAt
}

func (p *GatewayNotificationParser) GetSessionID(context.Context) string {
	return p.Notification.SessionID
}

func (p *GatewayNotificationParser) GetInvoiceID(context.Context) string {
	return p.Notification.InvoiceID
}

func (p *GatewayNotificationParser) GetNotification(context.Context) *reconcile.Notification {
	return p.Notification
}

// GetData returns what is stored in the notification log. The callback
// token is left out.
func (p *GatewayNotificationParser) GetData(context.Context) any {
	q := url.Values{}
	for k, v := range p.Query {
		if k != "token" {
			q[k] = v
		}
	}
	return map[string]any{
		"query": q,
		"body":  p.Body,
	}
}
