package notification_log

import (
	"context"
	"time"

	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/pkg/logctx"
	"github.com/fatflowers/checkout/pkg/tool"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const saveTimeout = 5 * time.Second

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

// Save asynchronously persists a payment notification log. Nil input is ignored.
// The write outlives the request, so it does not inherit ctx cancellation.
func (s *Service) Save(ctx context.Context, log *models.PaymentNotificationLog) {
	go func() {
		if log == nil {
			return
		}
		if log.ID == "" {
			log.ID = tool.GenerateUUIDV7()
		}
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
		defer cancel()
		if err := s.db.WithContext(wctx).Save(log).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save notification log: %v", err)
		}
	}()
}

// ListBySession returns the audit rows of a session, oldest first.
func (s *Service) ListBySession(ctx context.Context, sessionID string) ([]*models.PaymentNotificationLog, error) {
	var rows []*models.PaymentNotificationLog
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

var Module = fx.Options(
	fx.Provide(New),
)
