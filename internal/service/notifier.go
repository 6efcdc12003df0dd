package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/iliyamo/pool-booking/internal/model"
)

// Notifier delivers booking confirmations.  It is called only after the
// booking transaction has committed; delivery is best effort.
type Notifier interface {
	SendBookingConfirmation(ctx context.Context, email string, info model.SessionInfo) error
}

// LogNotifier writes confirmations to the log.  It is used when no broker
// is configured.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{log: logger.Named("notify")}
}

func (n *LogNotifier) SendBookingConfirmation(_ context.Context, email string, info model.SessionInfo) error {
	n.log.Info("booking confirmed",
		zap.String("user", email),
		zap.String("pool", info.PoolName),
		zap.Time("start", info.StartTime),
		zap.Time("end", info.EndTime),
	)
	return nil
}
