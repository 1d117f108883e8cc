package supervisor

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/meep1w/pocket/internal/domain"
	"github.com/meep1w/pocket/pkg/logger"
)

// botTokenPattern is the Telegram bot token shape: numeric bot id,
// colon, base64-ish secret
var botTokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]{30,}$`)

// ErrBadBotToken is returned by HeartbeatRuntime when a tenant's token
// is malformed; the supervisor counts it as a crash
var ErrBadBotToken = fmt.Errorf("malformed bot token")

// HeartbeatRuntime is the default worker body. It validates the bot
// token at start, then idles with a periodic heartbeat log until
// cancelled. Chat transports plug in by replacing it with their own
// Runtime.
type HeartbeatRuntime struct {
	Interval time.Duration
}

// NewHeartbeatRuntime creates the default runtime
func NewHeartbeatRuntime(interval time.Duration) *HeartbeatRuntime {
	if interval <= 0 {
		interval = time.Minute
	}
	return &HeartbeatRuntime{Interval: interval}
}

func (r *HeartbeatRuntime) Run(ctx context.Context, tenant *domain.Tenant) error {
	if !botTokenPattern.MatchString(tenant.BotToken) {
		return fmt.Errorf("%w for tenant %d", ErrBadBotToken, tenant.ID)
	}

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			logger.Debug("worker heartbeat",
				zap.Int64("tenant_id", tenant.ID),
				zap.String("bot_username", tenant.BotUsername),
			)
		}
	}
}
