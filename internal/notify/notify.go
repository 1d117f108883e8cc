package notify

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/meep1w/pocket/internal/domain"
	"github.com/meep1w/pocket/pkg/logger"
)

// StateChange describes a funnel transition worth telling a bot about.
// Emitted after the transition is durably persisted, and at most once
// per one-shot flag.
type StateChange struct {
	TenantID      int64           `json:"tenant_id"`
	UserID        int64           `json:"user_id"`
	TgUserID      *int64          `json:"tg_user_id,omitempty"`
	Step          domain.UserStep `json:"step"`
	AccessGranted bool            `json:"access_granted"`
	VIPEligible   bool            `json:"vip_eligible"`
	DepositTotal  int64           `json:"deposit_total"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// Notifier delivers state changes to whatever is driving user
// conversations. Delivery is best-effort: implementations log failures
// and never return them, so a broken hook cannot fail ingestion.
type Notifier interface {
	StateChanged(ctx context.Context, change StateChange)
}

// LogNotifier writes state changes to the structured log. It is the
// default hook when no broker is configured.
type LogNotifier struct{}

// NewLogNotifier creates a log-only notifier
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) StateChanged(ctx context.Context, change StateChange) {
	logger.WithContext(ctx).Info("funnel state changed",
		zap.Int64("tenant_id", change.TenantID),
		zap.Int64("user_id", change.UserID),
		zap.String("step", string(change.Step)),
		zap.Bool("access_granted", change.AccessGranted),
		zap.Bool("vip_eligible", change.VIPEligible),
		zap.Int64("deposit_total", change.DepositTotal),
	)
}

// KafkaNotifier publishes state changes to a Kafka topic, keyed by
// tenant so per-tenant ordering is preserved across partitions
type KafkaNotifier struct {
	client *kgo.Client
	topic  string
}

// NewKafkaNotifier connects a franz-go producer to the given brokers
func NewKafkaNotifier(brokers []string, topic, clientID string) (*KafkaNotifier, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProduceRequestTimeout(10*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &KafkaNotifier{client: client, topic: topic}, nil
}

func (n *KafkaNotifier) StateChanged(ctx context.Context, change StateChange) {
	payload, err := json.Marshal(change)
	if err != nil {
		logger.WithContext(ctx).Error("marshal state change", zap.Error(err))
		return
	}

	record := &kgo.Record{
		Topic: n.topic,
		Key:   []byte(strconv.FormatInt(change.TenantID, 10)),
		Value: payload,
	}
	n.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			logger.Error("publish state change",
				zap.Int64("tenant_id", change.TenantID),
				zap.Int64("user_id", change.UserID),
				zap.Error(err),
			)
		}
	})
}

// Close flushes pending records and shuts the producer down
func (n *KafkaNotifier) Close(ctx context.Context) error {
	if err := n.client.Flush(ctx); err != nil {
		return err
	}
	n.client.Close()
	return nil
}
