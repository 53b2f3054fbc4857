package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fatflowers/truckstamp/pkg/config"
	"github.com/fatflowers/truckstamp/pkg/logctx"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type Type string

const (
	TypeRewardUnlocked Type = "reward_unlocked"
)

type Message struct {
	SubjectID string         `json:"subject_id"`
	Type      Type           `json:"type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

// Notifier enqueues a user notification. It is best effort and never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, subjectID string, typ Type, payload map[string]any)
}

type publisher interface {
	Publish(subj string, data []byte) error
}

// BusNotifier publishes notifications to {prefix}.{type} for the delivery workers.
type BusNotifier struct {
	pub    publisher
	prefix string
	log    *zap.SugaredLogger
}

func (n *BusNotifier) Notify(ctx context.Context, subjectID string, typ Type, payload map[string]any) {
	lg := logctx.FromCtx(ctx, n.log)
	data, err := json.Marshal(&Message{SubjectID: subjectID, Type: typ, Payload: payload, CreatedAt: time.Now()})
	if err != nil {
		lg.Errorw("failed to encode notification", "type", typ, "err", err)
		return
	}
	subject := fmt.Sprintf("%s.%s", n.prefix, typ)
	if err := n.pub.Publish(subject, data); err != nil {
		lg.Errorw("failed to publish notification", "subject", subject, "err", err)
		return
	}
	lg.Debugw("notification published", "subject", subject)
}

// LogNotifier only records the notification; used when no bus is configured.
type LogNotifier struct {
	log *zap.SugaredLogger
}

func (n *LogNotifier) Notify(ctx context.Context, subjectID string, typ Type, payload map[string]any) {
	logctx.FromCtx(ctx, n.log).Infow("notification", "subject_id", subjectID, "type", typ, "payload", payload)
}

// NewNotifier returns a bus backed notifier, or a log-only one when conn is nil.
func NewNotifier(conn *nats.Conn, cfg *config.Config, log *zap.SugaredLogger) Notifier {
	if conn == nil {
		log.Warnw("nats not configured, notifications will only be logged")
		return &LogNotifier{log: log}
	}
	return &BusNotifier{pub: conn, prefix: cfg.Nats.SubjectPrefix, log: log}
}
