package bus

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sethvargo/go-retry"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cfgpkg "github.com/fatflowers/truckstamp/pkg/config"
)

const connectAttempts = 5

// NewNats connects to the message bus. An empty URL disables the bus and yields a nil connection.
func NewNats(lc fx.Lifecycle, l *zap.SugaredLogger, cfg *cfgpkg.Config) (*nats.Conn, error) {
	if cfg.Nats.URL == "" {
		return nil, nil
	}

	var nc *nats.Conn
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	backoff := retry.WithMaxRetries(connectAttempts, retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		conn, err := nats.Connect(cfg.Nats.URL,
			nats.Name("truckstamp"),
			nats.MaxReconnects(-1),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err != nil {
					l.Warnw("nats disconnected", "err", err)
				}
			}),
			nats.ReconnectHandler(func(c *nats.Conn) {
				l.Infow("nats reconnected", "url", c.ConnectedUrl())
			}),
		)
		if err != nil {
			l.Warnw("nats not ready", "err", err)
			return retry.RetryableError(err)
		}
		nc = conn
		return nil
	})
	if err != nil {
		l.Errorf("failed to connect nats: %v", err)
		return nil, err
	}
	l.Infow("connected to nats", "url", nc.ConnectedUrl())

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			l.Infow("draining nats connection")
			return nc.Drain()
		},
	})
	return nc, nil
}

var Module = fx.Options(
	fx.Provide(NewNats),
)
