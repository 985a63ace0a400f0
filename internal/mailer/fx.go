package mailer

import (
	"context"

	"github.com/smallbiznis/seohub/internal/clock"
	"github.com/smallbiznis/seohub/internal/config"
	"github.com/smallbiznis/seohub/internal/mailer/token"
	"github.com/smallbiznis/seohub/internal/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("mailer",
	fx.Provide(
		newProvider,
		newSigner,
		newQueue,
		newNotifier,
	),
	fx.Invoke(registerQueue),
)

func newProvider(cfg config.Config, log *zap.Logger) Provider {
	if cfg.Mail.SMTPUsername == "" {
		log.Warn("smtp not configured, email delivery disabled")
		return NoopProvider{}
	}
	return NewSMTP(cfg.Mail)
}

func newSigner(cfg config.Config) *token.Signer {
	return token.NewSigner(cfg.Mail.UnsubscribeSecret)
}

type queueParam struct {
	fx.In

	Cfg      config.Config
	Log      *zap.Logger
	Provider Provider
	Metrics  *telemetry.Metrics `optional:"true"`
}

func newQueue(p queueParam) *Queue {
	return NewQueue(p.Cfg.Mail, p.Log, p.Provider, p.Metrics)
}

func newNotifier(cfg config.Config, queue *Queue, signer *token.Signer, clk clock.Clock, log *zap.Logger) Notifier {
	return NewDispatcher(cfg.Mail, queue, signer, clk, log)
}

func registerQueue(lc fx.Lifecycle, queue *Queue) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			queue.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			queue.Stop()
			return nil
		},
	})
}
