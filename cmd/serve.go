package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pcmrules/TableBack/internal/config"
	"github.com/pcmrules/TableBack/internal/engine"
	"github.com/pcmrules/TableBack/internal/gateway"
	"github.com/pcmrules/TableBack/internal/logger"
	"github.com/pcmrules/TableBack/internal/notify"
	"github.com/pcmrules/TableBack/internal/postgres"
	"github.com/pcmrules/TableBack/internal/replies"
	"github.com/pcmrules/TableBack/internal/web"
)

func newServeCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the automation engine + HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			logger.Init(cfg.LogLevel, cfg.LogFormat)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			var gw gateway.Gateway = gateway.Noop{}
			if cfg.GatewayBaseURL != "" {
				gw, err = gateway.NewWhatsAppClient(cfg.GatewayBaseURL, cfg.GatewayToken, cfg.GatewayInstanceID)
				if err != nil {
					return err
				}
			} else {
				log.Warn().Msg("no messaging gateway configured; outbound sends disabled")
			}

			ledger := replies.NewCacheLedger(cfg.ReplyTTL, cfg.DefaultCountryCode)
			feed := &notify.Recorder{}

			eng := engine.New(engine.Config{
				FirstReminderMinutesBefore: cfg.FirstReminderMinutesBefore,
				FinalReminderMinutesBefore: cfg.FinalReminderMinutesBefore,
				NoShowGraceMinutes:         cfg.NoShowGraceMinutes,
				WaitlistResponseMinutes:    cfg.WaitlistResponseMinutes,
				Location:                   cfg.Location(),
				ChannelEnabled:             cfg.ChannelEnabled,
			}, engine.NewStore(), gw, ledger, notify.Fanout{notify.Log{}, feed}, engine.NewClock())

			// Persistence is layered outside the engine: load once at boot,
			// save on an interval. Without DATABASE_URL the engine runs
			// local-only.
			if cfg.DatabaseURL != "" {
				repo, err := postgres.Open(ctx, cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer repo.Close()

				if err := repo.Ping(ctx); err != nil {
					return fmt.Errorf("db ping: %w", err)
				}
				if migrateUp {
					if err := repo.Migrate(ctx); err != nil {
						return err
					}
				}
				snap, err := repo.Load(ctx)
				if err != nil {
					return err
				}
				eng.LoadSnapshot(snap)
				log.Info().Int("reservations", len(snap.Reservations)).Int("waitlist", len(snap.Waitlist)).Msg("state loaded")

				go snapshotLoop(ctx, repo, eng, cfg.SnapshotInterval)
			}

			go func() { _ = eng.Run(ctx, cfg.TickInterval) }()

			srv := &web.Server{Engine: eng, Ledger: ledger, Feed: feed}
			return web.Start(ctx, cfg.HTTPAddr, srv.Routes())
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	return cmd
}

func snapshotLoop(ctx context.Context, repo *postgres.Repo, eng *engine.Engine, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			// One last save with a fresh context so a clean shutdown does
			// not lose the final ticks.
			saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := repo.Save(saveCtx, eng.Snapshot()); err != nil {
				log.Error().Err(err).Msg("final snapshot save failed")
			}
			cancel()
			return
		case <-t.C:
			if err := repo.Save(ctx, eng.Snapshot()); err != nil {
				log.Error().Err(err).Msg("snapshot save failed")
			}
		}
	}
}
