// Command medic проверяет и чинит сетки турниров и сессии вето.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Dosada05/tournament-engine/config"
	"github.com/Dosada05/tournament-engine/db"
	"github.com/Dosada05/tournament-engine/events"
	"github.com/Dosada05/tournament-engine/metrics"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/realtime"
	"github.com/Dosada05/tournament-engine/repositories"
	"github.com/Dosada05/tournament-engine/services"
	"github.com/Dosada05/tournament-engine/storage"
	"github.com/Dosada05/tournament-engine/veto"
)

// exitUnhealthy - код выхода, если проверка нашла проблемы.
const exitUnhealthy = 2

type medic struct {
	brackets services.BracketService
	vetoes   services.VetoService
	out      io.Writer
	close    func()
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	app := &cli.App{
		Name:  "medic",
		Usage: "inspect and repair brackets and veto sessions",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log at info level"},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("verbose") {
				slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "health",
				Usage:     "validate the bracket of a tournament",
				ArgsUsage: "<tournament-id>",
				Action: withMedic(func(c *cli.Context, m *medic) error {
					id, err := intArg(c, 0, "tournament-id")
					if err != nil {
						return err
					}
					report, err := m.brackets.Health(c.Context, id)
					if err != nil {
						return err
					}
					if err := m.print(report); err != nil {
						return err
					}
					if !report.Healthy() {
						return cli.Exit(fmt.Sprintf("bracket has %d issue(s)", len(report.Issues)), exitUnhealthy)
					}
					return nil
				}),
			},
			{
				Name:      "repair",
				Usage:     "apply the repairable corrections to a bracket",
				ArgsUsage: "<tournament-id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "dry-run", Usage: "print the planned corrections without writing"},
				},
				Action: withMedic(func(c *cli.Context, m *medic) error {
					id, err := intArg(c, 0, "tournament-id")
					if err != nil {
						return err
					}
					result, err := m.brackets.Repair(c.Context, id, c.Bool("dry-run"))
					if err != nil {
						return err
					}
					if err := m.print(result); err != nil {
						return err
					}
					if !result.After.Healthy() {
						return cli.Exit("issues remain that need an operator", exitUnhealthy)
					}
					return nil
				}),
			},
			{
				Name:  "veto-audit",
				Usage: "list unfinished veto sessions and flag stale or inconsistent ones",
				Action: withMedic(func(c *cli.Context, m *medic) error {
					audits, err := m.vetoes.AuditSessions(c.Context)
					if err != nil {
						return err
					}
					if err := m.print(audits); err != nil {
						return err
					}
					for _, a := range audits {
						if a.NeedsAttention() {
							return cli.Exit("some sessions need attention", exitUnhealthy)
						}
					}
					return nil
				}),
			},
			{
				Name:      "veto-resync",
				Usage:     "rewrite the turn pointer from the action log",
				ArgsUsage: "<session-id>",
				Action: withMedic(func(c *cli.Context, m *medic) error {
					return m.sessionOp(c, m.vetoes.ResyncSession)
				}),
			},
			{
				Name:      "veto-reset",
				Usage:     "delete all actions and restart the session",
				ArgsUsage: "<session-id>",
				Action: withMedic(func(c *cli.Context, m *medic) error {
					return m.sessionOp(c, m.vetoes.ResetSession)
				}),
			},
			{
				Name:      "veto-complete",
				Usage:     "force a session to completed",
				ArgsUsage: "<session-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "side", Usage: "side for the decider map (attack or defense)"},
				},
				Action: withMedic(func(c *cli.Context, m *medic) error {
					var side *models.Side
					if v := c.String("side"); v != "" {
						s := models.Side(v)
						if !s.Valid() {
							return fmt.Errorf("invalid side %q", v)
						}
						side = &s
					}
					return m.sessionOp(c, func(ctx context.Context, id int) (*veto.State, error) {
						return m.vetoes.ForceCompleteSession(ctx, id, side)
					})
				}),
			},
			{
				Name:      "veto-watch",
				Usage:     "follow a veto session over the realtime endpoint",
				ArgsUsage: "<ws-url>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "token", EnvVars: []string{"MEDIC_TOKEN"}, Usage: "bearer token"},
				},
				Action: watchVeto,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		slog.Error("medic failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// withMedic собирает сервисы поверх настроенной БД для одной команды.
func withMedic(fn func(c *cli.Context, m *medic) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		m, err := newMedic(c.Context)
		if err != nil {
			return err
		}
		defer m.close()
		return fn(c, m)
	}
}

func newMedic(ctx context.Context) (*medic, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.Default()

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return nil, err
	}

	publisher := events.NewNoopPublisher()
	if cfg.NATSURL != "" {
		if publisher, err = events.NewNATSPublisher(cfg.NATSURL, logger); err != nil {
			dbConn.Close()
			return nil, err
		}
	}

	archiver := storage.NewNoopArchiver()
	if cfg.ArchiveEnabled() {
		uploader, err := storage.NewCloudflareR2Uploader(ctx, storage.CloudflareR2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			publisher.Close()
			dbConn.Close()
			return nil, err
		}
		archiver = storage.NewArchiver(uploader)
	}

	// Hub не нужен: сервер узнает об изменениях через NOTIFY-триггеры
	deps := services.Deps{
		Tx:          repositories.NewTxRunner(dbConn, logger),
		Tournaments: repositories.NewPostgresTournamentRepository(dbConn),
		Teams:       repositories.NewPostgresTeamRepository(dbConn),
		Matches:     repositories.NewPostgresMatchRepository(dbConn),
		Vetoes:      repositories.NewPostgresVetoRepository(dbConn),
		Publisher:   publisher,
		Archiver:    archiver,
		Metrics:     metrics.New(),
		Logger:      logger,
	}

	return &medic{
		brackets: services.NewBracketService(deps),
		vetoes:   services.NewVetoService(deps, cfg.VetoStaleAfter),
		out:      os.Stdout,
		close: func() {
			publisher.Close()
			dbConn.Close()
		},
	}, nil
}

func (m *medic) print(v any) error {
	enc := json.NewEncoder(m.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (m *medic) sessionOp(c *cli.Context, op func(ctx context.Context, id int) (*veto.State, error)) error {
	id, err := intArg(c, 0, "session-id")
	if err != nil {
		return err
	}
	st, err := op(c.Context, id)
	if err != nil {
		return err
	}
	return m.print(st)
}

func intArg(c *cli.Context, n int, name string) (int, error) {
	v := c.Args().Get(n)
	if v == "" {
		return 0, fmt.Errorf("missing argument <%s>", name)
	}
	id, err := strconv.Atoi(v)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid <%s> %q", name, v)
	}
	return id, nil
}

func watchVeto(c *cli.Context) error {
	url := c.Args().First()
	if url == "" {
		return errors.New("missing argument <ws-url>")
	}

	sub := &realtime.VetoSubscriber{
		URL:        url,
		Reconciler: veto.NewReconciler(veto.State{}, veto.Options{}),
		Logger:     slog.Default(),
		OnUpdate: func(_ veto.RefreshResult, view veto.View) {
			st := view.State
			fmt.Fprintf(os.Stdout, "%s position=%d step=%s remaining=%v sync_error=%v\n",
				time.Now().Format(time.TimeOnly), st.CurrentPosition, st.Step, st.RemainingMaps, st.TurnSyncError != nil)
		},
	}
	if token := c.String("token"); token != "" {
		sub.Header = map[string][]string{"Authorization": {"Bearer " + token}}
	}
	return sub.Run(c.Context)
}
