package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/semmidev/custos/internal/app"
	"github.com/semmidev/custos/internal/config"
	"github.com/semmidev/custos/internal/infrastructure/logger"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newCLI().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

func newCLI() *cli.App {
	return &cli.App{
		Name:  "custos",
		Usage: "scheduled MySQL/PostgreSQL backups with retention",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "configs/config.yaml",
				EnvVars: []string{"CUSTOS_CONFIG"},
				Usage:   "path to config yaml",
			},
		},
		Action: runDaemon,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "run as a daemon: backup on start, then every interval",
				Action: runDaemon,
			},
			{
				Name:  "once",
				Usage: "run a single backup-and-cleanup cycle and exit",
				Action: func(c *cli.Context) error {
					return withApp(c, func(a *app.App) error {
						_, err := a.RunOnce(c.Context)
						return err
					})
				},
			},
			{
				Name:  "cleanup",
				Usage: "delete backups older than the retention window and exit",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "dry-run", Usage: "only report what would be deleted"},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return fmt.Errorf("load config: %w", err)
					}
					if c.Bool("dry-run") {
						cfg.Backup.DryRun = true
					}
					return withConfig(c, cfg, func(a *app.App) error {
						_, err := a.CleanupOnce(c.Context)
						return err
					})
				},
			},
			{
				Name:  "check",
				Usage: "validate config, dump tool, database connectivity and storage",
				Action: func(c *cli.Context) error {
					return withApp(c, func(a *app.App) error {
						if err := a.Check(c.Context); err != nil {
							return err
						}
						fmt.Println("✓ All checks passed")
						return nil
					})
				},
			},
			{
				Name:  "gdrive-auth",
				Usage: "obtain a Google Drive refresh token through the browser",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Value: "localhost:8085", Usage: "listen address for the OAuth callback"},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return fmt.Errorf("load config: %w", err)
					}
					log, err := logger.New(logger.Options{Level: cfg.App.LogLevel})
					if err != nil {
						return err
					}
					defer log.Close()

					svc, err := app.NewGoogleOAuthService(log, cfg.Storage.GDrive.ClientSecretFile)
					if err != nil {
						return err
					}
					return svc.Serve(c.Context, c.String("addr"))
				},
			},
		},
	}
}

func runDaemon(c *cli.Context) error {
	return withApp(c, func(a *app.App) error {
		return a.Run(c.Context)
	})
}

func withApp(c *cli.Context, fn func(*app.App) error) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return withConfig(c, cfg, fn)
}

func withConfig(c *cli.Context, cfg *config.Config, fn func(*app.App) error) error {
	application, err := app.New(c.Context, cfg)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer application.Shutdown()

	return fn(application)
}
