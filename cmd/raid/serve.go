package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskraid/internal/app"
	"taskraid/internal/config"
	"taskraid/internal/logger"
	"taskraid/internal/overdue"
	"taskraid/internal/server"
)

func sweepCmd() *cobra.Command {
	var opts app.SweepOptions
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Let bosses attack the assignees of overdue tasks",
		Long:  "Each overdue task is attacked at most once, however often the sweep runs. Without --project every project is swept.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ProjectID = viper.GetString("project")
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				rep, err := a.Sweeper(opts).Run(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rep)
				}
				renderSweep(rep, opts.DryRun)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "list candidates without attacking")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "max candidates (defaults to sweep.limit)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "projects swept concurrently (defaults to sweep.workers)")
	return cmd
}

func renderSweep(rep overdue.Report, dryRun bool) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Project", "Task", "Deadline", "Assignees"})
	for _, c := range rep.Candidates {
		tw.AppendRow(table.Row{c.ProjectID, c.TaskID, formatTime(&c.Deadline), len(c.Assignees)})
	}
	tw.Render()
	if dryRun {
		fmt.Printf("%d overdue tasks (dry run)\n", len(rep.Candidates))
		return
	}
	fmt.Printf("attacked=%d skipped=%d failed=%d damage=%d\n", rep.Attacked, rep.Skipped, rep.Failed, rep.Damage)
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var sweepEvery time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := config.LoadRuntime()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") || rt.Addr == "" {
				rt.Addr = addr
			}
			if rt.JWTSecret == "" {
				return fmt.Errorf("TASKRAID_JWT_SECRET is required for bearer auth")
			}
			log := logger.Init(logger.Config{Level: rt.LogLevel, File: rt.LogFile})
			a, err := app.Open(cmd.Context(), app.Options{Workspace: viper.GetString("workspace"), Runtime: rt, Logger: log})
			if err != nil {
				return err
			}
			defer a.Close()
			handler, err := server.New(server.Config{
				Engine:   a.Engine,
				Review:   a.Review,
				BasePath: basePath,
				Auth:     server.AuthConfig{JWTSecret: rt.JWTSecret},
				Logger:   log,
			})
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if sweepEvery > 0 {
				go sweepLoop(ctx, a, sweepEvery)
			}
			srv := &http.Server{Addr: rt.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-ctx.Done()
				sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer scancel()
				srv.Shutdown(sctx)
			}()
			fmt.Printf("Serving Taskraid API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", rt.Addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address (overrides TASKRAID_ADDR)")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	cmd.Flags().DurationVar(&sweepEvery, "sweep-every", 0, "run the overdue sweep on this interval (0 disables)")
	return cmd
}

func sweepLoop(ctx context.Context, a *app.App, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.Sweeper(app.SweepOptions{}).Run(ctx); err != nil && ctx.Err() == nil {
				a.Logger.Error("scheduled sweep failed", "err", err)
			}
		}
	}
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the acting user",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := config.LoadRuntime()
			if err != nil {
				return err
			}
			token, err := server.IssueToken(rt.JWTSecret, actor(), ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime (0 for no expiry)")
	return cmd
}
