package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskraid/internal/app"
	"taskraid/internal/config"
	"taskraid/internal/db"
	"taskraid/internal/domain"
	"taskraid/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "raid",
	Short: "Taskraid CLI",
	Long: `Taskraid turns a project backlog into a boss fight.
Core concepts:
- Workspace: the .taskraid directory holding the database; taskraid.yml beside it tunes the game.
- Project: a team with one boss whose HP grows with the backlog and the member count.
- Member: a user inside a project with HP, a score and a dead/alive status.
- Tasks: finishing one strikes the boss; missing a deadline lets the boss strike the assignees.
- Reviews: peers rate finished work; trust and alignment decide who earns buffs or debuffs.
- Items and effects: rewards that change damage, defence, score or heal.
- Event log: the raid history, view with 'raid log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TASKRAID")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("user", "local-user", "acting user id")
	rootCmd.PersistentFlags().String("project", "", "project id (defaults to your only project)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
	_ = viper.BindPFlag("project", rootCmd.PersistentFlags().Lookup("project"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(memberCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(bossCmd())
	rootCmd.AddCommand(attackCmd())
	rootCmd.AddCommand(healCmd())
	rootCmd.AddCommand(reviveCmd())
	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(itemCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tokenCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage taskraid.yml"}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default taskraid.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; pass --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.DefaultTemplate), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}
}

// --- helpers ---

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	rt, err := config.LoadRuntime()
	if err != nil {
		return err
	}
	log := logger.Init(logger.Config{Level: rt.LogLevel, File: rt.LogFile})
	a, err := app.Open(ctx, app.Options{Workspace: viper.GetString("workspace"), Runtime: rt, Logger: log})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// withProject resolves the target project for the acting user before running fn.
func withProject(ctx context.Context, fn func(context.Context, *app.App, string) error) error {
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		projectID, err := a.ResolveProject(ctx, viper.GetString("project"), actor())
		if err != nil {
			return err
		}
		return fn(ctx, a, projectID)
	})
}

func actor() string {
	return viper.GetString("user")
}

// resolveMember accepts a member id or the user id of a member.
func resolveMember(ctx context.Context, a *app.App, projectID, ref string) (string, error) {
	members, err := a.Engine.ListMembers(ctx, projectID)
	if err != nil {
		return "", err
	}
	for _, m := range members {
		if m.ID == ref {
			return m.ID, nil
		}
	}
	for _, m := range members {
		if m.UserID == ref {
			return m.ID, nil
		}
	}
	return "", fmt.Errorf("no member %q in project %s", ref, projectID)
}

// parseDeadline accepts RFC 3339 timestamps and plain dates, read as end of day UTC.
func parseDeadline(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return &t, nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("invalid deadline %q: use YYYY-MM-DD or RFC 3339", s)
	}
	t := d.Add(24*time.Hour - time.Second).UTC()
	return &t, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func hpBar(m domain.Member) string {
	return fmt.Sprintf("%d/%d", m.HP, m.MaxHP)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
