package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskraid/internal/app"
	"taskraid/internal/domain"
	"taskraid/internal/engine"
	"taskraid/internal/events"
	"taskraid/internal/game"
	"taskraid/internal/review"
)

func bossCmd() *cobra.Command {
	boss := &cobra.Command{Use: "boss", Short: "Fight the project boss"}
	boss.AddCommand(bossStatusCmd())
	boss.AddCommand(bossSetupCmd())
	boss.AddCommand(bossSpecialCmd())
	boss.AddCommand(bossNextPhaseCmd())
	return boss
}

func bossStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the boss and the party",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				snap, err := a.Engine.Status(ctx, projectID, actor())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(snap)
				}
				renderSnapshot(snap)
				return nil
			})
		},
	}
}

func bossSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Summon a normal boss sized to the backlog (owner only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				b, err := a.Engine.SetupBoss(ctx, projectID, actor())
				if err != nil {
					return err
				}
				return printBoss(b)
			})
		},
	}
}

func bossSpecialCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "special",
		Short: "Summon a special boss (owner only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				b, err := a.Engine.SetupSpecialBoss(ctx, projectID, actor())
				if err != nil {
					return err
				}
				return printBoss(b)
			})
		},
	}
}

func bossNextPhaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next-phase",
		Short: "Move a defeated boss to its next phase (owner only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				res, err := a.Engine.NextPhase(ctx, projectID, actor())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				if !res.Advanced {
					fmt.Printf("The backlog did not grow (net change %d); the boss stays down.\n", res.NetChange)
					return nil
				}
				return printBoss(res.Boss)
			})
		},
	}
}

func attackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attack <task-id>",
		Short: "Let the boss strike the assignees of a task (owner only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				res, err := a.Engine.BossAttack(ctx, projectID, actor(), args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				renderHits(res.Hits)
				return nil
			})
		},
	}
}

func healCmd() *cobra.Command {
	var value float64
	cmd := &cobra.Command{
		Use:   "heal <member>",
		Short: "Heal a teammate by a percentage of their max HP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				target, err := resolveMember(ctx, a, projectID, args[0])
				if err != nil {
					return err
				}
				res, err := a.Engine.Heal(ctx, projectID, actor(), target, value)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("Healed %s for %d (now %d/%d)\n", res.TargetID, res.Amount, res.HP, res.MaxHP)
				return nil
			})
		},
	}
	cmd.Flags().Float64Var(&value, "value", 10, "percentage of max HP to restore (0..100)")
	return cmd
}

func reviveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revive [member]",
		Short: "Revive yourself, or any member as the owner",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				var memberID string
				if len(args) == 1 {
					var err error
					if memberID, err = resolveMember(ctx, a, projectID, args[0]); err != nil {
						return err
					}
				}
				m, err := a.Engine.Revive(ctx, projectID, actor(), memberID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(m)
				}
				fmt.Printf("%s is back at %s HP\n", m.UserID, hpBar(m))
				return nil
			})
		},
	}
}

func reviewCmd() *cobra.Command {
	rev := &cobra.Command{Use: "review", Short: "Review finished tasks"}
	rev.AddCommand(reviewCreateCmd())
	rev.AddCommand(reviewListCmd())
	return rev
}

func reviewCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <task-id> <text>",
		Short: "Review the assignees of a finished task",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				res, err := a.Review.Create(ctx, review.CreateOptions{
					ProjectID:   projectID,
					TaskID:      args[0],
					Description: strings.Join(args[1:], " "),
					ReporterID:  actor(),
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("Review %s rated %d/5 (%s)\n", res.Report.ID, res.Report.Sentiment, res.Source)
				renderGrants(res.Support.Grants)
				return nil
			})
		},
	}
}

func reviewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <task-id>",
		Short: "List reviews of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				reports, err := a.Review.List(ctx, projectID, args[0], actor())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(reports)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Reporter", "Sentiment", "Review"})
				for _, r := range reports {
					tw.AppendRow(table.Row{r.ID, r.ReporterID, r.Sentiment, r.Description})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func itemCmd() *cobra.Command {
	item := &cobra.Command{Use: "item", Short: "Use earned items"}
	item.AddCommand(&cobra.Command{
		Use:   "use <owned-item-id>",
		Short: "Use one of your items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				res, err := a.Engine.UseItem(ctx, projectID, actor(), args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	})
	return item
}

func logCmd() *cobra.Command {
	l := &cobra.Command{Use: "log", Short: "Read the raid history"}
	l.AddCommand(logTailCmd())
	return l
}

func logTailCmd() *cobra.Command {
	var n int
	var types []string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				q := engine.EventQuery{ProjectID: projectID, Limit: n, ActorID: actor()}
				for _, t := range types {
					q.Types = append(q.Types, events.Type(t))
				}
				entries, err := a.Engine.Events(ctx, q)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "At", "Type", "Actor", "Payload"})
				for _, e := range entries {
					tw.AppendRow(table.Row{e.ID, formatTime(&e.CreatedAt), e.Type, fmt.Sprintf("%s:%s", e.ActorType, e.ActorID), e.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringSliceVar(&types, "type", nil, "event type filter")
	return cmd
}

func printBoss(b domain.Boss) error {
	if viper.GetBool("json") {
		return printJSON(b)
	}
	name := b.ID
	if b.Type != nil {
		name = fmt.Sprintf("%s (%s)", b.Type.Name, b.Type.Category)
	}
	fmt.Printf("%s  phase %d  HP %d/%d  %s\n", name, b.Phase, b.HP, b.MaxHP, b.Status)
	return nil
}

func renderSnapshot(s game.Snapshot) {
	if s.Boss == nil || !s.Boss.Initialized() {
		fmt.Println("No boss yet; the owner can summon one with 'raid boss setup'.")
	} else {
		_ = printBoss(*s.Boss)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Member", "User", "HP", "Score", "Status", "Effects", "Items"})
	for _, m := range s.Members {
		effects := make([]string, 0, len(m.Effects))
		for _, e := range m.Effects {
			effects = append(effects, e.Effect.ID)
		}
		items := make([]string, 0, len(m.Items))
		for _, it := range m.Items {
			items = append(items, fmt.Sprintf("%s=%s", it.ID, it.Item.ID))
		}
		tw.AppendRow(table.Row{m.ID, m.UserID, hpBar(m.Member), m.Score, m.Status, strings.Join(effects, ","), strings.Join(items, ",")})
	}
	tw.Render()
}

func renderHits(hits []game.Hit) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Member", "Damage", "HP", "Killed", "Consumed"})
	for _, h := range hits {
		if h.Skipped {
			tw.AppendRow(table.Row{h.MemberID, "-", h.HP, h.Killed, "skipped"})
			continue
		}
		tw.AppendRow(table.Row{h.MemberID, h.Damage, h.HP, h.Killed, strings.Join(h.Consumed, ",")})
	}
	tw.Render()
}

func renderGrants(grants []game.Grant) {
	if len(grants) == 0 {
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Member", "Kind", "Applied", "Detail"})
	for _, g := range grants {
		detail := g.Reason
		switch {
		case g.Effect != nil:
			detail = g.Effect.ID
		case g.ItemID != "":
			detail = g.ItemID
		}
		tw.AppendRow(table.Row{g.MemberID, g.Kind, g.Applied, detail})
	}
	tw.Render()
}
