package cli

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xueban-network/xueban/internal/daemon"
	"github.com/xueban-network/xueban/internal/domain"
)

// ─── Account administration ─────────────────────────────────────────────────
// Operator commands. They act directly on the database and skip the
// role checks the HTTP API applies.

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountCreateCmd)
	accountCmd.AddCommand(accountShowCmd)
	accountCmd.AddCommand(accountGrantCmd)
	accountCmd.AddCommand(accountBadgesCmd)
	accountCmd.AddCommand(accountBanCmd)
	rootCmd.AddCommand(leaderboardCmd)

	accountCreateCmd.Flags().Bool("admin", false, "Create an administrator")
	accountBanCmd.Flags().Bool("lift", false, "Lift an existing ban")
	leaderboardCmd.Flags().Int("limit", 20, "Number of accounts to show (max 100)")
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage accounts",
}

var accountCreateCmd = &cobra.Command{
	Use:   "create USERNAME",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role := domain.RoleUser
		if admin, _ := cmd.Flags().GetBool("admin"); admin {
			role = domain.RoleAdmin
		}
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			acct, err := d.Accounts.Create(ctx, args[0], role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Created %s account %q (id %d)\n", acct.Role, acct.Username, acct.ID)
			return nil
		})
	},
}

var accountShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show an account's balance and level",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			p, err := d.Accounts.Profile(ctx, id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (id %d, %s)\n", p.Username, p.ID, p.Role)
			fmt.Fprintf(out, "  XP:       %d\n", p.XP)
			fmt.Fprintf(out, "  Level:    %d (%.0f%%, %d XP to next)\n", p.Level, p.Progress.ProgressPct, p.Progress.XPToNext)
			if p.Banned {
				fmt.Fprintln(out, "  Status:   banned")
			}
			return nil
		})
	},
}

var accountGrantCmd = &cobra.Command{
	Use:   "grant ID AMOUNT",
	Short: "Grant XP to an account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		amount, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || amount <= 0 {
			return domain.ErrInvalidAmount
		}
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			res, err := d.Ledger.Grant(ctx, id, amount, domain.TxAdjust, domain.ReasonAdmin)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✅ Granted %d XP to account %d: balance %d, level %d\n", amount, id, res.Balance, res.Level)
			if res.LeveledUp {
				fmt.Fprintf(out, "   🎉 Level up!\n")
			}
			return nil
		})
	},
}

var accountBadgesCmd = &cobra.Command{
	Use:   "badges ID",
	Short: "Evaluate and list an account's badges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			held, err := d.Badges.ForAccount(ctx, id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(held) == 0 {
				fmt.Fprintln(out, "No badges yet.")
				return nil
			}
			fmt.Fprintf(out, "Badges (%d):\n", len(held))
			for _, b := range held {
				fmt.Fprintf(out, "  %s %-20s rarity %3d%%  %s\n", b.Icon, b.Name, b.Rarity, b.EarnedAt.Format("2006-01-02"))
			}
			return nil
		})
	},
}

var accountBanCmd = &cobra.Command{
	Use:   "ban ID",
	Short: "Ban an account, or lift a ban with --lift",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		lift, _ := cmd.Flags().GetBool("lift")
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			if err := d.DB.SetBanned(ctx, id, !lift); err != nil {
				return err
			}
			if lift {
				fmt.Fprintf(cmd.OutOrStdout(), "✅ Ban lifted for account %d\n", id)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "🚫 Account %d banned\n", id)
			}
			return nil
		})
	},
}

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show the top accounts by XP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			board, err := d.Accounts.Leaderboard(ctx, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RANK\tUSERNAME\tLEVEL\tXP")
			for _, e := range board {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", e.Rank, e.Username, e.Level, e.XP)
			}
			return tw.Flush()
		})
	},
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid account id %q", s)
	}
	return id, nil
}
