package cli

import (
	"errors"
	"net/url"
	"time"

	"github.com/spf13/cobra"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Moderation commands (require --admin-key)",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			if cfg.AdminKey == "" {
				return errors.New("--admin-key or ARCCTL_ADMIN_KEY is required")
			}
			return nil
		},
	}

	cmd.AddCommand(newAdminBanCmd())
	cmd.AddCommand(newAdminUnbanCmd())
	cmd.AddCommand(newAdminLockCmd())
	cmd.AddCommand(newAdminUnlockCmd())

	return cmd
}

func playerPath(id, action string) string {
	return "/api/v1/admin/players/" + url.PathEscape(id) + "/" + action
}

func newAdminBanCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "ban <player-id>",
		Short: "Ban a player; each offense escalates the duration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result BanResult
			if err := client.Post(cmd.Context(), playerPath(args[0], "ban"), map[string]string{"reason": reason}, &result); err != nil {
				return err
			}
			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Reason shown to the player (required)")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func newAdminUnbanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unban <player-id>",
		Short: "Lift a player's ban",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Post(cmd.Context(), playerPath(args[0], "unban"), nil, nil); err != nil {
				return err
			}
			output(cmd).PrintMessage("Player " + args[0] + " unbanned")
			return nil
		},
	}
}

func newAdminLockCmd() *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "lock <player-id> <map>",
		Short: "Lock a player's traversal of a map",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body any
			if duration > 0 {
				body = map[string]time.Time{"until": time.Now().Add(duration).UTC()}
			}

			var result MapProgress
			path := playerPath(args[0], "maps/"+url.PathEscape(args[1])+"/lock")
			if err := client.Post(cmd.Context(), path, body, &result); err != nil {
				return err
			}
			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().DurationVar(&duration, "for", 0, "Lock duration; omit to lock until unlocked")
	return cmd
}

func newAdminUnlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <player-id> <map>",
		Short: "Unlock a player's map",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result MapProgress
			path := playerPath(args[0], "maps/"+url.PathEscape(args[1])+"/unlock")
			if err := client.Post(cmd.Context(), path, nil, &result); err != nil {
				return err
			}
			output(cmd).Print(result)
			return nil
		},
	}
}
