package cli

import (
	"net/url"

	"github.com/spf13/cobra"
)

func newWorldCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "world",
		Short: "World map traversal commands",
	}

	cmd.AddCommand(newWorldMapsCmd())
	cmd.AddCommand(newWorldProgressCmd("get", "Show progress on a map", false))
	cmd.AddCommand(newWorldProgressCmd("enter", "Enter a map, making it the current one", true))
	cmd.AddCommand(newWorldAdvanceCmd("step", "Advance exactly one step using a recent play"))
	cmd.AddCommand(newWorldAdvanceCmd("climb", "Advance up to a target position, collecting rewards on the way"))

	return cmd
}

func mapPath(mapID, action string) string {
	path := "/api/v1/world/maps/" + url.PathEscape(mapID)
	if action != "" {
		path += "/" + action
	}
	return path
}

func newWorldMapsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "maps",
		Short: "List world maps",
		RunE: func(cmd *cobra.Command, args []string) error {
			result := []WorldMap{}
			if err := client.Get(cmd.Context(), "/api/v1/world/maps", &result); err != nil {
				return err
			}
			output(cmd).Print(result)
			return nil
		},
	}
}

func newWorldProgressCmd(use, short string, enter bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <map>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result MapProgress
			var err error
			if enter {
				err = client.Post(cmd.Context(), mapPath(args[0], "enter"), nil, &result)
			} else {
				err = client.Get(cmd.Context(), mapPath(args[0], ""), &result)
			}
			if err != nil {
				return err
			}
			output(cmd).Print(result)
			return nil
		},
	}
}

func newWorldAdvanceCmd(action, short string) *cobra.Command {
	var target int
	var playID string

	cmd := &cobra.Command{
		Use:   action + " <map>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{
				"target":  target,
				"play_id": playID,
			}
			var result StepResult

			if err := client.Post(cmd.Context(), mapPath(args[0], action), req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().IntVar(&target, "target", 0, "Target position (required)")
	cmd.Flags().StringVar(&playID, "play", "", "Submission id of the play to use; defaults to the latest")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}
