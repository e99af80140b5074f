package cli

import (
	"github.com/spf13/cobra"
)

func newStaminaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stamina",
		Short: "Show stamina",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Stamina
			if err := client.Get(cmd.Context(), "/api/v1/stamina", &result); err != nil {
				return err
			}
			output(cmd).Print(result)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "bonus",
		Short: "Claim the bonus stamina slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Stamina
			if err := client.Post(cmd.Context(), "/api/v1/stamina/bonus", nil, &result); err != nil {
				return err
			}
			output(cmd).Print(result)
			return nil
		},
	})

	return cmd
}
