package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfg    *Config
	client *Client
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	def := DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "arcctl",
		Short: "CLI tool for the progression server API",
		Long: `arcctl is a CLI tool for interacting with the progression server JSON API.

It covers account management, stamina, score submission and ratings,
world map traversal, the live notification stream and the admin
moderation routes.

Every flag can also be set through an ARCCTL_* environment variable,
e.g. ARCCTL_SERVER or ARCCTL_ADMIN_KEY.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := LoadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			cfg = loaded

			// Load token from file if not provided via flag/env
			if err := cfg.LoadToken(); err != nil {
				return err
			}
			if err := cfg.LoadDevice(); err != nil {
				return err
			}

			client = NewClient(cfg.ServerURL, cfg.Token)
			client.SetDevice(cfg.DeviceID)
			client.SetAdminKey(cfg.AdminKey)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.String("server", def.ServerURL, "Server URL (env: ARCCTL_SERVER)")
	flags.String("token", "", "Session token (env: ARCCTL_TOKEN)")
	flags.String("token-file", def.TokenFile, "Token file path (env: ARCCTL_TOKEN_FILE)")
	flags.String("device", "", "Device id sent with every request (env: ARCCTL_DEVICE)")
	flags.String("device-file", def.DeviceFile, "File holding the generated device id (env: ARCCTL_DEVICE_FILE)")
	flags.String("admin-key", "", "Key for admin commands (env: ARCCTL_ADMIN_KEY)")
	flags.StringP("output", "o", def.Output, "Output format: text, json")
	flags.BoolP("verbose", "v", false, "Verbose output")

	// Add subcommands
	rootCmd.AddCommand(newPlayerCmd())
	rootCmd.AddCommand(newStaminaCmd())
	rootCmd.AddCommand(newScoreCmd())
	rootCmd.AddCommand(newWorldCmd())
	rootCmd.AddCommand(newAdminCmd())
	rootCmd.AddCommand(newEventsCmd())
	rootCmd.AddCommand(newHealthCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		format := "text"
		if cfg != nil {
			format = cfg.Output
		}
		PrintError(rootCmd.ErrOrStderr(), format, err)
		os.Exit(1)
	}
}

func output(cmd *cobra.Command) *Output {
	return NewOutput(cfg.Output, cmd.OutOrStdout())
}
