// Command portalsync copies custom property definitions and property groups
// from a source HubSpot portal to one or more target portals, and reports
// what needs manual attention.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is populated at build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		verbose bool
		envFile string
	)

	root := &cobra.Command{
		Use:           "portalsync",
		Short:         "Sync HubSpot custom property definitions between portals",
		Long: `portalsync copies custom property definitions and property groups for
contacts, companies, deals, and tickets from a source HubSpot portal to one
or more target portals.

It only ever creates definitions that are missing from a target. Anything it
declines to touch - name collisions, calculated properties, definitions that
exist only in a target - is listed at the end of the run so a human can
reconcile it manually.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			// Missing .env files are fine; keys may come from the real
			// environment.
			if err := godotenv.Load(envFile); err != nil {
				slog.Debug("no .env file loaded", "path", envFile)
			}
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to a .env file with portal API keys")

	root.AddCommand(newSyncCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the portalsync version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("portalsync " + version)
		},
	}
}
