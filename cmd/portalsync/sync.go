package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mayple/hubspot-portal-syncer/internal/config"
	"github.com/mayple/hubspot-portal-syncer/internal/domain"
	"github.com/mayple/hubspot-portal-syncer/internal/hubspot"
	"github.com/mayple/hubspot-portal-syncer/internal/reconcile"
)

// errRunFailed signals a completed run that had listing or creation
// failures. The report has already been printed by then.
var errRunFailed = errors.New("sync completed with failures")

func newSyncCmd() *cobra.Command {
	var (
		configPath  string
		dryRun      bool
		objectTypes []string
		concurrency int
		skipVerify  bool
		baseURL     string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile property definitions across all configured portal pairs",
		Long: `Sync lists the property groups and property definitions of every
configured portal pair, creates whatever the target portal is missing, and
prints a report. Definitions already present in the target are never
modified; they are flagged for manual review.`,
		Example: `  portalsync sync                              # sync everything in portalsync.yaml
  portalsync sync --dry-run                    # show what would be created
  portalsync sync --object-type contact        # contacts only
  portalsync sync --concurrency 4              # parallel portal pairs`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), syncOptions{
				configPath:  configPath,
				dryRun:      dryRun,
				objectTypes: objectTypes,
				concurrency: concurrency,
				skipVerify:  skipVerify,
				baseURL:     baseURL,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (default "+config.DefaultPath+")")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "diff and report without creating anything")
	cmd.Flags().StringArrayVar(&objectTypes, "object-type", nil, "limit to an object type (repeatable)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 1, "portal pair / object type combinations to run at once")
	cmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "skip the portal ID check against each API key")
	cmd.Flags().StringVar(&baseURL, "base-url", hubspot.DefaultBaseURL, "HubSpot API base URL")

	return cmd
}

type syncOptions struct {
	configPath  string
	dryRun      bool
	objectTypes []string
	concurrency int
	skipVerify  bool
	baseURL     string
}

func runSync(ctx context.Context, opts syncOptions) error {
	cfg, err := config.Load(config.Path(opts.configPath))
	if err != nil {
		return err
	}

	if len(opts.objectTypes) > 0 {
		cfg.ObjectTypes = cfg.ObjectTypes[:0]
		for _, s := range opts.objectTypes {
			t, err := domain.ParseObjectType(s)
			if err != nil {
				return err
			}
			cfg.ObjectTypes = append(cfg.ObjectTypes, t)
		}
	}

	clients, err := buildClients(ctx, cfg, opts)
	if err != nil {
		return err
	}

	runner := reconcile.NewRunner(cfg, clients,
		reconcile.WithConcurrency(opts.concurrency),
		reconcile.WithDryRun(opts.dryRun),
	)

	report := runner.Run(ctx)
	report.Render(os.Stdout)

	if report.HasFailures() {
		return errRunFailed
	}
	return nil
}

// buildClients creates one API client per configured portal and, unless
// disabled, verifies each API key actually belongs to the portal ID it is
// configured against before any definition is touched.
func buildClients(ctx context.Context, cfg *config.Config, opts syncOptions) (map[string]reconcile.PortalAPI, error) {
	portals := make(map[string]config.Portal)
	for _, pair := range cfg.Pairs {
		portals[pair.Source.Name] = pair.Source
		portals[pair.Target.Name] = pair.Target
	}

	clients := make(map[string]reconcile.PortalAPI, len(portals))
	for name, portal := range portals {
		client := hubspot.New(portal.APIKey, hubspot.WithBaseURL(opts.baseURL))

		if !opts.skipVerify {
			acct, err := client.Account(ctx)
			if err != nil {
				return nil, fmt.Errorf("verify portal %q: %w", name, err)
			}
			if acct.PortalID != portal.ID {
				return nil, fmt.Errorf("portal %q: API key belongs to portal %d, config says %d",
					name, acct.PortalID, portal.ID)
			}
			slog.Debug("portal verified", "portal", name, "portalId", acct.PortalID)
		}

		clients[name] = client
	}
	return clients, nil
}
