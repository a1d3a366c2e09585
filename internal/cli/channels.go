package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/shaperelay/internal/activation"
	"github.com/soyeahso/shaperelay/internal/config"
	"github.com/soyeahso/shaperelay/internal/store"
)

func newChannelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "List or edit the active channels",
		Long: "Reads and edits the activation store directly. " +
			"Stop the relay first: a running relay keeps its own copy and overwrites the store on the next toggle.",
	}

	cmd.AddCommand(newChannelsListCmd())
	cmd.AddCommand(newChannelsToggleCmd("activate", "Activate one or more channels", true))
	cmd.AddCommand(newChannelsToggleCmd("deactivate", "Deactivate one or more channels", false))
	return cmd
}

func newChannelsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active channel ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			if err := paths.EnsureDirs(); err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			if cfg.Activation.Store == "sqlite" {
				return listDetails(ctx, cmd.OutOrStdout(), paths.ActivationPath(cfg.Activation))
			}

			backend, closer, err := store.OpenBackend(cfg.Activation.Store, paths.ActivationPath(cfg.Activation), log)
			if err != nil {
				return err
			}
			defer closer.Close()

			ids, err := backend.Load(ctx)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No active channels.")
				return nil
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

func listDetails(ctx context.Context, out io.Writer, path string) error {
	db, err := store.Open(path, log)
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := store.NewActiveChannels(db).Details(ctx)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(out, "No active channels.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANNEL\tACTIVATED")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\n", r.ChannelID, r.ActivatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func newChannelsToggleCmd(use, short string, activate bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <channel-id>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			if err := paths.EnsureDirs(); err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			backend, closer, err := store.OpenBackend(cfg.Activation.Store, paths.ActivationPath(cfg.Activation), log)
			if err != nil {
				return err
			}
			defer closer.Close()

			set := activation.New(backend, log)
			set.Load(ctx)
			for _, id := range args {
				fmt.Fprintln(cmd.OutOrStdout(), toggle(set, id, activate))
			}
			if err := set.Flush(ctx); err != nil {
				set.Close(ctx)
				return fmt.Errorf("saving active channels: %w", err)
			}
			return set.Close(ctx)
		},
	}
}

func toggle(set *activation.Store, id string, activate bool) string {
	if activate {
		if set.Activate(id) {
			return fmt.Sprintf("%s: already active", id)
		}
		return fmt.Sprintf("%s: activated", id)
	}
	if set.Deactivate(id) {
		return fmt.Sprintf("%s: deactivated", id)
	}
	return fmt.Sprintf("%s: not active", id)
}
