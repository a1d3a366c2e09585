package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soyeahso/shaperelay/internal/config"
	"github.com/soyeahso/shaperelay/internal/store"
	"github.com/soyeahso/shaperelay/internal/version"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show shaperelay configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Config:  error loading: %v\n", err)
				return nil
			}
			printStatus(ctx, cmd.OutOrStdout(), cfg, paths)
			return nil
		},
	}
}

func printStatus(ctx context.Context, out io.Writer, cfg config.Config, p config.Paths) {
	fmt.Fprintf(out, "shaperelay %s (commit %s)\n\n", version.Version, version.Commit)

	fmt.Fprintf(out, "Config:  %s\n", p.Config)
	fmt.Fprintf(out, "Data:    %s\n", p.Data)
	fmt.Fprintln(out)

	shape := cfg.Shapes.Username
	if shape == "" {
		shape = "(not set)"
	}
	fmt.Fprintf(out, "Shape:   %s model=%s api=%s\n", shape, cfg.Shapes.Model(), cfg.Shapes.BaseURL)

	var platforms []string
	if g := cfg.Channels.Guilded; g != nil && g.Token != "" {
		platforms = append(platforms, "guilded")
	}
	if d := cfg.Channels.Discord; d != nil && d.Token != "" {
		platforms = append(platforms, "discord")
	}
	if irc := cfg.Channels.IRC; irc != nil {
		platforms = append(platforms, fmt.Sprintf("irc(%s %s)", irc.Server, strings.Join(irc.Channels, ",")))
	}
	if len(platforms) > 0 {
		fmt.Fprintf(out, "Platforms: %s\n", strings.Join(platforms, ", "))
	} else {
		fmt.Fprintln(out, "Platforms: (none configured)")
	}

	storePath := p.ActivationPath(cfg.Activation)
	fmt.Fprintf(out, "Store:   %s %s\n", cfg.Activation.Store, storePath)
	if cfg.Activation.Store != "sqlite" {
		if ids, err := store.NewJSONFile(storePath).Load(ctx); err != nil {
			fmt.Fprintf(out, "Active:  unreadable (%v)\n", err)
		} else {
			fmt.Fprintf(out, "Active:  %d channel(s)\n", len(ids))
		}
	}

	probe := "on"
	if cfg.Media.DisableProbe {
		probe = "off"
	}
	fmt.Fprintf(out, "Media:   probe=%s extraHosts=%d\n", probe, len(cfg.Media.ImageHosts))

	if cfg.Admin.Enabled {
		fmt.Fprintf(out, "Admin:   %s:%d\n", cfg.Admin.Bind, cfg.Admin.Port)
	} else {
		fmt.Fprintln(out, "Admin:   disabled")
	}

	issues := config.Validate(&cfg)
	secretsErr := config.RequireSecrets(&cfg)
	if len(issues) > 0 || secretsErr != nil {
		fmt.Fprintln(out, "\nProblems:")
		for _, issue := range issues {
			fmt.Fprintf(out, "  - %s\n", issue)
		}
		if secretsErr != nil {
			fmt.Fprintf(out, "  - %v\n", secretsErr)
		}
	}
}
