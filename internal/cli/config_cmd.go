package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/soyeahso/shaperelay/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or edit the config file",
		Long:  "Keys are dotted paths into the config file, e.g. shapes.username or channels.irc.channels.",
	}

	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigUnsetCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigValidateCmd())
	return cmd
}

func newConfigGetCmd() *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a value from the config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := config.OpenDocument(paths.Config)
			if err != nil {
				return err
			}
			val, err := doc.Get(args[0])
			if err != nil {
				return err
			}
			if s, ok := val.(string); ok && s != "" && config.IsSecret(args[0]) && !reveal {
				val = "(set, use --reveal to print)"
			}
			return printValue(cmd.OutOrStdout(), val)
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "print credentials in clear")
	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a value in the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := config.OpenDocument(paths.Config)
			if err != nil {
				return err
			}
			value := config.ParseValue(args[1])
			if err := doc.Set(args[0], value); err != nil {
				return err
			}
			if err := doc.Save(); err != nil {
				return err
			}
			if config.IsSecret(args[0]) {
				value = "(hidden)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", args[0], value)
			return nil
		},
	}
}

func newConfigUnsetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a value from the config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := config.OpenDocument(paths.Config)
			if err != nil {
				return err
			}
			if err := doc.Unset(args[0]); err != nil {
				return err
			}
			if err := doc.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Unset %s\n", args[0])
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), paths.Config)
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the config file and required secrets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			problems := 0
			for _, issue := range config.Validate(&cfg) {
				fmt.Fprintf(out, "  - %s\n", issue)
				problems++
			}
			if err := config.RequireSecrets(&cfg); err != nil {
				fmt.Fprintf(out, "  - %v\n", err)
				problems++
			}
			if problems > 0 {
				return fmt.Errorf("config has %d problem(s)", problems)
			}
			fmt.Fprintln(out, "Config OK")
			return nil
		},
	}
}

// printValue prints scalars bare and sections or lists as YAML.
func printValue(out io.Writer, v any) error {
	switch v.(type) {
	case map[string]any, []any:
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	default:
		_, err := fmt.Fprintln(out, v)
		return err
	}
}
