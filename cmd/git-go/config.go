package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/corvidhq/gitkit/ginternals/config"
	"github.com/spf13/cobra"
)

// configCmdFlags represents the flags accepted by the config command
//
// Reference: https://git-scm.com/docs/git-config#_options
type configCmdFlags struct {
	get  string
	list bool
}

func newConfigCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config [key] [value]",
		Short: "Get and set repository options",
		Args:  cobra.MaximumNArgs(2),
	}

	flags := configCmdFlags{}
	cmd.Flags().StringVar(&flags.get, "get", "", "Get the value for a given key.")
	cmd.Flags().BoolVar(&flags.list, "list", false, "List all variables set.")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return configCmd(cmd.OutOrStdout(), cfg, flags, args)
	}

	return cmd
}

func configCmd(out io.Writer, cfg *globalFlags, flags configCmdFlags, args []string) error {
	p, err := config.LoadConfig(cfg.env, config.LoadConfigOptions{
		WorkingDirectory: cfg.C.String(),
		GitDirPath:       cfg.GitDir,
		WorkTreePath:     cfg.WorkTree,
		IsBare:           cfg.Bare,
	})
	if err != nil {
		return fmt.Errorf("could not create param: %w", err)
	}

	aggregate, err := config.NewFileAggregate(cfg.env, p)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}

	switch {
	case flags.list:
		entries := aggregate.List()
		sort.Strings(entries)
		for _, e := range entries {
			fmt.Fprintln(out, e)
		}
		return nil
	case flags.get != "":
		value, ok := aggregate.Get(flags.get)
		if !ok {
			return fmt.Errorf("key %q not found", flags.get)
		}
		fmt.Fprintln(out, value)
		return nil
	case len(args) == 1:
		value, ok := aggregate.Get(args[0])
		if !ok {
			return fmt.Errorf("key %q not found", args[0])
		}
		fmt.Fprintln(out, value)
		return nil
	case len(args) == 2:
		if err := aggregate.Set(args[0], args[1]); err != nil {
			return err
		}
		return aggregate.Save()
	default:
		return fmt.Errorf("either --get, --list, or a key (and optional value) is required")
	}
}
