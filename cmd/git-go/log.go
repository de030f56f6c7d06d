package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/corvidhq/gitkit/ginternals"
	"github.com/corvidhq/gitkit/ginternals/object"
	"github.com/corvidhq/gitkit/internal/errutil"
	"github.com/spf13/cobra"
)

// logCmdFlags represents the flags accepted by the log command
//
// Reference: https://git-scm.com/docs/git-log#_options
type logCmdFlags struct {
	oneline bool
}

func newLogCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log [commit]",
		Short: "Show commit logs",
		Args:  cobra.MaximumNArgs(1),
	}

	flags := logCmdFlags{}
	cmd.Flags().BoolVar(&flags.oneline, "oneline", false, "Print one line per commit.")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		query := ""
		if len(args) > 0 {
			query = args[0]
		}
		return logCmd(cmd.OutOrStdout(), cfg, flags, query)
	}

	return cmd
}

func logCmd(out io.Writer, cfg *globalFlags, flags logCmdFlags, query string) (err error) {
	r, err := loadRepository(cfg)
	if err != nil {
		return err
	}
	defer errutil.Close(r, &err)

	if query == "" {
		query = ginternals.Head
	}
	start, err := resolveOid(r, query)
	if err != nil {
		return err
	}

	commits, err := r.Log(start)
	if err != nil {
		return err
	}

	for _, c := range commits {
		if flags.oneline {
			printOnelineCommit(out, c)
			continue
		}
		printCommit(out, c)
	}
	return nil
}

func printOnelineCommit(out io.Writer, c *object.Commit) {
	message := strings.ReplaceAll(c.Message(), "\n", " ")
	if len(message) > 40 {
		message = message[:37] + "..."
	}
	fmt.Fprintf(out, "%s %s\n", c.ID().String()[:7], message)
}

func printCommit(out io.Writer, c *object.Commit) {
	fmt.Fprintf(out, "commit %s\n", c.ID().String())
	if parents := c.ParentIDs(); len(parents) > 1 {
		fmt.Fprint(out, "Merge:\t")
		for _, p := range parents {
			fmt.Fprintf(out, "%s ", p.String()[:7])
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "Author:\t%s\n", c.Author().String())
	fmt.Fprintf(out, "Date:\t%s\n", c.Author().Time.Format("Mon Jan 2 15:04:05 2006 -0700"))
	fmt.Fprintln(out)
	message := strings.ReplaceAll(strings.TrimSpace(c.Message()), "\n", "\n\t")
	fmt.Fprintf(out, "\t%s\n\n", message)
}
