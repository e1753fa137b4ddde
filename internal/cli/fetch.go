package cmd

import (
	"fmt"
	"strings"

	"github.com/rohmanhakim/page-tracker/internal/render"
	"github.com/spf13/cobra"
)

var (
	outputFormat = "raw"
	showCount    bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch URL...",
	Short: "Fetch pages through the cache and print them",
	Long: `Fetch each URL through the shared cache and print the result.

A URL requested again within the result TTL is served from the store
without a network call. Every call counts, cached or not.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVarP(&outputFormat, "output", "o", "raw", "output format: raw, markdown, title or links")
	fetchCmd.Flags().BoolVar(&showCount, "show-count", false, "print the request count of each URL to stderr")
}

func runFetch(cmd *cobra.Command, args []string) error {
	format, err := render.ParseFormat(outputFormat)
	if err != nil {
		return err
	}

	cfg, err := InitConfigWithError()
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	for i, url := range args {
		text, err := a.tracker.Fetch(cmd.Context(), url)
		if err != nil {
			return err
		}

		rendered, err := render.Render(format, text)
		if err != nil {
			return fmt.Errorf("%s: %w", url, err)
		}

		if len(args) > 1 {
			if i > 0 {
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "==> %s <==\n", url)
		}
		fmt.Fprint(out, rendered)
		if !strings.HasSuffix(rendered, "\n") {
			fmt.Fprintln(out)
		}

		if showCount {
			count, err := a.tracker.Count(cmd.Context(), url)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d\t%s\n", count, url)
		}
	}
	return nil
}
