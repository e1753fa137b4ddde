package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var countCmd = &cobra.Command{
	Use:   "count URL...",
	Short: "Print how many times each URL has been requested",
	Long: `Print the request counter of each URL as "<count>\t<url>".

Reading a count does not increment it. URLs never requested print 0.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCount,
}

func runCount(cmd *cobra.Command, args []string) error {
	cfg, err := InitConfigWithError()
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	for _, url := range args {
		count, err := a.tracker.Count(cmd.Context(), url)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", count, url)
	}
	return nil
}
