package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

// summaryCmd represents the summary command group
var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Daily summary maintenance",
}

// summaryRebuildCmd recomputes every daily summary from stored logs
var summaryRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Recompute daily summaries from stored logs",
	Long: `Recount every stored log event by UTC day and level and overwrite the
daily summaries with the result. Run it while the server is stopped, or rely
on the server's periodic reconciliation instead.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		result, err := summaryService.Rebuild(ctx)
		if err != nil {
			fail("rebuilding summaries: %v", err)
		}

		fmt.Println("Daily summaries rebuilt.")
		fmt.Printf("  Logs scanned:   %d\n", result.LogsScanned)
		fmt.Printf("  Days:           %d\n", result.Days)
		fmt.Printf("  Days corrected: %d\n", result.Corrected)
	},
}

func init() {
	summaryCmd.AddCommand(summaryRebuildCmd)
}
