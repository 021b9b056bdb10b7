// dsview inspects datastore metric databases recorded by dstrace.
package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tracelab/dstrace/recording"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use: "dsview",
	Short: "dsview inspects datastore metrics recorded by dstrace into " +
		"SQLite databases.",
	Long: `dsview inspects datastore metrics recorded by dstrace into SQLite ` +
		`databases. It can list the recorded metric names, rank them by time ` +
		`spent, export them to CSV, and serve them over HTTP.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A .env file is optional.
		_ = godotenv.Load()
	},
}

func main() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// readAllRows loads every metric row of a recorded database, ordered by
// name.
func readAllRows(dbPath string) []*recording.MetricRow {
	reader := recording.NewReader(dbPath)
	defer reader.Close()

	reader.MapTable(recording.MetricsTable, recording.MetricRow{})

	results, _, err := reader.Query(
		context.Background(),
		recording.MetricsTable,
		recording.QueryParams{OrderBy: "Name"},
	)
	if err != nil {
		log.Fatalf("Error reading metrics: %v", err)
	}

	rows := make([]*recording.MetricRow, 0, len(results))
	for _, result := range results {
		rows = append(rows, result.(*recording.MetricRow))
	}

	return rows
}
