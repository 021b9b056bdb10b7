package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tracelab/dstrace/metrics"
	"github.com/tracelab/dstrace/recording"
	"github.com/tracelab/dstrace/timing"
)

var exportCmd = &cobra.Command{
	Use:   "export [database]",
	Short: "Export the recorded metrics as a CSV file.",
	Long: "`export --out metrics.csv [database]` reads every recorded " +
		"metric window and rewrites it as a CSV file.",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		out, _ := cmd.Flags().GetString("out")

		rows := readAllRows(args[0])

		sink := recording.NewCSVSink(out)
		for _, row := range rows {
			sink.Record(metrics.Entry{
				Start:     timing.TimeInSec(row.WindowStart),
				End:       timing.TimeInSec(row.WindowEnd),
				Name:      metrics.MetricName(row.Name),
				Count:     row.CallCount,
				Total:     timing.TimeInSec(row.TotalTime),
				Exclusive: timing.TimeInSec(row.ExclusiveTime),
				Min:       timing.TimeInSec(row.MinTime),
				Max:       timing.TimeInSec(row.MaxTime),
			})
		}
		sink.Flush()

		fmt.Printf("Exported %d rows to %s\n", len(rows), out)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().String("out", "metrics.csv", "Output CSV file")
}
