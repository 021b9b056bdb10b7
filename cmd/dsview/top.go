package main

import (
	"fmt"
	"log"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tracelab/dstrace/recording"
)

var topCmd = &cobra.Command{
	Use:   "top [database]",
	Short: "Rank metric names by time spent.",
	Long: "`top --by exclusive [database]` ranks the recorded metric names " +
		"by accumulated exclusive time. Sorting by total, count, and max is " +
		"also supported.",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		by, _ := cmd.Flags().GetString("by")
		limit, _ := cmd.Flags().GetInt("limit")

		if by != "exclusive" && by != "total" && by != "count" && by != "max" {
			log.Fatalf("Invalid sort key: %s. Allowed values are "+
				"exclusive, total, count, and max.", by)
		}

		rows := readAllRows(args[0])
		ranked := rankRows(rows, by)

		if limit > 0 && limit < len(ranked) {
			ranked = ranked[:limit]
		}

		fmt.Printf("%-56s %10s %12s %12s %12s\n",
			"NAME", "CALLS", "TOTAL(S)", "EXCLUSIVE(S)", "MAX(S)")
		for _, e := range ranked {
			fmt.Printf("%-56s %10d %12.6f %12.6f %12.6f\n",
				e.name, e.calls, e.total, e.exclusive, e.max)
		}
	},
}

func init() {
	rootCmd.AddCommand(topCmd)
	topCmd.Flags().String("by", "exclusive",
		"Sort key: exclusive, total, count, or max")
	topCmd.Flags().Int("limit", 20, "Maximum number of names to show")
}

type rankedMetric struct {
	name      string
	calls     uint64
	total     float64
	exclusive float64
	max       float64
}

// rankRows folds the per-window rows into one line per metric name and
// sorts them by the requested key, largest first.
func rankRows(rows []*recording.MetricRow, by string) []rankedMetric {
	byName := make(map[string]*rankedMetric)
	for _, row := range rows {
		e, ok := byName[row.Name]
		if !ok {
			e = &rankedMetric{name: row.Name}
			byName[row.Name] = e
		}

		e.calls += row.CallCount
		e.total += row.TotalTime
		e.exclusive += row.ExclusiveTime
		if row.MaxTime > e.max {
			e.max = row.MaxTime
		}
	}

	ranked := make([]rankedMetric, 0, len(byName))
	for _, e := range byName {
		ranked = append(ranked, *e)
	}

	sort.Slice(ranked, func(i, j int) bool {
		switch by {
		case "total":
			if ranked[i].total != ranked[j].total {
				return ranked[i].total > ranked[j].total
			}
		case "count":
			if ranked[i].calls != ranked[j].calls {
				return ranked[i].calls > ranked[j].calls
			}
		case "max":
			if ranked[i].max != ranked[j].max {
				return ranked[i].max > ranked[j].max
			}
		default:
			if ranked[i].exclusive != ranked[j].exclusive {
				return ranked[i].exclusive > ranked[j].exclusive
			}
		}

		return ranked[i].name < ranked[j].name
	})

	return ranked
}
