package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list [database]",
	Short: "List the recorded metric names.",
	Long: "`list [database]` prints every metric name in the database " +
		"together with the number of harvest windows and calls recorded " +
		"under it.",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rows := readAllRows(args[0])

		type nameSummary struct {
			windows int
			calls   uint64
		}

		summaries := make(map[string]*nameSummary)
		names := []string{}
		for _, row := range rows {
			s, ok := summaries[row.Name]
			if !ok {
				s = &nameSummary{}
				summaries[row.Name] = s
				names = append(names, row.Name)
			}

			s.windows++
			s.calls += row.CallCount
		}

		sort.Strings(names)

		for _, name := range names {
			s := summaries[name]
			fmt.Printf("%-56s %6d windows %10d calls\n",
				name, s.windows, s.calls)
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
