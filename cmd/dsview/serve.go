package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/tracelab/dstrace/recording"
)

var serveCmd = &cobra.Command{
	Use:   "serve [database]",
	Short: "Serve the recorded metrics over HTTP.",
	Long: "`serve --http 0.0.0.0:3001 [database]` starts an HTTP server " +
		"that exposes the recorded metrics as JSON.",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		httpAddr, _ := cmd.Flags().GetString("http")
		open, _ := cmd.Flags().GetBool("open")

		startServer(args[0], httpAddr, open)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("http", "0.0.0.0:3001",
		"HTTP service address (e.g., ':6060')")
	serveCmd.Flags().Bool("open", false,
		"Open the served URL in a browser")
}

var servedReader recording.Reader

func startServer(dbPath, httpAddr string, openBrowser bool) {
	servedReader = recording.NewReader(dbPath)
	servedReader.MapTable(recording.MetricsTable, recording.MetricRow{})

	r := mux.NewRouter()
	r.HandleFunc("/api/metrics", serveMetrics)
	r.HandleFunc("/api/names", serveNames)

	listener, err := net.Listen("tcp", httpAddr)
	dieOnErr(err)

	port := listener.Addr().(*net.TCPAddr).Port
	url := fmt.Sprintf("http://localhost:%d", port)
	fmt.Printf("Serving metrics at %s\n", url)

	if openBrowser {
		err := browser.OpenURL(url)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open browser: %s\n", err)
		}
	}

	err = http.Serve(listener, r)
	dieOnErr(err)
}

type metricsRsp struct {
	TotalCount int                   `json:"total_count"`
	Rows       []recording.MetricRow `json:"rows"`
}

func serveMetrics(w http.ResponseWriter, r *http.Request) {
	params := recording.QueryParams{
		OrderBy: "WindowStart",
	}

	if name := r.FormValue("name"); name != "" {
		params.Where = "Name = ?"
		params.Args = []any{name}
	}

	var err error

	if limit := r.FormValue("limit"); limit != "" {
		params.Limit, err = strconv.Atoi(limit)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "Error: %s", err)
			return
		}
	}

	if offset := r.FormValue("offset"); offset != "" {
		params.Offset, err = strconv.Atoi(offset)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "Error: %s", err)
			return
		}
	}

	results, totalCount, err := servedReader.Query(
		r.Context(), recording.MetricsTable, params)
	dieOnErr(err)

	rsp := metricsRsp{
		TotalCount: totalCount,
		Rows:       make([]recording.MetricRow, 0, len(results)),
	}
	for _, row := range results {
		rsp.Rows = append(rsp.Rows, *(row.(*recording.MetricRow)))
	}

	data, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(data)
	dieOnErr(err)
}

func serveNames(w http.ResponseWriter, r *http.Request) {
	results, _, err := servedReader.Query(
		r.Context(), recording.MetricsTable,
		recording.QueryParams{OrderBy: "Name"})
	dieOnErr(err)

	names := []string{}
	seen := make(map[string]bool)
	for _, result := range results {
		name := result.(*recording.MetricRow).Name
		if seen[name] {
			continue
		}

		seen[name] = true
		names = append(names, name)
	}

	data, err := json.Marshal(names)
	dieOnErr(err)

	_, err = w.Write(data)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
