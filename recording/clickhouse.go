package recording

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/tebeka/atexit"
)

// ClickHouseRecorder stores metric rows in a ClickHouse database. It batches
// inserts and writes them with the native bulk protocol.
type ClickHouseRecorder struct {
	conn      clickhouse.Conn
	mu        sync.Mutex
	batchSize int

	batches    map[string][]MetricRow
	entryCount int
}

// NewClickHouseRecorder connects to a ClickHouse server and returns a
// Recorder backed by it. If batchSize is 0, a default is used.
func NewClickHouseRecorder(
	host string,
	port int,
	database string,
	username string,
	password string,
	batchSize int,
) *ClickHouseRecorder {
	if batchSize == 0 {
		batchSize = 10000
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", host, port)},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:      time.Second * 30,
		MaxOpenConns:     5,
		MaxIdleConns:     5,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
		BlockBufferSize:  10,
	})
	if err != nil {
		panic(fmt.Errorf("failed to connect to ClickHouse: %w", err))
	}

	if err := conn.Ping(context.Background()); err != nil {
		panic(fmt.Errorf("failed to ping ClickHouse: %w", err))
	}

	recorder := &ClickHouseRecorder{
		conn:      conn,
		batchSize: batchSize,
		batches:   make(map[string][]MetricRow),
	}

	atexit.Register(func() {
		recorder.Flush()
	})

	return recorder
}

// CreateTable creates a metric row table. Only MetricRow entries are
// supported.
func (r *ClickHouseRecorder) CreateTable(tableName string, sampleEntry any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := sampleEntry.(MetricRow); !ok {
		panic(fmt.Sprintf("unsupported entry type: %T", sampleEntry))
	}

	createSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			WindowStart Float64,
			WindowEnd Float64,
			Name String,
			CallCount UInt64,
			TotalTime Float64,
			ExclusiveTime Float64,
			MinTime Float64,
			MaxTime Float64
		) ENGINE = MergeTree()
		ORDER BY (Name, WindowStart)
	`, tableName)

	err := r.conn.Exec(context.Background(), createSQL)
	if err != nil {
		panic(fmt.Errorf("failed to create table %s: %w", tableName, err))
	}

	r.batches[tableName] = nil
}

// InsertData appends a metric row to the batch of the given table.
func (r *ClickHouseRecorder) InsertData(tableName string, entry any) {
	r.mu.Lock()

	batch, exists := r.batches[tableName]
	if !exists {
		r.mu.Unlock()
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	row, ok := entry.(MetricRow)
	if !ok {
		r.mu.Unlock()
		panic(fmt.Sprintf("unsupported entry type: %T", entry))
	}

	r.batches[tableName] = append(batch, row)
	r.entryCount++

	if r.entryCount >= r.batchSize {
		r.mu.Unlock()
		r.Flush()
		return
	}

	r.mu.Unlock()
}

// ListTables returns the names of all created tables.
func (r *ClickHouseRecorder) ListTables() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	tables := make([]string, 0, len(r.batches))
	for name := range r.batches {
		tables = append(tables, name)
	}

	return tables
}

// Flush sends all batched rows to ClickHouse.
func (r *ClickHouseRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entryCount == 0 {
		return
	}

	ctx := context.Background()

	for tableName, rows := range r.batches {
		if len(rows) == 0 {
			continue
		}

		r.flushTable(ctx, tableName, rows)
		r.batches[tableName] = rows[:0]
	}

	r.entryCount = 0
}

func (r *ClickHouseRecorder) flushTable(
	ctx context.Context,
	tableName string,
	rows []MetricRow,
) {
	batch, err := r.conn.PrepareBatch(ctx,
		fmt.Sprintf("INSERT INTO %s", tableName))
	if err != nil {
		panic(fmt.Errorf("failed to prepare batch for %s: %w", tableName, err))
	}

	for _, row := range rows {
		err = batch.Append(
			row.WindowStart,
			row.WindowEnd,
			row.Name,
			row.CallCount,
			row.TotalTime,
			row.ExclusiveTime,
			row.MinTime,
			row.MaxTime,
		)
		if err != nil {
			panic(fmt.Errorf("failed to append to batch: %w", err))
		}
	}

	err = batch.Send()
	if err != nil {
		panic(fmt.Errorf("failed to send batch: %w", err))
	}
}

// Close flushes the remaining rows and closes the connection.
func (r *ClickHouseRecorder) Close() error {
	r.Flush()

	err := r.conn.Close()
	if err != nil {
		return fmt.Errorf("failed to close ClickHouse connection: %w", err)
	}

	return nil
}
