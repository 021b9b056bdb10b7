package recording

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	// Need to use MySQL connections.
	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/tracelab/dstrace/metrics"
)

// MySQLSink is a metrics sink that stores harvested entries in a MySQL
// database.
type MySQLSink struct {
	dbConnection

	rowsToWrite []MetricRow
	batchSize   int
}

// NewMySQLSink returns a new MySQLSink.
// The Init function must be called before using the sink.
func NewMySQLSink() *MySQLSink {
	s := &MySQLSink{
		batchSize: 10000,
	}

	atexit.Register(func() { s.Flush() })

	return s
}

// Init establishes a connection to MySQL and creates a database.
func (s *MySQLSink) Init() {
	s.dbConnection.init("")
	s.createDatabase()
}

func (s *MySQLSink) createDatabase() {
	dbName := "dstrace_" + xid.New().String()
	s.dbName = dbName
	log.Printf("Metrics are collected in database: %s\n", dbName)

	s.mustExecute("CREATE DATABASE " + dbName)
	s.mustExecute("USE " + dbName)

	s.createTable()
}

func (s *MySQLSink) createTable() {
	s.mustExecute(`
		create table metrics
		(
			WindowStart   double          null,
			WindowEnd     double          null,
			Name          varchar(255)    null,
			CallCount     bigint unsigned null,
			TotalTime     double          null,
			ExclusiveTime double          null,
			MinTime       double          null,
			MaxTime       double          null
		);
	`)

	s.mustExecute(`
        ALTER TABLE metrics ENGINE=InnoDB;
	`)

	s.mustExecute(`
		create index metrics_name_index
			on metrics (Name);
	`)

	s.mustExecute(`
		create index metrics_window_start_index
			on metrics (WindowStart) USING BTREE;
	`)

	s.mustExecute(`
		create index metrics_window_end_index
			on metrics (WindowEnd) USING BTREE;
	`)
}

// Record buffers one harvested entry.
func (s *MySQLSink) Record(e metrics.Entry) {
	s.rowsToWrite = append(s.rowsToWrite, newMetricRow(e))
	if len(s.rowsToWrite) > s.batchSize {
		s.Flush()
	}
}

// MySQL allows at most 65535 placeholders in one prepared statement.
const (
	mysqlMaxPlaceholders = 65535
	metricRowColumns     = 8
)

// Flush writes all the buffered entries into the database, splitting them
// into as many INSERT statements as the placeholder limit requires.
func (s *MySQLSink) Flush() {
	for len(s.rowsToWrite) > 0 {
		n := maxRowsPerStatement(len(s.rowsToWrite))
		s.insertRows(s.rowsToWrite[:n])
		s.rowsToWrite = s.rowsToWrite[n:]
	}

	s.rowsToWrite = nil
}

func maxRowsPerStatement(pending int) int {
	limit := mysqlMaxPlaceholders / metricRowColumns
	if pending < limit {
		return pending
	}

	return limit
}

func (s *MySQLSink) insertRows(rows []MetricRow) {
	sqlStr, vals := buildInsertStatement(rows)

	stmt, err := s.Prepare(sqlStr)
	if err != nil {
		panic(err)
	}

	_, err = stmt.Exec(vals...)
	if err != nil {
		panic(err)
	}

	err = stmt.Close()
	if err != nil {
		panic(err)
	}
}

func buildInsertStatement(rows []MetricRow) (string, []interface{}) {
	sqlStr := `INSERT INTO metrics VALUES`
	vals := make([]interface{}, 0, len(rows)*metricRowColumns)

	for i := range rows {
		sqlStr += "(?, ?, ?, ?, ?, ?, ?, ?),"
		vals = append(vals,
			rows[i].WindowStart,
			rows[i].WindowEnd,
			rows[i].Name,
			rows[i].CallCount,
			rows[i].TotalTime,
			rows[i].ExclusiveTime,
			rows[i].MinTime,
			rows[i].MaxTime,
		)
	}

	return strings.TrimSuffix(sqlStr, ","), vals
}

type dbConnection struct {
	*sql.DB

	username  string
	password  string
	ipAddress string
	port      int
	dbName    string
}

func (c *dbConnection) init(dbName string) {
	c.dbName = dbName

	c.getCredentials()
	c.connect()
}

func (c *dbConnection) getCredentials() {
	c.username = os.Getenv("DSTRACE_MYSQL_USERNAME")
	if c.username == "" {
		panic(`mysql username is not set, ` +
			`use environment variable DSTRACE_MYSQL_USERNAME to set it.`)
	}

	c.password = os.Getenv("DSTRACE_MYSQL_PASSWORD")
	c.ipAddress = os.Getenv("DSTRACE_MYSQL_IP")
	if c.ipAddress == "" {
		c.ipAddress = "127.0.0.1"
	}

	portString := os.Getenv("DSTRACE_MYSQL_PORT")
	if portString == "" {
		portString = "3306"
	}
	port, err := strconv.Atoi(portString)
	if err != nil {
		panic(err)
	}
	c.port = port
}

func (c *dbConnection) connect() {
	connectStr := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
		c.username, c.password, c.ipAddress, c.port, c.dbName)
	db, err := sql.Open("mysql", connectStr)
	if err != nil {
		panic(err)
	}

	c.DB = db
}

func (c *dbConnection) mustExecute(query string) sql.Result {
	res, err := c.Exec(query)
	if err != nil {
		panic(err)
	}

	return res
}
