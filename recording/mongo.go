package recording

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tracelab/dstrace/metrics"
)

// MongoSink is a metrics sink that stores harvested entries in a MongoDB
// database.
type MongoSink struct {
	client *mongo.Client
	coll   *mongo.Collection
	uri    string

	rows []any
}

// NewMongoSink returns a new MongoSink. The URI is taken from the
// DSTRACE_MONGO_URI environment variable, falling back to a local server.
// The Init function must be called before using the sink.
func NewMongoSink() *MongoSink {
	uri := os.Getenv("DSTRACE_MONGO_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	return &MongoSink{uri: uri}
}

// SetURI sets the server and the port to connect to.
func (s *MongoSink) SetURI(uri string) {
	s.uri = uri
}

// Init connects to the MongoDB database.
func (s *MongoSink) Init() {
	var err error

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.client, err = mongo.Connect(ctx, options.Client().ApplyURI(s.uri))
	if err != nil {
		log.Panic(err)
	}

	dbName := "dstrace_" + xid.New().String()
	log.Printf("Metrics are collected in database: %s\n", dbName)

	s.coll = s.client.Database(dbName).Collection(MetricsTable)

	s.createIndexes()
}

func (s *MongoSink) createIndexes() {
	s.createIndex("name", true)
	s.createIndex("windowstart", false)
	s.createIndex("windowend", false)
}

func (s *MongoSink) createIndex(key string, useHash bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var value interface{}
	if useHash {
		value = "hashed"
	} else {
		value = 1
	}

	_, err := s.coll.Indexes().CreateOne(ctx,
		mongo.IndexModel{
			Keys: bson.D{bson.E{Key: key, Value: value}},
		},
	)
	if err != nil {
		log.Panic(err)
	}
}

// Record buffers one harvested entry.
func (s *MongoSink) Record(e metrics.Entry) {
	s.rows = append(s.rows, newMetricRow(e))
}

// Flush inserts the buffered entries into the database.
func (s *MongoSink) Flush() {
	if len(s.rows) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := s.coll.InsertMany(ctx, s.rows)
	if err != nil {
		log.Panic(err)
	}

	s.rows = nil
}
