package metrics

import "sync"

// A Store aggregates the ledgers of finished execution contexts. Unlike a
// Ledger, a Store is safe for concurrent use.
type Store struct {
	lock    sync.Mutex
	records map[MetricName]*Record
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		records: make(map[MetricName]*Record),
	}
}

// MergeLedger folds every record of a finished context's ledger into the
// store.
func (s *Store) MergeLedger(l *Ledger) {
	s.lock.Lock()
	defer s.lock.Unlock()

	for name, rec := range l.records {
		stored, found := s.records[name]
		if !found {
			stored = &Record{}
			s.records[name] = stored
		}

		stored.Merge(*rec)
	}
}

// Snapshot returns a copy of the aggregated records.
func (s *Store) Snapshot() map[MetricName]Record {
	s.lock.Lock()
	defer s.lock.Unlock()

	out := make(map[MetricName]Record, len(s.records))
	for name, rec := range s.records {
		out[name] = *rec
	}

	return out
}

// Drain returns a copy of the aggregated records and resets the store.
func (s *Store) Drain() map[MetricName]Record {
	s.lock.Lock()
	defer s.lock.Unlock()

	out := make(map[MetricName]Record, len(s.records))
	for name, rec := range s.records {
		out[name] = *rec
	}

	s.records = make(map[MetricName]*Record)

	return out
}

// Len returns the number of metric names aggregated so far.
func (s *Store) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return len(s.records)
}
