package database

import "time"

// IncrementCounter bumps the counter for one (scope, identity, window)
// bucket and returns the new count. The upsert is atomic, so concurrent
// workers all observe a strictly increasing count for the same bucket.
func (db *DB) IncrementCounter(scope, identity string, windowStart time.Time) (int64, error) {
	var count int64
	err := db.conn.QueryRow(
		`INSERT INTO rate_counters (scope, identity, window_start, count)
		 VALUES ($1, $2, $3, 1)
		 ON CONFLICT (scope, identity, window_start)
		 DO UPDATE SET count = rate_counters.count + 1
		 RETURNING count`,
		scope, identity, windowStart,
	).Scan(&count)
	return count, err
}

// DeleteCountersBefore evicts buckets from windows that have rolled over.
func (db *DB) DeleteCountersBefore(cutoff time.Time) error {
	_, err := db.conn.Exec("DELETE FROM rate_counters WHERE window_start < $1", cutoff)
	return err
}
