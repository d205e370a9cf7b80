// Package deadletter is an optional, durable holding pen for contracts a
// group gave up on. It is not part of the concurrency core and the core
// never imports it; a Group implementation that wants durable retry
// semantics can push failed work here instead of dropping it, the same
// way an application chooses its own WorkContractGroup.
//
// Grounded on storage/mkvs/db/badger's open/close/logger conventions,
// simplified: this package needs a flat durable key-value store, not a
// versioned trie, so it skips that file's keyformat/metadata machinery
// entirely and keeps only the badger.Open/Close/logger-adapter shape.
package deadletter

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v2"

	"github.com/entropyengine/workservice/internal/logging"
)

// Entry is one dead-lettered contract.
type Entry struct {
	GroupName string    `json:"group_name"`
	Reason    string    `json:"reason"`
	Payload   []byte    `json:"payload,omitempty"`
	FailedAt  time.Time `json:"failed_at"`
}

// Queue is a durable, crash-safe store of Entry values keyed by an
// application-chosen ID (e.g. a contract's natural key).
type Queue struct {
	db     *badger.DB
	logger *logging.Logger

	closeOnce sync.Once
	closeErr  error
}

// Open opens (creating if necessary) a dead-letter store rooted at path.
func Open(path string) (*Queue, error) {
	logger := logging.GetLogger("deadletter")

	opts := badger.DefaultOptions(path).
		WithLogger(badgerLogAdapter{logger}).
		WithSyncWrites(true)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("deadletter: open %q: %w", path, err)
	}
	return &Queue{db: db, logger: logger}, nil
}

// Close releases the underlying database. Safe to call more than once.
func (q *Queue) Close() error {
	q.closeOnce.Do(func() {
		q.closeErr = q.db.Close()
	})
	return q.closeErr
}

// Put records e under id, overwriting any existing entry with that ID.
func (q *Queue) Put(id string, e Entry) error {
	buf, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("deadletter: marshal entry %q: %w", id, err)
	}
	return q.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(id), buf)
	})
}

// Get returns the entry stored under id, or ok=false if none exists.
func (q *Queue) Get(id string) (e Entry, ok bool, err error) {
	err = q.db.View(func(txn *badger.Txn) error {
		item, getErr := txn.Get([]byte(id))
		if getErr == badger.ErrKeyNotFound {
			return nil
		}
		if getErr != nil {
			return getErr
		}
		ok = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	return e, ok, err
}

// Delete removes the entry stored under id, if any.
func (q *Queue) Delete(id string) error {
	return q.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(id))
	})
}

// Len returns the number of entries currently held. Intended for
// diagnostics, not the hot path: it does a full key-only scan.
func (q *Queue) Len() (int, error) {
	count := 0
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// badgerLogAdapter routes badger's internal logging through this
// module's structured logger, mirroring common/badger's log adapter.
type badgerLogAdapter struct {
	logger *logging.Logger
}

func (a badgerLogAdapter) Errorf(format string, args ...interface{}) {
	a.logger.Error(fmt.Sprintf(format, args...))
}

func (a badgerLogAdapter) Warningf(format string, args ...interface{}) {
	a.logger.Warn(fmt.Sprintf(format, args...))
}

func (a badgerLogAdapter) Infof(format string, args ...interface{}) {
	a.logger.Info(fmt.Sprintf(format, args...))
}

func (a badgerLogAdapter) Debugf(format string, args ...interface{}) {
	a.logger.Debug(fmt.Sprintf(format, args...))
}
