// badger.go - Persistent spent set on BadgerDB.
package storage

import (
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog"
)

const (
	spentPrefix = "spent/"

	// maxTxnRetries bounds retries of a transaction that lost a conflict.
	maxTxnRetries = 16
)

// ErrTooManyConflicts is returned when a write keeps losing to concurrent writers.
var ErrTooManyConflicts = errors.New("storage: transaction conflict retries exhausted")

// BadgerSpentSet stores spent secrets under "spent/<secret>". Badger's
// serializable transactions make check-then-set atomic: of two transactions
// that read the same missing key and both write it, one commits and the other
// gets badger.ErrConflict and re-reads.
type BadgerSpentSet struct {
	db  *badger.DB
	log zerolog.Logger
}

// OpenBadger opens (or creates) the spent set in dir. With inMemory set, dir
// is ignored and nothing touches the disk.
func OpenBadger(dir string, inMemory bool, log zerolog.Logger) (*BadgerSpentSet, error) {
	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		// badger v2 does not create parent directories
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create ledger dir: %w", err)
		}
		opts = badger.DefaultOptions(dir).WithSyncWrites(true)
	}
	opts = opts.WithLogger(badgerLogger{log.With().Str("component", "badger").Logger()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	return &BadgerSpentSet{db: db, log: log}, nil
}

func spentKey(secret []byte) []byte {
	return append([]byte(spentPrefix), secret...)
}

// Contains reports whether secret has been spent.
func (s *BadgerSpentSet) Contains(secret []byte) (bool, error) {
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(spentKey(secret))
		switch {
		case err == nil:
			found = true
		case errors.Is(err, badger.ErrKeyNotFound):
		default:
			return err
		}
		return nil
	})
	return found, err
}

// InsertIfAbsent adds secret and reports whether this call added it.
func (s *BadgerSpentSet) InsertIfAbsent(secret []byte) (bool, error) {
	return s.InsertAllIfAbsent([][]byte{secret})
}

// InsertAllIfAbsent adds every secret in one transaction, or none if any is
// already present or repeated within the batch.
func (s *BadgerSpentSet) InsertAllIfAbsent(secrets [][]byte) (bool, error) {
	if len(secrets) == 0 {
		return true, nil
	}
	seen := make(map[string]struct{}, len(secrets))
	for _, secret := range secrets {
		if _, dup := seen[string(secret)]; dup {
			return false, nil
		}
		seen[string(secret)] = struct{}{}
	}

	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		inserted := true
		err := s.db.Update(func(txn *badger.Txn) error {
			for _, secret := range secrets {
				_, err := txn.Get(spentKey(secret))
				if err == nil {
					inserted = false
					return nil
				}
				if !errors.Is(err, badger.ErrKeyNotFound) {
					return err
				}
			}
			for _, secret := range secrets {
				if err := txn.Set(spentKey(secret), nil); err != nil {
					return err
				}
			}
			return nil
		})
		if errors.Is(err, badger.ErrConflict) {
			s.log.Debug().Int("attempt", attempt).Msg("spent set transaction conflict, retrying")
			continue
		}
		if err != nil {
			return false, fmt.Errorf("recording spent secrets: %w", err)
		}
		return inserted, nil
	}
	return false, ErrTooManyConflicts
}

// Len counts spent secrets by scanning keys only.
func (s *BadgerSpentSet) Len() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(spentPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Ping checks that the database still answers reads.
func (s *BadgerSpentSet) Ping() error {
	if s.db.IsClosed() {
		return errors.New("storage: database closed")
	}
	return s.db.View(func(*badger.Txn) error { return nil })
}

// Close flushes and closes the database.
func (s *BadgerSpentSet) Close() error {
	return s.db.Close()
}

// badgerLogger routes badger's internal logging through zerolog.
type badgerLogger struct {
	log zerolog.Logger
}

func (l badgerLogger) Errorf(f string, v ...interface{})   { l.log.Error().Msgf(f, v...) }
func (l badgerLogger) Warningf(f string, v ...interface{}) { l.log.Warn().Msgf(f, v...) }
func (l badgerLogger) Infof(f string, v ...interface{})    { l.log.Debug().Msgf(f, v...) }
func (l badgerLogger) Debugf(f string, v ...interface{})   { l.log.Trace().Msgf(f, v...) }
