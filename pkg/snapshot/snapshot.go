// Package snapshot persists the current values of a driver's named inputs
// to disk using BadgerDB, so a CLI session can be resumed without
// re-entering every input by hand.
//
// This is explicitly a driver-level convenience sitting outside the core
// engine: it never touches a QueryCache or a Runtime's revision/input_revs
// bookkeeping, and restoring a snapshot does not restore any cached query
// result — every query re-runs from scratch against the restored inputs,
// in keeping with the core's "durability ... out of scope" non-goal. It
// persists flat name->value pairs, not a graph, so it needs only one key
// prefix where the teacher's badger adapter needs several.
package snapshot

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// keyPrefix namespaces every key this package writes, in case a caller
// points it at a badger directory shared with other data.
const keyPrefix = "increcache:input:"

// Store is a BadgerDB-backed key/value store for named input values.
type Store struct {
	db *badger.DB
}

// Options configures a Store.
type Options struct {
	// DataDir is the directory badger stores its files in. Required unless
	// InMemory is set.
	DataDir string
	// InMemory runs badger in memory-only mode; data does not survive
	// process exit. Useful for tests.
	InMemory bool
	// SyncWrites forces fsync after every Save. Slower, more durable.
	SyncWrites bool
}

// Open opens (creating if necessary) a Store at the given options.
func Open(opts Options) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.DataDir)
	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}
	// Quiet badger's own logger; the CLI driver logs what it cares about.
	badgerOpts = badgerOpts.WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open badger at %s: %w", opts.DataDir, err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a Store that does not touch disk, for tests and
// one-shot demo runs.
func OpenInMemory() (*Store, error) {
	return Open(Options{InMemory: true})
}

// Close releases the underlying badger handles.
func (s *Store) Close() error {
	return s.db.Close()
}

func inputKey(name string) []byte {
	return []byte(keyPrefix + name)
}

// Save writes the given name/value pairs in one transaction.
func (s *Store) Save(values map[string]int) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for name, value := range values {
			entry := badger.NewEntry(inputKey(name), []byte(fmt.Sprintf("%d", value)))
			if err := txn.SetEntry(entry); err != nil {
				return fmt.Errorf("snapshot: set %q: %w", name, err)
			}
		}
		return nil
	})
}

// SaveOne writes a single name/value pair.
func (s *Store) SaveOne(name string, value int) error {
	return s.Save(map[string]int{name: value})
}

// Load reads back every persisted input value.
func (s *Store) Load() (map[string]int, error) {
	values := make(map[string]int)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			name := string(item.KeyCopy(nil)[len(keyPrefix):])

			var value int
			err := item.Value(func(raw []byte) error {
				_, scanErr := fmt.Sscanf(string(raw), "%d", &value)
				return scanErr
			})
			if err != nil {
				return fmt.Errorf("snapshot: decode %q: %w", name, err)
			}
			values[name] = value
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}
