package repositories

import (
	"chat-relay/contract"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

const (
	accountPrefix    = "account:"
	groupPrefix      = "group:"
	memberPrefix     = "member:"     // member:<group>:<username>
	membershipPrefix = "membership:" // membership:<username>:<group>
	directPrefix     = "dm:"         // dm:<a>:<b>:<ts>:<uuid> with a < b
	groupMsgPrefix   = "gmsg:"       // gmsg:<group>:<ts>:<uuid>
)

// BadgerStore implements contract.Store on top of BadgerDB.
// Every call holds mu for its whole duration, which keeps read-check-write
// sequences such as the group admission cap atomic.
type BadgerStore struct {
	mu  sync.Mutex
	db  *badger.DB
	log *slog.Logger
}

var _ contract.Store = (*BadgerStore)(nil)

func NewBadgerStore(db *badger.DB, log *slog.Logger) *BadgerStore {
	return &BadgerStore{db: db, log: log}
}

// OpenBadgerStore opens (or creates) the database directory at path.
func OpenBadgerStore(path string, log *slog.Logger) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, fmt.Errorf("database opening failed: %w", err)
	}
	return NewBadgerStore(db, log), nil
}

// DB exposes the underlying database to read-only tooling.
func (s *BadgerStore) DB() *badger.DB {
	return s.db
}

func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Info("Closing BadgerDB...")
	return s.db.Close()
}

func exists(txn *badger.Txn, key string) (bool, error) {
	_, err := txn.Get([]byte(key))
	switch {
	case err == nil:
		return true, nil
	case err == badger.ErrKeyNotFound:
		return false, nil
	default:
		return false, err
	}
}

// keysWithPrefix returns the key suffixes after prefix, in key order.
func keysWithPrefix(txn *badger.Txn, prefix string) []string {
	options := badger.DefaultIteratorOptions
	options.PrefetchValues = false
	options.Prefix = []byte(prefix)
	it := txn.NewIterator(options)
	defer it.Close()

	var out []string
	for it.Rewind(); it.Valid(); it.Next() {
		out = append(out, string(it.Item().Key()[len(prefix):]))
	}
	return out
}
