package repositories

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"
)

// newestSuffix sorts after every 19-digit zero padded timestamp.
const newestSuffix = "9999999999999999999"

func directConversationPrefix(a, b string) string {
	return directPrefix + domain.ConversationKey(a, b) + ":"
}

func groupConversationPrefix(group string) string {
	return groupMsgPrefix + group + ":"
}

// recordKey is "<prefix><timestamp_padded>:<uuid>". The 19-digit zero padding
// keeps lexical order chronological and the uuid separates records sharing a
// nanosecond.
func recordKey(prefix string, r domain.Record) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", prefix, r.Timestamp.UnixNano(), r.ID))
}

func (s *BadgerStore) AppendDirectMessage(_ context.Context, record domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey(directConversationPrefix(record.Sender, record.Target), record)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, pack(marshalRecord(record)))
	})
}

func (s *BadgerStore) AppendGroupMessage(_ context.Context, record domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey(groupConversationPrefix(record.Target), record)
	return s.db.Update(func(txn *badger.Txn) error {
		found, err := exists(txn, groupPrefix+record.Target)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", errors.ErrGroupNotFound, record.Target)
		}
		return txn.Set(key, pack(marshalRecord(record)))
	})
}

// HistoryDirect returns the last limit records exchanged between a and b,
// oldest first. A limit <= 0 returns the whole conversation.
func (s *BadgerStore) HistoryDirect(_ context.Context, a, b string, limit int) ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history(directConversationPrefix(a, b), limit)
}

func (s *BadgerStore) HistoryGroup(_ context.Context, group string, limit int) ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history(groupConversationPrefix(group), limit)
}

// history walks the conversation backwards from its newest record, then
// flips the page so callers get chronological order.
func (s *BadgerStore) history(prefix string, limit int) ([]domain.Record, error) {
	var records []domain.Record
	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek([]byte(prefix + newestSuffix)); it.ValidForPrefix(p); it.Next() {
			if limit > 0 && len(records) == limit {
				s.log.Debug(fmt.Sprintf("Maximum of %d records reached", limit))
				break
			}
			err := it.Item().Value(func(val []byte) error {
				body, err := unpack(val)
				if err != nil {
					return err
				}
				record, err := unmarshalRecord(body)
				if err != nil {
					return err
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(records)
	return records, nil
}

// Records returns every stored record of the given scope in key order.
// Used by tooling.
func (s *BadgerStore) Records(_ context.Context, scope domain.HistoryScope) ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := []byte(directPrefix)
	if scope == domain.HistoryGroup {
		prefix = []byte(groupMsgPrefix)
	}
	var records []domain.Record
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				body, err := unpack(val)
				if err != nil {
					return err
				}
				record, err := unmarshalRecord(body)
				records = append(records, record)
				return err
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return records, err
}
