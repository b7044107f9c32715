package repositories

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

func accountKey(username string) []byte {
	return []byte(accountPrefix + username)
}

// RegisterAccount persists a new account, offline.
func (s *BadgerStore) RegisterAccount(_ context.Context, username, credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account := domain.Account{Username: username, Credential: credential, CreatedAt: time.Now().UTC()}
	return s.db.Update(func(txn *badger.Txn) error {
		found, err := exists(txn, accountPrefix+username)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: %s", errors.ErrUserAlreadyExists, username)
		}
		return txn.Set(accountKey(username), marshalAccount(account))
	})
}

func (s *BadgerStore) Credential(_ context.Context, username string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var account domain.Account
	err := s.db.View(func(txn *badger.Txn) (err error) {
		account, err = getAccount(txn, username)
		return err
	})
	return account.Credential, err
}

func (s *BadgerStore) SetOnline(_ context.Context, username string, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		account, err := getAccount(txn, username)
		if err != nil {
			return err
		}
		account.Online = online
		return txn.Set(accountKey(username), marshalAccount(account))
	})
}

// ListUsers returns every registered username in lexical order.
func (s *BadgerStore) ListUsers(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var users []string
	err := s.db.View(func(txn *badger.Txn) error {
		users = keysWithPrefix(txn, accountPrefix)
		return nil
	})
	return users, err
}

func (s *BadgerStore) UserExists(_ context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found bool
	err := s.db.View(func(txn *badger.Txn) (err error) {
		found, err = exists(txn, accountPrefix+username)
		return err
	})
	return found, err
}

// Accounts returns every account with its online flag. Used by tooling.
func (s *BadgerStore) Accounts(_ context.Context) ([]domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var accounts []domain.Account
	err := s.db.View(func(txn *badger.Txn) error {
		for _, username := range keysWithPrefix(txn, accountPrefix) {
			account, err := getAccount(txn, username)
			if err != nil {
				return err
			}
			accounts = append(accounts, account)
		}
		return nil
	})
	return accounts, err
}

func getAccount(txn *badger.Txn, username string) (domain.Account, error) {
	item, err := txn.Get(accountKey(username))
	if err == badger.ErrKeyNotFound {
		return domain.Account{}, fmt.Errorf("%w: %s", errors.ErrUserNotFound, username)
	}
	if err != nil {
		return domain.Account{}, err
	}
	var account domain.Account
	err = item.Value(func(val []byte) (err error) {
		account, err = unmarshalAccount(username, val)
		return err
	})
	return account, err
}
