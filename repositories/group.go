package repositories

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

func groupKey(name string) []byte {
	return []byte(groupPrefix + name)
}

func memberKey(group, username string) []byte {
	return []byte(memberPrefix + group + ":" + username)
}

func membershipKey(username, group string) []byte {
	return []byte(membershipPrefix + username + ":" + group)
}

// CreateGroup stores the group with admin as its first member.
func (s *BadgerStore) CreateGroup(_ context.Context, name, admin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	group := domain.NewGroup(name, admin, time.Now().UTC())
	return s.db.Update(func(txn *badger.Txn) error {
		found, err := exists(txn, groupPrefix+name)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: %s", errors.ErrGroupAlreadyExists, name)
		}
		if _, err = getAccount(txn, admin); err != nil {
			return err
		}
		if err = txn.Set(groupKey(name), marshalGroup(group)); err != nil {
			return err
		}
		return setMember(txn, name, admin)
	})
}

func (s *BadgerStore) Group(_ context.Context, name string) (domain.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var group domain.Group
	err := s.db.View(func(txn *badger.Txn) (err error) {
		group, err = getGroup(txn, name)
		return err
	})
	return group, err
}

// GroupsOf lists the groups username belongs to, in lexical order.
func (s *BadgerStore) GroupsOf(_ context.Context, username string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var groups []string
	err := s.db.View(func(txn *badger.Txn) error {
		groups = keysWithPrefix(txn, membershipPrefix+username+":")
		return nil
	})
	return groups, err
}

// AddMember admits username unless the group is at capacity.
// Adding an existing member is a no-op.
func (s *BadgerStore) AddMember(_ context.Context, group, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := getGroup(txn, group); err != nil {
			return err
		}
		if _, err := getAccount(txn, username); err != nil {
			return err
		}
		members := keysWithPrefix(txn, memberPrefix+group+":")
		for _, m := range members {
			if m == username {
				return nil
			}
		}
		if len(members) >= domain.MaxGroupMembers {
			return fmt.Errorf("%w: %s", errors.ErrGroupFull, group)
		}
		return setMember(txn, group, username)
	})
}

// RemoveMember drops username from group. The admin can never be removed.
func (s *BadgerStore) RemoveMember(_ context.Context, group, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		g, err := getGroup(txn, group)
		if err != nil {
			return err
		}
		if g.IsAdmin(username) {
			return fmt.Errorf("%w: %s", errors.ErrAdminCannotLeave, group)
		}
		found, err := exists(txn, string(memberKey(group, username)))
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", errors.ErrNotGroupMember, group)
		}
		if err = txn.Delete(memberKey(group, username)); err != nil {
			return err
		}
		return txn.Delete(membershipKey(username, group))
	})
}

func (s *BadgerStore) Members(_ context.Context, group string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var members []string
	err := s.db.View(func(txn *badger.Txn) error {
		g, err := getGroup(txn, group)
		members = g.Members
		return err
	})
	return members, err
}

func (s *BadgerStore) IsAdmin(ctx context.Context, group, username string) (bool, error) {
	admin, err := s.AdminOf(ctx, group)
	if err != nil {
		return false, err
	}
	return admin == username, nil
}

func (s *BadgerStore) AdminOf(_ context.Context, group string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var admin string
	err := s.db.View(func(txn *badger.Txn) error {
		g, err := getGroup(txn, group)
		admin = g.Admin
		return err
	})
	return admin, err
}

func (s *BadgerStore) MemberCount(_ context.Context, group string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	err := s.db.View(func(txn *badger.Txn) error {
		g, err := getGroup(txn, group)
		count = len(g.Members)
		return err
	})
	return count, err
}

// Groups returns every group with its members. Used by tooling.
func (s *BadgerStore) Groups(_ context.Context) ([]domain.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var groups []domain.Group
	err := s.db.View(func(txn *badger.Txn) error {
		for _, name := range keysWithPrefix(txn, groupPrefix) {
			g, err := getGroup(txn, name)
			if err != nil {
				return err
			}
			groups = append(groups, g)
		}
		return nil
	})
	return groups, err
}

func setMember(txn *badger.Txn, group, username string) error {
	if err := txn.Set(memberKey(group, username), nil); err != nil {
		return err
	}
	return txn.Set(membershipKey(username, group), nil)
}

// getGroup loads the group header and its member keys.
func getGroup(txn *badger.Txn, name string) (domain.Group, error) {
	item, err := txn.Get(groupKey(name))
	if err == badger.ErrKeyNotFound {
		return domain.Group{}, fmt.Errorf("%w: %s", errors.ErrGroupNotFound, name)
	}
	if err != nil {
		return domain.Group{}, err
	}
	var group domain.Group
	err = item.Value(func(val []byte) (err error) {
		group, err = unmarshalGroup(name, val)
		return err
	})
	if err != nil {
		return domain.Group{}, err
	}
	group.Members = keysWithPrefix(txn, memberPrefix+name+":")
	return group, nil
}
