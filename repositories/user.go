package repositories

import (
	"chat-relay/codec"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	stderrors "errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

var _ contract.IUserRepository = (*UserRepository)(nil)

const (
	userPrefix     = "user:"
	usernamePrefix = "username:"
	userSequence   = "seq:user"
)

// UserRepository is the identity directory.
// Records live under "user:{id}"; "username:{username}" points to the id
// and is what enforces username uniqueness.
type UserRepository struct {
	db  *badger.DB
	seq *badger.Sequence
}

func NewUserRepository(db *badger.DB) (*UserRepository, error) {
	seq, err := db.GetSequence([]byte(userSequence), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("user sequence: %w", err)
	}
	return &UserRepository{db: db, seq: seq}, nil
}

// diskUser carries a creation sequence so listings keep registration order.
type diskUser struct {
	ID       string  `cbor:"id"`
	Username string  `cbor:"username"`
	Name     string  `cbor:"name"`
	Avatar   *string `cbor:"avatar"`
	Online   bool    `cbor:"online"`
	Seq      uint64  `cbor:"seq"`
}

// CreateUser registers an offline user without avatar and returns it.
func (u *UserRepository) CreateUser(_ context.Context, username, name string) (domain.User, error) {
	n, err := u.seq.Next()
	if err != nil {
		return domain.User{}, fmt.Errorf("next user sequence: %w", err)
	}
	record := diskUser{ID: uuid.NewString(), Username: username, Name: name, Seq: n}

	err = u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(usernameKey(username)); err == nil {
			return errors.ErrUsernameTaken
		} else if !stderrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(usernameKey(username), []byte(record.ID)); err != nil {
			return err
		}
		return setUser(txn, record)
	})
	if err != nil {
		return domain.User{}, err
	}
	return toUser(record), nil
}

func (u *UserRepository) GetUser(_ context.Context, id string) (domain.User, error) {
	var record diskUser
	err := u.db.View(func(txn *badger.Txn) error {
		var err error
		record, err = getUser(txn, id)
		return err
	})
	if err != nil {
		return domain.User{}, err
	}
	return toUser(record), nil
}

func (u *UserRepository) GetUserByUsername(_ context.Context, username string) (domain.User, error) {
	var record diskUser
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(usernameKey(username))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		record, err = getUser(txn, string(id))
		return err
	})
	if err != nil {
		return domain.User{}, err
	}
	return toUser(record), nil
}

// ListUsers returns every user in registration order.
func (u *UserRepository) ListUsers(_ context.Context) ([]domain.User, error) {
	var records []diskUser
	err := u.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = []byte(userPrefix)
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var record diskUser
			if err := it.Item().Value(func(value []byte) error {
				return codec.Unmarshal(value, &record)
			}); err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Seq < records[j].Seq })
	return lo.Map(records, func(record diskUser, _ int) domain.User { return toUser(record) }), nil
}

func (u *UserRepository) SetOnline(_ context.Context, id string, online bool) error {
	return u.db.Update(func(txn *badger.Txn) error {
		record, err := getUser(txn, id)
		if err != nil {
			return err
		}
		record.Online = online
		return setUser(txn, record)
	})
}

// UpdateProfile replaces username and name. The avatar is only replaced
// when a new one is given.
func (u *UserRepository) UpdateProfile(_ context.Context, id, username, name string, avatar *string) (domain.User, domain.User, error) {
	var previous, updated diskUser
	err := u.db.Update(func(txn *badger.Txn) error {
		var err error
		previous, err = getUser(txn, id)
		if err != nil {
			return err
		}
		updated = previous

		if username != previous.Username {
			if _, err := txn.Get(usernameKey(username)); err == nil {
				return errors.ErrUsernameTaken
			} else if !stderrors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if err := txn.Delete(usernameKey(previous.Username)); err != nil {
				return err
			}
			if err := txn.Set(usernameKey(username), []byte(id)); err != nil {
				return err
			}
		}
		updated.Username = username
		updated.Name = name
		if avatar != nil {
			updated.Avatar = avatar
		}
		return setUser(txn, updated)
	})
	if err != nil {
		return domain.User{}, domain.User{}, err
	}
	return toUser(previous), toUser(updated), nil
}

// Close releases the leased sequence range.
func (u *UserRepository) Close() error {
	return u.seq.Release()
}

func getUser(txn *badger.Txn, id string) (diskUser, error) {
	var record diskUser
	item, err := txn.Get(userKey(id))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return record, errors.ErrUserNotFound
	}
	if err != nil {
		return record, err
	}
	err = item.Value(func(value []byte) error {
		return codec.Unmarshal(value, &record)
	})
	return record, err
}

func setUser(txn *badger.Txn, record diskUser) error {
	bytes, err := codec.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return txn.Set(userKey(record.ID), bytes)
}

func userKey(id string) []byte {
	return []byte(userPrefix + id)
}

func usernameKey(username string) []byte {
	return []byte(usernamePrefix + username)
}

func toUser(record diskUser) domain.User {
	return domain.User{
		ID:       record.ID,
		Username: record.Username,
		Name:     record.Name,
		Avatar:   record.Avatar,
		Online:   record.Online,
	}
}
