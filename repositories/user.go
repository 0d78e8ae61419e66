package repositories

import (
	"chat-rooms/domain/chat"
	"chat-rooms/errors"
	"context"
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const (
	userSequenceKey = "seq:user"
	userIDPrefix    = "userid:"
)

type UserRepository struct {
	db       *badger.DB
	sequence *badger.Sequence
}

func NewUserRepository(db *badger.DB) (*UserRepository, error) {
	seq, err := db.GetSequence([]byte(userSequenceKey), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("unable to lease user sequence: %w", err)
	}
	return &UserRepository{db: db, sequence: seq}, nil
}

func (u *UserRepository) Close() error {
	return u.sequence.Release()
}

// The record lives under "user:{username}", ids and emails are secondary indexes
// pointing back to the username.
func userKey(username string) []byte { return []byte("user:" + username) }
func userIDKey(id chat.UserID) []byte {
	return []byte(fmt.Sprintf("%s%0*d", userIDPrefix, idWidth, id))
}
func userEmailKey(email string) []byte { return []byte("useremail:" + strings.ToLower(email)) }

// CreateUser persists a new user and returns it with its assigned id.
// Username and email are both unique.
func (u *UserRepository) CreateUser(_ context.Context, user chat.User) (chat.User, error) {
	next, err := u.sequence.Next()
	if err != nil {
		return chat.User{}, err
	}
	user.ID = chat.UserID(next + 1)
	user.CreatedAt = user.CreatedAt.UTC()

	err = u.db.Update(func(txn *badger.Txn) error {
		if err := ensureFree(txn, userKey(user.Username), "username "+user.Username); err != nil {
			return err
		}
		if err := ensureFree(txn, userEmailKey(user.Email), "email "+user.Email); err != nil {
			return err
		}
		if err := txn.Set(userKey(user.Username), encodeUser(user)); err != nil {
			return err
		}
		if err := txn.Set(userIDKey(user.ID), []byte(user.Username)); err != nil {
			return err
		}
		return txn.Set(userEmailKey(user.Email), []byte(user.Username))
	})
	if err != nil {
		return chat.User{}, err
	}
	return user, nil
}

// ensureFree fails with ErrUserAlreadyExists when key is taken and passes any
// read failure through.
func ensureFree(txn *badger.Txn, key []byte, what string) error {
	_, err := txn.Get(key)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", errors.ErrUserAlreadyExists, what)
	case stdErrors.Is(err, badger.ErrKeyNotFound):
		return nil
	default:
		return err
	}
}

func (u *UserRepository) GetUserByUsername(_ context.Context, username string) (chat.User, error) {
	var user chat.User
	err := u.db.View(func(txn *badger.Txn) error {
		var err error
		user, err = getUser(txn, username)
		return err
	})
	return user, err
}

func (u *UserRepository) GetUserByID(_ context.Context, id chat.UserID) (chat.User, error) {
	var user chat.User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userIDKey(id))
		if err != nil {
			return notFound(err, errors.ErrUserNotFound)
		}
		username, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		user, err = getUser(txn, string(username))
		return err
	})
	return user, err
}

// ListUsers walks the id index so users come back in creation order.
func (u *UserRepository) ListUsers(_ context.Context, skip, limit int) ([]chat.User, error) {
	if limit <= 0 {
		return nil, nil
	}
	var users []chat.User
	err := u.db.View(func(txn *badger.Txn) error {
		prefix := []byte(userIDPrefix)
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		skipped := 0
		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(users) < limit; it.Next() {
			if skipped < skip {
				skipped++
				continue
			}
			username, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			user, err := getUser(txn, string(username))
			if err != nil {
				return err
			}
			users = append(users, user)
		}
		return nil
	})
	return users, err
}

func getUser(txn *badger.Txn, username string) (chat.User, error) {
	item, err := txn.Get(userKey(username))
	if err != nil {
		return chat.User{}, notFound(err, errors.ErrUserNotFound)
	}
	var user chat.User
	err = item.Value(func(value []byte) error {
		user, err = decodeUser(value)
		return err
	})
	return user, err
}
