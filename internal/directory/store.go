package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/crypto/bcrypt"
)

var (
	usersBucket      = []byte("users")
	usersEmailBucket = []byte("users_email")

	// ErrEmailTaken is returned by Create when the email is already registered.
	ErrEmailTaken = errors.New("email already registered")

	// ErrBadCredentials is returned by Authenticate for an unknown email or a
	// wrong password. The two cases are deliberately indistinguishable.
	ErrBadCredentials = errors.New("bad credentials")
)

// storedUser is the on-disk record. The password hash never leaves the store.
type storedUser struct {
	Identity
	PasswordHash []byte `json:"passwordHash"`
}

// Store is a bbolt-backed identity directory.
type Store struct {
	db *bolt.DB
}

// OpenDB opens (or creates) the bbolt database at the given path.
func OpenDB(path string) (*bolt.DB, error) {
	return bolt.Open(path, 0o600, nil)
}

// NewStore creates or opens the user buckets in the given database.
func NewStore(db *bolt.DB) (*Store, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(usersBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(usersEmailBucket)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Create registers a new user with a bcrypt-hashed password and returns the
// stored identity. Emails are lowercased and trimmed before use.
func (s *Store) Create(email, fullName, password string) (Identity, error) {
	email = normalizeEmail(email)
	if email == "" {
		return Identity{}, fmt.Errorf("email must not be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Identity{}, err
	}

	user := storedUser{
		Identity: Identity{
			ID:       uuid.New().String(),
			Email:    email,
			FullName: fullName,
			IsActive: true,
		},
		PasswordHash: hash,
	}
	data, err := json.Marshal(user)
	if err != nil {
		return Identity{}, err
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		emails := tx.Bucket(usersEmailBucket)
		if emails.Get([]byte(email)) != nil {
			return ErrEmailTaken
		}
		if err := emails.Put([]byte(email), []byte(user.ID)); err != nil {
			return err
		}
		return tx.Bucket(usersBucket).Put([]byte(user.ID), data)
	})
	if err != nil {
		return Identity{}, err
	}
	return user.Identity, nil
}

// FetchByID returns the identity with the given id or ErrNotFound.
func (s *Store) FetchByID(_ context.Context, id string) (Identity, error) {
	user, err := s.getByID(id)
	if err != nil {
		return Identity{}, err
	}
	return user.Identity, nil
}

// FindByEmail returns the identity registered under the given email.
func (s *Store) FindByEmail(email string) (Identity, error) {
	email = normalizeEmail(email)

	var id []byte
	_ = s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(usersEmailBucket).Get([]byte(email)); v != nil {
			id = append([]byte{}, v...)
		}
		return nil
	})
	if id == nil {
		return Identity{}, ErrNotFound
	}

	user, err := s.getByID(string(id))
	if err != nil {
		return Identity{}, err
	}
	return user.Identity, nil
}

// Authenticate checks an email/password pair and returns the matching
// identity. Unknown emails and wrong passwords both yield ErrBadCredentials.
func (s *Store) Authenticate(email, password string) (Identity, error) {
	user, err := s.findStoredByEmail(normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, ErrBadCredentials
		}
		return Identity{}, err
	}
	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) != nil {
		return Identity{}, ErrBadCredentials
	}
	return user.Identity, nil
}

// SetActive flips the isActive flag on an existing user.
func (s *Store) SetActive(id string, active bool) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		users := tx.Bucket(usersBucket)
		data := users.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		var user storedUser
		if err := json.Unmarshal(data, &user); err != nil {
			return err
		}
		user.IsActive = active
		updated, err := json.Marshal(user)
		if err != nil {
			return err
		}
		return users.Put([]byte(id), updated)
	})
}

func (s *Store) getByID(id string) (storedUser, error) {
	var data []byte
	_ = s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(usersBucket).Get([]byte(id)); v != nil {
			data = append([]byte{}, v...)
		}
		return nil
	})
	if data == nil {
		return storedUser{}, ErrNotFound
	}
	var user storedUser
	if err := json.Unmarshal(data, &user); err != nil {
		return storedUser{}, err
	}
	return user, nil
}

func (s *Store) findStoredByEmail(email string) (storedUser, error) {
	var id []byte
	_ = s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(usersEmailBucket).Get([]byte(email)); v != nil {
			id = append([]byte{}, v...)
		}
		return nil
	})
	if id == nil {
		return storedUser{}, ErrNotFound
	}
	return s.getByID(string(id))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
