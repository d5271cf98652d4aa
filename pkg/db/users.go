package db

import (
	"context"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/auth"
	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/model"
)

// UsersStore performs user table operations.
type UsersStore struct {
	session *Session
}

func NewUsersStore(session *Session) *UsersStore {
	return &UsersStore{session: session}
}

// Create inserts a new user. The email claim goes through a lightweight
// transaction so concurrent registrations of the same address cannot both
// succeed.
func (s *UsersStore) Create(ctx context.Context, email, name, hashedPassword string) (*model.User, error) {
	email = auth.NormalizeEmail(email)
	user := &model.User{
		ID:             uuid.NewString(),
		Email:          email,
		Name:           name,
		HashedPassword: hashedPassword,
		CreatedAt:      time.Now(),
	}

	applied, err := s.session.Query(
		`INSERT INTO users_by_email (email, user_id) VALUES (?, ?) IF NOT EXISTS`,
		email, user.ID,
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ErrDuplicateEmail
	}

	err = s.session.Query(
		`INSERT INTO users (id, email, name, image, hashed_password, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.Name, user.Image, user.HashedPassword, user.CreatedAt,
	).WithContext(ctx).Exec()
	if err != nil {
		return nil, err
	}

	return user, nil
}

// GetByEmail resolves the email index then loads the user row.
func (s *UsersStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = auth.NormalizeEmail(email)

	var userID string
	err := s.session.Query(`SELECT user_id FROM users_by_email WHERE email = ?`, email).
		WithContext(ctx).Scan(&userID)
	if err == gocql.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return s.GetByID(ctx, userID)
}

// GetByID loads one user row.
func (s *UsersStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.session.Query(
		`SELECT id, email, name, image, hashed_password, created_at FROM users WHERE id = ?`, id,
	).WithContext(ctx).Scan(&u.ID, &u.Email, &u.Name, &u.Image, &u.HashedPassword, &u.CreatedAt)
	if err == gocql.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByIDs loads several users; missing ids are skipped.
func (s *UsersStore) GetByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	users := make([]model.User, 0, len(ids))
	for _, id := range ids {
		u, err := s.GetByID(ctx, id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, nil
}

// UpdateProfile sets name and image. Empty name is rejected by the handler,
// not here.
func (s *UsersStore) UpdateProfile(ctx context.Context, id, name, image string) (*model.User, error) {
	err := s.session.Query(
		`UPDATE users SET name = ?, image = ? WHERE id = ?`, name, image, id,
	).WithContext(ctx).Exec()
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// List returns every user except the given one, for the people picker.
func (s *UsersStore) List(ctx context.Context, excludeID string) ([]model.User, error) {
	iter := s.session.Query(
		`SELECT id, email, name, image, created_at FROM users`,
	).WithContext(ctx).Iter()

	var users []model.User
	var u model.User
	for iter.Scan(&u.ID, &u.Email, &u.Name, &u.Image, &u.CreatedAt) {
		if u.ID == excludeID {
			continue
		}
		users = append(users, u)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return users, nil
}
