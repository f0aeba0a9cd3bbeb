package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// User is the authenticated caller identity.
type User struct {
	ID       int64  `json:"id"`
	Phone    string `json:"phone"`
	NickName string `json:"nickName"`
}

// GetUserByPhone returns the user registered under phone, or (nil, nil).
func (s *Store) GetUserByPhone(ctx context.Context, phone string) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `
		SELECT id, phone, nick_name FROM tb_user WHERE phone = $1
	`, phone).Scan(&u.ID, &u.Phone, &u.NickName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser registers a new user for phone and returns it with its id set.
func (s *Store) CreateUser(ctx context.Context, phone, nickName string) (*User, error) {
	u := &User{Phone: phone, NickName: nickName}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO tb_user (phone, nick_name) VALUES ($1, $2) RETURNING id
	`, phone, nickName).Scan(&u.ID)
	if err != nil {
		return nil, err
	}
	return u, nil
}
