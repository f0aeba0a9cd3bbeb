package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/flashmart/seckill/internal/logx"
	"github.com/flashmart/seckill/internal/redisx"
	"github.com/flashmart/seckill/internal/store"
)

// ErrBadCredentials is returned when the submitted login code does not match
// the one issued for the phone number.
var ErrBadCredentials = errors.New("invalid phone or code")

const (
	codeKeyPrefix  = "login:code:"
	tokenKeyPrefix = "login:token:"
	codeTTL        = 2 * time.Minute
	// SessionTTL is how long a session survives without activity. The
	// middleware refreshes it on every authenticated request.
	SessionTTL = 30 * time.Minute
)

// UserStore is the slice of the persistence collaborator the login flow
// needs. *store.Store satisfies it.
type UserStore interface {
	GetUserByPhone(ctx context.Context, phone string) (*store.User, error)
	CreateUser(ctx context.Context, phone, nickName string) (*store.User, error)
}

// Service issues login codes and session tokens against the shared store.
type Service struct {
	client *redisx.Client
	users  UserStore
	logger logx.Logger
}

// NewService wires the auth service.
func NewService(client *redisx.Client, users UserStore, logger logx.Logger) *Service {
	if logger == nil {
		logger = logx.Default()
	}
	return &Service{client: client, users: users, logger: logger}
}

// SendCode issues a short-lived login code for phone. Delivery is out of
// scope; the code is written to the debug log in place of an SMS gateway.
func (s *Service) SendCode(ctx context.Context, phone string) error {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return fmt.Errorf("generate login code: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())
	if err := s.client.Set(ctx, codeKeyPrefix+phone, code, codeTTL); err != nil {
		return fmt.Errorf("store login code: %w", err)
	}
	s.logger.Debug("login code issued", "phone", phone, "code", code)
	return nil
}

// Login validates the (phone, code) pair, registering the user on first
// login, and returns a session token. The session lives in the store as a
// hash under login:token:<token> so any process instance can resolve it.
func (s *Service) Login(ctx context.Context, phone, code string) (string, error) {
	stored, err := s.client.Get(ctx, codeKeyPrefix+phone)
	if redisx.IsNil(err) || (err == nil && stored != code) {
		return "", ErrBadCredentials
	}
	if err != nil {
		return "", fmt.Errorf("load login code: %w", err)
	}

	user, err := s.users.GetUserByPhone(ctx, phone)
	if err != nil {
		return "", err
	}
	if user == nil {
		user, err = s.users.CreateUser(ctx, phone, "user_"+phone)
		if err != nil {
			return "", err
		}
	}

	token := uuid.New().String()
	key := tokenKeyPrefix + token
	err = s.client.HSet(ctx, key, map[string]string{
		"id":       strconv.FormatInt(user.ID, 10),
		"nickName": user.NickName,
	})
	if err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	if err := s.client.Expire(ctx, key, SessionTTL); err != nil {
		return "", fmt.Errorf("expire session: %w", err)
	}
	_ = s.client.Del(ctx, codeKeyPrefix+phone)
	return token, nil
}
