package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"papertrade/internal/domain"
	"papertrade/internal/utils"
)

// MinPasswordLength is the shortest password accepted at registration
const MinPasswordLength = 6

// AccountService handles registration and credentials
type AccountService struct {
	users        domain.UserRepository
	uow          domain.UnitOfWork
	startingCash decimal.Decimal
	hashCost     int
}

// NewAccountService creates a new AccountService. New accounts are funded
// with startingCash.
func NewAccountService(store domain.Store, startingCash decimal.Decimal) *AccountService {
	return &AccountService{
		users:        store.Users(),
		uow:          store,
		startingCash: startingCash,
		hashCost:     bcrypt.DefaultCost,
	}
}

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (s *AccountService) WithHashCost(cost int) *AccountService {
	s.hashCost = cost
	return s
}

// IsUsernameAvailable reports whether candidate could be registered right now.
// The answer is advisory; Register still fails on a concurrent claim.
func (s *AccountService) IsUsernameAvailable(ctx context.Context, candidate string) (bool, error) {
	if strings.TrimSpace(candidate) == "" {
		return false, nil
	}
	exists, err := s.users.UsernameExists(ctx, candidate)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return !exists, nil
}

// Register creates an account funded with the starting cash
func (s *AccountService) Register(ctx context.Context, username, password, confirmation string) (*domain.User, error) {
	switch {
	case strings.TrimSpace(username) == "":
		return nil, fmt.Errorf("%w: must provide username", domain.ErrInvalidInput)
	case password == "":
		return nil, fmt.Errorf("%w: must provide password", domain.ErrInvalidInput)
	case len(password) < MinPasswordLength:
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, MinPasswordLength)
	case password != confirmation:
		return nil, fmt.Errorf("%w: passwords do not match", domain.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := utils.Now()
	user := &domain.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: string(hash),
		Cash:         s.startingCash,
		StartingCash: s.startingCash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicateUsername) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Printf("[OK] Registered user %s (%s)", user.Username, user.ID)
	return user, nil
}

// VerifyCredentials returns the user whose username and password match.
// Unknown users and wrong passwords are indistinguishable to the caller.
func (s *AccountService) VerifyCredentials(ctx context.Context, username, password string) (*domain.User, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: must provide username and password", domain.ErrInvalidInput)
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrAuthFailure
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrAuthFailure
	}
	return user, nil
}

// ChangePassword replaces the user's password after checking the current one
func (s *AccountService) ChangePassword(ctx context.Context, userID uuid.UUID, current, next, confirmation string) error {
	switch {
	case current == "" || next == "":
		return fmt.Errorf("%w: must provide current and new password", domain.ErrInvalidInput)
	case len(next) < MinPasswordLength:
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, MinPasswordLength)
	case next != confirmation:
		return fmt.Errorf("%w: passwords do not match", domain.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.hashCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	err = s.uow.WithinUserTx(ctx, userID, func(ctx context.Context, repos domain.TxRepositories) error {
		user, err := repos.Users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
			return domain.ErrAuthFailure
		}
		return repos.Users.UpdatePasswordHash(ctx, userID, string(hash))
	})
	if err != nil {
		return err
	}

	log.Printf("[OK] Password changed for user %s", userID)
	return nil
}
