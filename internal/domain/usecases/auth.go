package usecases

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
	"github.com/0xcro3dile/ragchat/internal/domain/ports"
)

const minPasswordLength = 6

// AuthUseCase registers users and resolves bearer tokens to identities.
type AuthUseCase struct {
	users  ports.UserRepository
	hasher ports.PasswordHasher
	tokens ports.TokenService
}

// NewAuthUseCase creates an AuthUseCase.
func NewAuthUseCase(users ports.UserRepository, hasher ports.PasswordHasher, tokens ports.TokenService) *AuthUseCase {
	return &AuthUseCase{users: users, hasher: hasher, tokens: tokens}
}

// Register creates an account and returns it with a fresh access token.
func (uc *AuthUseCase) Register(ctx context.Context, email, username, password string) (*entities.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, "", fmt.Errorf("%w: invalid email", entities.ErrValidation)
	}
	if len(password) < minPasswordLength {
		return nil, "", fmt.Errorf("%w: password must be at least %d characters", entities.ErrValidation, minPasswordLength)
	}
	if username = strings.TrimSpace(username); username == "" {
		username = strings.SplitN(email, "@", 2)[0]
	}

	if _, err := uc.users.GetByEmail(ctx, email); err == nil {
		return nil, "", fmt.Errorf("email %s: %w", email, entities.ErrDuplicate)
	} else if !errors.Is(err, entities.ErrNotFound) {
		return nil, "", fmt.Errorf("looking up user: %w", err)
	}

	hash, err := uc.hasher.Hash(password)
	if err != nil {
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}
	user := &entities.User{Email: email, Username: username, PasswordHash: hash}
	if err := uc.users.Create(ctx, user); err != nil {
		return nil, "", fmt.Errorf("creating user: %w", err)
	}

	token, err := uc.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issuing token: %w", err)
	}
	return user, token, nil
}

// Login checks credentials. Every failure is reported as ErrAuth.
func (uc *AuthUseCase) Login(ctx context.Context, email, password string) (*entities.User, string, error) {
	user, err := uc.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, "", entities.ErrAuth
	}
	if err := uc.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, "", entities.ErrAuth
	}
	token, err := uc.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issuing token: %w", err)
	}
	return user, token, nil
}

// Authenticate resolves a bearer token. Every failure is reported as ErrAuth.
func (uc *AuthUseCase) Authenticate(ctx context.Context, token string) (*entities.User, error) {
	if token == "" {
		return nil, entities.ErrAuth
	}
	userID, err := uc.tokens.Verify(token)
	if err != nil {
		return nil, entities.ErrAuth
	}
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return nil, entities.ErrAuth
	}
	return user, nil
}
