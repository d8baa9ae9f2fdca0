// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dotehq/dote/internal/database"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrInvalidCredentials is returned when a username/password pair does not match
var ErrInvalidCredentials = errors.New("invalid username or password")

// ErrUserExists is returned when signing up with a username that is taken
var ErrUserExists = errors.New("username already exists")

// PasswordAuthenticator handles username/password authentication
type PasswordAuthenticator struct {
	db           *gorm.DB
	tokenManager *TokenManager
}

// NewPasswordAuthenticator creates a new password authenticator
func NewPasswordAuthenticator(db *gorm.DB, tm *TokenManager) *PasswordAuthenticator {
	return &PasswordAuthenticator{
		db:           db,
		tokenManager: tm,
	}
}

// Signup creates a new user with a bcrypt-hashed password and issues a token
func (p *PasswordAuthenticator) Signup(username, email, password string) (*database.DoteUser, *database.DoteAuthToken, error) {
	var existing database.DoteUser
	err := p.db.Where("username = ?", username).First(&existing).Error
	if err == nil {
		return nil, nil, ErrUserExists
	}
	if err != gorm.ErrRecordNotFound {
		return nil, nil, fmt.Errorf("failed to query user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &database.DoteUser{
		UUID:         uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CTime:        time.Now().Unix(),
	}
	if err := p.db.Create(user).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := p.tokenManager.GenerateToken(user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return user, token, nil
}

// Authenticate verifies a username/password pair and issues a token
func (p *PasswordAuthenticator) Authenticate(username, password string) (*database.DoteUser, *database.DoteAuthToken, error) {
	var user database.DoteUser
	err := p.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("failed to query user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	token, err := p.tokenManager.GenerateToken(user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &user, token, nil
}

// GetUser fetches a user by ID
func (p *PasswordAuthenticator) GetUser(userID uint) (*database.DoteUser, error) {
	var user database.DoteUser
	err := p.db.First(&user, userID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("user %d not found", userID)
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// FindOrCreateSSOUser provisions a user for a SAML assertion and issues a token
func (p *PasswordAuthenticator) FindOrCreateSSOUser(username, email string) (*database.DoteUser, *database.DoteAuthToken, error) {
	var user database.DoteUser
	result := p.db.Where("username = ?", username).FirstOrCreate(&user, database.DoteUser{
		UUID:     uuid.NewString(),
		Username: username,
		Email:    email,
		CTime:    time.Now().Unix(),
	})
	if result.Error != nil {
		return nil, nil, fmt.Errorf("failed to create/find user: %w", result.Error)
	}

	token, err := p.tokenManager.GenerateToken(user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &user, token, nil
}
