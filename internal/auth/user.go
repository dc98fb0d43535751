package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/pipedesk/internal/crmerr"
	"github.com/zulandar/pipedesk/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

var errBadCredentials = &crmerr.Error{Kind: crmerr.ErrUnauthorized, Msg: "auth: invalid email or password"}

// UserOpts holds parameters for creating a user.
type UserOpts struct {
	Email    string
	Password string
	Name     string
	Surname  string
}

// CreateUser validates the input, hashes the password with bcrypt and
// stores the user.
func CreateUser(db *gorm.DB, opts UserOpts) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(opts.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, crmerr.Validation("auth: a valid email is required")
	}
	if len(opts.Password) < MinPasswordLength {
		return nil, crmerr.Validation("auth: password must be at least %d characters", MinPasswordLength)
	}

	var n int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("auth: check email: %w", err)
	}
	if n > 0 {
		return nil, crmerr.Validation("auth: email %s is already registered", email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	user := models.User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(opts.Name),
		Surname:      strings.TrimSpace(opts.Surname),
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("auth: create user: %w", err)
	}
	return &user, nil
}

// Register creates a user after checking the supplied registration code
// against the configured one. An empty configured code disables
// self-registration.
func Register(db *gorm.DB, opts UserOpts, code, required string) (*models.User, error) {
	if required == "" || code != required {
		return nil, &crmerr.Error{Kind: crmerr.ErrUnauthorized, Msg: "auth: invalid registration code"}
	}
	return CreateUser(db, opts)
}

// Login returns the user whose email and password match.
func Login(db *gorm.DB, email, password string) (*models.User, error) {
	var user models.User
	email = strings.ToLower(strings.TrimSpace(email))
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("auth: get user %s: %w", email, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errBadCredentials
	}
	return &user, nil
}

// GetUser returns the user with the given id, or nil when missing.
func GetUser(db *gorm.DB, id string) (*models.User, error) {
	var user models.User
	if err := db.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("auth: get user %s: %w", id, err)
	}
	return &user, nil
}
