package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/esgportal/apiserver/internal/store"
	"github.com/esgportal/apiserver/types"
)

const (
	minPasswordLength = 8
	maxUsernameLength = 150
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	List(ctx context.Context, search string) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	DeleteWithDependents(ctx context.Context, id int64) (int, error)
}

// UserService encapsulates identity use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

// RegisterInput carries the fields accepted at self-registration.
type RegisterInput struct {
	Username     string
	Email        string
	Password     string
	FirstName    string
	LastName     string
	Organization string
	JobTitle     string
	PhoneNumber  string
}

// ProfileUpdate holds the profile fields a user may change. Nil fields are left untouched.
type ProfileUpdate struct {
	Email        *string
	FirstName    *string
	LastName     *string
	Organization *string
	JobTitle     *string
	PhoneNumber  *string
	Password     *string
}

// NormalizeUsername lowercases and trims a username the way it is stored.
func NormalizeUsername(username string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(username))
}

func normalizeEmail(email string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(email))
}

// Register creates a regular (non-staff) account. Duplicate usernames or
// emails surface as store.ErrConflict.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	username := NormalizeUsername(in.Username)
	email := normalizeEmail(in.Email)

	verr := &ValidationError{}
	switch {
	case username == "":
		verr.Add("username", "required")
	case utf8.RuneCountInString(username) > maxUsernameLength:
		verr.Add("username", "too long")
	case strings.ContainsAny(username, " \t\r\n"):
		verr.Add("username", "must not contain whitespace")
	}
	if msg := validateEmail(email); msg != "" {
		verr.Add("email", msg)
	}
	if len(in.Password) < minPasswordLength {
		verr.Add("password", "must be at least 8 characters")
	}
	if err := verr.OrNil(); err != nil {
		return types.User{}, err
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return types.User{}, err
	}

	return s.repo.Create(ctx, types.User{
		Username:     username,
		Email:        email,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Organization: strings.TrimSpace(in.Organization),
		JobTitle:     strings.TrimSpace(in.JobTitle),
		PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
		PasswordHash: hash,
	})
}

// Authenticate verifies credentials. Unknown users and wrong passwords
// both yield ErrUnauthenticated.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (types.User, error) {
	username = NormalizeUsername(username)
	verr := &ValidationError{}
	if username == "" {
		verr.Add("username", "required")
	}
	if password == "" {
		verr.Add("password", "required")
	}
	if err := verr.OrNil(); err != nil {
		return types.User{}, err
	}

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrUnauthenticated
		}
		return types.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrUnauthenticated
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID int64, update ProfileUpdate) (types.User, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return types.User{}, err
	}

	verr := &ValidationError{}
	if update.Email != nil {
		email := normalizeEmail(*update.Email)
		if msg := validateEmail(email); msg != "" {
			verr.Add("email", msg)
		}
		user.Email = email
	}
	if update.Password != nil && len(*update.Password) < minPasswordLength {
		verr.Add("password", "must be at least 8 characters")
	}
	if err := verr.OrNil(); err != nil {
		return types.User{}, err
	}

	setTrimmed(&user.FirstName, update.FirstName)
	setTrimmed(&user.LastName, update.LastName)
	setTrimmed(&user.Organization, update.Organization)
	setTrimmed(&user.JobTitle, update.JobTitle)
	setTrimmed(&user.PhoneNumber, update.PhoneNumber)
	if update.Password != nil {
		hash, err := hashPassword(*update.Password)
		if err != nil {
			return types.User{}, err
		}
		user.PasswordHash = hash
	}

	return s.repo.Update(ctx, user)
}

func (s *UserService) GetByID(ctx context.Context, id int64) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, notFound("user", id)
	}
	return user, err
}

// GetByUsername resolves a username as entered by an admin or user.
func (s *UserService) GetByUsername(ctx context.Context, username string) (types.User, error) {
	user, err := s.repo.GetByUsername(ctx, NormalizeUsername(username))
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, notFound("user", username)
	}
	return user, err
}

func (s *UserService) List(ctx context.Context, search string) ([]types.User, error) {
	return s.repo.List(ctx, strings.TrimSpace(search))
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func validateEmail(email string) string {
	if email == "" {
		return "required"
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "invalid address"
	}
	return ""
}

func setTrimmed(dst *string, value *string) {
	if value != nil {
		*dst = strings.TrimSpace(*value)
	}
}
