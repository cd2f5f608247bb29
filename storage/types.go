package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error types
type ErrorType string

const (
	ErrNotFound      ErrorType = "not_found"
	ErrAlreadyExists ErrorType = "already_exists"
	ErrInvalidInput  ErrorType = "invalid_input"
)

// Error represents a storage-related error
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsType reports whether err is a storage error of type t
func IsType(err error, t ErrorType) bool {
	var se *Error
	return errors.As(err, &se) && se.Type == t
}

// IsNotFound reports whether err is a not_found storage error
func IsNotFound(err error) bool {
	return IsType(err, ErrNotFound)
}

// Theme is the colour scheme a user picked for the calendar UI
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	ThemeBlue  Theme = "blue"
)

// DefaultTheme is used for profiles that never picked one
const DefaultTheme = ThemeLight

// Valid reports whether t is a known theme
func (t Theme) Valid() bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeBlue:
		return true
	default:
		return false
	}
}

// Account holds the login credentials of a user
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Profile holds the user-facing settings of an account
type Profile struct {
	UserID      string    `json:"userId"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Theme       Theme     `json:"theme"`
	AvatarURL   string    `json:"avatarURL"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// DefaultProfile is the profile of a user who never saved one.
// The display name is the local part of the email address.
func DefaultProfile(userID, email string) *Profile {
	name, _, _ := strings.Cut(email, "@")
	return &Profile{
		UserID:      userID,
		Email:       email,
		DisplayName: name,
		Theme:       DefaultTheme,
	}
}

// Merge copies the non-empty fields of update onto p
func (p *Profile) Merge(update *Profile) {
	if update.Email != "" {
		p.Email = update.Email
	}
	if update.DisplayName != "" {
		p.DisplayName = update.DisplayName
	}
	if update.Theme != "" {
		p.Theme = update.Theme
	}
	if update.AvatarURL != "" {
		p.AvatarURL = update.AvatarURL
	}
}

// Avatar is an uploaded profile image
type Avatar struct {
	UserID      string
	ContentType string
	Data        []byte
	UpdatedAt   time.Time
}

// AvatarPath is the public path an avatar is served from
func AvatarPath(userID string) string {
	return "/avatars/" + userID
}
