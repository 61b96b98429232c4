package auth

import (
	"strings"
	"time"
)

// User represents an operator account.
type User struct {
	ID           int64
	NationalID   string
	FirstName    string
	LastName     string
	Phone        string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
}

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// RegisterInput carries the fields required to open an account.
type RegisterInput struct {
	NationalID string
	FirstName  string
	LastName   string
	Phone      string
	Email      string
	Password   string
}

// LoginResult is returned after a successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      User
}

// UserView is the public representation of a user.
type UserView struct {
	ID         int64     `json:"id"`
	NationalID string    `json:"national_id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Phone      string    `json:"phone"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}

// View strips credentials from the user.
func (u User) View() UserView {
	return UserView{
		ID:         u.ID,
		NationalID: u.NationalID,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Phone:      u.Phone,
		Email:      u.Email,
		Role:       u.Role,
		CreatedAt:  u.CreatedAt,
	}
}
