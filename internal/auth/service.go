package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/vlady-pos/vlady-pos/internal/shared"
)

const minPasswordLength = 8

var specialCharPattern = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>/?]`)

// Password policy failures.
var (
	ErrPasswordTooShort   = shared.Errorf(shared.ErrValidation, "The password must be at least %d characters long.", minPasswordLength)
	ErrPasswordNoSpecial  = shared.Errorf(shared.ErrValidation, "The password must contain at least one special character (!@#$%%^&*()_+...).")
	ErrMissingFields      = shared.Errorf(shared.ErrValidation, "Missing required registration fields.")
	ErrOperatorForbidden  = shared.Errorf(shared.ErrForbidden, "The operator account is missing or inactive.")
	errSessionUserChanged = errors.New("session does not belong to token subject")
)

// SessionStore keeps token sessions.
type SessionStore interface {
	Create(ctx context.Context, userID int64, role string) (*shared.Session, error)
	Load(ctx context.Context, id string) (*shared.Session, error)
	Destroy(ctx context.Context, id string) error
}

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	sessions SessionStore
	tokens   *TokenIssuer
	audit    AuditRecorder
	logger   *slog.Logger
}

// AuditRecorder records registrations.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// NewService constructs a new Service.
func NewService(repo Repository, sessions SessionStore, tokens *TokenIssuer, audit AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, sessions: sessions, tokens: tokens, audit: audit, logger: logger}
}

// ValidatePassword enforces the account password policy.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return ErrPasswordTooShort
	}
	if !specialCharPattern.MatchString(password) {
		return ErrPasswordNoSpecial
	}
	return nil
}

// Register opens a seller account.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*User, error) {
	input.NationalID = strings.TrimSpace(input.NationalID)
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	input.Phone = strings.TrimSpace(input.Phone)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.NationalID == "" || input.FirstName == "" || input.LastName == "" ||
		input.Phone == "" || input.Email == "" || input.Password == "" {
		return nil, ErrMissingFields
	}
	if err := ValidatePassword(input.Password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := User{
		NationalID:   input.NationalID,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Phone:        input.Phone,
		Email:        input.Email,
		PasswordHash: string(hash),
		Role:         shared.RoleSeller,
		IsActive:     true,
	}
	id, err := s.repo.Create(ctx, user)
	if err != nil {
		return nil, err
	}
	user.ID = id
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  id,
			Action:   shared.AuditUserRegistered,
			Entity:   "user",
			EntityID: fmt.Sprint(id),
		}); err != nil {
			s.logger.Warn("audit register", slog.Int64("user_id", id), slog.Any("error", err))
		}
	}
	return &user, nil
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates the user and issues an access token bound to a new
// session.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.Create(ctx, user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.Issue(user.ID, user.Role, sess.ID, sess.ExpiresAt)
	if err != nil {
		_ = s.sessions.Destroy(ctx, sess.ID)
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: sess.ExpiresAt, User: *user}, nil
}

// Logout revokes the session.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Destroy(ctx, sessionID)
}

// Me returns the operator behind the current session.
func (s *Service) Me(ctx context.Context, userID int64) (*User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrOperatorForbidden
	}
	return user, nil
}

// ResolveToken verifies a bearer token and returns the live session.
func (s *Service) ResolveToken(ctx context.Context, raw string) (*shared.Session, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUnauthorized, err)
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", shared.ErrUnauthorized)
	}
	sess, err := s.sessions.Load(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, fmt.Errorf("%w: %v", shared.ErrUnauthorized, errSessionUserChanged)
	}
	return sess, nil
}
