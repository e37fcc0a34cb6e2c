package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/lanch-pos/lanch-pos/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service wraps authentication and account management rules.
type Service struct {
	repo    Repository
	tokens  *TokenIssuer
	revoked *RevocationStore
	audit   AuditPort
	log     *slog.Logger
	now     func() time.Time
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *TokenIssuer, revoked *RevocationStore, audit AuditPort, log *slog.Logger) *Service {
	return &Service{repo: repo, tokens: tokens, revoked: revoked, audit: audit, log: log, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// Login validates credentials and issues an access token. Failures are
// deliberately indistinguishable: unknown user, wrong password and inactive
// account all return ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return Session{}, shared.ErrInvalidCredentials
	}
	if !user.Active {
		return Session{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Session{}, shared.ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(*user, s.now())
	if err != nil {
		return Session{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  user.ID,
			Action:   "LOGIN",
			Entity:   "users",
			EntityID: strconv.FormatInt(user.ID, 10),
		})
	}
	s.log.InfoContext(ctx, "user logged in", slog.String("username", user.Username), slog.String("role", user.Role))

	return Session{
		Token:              token,
		ExpiresAt:          expiresAt,
		User:               *user,
		MustChangePassword: user.MustChangePassword,
	}, nil
}

// Logout revokes the presented token until it would have expired anyway.
func (s *Service) Logout(ctx context.Context, claims *Claims) error {
	if claims.ExpiresAt == nil {
		return nil
	}
	return s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

// ChangePassword verifies the current password and installs a new one,
// clearing any forced-rotation flag.
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	if len(next) < 8 {
		return fmt.Errorf("%w: password must have at least 8 characters", shared.ErrValidation)
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return shared.ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, userID, string(hash), false); err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  userID,
			Action:   "ALTERAR_SENHA",
			Entity:   "users",
			EntityID: strconv.FormatInt(userID, 10),
		})
	}
	return nil
}

// CreateUser registers a new operator account.
func (s *Service) CreateUser(ctx context.Context, username, name, role, password string) (User, error) {
	switch role {
	case shared.RoleAdmin, shared.RoleAttendant, shared.RoleKitchen:
	default:
		return User{}, fmt.Errorf("%w: unknown role %q", shared.ErrValidation, role)
	}
	if username == "" || len(password) < 8 {
		return User{}, fmt.Errorf("%w: username and a password of at least 8 characters required", shared.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	user := User{
		Username:           username,
		Name:               name,
		Role:               role,
		PasswordHash:       string(hash),
		Active:             true,
		MustChangePassword: true,
	}
	if err := s.repo.Create(ctx, &user); err != nil {
		return User{}, err
	}

	actor, _ := shared.ActorFromContext(ctx)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "CRIAR",
			Entity:   "users",
			EntityID: strconv.FormatInt(user.ID, 10),
			After:    map[string]any{"username": username, "role": role},
		})
	}
	return user, nil
}

// ListUsers returns all accounts.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// SetActive toggles an account on or off.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return err
	}
	actor, _ := shared.ActorFromContext(ctx)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "ATIVAR_DESATIVAR",
			Entity:   "users",
			EntityID: strconv.FormatInt(id, 10),
			After:    map[string]any{"active": active},
		})
	}
	return nil
}

// Bootstrap creates the initial admin account when the user table is empty.
// The generated password is printed to the log exactly once and must be
// rotated on first login.
func (s *Service) Bootstrap(ctx context.Context) error {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	raw := make([]byte, 18)
	if _, err := rand.Read(raw); err != nil {
		return err
	}
	password := base64.RawURLEncoding.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := User{
		Username:           "admin",
		Name:               "Administrador",
		Role:               shared.RoleAdmin,
		PasswordHash:       string(hash),
		Active:             true,
		MustChangePassword: true,
	}
	if err := s.repo.Create(ctx, &admin); err != nil {
		return err
	}
	s.log.WarnContext(ctx, "created initial admin account, rotate this password on first login",
		slog.String("username", admin.Username),
		slog.String("password", password))
	return nil
}
