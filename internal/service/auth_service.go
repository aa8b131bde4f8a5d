package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"rentalhub/internal/auth"
	"rentalhub/internal/config"
	"rentalhub/internal/database"
	"rentalhub/internal/domain"
	"rentalhub/internal/events"
	"rentalhub/internal/models"

	"github.com/rs/zerolog"
)

var phonePattern = regexp.MustCompile(`^[\d\s()+-]+$`)

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// UpdateUserInput carries the admin-editable fields; nil means unchanged.
type UpdateUserInput struct {
	Name    *string `json:"name"`
	Role    *string `json:"role"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type AuthService struct {
	users  domain.UserRepository
	tokens *auth.TokenManager
	hasher *auth.Hasher
	limits domain.CacheStore
	cfg    config.APIAuthConfig
	notifier
}

func NewAuthService(
	users domain.UserRepository,
	tokens *auth.TokenManager,
	hasher *auth.Hasher,
	limits domain.CacheStore,
	cfg config.APIAuthConfig,
	eventBus domain.EventPublisher,
	audit domain.AuditSink,
	logger *zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		hasher:   hasher,
		limits:   limits,
		cfg:      cfg,
		notifier: newNotifier(eventBus, audit, logger),
	}
}

// Register creates a user or delivery account. Admin accounts come from CreateAdmin only.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, ip string) (*AuthResult, error) {
	if in.Role == "" {
		in.Role = models.RoleUser
	}
	if in.Role == models.RoleAdmin {
		return nil, forbiddenError("Admin accounts can only be created by an admin")
	}

	user, err := s.createUser(ctx, in)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	actor := models.Actor{UserID: user.ID, Email: user.Email, Role: user.Role, IP: ip}
	s.publish(events.EventUserRegistered, events.UserEventPayload{UserID: user.ID, Email: user.Email, Role: user.Role, ActorID: user.ID})
	s.record(ctx, actor, "user.register", "Registered account %s (%s)", user.Email, user.Role)
	return &AuthResult{Token: token, User: user}, nil
}

func (s *AuthService) createUser(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = models.NormalizeEmail(in.Email)
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return nil, validationError("Name, email, and password are required")
	}
	if !strings.Contains(in.Email, "@") {
		return nil, validationError("Please enter a valid email")
	}
	if len(in.Password) < models.MinPasswordLength {
		return nil, validationError("Password must be at least 6 characters long")
	}
	if !models.IsValidRole(in.Role) {
		return nil, validationError("Invalid role. Must be 'admin', 'user', or 'delivery'")
	}
	if in.Phone != "" && !phonePattern.MatchString(in.Phone) {
		return nil, validationError("Please enter a valid phone number")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, validationError("Password is too long")
	}

	user := &models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		Phone:        strings.TrimSpace(in.Phone),
		Address:      strings.TrimSpace(in.Address),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, storeError(err, "User not found", "create user")
	}
	return user, nil
}

// Login checks credentials. Attempts are throttled per email.
func (s *AuthService) Login(ctx context.Context, in LoginInput, ip string) (*AuthResult, error) {
	email := models.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, validationError("Email and password are required")
	}

	if s.limits != nil && s.cfg.LoginAttempts > 0 {
		allowed, err := s.limits.CheckRateLimit(ctx, "login:"+email, s.cfg.LoginAttempts, s.cfg.LoginWindow)
		if err != nil {
			s.logger.Warn().Err(err).Msg("login rate limit check failed")
		} else if !allowed {
			return nil, newError(KindTooManyRequests, "Too many login attempts, try again later")
		}
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, unauthorizedError("Invalid credentials")
		}
		return nil, storeError(err, "", "get user")
	}
	if !s.hasher.Check(user.PasswordHash, in.Password) {
		return nil, unauthorizedError("Invalid credentials")
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	s.record(ctx, models.Actor{UserID: user.ID, Email: user.Email, Role: user.Role, IP: ip}, "user.login", "Logged in")
	return &AuthResult{Token: token, User: user}, nil
}

// Authenticate validates a bearer token and returns the caller identity.
func (s *AuthService) Authenticate(token string) (models.Actor, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return models.Actor{}, unauthorizedError("Token has expired")
		}
		return models.Actor{}, unauthorizedError("Not authorized, token failed")
	}
	return claims.Actor(), nil
}

func (s *AuthService) Me(ctx context.Context, actor models.Actor) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, actor.UserID)
	if err != nil {
		return nil, storeError(err, "User not found", "get user")
	}
	return user, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, actor models.Actor, in ChangePasswordInput) error {
	if in.CurrentPassword == "" || in.NewPassword == "" {
		return validationError("Current password and new password are required")
	}
	if len(in.NewPassword) < models.MinPasswordLength {
		return validationError("New password must be at least 6 characters long")
	}

	user, err := s.users.GetUserByID(ctx, actor.UserID)
	if err != nil {
		return storeError(err, "User not found", "get user")
	}
	if !s.hasher.Check(user.PasswordHash, in.CurrentPassword) {
		return unauthorizedError("Current password is incorrect")
	}

	if err := s.setPassword(ctx, user.ID, in.NewPassword); err != nil {
		return err
	}
	s.record(ctx, actor, "user.change_password", "Changed password")
	return nil
}

func (s *AuthService) setPassword(ctx context.Context, userID int64, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return validationError("Password is too long")
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return storeError(err, "User not found", "update password")
	}
	return nil
}

func (s *AuthService) ListUsers(ctx context.Context, actor models.Actor) ([]*models.User, error) {
	if !actor.IsAdmin() {
		return nil, forbiddenError("Admin access required")
	}
	users, err := s.users.ListUsers(ctx)
	return users, storeError(err, "", "list users")
}

func (s *AuthService) GetUser(ctx context.Context, actor models.Actor, id int64) (*models.User, error) {
	if !actor.Owns(id) {
		return nil, forbiddenError("Not authorized to view this user")
	}
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "User not found", "get user")
	}
	return user, nil
}

// UpdateUser applies admin edits. An admin cannot change their own role.
func (s *AuthService) UpdateUser(ctx context.Context, actor models.Actor, id int64, in UpdateUserInput) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, forbiddenError("Admin access required")
	}
	if in.Role != nil {
		if id == actor.UserID {
			return nil, validationError("Admins cannot change their own role")
		}
		if !models.IsValidRole(*in.Role) {
			return nil, validationError("Invalid role. Must be 'admin', 'user', or 'delivery'")
		}
	}
	if in.Phone != nil && *in.Phone != "" && !phonePattern.MatchString(*in.Phone) {
		return nil, validationError("Please enter a valid phone number")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "User not found", "get user")
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) != "" {
		user.Name = strings.TrimSpace(*in.Name)
	}
	if in.Role != nil {
		user.Role = *in.Role
	}
	if in.Phone != nil {
		user.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Address != nil {
		user.Address = strings.TrimSpace(*in.Address)
	}

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, storeError(err, "User not found", "update user")
	}

	s.publish(events.EventUserUpdated, events.UserEventPayload{UserID: user.ID, Email: user.Email, Role: user.Role, ActorID: actor.UserID})
	s.record(ctx, actor, "user.update", "Updated user %s (ID: %d)", user.Email, user.ID)
	return user, nil
}

func (s *AuthService) DeleteUser(ctx context.Context, actor models.Actor, id int64) error {
	if !actor.IsAdmin() {
		return forbiddenError("Admin access required")
	}
	if id == actor.UserID {
		return validationError("Admins cannot delete their own account")
	}
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return storeError(err, "User not found", "get user")
	}
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return storeError(err, "User not found", "delete user")
	}

	s.publish(events.EventUserDeleted, events.UserEventPayload{UserID: id, Email: user.Email, Role: user.Role, ActorID: actor.UserID})
	s.record(ctx, actor, "user.delete", "Deleted user %s (ID: %d)", user.Email, id)
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, actor models.Actor, id int64, newPassword string) error {
	if !actor.IsAdmin() {
		return forbiddenError("Admin access required")
	}
	if len(newPassword) < models.MinPasswordLength {
		return validationError("New password must be at least 6 characters long")
	}
	if err := s.setPassword(ctx, id, newPassword); err != nil {
		return err
	}
	s.record(ctx, actor, "user.reset_password", "Reset password for user ID: %d", id)
	return nil
}

func (s *AuthService) CreateAdmin(ctx context.Context, actor models.Actor, in RegisterInput) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, forbiddenError("Admin access required")
	}
	in.Role = models.RoleAdmin
	user, err := s.createUser(ctx, in)
	if err != nil {
		return nil, err
	}

	s.publish(events.EventUserRegistered, events.UserEventPayload{UserID: user.ID, Email: user.Email, Role: user.Role, ActorID: actor.UserID})
	s.record(ctx, actor, "user.create_admin", "Created admin %s", user.Email)
	return user, nil
}

func (s *AuthService) ListAdmins(ctx context.Context, actor models.Actor) ([]*models.User, error) {
	if !actor.IsAdmin() {
		return nil, forbiddenError("Admin access required")
	}
	admins, err := s.users.ListUsersByRole(ctx, models.RoleAdmin)
	return admins, storeError(err, "", "list admins")
}

// EnsureAdmin provisions the first admin account when none exists.
func (s *AuthService) EnsureAdmin(ctx context.Context, in RegisterInput) (bool, error) {
	if _, err := s.users.FirstUserByRole(ctx, models.RoleAdmin); err == nil {
		return false, nil
	} else if !errors.Is(err, database.ErrNotFound) {
		return false, storeError(err, "", "find admin")
	}

	in.Role = models.RoleAdmin
	user, err := s.createUser(ctx, in)
	if err != nil {
		return false, err
	}
	s.logger.Info().Str("email", user.Email).Int64("user_id", user.ID).Msg("Bootstrap admin created")
	return true, nil
}
