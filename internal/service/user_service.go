package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the cost factor for bcrypt hashing
const BcryptCost = 10

var (
	ErrInvalidCredentials = domain.Unauthorized("invalid username or password")
	ErrUsernameTaken      = domain.Conflict("user with this username already exists")
)

// RegisterInput carries the fields needed to open an account
type RegisterInput struct {
	FirstName string
	LastName  string
	Username  string
	Password  string
}

// UserService defines the interface for user business logic
type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	CreateStaff(ctx context.Context, in RegisterInput, role domain.Role) (*domain.User, error)
	Login(ctx context.Context, username, password string) (token string, user *domain.User, err error)
	GetUserByID(ctx context.Context, userID int64) (*domain.User, error)
	// EnsureAdmin creates the given admin account when no admin exists yet.
	// It reports whether an account was created.
	EnsureAdmin(ctx context.Context, username, password string) (bool, error)
}

type userService struct {
	userRepo repository.UserRepository
	tokens   *TokenIssuer
	logger   *zap.Logger
	cost     int
}

// NewUserService creates a new instance of UserService
func NewUserService(userRepo repository.UserRepository, tokens *TokenIssuer, logger *zap.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		tokens:   tokens,
		logger:   logger,
		cost:     BcryptCost,
	}
}

// Register creates an active customer account
func (s *userService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	return s.create(ctx, in, domain.RoleCustomer)
}

// CreateStaff creates an admin or delivery account
func (s *userService) CreateStaff(ctx context.Context, in RegisterInput, role domain.Role) (*domain.User, error) {
	if role != domain.RoleAdmin && role != domain.RoleDelivery {
		return nil, domain.BadRequest("staff role must be admin or delivery")
	}
	return s.create(ctx, in, role)
}

func (s *userService) create(ctx context.Context, in RegisterInput, role domain.Role) (*domain.User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Username = strings.TrimSpace(in.Username)

	if in.FirstName == "" || in.LastName == "" || in.Username == "" || in.Password == "" {
		return nil, domain.BadRequest("All fields are required")
	}
	if len(in.Password) < 8 {
		return nil, domain.BadRequest("password must be at least 8 characters")
	}

	hashedPassword, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, domain.Internal("failed to hash password", err)
	}

	user := &domain.User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Username:     in.Username,
		PasswordHash: hashedPassword,
		Role:         role,
		Active:       true,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserAlreadyExists) {
			return nil, ErrUsernameTaken
		}
		return nil, domain.Internal("failed to create user", err)
	}

	s.logger.Info("User created",
		zap.Int64("user_id", user.ID),
		zap.String("role", string(user.Role)),
	)

	return user, nil
}

// Login authenticates a user and returns an access token
func (s *userService) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	user, err := s.userRepo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, domain.Internal("failed to find user", err)
	}

	if err := s.verifyPassword(user.PasswordHash, password); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	if !user.Active {
		return "", nil, domain.Unauthorized("account is inactive")
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return "", nil, domain.Internal("failed to generate access token", err)
	}

	return token, user, nil
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domain.NotFound("user not found")
		}
		return nil, domain.Internal("failed to get user", err)
	}
	return user, nil
}

func (s *userService) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	count, err := s.userRepo.CountByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return false, fmt.Errorf("failed to count admins: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	_, err = s.create(ctx, RegisterInput{
		FirstName: "Store",
		LastName:  "Admin",
		Username:  username,
		Password:  password,
	}, domain.RoleAdmin)
	if err != nil {
		return false, err
	}

	return true, nil
}

func (s *userService) hashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func (s *userService) verifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}
