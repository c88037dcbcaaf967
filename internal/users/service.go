package users

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/socialhub/socialhub/backend/go-services/internal/models"
)

var ErrInvalidCredentials = errors.New("Invalid credentials")

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernamePattern = regexp.MustCompile(`^[a-z0-9._]+$`)
)

// ValidationError carries a message safe to show to the client.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(msg string) error { return &ValidationError{Msg: msg} }

// RegisterInput is the raw registration payload.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// Service encapsulates user-related business logic
type Service struct {
	repo UserRepository
	cost int
}

func NewService(r UserRepository) *Service {
	return &Service{repo: r, cost: bcryptCost}
}

func normalize(in RegisterInput) RegisterInput {
	return RegisterInput{
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
		Password: in.Password,
		Username: strings.ToLower(strings.TrimSpace(in.Username)),
		Name:     strings.TrimSpace(in.Name),
	}
}

func validate(in RegisterInput) error {
	if in.Email == "" || in.Password == "" || in.Username == "" || in.Name == "" {
		return invalid("email, password, username, name are required")
	}
	if !emailPattern.MatchString(in.Email) {
		return invalid("Invalid email format")
	}
	if len(in.Username) < 3 || len(in.Username) > 30 || !usernamePattern.MatchString(in.Username) {
		return invalid("Username must be 3-30 characters and contain only letters, numbers, dot or underscore")
	}
	if len([]rune(in.Name)) > 80 {
		return invalid("Name must be at most 80 characters")
	}
	if len(in.Password) < 8 {
		return invalid("Password must be at least 8 characters")
	}
	if len(in.Password) > 128 {
		return invalid("Password is too long")
	}
	return nil
}

// Register validates the payload and creates the account. Returns a
// *ValidationError for bad input and ErrExists for duplicates.
func (s *Service) Register(ctx context.Context, raw RegisterInput) (*models.User, error) {
	in := normalize(raw)
	if err := validate(in); err != nil {
		return nil, err
	}
	hash, err := HashPassword(in.Password, s.cost)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		Email:        in.Email,
		Username:     in.Username,
		Name:         in.Name,
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate resolves identifier (email or username) and checks the
// password. Unknown users and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, identifier, password string) (*models.User, error) {
	ident := strings.ToLower(strings.TrimSpace(identifier))
	if ident == "" || password == "" {
		return nil, invalid("identifier and password are required")
	}
	u, err := s.repo.FindByIdentifier(ctx, ident)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !VerifyPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}
