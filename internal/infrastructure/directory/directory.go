package directory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"dealerhub/internal/core/domain"
	"dealerhub/internal/core/ports"
	"dealerhub/pkg/utils"
	"dealerhub/pkg/validation"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v2"
)

// User is one entry of the users file.
type User struct {
	ID           string      `yaml:"id"`
	Username     string      `yaml:"username"`
	PasswordHash string      `yaml:"password_hash"`
	Role         domain.Role `yaml:"role"`
	DealerID     string      `yaml:"dealer_id,omitempty"`
	Disabled     bool        `yaml:"disabled,omitempty"`
}

type usersFile struct {
	Users []User `yaml:"users"`
}

// dummyHash is compared against when the username is unknown so both
// paths cost one bcrypt comparison.
var dummyHash = []byte("$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z2EbJ9kKjF1lSz8M1hV/9Fi.")

// ParseUsers decodes and checks a users file. Every problem found is
// reported, not just the first.
func ParseUsers(data []byte) ([]User, error) {
	var uf usersFile
	if err := yaml.UnmarshalStrict(data, &uf); err != nil {
		return nil, fmt.Errorf("failed to parse users file: %w", err)
	}

	var errs []error
	seenIDs := make(map[string]bool)
	seenNames := make(map[string]bool)
	for i, u := range uf.Users {
		where := fmt.Sprintf("users[%d]", i)
		if u.ID == "" {
			errs = append(errs, fmt.Errorf("%s: id is required", where))
		} else if seenIDs[u.ID] {
			errs = append(errs, fmt.Errorf("%s: duplicate id %q", where, u.ID))
		} else if err := validation.ValidateStringLength(u.ID, 1, 64, "id"); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
		seenIDs[u.ID] = true

		name := utils.NormalizeUsername(u.Username)
		if name == "" {
			errs = append(errs, fmt.Errorf("%s: username is required", where))
		} else if seenNames[name] {
			errs = append(errs, fmt.Errorf("%s: duplicate username %q", where, u.Username))
		} else if err := validation.ValidateUsername(u.Username); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
		seenNames[name] = true

		if !u.Role.Valid() {
			errs = append(errs, fmt.Errorf("%s: role is required", where))
		}
		if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err != nil {
			errs = append(errs, fmt.Errorf("%s: password_hash is not a bcrypt hash", where))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return uf.Users, nil
}

// Provider authenticates against a users file. It serves deployments
// without a backend auth service.
type Provider struct {
	path   string
	logger *zap.SugaredLogger

	mu    sync.RWMutex
	users map[string]User
}

var _ ports.IdentityProvider = (*Provider)(nil)

func NewProvider(path string, logger *zap.SugaredLogger) (*Provider, error) {
	p := &Provider{path: path, logger: logger}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload re-reads the users file. On error the previous users stay.
func (p *Provider) Reload() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("failed to read users file %s: %w", p.path, err)
	}
	users, err := ParseUsers(data)
	if err != nil {
		return err
	}

	byName := make(map[string]User, len(users))
	for _, u := range users {
		byName[utils.NormalizeUsername(u.Username)] = u
	}

	p.mu.Lock()
	p.users = byName
	p.mu.Unlock()

	p.logger.Infow("user directory loaded", "path", p.path, "users", len(byName))
	return nil
}

func (p *Provider) lookup(username string) (User, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	u, ok := p.users[utils.NormalizeUsername(username)]
	return u, ok
}

func (p *Provider) Authenticate(ctx context.Context, creds domain.Credentials) (*domain.Identity, error) {
	user, ok := p.lookup(creds.Username)
	if !ok {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(creds.Password))
		return nil, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if user.Disabled {
		return nil, domain.ErrInvalidCredentials
	}

	return &domain.Identity{
		UserID:   domain.UserID(user.ID),
		Username: user.Username,
		Role:     user.Role,
		DealerID: user.DealerID,
	}, nil
}

// Validate disowns sessions whose user was removed, disabled or given a
// different role since login.
func (p *Provider) Validate(ctx context.Context, session *domain.Session) error {
	user, ok := p.lookup(session.Username)
	switch {
	case !ok, user.ID != string(session.UserID):
		return fmt.Errorf("%w: %w", domain.ErrSessionInvalid, domain.ErrUserNotFound)
	case user.Disabled:
		return fmt.Errorf("%w: user disabled", domain.ErrSessionInvalid)
	case user.Role != session.Role:
		return fmt.Errorf("%w: role changed", domain.ErrSessionInvalid)
	}
	return nil
}

func (p *Provider) Logout(ctx context.Context, session *domain.Session) error {
	return nil
}

