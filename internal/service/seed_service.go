package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/labstack/gommon/log"
	"gorm.io/gorm"

	"useradmin/internal/auth"
	"useradmin/internal/metrics"
	"useradmin/internal/model"
	"useradmin/internal/repository"
)

// DemoUsersPerRole is how many demo users are seeded for each role.
const DemoUsersPerRole = 10

// SeedResult summarises a seed run.
type SeedResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// SeedService loads demo data.
type SeedService interface {
	SeedDemoUsers(ctx context.Context) (*SeedResult, error)
}

type seedService struct {
	repo   repository.UserRepository
	hasher auth.PasswordHasher
	logger *log.Logger
}

// NewSeedService creates a new seed service.
func NewSeedService(repo repository.UserRepository, hasher auth.PasswordHasher, logger *log.Logger) SeedService {
	return &seedService{repo: repo, hasher: hasher, logger: logger}
}

// DemoUser describes one fixture user. The password equals the username.
type DemoUser struct {
	Username string
	Email    string
	Role     model.Role
}

// DemoUsers returns admin0..admin9, moderator0..moderator9 and user0..user9
// with emails of the form name@name.name.
func DemoUsers() []DemoUser {
	out := make([]DemoUser, 0, len(model.AllRoles)*DemoUsersPerRole)
	for _, role := range model.AllRoles {
		name := strings.ToLower(strings.TrimPrefix(string(role), "ROLE_"))
		for i := 0; i < DemoUsersPerRole; i++ {
			username := fmt.Sprintf("%s%d", name, i)
			out = append(out, DemoUser{
				Username: username,
				Email:    username + "@" + username + "." + username,
				Role:     role,
			})
		}
	}
	return out
}

// SeedDemoUsers inserts the demo users, skipping usernames or emails that
// already exist so the command can be run repeatedly.
func (s *seedService) SeedDemoUsers(ctx context.Context) (*SeedResult, error) {
	result := &SeedResult{}
	for _, demo := range DemoUsers() {
		exists, err := s.exists(ctx, demo)
		if err != nil {
			return result, err
		}
		if exists {
			result.Skipped++
			continue
		}

		user := &model.User{
			Username: demo.Username,
			Email:    demo.Email,
			Roles:    model.Roles{demo.Role},
		}
		hash, err := s.hasher.Hash(user, demo.Username)
		if err != nil {
			return result, fmt.Errorf("hash password for %s: %w", demo.Username, err)
		}
		user.PasswordHash = hash

		if err := s.repo.Create(ctx, user); err != nil {
			return result, fmt.Errorf("create user %s: %w", demo.Username, err)
		}
		result.Created++
		metrics.UserMutations.WithLabelValues("seed").Inc()
	}

	s.logger.Infof("seeded demo users: %d created, %d skipped", result.Created, result.Skipped)
	return result, nil
}

func (s *seedService) exists(ctx context.Context, demo DemoUser) (bool, error) {
	if _, err := s.repo.FindByUsername(ctx, demo.Username); err == nil {
		return true, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("check user %s: %w", demo.Username, err)
	}

	if _, err := s.repo.FindByEmail(ctx, demo.Email); err == nil {
		return true, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("check email %s: %w", demo.Email, err)
	}
	return false, nil
}
