package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/github-scraper/internal/apperror"
	"github.com/sakif/github-scraper/internal/model"
	"github.com/sakif/github-scraper/internal/repository"
)

// Bounds for the "top n" endpoints. Anything outside is a validation error,
// never a silent clamp.
const (
	MinRankingLimit = 1
	MaxRankingLimit = 100
)

// RankingService answers the two read-only ranking questions over the cache.
// It only ever reads the local store.
type RankingService struct {
	store  repository.Store
	logger *slog.Logger
}

func NewRankingService(store repository.Store, logger *slog.Logger) *RankingService {
	return &RankingService{
		store:  store,
		logger: logger,
	}
}

// ListRecentUsers returns up to n cached users, most recently added first.
// Fewer than n users is not an error.
func (s *RankingService) ListRecentUsers(ctx context.Context, n int) ([]model.UserView, error) {
	if err := validateLimit(n); err != nil {
		return nil, err
	}

	users, err := s.store.MostRecentUsers(ctx, n)
	if err != nil {
		s.logger.Error("failed to list recent users",
			slog.Int("n", n),
			slog.String("error", err.Error()),
		)
		return nil, asStorage("listing most recent users", err)
	}
	return model.UserViews(users), nil
}

// ListTopProjects returns up to n cached projects across all users, most
// stars first, ties broken by id ascending.
func (s *RankingService) ListTopProjects(ctx context.Context, n int) ([]model.ProjectView, error) {
	if err := validateLimit(n); err != nil {
		return nil, err
	}

	projects, err := s.store.MostStarredProjects(ctx, n)
	if err != nil {
		s.logger.Error("failed to list most starred projects",
			slog.Int("n", n),
			slog.String("error", err.Error()),
		)
		return nil, asStorage("listing most starred projects", err)
	}
	return model.ProjectViews(projects), nil
}

func validateLimit(n int) error {
	if n < MinRankingLimit || n > MaxRankingLimit {
		return apperror.ValidationFailed("n",
			fmt.Sprintf("n must be between %d and %d", MinRankingLimit, MaxRankingLimit))
	}
	return nil
}
