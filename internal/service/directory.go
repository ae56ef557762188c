package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/target/ledgerly/internal/domain/model"
	"github.com/target/ledgerly/internal/ports"
)

// DirectoryServiceOptions groups dependencies for DirectoryService.
type DirectoryServiceOptions struct {
	Directory ports.UserDirectory
	Friends   *FriendsService
	Logger    *slog.Logger
}

// DirectoryService searches for users to add as friends.
type DirectoryService struct {
	directory ports.UserDirectory
	friends   *FriendsService
	logger    *slog.Logger
}

// NewDirectoryService constructs a DirectoryService.
func NewDirectoryService(opts DirectoryServiceOptions) *DirectoryService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectoryService{
		directory: opts.Directory,
		friends:   opts.Friends,
		logger:    logger.With("component", "directory"),
	}
}

// Search returns users whose name or username contains query, ignoring case,
// marked with whether they are already friends. An empty query returns nothing.
func (s *DirectoryService) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	q := strings.TrimSpace(query)
	if q == "" || s.directory == nil {
		return []model.SearchResult{}, nil
	}

	users, err := s.directory.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}

	lower := strings.ToLower(q)
	out := make([]model.SearchResult, 0, len(users))
	for _, u := range users {
		if !strings.Contains(strings.ToLower(u.Name), lower) && !strings.Contains(strings.ToLower(u.Username), lower) {
			continue
		}
		out = append(out, model.SearchResult{
			User:     u,
			IsFriend: s.friends != nil && s.friends.IsFriend(u),
		})
	}
	s.logger.DebugContext(ctx, "user search", "query", q, "results", len(out))
	return out, nil
}

// AddFriend adds a search result to the friends list.
func (s *DirectoryService) AddFriend(u model.User) (model.Friend, error) {
	if s.friends == nil {
		return model.Friend{}, fmt.Errorf("friends list is not configured")
	}
	return s.friends.Add(u.AsFriend())
}
