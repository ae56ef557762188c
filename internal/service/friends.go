package service

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/target/ledgerly/internal/domain/model"
	apperrors "github.com/target/ledgerly/internal/errors"
	"github.com/target/ledgerly/internal/ports"
)

// FriendsServiceOptions groups dependencies for FriendsService.
type FriendsServiceOptions struct {
	Initial []model.Friend
	// Store keeps the list between runs under ports.PrefFriends. Optional.
	Store ports.PreferenceStore
}

// FriendsService keeps the user's friends list ordered by name.
type FriendsService struct {
	store ports.PreferenceStore

	mu      sync.RWMutex
	friends []model.Friend
}

// NewFriendsService constructs a FriendsService seeded with opts.Initial.
func NewFriendsService(opts FriendsServiceOptions) *FriendsService {
	friends := make([]model.Friend, 0, len(opts.Initial))
	for _, f := range opts.Initial {
		friends = append(friends, f.Normalize())
	}
	sortFriends(friends)
	return &FriendsService{store: opts.Store, friends: friends}
}

// Load replaces the list with the stored one. A missing entry keeps the current list.
func (s *FriendsService) Load(ctx context.Context) error {
	var stored []model.Friend
	found, err := loadJSON(ctx, s.store, ports.PrefFriends, &stored)
	if err != nil || !found {
		return err
	}
	friends := make([]model.Friend, 0, len(stored))
	for _, f := range stored {
		friends = append(friends, f.Normalize())
	}
	sortFriends(friends)

	s.mu.Lock()
	s.friends = friends
	s.mu.Unlock()
	return nil
}

// Save writes the list to the store.
func (s *FriendsService) Save(ctx context.Context) error {
	return saveJSON(ctx, s.store, ports.PrefFriends, s.List())
}

func sortFriends(friends []model.Friend) {
	slices.SortStableFunc(friends, func(a, b model.Friend) int {
		if c := cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// List returns a copy of the friends list sorted by name.
func (s *FriendsService) List() []model.Friend {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.friends)
}

// Get returns the friend with id.
func (s *FriendsService) Get(id int) (model.Friend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.friends {
		if f.ID == id {
			return f, nil
		}
	}
	return model.Friend{}, apperrors.NotFound("friend not found")
}

// Add inserts a friend, keeping the supplied fields. A zero ID is replaced with the next free ID.
func (s *FriendsService) Add(friend model.Friend) (model.Friend, error) {
	friend = friend.Normalize()
	if friend.Username == "" {
		return model.Friend{}, apperrors.ValidationField("username", "username is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(friend)
}

// AddByName creates a friend from a display name and username.
func (s *FriendsService) AddByName(name, username string) (model.Friend, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(username) == "" {
		return model.Friend{}, apperrors.Validation("please fill in both name and username")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(model.Friend{
		Name:     name,
		Username: username,
		Status:   model.FriendStatusActive,
	}.Normalize())
}

func (s *FriendsService) addLocked(friend model.Friend) (model.Friend, error) {
	maxID := 0
	for _, f := range s.friends {
		if model.SameHandle(f.Username, friend.Username) {
			return model.Friend{}, apperrors.Conflictf("username %s already exists", friend.Username)
		}
		maxID = max(maxID, f.ID)
	}
	if friend.ID == 0 {
		friend.ID = maxID + 1
	}
	s.friends = append(s.friends, friend)
	sortFriends(s.friends)
	return friend, nil
}

// Delete removes the friend with id.
func (s *FriendsService) Delete(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.friends, func(f model.Friend) bool { return f.ID == id })
	if i < 0 {
		return apperrors.NotFound("friend not found")
	}
	s.friends = slices.Delete(s.friends, i, i+1)
	return nil
}

// IsFriend reports whether u is already in the list, by ID or handle.
func (s *FriendsService) IsFriend(u model.User) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.ContainsFunc(s.friends, func(f model.Friend) bool {
		return (u.ID != 0 && f.ID == u.ID) || model.SameHandle(f.Username, u.Username)
	})
}
