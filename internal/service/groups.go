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

// GroupsServiceOptions groups dependencies for GroupsService.
type GroupsServiceOptions struct {
	Initial []model.Group
	Clock   ports.Clock
	// Store keeps the groups between runs under ports.PrefGroups. Optional.
	Store ports.PreferenceStore
}

// CreateGroupInput carries the fields for a new group.
type CreateGroupInput struct {
	Name    string
	Members []model.Friend
	Image   string
}

// GroupsService manages the user's expense groups, ordered by name.
type GroupsService struct {
	clock ports.Clock
	store ports.PreferenceStore

	mu     sync.RWMutex
	groups []model.Group
}

// NewGroupsService constructs a GroupsService seeded with opts.Initial.
func NewGroupsService(opts GroupsServiceOptions) *GroupsService {
	clock := opts.Clock
	if clock == nil {
		clock = RealClock{}
	}
	groups := slices.Clone(opts.Initial)
	sortGroups(groups)
	return &GroupsService{clock: clock, store: opts.Store, groups: groups}
}

// Load replaces the groups with the stored ones. A missing entry keeps the current groups.
func (s *GroupsService) Load(ctx context.Context) error {
	var groups []model.Group
	found, err := loadJSON(ctx, s.store, ports.PrefGroups, &groups)
	if err != nil || !found {
		return err
	}
	sortGroups(groups)

	s.mu.Lock()
	s.groups = groups
	s.mu.Unlock()
	return nil
}

// Save writes the groups to the store.
func (s *GroupsService) Save(ctx context.Context) error {
	return saveJSON(ctx, s.store, ports.PrefGroups, s.List())
}

func sortGroups(groups []model.Group) {
	slices.SortStableFunc(groups, func(a, b model.Group) int {
		if c := cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// List returns a copy of all groups sorted by name.
func (s *GroupsService) List() []model.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.groups)
}

// Get returns the group with id.
func (s *GroupsService) Get(id int) (model.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexLocked(id)
	if i < 0 {
		return model.Group{}, apperrors.NotFound("group not found")
	}
	return s.groups[i], nil
}

// Create adds a group. The name must be unique ignoring case and at least one member is required.
func (s *GroupsService) Create(in CreateGroupInput) (model.Group, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Group{}, apperrors.ValidationField("name", "please enter a group name")
	}
	if len(in.Members) == 0 {
		return model.Group{}, apperrors.ValidationField("members", "please select at least one friend")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkNameLocked(0, name); err != nil {
		return model.Group{}, err
	}

	maxID := 0
	for _, g := range s.groups {
		maxID = max(maxID, g.ID)
	}
	g := model.Group{
		ID:         maxID + 1,
		Name:       name,
		Members:    model.MemberCount(in.Members),
		LastActive: s.clock.Now(),
		MemberList: slices.Clone(in.Members),
		Image:      strings.TrimSpace(in.Image),
	}
	s.groups = append(s.groups, g)
	sortGroups(s.groups)
	return g, nil
}

// Rename changes a group's name with the same rules as Create.
func (s *GroupsService) Rename(id int, name string) (model.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Group{}, apperrors.ValidationField("name", "group name cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkNameLocked(id, name); err != nil {
		return model.Group{}, err
	}
	g, err := s.updateLocked(id, func(g *model.Group) { g.Name = name })
	if err != nil {
		return model.Group{}, err
	}
	sortGroups(s.groups)
	return g, nil
}

// SetImage sets the group image URI.
func (s *GroupsService) SetImage(id int, uri string) (model.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(id, func(g *model.Group) { g.Image = strings.TrimSpace(uri) })
}

// RemoveImage clears the group image.
func (s *GroupsService) RemoveImage(id int) (model.Group, error) {
	return s.SetImage(id, "")
}

// UpdateMembers replaces the member list, recounts members and marks the group active.
func (s *GroupsService) UpdateMembers(id int, members []model.Friend) (model.Group, error) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(id, func(g *model.Group) {
		g.MemberList = slices.Clone(members)
		g.Members = model.MemberCount(members)
		g.LastActive = now
	})
}

// Touch marks the group active now.
func (s *GroupsService) Touch(id int) (model.Group, error) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(id, func(g *model.Group) { g.LastActive = now })
}

// Delete removes the group with id.
func (s *GroupsService) Delete(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return apperrors.NotFound("group not found")
	}
	s.groups = slices.Delete(s.groups, i, i+1)
	return nil
}

func (s *GroupsService) indexLocked(id int) int {
	return slices.IndexFunc(s.groups, func(g model.Group) bool { return g.ID == id })
}

// checkNameLocked rejects name if another group (other than self) already uses it.
func (s *GroupsService) checkNameLocked(self int, name string) error {
	for _, g := range s.groups {
		if g.ID != self && model.SameName(g.Name, name) {
			return apperrors.Conflictf("a group named %q already exists", name)
		}
	}
	return nil
}

func (s *GroupsService) updateLocked(id int, fn func(*model.Group)) (model.Group, error) {
	i := s.indexLocked(id)
	if i < 0 {
		return model.Group{}, apperrors.NotFound("group not found")
	}
	fn(&s.groups[i])
	return s.groups[i], nil
}
