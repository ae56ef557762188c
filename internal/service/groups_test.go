package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/ledgerly/internal/domain/model"
	apperrors "github.com/target/ledgerly/internal/errors"
)

var groupEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newGroupsFixture(t *testing.T) (*GroupsService, *FixedClock) {
	t.Helper()
	clock := NewFixedClock(groupEpoch)
	s := NewGroupsService(GroupsServiceOptions{
		Clock: clock,
		Initial: []model.Group{
			{ID: 1, Name: "Weekend Trip", Members: 2, MemberList: []model.Friend{{ID: 1, Name: "Sarah"}}},
			{ID: 4, Name: "Apartment", Members: 1},
		},
	})
	return s, clock
}

func groupNames(groups []model.Group) []string {
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.Name)
	}
	return out
}

func TestGroupsService_Create(t *testing.T) {
	s, _ := newGroupsFixture(t)
	members := []model.Friend{{ID: 1, Name: "Sarah"}, {ID: 2, Name: "Mike"}}

	g, err := s.Create(CreateGroupInput{Name: "  Dinner Club ", Members: members, Image: "img.png"})
	require.NoError(t, err)
	assert.Equal(t, 5, g.ID)
	assert.Equal(t, "Dinner Club", g.Name)
	assert.Equal(t, 3, g.Members)
	assert.Equal(t, groupEpoch, g.LastActive)
	assert.Equal(t, "img.png", g.Image)
	assert.Len(t, g.MemberList, 2)
	assert.Equal(t, []string{"Apartment", "Dinner Club", "Weekend Trip"}, groupNames(s.List()))
}

func TestGroupsService_CreateValidation(t *testing.T) {
	s, _ := newGroupsFixture(t)
	members := []model.Friend{{ID: 1}}

	_, err := s.Create(CreateGroupInput{Name: "  ", Members: members})
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "name", apperrors.GetField(err))

	_, err = s.Create(CreateGroupInput{Name: "New"})
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "members", apperrors.GetField(err))

	_, err = s.Create(CreateGroupInput{Name: "weekend trip ", Members: members})
	assert.True(t, apperrors.IsConflict(err))

	assert.Len(t, s.List(), 2)
}

func TestGroupsService_Rename(t *testing.T) {
	s, _ := newGroupsFixture(t)

	g, err := s.Rename(1, "WEEKEND TRIP")
	require.NoError(t, err, "renaming to own name with different case is allowed")
	assert.Equal(t, "WEEKEND TRIP", g.Name)

	_, err = s.Rename(1, "apartment")
	assert.True(t, apperrors.IsConflict(err))

	_, err = s.Rename(1, "")
	assert.True(t, apperrors.IsValidation(err))

	_, err = s.Rename(99, "Other")
	assert.True(t, apperrors.IsNotFound(err))

	g, err = s.Rename(4, "Zoo")
	require.NoError(t, err)
	assert.Equal(t, "Zoo", g.Name)
	assert.Equal(t, []string{"WEEKEND TRIP", "Zoo"}, groupNames(s.List()))
}

func TestGroupsService_Images(t *testing.T) {
	s, _ := newGroupsFixture(t)

	g, err := s.SetImage(4, " file:///pic.jpg ")
	require.NoError(t, err)
	assert.Equal(t, "file:///pic.jpg", g.Image)

	g, err = s.RemoveImage(4)
	require.NoError(t, err)
	assert.Empty(t, g.Image)

	_, err = s.SetImage(99, "x")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestGroupsService_UpdateMembersAndTouch(t *testing.T) {
	s, clock := newGroupsFixture(t)

	clock.Add(time.Hour)
	g, err := s.UpdateMembers(4, []model.Friend{{ID: 1}, {ID: 2}, {ID: 3}})
	require.NoError(t, err)
	assert.Equal(t, 4, g.Members)
	assert.Equal(t, groupEpoch.Add(time.Hour), g.LastActive)

	clock.Add(time.Hour)
	g, err = s.Touch(4)
	require.NoError(t, err)
	assert.Equal(t, groupEpoch.Add(2*time.Hour), g.LastActive)
	assert.Equal(t, 4, g.Members)

	_, err = s.Touch(99)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestGroupsService_Delete(t *testing.T) {
	s, _ := newGroupsFixture(t)

	require.NoError(t, s.Delete(1))
	_, err := s.Get(1)
	assert.True(t, apperrors.IsNotFound(err))
	assert.True(t, apperrors.IsNotFound(s.Delete(1)))
	assert.Equal(t, []string{"Apartment"}, groupNames(s.List()))
}

func TestGroupsService_DefaultsToRealClock(t *testing.T) {
	s := NewGroupsService(GroupsServiceOptions{})
	before := time.Now()
	g, err := s.Create(CreateGroupInput{Name: "Now", Members: []model.Friend{{ID: 1}}})
	require.NoError(t, err)
	assert.False(t, g.LastActive.Before(before))
	assert.Equal(t, 1, g.ID)
}
