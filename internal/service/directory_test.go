package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/ledgerly/internal/devseed"
	"github.com/target/ledgerly/internal/domain/model"
)

type stubDirectory struct {
	users []model.User
	err   error
	calls int
}

func (d *stubDirectory) Search(_ context.Context, _ string) ([]model.User, error) {
	d.calls++
	return d.users, d.err
}

func TestDirectoryService_EmptyQuery(t *testing.T) {
	dir := &stubDirectory{}
	s := NewDirectoryService(DirectoryServiceOptions{Directory: dir})

	got, err := s.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, 0, dir.calls)
}

func TestDirectoryService_AnnotatesFriends(t *testing.T) {
	friends := NewFriendsService(FriendsServiceOptions{Initial: []model.Friend{
		{ID: 1, Name: "Sarah Miller", Username: "@sarahm"},
	}})
	s := NewDirectoryService(DirectoryServiceOptions{Directory: devseed.NewDirectory(), Friends: friends})

	got, err := s.Search(context.Background(), "sar")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Sarah Miller", got[0].Name)
	assert.True(t, got[0].IsFriend)
	assert.Equal(t, "Sara Jones", got[1].Name)
	assert.False(t, got[1].IsFriend)
}

func TestDirectoryService_FiltersNonMatches(t *testing.T) {
	dir := &stubDirectory{users: []model.User{
		{ID: 1, Name: "Pat Doe", Username: "@pat"},
		{ID: 2, Name: "Unrelated", Username: "@other"},
	}}
	s := NewDirectoryService(DirectoryServiceOptions{Directory: dir})

	got, err := s.Search(context.Background(), "PAT")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].ID)
}

func TestDirectoryService_PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	s := NewDirectoryService(DirectoryServiceOptions{Directory: &stubDirectory{err: boom}})

	_, err := s.Search(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
}

func TestDirectoryService_AddFriend(t *testing.T) {
	friends := NewFriendsService(FriendsServiceOptions{})
	s := NewDirectoryService(DirectoryServiceOptions{Directory: devseed.NewDirectory(), Friends: friends})

	results, err := s.Search(context.Background(), "emma")
	require.NoError(t, err)
	require.Len(t, results, 1)

	f, err := s.AddFriend(results[0].User)
	require.NoError(t, err)
	assert.Equal(t, results[0].ID, f.ID)

	results, err = s.Search(context.Background(), "emma")
	require.NoError(t, err)
	assert.True(t, results[0].IsFriend)

	_, err = NewDirectoryService(DirectoryServiceOptions{}).AddFriend(model.User{Username: "x"})
	assert.Error(t, err)
}
