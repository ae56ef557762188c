// Package devseed provides the sample user directory used in development and mock auth mode.
package devseed

import (
	"context"
	"slices"
	"strings"

	"github.com/target/ledgerly/internal/domain/model"
	"github.com/target/ledgerly/internal/ports"
)

const avatarBase = "https://i.pravatar.cc/150?u="

// Users returns a fresh copy of the sample directory.
func Users() []model.User {
	return []model.User{
		{ID: 1, Name: "Sarah Miller", Username: "@sarahm", Status: "active", Avatar: avatarBase + "sarah"},
		{ID: 2, Name: "Mike Chen", Username: "@mikechen", Status: "active", Avatar: avatarBase + "mike"},
		{ID: 3, Name: "Jordan Lee", Username: "@jlee", Status: "active", Avatar: avatarBase + "jordan"},
		{ID: 4, Name: "Emma Watson", Username: "@emmaw", Status: "active", Avatar: avatarBase + "emma"},
		{ID: 5, Name: "John Smith", Username: "@johnsmith", Status: "active", Avatar: avatarBase + "john"},
		{ID: 6, Name: "Sara Jones", Username: "@saraj", Status: "active", Avatar: avatarBase + "sara"},
		{ID: 7, Name: "Addison Clark", Username: "@addisonc", Status: "active", Avatar: avatarBase + "addisonc"},
		{ID: 8, Name: "Oliver Johnson", Username: "@oliverj", Status: "active", Avatar: avatarBase + "oliverj"},
		{ID: 9, Name: "Isabella Garcia", Username: "@isabellag", Status: "active", Avatar: avatarBase + "isabellag"},
		{ID: 10, Name: "James Wilson", Username: "@jamesw", Status: "active", Avatar: avatarBase + "jamesw"},
	}
}

// Directory is a read-only in-memory ports.UserDirectory.
type Directory struct {
	users []model.User
}

var _ ports.UserDirectory = (*Directory)(nil)

// NewDirectory returns a directory over users, or the sample users when none are given.
func NewDirectory(users ...model.User) *Directory {
	if len(users) == 0 {
		users = Users()
	}
	return &Directory{users: slices.Clone(users)}
}

// Search matches query as a case-insensitive substring of name or username.
func (d *Directory) Search(ctx context.Context, query string) ([]model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}

	var out []model.User
	for _, u := range d.users {
		if strings.Contains(strings.ToLower(u.Name), q) || strings.Contains(strings.ToLower(u.Username), q) {
			out = append(out, u)
		}
	}
	return out, nil
}
