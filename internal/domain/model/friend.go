//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"strings"
)

// FriendStatus describes whether a friend is active in the user's list.
type FriendStatus string

const (
	FriendStatusActive  FriendStatus = "active"
	FriendStatusPending FriendStatus = "pending"
)

// normalizeFriendStatus trims and lowercases the input, defaulting to active when empty.
func normalizeFriendStatus(v FriendStatus) FriendStatus {
	normalized := FriendStatus(strings.ToLower(strings.TrimSpace(string(v))))
	if normalized == "" {
		return FriendStatusActive
	}
	return normalized
}

// Friend is an entry in the user's friends list.
type Friend struct {
	ID       int          `json:"id"`
	Name     string       `json:"name"`
	Username string       `json:"username"`
	Status   FriendStatus `json:"status"`
	Avatar   string       `json:"avatar,omitempty"`
}

// Normalize trims fields, formats the handle and defaults the status.
func (f Friend) Normalize() Friend {
	f.Name = strings.TrimSpace(f.Name)
	f.Username = FormatHandle(f.Username)
	f.Status = normalizeFriendStatus(f.Status)
	return f
}

// FormatHandle trims a username and ensures the leading "@".
func FormatHandle(username string) string {
	u := strings.TrimSpace(username)
	if u == "" || strings.HasPrefix(u, "@") {
		return u
	}
	return "@" + u
}

// SameHandle compares two handles case-insensitively.
func SameHandle(a, b string) bool {
	return strings.EqualFold(FormatHandle(a), FormatHandle(b))
}

// User is a directory entry that can be added as a friend.
type User struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Status   string `json:"status"`
	Avatar   string `json:"avatar,omitempty"`
}

// AsFriend converts a directory user into a friend entry.
func (u User) AsFriend() Friend {
	return Friend{
		ID:       u.ID,
		Name:     u.Name,
		Username: u.Username,
		Status:   FriendStatus(u.Status),
		Avatar:   u.Avatar,
	}.Normalize()
}

// SearchResult is a directory match annotated with friendship.
type SearchResult struct {
	User
	IsFriend bool `json:"is_friend"`
}
