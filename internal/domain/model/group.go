//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"strings"
	"time"
)

// Group is an expense-sharing group owned by the current user.
type Group struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	Members    int       `json:"members"` // includes the current user
	LastActive time.Time `json:"last_active"`
	MemberList []Friend  `json:"members_list"`
	Image      string    `json:"group_image,omitempty"`
}

// SameName compares two group names case-insensitively after trimming.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// MemberCount returns the group size for a member list plus the current user.
func MemberCount(members []Friend) int {
	return len(members) + 1
}
