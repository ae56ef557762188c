package ports

import (
	"context"
	"time"

	"github.com/target/ledgerly/internal/domain/model"
)

// UserDirectory looks up users that can be added as friends.
type UserDirectory interface {
	// Search returns users whose name or username contains query (case-insensitive).
	Search(ctx context.Context, query string) ([]model.User, error)
}

// Clock provides the current time and can be replaced in tests.
type Clock interface {
	Now() time.Time
}
