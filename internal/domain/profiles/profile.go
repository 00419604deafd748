package profiles

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("profiles: not found")

// Profile is the public display record joined into conversation views.
type Profile struct {
	ID        string
	Username  string
	AvatarURL string
	CreatedAt time.Time
}

// DisplayName falls back to a placeholder for profiles that never set a
// username, so headers have something to render.
func (p Profile) DisplayName() string {
	if name := strings.TrimSpace(p.Username); name != "" {
		return name
	}
	return "anonymous"
}

type Repository interface {
	ByID(ctx context.Context, id string) (*Profile, error)
	Save(ctx context.Context, profile *Profile) error
}
