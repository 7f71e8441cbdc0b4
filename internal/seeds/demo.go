package seeds

import (
	"context"
	stderrors "errors"

	"github.com/suvankar11223/chatzi-sub000/internal/models"
	"github.com/suvankar11223/chatzi-sub000/internal/services"
	"github.com/suvankar11223/chatzi-sub000/pkg/errors"
	"github.com/suvankar11223/chatzi-sub000/pkg/logger"
)

const DemoPassword = "chatzi-demo"

var demoUsers = []struct{ Name, Email string }{
	{"Ada Demo", "ada@chatzi.dev"},
	{"Ben Demo", "ben@chatzi.dev"},
	{"Cleo Demo", "cleo@chatzi.dev"},
}

// Demo creates three demo accounts, a direct conversation between the first
// two and a group with all three. Re-running reuses existing accounts and
// the direct conversation; the group is only created with fresh accounts.
func Demo(ctx context.Context, users *services.Users, directory *services.Directory) ([]models.User, error) {
	out := make([]models.User, 0, len(demoUsers))
	fresh := false
	for _, d := range demoUsers {
		u, err := users.Register(ctx, d.Name, d.Email, DemoPassword)
		if stderrors.Is(err, errors.ErrConflict) {
			u, err = users.Authenticate(ctx, d.Email, DemoPassword)
		} else if err == nil {
			fresh = true
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}

	if _, _, err := directory.GetOrCreateDirect(ctx, out[0].ID, out[1].ID); err != nil {
		return nil, err
	}
	if fresh {
		_, err := directory.CreateGroup(ctx, out[0].ID, []string{out[1].ID, out[2].ID}, "Demo Crew", "")
		if err != nil {
			return nil, err
		}
	}

	logger.Info().Int("users", len(out)).Bool("fresh", fresh).Msg("Demo data ready")
	return out, nil
}
