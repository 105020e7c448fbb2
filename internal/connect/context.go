package connect

import (
	"context"

	types "github.com/edubridge/campusconnect/internal/domain"
	"github.com/edubridge/campusconnect/internal/ecs"
)

// PassContext carries one reconciliation pass's broker connection and
// lookups that stay stable for the duration of the pass. A fresh
// context is built at the start of every pass; nothing here survives
// between passes.
type PassContext struct {
	Broker *types.BrokerSettings
	Client ecs.Client

	memberships  []ecs.Community
	membershipsOK bool
	directories  map[int64][]*types.Directory
}

func NewPassContext(broker *types.BrokerSettings, client ecs.Client) *PassContext {
	return &PassContext{
		Broker:      broker,
		Client:      client,
		directories: map[int64][]*types.Directory{},
	}
}

// Memberships returns the broker's community/participant list, fetched
// at most once per pass.
func (pc *PassContext) Memberships(ctx context.Context) ([]ecs.Community, error) {
	if pc.membershipsOK {
		return pc.memberships, nil
	}
	communities, err := pc.Client.GetMemberships(ctx)
	if err != nil {
		return nil, err
	}
	pc.memberships = communities
	pc.membershipsOK = true
	return communities, nil
}

// CmsMemberID resolves the source-of-truth participant. The configured
// value wins; otherwise the membership list is consulted, and a sole
// remote participant across the broker's communities is taken as the
// CMS. Ambiguous or unreachable lists resolve to 0, which disables the
// sender check exactly as an unconfigured broker would.
func (pc *PassContext) CmsMemberID(ctx context.Context) int {
	if pc.Broker.CmsMemberID != 0 {
		return pc.Broker.CmsMemberID
	}
	communities, err := pc.Memberships(ctx)
	if err != nil {
		return 0
	}
	sole := 0
	for _, com := range communities {
		for _, p := range com.Participants {
			if p.ItsYou {
				continue
			}
			if sole != 0 && sole != p.MID {
				return 0
			}
			sole = p.MID
		}
	}
	return sole
}

// CachedNodes returns the pass-local node cache for one tree root, or
// nil when the tree was not loaded yet this pass.
func (pc *PassContext) CachedNodes(rootID int64) []*types.Directory {
	return pc.directories[rootID]
}

func (pc *PassContext) CacheNodes(rootID int64, nodes []*types.Directory) {
	pc.directories[rootID] = nodes
}

// InvalidateNodes drops one tree's cached nodes after a mutation.
func (pc *PassContext) InvalidateNodes(rootID int64) {
	delete(pc.directories, rootID)
}
