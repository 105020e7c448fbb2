package connect

import (
	"context"
	"testing"

	types "github.com/edubridge/campusconnect/internal/domain"
	"github.com/edubridge/campusconnect/internal/ecs"
)

func community(mids ...int) ecs.Community {
	var com ecs.Community
	com.Community.CID = 1
	com.Community.Name = "campus"
	// The first mid is always our own participant.
	for i, mid := range mids {
		com.Participants = append(com.Participants, ecs.Participant{
			MID:    mid,
			ItsYou: i == 0,
		})
	}
	return com
}

func TestPassContextCmsMemberIDFallback(t *testing.T) {
	ctx := context.Background()

	// The configured value wins over anything the broker reports.
	client := newFakeClient(0)
	client.communities = []ecs.Community{community(3, 9)}
	pc := NewPassContext(&types.BrokerSettings{BrokerID: 1, CmsMemberID: 5}, client)
	if got := pc.CmsMemberID(ctx); got != 5 {
		t.Fatalf("CmsMemberID = %d, want configured 5", got)
	}

	// Unconfigured: a sole remote participant is the CMS.
	pc = NewPassContext(&types.BrokerSettings{BrokerID: 1}, client)
	if got := pc.CmsMemberID(ctx); got != 9 {
		t.Fatalf("CmsMemberID = %d, want sole participant 9", got)
	}

	// Several remote participants are ambiguous; the sender check stays
	// disabled rather than guessing.
	client.communities = []ecs.Community{community(3, 9, 11)}
	pc = NewPassContext(&types.BrokerSettings{BrokerID: 1}, client)
	if got := pc.CmsMemberID(ctx); got != 0 {
		t.Fatalf("CmsMemberID = %d, want 0 for ambiguous list", got)
	}
}
