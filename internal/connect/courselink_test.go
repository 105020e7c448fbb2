package connect

import (
	"context"
	"errors"
	"testing"

	"github.com/edubridge/campusconnect/internal/ecs"
	ccerrors "github.com/edubridge/campusconnect/internal/pkg/errors"
)

func TestCourseLinkRedirectURL(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	catID, _ := e.mem.CreateCategory(ctx, "Import", 0)
	e.broker.ImportCategoryID = catID

	client := newFakeClient(e.broker.CmsMemberID)
	pc := e.pass(client)

	data := &ecs.CourseLinkData{
		URL:      "https://remote.test/course/9",
		Title:    "Remote Course",
		CourseID: "RC-9",
	}
	meta := &ecs.TransferMeta{SenderMID: 21}
	if out, err := e.links.Apply(ctx, pc, 510, data, meta); err != nil || out != OutcomeApplied {
		t.Fatalf("apply link: outcome=%v err=%v", out, err)
	}

	rec, err := e.repos.CourseLinks.GetByResource(ctx, nil, e.broker.BrokerID, 510)
	if err != nil || rec == nil {
		t.Fatalf("load link record: rec=%v err=%v", rec, err)
	}
	if rec.CmsCourseID != "RC-9" {
		t.Fatalf("CmsCourseID = %q", rec.CmsCourseID)
	}

	target, err := e.links.RedirectURL(ctx, pc, rec.CourseID, "alice", "uid")
	if err != nil {
		t.Fatalf("RedirectURL: %v", err)
	}
	want := "https://remote.test/course/9?ecs_hash=hash-RC-9"
	if target != want {
		t.Fatalf("redirect = %q, want %q", target, want)
	}

	// A course without a link record is a not-found fault.
	if _, err := e.links.RedirectURL(ctx, pc, 999999, "alice", "uid"); !errors.Is(err, ccerrors.ErrNotFound) {
		t.Fatalf("RedirectURL err = %v, want not found", err)
	}
}
