package connect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/edubridge/campusconnect/internal/data/repos/testutil"
	types "github.com/edubridge/campusconnect/internal/domain"
	"github.com/edubridge/campusconnect/internal/ecs"
	ccerrors "github.com/edubridge/campusconnect/internal/pkg/errors"
)

// fakeClient serves resources from memory and can be forced into
// transport failure.
type fakeClient struct {
	resources   map[types.ResourceKind]map[int64]any
	meta        map[int64]*ecs.TransferMeta
	communities []ecs.Community
	senderMID   int
	getErr      error
	nextID      int64
}

func newFakeClient(senderMID int) *fakeClient {
	return &fakeClient{
		resources: map[types.ResourceKind]map[int64]any{},
		meta:      map[int64]*ecs.TransferMeta{},
		senderMID: senderMID,
		nextID:    10000,
	}
}

func (f *fakeClient) put(kind types.ResourceKind, id int64, body any) {
	if f.resources[kind] == nil {
		f.resources[kind] = map[int64]any{}
	}
	f.resources[kind][id] = body
}

func (f *fakeClient) ListResourceIDs(_ context.Context, kind types.ResourceKind) ([]int64, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	var ids []int64
	for id := range f.resources[kind] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeClient) GetResource(_ context.Context, kind types.ResourceKind, id int64, out any) (bool, error) {
	if f.getErr != nil {
		return false, f.getErr
	}
	body, ok := f.resources[kind][id]
	if !ok {
		return false, nil
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(raw, out)
}

func (f *fakeClient) GetResourceMeta(_ context.Context, _ types.ResourceKind, id int64) (*ecs.TransferMeta, error) {
	if m, ok := f.meta[id]; ok {
		return m, nil
	}
	return &ecs.TransferMeta{SenderMID: f.senderMID}, nil
}

func (f *fakeClient) AddResource(_ context.Context, kind types.ResourceKind, body any, _, _ []int) (int64, error) {
	f.nextID++
	f.put(kind, f.nextID, body)
	return f.nextID, nil
}

func (f *fakeClient) UpdateResource(_ context.Context, kind types.ResourceKind, id int64, body any, _, _ []int) error {
	f.put(kind, id, body)
	return nil
}

func (f *fakeClient) DeleteResource(_ context.Context, kind types.ResourceKind, id int64) error {
	delete(f.resources[kind], id)
	return nil
}

func (f *fakeClient) ReadEventFifo(_ context.Context, _ int, _ bool) ([]ecs.Event, error) {
	return nil, nil
}

func (f *fakeClient) GetMemberships(_ context.Context) ([]ecs.Community, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.communities, nil
}

func (f *fakeClient) AddAuthToken(_ context.Context, payload ecs.AuthTokenPayload, _ int) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	return "hash-" + payload.CourseID, nil
}

// countingNotifier records delivered admin notifications.
type countingNotifier struct {
	subjects []string
}

func (n *countingNotifier) Notify(_ context.Context, subject, _ string) error {
	n.subjects = append(n.subjects, subject)
	return nil
}

func enqueue(t *testing.T, e *env, kind types.ResourceKind, id int64, change types.ChangeKind) {
	t.Helper()
	ev := types.ResourceEvent{Kind: kind, ResourceID: id, Change: change, BrokerID: e.broker.BrokerID}
	if err := e.queue.Enqueue(context.Background(), ev); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
}

func queueDepth(t *testing.T, e *env) int64 {
	t.Helper()
	depths, err := e.queue.Depths(context.Background())
	if err != nil {
		t.Fatalf("Depths: %v", err)
	}
	return depths[e.broker.BrokerID]
}

func TestEngineDrainAppliesCourse(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	catID, _ := e.mem.CreateCategory(ctx, "Import", 0)
	e.broker.ImportCategoryID = catID

	client := newFakeClient(e.broker.CmsMemberID)
	client.put(types.KindCourse, 400, &ecs.CourseData{LectureID: "AST", Title: "Astronomy"})
	pc := e.pass(client)

	enqueue(t, e, types.KindCourse, 400, types.ChangeCreated)

	stats, err := e.engine.Drain(ctx, pc)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if stats.Applied != 1 || stats.Skipped != 0 || stats.Fatal != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if depth := queueDepth(t, e); depth != 0 {
		t.Fatalf("queue depth = %d after apply", depth)
	}
	rec := canonicalOf(t, e, 400)
	if exists, err := e.mem.CourseExists(ctx, rec.CourseID); err != nil || !exists {
		t.Fatalf("course missing: exists=%v err=%v", exists, err)
	}
}

func TestEngineDrainResolvesVanishedResource(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pc := e.pass(newFakeClient(e.broker.CmsMemberID))

	// The broker already dropped the body; the event is resolved
	// without local effect.
	enqueue(t, e, types.KindCourse, 401, types.ChangeCreated)

	stats, err := e.engine.Drain(ctx, pc)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if stats.Applied != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if depth := queueDepth(t, e); depth != 0 {
		t.Fatalf("queue depth = %d", depth)
	}
	if e.mem.CourseCount() != 0 {
		t.Fatalf("no course should exist")
	}
}

func TestEngineDrainSkipsAndNotifiesOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	// No import category and no mapped tree: the course has nowhere to
	// land yet.
	client := newFakeClient(e.broker.CmsMemberID)
	client.put(types.KindCourse, 402, &ecs.CourseData{LectureID: "ECO", Title: "Economics"})
	pc := e.pass(client)

	notifier := &countingNotifier{}
	engine := NewEngine(e.queue, e.courses, e.links, e.trees, e.members, e.enroll, e.mem.AsHost().Courses, notifier, testutil.Logger(t))

	enqueue(t, e, types.KindCourse, 402, types.ChangeCreated)

	stats, err := engine.Drain(ctx, pc)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if stats.Skipped != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if depth := queueDepth(t, e); depth != 1 {
		t.Fatalf("queue depth = %d, event must survive", depth)
	}
	if len(notifier.subjects) != 1 {
		t.Fatalf("notifications = %d, want 1 on first failure", len(notifier.subjects))
	}

	// Second pass fails again silently.
	if _, err := engine.Drain(ctx, pc); err != nil {
		t.Fatalf("second Drain: %v", err)
	}
	if len(notifier.subjects) != 1 {
		t.Fatalf("notifications = %d after retry, must not re-notify", len(notifier.subjects))
	}
}

func TestEngineDrainTransportHalts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	client := newFakeClient(e.broker.CmsMemberID)
	client.getErr = fmt.Errorf("%w: broker unreachable", ccerrors.ErrTransport)
	pc := e.pass(client)

	enqueue(t, e, types.KindCourse, 403, types.ChangeCreated)
	enqueue(t, e, types.KindCourse, 404, types.ChangeCreated)

	_, err := e.engine.Drain(ctx, pc)
	if !errors.Is(err, ccerrors.ErrTransport) {
		t.Fatalf("Drain err = %v, want transport fault", err)
	}
	if depth := queueDepth(t, e); depth != 2 {
		t.Fatalf("queue depth = %d, nothing may be consumed on transport failure", depth)
	}
}

func TestEngineDrainDestroyWithoutFetch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	catID, _ := e.mem.CreateCategory(ctx, "Import", 0)
	e.broker.ImportCategoryID = catID

	client := newFakeClient(e.broker.CmsMemberID)
	client.put(types.KindCourse, 405, &ecs.CourseData{LectureID: "ART", Title: "Art"})
	pc := e.pass(client)

	enqueue(t, e, types.KindCourse, 405, types.ChangeCreated)
	if _, err := e.engine.Drain(ctx, pc); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	rec := canonicalOf(t, e, 405)

	// Destroy events never fetch; a dead transport must not matter.
	client.getErr = fmt.Errorf("%w: broker unreachable", ccerrors.ErrTransport)
	enqueue(t, e, types.KindCourse, 405, types.ChangeDestroyed)
	stats, err := e.engine.Drain(ctx, pc)
	if err != nil {
		t.Fatalf("destroy Drain: %v", err)
	}
	if stats.Applied != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if exists, _ := e.mem.CourseExists(ctx, rec.CourseID); exists {
		t.Fatalf("course %d survived destroy", rec.CourseID)
	}
}

func TestEngineDrainRosterAssignsRoles(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	catID, _ := e.mem.CreateCategory(ctx, "Import", 0)
	e.broker.ImportCategoryID = catID
	e.mem.SeedUser("uid", "dave", 13)

	client := newFakeClient(e.broker.CmsMemberID)
	client.put(types.KindCourse, 406, &ecs.CourseData{LectureID: "MED", Title: "Medicine"})
	client.put(types.KindCourseMembers, 407, &ecs.CourseMembersData{
		CourseID: "MED",
		Members:  []ecs.CourseMember{{PersonID: "dave", PersonIDType: "uid", Role: "student"}},
	})
	pc := e.pass(client)

	enqueue(t, e, types.KindCourse, 406, types.ChangeCreated)
	enqueue(t, e, types.KindCourseMembers, 407, types.ChangeCreated)

	stats, err := e.engine.Drain(ctx, pc)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if stats.Applied != 2 {
		t.Fatalf("stats = %+v", stats)
	}

	rec := canonicalOf(t, e, 406)
	role, _, ok := e.mem.Enrolment(13, rec.CourseID)
	if !ok || role != "student" {
		t.Fatalf("enrolment = %q ok=%v", role, ok)
	}
}

func TestEngineDrainCourseUnblocksEarlierRoster(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	catID, _ := e.mem.CreateCategory(ctx, "Import", 0)
	e.broker.ImportCategoryID = catID
	e.mem.SeedUser("uid", "erin", 42)

	client := newFakeClient(e.broker.CmsMemberID)
	client.put(types.KindCourseMembers, 408, &ecs.CourseMembersData{
		CourseID: "PHY",
		Members:  []ecs.CourseMember{{PersonID: "erin", PersonIDType: "uid", Role: "student"}},
	})
	pc := e.pass(client)

	// First pass: only the roster is known, the record stays pending.
	enqueue(t, e, types.KindCourseMembers, 408, types.ChangeCreated)
	if stats, err := e.engine.Drain(ctx, pc); err != nil || stats.Applied != 1 {
		t.Fatalf("roster Drain: stats=%+v err=%v", stats, err)
	}

	// Next pass brings the course; the earlier roster must apply now,
	// without waiting for another roster event.
	client.put(types.KindCourse, 409, &ecs.CourseData{LectureID: "PHY", Title: "Physics"})
	enqueue(t, e, types.KindCourse, 409, types.ChangeCreated)
	if stats, err := e.engine.Drain(ctx, pc); err != nil || stats.Applied != 1 {
		t.Fatalf("course Drain: stats=%+v err=%v", stats, err)
	}

	rec := canonicalOf(t, e, 409)
	role, _, ok := e.mem.Enrolment(42, rec.CourseID)
	if !ok || role != "student" {
		t.Fatalf("enrolment = %q ok=%v after course creation", role, ok)
	}
}
