package connect

import (
	"context"
	"testing"
	"time"

	"github.com/edubridge/campusconnect/internal/data/repos"
	"github.com/edubridge/campusconnect/internal/data/repos/testutil"
	types "github.com/edubridge/campusconnect/internal/domain"
	"github.com/edubridge/campusconnect/internal/ecs"
	"github.com/edubridge/campusconnect/internal/host"
	"github.com/edubridge/campusconnect/internal/notify"
)

// env wires every connect service over a rollback transaction and an
// in-memory host.
type env struct {
	repos   *repos.Repos
	mem     *host.Memory
	queue   *EventQueue
	trees   *DirectoryTrees
	pgroups *ParallelGroups
	courses *Courses
	links   *CourseLinks
	members *Memberships
	enroll  *Enrollments
	exports *Exports
	engine  *Engine
	broker  *types.BrokerSettings
}

func newEnv(t *testing.T) *env {
	t.Helper()

	tx := testutil.Tx(t, testutil.DB(t))
	log := testutil.Logger(t)
	r := repos.New(tx, log)
	mem := host.NewMemory("https://host.test")
	h := mem.AsHost()

	trees := NewDirectoryTrees(r.Directories, h.Categories, h.Courses, log)
	pgroups := NewParallelGroups(r.PGroups, h.Groups, log)
	courses := NewCourses(r.CourseRecords, r.PGroups, trees, pgroups, h.Courses, log)
	links := NewCourseLinks(r.CourseLinks, trees, h.Courses, log)
	members := NewMemberships(r.Memberships, r.CourseRecords, pgroups, h.Users, h.Enrolments, h.Groups, log)
	enroll := NewEnrollments(r.Enrollments, r.CourseRecords, h.Users, h.Enrolments, log)
	exports := NewExports(r.Exports, r.CourseRecords, h.Courses, log)
	queue := NewEventQueue(r.Events, log)
	engine := NewEngine(queue, courses, links, trees, members, enroll, h.Courses, notify.NewLogNotifier(log), log)

	broker := &types.BrokerSettings{
		BrokerID:    1,
		Name:        "test",
		URL:         "https://ecs.test",
		CmsMemberID: 7,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := r.Brokers.Save(context.Background(), nil, broker); err != nil {
		t.Fatalf("seed broker: %v", err)
	}

	return &env{
		repos:   r,
		mem:     mem,
		queue:   queue,
		trees:   trees,
		pgroups: pgroups,
		courses: courses,
		links:   links,
		members: members,
		enroll:  enroll,
		exports: exports,
		engine:  engine,
		broker:  broker,
	}
}

func (e *env) pass(client ecs.Client) *PassContext {
	return NewPassContext(e.broker, client)
}

// mappedTree creates a whole-mode tree with the given child directory
// ids under one root, mapped to a fresh category. Returns the created
// root category id.
func (e *env) mappedTree(t *testing.T, pc *PassContext, rootID int64, children ...int64) int64 {
	t.Helper()
	ctx := context.Background()

	nodes := make([]ecs.DirectoryNode, 0, len(children))
	for i, id := range children {
		nodes = append(nodes, ecs.DirectoryNode{
			ID:     id,
			Title:  "Dir " + string(rune('A'+i)),
			Parent: ecs.DirectoryParent{ID: rootID},
			Order:  i + 1,
		})
	}
	data := &ecs.DirectoryTreeData{RootID: rootID, Title: "Tree", Nodes: nodes}
	meta := &ecs.TransferMeta{SenderMID: e.broker.CmsMemberID}
	if out, err := e.trees.Apply(ctx, pc, rootID+9000, data, meta); err != nil || out != OutcomeApplied {
		t.Fatalf("apply tree: outcome=%v err=%v", out, err)
	}
	if err := e.trees.SetTreeMode(ctx, e.broker.BrokerID, rootID, types.TreeModeWhole); err != nil {
		t.Fatalf("set tree mode: %v", err)
	}
	catID, err := e.mem.CreateCategory(ctx, "Root", 0)
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	if err := e.trees.MapCategory(ctx, e.broker.BrokerID, rootID, rootID, catID, false, false); err != nil {
		t.Fatalf("map root: %v", err)
	}
	return catID
}
