package connect

import (
	"context"
	"testing"

	types "github.com/edubridge/campusconnect/internal/domain"
	"github.com/edubridge/campusconnect/internal/ecs"
)

func cmsMeta(e *env) *ecs.TransferMeta {
	return &ecs.TransferMeta{SenderMID: e.broker.CmsMemberID}
}

func canonicalOf(t *testing.T, e *env, resourceID int64) *types.CourseRecord {
	t.Helper()
	rec, err := e.repos.CourseRecords.GetCanonical(context.Background(), nil, e.broker.BrokerID, resourceID)
	if err != nil {
		t.Fatalf("GetCanonical: %v", err)
	}
	if rec == nil {
		t.Fatalf("no canonical record for resource %d", resourceID)
	}
	return rec
}

func assertCanonicalInvariant(t *testing.T, e *env, resourceID int64) {
	t.Helper()
	records, err := e.repos.CourseRecords.GetByResource(context.Background(), nil, e.broker.BrokerID, resourceID)
	if err != nil {
		t.Fatalf("GetByResource: %v", err)
	}
	count := 0
	for _, rec := range records {
		if rec.Canonical() {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("canonical invariant violated: %d canonical records of %d", count, len(records))
	}
}

func TestCourseCreateImportCategory(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pc := e.pass(nil)

	catID, err := e.mem.CreateCategory(ctx, "Imported", 0)
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	e.broker.ImportCategoryID = catID

	data := &ecs.CourseData{LectureID: "MATH101", Title: "Calculus"}
	out, err := e.courses.Create(ctx, pc, 50, data, cmsMeta(e))
	if err != nil || out != OutcomeApplied {
		t.Fatalf("Create: outcome=%v err=%v", out, err)
	}

	rec := canonicalOf(t, e, 50)
	if rec.CmsCourseID != "MATH101" || rec.URLStatus != types.StatusCreated {
		t.Fatalf("canonical record = %+v", rec)
	}
	category, err := e.mem.CourseCategory(ctx, rec.CourseID)
	if err != nil || category != catID {
		t.Fatalf("course category = %d (err=%v), want %d", category, err, catID)
	}
	assertCanonicalInvariant(t, e, 50)
}

func TestCourseCreateUnauthorizedSenderDropped(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pc := e.pass(nil)
	e.broker.ImportCategoryID = 1

	data := &ecs.CourseData{LectureID: "X", Title: "X"}
	out, err := e.courses.Create(ctx, pc, 51, data, &ecs.TransferMeta{SenderMID: 99})
	if err != nil || out != OutcomeAuthorizationDropped {
		t.Fatalf("Create from wrong sender: outcome=%v err=%v", out, err)
	}
	if e.mem.CourseCount() != 0 {
		t.Fatalf("no course should be created, have %d", e.mem.CourseCount())
	}
}

func TestCourseCreateNoCategoryNotReady(t *testing.T) {
	e := newEnv(t)
	pc := e.pass(nil)

	data := &ecs.CourseData{LectureID: "Y", Title: "Y"}
	out, err := e.courses.Create(context.Background(), pc, 52, data, cmsMeta(e))
	if err != nil || out != OutcomeNotYetReady {
		t.Fatalf("Create without category: outcome=%v err=%v", out, err)
	}
}

func TestCourseShortnameUniqueness(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pc := e.pass(nil)

	catID, _ := e.mem.CreateCategory(ctx, "Imported", 0)
	e.broker.ImportCategoryID = catID

	want := []string{"PHY", "PHY_2", "PHY_3"}
	for i := range want {
		data := &ecs.CourseData{LectureID: "PHY", Title: "Physics"}
		out, err := e.courses.Create(ctx, pc, 60+int64(i), data, cmsMeta(e))
		if err != nil || out != OutcomeApplied {
			t.Fatalf("Create %d: outcome=%v err=%v", i, out, err)
		}
	}
	seen := map[string]bool{}
	for i := range want {
		rec := canonicalOf(t, e, 60+int64(i))
		name, err := e.mem.CourseShortname(ctx, rec.CourseID)
		if err != nil {
			t.Fatalf("CourseShortname: %v", err)
		}
		seen[name] = true
	}
	for _, name := range want {
		if !seen[name] {
			t.Fatalf("shortname set %v missing %q", seen, name)
		}
	}
}

func TestCourseUpdateWithoutRecordCreates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pc := e.pass(nil)

	catID, _ := e.mem.CreateCategory(ctx, "Imported", 0)
	e.broker.ImportCategoryID = catID

	data := &ecs.CourseData{LectureID: "BIO", Title: "Biology"}
	out, err := e.courses.Update(ctx, pc, 70, data, cmsMeta(e))
	if err != nil || out != OutcomeApplied {
		t.Fatalf("Update without record: outcome=%v err=%v", out, err)
	}
	canonicalOf(t, e, 70)
	if e.mem.CourseCount() != 1 {
		t.Fatalf("course count = %d, want 1", e.mem.CourseCount())
	}
}

func TestCourseSeparateCoursesScenario(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pc := e.pass(nil)

	catID, _ := e.mem.CreateCategory(ctx, "Imported", 0)
	e.broker.ImportCategoryID = catID

	data := &ecs.CourseData{
		LectureID:     "CHEM",
		Title:         "Chemistry",
		GroupScenario: ecs.ScenarioSeparateCourses,
		Groups: []ecs.CourseGroup{
			{Title: "Lab A"}, {Title: "Lab B"}, {Title: "Lab C"},
		},
	}
	out, err := e.courses.Create(ctx, pc, 80, data, cmsMeta(e))
	if err != nil || out != OutcomeApplied {
		t.Fatalf("Create: outcome=%v err=%v", out, err)
	}

	if e.mem.CourseCount() != 3 {
		t.Fatalf("course count = %d, want 3", e.mem.CourseCount())
	}
	assertCanonicalInvariant(t, e, 80)

	pgroups, err := e.repos.PGroups.GetByCmsCourse(ctx, nil, e.broker.BrokerID, "CHEM")
	if err != nil {
		t.Fatalf("GetByCmsCourse: %v", err)
	}
	if len(pgroups) != 3 {
		t.Fatalf("pgroup records = %d, want 3", len(pgroups))
	}
	courses := map[int64]bool{}
	for i, g := range pgroups {
		if g.GroupNum != i {
			t.Fatalf("pgroup %d has num %d", i, g.GroupNum)
		}
		// One group per course means no host groups are warranted.
		if g.GroupID != 0 {
			t.Fatalf("pgroup %d has host group %d, want none", i, g.GroupID)
		}
		courses[g.CourseID] = true
	}
	if len(courses) != 3 {
		t.Fatalf("pgroups point at %d distinct courses, want 3", len(courses))
	}
}

func TestCourseCanonicalCategorySwap(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pc := e.pass(nil)

	e.mappedTree(t, pc, 900, 901, 902)

	alloc := func(first, second int64) []ecs.Allocation {
		return []ecs.Allocation{{ParentID: first, Order: 1}, {ParentID: second, Order: 2}}
	}
	data := &ecs.CourseData{LectureID: "HIST", Title: "History", Allocations: alloc(901, 902)}
	out, err := e.courses.Create(ctx, pc, 90, data, cmsMeta(e))
	if err != nil || out != OutcomeApplied {
		t.Fatalf("Create: outcome=%v err=%v", out, err)
	}
	rec := canonicalOf(t, e, 90)
	if rec.DirectoryID != 901 {
		t.Fatalf("canonical starts in directory %d, want 901", rec.DirectoryID)
	}

	// Reverse the allocation order: the canonical course must follow
	// into the new first category, swapping with the redirect there.
	flipped := &ecs.CourseData{LectureID: "HIST", Title: "History", Allocations: alloc(902, 901)}
	out, err = e.courses.Update(ctx, pc, 90, flipped, cmsMeta(e))
	if err != nil || out != OutcomeApplied {
		t.Fatalf("Update: outcome=%v err=%v", out, err)
	}

	rec = canonicalOf(t, e, 90)
	if rec.DirectoryID != 902 {
		t.Fatalf("canonical in directory %d after swap, want 902", rec.DirectoryID)
	}
	assertCanonicalInvariant(t, e, 90)

	records, err := e.repos.CourseRecords.GetByResource(ctx, nil, e.broker.BrokerID, 90)
	if err != nil || len(records) != 2 {
		t.Fatalf("records = %v err=%v, want 2", records, err)
	}
	node902, err := e.repos.Directories.GetNode(ctx, nil, e.broker.BrokerID, 900, 902)
	if err != nil || node902 == nil || node902.CategoryID == nil {
		t.Fatalf("node 902 unmapped: %v err=%v", node902, err)
	}
	category, err := e.mem.CourseCategory(ctx, rec.CourseID)
	if err != nil || category != *node902.CategoryID {
		t.Fatalf("canonical course in category %d, want %d", category, *node902.CategoryID)
	}
}

func TestCourseRefreshIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pc := e.pass(nil)

	catID, _ := e.mem.CreateCategory(ctx, "Imported", 0)
	e.broker.ImportCategoryID = catID

	data := &ecs.CourseData{LectureID: "GEO", Title: "Geology"}
	if out, err := e.courses.Create(ctx, pc, 95, data, cmsMeta(e)); err != nil || out != OutcomeApplied {
		t.Fatalf("Create: outcome=%v err=%v", out, err)
	}

	changed, err := e.courses.Changed(ctx, pc, 95, data)
	if err != nil {
		t.Fatalf("Changed: %v", err)
	}
	if changed {
		t.Fatalf("Changed = true right after create, want false")
	}

	before := e.mem.CourseCount()
	if out, err := e.courses.Update(ctx, pc, 95, data, cmsMeta(e)); err != nil || out != OutcomeApplied {
		t.Fatalf("Update: outcome=%v err=%v", out, err)
	}
	if e.mem.CourseCount() != before {
		t.Fatalf("idempotent update changed course count %d -> %d", before, e.mem.CourseCount())
	}
}

func TestCourseDelete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pc := e.pass(nil)

	catID, _ := e.mem.CreateCategory(ctx, "Imported", 0)
	e.broker.ImportCategoryID = catID

	data := &ecs.CourseData{LectureID: "ART", Title: "Art"}
	if out, err := e.courses.Create(ctx, pc, 96, data, cmsMeta(e)); err != nil || out != OutcomeApplied {
		t.Fatalf("Create: outcome=%v err=%v", out, err)
	}

	out, err := e.courses.Delete(ctx, pc, 96)
	if err != nil || out != OutcomeApplied {
		t.Fatalf("Delete: outcome=%v err=%v", out, err)
	}
	if e.mem.CourseCount() != 0 {
		t.Fatalf("course count = %d after delete, want 0", e.mem.CourseCount())
	}
	// URL never registered, so the record is gone too.
	records, err := e.repos.CourseRecords.GetByResource(ctx, nil, e.broker.BrokerID, 96)
	if err != nil || len(records) != 0 {
		t.Fatalf("records after delete = %v err=%v", records, err)
	}

	// Deleting again is a no-op.
	if out, err := e.courses.Delete(ctx, pc, 96); err != nil || out != OutcomeApplied {
		t.Fatalf("second Delete: outcome=%v err=%v", out, err)
	}
}
