package connect

import (
	"context"
	"testing"

	types "github.com/edubridge/campusconnect/internal/domain"
	"github.com/edubridge/campusconnect/internal/ecs"
)

func seedCourse(t *testing.T, e *env, pc *PassContext, resourceID int64, data *ecs.CourseData) *types.CourseRecord {
	t.Helper()
	if e.broker.ImportCategoryID == 0 {
		catID, err := e.mem.CreateCategory(context.Background(), "Import", 0)
		if err != nil {
			t.Fatalf("CreateCategory: %v", err)
		}
		e.broker.ImportCategoryID = catID
	}
	out, err := e.courses.Create(context.Background(), pc, resourceID, data, cmsMeta(e))
	if err != nil || out != OutcomeApplied {
		t.Fatalf("seed course: outcome=%v err=%v", out, err)
	}
	return canonicalOf(t, e, resourceID)
}

func roster(courseID string, members ...ecs.CourseMember) *ecs.CourseMembersData {
	return &ecs.CourseMembersData{CourseID: courseID, Members: members}
}

func TestMembershipDeferredUntilUserExists(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pc := e.pass(nil)

	rec := seedCourse(t, e, pc, 200, &ecs.CourseData{LectureID: "BIO", Title: "Biology"})

	data := roster("BIO", ecs.CourseMember{PersonID: "jdoe", PersonIDType: "uid", Role: "student"})
	out, err := e.members.Apply(ctx, pc, 300, data, cmsMeta(e))
	if err != nil || out != OutcomeApplied {
		t.Fatalf("Apply: outcome=%v err=%v", out, err)
	}

	// No such user yet: the record stays pending.
	if err := e.members.AssignAllPendingRoles(ctx, pc); err != nil {
		t.Fatalf("AssignAllPendingRoles: %v", err)
	}
	stored, _ := e.repos.Memberships.GetByCmsCourse(ctx, nil, 1, "BIO")
	if len(stored) != 1 || stored[0].Status != types.MemberCreated {
		t.Fatalf("records = %+v, want one pending create", stored)
	}

	e.mem.SeedUser("uid", "jdoe", 42)
	if err := e.members.AssignAllPendingRoles(ctx, pc); err != nil {
		t.Fatalf("second AssignAllPendingRoles: %v", err)
	}
	role, _, ok := e.mem.Enrolment(42, rec.CourseID)
	if !ok || role != "student" {
		t.Fatalf("enrolment = %q ok=%v", role, ok)
	}
	stored, _ = e.repos.Memberships.GetByCmsCourse(ctx, nil, 1, "BIO")
	if len(stored) != 1 || stored[0].Status != types.MemberAssigned {
		t.Fatalf("records after assignment = %+v", stored)
	}
}

func TestMembershipRoleChange(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pc := e.pass(nil)

	rec := seedCourse(t, e, pc, 210, &ecs.CourseData{LectureID: "CHEM", Title: "Chemistry"})
	e.mem.SeedUser("uid", "anna", 10)

	member := ecs.CourseMember{PersonID: "anna", PersonIDType: "uid", Role: "student"}
	if out, err := e.members.Apply(ctx, pc, 310, roster("CHEM", member), cmsMeta(e)); err != nil || out != OutcomeApplied {
		t.Fatalf("Apply: outcome=%v err=%v", out, err)
	}
	if err := e.members.AssignAllPendingRoles(ctx, pc); err != nil {
		t.Fatalf("assign: %v", err)
	}

	member.Role = "lecturer"
	if out, err := e.members.Apply(ctx, pc, 310, roster("CHEM", member), cmsMeta(e)); err != nil || out != OutcomeApplied {
		t.Fatalf("second Apply: outcome=%v err=%v", out, err)
	}
	stored, _ := e.repos.Memberships.GetByCmsCourse(ctx, nil, 1, "CHEM")
	if len(stored) != 1 || stored[0].Status != types.MemberUpdated {
		t.Fatalf("records = %+v, want one pending update", stored)
	}

	if err := e.members.AssignAllPendingRoles(ctx, pc); err != nil {
		t.Fatalf("assign update: %v", err)
	}
	role, _, ok := e.mem.Enrolment(10, rec.CourseID)
	if !ok || role != "lecturer" {
		t.Fatalf("enrolment = %q ok=%v, want lecturer", role, ok)
	}
}

func TestMembershipRemovalUnenrols(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pc := e.pass(nil)

	rec := seedCourse(t, e, pc, 220, &ecs.CourseData{LectureID: "GEO", Title: "Geology"})
	e.mem.SeedUser("uid", "bob", 11)

	member := ecs.CourseMember{PersonID: "bob", PersonIDType: "uid", Role: "student"}
	if out, err := e.members.Apply(ctx, pc, 320, roster("GEO", member), cmsMeta(e)); err != nil || out != OutcomeApplied {
		t.Fatalf("Apply: outcome=%v err=%v", out, err)
	}
	if err := e.members.AssignAllPendingRoles(ctx, pc); err != nil {
		t.Fatalf("assign: %v", err)
	}

	// Empty roster: bob was removed at the source.
	if out, err := e.members.Apply(ctx, pc, 320, roster("GEO"), cmsMeta(e)); err != nil || out != OutcomeApplied {
		t.Fatalf("removal Apply: outcome=%v err=%v", out, err)
	}
	if err := e.members.AssignAllPendingRoles(ctx, pc); err != nil {
		t.Fatalf("assign removal: %v", err)
	}
	if _, _, ok := e.mem.Enrolment(11, rec.CourseID); ok {
		t.Fatalf("bob still enrolled")
	}
	stored, _ := e.repos.Memberships.GetByCmsCourse(ctx, nil, 1, "GEO")
	if len(stored) != 0 {
		t.Fatalf("records = %+v, want purged", stored)
	}
}

func TestMembershipUnappliedRemovalIsSilent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pc := e.pass(nil)

	seedCourse(t, e, pc, 230, &ecs.CourseData{LectureID: "LAW", Title: "Law"})

	member := ecs.CourseMember{PersonID: "ghost", PersonIDType: "uid", Role: "student"}
	if out, err := e.members.Apply(ctx, pc, 330, roster("LAW", member), cmsMeta(e)); err != nil || out != OutcomeApplied {
		t.Fatalf("Apply: outcome=%v err=%v", out, err)
	}
	// The user never existed locally; the removal must not leave a
	// deletion marker behind.
	if out, err := e.members.Apply(ctx, pc, 330, roster("LAW"), cmsMeta(e)); err != nil || out != OutcomeApplied {
		t.Fatalf("removal Apply: outcome=%v err=%v", out, err)
	}
	stored, _ := e.repos.Memberships.GetByCmsCourse(ctx, nil, 1, "LAW")
	if len(stored) != 0 {
		t.Fatalf("records = %+v, want none", stored)
	}
}

func TestMembershipGroupPlacement(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pc := e.pass(nil)

	data := &ecs.CourseData{
		LectureID:     "INF",
		Title:         "Informatics",
		GroupScenario: 1, // groups inside one course
		Groups: []ecs.CourseGroup{
			{Title: "Group A"},
			{Title: "Group B"},
		},
	}
	rec := seedCourse(t, e, pc, 240, data)
	e.mem.SeedUser("uid", "carol", 12)

	member := ecs.CourseMember{
		PersonID: "carol", PersonIDType: "uid", Role: "student",
		Groups: []ecs.MemberGroup{{Num: 1}},
	}
	if out, err := e.members.Apply(ctx, pc, 340, roster("INF", member), cmsMeta(e)); err != nil || out != OutcomeApplied {
		t.Fatalf("Apply: outcome=%v err=%v", out, err)
	}
	if err := e.members.AssignAllPendingRoles(ctx, pc); err != nil {
		t.Fatalf("assign: %v", err)
	}

	role, _, ok := e.mem.Enrolment(12, rec.CourseID)
	if !ok || role != "student" {
		t.Fatalf("enrolment = %q ok=%v", role, ok)
	}

	pg, err := e.repos.PGroups.GetByNum(ctx, nil, 1, "INF", 1)
	if err != nil || pg == nil {
		t.Fatalf("GetByNum: pg=%v err=%v", pg, err)
	}
	if pg.GroupID == 0 {
		t.Fatalf("group course scenario must create a host group")
	}
	found := false
	for _, id := range e.mem.GroupMembers(pg.GroupID) {
		if id == 12 {
			found = true
		}
	}
	if !found {
		t.Fatalf("carol not in group %d", pg.GroupID)
	}
}
