package host

import (
	"context"
	"fmt"
	"sort"
	"sync"

	ccerrors "github.com/edubridge/campusconnect/internal/pkg/errors"
)

// Memory is an in-process host used by tests and single-binary demo
// deployments. Production deployments wire the host LMS adapter here
// instead.
type Memory struct {
	mu sync.Mutex

	nextID     int64
	courses    map[int64]*memCourse
	categories map[int64]*memCategory
	groups     map[int64]*memGroup
	users      map[string]int64 // "type:id" -> userID
	enrolments map[string]*memEnrolment
	baseURL    string
}

type memCourse struct {
	spec     CourseSpec
	category int64
}

type memCategory struct {
	name   string
	parent int64
	order  int
}

type memGroup struct {
	course  int64
	title   string
	members map[int64]bool
}

type memEnrolment struct {
	role   string
	status string
}

func NewMemory(baseURL string) *Memory {
	if baseURL == "" {
		baseURL = "https://localhost"
	}
	return &Memory{
		nextID:     1000,
		courses:    map[int64]*memCourse{},
		categories: map[int64]*memCategory{},
		groups:     map[int64]*memGroup{},
		users:      map[string]int64{},
		enrolments: map[string]*memEnrolment{},
		baseURL:    baseURL,
	}
}

// AsHost exposes the memory implementation through the collaborator
// bundle.
func (m *Memory) AsHost() Host {
	return Host{Courses: m, Categories: m, Groups: m, Users: m, Enrolments: m}
}

func (m *Memory) next() int64 {
	m.nextID++
	return m.nextID
}

func enrolKey(userID, courseID int64) string {
	return fmt.Sprintf("%d:%d", userID, courseID)
}

func (m *Memory) CreateCourse(_ context.Context, spec CourseSpec) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.courses {
		if c.spec.Shortname == spec.Shortname {
			return 0, fmt.Errorf("%w: shortname %q taken", ccerrors.ErrInvalidArgument, spec.Shortname)
		}
	}
	id := m.next()
	m.courses[id] = &memCourse{spec: spec, category: spec.CategoryID}
	return id, nil
}

func (m *Memory) UpdateCourse(_ context.Context, courseID int64, spec CourseSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[courseID]
	if !ok {
		return fmt.Errorf("%w: course %d", ccerrors.ErrNotFound, courseID)
	}
	c.spec = spec
	return nil
}

func (m *Memory) DeleteCourse(_ context.Context, courseID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.courses[courseID]; !ok {
		return fmt.Errorf("%w: course %d", ccerrors.ErrNotFound, courseID)
	}
	delete(m.courses, courseID)
	return nil
}

func (m *Memory) MoveCourse(_ context.Context, courseID, categoryID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[courseID]
	if !ok {
		return fmt.Errorf("%w: course %d", ccerrors.ErrNotFound, courseID)
	}
	c.category = categoryID
	c.spec.CategoryID = categoryID
	return nil
}

func (m *Memory) CourseExists(_ context.Context, courseID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.courses[courseID]
	return ok, nil
}

func (m *Memory) CourseCategory(_ context.Context, courseID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[courseID]
	if !ok {
		return 0, fmt.Errorf("%w: course %d", ccerrors.ErrNotFound, courseID)
	}
	return c.category, nil
}

func (m *Memory) CourseShortname(_ context.Context, courseID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[courseID]
	if !ok {
		return "", fmt.Errorf("%w: course %d", ccerrors.ErrNotFound, courseID)
	}
	return c.spec.Shortname, nil
}

func (m *Memory) ShortnameExists(_ context.Context, shortname string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.courses {
		if c.spec.Shortname == shortname {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) CourseURL(courseID int64) string {
	return fmt.Sprintf("%s/course/view.php?id=%d", m.baseURL, courseID)
}

func (m *Memory) ResortCourses(_ context.Context) error { return nil }

func (m *Memory) CreateCategory(_ context.Context, name string, parentID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next()
	m.categories[id] = &memCategory{name: name, parent: parentID}
	return id, nil
}

func (m *Memory) CategoryExists(_ context.Context, categoryID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.categories[categoryID]
	return ok, nil
}

func (m *Memory) RenameCategory(_ context.Context, categoryID int64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cat, ok := m.categories[categoryID]
	if !ok {
		return fmt.Errorf("%w: category %d", ccerrors.ErrNotFound, categoryID)
	}
	cat.name = name
	return nil
}

func (m *Memory) MoveCategory(_ context.Context, categoryID, newParentID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cat, ok := m.categories[categoryID]
	if !ok {
		return fmt.Errorf("%w: category %d", ccerrors.ErrNotFound, categoryID)
	}
	cat.parent = newParentID
	return nil
}

func (m *Memory) SetCategorySortOrder(_ context.Context, categoryID int64, order int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cat, ok := m.categories[categoryID]
	if !ok {
		return fmt.Errorf("%w: category %d", ccerrors.ErrNotFound, categoryID)
	}
	cat.order = order
	return nil
}

func (m *Memory) CreateGroup(_ context.Context, courseID int64, title string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next()
	m.groups[id] = &memGroup{course: courseID, title: title, members: map[int64]bool{}}
	return id, nil
}

func (m *Memory) RenameGroup(_ context.Context, groupID int64, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[groupID]
	if !ok {
		return fmt.Errorf("%w: group %d", ccerrors.ErrNotFound, groupID)
	}
	g.title = title
	return nil
}

func (m *Memory) GroupExists(_ context.Context, groupID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.groups[groupID]
	return ok, nil
}

func (m *Memory) AddGroupMember(_ context.Context, groupID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[groupID]
	if !ok {
		return fmt.Errorf("%w: group %d", ccerrors.ErrNotFound, groupID)
	}
	g.members[userID] = true
	return nil
}

// SeedUser registers a resolvable person identity; used by tests and
// the demo wiring.
func (m *Memory) SeedUser(personIDType, personID string, userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[personIDType+":"+personID] = userID
}

func (m *Memory) ResolveUser(_ context.Context, personIDType, personID string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.users[personIDType+":"+personID]
	return id, ok, nil
}

func (m *Memory) Enrol(_ context.Context, userID, courseID int64, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrolments[enrolKey(userID, courseID)] = &memEnrolment{role: role, status: "active"}
	return nil
}

func (m *Memory) SetRole(_ context.Context, userID, courseID int64, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrolments[enrolKey(userID, courseID)]
	if !ok {
		return fmt.Errorf("%w: enrolment %d/%d", ccerrors.ErrNotFound, userID, courseID)
	}
	e.role = role
	return nil
}

func (m *Memory) Unenrol(_ context.Context, userID, courseID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.enrolments, enrolKey(userID, courseID))
	return nil
}

func (m *Memory) SetEnrolmentStatus(_ context.Context, userID, courseID int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrolments[enrolKey(userID, courseID)]
	if !ok {
		return fmt.Errorf("%w: enrolment %d/%d", ccerrors.ErrNotFound, userID, courseID)
	}
	e.status = status
	return nil
}

// Enrolment reports the current role/status pair, for assertions.
func (m *Memory) Enrolment(userID, courseID int64) (role, status string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, found := m.enrolments[enrolKey(userID, courseID)]
	if !found {
		return "", "", false
	}
	return e.role, e.status, true
}

// GroupTitle reports a group's title, for assertions.
func (m *Memory) GroupTitle(groupID int64) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[groupID]
	if !ok {
		return "", false
	}
	return g.title, true
}

// GroupMembers lists a group's member user ids in stable order.
func (m *Memory) GroupMembers(groupID int64) []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[groupID]
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(g.members))
	for id := range g.members {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CourseCount reports how many courses currently exist.
func (m *Memory) CourseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.courses)
}
