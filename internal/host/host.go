// Package host defines the collaborator surface of the learning host.
// The connector only ever talks to these interfaces; the host's own
// course-creation business rules stay opaque behind them.
package host

import "context"

// CourseSpec carries everything the host needs to create or update a
// local course.
type CourseSpec struct {
	Fullname   string
	Shortname  string
	Summary    string
	CategoryID int64
	// RedirectTo points internal-link courses at the canonical one.
	// Zero for real courses.
	RedirectTo int64
}

type Courses interface {
	CreateCourse(ctx context.Context, spec CourseSpec) (int64, error)
	UpdateCourse(ctx context.Context, courseID int64, spec CourseSpec) error
	DeleteCourse(ctx context.Context, courseID int64) error
	MoveCourse(ctx context.Context, courseID, categoryID int64) error
	CourseExists(ctx context.Context, courseID int64) (bool, error)
	CourseCategory(ctx context.Context, courseID int64) (int64, error)
	CourseShortname(ctx context.Context, courseID int64) (string, error)
	ShortnameExists(ctx context.Context, shortname string) (bool, error)
	CourseURL(courseID int64) string
	// ResortCourses re-derives display order for automatically
	// ordered courses across all mapped categories.
	ResortCourses(ctx context.Context) error
}

type Categories interface {
	CreateCategory(ctx context.Context, name string, parentID int64) (int64, error)
	CategoryExists(ctx context.Context, categoryID int64) (bool, error)
	RenameCategory(ctx context.Context, categoryID int64, name string) error
	// MoveCategory reparents a category together with its courses and
	// subcategories.
	MoveCategory(ctx context.Context, categoryID, newParentID int64) error
	SetCategorySortOrder(ctx context.Context, categoryID int64, order int) error
}

type Groups interface {
	CreateGroup(ctx context.Context, courseID int64, title string) (int64, error)
	RenameGroup(ctx context.Context, groupID int64, title string) error
	GroupExists(ctx context.Context, groupID int64) (bool, error)
	AddGroupMember(ctx context.Context, groupID, userID int64) error
}

type Users interface {
	// ResolveUser maps a broker person identifier onto a local user.
	// ok is false while the user does not exist yet.
	ResolveUser(ctx context.Context, personIDType, personID string) (userID int64, ok bool, err error)
}

type Enrolments interface {
	Enrol(ctx context.Context, userID, courseID int64, role string) error
	SetRole(ctx context.Context, userID, courseID int64, role string) error
	Unenrol(ctx context.Context, userID, courseID int64) error
	SetEnrolmentStatus(ctx context.Context, userID, courseID int64, status string) error
}

// Host bundles all collaborator interfaces.
type Host struct {
	Courses    Courses
	Categories Categories
	Groups     Groups
	Users      Users
	Enrolments Enrolments
}
