package ecs

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	types "github.com/edubridge/campusconnect/internal/domain"
)

// Event is one entry of the broker's event fifo. The field is spelled
// "ressource" on the wire; keep it that way for interop.
type Event struct {
	Ressource string `json:"ressource"`
	Status    string `json:"status"`
}

// Parse splits "campusconnect/courses/123" into kind and id and
// validates both parts together with the change kind.
func (e Event) Parse(brokerID int) (types.ResourceEvent, error) {
	idx := strings.LastIndex(e.Ressource, "/")
	if idx <= 0 || idx == len(e.Ressource)-1 {
		return types.ResourceEvent{}, fmt.Errorf("malformed ressource %q", e.Ressource)
	}
	kind := types.ResourceKind(e.Ressource[:idx])
	id, err := strconv.ParseInt(e.Ressource[idx+1:], 10, 64)
	if err != nil {
		return types.ResourceEvent{}, fmt.Errorf("malformed ressource id in %q: %w", e.Ressource, err)
	}
	return types.NewResourceEvent(kind, id, types.ChangeKind(e.Status), brokerID)
}

// TransferMeta is the sender/receiver envelope of one resource.
type TransferMeta struct {
	SenderMID int   `json:"sender_mid"`
	OwnerMID  int   `json:"owner_mid"`
	Receivers []int `json:"receivers"`
}

type Lecturer struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type CourseGroup struct {
	Title           string     `json:"title"`
	Lecturers       []Lecturer `json:"lecturers"`
	MaxParticipants int        `json:"maxParticipants"`
}

type Allocation struct {
	ParentID int64 `json:"parentID"`
	Order    int   `json:"order"`
}

// Group scenarios of a course resource.
const (
	ScenarioNone              = 0
	ScenarioSeparateGroups    = 1
	ScenarioSeparateCourses   = 2
	ScenarioSeparateLecturers = 3
)

// CourseData is the body of a campusconnect/courses resource.
type CourseData struct {
	LectureID     string        `json:"lectureID"`
	Title         string        `json:"title"`
	Organisation  string        `json:"organisation"`
	Term          string        `json:"term"`
	Status        string        `json:"status"`
	GroupScenario int           `json:"groupScenario"`
	Groups        []CourseGroup `json:"groups"`
	Allocations   []Allocation  `json:"allocations"`
}

// CourseLinkData is the body of a campusconnect/courselinks resource.
type CourseLinkData struct {
	URL          string `json:"url"`
	Title        string `json:"title"`
	Organization string `json:"organization"`
	Lang         string `json:"lang"`
	Term         string `json:"term"`
	CourseID     string `json:"courseID"`
	CreditHours  int    `json:"credit_hours"`
	Status       string `json:"status"`
}

type MemberGroup struct {
	Num int `json:"num"`
}

type CourseMember struct {
	PersonID     string        `json:"personID"`
	PersonIDType string        `json:"personIDtype"`
	Role         string        `json:"role"`
	Groups       []MemberGroup `json:"groups"`
}

// CourseMembersData is the body of a campusconnect/course_members
// resource: the full roster of one source course.
type CourseMembersData struct {
	CourseID string         `json:"courseID"`
	Members  []CourseMember `json:"members"`
}

// CourseURLData is the body of a campusconnect/course_urls resource.
type CourseURLData struct {
	CmsCourseID string `json:"cms_course_id"`
	URL         string `json:"url"`
	LectureID   string `json:"lecture_id"`
}

// MemberStatusData is the body of a campusconnect/member_status resource.
type MemberStatusData struct {
	CourseID     string `json:"courseID"`
	PersonID     string `json:"personID"`
	PersonIDType string `json:"personIDtype"`
	Status       string `json:"status"`
}

type DirectoryParent struct {
	ID    int64  `json:"id"`
	Title string `json:"title,omitempty"`
}

type DirectoryNode struct {
	ID     int64           `json:"id"`
	Title  string          `json:"title"`
	Parent DirectoryParent `json:"parent"`
	Order  int             `json:"order,omitempty"`
	Term   string          `json:"term,omitempty"`
}

// DirectoryTreeData is the normalized multi-node shape of a
// campusconnect/directory_trees resource. Legacy payloads carry a
// single node at the top level; UnmarshalJSON detects those and folds
// them into the multi-node shape.
type DirectoryTreeData struct {
	RootID int64           `json:"rootID"`
	Title  string          `json:"directoryTreeTitle"`
	Nodes  []DirectoryNode `json:"nodes"`
}

func (d *DirectoryTreeData) UnmarshalJSON(raw []byte) error {
	var probe struct {
		RootID json.RawMessage `json:"rootID"`
		Title  string          `json:"directoryTreeTitle"`
		Nodes  []DirectoryNode `json:"nodes"`

		// legacy single-node fields
		ID     json.RawMessage  `json:"id"`
		NTitle string           `json:"title"`
		Parent *DirectoryParent `json:"parent"`
		Order  int              `json:"order"`
		Term   string           `json:"term"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return err
	}

	if len(probe.RootID) > 0 {
		d.RootID = flexInt(probe.RootID)
		d.Title = probe.Title
		d.Nodes = probe.Nodes
		return nil
	}

	if len(probe.ID) == 0 || probe.Parent == nil {
		return fmt.Errorf("directory tree payload matches neither legacy nor multi-node shape")
	}

	node := DirectoryNode{
		ID:     flexInt(probe.ID),
		Title:  probe.NTitle,
		Parent: *probe.Parent,
		Order:  probe.Order,
		Term:   probe.Term,
	}
	// A legacy node whose parent id is 0 is the tree root itself.
	if node.Parent.ID == 0 {
		d.RootID = node.ID
		d.Title = node.Title
	} else {
		d.RootID = node.Parent.ID
		d.Title = node.Parent.Title
	}
	d.Nodes = []DirectoryNode{node}
	return nil
}

// Some senders encode ids as strings. Accept both.
func flexInt(raw json.RawMessage) int64 {
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return v
		}
	}
	return 0
}

type Participant struct {
	MID    int    `json:"mid"`
	Name   string `json:"name"`
	ItsYou bool   `json:"itsyou"`
	Org    struct {
		Abbreviation string `json:"abbr"`
	} `json:"org"`
}

type Community struct {
	Community struct {
		CID  int    `json:"cid"`
		Name string `json:"name"`
	} `json:"community"`
	Participants []Participant `json:"participants"`
}

// AuthTokenPayload is signed into the one-time token handed to the
// remote participant when a user follows a course link.
type AuthTokenPayload struct {
	PersonID     string `json:"personID"`
	PersonIDType string `json:"personIDtype"`
	CourseID     string `json:"courseID"`
	Realm        string `json:"realm"`
}
