package connect

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/edubridge/campusconnect/internal/data/repos"
	types "github.com/edubridge/campusconnect/internal/domain"
	"github.com/edubridge/campusconnect/internal/ecs"
	"github.com/edubridge/campusconnect/internal/host"
	"github.com/edubridge/campusconnect/internal/platform/logger"
)

// PGroup is one parallel group of a course, numbered by its position
// in the upstream group list.
type PGroup struct {
	Num             int
	Title           string
	Lecturers       []ecs.Lecturer
	MaxParticipants int
}

// GetParallelGroups decomposes a course's groups into the local
// courses they materialize as. Each inner slice becomes one local
// course carrying those groups.
func GetParallelGroups(course *ecs.CourseData) ([][]PGroup, int) {
	scenario := course.GroupScenario

	groups := make([]PGroup, 0, len(course.Groups))
	for i, g := range course.Groups {
		title := g.Title
		if title == "" {
			title = fmt.Sprintf("Group %d", i+1)
		}
		groups = append(groups, PGroup{
			Num:             i,
			Title:           title,
			Lecturers:       g.Lecturers,
			MaxParticipants: g.MaxParticipants,
		})
	}

	if len(groups) == 0 {
		return [][]PGroup{{}}, scenario
	}

	switch scenario {
	case ecs.ScenarioSeparateCourses:
		out := make([][]PGroup, 0, len(groups))
		for _, g := range groups {
			out = append(out, []PGroup{g})
		}
		return out, scenario

	case ecs.ScenarioSeparateLecturers:
		// One course per distinct first-listed lecturer, in first
		// appearance order. Groups without a lecturer share a course.
		order := []string{}
		byLecturer := map[string][]PGroup{}
		for _, g := range groups {
			key := ""
			if len(g.Lecturers) > 0 {
				key = g.Lecturers[0].LastName + "," + g.Lecturers[0].FirstName
			}
			if _, seen := byLecturer[key]; !seen {
				order = append(order, key)
			}
			byLecturer[key] = append(byLecturer[key], g)
		}
		out := make([][]PGroup, 0, len(order))
		for _, key := range order {
			out = append(out, byLecturer[key])
		}
		return out, scenario

	default:
		// None and SeparateGroups keep everything in one course; the
		// scenarios differ only in whether host groups get created.
		return [][]PGroup{groups}, scenario
	}
}

// MatchGroupsToCourses maps freshly-decomposed group sets onto the
// local courses previously created for them. With no prior state at
// all the canonical course claims the first set. A course id is
// claimed at most once per pass; later sets that would match an
// already-claimed course fall through to unmatched.
func MatchGroupsToCourses(prior []*types.CoursePGroup, grouped [][]PGroup, canonicalCourseID int64) (map[int64][]PGroup, [][]PGroup) {
	matched := map[int64][]PGroup{}
	var unmatched [][]PGroup

	if len(prior) == 0 {
		for i, set := range grouped {
			if i == 0 && canonicalCourseID != 0 {
				matched[canonicalCourseID] = set
				continue
			}
			unmatched = append(unmatched, set)
		}
		return matched, unmatched
	}

	byNum := make(map[int]int64, len(prior))
	for _, rec := range prior {
		byNum[rec.GroupNum] = rec.CourseID
	}

	claimed := map[int64]bool{}
	for _, set := range grouped {
		courseID := int64(0)
		for _, g := range set {
			if id, ok := byNum[g.Num]; ok {
				courseID = id
				break
			}
		}
		if courseID == 0 || claimed[courseID] {
			unmatched = append(unmatched, set)
			continue
		}
		claimed[courseID] = true
		matched[courseID] = set
	}
	return matched, unmatched
}

// ParallelGroups reconciles host-group existence against the stored
// group assignment records.
type ParallelGroups struct {
	log     *logger.Logger
	pgroups repos.PGroupRepo
	groups  host.Groups
}

func NewParallelGroups(pgroups repos.PGroupRepo, groups host.Groups, baseLog *logger.Logger) *ParallelGroups {
	return &ParallelGroups{
		log:     baseLog.With("service", "ParallelGroups"),
		pgroups: pgroups,
		groups:  groups,
	}
}

// createGroupPolicy: host groups exist only when the scenario splits
// groups at all and more than one group lives in the course.
func createGroupPolicy(scenario int, groupsInCourse int) bool {
	return scenario != ecs.ScenarioNone && groupsInCourse > 1
}

// Update reconciles the stored records for one course resource: missing
// records are created, titles renamed, records relocated when their
// assigned course changed, and host-group linkage is added or dropped
// per the create-group policy. Records that stopped appearing upstream
// are kept when the broker's KeepOrphanedGroups policy is on; dropping
// them silently would destroy user group membership on ambiguous
// upstream changes.
func (p *ParallelGroups) Update(ctx context.Context, pc *PassContext, resourceID int64, cmsCourseID string, scenario int, assignment map[int64][]PGroup) error {
	brokerID := pc.Broker.BrokerID

	existing, err := p.pgroups.GetByCmsCourse(ctx, nil, brokerID, cmsCourseID)
	if err != nil {
		return fmt.Errorf("load pgroups: %w", err)
	}
	byNum := make(map[int]*types.CoursePGroup, len(existing))
	for _, rec := range existing {
		byNum[rec.GroupNum] = rec
	}

	seen := map[int]bool{}
	for courseID, set := range assignment {
		wantGroup := createGroupPolicy(scenario, len(set))
		for _, g := range set {
			seen[g.Num] = true
			rec := byNum[g.Num]

			if rec == nil {
				now := time.Now()
				rec = &types.CoursePGroup{
					ID:          uuid.New(),
					BrokerID:    brokerID,
					ResourceID:  resourceID,
					CmsCourseID: cmsCourseID,
					GroupNum:    g.Num,
					CourseID:    courseID,
					GroupTitle:  g.Title,
					CreatedAt:   now,
					UpdatedAt:   now,
				}
				if wantGroup {
					groupID, err := p.groups.CreateGroup(ctx, courseID, g.Title)
					if err != nil {
						return fmt.Errorf("create host group: %w", err)
					}
					rec.GroupID = groupID
				}
				if err := p.pgroups.Create(ctx, nil, []*types.CoursePGroup{rec}); err != nil {
					return fmt.Errorf("create pgroup record: %w", err)
				}
				continue
			}

			dirty := false

			if rec.CourseID != courseID {
				rec.CourseID = courseID
				if rec.GroupID != 0 {
					// The old host group stays with its members; a
					// fresh group carries the record in its new course.
					groupID, err := p.groups.CreateGroup(ctx, courseID, g.Title)
					if err != nil {
						return fmt.Errorf("recreate host group: %w", err)
					}
					rec.GroupID = groupID
				}
				dirty = true
			}

			if wantGroup && rec.GroupID == 0 {
				groupID, err := p.groups.CreateGroup(ctx, rec.CourseID, g.Title)
				if err != nil {
					return fmt.Errorf("create host group: %w", err)
				}
				rec.GroupID = groupID
				dirty = true
			}
			if !wantGroup && rec.GroupID != 0 {
				// Drop the linkage only; the host group survives.
				rec.GroupID = 0
				dirty = true
			}

			if rec.GroupTitle != g.Title {
				rec.GroupTitle = g.Title
				if rec.GroupID != 0 {
					if err := p.groups.RenameGroup(ctx, rec.GroupID, g.Title); err != nil {
						return fmt.Errorf("rename host group: %w", err)
					}
				}
				dirty = true
			}

			if dirty {
				rec.UpdatedAt = time.Now()
				if err := p.pgroups.Save(ctx, nil, rec); err != nil {
					return fmt.Errorf("save pgroup record: %w", err)
				}
			}
		}
	}

	if !pc.Broker.KeepOrphanedGroups {
		var stale []uuid.UUID
		for num, rec := range byNum {
			if !seen[num] {
				stale = append(stale, rec.ID)
			}
		}
		if err := p.pgroups.DeleteByIDs(ctx, nil, stale); err != nil {
			return fmt.Errorf("delete stale pgroup records: %w", err)
		}
	}
	return nil
}

// Placement is one course (and optionally host group) a member lands in.
type Placement struct {
	CourseID int64
	GroupID  int64
}

// GetGroupsForUser resolves a member's upstream group numbers to local
// course/group placements via the stored assignment records. An empty
// result means the caller should fall back to the first mapped course.
func (p *ParallelGroups) GetGroupsForUser(ctx context.Context, brokerID int, cmsCourseID string, groupNums []int) ([]Placement, error) {
	var placements []Placement
	seenCourse := map[int64]bool{}
	for _, num := range groupNums {
		rec, err := p.pgroups.GetByNum(ctx, nil, brokerID, cmsCourseID, num)
		if err != nil {
			return nil, fmt.Errorf("lookup pgroup %d: %w", num, err)
		}
		if rec == nil {
			continue
		}
		if seenCourse[rec.CourseID] {
			continue
		}
		seenCourse[rec.CourseID] = true
		placements = append(placements, Placement{CourseID: rec.CourseID, GroupID: rec.GroupID})
	}
	return placements, nil
}
