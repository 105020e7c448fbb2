package connect

import (
	"context"
	"fmt"

	"github.com/edubridge/campusconnect/internal/data/repos"
	types "github.com/edubridge/campusconnect/internal/domain"
	"github.com/edubridge/campusconnect/internal/ecs"
	"github.com/edubridge/campusconnect/internal/platform/logger"
)

// RefreshCounts tallies one domain's full-refresh outcome.
type RefreshCounts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

// RefreshReport covers one complete bidirectional reconciliation.
type RefreshReport struct {
	DirectoryTrees RefreshCounts `json:"directory_trees"`
	Courses        RefreshCounts `json:"courses"`
	CourseLinks    RefreshCounts `json:"course_links"`
	Memberships    RefreshCounts `json:"memberships"`
}

// Refresher compares complete local state against complete broker
// state, one domain at a time. It is the recovery path after missed
// events and is safe to run at any time.
type Refresher struct {
	log     *logger.Logger
	courses *Courses
	links   *CourseLinks
	trees   *DirectoryTrees
	members *Memberships
	records repos.CourseRecordRepo
	linkR   repos.CourseLinkRepo
	memberR repos.MembershipRepo
	dirR    repos.DirectoryRepo
}

func NewRefresher(courses *Courses, links *CourseLinks, trees *DirectoryTrees, members *Memberships, records repos.CourseRecordRepo, linkR repos.CourseLinkRepo, memberR repos.MembershipRepo, dirR repos.DirectoryRepo, baseLog *logger.Logger) *Refresher {
	return &Refresher{
		log:     baseLog.With("service", "Refresher"),
		courses: courses,
		links:   links,
		trees:   trees,
		members: members,
		records: records,
		linkR:   linkR,
		memberR: memberR,
		dirR:    dirR,
	}
}

// RefreshAll reconciles every domain in dependency order: directory
// trees first since course placement depends on their mappings, then
// courses, then course links, memberships last so role assignment sees
// the final course set. Courses and links both create host courses and
// the shortname probe is check-then-create, so the stages stay
// sequential within one broker.
func (r *Refresher) RefreshAll(ctx context.Context, pc *PassContext) (RefreshReport, error) {
	var report RefreshReport

	trees, err := r.RefreshDirectoryTrees(ctx, pc)
	if err != nil {
		return report, err
	}
	report.DirectoryTrees = trees

	courses, err := r.RefreshCourses(ctx, pc)
	if err != nil {
		return report, err
	}
	report.Courses = courses

	links, err := r.RefreshCourseLinks(ctx, pc)
	if err != nil {
		return report, err
	}
	report.CourseLinks = links

	members, err := r.RefreshMemberships(ctx, pc)
	if err != nil {
		return report, err
	}
	report.Memberships = members

	if err := r.trees.CheckAllMappings(ctx, pc); err != nil {
		return report, err
	}
	if err := r.members.AssignAllPendingRoles(ctx, pc); err != nil {
		return report, err
	}

	r.log.Info("Full refresh finished", "broker_id", pc.Broker.BrokerID,
		"courses_created", report.Courses.Created,
		"courses_updated", report.Courses.Updated,
		"courses_deleted", report.Courses.Deleted)
	return report, nil
}

// RefreshCourses lists both sides and converges: unknown remote
// resources are created, known ones updated only when their content
// changed, local resources missing remotely are deleted.
func (r *Refresher) RefreshCourses(ctx context.Context, pc *PassContext) (RefreshCounts, error) {
	var counts RefreshCounts
	brokerID := pc.Broker.BrokerID

	remote, err := pc.Client.ListResourceIDs(ctx, types.KindCourse)
	if err != nil {
		return counts, fmt.Errorf("list remote courses: %w", err)
	}
	local, err := r.records.ListResourceIDs(ctx, nil, brokerID)
	if err != nil {
		return counts, fmt.Errorf("list local courses: %w", err)
	}
	localSet := make(map[int64]bool, len(local))
	for _, id := range local {
		localSet[id] = true
	}

	remoteSet := make(map[int64]bool, len(remote))
	for _, id := range remote {
		remoteSet[id] = true

		var data ecs.CourseData
		found, err := pc.Client.GetResource(ctx, types.KindCourse, id, &data)
		if err != nil {
			return counts, err
		}
		if !found {
			continue
		}
		meta, err := pc.Client.GetResourceMeta(ctx, types.KindCourse, id)
		if err != nil {
			return counts, err
		}

		if !localSet[id] {
			outcome, err := r.courses.Create(ctx, pc, id, &data, meta)
			if err != nil {
				return counts, err
			}
			if outcome == OutcomeApplied {
				counts.Created++
			}
			continue
		}

		changed, err := r.courses.Changed(ctx, pc, id, &data)
		if err != nil {
			return counts, err
		}
		if !changed {
			continue
		}
		outcome, err := r.courses.Update(ctx, pc, id, &data, meta)
		if err != nil {
			return counts, err
		}
		if outcome == OutcomeApplied {
			counts.Updated++
		}
	}

	for _, id := range local {
		if remoteSet[id] {
			continue
		}
		outcome, err := r.courses.Delete(ctx, pc, id)
		if err != nil {
			return counts, err
		}
		if outcome == OutcomeApplied {
			counts.Deleted++
		}
	}
	return counts, nil
}

func (r *Refresher) RefreshCourseLinks(ctx context.Context, pc *PassContext) (RefreshCounts, error) {
	var counts RefreshCounts
	brokerID := pc.Broker.BrokerID

	remote, err := pc.Client.ListResourceIDs(ctx, types.KindCourseLink)
	if err != nil {
		return counts, fmt.Errorf("list remote course links: %w", err)
	}
	local, err := r.linkR.ListResourceIDs(ctx, nil, brokerID)
	if err != nil {
		return counts, fmt.Errorf("list local course links: %w", err)
	}
	localSet := make(map[int64]bool, len(local))
	for _, id := range local {
		localSet[id] = true
	}

	remoteSet := make(map[int64]bool, len(remote))
	for _, id := range remote {
		remoteSet[id] = true

		var data ecs.CourseLinkData
		found, err := pc.Client.GetResource(ctx, types.KindCourseLink, id, &data)
		if err != nil {
			return counts, err
		}
		if !found {
			continue
		}
		meta, err := pc.Client.GetResourceMeta(ctx, types.KindCourseLink, id)
		if err != nil {
			return counts, err
		}
		known := localSet[id]
		outcome, err := r.links.Apply(ctx, pc, id, &data, meta)
		if err != nil {
			return counts, err
		}
		if outcome != OutcomeApplied {
			continue
		}
		if known {
			counts.Updated++
		} else {
			counts.Created++
		}
	}

	for _, id := range local {
		if remoteSet[id] {
			continue
		}
		outcome, err := r.links.Delete(ctx, pc, id)
		if err != nil {
			return counts, err
		}
		if outcome == OutcomeApplied {
			counts.Deleted++
		}
	}
	return counts, nil
}

func (r *Refresher) RefreshDirectoryTrees(ctx context.Context, pc *PassContext) (RefreshCounts, error) {
	var counts RefreshCounts
	brokerID := pc.Broker.BrokerID

	remote, err := pc.Client.ListResourceIDs(ctx, types.KindDirectoryTree)
	if err != nil {
		return counts, fmt.Errorf("list remote directory trees: %w", err)
	}
	local, err := r.dirR.ListTrees(ctx, nil, brokerID)
	if err != nil {
		return counts, fmt.Errorf("list local directory trees: %w", err)
	}
	localByResource := make(map[int64]*types.DirectoryTree, len(local))
	for _, tree := range local {
		localByResource[tree.ResourceID] = tree
	}

	remoteSet := make(map[int64]bool, len(remote))
	for _, id := range remote {
		remoteSet[id] = true

		var data ecs.DirectoryTreeData
		found, err := pc.Client.GetResource(ctx, types.KindDirectoryTree, id, &data)
		if err != nil {
			return counts, err
		}
		if !found {
			continue
		}
		meta, err := pc.Client.GetResourceMeta(ctx, types.KindDirectoryTree, id)
		if err != nil {
			return counts, err
		}
		known := localByResource[id] != nil
		outcome, err := r.trees.Apply(ctx, pc, id, &data, meta)
		if err != nil {
			return counts, err
		}
		if outcome != OutcomeApplied {
			continue
		}
		if known {
			counts.Updated++
		} else {
			counts.Created++
		}
	}

	for _, tree := range local {
		if remoteSet[tree.ResourceID] || tree.Mode == types.TreeModeDeleted {
			continue
		}
		outcome, err := r.trees.Delete(ctx, pc, tree.ResourceID)
		if err != nil {
			return counts, err
		}
		if outcome == OutcomeApplied {
			counts.Deleted++
		}
	}
	return counts, nil
}

func (r *Refresher) RefreshMemberships(ctx context.Context, pc *PassContext) (RefreshCounts, error) {
	var counts RefreshCounts
	brokerID := pc.Broker.BrokerID

	remote, err := pc.Client.ListResourceIDs(ctx, types.KindCourseMembers)
	if err != nil {
		return counts, fmt.Errorf("list remote rosters: %w", err)
	}
	local, err := r.memberR.ListResourceIDs(ctx, nil, brokerID)
	if err != nil {
		return counts, fmt.Errorf("list local rosters: %w", err)
	}
	localSet := make(map[int64]bool, len(local))
	for _, id := range local {
		localSet[id] = true
	}

	remoteSet := make(map[int64]bool, len(remote))
	for _, id := range remote {
		remoteSet[id] = true

		var data ecs.CourseMembersData
		found, err := pc.Client.GetResource(ctx, types.KindCourseMembers, id, &data)
		if err != nil {
			return counts, err
		}
		if !found {
			continue
		}
		meta, err := pc.Client.GetResourceMeta(ctx, types.KindCourseMembers, id)
		if err != nil {
			return counts, err
		}
		known := localSet[id]
		outcome, err := r.members.Apply(ctx, pc, id, &data, meta)
		if err != nil {
			return counts, err
		}
		if outcome != OutcomeApplied {
			continue
		}
		if known {
			counts.Updated++
		} else {
			counts.Created++
		}
	}

	for _, id := range local {
		if remoteSet[id] {
			continue
		}
		outcome, err := r.members.Delete(ctx, pc, id)
		if err != nil {
			return counts, err
		}
		if outcome == OutcomeApplied {
			counts.Deleted++
		}
	}
	return counts, nil
}
