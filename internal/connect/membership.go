package connect

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/edubridge/campusconnect/internal/data/repos"
	types "github.com/edubridge/campusconnect/internal/domain"
	"github.com/edubridge/campusconnect/internal/ecs"
	"github.com/edubridge/campusconnect/internal/host"
	"github.com/edubridge/campusconnect/internal/platform/logger"
)

// Memberships reconciles course-member roster resources into pending
// role-assignment records and applies them once both the user and the
// course exist locally.
type Memberships struct {
	log     *logger.Logger
	members repos.MembershipRepo
	records repos.CourseRecordRepo
	pgroups *ParallelGroups
	users   host.Users
	enrol   host.Enrolments
	groups  host.Groups
}

func NewMemberships(members repos.MembershipRepo, records repos.CourseRecordRepo, pgroups *ParallelGroups, users host.Users, enrol host.Enrolments, groups host.Groups, baseLog *logger.Logger) *Memberships {
	return &Memberships{
		log:     baseLog.With("service", "Memberships"),
		members: members,
		records: records,
		pgroups: pgroups,
		users:   users,
		enrol:   enrol,
		groups:  groups,
	}
}

func memberKey(personIDType, personID string) string {
	return personIDType + "\x00" + personID
}

func encodeGroups(groups []ecs.MemberGroup) (datatypes.JSON, error) {
	nums := make([]int, 0, len(groups))
	for _, g := range groups {
		nums = append(nums, g.Num)
	}
	raw, err := json.Marshal(nums)
	return datatypes.JSON(raw), err
}

func decodeGroups(raw []byte) []int {
	if len(raw) == 0 {
		return nil
	}
	var nums []int
	if err := json.Unmarshal(raw, &nums); err != nil {
		return nil
	}
	return nums
}

// Apply diffs one incoming roster against the stored records of the
// same source course. Changed members move to Updated unless still
// unapplied; removed members move to Deleted, or vanish outright when
// they were never applied.
func (m *Memberships) Apply(ctx context.Context, pc *PassContext, resourceID int64, data *ecs.CourseMembersData, meta *ecs.TransferMeta) (Outcome, error) {
	brokerID := pc.Broker.BrokerID

	if meta != nil && pc.CmsMemberID(ctx) != 0 && meta.SenderMID != pc.CmsMemberID(ctx) {
		m.log.Warn("Dropping membership event from unauthorized sender",
			"broker_id", brokerID, "resource_id", resourceID, "sender_mid", meta.SenderMID)
		return OutcomeAuthorizationDropped, nil
	}

	existing, err := m.members.GetByCmsCourse(ctx, nil, brokerID, data.CourseID)
	if err != nil {
		return OutcomeNotYetReady, fmt.Errorf("load membership records: %w", err)
	}
	byKey := make(map[string]*types.MembershipRecord, len(existing))
	for _, rec := range existing {
		byKey[memberKey(rec.PersonIDType, rec.PersonID)] = rec
	}

	seen := map[string]bool{}
	for _, member := range data.Members {
		key := memberKey(member.PersonIDType, member.PersonID)
		seen[key] = true
		encoded, err := encodeGroups(member.Groups)
		if err != nil {
			return OutcomeNotYetReady, fmt.Errorf("encode groups: %w", err)
		}

		rec := byKey[key]
		if rec == nil {
			now := time.Now()
			rec = &types.MembershipRecord{
				ID:             uuid.New(),
				BrokerID:       brokerID,
				ResourceID:     resourceID,
				CmsCourseID:    data.CourseID,
				PersonID:       member.PersonID,
				PersonIDType:   member.PersonIDType,
				Role:           member.Role,
				ParallelGroups: encoded,
				Status:         types.MemberCreated,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := m.members.Create(ctx, nil, []*types.MembershipRecord{rec}); err != nil {
				return OutcomeNotYetReady, fmt.Errorf("create membership record: %w", err)
			}
			continue
		}

		changed := rec.Role != member.Role || string(rec.ParallelGroups) != string(encoded)
		resurrect := rec.Status == types.MemberDeleted
		if !changed && !resurrect {
			if rec.ResourceID != resourceID {
				rec.ResourceID = resourceID
				rec.UpdatedAt = time.Now()
				if err := m.members.Save(ctx, nil, rec); err != nil {
					return OutcomeNotYetReady, fmt.Errorf("save membership record: %w", err)
				}
			}
			continue
		}
		rec.Role = member.Role
		rec.ParallelGroups = encoded
		rec.ResourceID = resourceID
		if rec.Status != types.MemberCreated {
			rec.Status = types.MemberUpdated
		}
		rec.UpdatedAt = time.Now()
		if err := m.members.Save(ctx, nil, rec); err != nil {
			return OutcomeNotYetReady, fmt.Errorf("save membership record: %w", err)
		}
	}

	for key, rec := range byKey {
		if seen[key] {
			continue
		}
		if rec.Status == types.MemberCreated {
			// Never applied locally, nothing to undo.
			if err := m.members.DeleteByIDs(ctx, nil, []uuid.UUID{rec.ID}); err != nil {
				return OutcomeNotYetReady, fmt.Errorf("delete unapplied record: %w", err)
			}
			continue
		}
		if rec.Status != types.MemberDeleted {
			rec.Status = types.MemberDeleted
			rec.UpdatedAt = time.Now()
			if err := m.members.Save(ctx, nil, rec); err != nil {
				return OutcomeNotYetReady, fmt.Errorf("mark record deleted: %w", err)
			}
		}
	}

	return OutcomeApplied, nil
}

// Delete handles a destroyed roster resource: every member of it is
// marked for unenrollment.
func (m *Memberships) Delete(ctx context.Context, pc *PassContext, resourceID int64) (Outcome, error) {
	existing, err := m.members.GetByResource(ctx, nil, pc.Broker.BrokerID, resourceID)
	if err != nil {
		return OutcomeNotYetReady, fmt.Errorf("load membership records: %w", err)
	}
	for _, rec := range existing {
		if rec.Status == types.MemberCreated {
			if err := m.members.DeleteByIDs(ctx, nil, []uuid.UUID{rec.ID}); err != nil {
				return OutcomeNotYetReady, fmt.Errorf("delete unapplied record: %w", err)
			}
			continue
		}
		if rec.Status != types.MemberDeleted {
			rec.Status = types.MemberDeleted
			rec.UpdatedAt = time.Now()
			if err := m.members.Save(ctx, nil, rec); err != nil {
				return OutcomeNotYetReady, fmt.Errorf("mark record deleted: %w", err)
			}
		}
	}
	return OutcomeApplied, nil
}

// AssignAllPendingRoles applies every pending membership record whose
// user and course both exist by now. Records whose prerequisites are
// still missing stay untouched for the next pass.
func (m *Memberships) AssignAllPendingRoles(ctx context.Context, pc *PassContext) error {
	brokerID := pc.Broker.BrokerID

	pending, err := m.members.ListUnassigned(ctx, nil, brokerID)
	if err != nil {
		return fmt.Errorf("list pending memberships: %w", err)
	}

	for _, rec := range pending {
		userID, ok, err := m.users.ResolveUser(ctx, rec.PersonIDType, rec.PersonID)
		if err != nil {
			return fmt.Errorf("resolve user: %w", err)
		}

		placements, err := m.placementsFor(ctx, brokerID, rec)
		if err != nil {
			return err
		}

		if rec.Status == types.MemberDeleted && (!ok || len(placements) == 0) {
			// User or course already gone, nothing left to unenrol.
			if err := m.members.DeleteByIDs(ctx, nil, []uuid.UUID{rec.ID}); err != nil {
				return fmt.Errorf("purge membership record: %w", err)
			}
			continue
		}
		if !ok || len(placements) == 0 {
			continue
		}

		switch rec.Status {
		case types.MemberDeleted:
			for _, pl := range placements {
				if err := m.enrol.Unenrol(ctx, userID, pl.CourseID); err != nil {
					return fmt.Errorf("unenrol: %w", err)
				}
			}
			if err := m.members.DeleteByIDs(ctx, nil, []uuid.UUID{rec.ID}); err != nil {
				return fmt.Errorf("purge membership record: %w", err)
			}

		case types.MemberUpdated:
			for _, pl := range placements {
				if err := m.enrol.SetRole(ctx, userID, pl.CourseID, rec.Role); err != nil {
					return fmt.Errorf("set role: %w", err)
				}
				if err := m.joinGroup(ctx, pl, userID); err != nil {
					return err
				}
			}
			rec.Status = types.MemberAssigned
			rec.UpdatedAt = time.Now()
			if err := m.members.Save(ctx, nil, rec); err != nil {
				return fmt.Errorf("save membership record: %w", err)
			}

		default: // Created
			for _, pl := range placements {
				if err := m.enrol.Enrol(ctx, userID, pl.CourseID, rec.Role); err != nil {
					return fmt.Errorf("enrol: %w", err)
				}
				if err := m.joinGroup(ctx, pl, userID); err != nil {
					return err
				}
			}
			rec.Status = types.MemberAssigned
			rec.UpdatedAt = time.Now()
			if err := m.members.Save(ctx, nil, rec); err != nil {
				return fmt.Errorf("save membership record: %w", err)
			}
		}
	}
	return nil
}

func (m *Memberships) joinGroup(ctx context.Context, pl Placement, userID int64) error {
	if pl.GroupID == 0 {
		return nil
	}
	if err := m.groups.AddGroupMember(ctx, pl.GroupID, userID); err != nil {
		return fmt.Errorf("add group member: %w", err)
	}
	return nil
}

// placementsFor resolves where a member lands: their recorded parallel
// groups first, falling back to the canonical course of the source
// course id. Empty when the course does not exist locally yet.
func (m *Memberships) placementsFor(ctx context.Context, brokerID int, rec *types.MembershipRecord) ([]Placement, error) {
	nums := decodeGroups(rec.ParallelGroups)
	if len(nums) > 0 {
		placements, err := m.pgroups.GetGroupsForUser(ctx, brokerID, rec.CmsCourseID, nums)
		if err != nil {
			return nil, err
		}
		if len(placements) > 0 {
			return placements, nil
		}
	}

	records, err := m.records.GetByCmsCourseID(ctx, nil, brokerID, rec.CmsCourseID)
	if err != nil {
		return nil, fmt.Errorf("load course records: %w", err)
	}
	for _, cr := range records {
		if cr.Canonical() {
			return []Placement{{CourseID: cr.CourseID}}, nil
		}
	}
	return nil, nil
}
