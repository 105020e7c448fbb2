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

// Enrollments propagates local enrollment-status changes to the broker
// and applies inbound member_status resources to local enrollments.
type Enrollments struct {
	log     *logger.Logger
	changes repos.EnrollmentRepo
	records repos.CourseRecordRepo
	users   host.Users
	enrol   host.Enrolments
}

func NewEnrollments(changes repos.EnrollmentRepo, records repos.CourseRecordRepo, users host.Users, enrol host.Enrolments, baseLog *logger.Logger) *Enrollments {
	return &Enrollments{
		log:     baseLog.With("service", "Enrollments"),
		changes: changes,
		records: records,
		users:   users,
		enrol:   enrol,
	}
}

// NotifyStatusChange queues one local enrollment-status change for the
// next export flush. Called by the host integration when a user's
// enrollment in a broker-managed course changes.
func (e *Enrollments) NotifyStatusChange(ctx context.Context, brokerID int, userID, courseID int64, personID, personIDType, status string) error {
	records, err := e.records.GetByCourseID(ctx, nil, courseID)
	if err != nil {
		return fmt.Errorf("load course records: %w", err)
	}
	if len(records) == 0 {
		// Not a broker-managed course; nothing to report.
		return nil
	}

	now := time.Now()
	change := &types.EnrollmentStatusChange{
		ID:           uuid.New(),
		BrokerID:     brokerID,
		UserID:       userID,
		CourseID:     courseID,
		PersonID:     personID,
		PersonIDType: personIDType,
		CmsCourseID:  records[0].CmsCourseID,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.changes.Create(ctx, nil, change); err != nil {
		return fmt.Errorf("queue status change: %w", err)
	}
	return nil
}

// FlushStatusExports posts every queued status change to the broker as
// a member_status resource addressed at the source-of-truth
// participant.
func (e *Enrollments) FlushStatusExports(ctx context.Context, pc *PassContext) error {
	brokerID := pc.Broker.BrokerID

	pending, err := e.changes.ListPending(ctx, nil, brokerID)
	if err != nil {
		return fmt.Errorf("list pending status changes: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	cmsMID := pc.CmsMemberID(ctx)
	var done []uuid.UUID
	for _, change := range pending {
		body := ecs.MemberStatusData{
			CourseID:     change.CmsCourseID,
			PersonID:     change.PersonID,
			PersonIDType: change.PersonIDType,
			Status:       change.Status,
		}
		var targets []int
		if cmsMID != 0 {
			targets = []int{cmsMID}
		}
		if _, err := pc.Client.AddResource(ctx, types.KindMemberStatus, body, nil, targets); err != nil {
			return fmt.Errorf("export status change: %w", err)
		}
		done = append(done, change.ID)
	}
	if err := e.changes.DeleteByIDs(ctx, nil, done); err != nil {
		return fmt.Errorf("clear exported changes: %w", err)
	}
	e.log.Info("Enrollment status changes exported", "broker_id", brokerID, "count", len(done))
	return nil
}

// Apply handles an inbound member_status resource by updating the
// local enrollment. Missing user or course keeps the event queued.
func (e *Enrollments) Apply(ctx context.Context, pc *PassContext, resourceID int64, data *ecs.MemberStatusData, meta *ecs.TransferMeta) (Outcome, error) {
	brokerID := pc.Broker.BrokerID

	if meta != nil && pc.CmsMemberID(ctx) != 0 && meta.SenderMID != pc.CmsMemberID(ctx) {
		e.log.Warn("Dropping member status from unauthorized sender",
			"broker_id", brokerID, "resource_id", resourceID, "sender_mid", meta.SenderMID)
		return OutcomeAuthorizationDropped, nil
	}

	userID, ok, err := e.users.ResolveUser(ctx, data.PersonIDType, data.PersonID)
	if err != nil {
		return OutcomeNotYetReady, fmt.Errorf("resolve user: %w", err)
	}
	if !ok {
		return OutcomeNotYetReady, nil
	}

	records, err := e.records.GetByCmsCourseID(ctx, nil, brokerID, data.CourseID)
	if err != nil {
		return OutcomeNotYetReady, fmt.Errorf("load course records: %w", err)
	}
	var courseID int64
	for _, rec := range records {
		if rec.Canonical() {
			courseID = rec.CourseID
			break
		}
	}
	if courseID == 0 {
		return OutcomeNotYetReady, nil
	}

	if err := e.enrol.SetEnrolmentStatus(ctx, userID, courseID, data.Status); err != nil {
		return OutcomeNotYetReady, fmt.Errorf("set enrolment status: %w", err)
	}
	return OutcomeApplied, nil
}
