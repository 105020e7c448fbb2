package connect

import (
	"context"
	"errors"
	"fmt"

	types "github.com/edubridge/campusconnect/internal/domain"
	"github.com/edubridge/campusconnect/internal/ecs"
	"github.com/edubridge/campusconnect/internal/host"
	"github.com/edubridge/campusconnect/internal/notify"
	ccerrors "github.com/edubridge/campusconnect/internal/pkg/errors"
	"github.com/edubridge/campusconnect/internal/platform/logger"
)

// DrainStats summarizes one drain pass.
type DrainStats struct {
	Applied int
	Skipped int
	Dropped int
	Fatal   int
}

// Engine drains the event queue and routes each event to its domain
// handler. One event's failure never aborts the pass; transport faults
// do, since every later event would hit the same dead broker.
type Engine struct {
	log      *logger.Logger
	queue    *EventQueue
	courses  *Courses
	links    *CourseLinks
	trees    *DirectoryTrees
	members  *Memberships
	enroll   *Enrollments
	hcourses host.Courses
	notifier notify.Notifier
}

func NewEngine(queue *EventQueue, courses *Courses, links *CourseLinks, trees *DirectoryTrees, members *Memberships, enroll *Enrollments, hcourses host.Courses, notifier notify.Notifier, baseLog *logger.Logger) *Engine {
	return &Engine{
		log:      baseLog.With("service", "Engine"),
		queue:    queue,
		courses:  courses,
		links:    links,
		trees:    trees,
		members:  members,
		enroll:   enroll,
		hcourses: hcourses,
		notifier: notifier,
	}
}

// Drain processes the broker's queue until no non-skipped events
// remain, then runs the deferred follow-ups: course resort when any
// course or link changed, pending role assignment when any course or
// roster changed. A new course can unblock rosters queued before it
// existed, so both kinds trigger the assignment sweep.
func (e *Engine) Drain(ctx context.Context, pc *PassContext) (DrainStats, error) {
	skip := SkipSet{}

	var stats DrainStats
	coursesTouched := false
	rostersTouched := false

	for {
		item, err := e.queue.Dequeue(ctx, pc.Broker.BrokerID, skip)
		if err != nil {
			return stats, err
		}
		if item == nil {
			break
		}

		ev, err := item.Event()
		if err != nil {
			// Malformed durable entry; drop it, it can never apply.
			e.log.Error("Dropping malformed queue entry", "error", err, "id", item.ID)
			if err := e.queue.Remove(ctx, item); err != nil {
				return stats, err
			}
			stats.Dropped++
			continue
		}

		outcome, err := e.dispatch(ctx, pc, ev)
		switch {
		case err == nil && outcome == OutcomeApplied:
			if err := e.queue.Remove(ctx, item); err != nil {
				return stats, err
			}
			stats.Applied++
			switch ev.Kind {
			case types.KindCourse, types.KindCourseLink:
				coursesTouched = true
			case types.KindCourseMembers:
				rostersTouched = true
			}

		case err == nil && outcome == OutcomeAuthorizationDropped:
			if err := e.queue.Remove(ctx, item); err != nil {
				return stats, err
			}
			stats.Dropped++

		case err == nil: // NotYetReady
			if err := e.skip(ctx, pc, item, ev, nil, skip); err != nil {
				return stats, err
			}
			stats.Skipped++

		case errors.Is(err, ccerrors.ErrTransport):
			// The broker is unreachable; every later event would fail
			// the same way. Halt the cycle.
			e.notifyFailure(ctx, pc, ev, err)
			return stats, err

		case errors.Is(err, ccerrors.ErrConsistency):
			e.log.Error("Fatal consistency fault", "error", err,
				"kind", string(ev.Kind), "resource_id", ev.ResourceID)
			e.notifyFailure(ctx, pc, ev, err)
			if err := e.queue.Remove(ctx, item); err != nil {
				return stats, err
			}
			stats.Fatal++

		default:
			if err := e.skip(ctx, pc, item, ev, err, skip); err != nil {
				return stats, err
			}
			stats.Skipped++
		}
	}

	if coursesTouched {
		if err := e.hcourses.ResortCourses(ctx); err != nil {
			return stats, fmt.Errorf("resort courses: %w", err)
		}
	}
	if coursesTouched || rostersTouched {
		if err := e.members.AssignAllPendingRoles(ctx, pc); err != nil {
			return stats, fmt.Errorf("assign pending roles: %w", err)
		}
	}

	e.log.Info("Drain pass finished", "broker_id", pc.Broker.BrokerID,
		"applied", stats.Applied, "skipped", stats.Skipped,
		"dropped", stats.Dropped, "fatal", stats.Fatal)
	return stats, nil
}

// skip marks one event for retry on the next pass. The first failure
// of an event notifies the operator; silent retries do not re-notify.
func (e *Engine) skip(ctx context.Context, pc *PassContext, item *types.EventQueueItem, ev types.ResourceEvent, cause error, skipSet SkipSet) error {
	if item.FailCount == 0 {
		e.notifyFailure(ctx, pc, ev, cause)
	}
	if cause != nil {
		e.log.Warn("Event processing failed, will retry", "error", cause,
			"kind", string(ev.Kind), "resource_id", ev.ResourceID, "fail_count", item.FailCount+1)
	}
	return e.queue.MarkSkipped(ctx, item, skipSet)
}

func (e *Engine) notifyFailure(ctx context.Context, pc *PassContext, ev types.ResourceEvent, cause error) {
	msg := fmt.Sprintf("broker %d: %s %s for resource %d could not be applied",
		pc.Broker.BrokerID, ev.Change, ev.Kind, ev.ResourceID)
	if cause != nil {
		msg += ": " + cause.Error()
	}
	if err := e.notifier.Notify(ctx, "Resource event failed", msg); err != nil {
		e.log.Error("Notification delivery failed", "error", err)
	}
}

// dispatch routes one event. Destroyed never fetches the body (the
// resource is presumed gone); Created and Updated fetch body and
// transfer metadata first, and a vanished body resolves the event (the
// destroy notification arrives separately).
func (e *Engine) dispatch(ctx context.Context, pc *PassContext, ev types.ResourceEvent) (Outcome, error) {
	if ev.Change == types.ChangeDestroyed {
		switch ev.Kind {
		case types.KindCourse:
			return e.courses.Delete(ctx, pc, ev.ResourceID)
		case types.KindCourseLink:
			return e.links.Delete(ctx, pc, ev.ResourceID)
		case types.KindDirectoryTree:
			return e.trees.Delete(ctx, pc, ev.ResourceID)
		case types.KindCourseMembers:
			return e.members.Delete(ctx, pc, ev.ResourceID)
		default:
			// course_urls and member_status destroys carry no local
			// state worth unwinding.
			return OutcomeApplied, nil
		}
	}

	switch ev.Kind {
	case types.KindCourse:
		var data ecs.CourseData
		found, meta, err := e.fetch(ctx, pc, ev, &data)
		if err != nil || !found {
			return OutcomeApplied, err
		}
		if ev.Change == types.ChangeCreated {
			return e.courses.Create(ctx, pc, ev.ResourceID, &data, meta)
		}
		return e.courses.Update(ctx, pc, ev.ResourceID, &data, meta)

	case types.KindCourseLink:
		var data ecs.CourseLinkData
		found, meta, err := e.fetch(ctx, pc, ev, &data)
		if err != nil || !found {
			return OutcomeApplied, err
		}
		return e.links.Apply(ctx, pc, ev.ResourceID, &data, meta)

	case types.KindDirectoryTree:
		var data ecs.DirectoryTreeData
		found, meta, err := e.fetch(ctx, pc, ev, &data)
		if err != nil || !found {
			return OutcomeApplied, err
		}
		return e.trees.Apply(ctx, pc, ev.ResourceID, &data, meta)

	case types.KindCourseMembers:
		var data ecs.CourseMembersData
		found, meta, err := e.fetch(ctx, pc, ev, &data)
		if err != nil || !found {
			return OutcomeApplied, err
		}
		return e.members.Apply(ctx, pc, ev.ResourceID, &data, meta)

	case types.KindMemberStatus:
		var data ecs.MemberStatusData
		found, meta, err := e.fetch(ctx, pc, ev, &data)
		if err != nil || !found {
			return OutcomeApplied, err
		}
		return e.enroll.Apply(ctx, pc, ev.ResourceID, &data, meta)

	case types.KindCourseURL:
		// URLs flow outward only; inbound notifications are other
		// participants' registrations.
		return OutcomeApplied, nil

	default:
		return OutcomeApplied, fmt.Errorf("%w: unroutable kind %q", ccerrors.ErrProtocol, string(ev.Kind))
	}
}

func (e *Engine) fetch(ctx context.Context, pc *PassContext, ev types.ResourceEvent, out any) (bool, *ecs.TransferMeta, error) {
	found, err := pc.Client.GetResource(ctx, ev.Kind, ev.ResourceID, out)
	if err != nil {
		return false, nil, err
	}
	if !found {
		e.log.Info("Resource already gone, resolving event",
			"kind", string(ev.Kind), "resource_id", ev.ResourceID)
		return false, nil, nil
	}
	meta, err := pc.Client.GetResourceMeta(ctx, ev.Kind, ev.ResourceID)
	if err != nil {
		return false, nil, err
	}
	return true, meta, nil
}
