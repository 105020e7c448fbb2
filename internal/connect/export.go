package connect

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/edubridge/campusconnect/internal/data/repos"
	types "github.com/edubridge/campusconnect/internal/domain"
	"github.com/edubridge/campusconnect/internal/ecs"
	"github.com/edubridge/campusconnect/internal/host"
	"github.com/edubridge/campusconnect/internal/platform/logger"
)

// Exports handles the two outbound surfaces: registering course URLs
// for imported courses, and exporting local courses as course links to
// selected participants.
type Exports struct {
	log     *logger.Logger
	exports repos.ExportRepo
	records repos.CourseRecordRepo
	courses host.Courses
}

func NewExports(exports repos.ExportRepo, records repos.CourseRecordRepo, courses host.Courses, baseLog *logger.Logger) *Exports {
	return &Exports{
		log:     baseLog.With("service", "Exports"),
		exports: exports,
		records: records,
		courses: courses,
	}
}

// FlushCourseURLs registers, refreshes or retracts the course URL of
// every canonical record whose export status is pending.
func (x *Exports) FlushCourseURLs(ctx context.Context, pc *PassContext) error {
	brokerID := pc.Broker.BrokerID

	pending, err := x.records.ListURLPending(ctx, nil, brokerID)
	if err != nil {
		return fmt.Errorf("list pending course urls: %w", err)
	}

	cmsMID := pc.CmsMemberID(ctx)
	var targets []int
	if cmsMID != 0 {
		targets = []int{cmsMID}
	}

	for _, rec := range pending {
		switch rec.URLStatus {
		case types.StatusDeleted:
			if rec.URLResourceID != 0 {
				if err := pc.Client.DeleteResource(ctx, types.KindCourseURL, rec.URLResourceID); err != nil {
					return fmt.Errorf("retract course url: %w", err)
				}
			}
			// The record only survived the course deletion for this.
			if err := x.records.DeleteByIDs(ctx, nil, []uuid.UUID{rec.ID}); err != nil {
				return fmt.Errorf("delete retracted record: %w", err)
			}

		case types.StatusUpdated:
			if rec.URLResourceID == 0 {
				// Never registered; fall through to creation.
				rec.URLStatus = types.StatusCreated
			} else {
				body := ecs.CourseURLData{
					CmsCourseID: rec.CmsCourseID,
					URL:         x.courses.CourseURL(rec.CourseID),
					LectureID:   rec.CmsCourseID,
				}
				if err := pc.Client.UpdateResource(ctx, types.KindCourseURL, rec.URLResourceID, body, nil, targets); err != nil {
					return fmt.Errorf("update course url: %w", err)
				}
				rec.URLStatus = types.StatusUpToDate
				rec.UpdatedAt = time.Now()
				if err := x.records.Save(ctx, nil, rec); err != nil {
					return fmt.Errorf("save record: %w", err)
				}
				continue
			}
			fallthrough

		case types.StatusCreated:
			body := ecs.CourseURLData{
				CmsCourseID: rec.CmsCourseID,
				URL:         x.courses.CourseURL(rec.CourseID),
				LectureID:   rec.CmsCourseID,
			}
			resourceID, err := pc.Client.AddResource(ctx, types.KindCourseURL, body, nil, targets)
			if err != nil {
				return fmt.Errorf("register course url: %w", err)
			}
			rec.URLResourceID = resourceID
			rec.URLStatus = types.StatusUpToDate
			rec.UpdatedAt = time.Now()
			if err := x.records.Save(ctx, nil, rec); err != nil {
				return fmt.Errorf("save record: %w", err)
			}
		}
	}
	return nil
}

func decodeTargets(raw []byte) []int {
	if len(raw) == 0 {
		return nil
	}
	var targets []int
	if err := json.Unmarshal(raw, &targets); err != nil {
		return nil
	}
	return targets
}

// SetTargets records which participants one local course is exported
// to. An empty target set on an existing export schedules retraction.
func (x *Exports) SetTargets(ctx context.Context, brokerID int, courseID int64, targets []int) error {
	encoded, err := json.Marshal(targets)
	if err != nil {
		return fmt.Errorf("encode targets: %w", err)
	}

	existing, err := x.exports.GetByCourse(ctx, nil, brokerID, courseID)
	if err != nil {
		return fmt.Errorf("load export record: %w", err)
	}

	if existing == nil {
		if len(targets) == 0 {
			return nil
		}
		now := time.Now()
		rec := &types.ExportRecord{
			ID:            uuid.New(),
			BrokerID:      brokerID,
			CourseID:      courseID,
			TargetMembers: encoded,
			Status:        types.StatusCreated,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := x.exports.Create(ctx, nil, rec); err != nil {
			return fmt.Errorf("create export record: %w", err)
		}
		return nil
	}

	existing.TargetMembers = encoded
	switch {
	case len(targets) == 0:
		existing.Status = types.StatusDeleted
	case existing.Status == types.StatusUpToDate:
		existing.Status = types.StatusUpdated
	}
	existing.UpdatedAt = time.Now()
	if err := x.exports.Save(ctx, nil, existing); err != nil {
		return fmt.Errorf("save export record: %w", err)
	}
	return nil
}

// FlushExports pushes pending export records to the broker as course
// link resources. Deleted records with no broker resource are resolved
// locally without a round-trip.
func (x *Exports) FlushExports(ctx context.Context, pc *PassContext) error {
	brokerID := pc.Broker.BrokerID

	pending, err := x.exports.ListPending(ctx, nil, brokerID)
	if err != nil {
		return fmt.Errorf("list pending exports: %w", err)
	}

	for _, rec := range pending {
		targets := decodeTargets(rec.TargetMembers)

		if rec.Status == types.StatusDeleted {
			if rec.ResourceID != 0 {
				if err := pc.Client.DeleteResource(ctx, types.KindCourseLink, rec.ResourceID); err != nil {
					return fmt.Errorf("retract export: %w", err)
				}
			}
			if err := x.exports.DeleteByIDs(ctx, nil, []uuid.UUID{rec.ID}); err != nil {
				return fmt.Errorf("delete export record: %w", err)
			}
			continue
		}

		shortname, err := x.courses.CourseShortname(ctx, rec.CourseID)
		if err != nil {
			return fmt.Errorf("read shortname: %w", err)
		}
		body := ecs.CourseLinkData{
			URL:      x.courses.CourseURL(rec.CourseID),
			Title:    shortname,
			CourseID: shortname,
		}

		if rec.Status == types.StatusCreated || rec.ResourceID == 0 {
			resourceID, err := pc.Client.AddResource(ctx, types.KindCourseLink, body, nil, targets)
			if err != nil {
				return fmt.Errorf("export course link: %w", err)
			}
			rec.ResourceID = resourceID
		} else {
			if err := pc.Client.UpdateResource(ctx, types.KindCourseLink, rec.ResourceID, body, nil, targets); err != nil {
				return fmt.Errorf("update exported course link: %w", err)
			}
		}
		rec.Status = types.StatusUpToDate
		rec.UpdatedAt = time.Now()
		if err := x.exports.Save(ctx, nil, rec); err != nil {
			return fmt.Errorf("save export record: %w", err)
		}
	}
	return nil
}
