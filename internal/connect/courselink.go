package connect

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/edubridge/campusconnect/internal/data/repos"
	types "github.com/edubridge/campusconnect/internal/domain"
	"github.com/edubridge/campusconnect/internal/ecs"
	"github.com/edubridge/campusconnect/internal/host"
	ccerrors "github.com/edubridge/campusconnect/internal/pkg/errors"
	"github.com/edubridge/campusconnect/internal/platform/logger"
)

// CourseLinks reconciles remote participants' exported courses into
// lightweight placeholder courses that redirect to the remote host.
type CourseLinks struct {
	log     *logger.Logger
	links   repos.CourseLinkRepo
	trees   *DirectoryTrees
	courses host.Courses
}

func NewCourseLinks(links repos.CourseLinkRepo, trees *DirectoryTrees, courses host.Courses, baseLog *logger.Logger) *CourseLinks {
	return &CourseLinks{
		log:     baseLog.With("service", "CourseLinks"),
		links:   links,
		trees:   trees,
		courses: courses,
	}
}

// Apply upserts one course-link resource. Placeholders land in the
// broker's import category; without one configured the event stays
// queued until an admin picks a category.
func (l *CourseLinks) Apply(ctx context.Context, pc *PassContext, resourceID int64, data *ecs.CourseLinkData, meta *ecs.TransferMeta) (Outcome, error) {
	brokerID := pc.Broker.BrokerID

	existing, err := l.links.GetByResource(ctx, nil, brokerID, resourceID)
	if err != nil {
		return OutcomeNotYetReady, fmt.Errorf("load course link: %w", err)
	}

	title := data.Title
	if title == "" {
		title = data.URL
	}
	summary := data.Organization
	if data.Term != "" {
		if summary != "" {
			summary += ", "
		}
		summary += data.Term
	}

	if existing == nil {
		if pc.Broker.ImportCategoryID == 0 {
			return OutcomeNotYetReady, nil
		}
		shortname := data.CourseID
		if shortname == "" {
			shortname = fmt.Sprintf("link-%d-%d", brokerID, resourceID)
		}
		courseID, err := l.courses.CreateCourse(ctx, host.CourseSpec{
			Fullname:   title,
			Shortname:  shortname,
			Summary:    summary,
			CategoryID: pc.Broker.ImportCategoryID,
		})
		if err != nil {
			return OutcomeNotYetReady, fmt.Errorf("create placeholder course: %w", err)
		}
		senderMID := 0
		if meta != nil {
			senderMID = meta.SenderMID
		}
		now := time.Now()
		rec := &types.CourseLinkRecord{
			ID:          uuid.New(),
			BrokerID:    brokerID,
			ResourceID:  resourceID,
			CourseID:    courseID,
			CmsCourseID: data.CourseID,
			SenderMID:   senderMID,
			URL:         data.URL,
			Title:       title,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := l.links.Create(ctx, nil, rec); err != nil {
			return OutcomeNotYetReady, fmt.Errorf("create course link record: %w", err)
		}
		l.log.Info("Course link created",
			"broker_id", brokerID, "resource_id", resourceID, "course_id", courseID)
		return OutcomeApplied, nil
	}

	if meta != nil && existing.SenderMID != 0 && meta.SenderMID != existing.SenderMID {
		l.log.Warn("Dropping course link update from unauthorized sender",
			"broker_id", brokerID, "resource_id", resourceID,
			"sender_mid", meta.SenderMID, "expected_mid", existing.SenderMID)
		return OutcomeAuthorizationDropped, nil
	}

	exists, err := l.courses.CourseExists(ctx, existing.CourseID)
	if err != nil {
		return OutcomeNotYetReady, fmt.Errorf("check placeholder course: %w", err)
	}
	if !exists {
		// Recreate the placeholder, keeping the record's identity.
		if pc.Broker.ImportCategoryID == 0 {
			return OutcomeNotYetReady, nil
		}
		courseID, err := l.courses.CreateCourse(ctx, host.CourseSpec{
			Fullname:   title,
			Shortname:  data.CourseID,
			Summary:    summary,
			CategoryID: pc.Broker.ImportCategoryID,
		})
		if err != nil {
			return OutcomeNotYetReady, fmt.Errorf("recreate placeholder course: %w", err)
		}
		existing.CourseID = courseID
	} else {
		current, err := l.courses.CourseShortname(ctx, existing.CourseID)
		if err != nil {
			return OutcomeNotYetReady, fmt.Errorf("read shortname: %w", err)
		}
		category, err := l.courses.CourseCategory(ctx, existing.CourseID)
		if err != nil {
			return OutcomeNotYetReady, fmt.Errorf("read category: %w", err)
		}
		if err := l.courses.UpdateCourse(ctx, existing.CourseID, host.CourseSpec{
			Fullname:   title,
			Shortname:  current,
			Summary:    summary,
			CategoryID: category,
		}); err != nil {
			return OutcomeNotYetReady, fmt.Errorf("update placeholder course: %w", err)
		}
	}

	existing.URL = data.URL
	existing.Title = title
	existing.CmsCourseID = data.CourseID
	existing.UpdatedAt = time.Now()
	if err := l.links.Save(ctx, nil, existing); err != nil {
		return OutcomeNotYetReady, fmt.Errorf("save course link record: %w", err)
	}
	return OutcomeApplied, nil
}

// RedirectURL builds the remote entry URL for one placeholder course.
// A short-lived auth token is registered at the broker for the sending
// participant, so the remote host can admit the visiting user without
// a prior account there.
func (l *CourseLinks) RedirectURL(ctx context.Context, pc *PassContext, courseID int64, personID, personIDType string) (string, error) {
	link, err := l.links.GetByCourse(ctx, nil, pc.Broker.BrokerID, courseID)
	if err != nil {
		return "", fmt.Errorf("load course link: %w", err)
	}
	if link == nil {
		return "", fmt.Errorf("%w: no course link for course %d", ccerrors.ErrNotFound, courseID)
	}

	hash, err := pc.Client.AddAuthToken(ctx, ecs.AuthTokenPayload{
		PersonID:     personID,
		PersonIDType: personIDType,
		CourseID:     link.CmsCourseID,
		Realm:        link.URL,
	}, link.SenderMID)
	if err != nil {
		return "", fmt.Errorf("register auth token: %w", err)
	}

	sep := "?"
	if strings.Contains(link.URL, "?") {
		sep = "&"
	}
	return link.URL + sep + "ecs_hash=" + url.QueryEscape(hash), nil
}

// Delete removes the placeholder course of a destroyed link resource.
func (l *CourseLinks) Delete(ctx context.Context, pc *PassContext, resourceID int64) (Outcome, error) {
	brokerID := pc.Broker.BrokerID

	existing, err := l.links.GetByResource(ctx, nil, brokerID, resourceID)
	if err != nil {
		return OutcomeNotYetReady, fmt.Errorf("load course link: %w", err)
	}
	if existing == nil {
		return OutcomeApplied, nil
	}

	exists, err := l.courses.CourseExists(ctx, existing.CourseID)
	if err != nil {
		return OutcomeNotYetReady, fmt.Errorf("check placeholder course: %w", err)
	}
	if exists {
		if err := l.courses.DeleteCourse(ctx, existing.CourseID); err != nil {
			return OutcomeNotYetReady, fmt.Errorf("delete placeholder course: %w", err)
		}
	}
	if err := l.links.DeleteByIDs(ctx, nil, []uuid.UUID{existing.ID}); err != nil {
		return OutcomeNotYetReady, fmt.Errorf("delete course link record: %w", err)
	}
	l.log.Info("Course link deleted", "broker_id", brokerID, "resource_id", resourceID)
	return OutcomeApplied, nil
}
