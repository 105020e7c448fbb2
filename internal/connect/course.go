package connect

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edubridge/campusconnect/internal/data/repos"
	types "github.com/edubridge/campusconnect/internal/domain"
	"github.com/edubridge/campusconnect/internal/ecs"
	"github.com/edubridge/campusconnect/internal/host"
	ccerrors "github.com/edubridge/campusconnect/internal/pkg/errors"
	"github.com/edubridge/campusconnect/internal/platform/logger"
)

// Courses reconciles broker course resources into local courses: one
// per resolved category and parallel-group course, linked through the
// canonical record.
type Courses struct {
	log     *logger.Logger
	records repos.CourseRecordRepo
	pgroupR repos.PGroupRepo
	trees   *DirectoryTrees
	pgroups *ParallelGroups
	courses host.Courses

	// mu serializes course materialization; the shortname probe is
	// check-then-create and concurrent passes must not interleave it.
	mu sync.Mutex
}

func NewCourses(records repos.CourseRecordRepo, pgroupR repos.PGroupRepo, trees *DirectoryTrees, pgroups *ParallelGroups, courses host.Courses, baseLog *logger.Logger) *Courses {
	return &Courses{
		log:     baseLog.With("service", "Courses"),
		records: records,
		pgroupR: pgroupR,
		trees:   trees,
		pgroups: pgroups,
		courses: courses,
	}
}

// categoryTarget is one resolved placement of a course resource.
type categoryTarget struct {
	DirectoryID int64
	CategoryID  int64
	SortOrder   int64
}

// resolveCategories maps the resource's directory allocations onto
// host categories. ok is false while nothing is resolvable yet; the
// broker's import category serves as fallback for resources without
// allocations.
func (c *Courses) resolveCategories(ctx context.Context, pc *PassContext, data *ecs.CourseData) ([]categoryTarget, bool, error) {
	var out []categoryTarget
	seen := map[int64]bool{}
	for _, alloc := range data.Allocations {
		categoryID, ok, err := c.trees.CategoryFor(ctx, pc, alloc.ParentID)
		if err != nil {
			return nil, false, err
		}
		if !ok || seen[categoryID] {
			continue
		}
		seen[categoryID] = true
		out = append(out, categoryTarget{
			DirectoryID: alloc.ParentID,
			CategoryID:  categoryID,
			SortOrder:   int64(alloc.Order),
		})
	}
	if len(out) > 0 {
		return out, true, nil
	}
	if len(data.Allocations) == 0 && pc.Broker.ImportCategoryID != 0 {
		return []categoryTarget{{CategoryID: pc.Broker.ImportCategoryID}}, true, nil
	}
	return nil, false, nil
}

// courseHash fingerprints the resource body together with its resolved
// placement, so unchanged refresh passes become no-ops.
func courseHash(data *ecs.CourseData, cats []categoryTarget) string {
	payload := struct {
		Data *ecs.CourseData  `json:"data"`
		Cats []categoryTarget `json:"cats"`
	}{data, cats}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func shortnameBase(data *ecs.CourseData) string {
	if data.LectureID != "" {
		return data.LectureID
	}
	return data.Title
}

func courseSummary(data *ecs.CourseData) string {
	parts := make([]string, 0, 2)
	if data.Organisation != "" {
		parts = append(parts, data.Organisation)
	}
	if data.Term != "" {
		parts = append(parts, data.Term)
	}
	return strings.Join(parts, ", ")
}

// courseTitle suffixes the group title when the resource splits into
// several local courses.
func courseTitle(data *ecs.CourseData, set []PGroup, multi bool) string {
	if multi && len(set) == 1 && set[0].Title != "" {
		return fmt.Sprintf("%s (%s)", data.Title, set[0].Title)
	}
	return data.Title
}

// shortnameVariant reports whether current is base or base_N.
func shortnameVariant(base, current string) bool {
	if current == base {
		return true
	}
	if !strings.HasPrefix(current, base+"_") {
		return false
	}
	suffix := current[len(base)+1:]
	if suffix == "" {
		return false
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// uniqueShortname probes base, base_2, base_3, ... and returns the
// first free name. A current name that is already a variant of base is
// kept as is.
func (c *Courses) uniqueShortname(ctx context.Context, base, current string) (string, error) {
	if current != "" && shortnameVariant(base, current) {
		return current, nil
	}
	name := base
	for i := 2; ; i++ {
		exists, err := c.courses.ShortnameExists(ctx, name)
		if err != nil {
			return "", fmt.Errorf("probe shortname: %w", err)
		}
		if !exists {
			return name, nil
		}
		if i > 10000 {
			return "", fmt.Errorf("%w: no free shortname for %q", ccerrors.ErrConsistency, base)
		}
		name = fmt.Sprintf("%s_%d", base, i)
	}
}

// Create materializes a course resource for the first time: one local
// course per category and parallel-group course. The very first course
// created is canonical and the only one registered for URL export.
func (c *Courses) Create(ctx context.Context, pc *PassContext, resourceID int64, data *ecs.CourseData, meta *ecs.TransferMeta) (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.create(ctx, pc, resourceID, data, meta)
}

func (c *Courses) create(ctx context.Context, pc *PassContext, resourceID int64, data *ecs.CourseData, meta *ecs.TransferMeta) (Outcome, error) {
	brokerID := pc.Broker.BrokerID

	if meta != nil && pc.CmsMemberID(ctx) != 0 && meta.SenderMID != pc.CmsMemberID(ctx) {
		c.log.Warn("Dropping course event from unauthorized sender",
			"broker_id", brokerID, "resource_id", resourceID, "sender_mid", meta.SenderMID)
		return OutcomeAuthorizationDropped, nil
	}

	cats, ok, err := c.resolveCategories(ctx, pc, data)
	if err != nil {
		return OutcomeNotYetReady, err
	}
	if !ok {
		return OutcomeNotYetReady, nil
	}

	grouped, scenario := GetParallelGroups(data)
	multi := len(grouped) > 1
	base := shortnameBase(data)
	summary := courseSummary(data)

	sourceMID := pc.CmsMemberID(ctx)
	if meta != nil {
		sourceMID = meta.SenderMID
	}

	var canonical *types.CourseRecord
	var records []*types.CourseRecord
	assignment := map[int64][]PGroup{}

	for _, set := range grouped {
		title := courseTitle(data, set, multi)
		var primaryID int64
		for ci, cat := range cats {
			shortname, err := c.uniqueShortname(ctx, base, "")
			if err != nil {
				return OutcomeNotYetReady, err
			}
			redirect := int64(0)
			if ci > 0 {
				redirect = primaryID
			}
			courseID, err := c.courses.CreateCourse(ctx, host.CourseSpec{
				Fullname:   title,
				Shortname:  shortname,
				Summary:    summary,
				CategoryID: cat.CategoryID,
				RedirectTo: redirect,
			})
			if err != nil {
				return OutcomeNotYetReady, fmt.Errorf("create course: %w", err)
			}
			if ci == 0 {
				primaryID = courseID
				assignment[courseID] = set
			}

			now := time.Now()
			rec := &types.CourseRecord{
				ID:             uuid.New(),
				BrokerID:       brokerID,
				ResourceID:     resourceID,
				CmsCourseID:    data.LectureID,
				CourseID:       courseID,
				SourceMemberID: sourceMID,
				DirectoryID:    cat.DirectoryID,
				SortOrder:      cat.SortOrder,
				URLStatus:      types.StatusUpToDate,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if canonical == nil {
				canonical = rec
				rec.URLStatus = types.StatusCreated
				rec.ContentHash = courseHash(data, cats)
			} else {
				rec.InternalLink = canonical.CourseID
			}
			records = append(records, rec)
		}
	}

	if err := c.records.Create(ctx, nil, records); err != nil {
		return OutcomeNotYetReady, fmt.Errorf("create course records: %w", err)
	}
	if err := c.pgroups.Update(ctx, pc, resourceID, data.LectureID, scenario, assignment); err != nil {
		return OutcomeNotYetReady, err
	}
	for _, cat := range cats {
		if cat.DirectoryID == 0 {
			continue
		}
		if err := c.trees.MarkCategoryUsed(ctx, brokerID, cat.DirectoryID); err != nil {
			return OutcomeNotYetReady, err
		}
	}

	c.log.Info("Course resource created",
		"broker_id", brokerID, "resource_id", resourceID,
		"cms_course_id", data.LectureID, "courses", len(records))
	return OutcomeApplied, nil
}

// Changed reports whether an update would do any work, without
// applying it. Used by the refresh pass to keep second runs no-ops.
func (c *Courses) Changed(ctx context.Context, pc *PassContext, resourceID int64, data *ecs.CourseData) (bool, error) {
	canonical, err := c.records.GetCanonical(ctx, nil, pc.Broker.BrokerID, resourceID)
	if err != nil || canonical == nil {
		return true, err
	}
	cats, ok, err := c.resolveCategories(ctx, pc, data)
	if err != nil || !ok {
		return true, err
	}
	if canonical.ContentHash != courseHash(data, cats) {
		return true, nil
	}
	exists, err := c.courses.CourseExists(ctx, canonical.CourseID)
	if err != nil {
		return true, err
	}
	return !exists, nil
}

// Update reconciles new resource data against the existing local
// records: category diff, parallel-group matching, orphan repair,
// metadata refresh and the canonical-position invariant.
func (c *Courses) Update(ctx context.Context, pc *PassContext, resourceID int64, data *ecs.CourseData, meta *ecs.TransferMeta) (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	brokerID := pc.Broker.BrokerID

	existing, err := c.records.GetByResource(ctx, nil, brokerID, resourceID)
	if err != nil {
		return OutcomeNotYetReady, fmt.Errorf("load course records: %w", err)
	}
	if len(existing) == 0 {
		return c.create(ctx, pc, resourceID, data, meta)
	}

	var canonical *types.CourseRecord
	for _, rec := range existing {
		if rec.Canonical() {
			canonical = rec
			break
		}
	}
	if canonical == nil {
		return OutcomeNotYetReady, fmt.Errorf("%w: resource %d has no canonical course record", ccerrors.ErrConsistency, resourceID)
	}

	if meta != nil && canonical.SourceMemberID != 0 && meta.SenderMID != canonical.SourceMemberID {
		c.log.Warn("Dropping course update from unauthorized sender",
			"broker_id", brokerID, "resource_id", resourceID,
			"sender_mid", meta.SenderMID, "expected_mid", canonical.SourceMemberID)
		return OutcomeAuthorizationDropped, nil
	}

	cats, ok, err := c.resolveCategories(ctx, pc, data)
	if err != nil {
		return OutcomeNotYetReady, err
	}
	if !ok {
		return OutcomeNotYetReady, nil
	}

	hash := courseHash(data, cats)
	if canonical.ContentHash == hash {
		exists, err := c.courses.CourseExists(ctx, canonical.CourseID)
		if err != nil {
			return OutcomeNotYetReady, fmt.Errorf("check canonical course: %w", err)
		}
		if exists {
			return OutcomeApplied, nil
		}
	}

	grouped, scenario := GetParallelGroups(data)
	multi := len(grouped) > 1
	base := shortnameBase(data)
	summary := courseSummary(data)

	prior, err := c.pgroupR.GetByCmsCourse(ctx, nil, brokerID, canonical.CmsCourseID)
	if err != nil {
		return OutcomeNotYetReady, fmt.Errorf("load pgroups: %w", err)
	}
	matched, unmatched := MatchGroupsToCourses(prior, grouped, canonical.CourseID)
	matchedCourse := map[int64]bool{}
	for id := range matched {
		matchedCourse[id] = true
	}

	catByDir := map[int64]categoryTarget{}
	for _, cat := range cats {
		catByDir[cat.DirectoryID] = cat
	}

	// Partition existing records into retained and dropped categories.
	occupied := map[int64]int{}
	var removed, survivors []*types.CourseRecord
	for _, rec := range existing {
		if _, ok := catByDir[rec.DirectoryID]; ok {
			occupied[rec.DirectoryID]++
			survivors = append(survivors, rec)
		} else {
			removed = append(removed, rec)
		}
	}
	var newDirs []categoryTarget
	for _, cat := range cats {
		if occupied[cat.DirectoryID] == 0 {
			newDirs = append(newDirs, cat)
		}
	}

	// Dropped categories: relocate into a newly-required category when
	// one is free; the canonical course and matched group courses are
	// never deleted, they fall back into the first category instead.
	for _, rec := range removed {
		if len(newDirs) > 0 {
			dir := newDirs[0]
			newDirs = newDirs[1:]
			if err := c.courses.MoveCourse(ctx, rec.CourseID, dir.CategoryID); err != nil {
				return OutcomeNotYetReady, fmt.Errorf("relocate course: %w", err)
			}
			rec.DirectoryID = dir.DirectoryID
			rec.SortOrder = dir.SortOrder
			rec.UpdatedAt = time.Now()
			if err := c.records.Save(ctx, nil, rec); err != nil {
				return OutcomeNotYetReady, fmt.Errorf("save relocated record: %w", err)
			}
			occupied[dir.DirectoryID]++
			survivors = append(survivors, rec)
			continue
		}

		if rec.Canonical() || matchedCourse[rec.CourseID] {
			first := cats[0]
			if rec.Canonical() {
				// Displace the redirect currently holding the slot.
				for i, occ := range survivors {
					if occ.DirectoryID != first.DirectoryID || occ.Canonical() || matchedCourse[occ.CourseID] {
						continue
					}
					if err := c.deleteHostCourse(ctx, occ.CourseID); err != nil {
						return OutcomeNotYetReady, err
					}
					if err := c.records.DeleteByIDs(ctx, nil, []uuid.UUID{occ.ID}); err != nil {
						return OutcomeNotYetReady, fmt.Errorf("delete displaced record: %w", err)
					}
					survivors = append(survivors[:i], survivors[i+1:]...)
					occupied[first.DirectoryID]--
					break
				}
			}
			if err := c.courses.MoveCourse(ctx, rec.CourseID, first.CategoryID); err != nil {
				return OutcomeNotYetReady, fmt.Errorf("relocate course: %w", err)
			}
			rec.DirectoryID = first.DirectoryID
			rec.SortOrder = first.SortOrder
			rec.UpdatedAt = time.Now()
			if err := c.records.Save(ctx, nil, rec); err != nil {
				return OutcomeNotYetReady, fmt.Errorf("save relocated record: %w", err)
			}
			occupied[first.DirectoryID]++
			survivors = append(survivors, rec)
			continue
		}

		if err := c.deleteHostCourse(ctx, rec.CourseID); err != nil {
			return OutcomeNotYetReady, err
		}
		if err := c.records.DeleteByIDs(ctx, nil, []uuid.UUID{rec.ID}); err != nil {
			return OutcomeNotYetReady, fmt.Errorf("delete dropped record: %w", err)
		}
	}

	// Out-of-band course deletion: links lose their record, the
	// canonical course is recreated and every redirect repointed.
	kept := survivors[:0]
	dead := map[uuid.UUID]bool{}
	for _, rec := range survivors {
		exists, err := c.courses.CourseExists(ctx, rec.CourseID)
		if err != nil {
			return OutcomeNotYetReady, fmt.Errorf("check course: %w", err)
		}
		if exists {
			kept = append(kept, rec)
			continue
		}
		if !rec.Canonical() {
			if err := c.records.DeleteByIDs(ctx, nil, []uuid.UUID{rec.ID}); err != nil {
				return OutcomeNotYetReady, fmt.Errorf("delete orphaned record: %w", err)
			}
			dead[rec.ID] = true
			occupied[rec.DirectoryID]--
			continue
		}

		first := cats[0]
		shortname, err := c.uniqueShortname(ctx, base, "")
		if err != nil {
			return OutcomeNotYetReady, err
		}
		newID, err := c.courses.CreateCourse(ctx, host.CourseSpec{
			Fullname:   data.Title,
			Shortname:  shortname,
			Summary:    summary,
			CategoryID: first.CategoryID,
		})
		if err != nil {
			return OutcomeNotYetReady, fmt.Errorf("recreate canonical course: %w", err)
		}
		oldID := rec.CourseID
		rec.CourseID = newID
		rec.DirectoryID = first.DirectoryID
		rec.SortOrder = first.SortOrder
		rec.URLStatus = types.StatusUpdated
		rec.UpdatedAt = time.Now()
		if err := c.records.Save(ctx, nil, rec); err != nil {
			return OutcomeNotYetReady, fmt.Errorf("save recreated canonical: %w", err)
		}
		for _, other := range survivors {
			if other == rec || dead[other.ID] || other.InternalLink != oldID {
				continue
			}
			other.InternalLink = newID
			other.UpdatedAt = time.Now()
			if err := c.records.Save(ctx, nil, other); err != nil {
				return OutcomeNotYetReady, fmt.Errorf("repoint redirect: %w", err)
			}
		}
		if set, ok := matched[oldID]; ok {
			delete(matched, oldID)
			matched[newID] = set
			matchedCourse[newID] = true
		}
		kept = append(kept, rec)
	}
	survivors = kept

	// Metadata refresh on everything that survived.
	for _, rec := range survivors {
		cat, ok := catByDir[rec.DirectoryID]
		if !ok {
			cat = cats[0]
		}
		title := data.Title
		if set, ok := matched[rec.CourseID]; ok {
			title = courseTitle(data, set, multi)
		}
		current, err := c.courses.CourseShortname(ctx, rec.CourseID)
		if err != nil {
			return OutcomeNotYetReady, fmt.Errorf("read shortname: %w", err)
		}
		shortname, err := c.uniqueShortname(ctx, base, current)
		if err != nil {
			return OutcomeNotYetReady, err
		}
		redirect := int64(0)
		if !rec.Canonical() && !matchedCourse[rec.CourseID] {
			redirect = canonical.CourseID
		}
		if err := c.courses.UpdateCourse(ctx, rec.CourseID, host.CourseSpec{
			Fullname:   title,
			Shortname:  shortname,
			Summary:    summary,
			CategoryID: cat.CategoryID,
			RedirectTo: redirect,
		}); err != nil {
			return OutcomeNotYetReady, fmt.Errorf("update course: %w", err)
		}
		if rec.SortOrder != cat.SortOrder {
			rec.SortOrder = cat.SortOrder
			rec.UpdatedAt = time.Now()
			if err := c.records.Save(ctx, nil, rec); err != nil {
				return OutcomeNotYetReady, fmt.Errorf("save record: %w", err)
			}
		}
	}

	// Newly-required categories get redirect courses.
	for _, dir := range newDirs {
		shortname, err := c.uniqueShortname(ctx, base, "")
		if err != nil {
			return OutcomeNotYetReady, err
		}
		courseID, err := c.courses.CreateCourse(ctx, host.CourseSpec{
			Fullname:   data.Title,
			Shortname:  shortname,
			Summary:    summary,
			CategoryID: dir.CategoryID,
			RedirectTo: canonical.CourseID,
		})
		if err != nil {
			return OutcomeNotYetReady, fmt.Errorf("create redirect course: %w", err)
		}
		now := time.Now()
		rec := &types.CourseRecord{
			ID:             uuid.New(),
			BrokerID:       brokerID,
			ResourceID:     resourceID,
			CmsCourseID:    canonical.CmsCourseID,
			CourseID:       courseID,
			SourceMemberID: canonical.SourceMemberID,
			InternalLink:   canonical.CourseID,
			DirectoryID:    dir.DirectoryID,
			SortOrder:      dir.SortOrder,
			URLStatus:      types.StatusUpToDate,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := c.records.Create(ctx, nil, []*types.CourseRecord{rec}); err != nil {
			return OutcomeNotYetReady, fmt.Errorf("create redirect record: %w", err)
		}
		survivors = append(survivors, rec)
	}

	if err := c.repairCanonicalPosition(ctx, survivors, canonical, cats[0], catByDir, matchedCourse); err != nil {
		return OutcomeNotYetReady, err
	}

	// Brand-new group sets become additional courses in the first
	// category.
	assignment := matched
	for _, set := range unmatched {
		title := courseTitle(data, set, multi)
		shortname, err := c.uniqueShortname(ctx, base, "")
		if err != nil {
			return OutcomeNotYetReady, err
		}
		courseID, err := c.courses.CreateCourse(ctx, host.CourseSpec{
			Fullname:   title,
			Shortname:  shortname,
			Summary:    summary,
			CategoryID: cats[0].CategoryID,
		})
		if err != nil {
			return OutcomeNotYetReady, fmt.Errorf("create group course: %w", err)
		}
		now := time.Now()
		rec := &types.CourseRecord{
			ID:             uuid.New(),
			BrokerID:       brokerID,
			ResourceID:     resourceID,
			CmsCourseID:    canonical.CmsCourseID,
			CourseID:       courseID,
			SourceMemberID: canonical.SourceMemberID,
			InternalLink:   canonical.CourseID,
			DirectoryID:    cats[0].DirectoryID,
			SortOrder:      cats[0].SortOrder,
			URLStatus:      types.StatusUpToDate,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := c.records.Create(ctx, nil, []*types.CourseRecord{rec}); err != nil {
			return OutcomeNotYetReady, fmt.Errorf("create group record: %w", err)
		}
		assignment[courseID] = set
	}

	if err := c.pgroups.Update(ctx, pc, resourceID, canonical.CmsCourseID, scenario, assignment); err != nil {
		return OutcomeNotYetReady, err
	}

	canonical.ContentHash = hash
	canonical.UpdatedAt = time.Now()
	if err := c.records.Save(ctx, nil, canonical); err != nil {
		return OutcomeNotYetReady, fmt.Errorf("save canonical: %w", err)
	}
	for _, cat := range cats {
		if cat.DirectoryID == 0 {
			continue
		}
		if err := c.trees.MarkCategoryUsed(ctx, brokerID, cat.DirectoryID); err != nil {
			return OutcomeNotYetReady, err
		}
	}

	c.log.Info("Course resource updated",
		"broker_id", brokerID, "resource_id", resourceID, "cms_course_id", canonical.CmsCourseID)
	return OutcomeApplied, nil
}

// repairCanonicalPosition enforces the invariant that the canonical
// course physically resides in the first resolved category, swapping
// placements with the redirect currently holding that slot.
func (c *Courses) repairCanonicalPosition(ctx context.Context, recs []*types.CourseRecord, canonical *types.CourseRecord, first categoryTarget, catByDir map[int64]categoryTarget, matchedCourse map[int64]bool) error {
	if canonical.DirectoryID == first.DirectoryID {
		return nil
	}

	var occupant *types.CourseRecord
	for _, rec := range recs {
		if rec != canonical && rec.DirectoryID == first.DirectoryID && !matchedCourse[rec.CourseID] {
			occupant = rec
			break
		}
	}

	oldDirID := canonical.DirectoryID
	oldSort := canonical.SortOrder
	if err := c.courses.MoveCourse(ctx, canonical.CourseID, first.CategoryID); err != nil {
		return fmt.Errorf("move canonical course: %w", err)
	}
	canonical.DirectoryID = first.DirectoryID
	canonical.SortOrder = first.SortOrder
	canonical.UpdatedAt = time.Now()
	if err := c.records.Save(ctx, nil, canonical); err != nil {
		return fmt.Errorf("save canonical: %w", err)
	}
	if occupant == nil {
		return nil
	}

	oldCat, ok := catByDir[oldDirID]
	if !ok {
		return nil
	}
	if err := c.courses.MoveCourse(ctx, occupant.CourseID, oldCat.CategoryID); err != nil {
		return fmt.Errorf("move displaced course: %w", err)
	}
	occupant.DirectoryID = oldDirID
	occupant.SortOrder = oldSort
	occupant.UpdatedAt = time.Now()
	if err := c.records.Save(ctx, nil, occupant); err != nil {
		return fmt.Errorf("save displaced record: %w", err)
	}
	return nil
}

func (c *Courses) deleteHostCourse(ctx context.Context, courseID int64) error {
	exists, err := c.courses.CourseExists(ctx, courseID)
	if err != nil {
		return fmt.Errorf("check course: %w", err)
	}
	if !exists {
		return nil
	}
	if err := c.courses.DeleteCourse(ctx, courseID); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return nil
}

// Delete tears down every local course of a destroyed resource. The
// canonical record outlives its course while a URL is still registered
// at the broker so the URL export can retract it.
func (c *Courses) Delete(ctx context.Context, pc *PassContext, resourceID int64) (Outcome, error) {
	brokerID := pc.Broker.BrokerID

	existing, err := c.records.GetByResource(ctx, nil, brokerID, resourceID)
	if err != nil {
		return OutcomeNotYetReady, fmt.Errorf("load course records: %w", err)
	}
	if len(existing) == 0 {
		return OutcomeApplied, nil
	}

	var canonical *types.CourseRecord
	for _, rec := range existing {
		if rec.Canonical() {
			canonical = rec
			continue
		}
		if err := c.deleteHostCourse(ctx, rec.CourseID); err != nil {
			return OutcomeNotYetReady, err
		}
		if err := c.records.DeleteByIDs(ctx, nil, []uuid.UUID{rec.ID}); err != nil {
			return OutcomeNotYetReady, fmt.Errorf("delete record: %w", err)
		}
	}

	if canonical != nil {
		prior, err := c.pgroupR.GetByCmsCourse(ctx, nil, brokerID, canonical.CmsCourseID)
		if err != nil {
			return OutcomeNotYetReady, fmt.Errorf("load pgroups: %w", err)
		}
		ids := make([]uuid.UUID, 0, len(prior))
		for _, g := range prior {
			ids = append(ids, g.ID)
		}
		if err := c.pgroupR.DeleteByIDs(ctx, nil, ids); err != nil {
			return OutcomeNotYetReady, fmt.Errorf("delete pgroup records: %w", err)
		}

		if err := c.deleteHostCourse(ctx, canonical.CourseID); err != nil {
			return OutcomeNotYetReady, err
		}
		if canonical.URLResourceID != 0 {
			canonical.URLStatus = types.StatusDeleted
			canonical.UpdatedAt = time.Now()
			if err := c.records.Save(ctx, nil, canonical); err != nil {
				return OutcomeNotYetReady, fmt.Errorf("save canonical: %w", err)
			}
		} else {
			if err := c.records.DeleteByIDs(ctx, nil, []uuid.UUID{canonical.ID}); err != nil {
				return OutcomeNotYetReady, fmt.Errorf("delete canonical record: %w", err)
			}
		}
	}

	c.log.Info("Course resource deleted", "broker_id", brokerID, "resource_id", resourceID)
	return OutcomeApplied, nil
}
