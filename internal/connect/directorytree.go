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
	ccerrors "github.com/edubridge/campusconnect/internal/pkg/errors"
	"github.com/edubridge/campusconnect/internal/platform/logger"
)

// Ancestor chains longer than this indicate malformed upstream data.
const maxDirectoryDepth = 64

// DirectoryTrees maintains the mapping between broker directory nodes
// and host category tree nodes.
type DirectoryTrees struct {
	log        *logger.Logger
	dirs       repos.DirectoryRepo
	categories host.Categories
	courses    host.Courses
}

func NewDirectoryTrees(dirs repos.DirectoryRepo, categories host.Categories, courses host.Courses, baseLog *logger.Logger) *DirectoryTrees {
	return &DirectoryTrees{
		log:        baseLog.With("service", "DirectoryTrees"),
		dirs:       dirs,
		categories: categories,
		courses:    courses,
	}
}

// Apply upserts one directory-tree resource into local state. New
// trees start in Pending mode awaiting an admin's mapping decision.
func (d *DirectoryTrees) Apply(ctx context.Context, pc *PassContext, resourceID int64, data *ecs.DirectoryTreeData, meta *ecs.TransferMeta) (Outcome, error) {
	brokerID := pc.Broker.BrokerID

	tree, err := d.dirs.GetTree(ctx, nil, brokerID, data.RootID)
	if err != nil {
		return OutcomeNotYetReady, fmt.Errorf("load tree: %w", err)
	}
	if tree == nil {
		now := time.Now()
		tree = &types.DirectoryTree{
			ID:             uuid.New(),
			BrokerID:       brokerID,
			RootID:         data.RootID,
			ResourceID:     resourceID,
			Title:          data.Title,
			SourceMemberID: meta.SenderMID,
			Mode:           types.TreeModePending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := d.dirs.CreateTree(ctx, nil, tree); err != nil {
			return OutcomeNotYetReady, fmt.Errorf("create tree: %w", err)
		}
	} else {
		dirty := false
		if tree.ResourceID != resourceID {
			tree.ResourceID = resourceID
			dirty = true
		}
		if data.Title != "" && tree.Title != data.Title {
			tree.Title = data.Title
			if tree.TakeoverTitle && tree.CategoryID != nil {
				if err := d.categories.RenameCategory(ctx, *tree.CategoryID, data.Title); err != nil {
					return OutcomeNotYetReady, fmt.Errorf("rename mapped category: %w", err)
				}
			}
			dirty = true
		}
		if dirty {
			tree.UpdatedAt = time.Now()
			if err := d.dirs.SaveTree(ctx, nil, tree); err != nil {
				return OutcomeNotYetReady, fmt.Errorf("save tree: %w", err)
			}
		}
	}

	if err := d.applyNodes(ctx, brokerID, tree, data); err != nil {
		return OutcomeNotYetReady, err
	}
	pc.InvalidateNodes(tree.RootID)
	return OutcomeApplied, nil
}

func (d *DirectoryTrees) applyNodes(ctx context.Context, brokerID int, tree *types.DirectoryTree, data *ecs.DirectoryTreeData) error {
	existing, err := d.dirs.ListNodes(ctx, nil, brokerID, tree.RootID)
	if err != nil {
		return fmt.Errorf("load nodes: %w", err)
	}
	byID := make(map[int64]*types.Directory, len(existing))
	for _, node := range existing {
		byID[node.DirectoryID] = node
	}

	incoming := data.Nodes
	// The root participates like any node; synthesize it when the
	// payload carries children only.
	hasRoot := false
	for _, n := range incoming {
		if n.ID == data.RootID {
			hasRoot = true
			break
		}
	}
	if !hasRoot {
		incoming = append([]ecs.DirectoryNode{{ID: data.RootID, Title: data.Title}}, incoming...)
	}

	seen := map[int64]bool{}
	var created []*types.Directory
	for _, n := range incoming {
		seen[n.ID] = true
		node := byID[n.ID]
		if node == nil {
			now := time.Now()
			created = append(created, &types.Directory{
				ID:          uuid.New(),
				BrokerID:    brokerID,
				RootID:      tree.RootID,
				DirectoryID: n.ID,
				ParentID:    n.Parent.ID,
				Title:       n.Title,
				SortOrder:   n.Order,
				MappingKind: types.DirAutomatic,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
			continue
		}

		dirty := false
		if node.Title != n.Title && n.Title != "" {
			node.Title = n.Title
			if node.MappingKind == types.DirAutomatic && node.CategoryID != nil {
				if err := d.categories.RenameCategory(ctx, *node.CategoryID, n.Title); err != nil {
					return fmt.Errorf("rename category of node %d: %w", n.ID, err)
				}
			}
			dirty = true
		}
		if node.ParentID != n.Parent.ID && n.ID != tree.RootID {
			node.ParentID = n.Parent.ID
			dirty = true
		}
		if node.SortOrder != n.Order {
			node.SortOrder = n.Order
			dirty = true
		}
		if node.MappingKind == types.DirDeleted {
			// The node came back upstream.
			node.MappingKind = types.DirAutomatic
			dirty = true
		}
		if dirty {
			node.UpdatedAt = time.Now()
			if err := d.dirs.SaveNode(ctx, nil, node); err != nil {
				return fmt.Errorf("save node %d: %w", n.ID, err)
			}
		}
	}
	if err := d.dirs.CreateNodes(ctx, nil, created); err != nil {
		return fmt.Errorf("create nodes: %w", err)
	}

	for id, node := range byID {
		if seen[id] || node.MappingKind == types.DirDeleted {
			continue
		}
		node.MappingKind = types.DirDeleted
		node.UpdatedAt = time.Now()
		if err := d.dirs.SaveNode(ctx, nil, node); err != nil {
			return fmt.Errorf("mark node %d deleted: %w", id, err)
		}
	}
	return nil
}

// Delete marks a destroyed tree resource. Deleted is terminal.
func (d *DirectoryTrees) Delete(ctx context.Context, pc *PassContext, resourceID int64) (Outcome, error) {
	brokerID := pc.Broker.BrokerID
	tree, err := d.dirs.GetTreeByResource(ctx, nil, brokerID, resourceID)
	if err != nil {
		return OutcomeNotYetReady, fmt.Errorf("load tree: %w", err)
	}
	if tree == nil {
		return OutcomeApplied, nil
	}

	tree.Mode = types.TreeModeDeleted
	tree.UpdatedAt = time.Now()
	if err := d.dirs.SaveTree(ctx, nil, tree); err != nil {
		return OutcomeNotYetReady, fmt.Errorf("save tree: %w", err)
	}

	nodes, err := d.dirs.ListNodes(ctx, nil, brokerID, tree.RootID)
	if err != nil {
		return OutcomeNotYetReady, fmt.Errorf("load nodes: %w", err)
	}
	for _, node := range nodes {
		if node.MappingKind == types.DirDeleted {
			continue
		}
		node.MappingKind = types.DirDeleted
		node.UpdatedAt = time.Now()
		if err := d.dirs.SaveNode(ctx, nil, node); err != nil {
			return OutcomeNotYetReady, fmt.Errorf("mark node deleted: %w", err)
		}
	}
	pc.InvalidateNodes(tree.RootID)
	return OutcomeApplied, nil
}

// SetTreeMode applies an admin's mapping-mode decision. Only
// Pending->Whole and Pending->Manual are legal transitions.
func (d *DirectoryTrees) SetTreeMode(ctx context.Context, brokerID int, rootID int64, mode string) error {
	tree, err := d.dirs.GetTree(ctx, nil, brokerID, rootID)
	if err != nil {
		return fmt.Errorf("load tree: %w", err)
	}
	if tree == nil {
		return fmt.Errorf("%w: tree %d", ccerrors.ErrNotFound, rootID)
	}
	if tree.Mode == mode {
		return nil
	}
	if tree.Mode != types.TreeModePending {
		return fmt.Errorf("%w: tree %d is %s, cannot become %s", ccerrors.ErrInvalidArgument, rootID, tree.Mode, mode)
	}
	if mode != types.TreeModeWhole && mode != types.TreeModeManual {
		return fmt.Errorf("%w: illegal tree mode %q", ccerrors.ErrInvalidArgument, mode)
	}
	tree.Mode = mode
	tree.UpdatedAt = time.Now()
	return d.dirs.SaveTree(ctx, nil, tree)
}

// ancestors walks parent ids up to the root, iteratively, with a depth
// guard against malformed upstream chains.
func (d *DirectoryTrees) ancestors(nodes []*types.Directory, node *types.Directory) ([]*types.Directory, error) {
	byID := make(map[int64]*types.Directory, len(nodes))
	for _, n := range nodes {
		byID[n.DirectoryID] = n
	}

	var chain []*types.Directory
	current := node
	for depth := 0; current.ParentID != 0; depth++ {
		if depth > maxDirectoryDepth {
			return nil, fmt.Errorf("%w: ancestor chain of directory %d exceeds depth %d",
				ccerrors.ErrConsistency, node.DirectoryID, maxDirectoryDepth)
		}
		parent, ok := byID[current.ParentID]
		if !ok {
			return nil, fmt.Errorf("%w: directory %d has unknown parent %d",
				ccerrors.ErrConsistency, current.DirectoryID, current.ParentID)
		}
		chain = append(chain, parent)
		current = parent
	}
	return chain, nil
}

// categoryMappedByChild reports whether the target category is already
// mapped somewhere inside the node's own subtree, which would create a
// cycle in the category tree.
func (d *DirectoryTrees) categoryMappedByChild(nodes []*types.Directory, node *types.Directory, categoryID int64) bool {
	children := map[int64][]*types.Directory{}
	for _, n := range nodes {
		children[n.ParentID] = append(children[n.ParentID], n)
	}

	stack := []int64{node.DirectoryID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, child := range children[id] {
			if child.CategoryID != nil && *child.CategoryID == categoryID {
				return true
			}
			stack = append(stack, child.DirectoryID)
		}
	}
	return false
}

// MapCategory maps one directory node onto a host category. Manual
// mappings move the node to ManualPending; it hardens to Manual once a
// course is created beneath it.
func (d *DirectoryTrees) MapCategory(ctx context.Context, brokerID int, rootID, directoryID, categoryID int64, manual bool, createEmpty bool) error {
	node, err := d.dirs.GetNode(ctx, nil, brokerID, rootID, directoryID)
	if err != nil {
		return fmt.Errorf("load node: %w", err)
	}
	if node == nil {
		return fmt.Errorf("%w: directory %d", ccerrors.ErrNotFound, directoryID)
	}
	if manual && !node.CanMap() {
		return fmt.Errorf("%w: directory %d cannot be remapped (%s)", ccerrors.ErrInvalidArgument, directoryID, node.MappingKind)
	}
	if manual && node.MappingKind == types.DirAutomatic && node.CategoryID != nil && *node.CategoryID != categoryID {
		return fmt.Errorf("%w: directory %d is automatically mapped", ccerrors.ErrInvalidArgument, directoryID)
	}

	nodes, err := d.dirs.ListNodes(ctx, nil, brokerID, rootID)
	if err != nil {
		return fmt.Errorf("load nodes: %w", err)
	}
	if d.categoryMappedByChild(nodes, node, categoryID) {
		return fmt.Errorf("%w: category %d is mapped by a descendant of directory %d",
			ccerrors.ErrInvalidArgument, categoryID, directoryID)
	}

	previous := node.CategoryID
	firstTime := previous == nil
	if !firstTime && *previous != categoryID {
		// Relocate everything under the old category to the new one.
		if err := d.categories.MoveCategory(ctx, *previous, categoryID); err != nil {
			return fmt.Errorf("move category contents: %w", err)
		}
	}

	node.CategoryID = &categoryID
	if manual && node.MappingKind == types.DirAutomatic {
		node.MappingKind = types.DirManualPending
	}
	node.UpdatedAt = time.Now()
	if err := d.dirs.SaveNode(ctx, nil, node); err != nil {
		return fmt.Errorf("save node: %w", err)
	}

	if node.IsRoot() {
		tree, err := d.dirs.GetTree(ctx, nil, brokerID, rootID)
		if err != nil {
			return fmt.Errorf("load tree: %w", err)
		}
		if tree != nil {
			tree.CategoryID = &categoryID
			tree.UpdatedAt = time.Now()
			if err := d.dirs.SaveTree(ctx, nil, tree); err != nil {
				return fmt.Errorf("save tree: %w", err)
			}
		}
	}

	if firstTime && createEmpty {
		if err := d.createDescendantCategories(ctx, nodes, node, categoryID); err != nil {
			return err
		}
	}
	return nil
}

// createDescendantCategories eagerly materializes categories for the
// whole subtree below a freshly mapped node.
func (d *DirectoryTrees) createDescendantCategories(ctx context.Context, nodes []*types.Directory, node *types.Directory, categoryID int64) error {
	children := map[int64][]*types.Directory{}
	for _, n := range nodes {
		children[n.ParentID] = append(children[n.ParentID], n)
	}

	type frame struct {
		dirID    int64
		parentCat int64
	}
	stack := []frame{{dirID: node.DirectoryID, parentCat: categoryID}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, child := range children[f.dirID] {
			if child.MappingKind == types.DirDeleted {
				continue
			}
			cat := child.CategoryID
			if cat == nil {
				created, err := d.categories.CreateCategory(ctx, child.Title, f.parentCat)
				if err != nil {
					return fmt.Errorf("create category for directory %d: %w", child.DirectoryID, err)
				}
				child.CategoryID = &created
				child.UpdatedAt = time.Now()
				if err := d.dirs.SaveNode(ctx, nil, child); err != nil {
					return fmt.Errorf("save node %d: %w", child.DirectoryID, err)
				}
				cat = &created
			}
			stack = append(stack, frame{dirID: child.DirectoryID, parentCat: *cat})
		}
	}
	return nil
}

// Unmap removes a manual mapping that has not hardened yet.
func (d *DirectoryTrees) Unmap(ctx context.Context, brokerID int, rootID, directoryID int64) error {
	node, err := d.dirs.GetNode(ctx, nil, brokerID, rootID, directoryID)
	if err != nil {
		return fmt.Errorf("load node: %w", err)
	}
	if node == nil {
		return fmt.Errorf("%w: directory %d", ccerrors.ErrNotFound, directoryID)
	}
	if !node.CanUnmap() {
		return fmt.Errorf("%w: directory %d cannot be unmapped (%s)", ccerrors.ErrInvalidArgument, directoryID, node.MappingKind)
	}
	node.CategoryID = nil
	node.MappingKind = types.DirAutomatic
	node.UpdatedAt = time.Now()
	return d.dirs.SaveNode(ctx, nil, node)
}

// MarkCategoryUsed hardens a ManualPending mapping once a course was
// actually created beneath the directory.
func (d *DirectoryTrees) MarkCategoryUsed(ctx context.Context, brokerID int, directoryID int64) error {
	node, err := d.dirs.FindNode(ctx, nil, brokerID, directoryID)
	if err != nil {
		return fmt.Errorf("load node: %w", err)
	}
	if node == nil || node.MappingKind != types.DirManualPending {
		return nil
	}
	node.MappingKind = types.DirManual
	node.UpdatedAt = time.Now()
	return d.dirs.SaveNode(ctx, nil, node)
}

// CategoryFor resolves a broker directory id to the host category a
// course should land in. ok is false while the mapping is not ready
// yet (tree pending, or manual mode with no mapped ancestor).
func (d *DirectoryTrees) CategoryFor(ctx context.Context, pc *PassContext, directoryID int64) (int64, bool, error) {
	brokerID := pc.Broker.BrokerID
	node, err := d.dirs.FindNode(ctx, nil, brokerID, directoryID)
	if err != nil {
		return 0, false, fmt.Errorf("find node: %w", err)
	}
	if node == nil || node.MappingKind == types.DirDeleted {
		return 0, false, nil
	}

	tree, err := d.dirs.GetTree(ctx, nil, brokerID, node.RootID)
	if err != nil {
		return 0, false, fmt.Errorf("load tree: %w", err)
	}
	if tree == nil || tree.Mode == types.TreeModePending || tree.Mode == types.TreeModeDeleted {
		return 0, false, nil
	}

	if node.CategoryID != nil {
		return *node.CategoryID, true, nil
	}

	nodes := pc.CachedNodes(node.RootID)
	if nodes == nil {
		nodes, err = d.dirs.ListNodes(ctx, nil, brokerID, node.RootID)
		if err != nil {
			return 0, false, fmt.Errorf("load nodes: %w", err)
		}
		pc.CacheNodes(node.RootID, nodes)
	}

	chain, err := d.ancestors(nodes, node)
	if err != nil {
		return 0, false, err
	}

	if tree.Mode == types.TreeModeManual {
		// Nearest mapped ancestor receives the course; none means the
		// admin has not mapped this branch yet.
		for _, ancestor := range chain {
			if ancestor.CategoryID != nil && ancestor.MappingKind != types.DirDeleted {
				return *ancestor.CategoryID, true, nil
			}
		}
		return 0, false, nil
	}

	// Whole-tree mode: materialize the category chain down from the
	// nearest mapped ancestor.
	parentCat := int64(0)
	start := len(chain)
	for i, ancestor := range chain {
		if ancestor.CategoryID != nil {
			parentCat = *ancestor.CategoryID
			start = i
			break
		}
	}
	if parentCat == 0 {
		if tree.CategoryID == nil {
			return 0, false, nil
		}
		parentCat = *tree.CategoryID
	}

	// chain[0] is the immediate parent; create top-down.
	for i := start - 1; i >= 0; i-- {
		ancestor := chain[i]
		created, err := d.categories.CreateCategory(ctx, ancestor.Title, parentCat)
		if err != nil {
			return 0, false, fmt.Errorf("create ancestor category: %w", err)
		}
		ancestor.CategoryID = &created
		ancestor.UpdatedAt = time.Now()
		if err := d.dirs.SaveNode(ctx, nil, ancestor); err != nil {
			return 0, false, fmt.Errorf("save ancestor node: %w", err)
		}
		parentCat = created
	}

	created, err := d.categories.CreateCategory(ctx, node.Title, parentCat)
	if err != nil {
		return 0, false, fmt.Errorf("create category: %w", err)
	}
	node.CategoryID = &created
	node.UpdatedAt = time.Now()
	if err := d.dirs.SaveNode(ctx, nil, node); err != nil {
		return 0, false, fmt.Errorf("save node: %w", err)
	}
	pc.InvalidateNodes(node.RootID)
	return created, true, nil
}

// CheckAllMappings is the periodic consistency sweep: it clears
// mappings whose category was deleted out-of-band, recreates
// categories for automatically mapped directories, and re-derives the
// sort order of automatically ordered categories. Manual mappings and
// orderings are never touched.
func (d *DirectoryTrees) CheckAllMappings(ctx context.Context, pc *PassContext) error {
	brokerID := pc.Broker.BrokerID
	trees, err := d.dirs.ListTrees(ctx, nil, brokerID)
	if err != nil {
		return fmt.Errorf("list trees: %w", err)
	}

	for _, tree := range trees {
		if tree.Mode == types.TreeModeDeleted || tree.Mode == types.TreeModePending {
			continue
		}
		nodes, err := d.dirs.ListNodes(ctx, nil, brokerID, tree.RootID)
		if err != nil {
			return fmt.Errorf("list nodes: %w", err)
		}

		for _, node := range nodes {
			if node.CategoryID == nil || node.MappingKind == types.DirDeleted {
				continue
			}
			exists, err := d.categories.CategoryExists(ctx, *node.CategoryID)
			if err != nil {
				return fmt.Errorf("check category %d: %w", *node.CategoryID, err)
			}
			if exists {
				if node.MappingKind == types.DirAutomatic {
					if err := d.categories.SetCategorySortOrder(ctx, *node.CategoryID, node.SortOrder); err != nil {
						return fmt.Errorf("resort category %d: %w", *node.CategoryID, err)
					}
				}
				continue
			}

			d.log.Warn("Mapped category vanished out-of-band",
				"broker_id", brokerID, "directory_id", node.DirectoryID, "category_id", *node.CategoryID)
			node.CategoryID = nil
			node.UpdatedAt = time.Now()
			if err := d.dirs.SaveNode(ctx, nil, node); err != nil {
				return fmt.Errorf("clear stale mapping: %w", err)
			}

			if node.MappingKind != types.DirAutomatic {
				continue
			}
			// Recreate automatically mapped categories right away.
			chain, err := d.ancestors(nodes, node)
			if err != nil {
				return err
			}
			parentCat := int64(0)
			for _, ancestor := range chain {
				if ancestor.CategoryID != nil {
					parentCat = *ancestor.CategoryID
					break
				}
			}
			if parentCat == 0 && tree.CategoryID != nil && !node.IsRoot() {
				parentCat = *tree.CategoryID
			}
			if parentCat == 0 && !node.IsRoot() {
				continue
			}
			created, err := d.categories.CreateCategory(ctx, node.Title, parentCat)
			if err != nil {
				return fmt.Errorf("recreate category: %w", err)
			}
			node.CategoryID = &created
			node.UpdatedAt = time.Now()
			if err := d.dirs.SaveNode(ctx, nil, node); err != nil {
				return fmt.Errorf("save recreated mapping: %w", err)
			}
		}
		pc.InvalidateNodes(tree.RootID)
	}

	return d.courses.ResortCourses(ctx)
}

// NodeStatus derives the display status of a directory node from its
// mapping kind, ancestor chain and category presence.
func (d *DirectoryTrees) NodeStatus(ctx context.Context, brokerID int, node *types.Directory) (string, error) {
	if node.MappingKind == types.DirDeleted {
		return types.DirStatusDeleted, nil
	}

	mapped := node.CategoryID != nil
	switch node.MappingKind {
	case types.DirManual:
		if mapped {
			return types.DirStatusMappedManual, nil
		}
		return types.DirStatusPendingManual, nil
	case types.DirManualPending:
		return types.DirStatusPendingManual, nil
	}

	if mapped {
		return types.DirStatusMappedAutomatic, nil
	}

	nodes, err := d.dirs.ListNodes(ctx, nil, brokerID, node.RootID)
	if err != nil {
		return "", fmt.Errorf("list nodes: %w", err)
	}
	chain, err := d.ancestors(nodes, node)
	if err != nil {
		return "", err
	}
	for _, ancestor := range chain {
		if ancestor.CategoryID != nil {
			return types.DirStatusPendingAutomatic, nil
		}
	}
	return types.DirStatusPendingUnmapped, nil
}
