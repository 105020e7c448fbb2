package connect

import (
	"context"
	"testing"

	types "github.com/edubridge/campusconnect/internal/domain"
	"github.com/edubridge/campusconnect/internal/ecs"
)

func treeData(rootID int64, title string, nodes ...ecs.DirectoryNode) *ecs.DirectoryTreeData {
	return &ecs.DirectoryTreeData{RootID: rootID, Title: title, Nodes: nodes}
}

func TestDirectoryTreeApplyStartsPending(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pc := e.pass(nil)

	data := treeData(100, "Faculty",
		ecs.DirectoryNode{ID: 101, Title: "Math", Parent: ecs.DirectoryParent{ID: 100}, Order: 1},
		ecs.DirectoryNode{ID: 102, Title: "Physics", Parent: ecs.DirectoryParent{ID: 100}, Order: 2},
	)
	out, err := e.trees.Apply(ctx, pc, 5000, data, &ecs.TransferMeta{SenderMID: 7})
	if err != nil || out != OutcomeApplied {
		t.Fatalf("Apply: outcome=%v err=%v", out, err)
	}

	tree, err := e.repos.Directories.GetTree(ctx, nil, 1, 100)
	if err != nil || tree == nil {
		t.Fatalf("GetTree: tree=%v err=%v", tree, err)
	}
	if tree.Mode != types.TreeModePending {
		t.Fatalf("mode = %q, want pending", tree.Mode)
	}

	nodes, err := e.repos.Directories.ListNodes(ctx, nil, 1, 100)
	if err != nil {
		t.Fatalf("ListNodes: %v", err)
	}
	// Root plus two children.
	if len(nodes) != 3 {
		t.Fatalf("nodes = %d, want 3", len(nodes))
	}

	// Courses cannot be placed while the tree is pending.
	if _, ok, err := e.trees.CategoryFor(ctx, pc, 101); err != nil || ok {
		t.Fatalf("CategoryFor on pending tree: ok=%v err=%v", ok, err)
	}
}

func TestDirectoryTreeModeTransitions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pc := e.pass(nil)

	data := treeData(110, "Tree")
	if out, err := e.trees.Apply(ctx, pc, 5001, data, &ecs.TransferMeta{SenderMID: 7}); err != nil || out != OutcomeApplied {
		t.Fatalf("Apply: outcome=%v err=%v", out, err)
	}

	if err := e.trees.SetTreeMode(ctx, 1, 110, types.TreeModeManual); err != nil {
		t.Fatalf("Pending->Manual: %v", err)
	}
	if err := e.trees.SetTreeMode(ctx, 1, 110, types.TreeModeWhole); err == nil {
		t.Fatalf("Manual->Whole must be rejected")
	}
	if err := e.trees.SetTreeMode(ctx, 1, 110, types.TreeModeManual); err != nil {
		t.Fatalf("same-mode set must be a no-op: %v", err)
	}
}

func TestMapCategoryAutomaticStaysAutomatic(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pc := e.pass(nil)

	data := treeData(120, "Tree",
		ecs.DirectoryNode{ID: 121, Title: "Sub", Parent: ecs.DirectoryParent{ID: 120}},
	)
	if out, err := e.trees.Apply(ctx, pc, 5002, data, &ecs.TransferMeta{SenderMID: 7}); err != nil || out != OutcomeApplied {
		t.Fatalf("Apply: outcome=%v err=%v", out, err)
	}

	catID, _ := e.mem.CreateCategory(ctx, "Target", 0)
	if err := e.trees.MapCategory(ctx, 1, 120, 121, catID, false, false); err != nil {
		t.Fatalf("MapCategory: %v", err)
	}
	node, err := e.repos.Directories.GetNode(ctx, nil, 1, 120, 121)
	if err != nil || node == nil {
		t.Fatalf("GetNode: node=%v err=%v", node, err)
	}
	if node.CategoryID == nil || *node.CategoryID != catID {
		t.Fatalf("categoryID = %v, want %d", node.CategoryID, catID)
	}
	if node.MappingKind != types.DirAutomatic {
		t.Fatalf("mappingKind = %q, automatic mapping must stay automatic", node.MappingKind)
	}
}

func TestMapCategoryManualLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pc := e.pass(nil)

	data := treeData(130, "Tree",
		ecs.DirectoryNode{ID: 131, Title: "Sub", Parent: ecs.DirectoryParent{ID: 130}},
	)
	if out, err := e.trees.Apply(ctx, pc, 5003, data, &ecs.TransferMeta{SenderMID: 7}); err != nil || out != OutcomeApplied {
		t.Fatalf("Apply: outcome=%v err=%v", out, err)
	}

	catID, _ := e.mem.CreateCategory(ctx, "Manual", 0)
	if err := e.trees.MapCategory(ctx, 1, 130, 131, catID, true, false); err != nil {
		t.Fatalf("MapCategory manual: %v", err)
	}
	node, _ := e.repos.Directories.GetNode(ctx, nil, 1, 130, 131)
	if node.MappingKind != types.DirManualPending {
		t.Fatalf("mappingKind = %q, want manual_pending", node.MappingKind)
	}

	// A pending manual mapping can still be taken back.
	if err := e.trees.Unmap(ctx, 1, 130, 131); err != nil {
		t.Fatalf("Unmap pending manual: %v", err)
	}
	node, _ = e.repos.Directories.GetNode(ctx, nil, 1, 130, 131)
	if node.MappingKind != types.DirAutomatic || node.CategoryID != nil {
		t.Fatalf("node after unmap = %+v", node)
	}

	// Map again, then harden via a created course.
	if err := e.trees.MapCategory(ctx, 1, 130, 131, catID, true, false); err != nil {
		t.Fatalf("remap: %v", err)
	}
	if err := e.trees.MarkCategoryUsed(ctx, 1, 131); err != nil {
		t.Fatalf("MarkCategoryUsed: %v", err)
	}
	node, _ = e.repos.Directories.GetNode(ctx, nil, 1, 130, 131)
	if node.MappingKind != types.DirManual {
		t.Fatalf("mappingKind = %q, want manual", node.MappingKind)
	}
	if err := e.trees.Unmap(ctx, 1, 130, 131); err == nil {
		t.Fatalf("hardened manual mapping must not unmap")
	}
}

func TestMapCategoryCycleGuard(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pc := e.pass(nil)

	data := treeData(140, "Tree",
		ecs.DirectoryNode{ID: 141, Title: "Child", Parent: ecs.DirectoryParent{ID: 140}},
	)
	if out, err := e.trees.Apply(ctx, pc, 5004, data, &ecs.TransferMeta{SenderMID: 7}); err != nil || out != OutcomeApplied {
		t.Fatalf("Apply: outcome=%v err=%v", out, err)
	}

	catID, _ := e.mem.CreateCategory(ctx, "Shared", 0)
	if err := e.trees.MapCategory(ctx, 1, 140, 141, catID, true, false); err != nil {
		t.Fatalf("map child: %v", err)
	}
	// Mapping the root onto the child's category would make the
	// category its own ancestor.
	if err := e.trees.MapCategory(ctx, 1, 140, 140, catID, true, false); err == nil {
		t.Fatalf("cycle mapping must be rejected")
	}
}

func TestCategoryForWholeModeCreatesChain(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pc := e.pass(nil)

	data := treeData(150, "Tree",
		ecs.DirectoryNode{ID: 151, Title: "Level1", Parent: ecs.DirectoryParent{ID: 150}},
		ecs.DirectoryNode{ID: 152, Title: "Level2", Parent: ecs.DirectoryParent{ID: 151}},
	)
	if out, err := e.trees.Apply(ctx, pc, 5005, data, &ecs.TransferMeta{SenderMID: 7}); err != nil || out != OutcomeApplied {
		t.Fatalf("Apply: outcome=%v err=%v", out, err)
	}
	if err := e.trees.SetTreeMode(ctx, 1, 150, types.TreeModeWhole); err != nil {
		t.Fatalf("SetTreeMode: %v", err)
	}
	rootCat, _ := e.mem.CreateCategory(ctx, "Root", 0)
	if err := e.trees.MapCategory(ctx, 1, 150, 150, rootCat, false, false); err != nil {
		t.Fatalf("map root: %v", err)
	}

	catID, ok, err := e.trees.CategoryFor(ctx, pc, 152)
	if err != nil || !ok {
		t.Fatalf("CategoryFor: ok=%v err=%v", ok, err)
	}
	exists, err := e.mem.CategoryExists(ctx, catID)
	if err != nil || !exists {
		t.Fatalf("leaf category %d missing: err=%v", catID, err)
	}

	// The intermediate level was materialized too.
	node151, _ := e.repos.Directories.GetNode(ctx, nil, 1, 150, 151)
	if node151.CategoryID == nil {
		t.Fatalf("intermediate node not mapped")
	}

	// Resolution is stable.
	again, ok, err := e.trees.CategoryFor(ctx, pc, 152)
	if err != nil || !ok || again != catID {
		t.Fatalf("second CategoryFor = %d ok=%v err=%v, want %d", again, ok, err, catID)
	}
}

func TestDirectoryTreeNodeRemoval(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pc := e.pass(nil)

	meta := &ecs.TransferMeta{SenderMID: 7}
	data := treeData(160, "Tree",
		ecs.DirectoryNode{ID: 161, Title: "Keep", Parent: ecs.DirectoryParent{ID: 160}},
		ecs.DirectoryNode{ID: 162, Title: "Drop", Parent: ecs.DirectoryParent{ID: 160}},
	)
	if out, err := e.trees.Apply(ctx, pc, 5006, data, meta); err != nil || out != OutcomeApplied {
		t.Fatalf("Apply: outcome=%v err=%v", out, err)
	}

	shrunk := treeData(160, "Tree",
		ecs.DirectoryNode{ID: 161, Title: "Keep", Parent: ecs.DirectoryParent{ID: 160}},
	)
	if out, err := e.trees.Apply(ctx, pc, 5006, shrunk, meta); err != nil || out != OutcomeApplied {
		t.Fatalf("second Apply: outcome=%v err=%v", out, err)
	}

	node, _ := e.repos.Directories.GetNode(ctx, nil, 1, 160, 162)
	if node == nil || node.MappingKind != types.DirDeleted {
		t.Fatalf("dropped node = %+v, want deleted marker", node)
	}
	kept, _ := e.repos.Directories.GetNode(ctx, nil, 1, 160, 161)
	if kept.MappingKind != types.DirAutomatic {
		t.Fatalf("kept node = %+v", kept)
	}
}
