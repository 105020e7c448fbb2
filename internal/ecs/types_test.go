package ecs

import (
	"encoding/json"
	"testing"

	types "github.com/edubridge/campusconnect/internal/domain"
)

func TestEventParse(t *testing.T) {
	cases := []struct {
		name    string
		event   Event
		wantErr bool
		kind    types.ResourceKind
		id      int64
		change  types.ChangeKind
	}{
		{
			name:   "course created",
			event:  Event{Ressource: "campusconnect/courses/123", Status: "created"},
			kind:   types.KindCourse,
			id:     123,
			change: types.ChangeCreated,
		},
		{
			name:   "members destroyed",
			event:  Event{Ressource: "campusconnect/course_members/9", Status: "destroyed"},
			kind:   types.KindCourseMembers,
			id:     9,
			change: types.ChangeDestroyed,
		},
		{
			name:    "unknown kind",
			event:   Event{Ressource: "campusconnect/bogus/5", Status: "updated"},
			wantErr: true,
		},
		{
			name:    "unknown status",
			event:   Event{Ressource: "campusconnect/courses/5", Status: "renamed"},
			wantErr: true,
		},
		{
			name:    "missing id",
			event:   Event{Ressource: "campusconnect/courses/", Status: "created"},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := tc.event.Parse(7)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Parse(%+v) expected error", tc.event)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if ev.Kind != tc.kind || ev.ResourceID != tc.id || ev.Change != tc.change || ev.BrokerID != 7 {
				t.Fatalf("Parse = %+v, want kind=%s id=%d change=%s", ev, tc.kind, tc.id, tc.change)
			}
		})
	}
}

func TestDirectoryTreeNormalization(t *testing.T) {
	multi := []byte(`{
		"rootID": 40,
		"directoryTreeTitle": "Mathematics",
		"nodes": [
			{"id": 40, "title": "Mathematics", "parent": {"id": 0}},
			{"id": 41, "title": "Algebra", "parent": {"id": 40}, "order": 1}
		]
	}`)
	var tree DirectoryTreeData
	if err := json.Unmarshal(multi, &tree); err != nil {
		t.Fatalf("multi-node unmarshal: %v", err)
	}
	if tree.RootID != 40 || tree.Title != "Mathematics" || len(tree.Nodes) != 2 {
		t.Fatalf("multi-node normalize = %+v", tree)
	}

	legacyChild := []byte(`{
		"id": "41",
		"title": "Algebra",
		"parent": {"id": 40, "title": "Mathematics"},
		"order": 1
	}`)
	tree = DirectoryTreeData{}
	if err := json.Unmarshal(legacyChild, &tree); err != nil {
		t.Fatalf("legacy unmarshal: %v", err)
	}
	if tree.RootID != 40 || tree.Title != "Mathematics" {
		t.Fatalf("legacy root resolution = %+v", tree)
	}
	if len(tree.Nodes) != 1 || tree.Nodes[0].ID != 41 || tree.Nodes[0].Parent.ID != 40 {
		t.Fatalf("legacy node fold = %+v", tree.Nodes)
	}

	legacyRoot := []byte(`{"id": 40, "title": "Mathematics", "parent": {"id": 0}}`)
	tree = DirectoryTreeData{}
	if err := json.Unmarshal(legacyRoot, &tree); err != nil {
		t.Fatalf("legacy root unmarshal: %v", err)
	}
	if tree.RootID != 40 || tree.Title != "Mathematics" || len(tree.Nodes) != 1 {
		t.Fatalf("legacy root normalize = %+v", tree)
	}

	garbage := []byte(`{"title": "nothing else"}`)
	tree = DirectoryTreeData{}
	if err := json.Unmarshal(garbage, &tree); err == nil {
		t.Fatalf("expected error for shapeless payload")
	}
}

func TestAuthTokenRoundTrip(t *testing.T) {
	payload := AuthTokenPayload{
		PersonID:     "jdoe",
		PersonIDType: "ecs_login",
		CourseID:     "lect-77",
		Realm:        "abc123",
	}
	signed, err := signAuthToken(payload, "shared-secret")
	if err != nil {
		t.Fatalf("signAuthToken: %v", err)
	}

	got, err := VerifyAuthToken(signed, "shared-secret")
	if err != nil {
		t.Fatalf("VerifyAuthToken: %v", err)
	}
	if *got != payload {
		t.Fatalf("round trip = %+v, want %+v", got, payload)
	}

	if _, err := VerifyAuthToken(signed, "wrong-secret"); err == nil {
		t.Fatalf("expected verification failure with wrong secret")
	}

	if _, err := signAuthToken(payload, ""); err == nil {
		t.Fatalf("expected error with empty secret")
	}
}
