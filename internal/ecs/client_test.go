package ecs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	types "github.com/edubridge/campusconnect/internal/domain"
	ccerrors "github.com/edubridge/campusconnect/internal/pkg/errors"
	"github.com/edubridge/campusconnect/internal/platform/logger"
)

func testClient(t *testing.T, handler http.Handler) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	client, err := NewClient(log, Options{
		BaseURL:     srv.URL,
		AuthToken:   "t0ken",
		TokenSecret: "secret",
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestGetResource(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer t0ken" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		switch r.URL.Path {
		case "/campusconnect/courses/5":
			_ = json.NewEncoder(w).Encode(CourseData{LectureID: "lect-5", Title: "Analysis I"})
		case "/campusconnect/courses/6":
			w.WriteHeader(http.StatusNotFound)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))

	var course CourseData
	found, err := client.GetResource(context.Background(), types.KindCourse, 5, &course)
	if err != nil || !found {
		t.Fatalf("GetResource: found=%v err=%v", found, err)
	}
	if course.LectureID != "lect-5" || course.Title != "Analysis I" {
		t.Fatalf("GetResource body = %+v", course)
	}

	found, err = client.GetResource(context.Background(), types.KindCourse, 6, &course)
	if err != nil || found {
		t.Fatalf("GetResource gone: found=%v err=%v", found, err)
	}
}

func TestErrorClassification(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/campusconnect/courses/1":
			w.WriteHeader(http.StatusBadGateway)
		case "/campusconnect/courses/2":
			w.WriteHeader(http.StatusConflict)
		}
	}))

	var out CourseData
	_, err := client.GetResource(context.Background(), types.KindCourse, 1, &out)
	if !errors.Is(err, ccerrors.ErrTransport) {
		t.Fatalf("502 should classify as transport fault, got %v", err)
	}

	_, err = client.GetResource(context.Background(), types.KindCourse, 2, &out)
	if !errors.Is(err, ccerrors.ErrProtocol) {
		t.Fatalf("409 should classify as protocol fault, got %v", err)
	}
}

func TestReadEventFifo(t *testing.T) {
	var sawPost bool
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sys/events/fifo" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Method == http.MethodPost {
			sawPost = true
		}
		_ = json.NewEncoder(w).Encode([]Event{
			{Ressource: "campusconnect/courses/44", Status: "updated"},
		})
	}))

	events, err := client.ReadEventFifo(context.Background(), 10, true)
	if err != nil {
		t.Fatalf("ReadEventFifo: %v", err)
	}
	if !sawPost {
		t.Fatalf("delete drain must POST to acknowledge")
	}
	if len(events) != 1 || events[0].Ressource != "campusconnect/courses/44" {
		t.Fatalf("ReadEventFifo = %+v", events)
	}
}

func TestAddResource(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.URL.Query().Get("mids"); got != "3,9" {
			t.Errorf("mids query = %q, want 3,9", got)
		}
		var body CourseURLData
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.CmsCourseID != "lect-5" {
			t.Errorf("body = %+v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]int64{"id": 77})
	}))

	id, err := client.AddResource(context.Background(), types.KindCourseURL,
		CourseURLData{CmsCourseID: "lect-5", URL: "https://host/course/100"}, nil, []int{3, 9})
	if err != nil {
		t.Fatalf("AddResource: %v", err)
	}
	if id != 77 {
		t.Fatalf("AddResource id = %d, want 77", id)
	}
}
