package gamma

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListEvents_QueryAndDecode(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for key := range r.URL.Query() {
			gotQuery[key] = r.URL.Query().Get(key)
		}
		w.Write([]byte(`[{"id":"1","title":"A"},{"id":"2","title":"B"}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), srv.URL)
	active := true
	events, err := client.ListEvents(context.Background(), ListEventsParams{
		SeriesID:  10,
		Active:    &active,
		Limit:     50,
		Offset:    100,
		Order:     "id",
		Ascending: false,
	})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 2 || events[0].ID != "1" || events[1].ID != "2" {
		t.Fatalf("events=%v", events)
	}
	want := map[string]string{
		"series_id": "10",
		"active":    "true",
		"limit":     "50",
		"offset":    "100",
		"order":     "id",
		"ascending": "false",
	}
	for key, val := range want {
		if gotQuery[key] != val {
			t.Fatalf("query %s=%q want %q (all=%v)", key, gotQuery[key], val, gotQuery)
		}
	}
}

func TestListEvents_WrappedBodyAndItemSkip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"events":[{"id":"7"},"not an event",{"id":"8"}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), srv.URL)
	events, err := client.ListEvents(context.Background(), ListEventsParams{})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 2 || events[0].ID != "7" || events[1].ID != "8" {
		t.Fatalf("events=%v", events)
	}
}

func TestListEvents_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), srv.URL)
	_, err := client.ListEvents(context.Background(), ListEventsParams{})
	if err == nil {
		t.Fatalf("want error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err=%v want *APIError", err)
	}
	if apiErr.Status != http.StatusBadGateway {
		t.Fatalf("status=%d want 502", apiErr.Status)
	}
}

func TestListSports(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sports" {
			t.Errorf("path=%s want /sports", r.URL.Path)
		}
		w.Write([]byte(`[{"sport":"nba","series":"2"},{"sport":"nfl","seriesId":9}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), srv.URL)
	sports, err := client.ListSports(context.Background())
	if err != nil {
		t.Fatalf("ListSports: %v", err)
	}
	if len(sports) != 2 || sports[0].Series != "2" || sports[1].SeriesID != "9" {
		t.Fatalf("sports=%v", sports)
	}
}
