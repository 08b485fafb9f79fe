package statuswatch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"underwriting-backend/internal/status"
)

func TestStatusURL(t *testing.T) {
	tests := []struct {
		base      string
		requestID string
		want      string
		wantErr   bool
	}{
		{base: "http://localhost:8080", want: "http://localhost:8080/status"},
		{base: "http://localhost:8080/", requestID: "req 1", want: "http://localhost:8080/status?request_id=req+1"},
		{base: "localhost:8080", wantErr: true},
		{base: "ftp://example.com", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			got, err := StatusURL(tt.base, tt.requestID)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("StatusURL: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFollowParsesEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("request_id") != "req-1" {
			http.Error(w, "missing filter", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": connected\n\n")
		fmt.Fprint(w, `data: {"request_id":"req-1","step":"start","status":"Processing","details":"Received underwrite request","timestamp":"2024-05-01T12:00:00Z"}`+"\n\n")
		fmt.Fprint(w, "data: not json\n\n")
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, `data: {"request_id":"req-1","step":"complete","status":"Success","details":"done","timestamp":"2024-05-01T12:00:05Z"}`+"\n\n")
	}))
	defer srv.Close()

	streamURL, err := StatusURL(srv.URL, "req-1")
	if err != nil {
		t.Fatalf("StatusURL: %v", err)
	}
	out := make(chan status.Event, 10)
	if err := Follow(context.Background(), srv.Client(), streamURL, out); err != nil {
		t.Fatalf("Follow: %v", err)
	}
	close(out)

	var got []status.Event
	for ev := range out {
		got = append(got, ev)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %+v", got)
	}
	if got[0].Step != "start" || got[0].Status != status.Processing {
		t.Fatalf("unexpected first event %+v", got[0])
	}
	if got[1].Step != "complete" || got[1].Status != status.Success || got[1].Details != "done" {
		t.Fatalf("unexpected last event %+v", got[1])
	}
}

func TestFollowRejectsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	err := Follow(context.Background(), srv.Client(), srv.URL+"/status", make(chan status.Event, 1))
	if err == nil {
		t.Fatalf("expected error for 404")
	}
}
