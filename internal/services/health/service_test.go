package health

import (
	"context"
	"errors"
	"testing"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestStatus(t *testing.T) {
	tests := []struct {
		name   string
		svc    *Service
		wantOK bool
	}{
		{name: "no database", svc: NewService(nil), wantOK: true},
		{name: "database up", svc: NewService(pingFunc(func(context.Context) error { return nil })), wantOK: true},
		{name: "database down", svc: NewService(pingFunc(func(context.Context) error { return errors.New("dial tcp: connection refused") })), wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ok := tt.svc.Status(context.Background())
			if ok != tt.wantOK || body["ok"] != tt.wantOK {
				t.Fatalf("Status() = %v, %v; want ok=%v", body, ok, tt.wantOK)
			}
			if !ok && body["database"] == nil {
				t.Fatalf("failure should name the database")
			}
		})
	}
}
