package activitymap_test

import (
	"context"
	"errors"
	"testing"
	"time"

	auth "github.com/goliatone/go-auth-client"
	"github.com/goliatone/go-auth-client/activitymap"
)

func TestNormalizeLoginSuccess(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := auth.ActivityEvent{
		ID:        "evt-1",
		EventType: auth.ActivityEventLoginSuccess,
		UserID:    "user-100",
		Metadata: map[string]any{
			"remember_me": true,
		},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	if out.ActorID != "user-100" {
		t.Fatalf("expected actor_id user-100, got %q", out.ActorID)
	}
	if out.Verb != string(auth.ActivityEventLoginSuccess) {
		t.Fatalf("expected verb %q, got %q", auth.ActivityEventLoginSuccess, out.Verb)
	}
	if out.ObjectType != "session" {
		t.Fatalf("expected object_type session, got %q", out.ObjectType)
	}
	if out.ObjectID != "user-100" {
		t.Fatalf("expected object_id user-100, got %q", out.ObjectID)
	}
	if out.Channel != "auth" {
		t.Fatalf("expected channel auth, got %q", out.Channel)
	}
	if !out.OccurredAt.Equal(ts) {
		t.Fatalf("expected occurred_at %v, got %v", ts, out.OccurredAt)
	}
	if out.Metadata["remember_me"] != true {
		t.Fatalf("expected metadata remember_me, got %#v", out.Metadata["remember_me"])
	}
	if out.Metadata[activitymap.MetadataKeyEventID] != "evt-1" {
		t.Fatalf("expected metadata event_id evt-1, got %#v", out.Metadata[activitymap.MetadataKeyEventID])
	}

	if len(event.Metadata) != 1 {
		t.Fatalf("expected source metadata to remain unchanged, got %+v", event.Metadata)
	}
}

func TestNormalizeRouteDenied(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(auth.ActivityEvent{
		EventType: auth.ActivityEventRouteDenied,
		UserID:    "user-7",
		Path:      "/campaigns/12",
	}, activitymap.WithDefaultChannel("security"))

	if out.ObjectType != "route" {
		t.Fatalf("expected object_type route, got %q", out.ObjectType)
	}
	if out.ObjectID != "/campaigns/12" {
		t.Fatalf("expected object_id path, got %q", out.ObjectID)
	}
	if out.Channel != "security" {
		t.Fatalf("expected channel security, got %q", out.Channel)
	}
	if out.Metadata[activitymap.MetadataKeyPath] != "/campaigns/12" {
		t.Fatalf("expected metadata path, got %#v", out.Metadata[activitymap.MetadataKeyPath])
	}
	if out.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be set when input is zero")
	}
}

func TestNormalizeActorFallbackChain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		event  auth.ActivityEvent
		opts   []activitymap.Option
		expect string
	}{
		{
			name:   "uses user id when present",
			event:  auth.ActivityEvent{UserID: "user-1"},
			expect: "user-1",
		},
		{
			name:   "falls back to anonymous",
			event:  auth.ActivityEvent{EventType: auth.ActivityEventLoginFailure},
			expect: "anonymous",
		},
		{
			name:   "custom fallback",
			event:  auth.ActivityEvent{EventType: auth.ActivityEventBootstrapFailure},
			opts:   []activitymap.Option{activitymap.WithActorFallback("device-9")},
			expect: "device-9",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := activitymap.Normalize(tt.event, tt.opts...)
			if out.ActorID != tt.expect {
				t.Fatalf("expected actor_id %q, got %q", tt.expect, out.ActorID)
			}
		})
	}
}

func TestNormalizeObjectIDResolver(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(auth.ActivityEvent{
		EventType: auth.ActivityEventRegister,
		Metadata:  map[string]any{"email": "new@example.com"},
	}, activitymap.WithObjectIDResolver(func(e auth.ActivityEvent) string {
		email, _ := e.Metadata["email"].(string)
		return email
	}))

	if out.ObjectType != "account" {
		t.Fatalf("expected object_type account, got %q", out.ObjectType)
	}
	if out.ObjectID != "new@example.com" {
		t.Fatalf("expected object_id new@example.com, got %q", out.ObjectID)
	}
}

func TestSink(t *testing.T) {
	t.Parallel()

	var got []activitymap.Normalized
	sink := activitymap.Sink(func(_ context.Context, record activitymap.Normalized) error {
		got = append(got, record)
		return nil
	})

	err := sink.Record(context.Background(), auth.ActivityEvent{
		EventType: auth.ActivityEventLogout,
		UserID:    "user-3",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Verb != string(auth.ActivityEventLogout) {
		t.Fatalf("expected one logout record, got %+v", got)
	}

	boom := errors.New("boom")
	failing := activitymap.Sink(func(context.Context, activitymap.Normalized) error { return boom })
	if err := failing.Record(context.Background(), auth.ActivityEvent{}); !errors.Is(err, boom) {
		t.Fatalf("expected sink error to propagate, got %v", err)
	}

	if err := activitymap.Sink(nil).Record(context.Background(), auth.ActivityEvent{}); err != nil {
		t.Fatalf("expected nil sink fn to be a no-op, got %v", err)
	}
}
