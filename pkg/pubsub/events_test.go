package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestBuildMessageWrapsPayload(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	msg, err := buildMessage(EventMediaUploaded, map[string]string{"file_id": "f1"}, now)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if msg.Attributes["event_type"] != EventMediaUploaded || msg.Attributes["event_id"] == "" {
		t.Fatalf("unexpected attributes %+v", msg.Attributes)
	}

	var env Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Type != EventMediaUploaded || !env.OccurredAt.Equal(now) || env.ID != msg.Attributes["event_id"] {
		t.Fatalf("unexpected envelope %+v", env)
	}
	var data map[string]string
	if err := json.Unmarshal(env.Data, &data); err != nil || data["file_id"] != "f1" {
		t.Fatalf("unexpected data %s (%v)", env.Data, err)
	}
}

func TestBuildMessageRequiresType(t *testing.T) {
	if _, err := buildMessage("", nil, time.Now()); err == nil {
		t.Fatal("expected missing type error")
	}
	if err := (NoopPublisher{}).Publish(context.Background(), EventMediaUploaded, nil); err != nil {
		t.Fatalf("noop publish: %v", err)
	}
}

func TestTopicResourceName(t *testing.T) {
	if got, _ := TopicName("castingly-prod", "media-events"); got != "projects/castingly-prod/topics/media-events" {
		t.Fatalf("unexpected topic name %s", got)
	}
	full := "projects/other/topics/t"
	if got, _ := TopicName("castingly-prod", full); got != full {
		t.Fatalf("full names should pass through, got %s", got)
	}
}

func TestTopicName(t *testing.T) {
	cases := []struct {
		project, topic, want string
		wantErr             bool
	}{
		{project: "castingly-prod", topic: "media-events", want: "projects/castingly-prod/topics/media-events"},
		{project: "", topic: "projects/other/topics/media", want: "projects/other/topics/media"},
		{project: " castingly ", topic: " media ", want: "projects/castingly/topics/media"},
		{project: "castingly", topic: "", wantErr: true},
		{project: "", topic: "media", wantErr: true},
	}
	for _, tc := range cases {
		got, err := TopicName(tc.project, tc.topic)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("TopicName(%q, %q) expected error", tc.project, tc.topic)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("TopicName(%q, %q) = %q, %v; want %q", tc.project, tc.topic, got, err, tc.want)
		}
	}

	var nilClient *Client
	if _, err := nilClient.MediaPublisher(); err == nil {
		t.Fatal("expected error from nil client")
	}
	if err := nilClient.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}
