package sources

import (
	"testing"
	"time"

	"chargesync/internal/models"
)

func TestJSONPushSourceParse(t *testing.T) {
	src := NewJSONPushSource("operator_push", "nobil")
	if src.ChargepointSource() != "nobil" {
		t.Fatalf("ChargepointSource = %q", src.ChargepointSource())
	}

	body := `{"statuses":[
		{"site_key":"123","chargepoint_key":"NO-123-1","status":"CHARGING","timestamp":"2026-08-01T12:00:00Z"},
		{"site_key":"123","chargepoint_key":"NO-123-2","status":"weird","timestamp":"2026-08-01T12:00:01+02:00"}
	]}`
	events, err := src.Push.ParsePush([]byte(body))
	if err != nil {
		t.Fatalf("ParsePush: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events", len(events))
	}
	if events[0].SiteKey != "123" || events[0].ChargepointKey != "NO-123-1" || events[0].Status.Status != models.StatusCharging {
		t.Errorf("events[0] = %+v", events[0])
	}
	if events[1].Status.Status != models.StatusUnknown {
		t.Errorf("unknown status mapped to %q", events[1].Status.Status)
	}
	want := time.Date(2026, 8, 1, 10, 0, 1, 0, time.UTC)
	if !events[1].Status.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v normalized to UTC", events[1].Status.Timestamp, want)
	}
}

func TestJSONPushSourceParseErrors(t *testing.T) {
	src := NewJSONPushSource("operator_push", "nobil")
	for name, body := range map[string]string{
		"not json":    `nope`,
		"empty":       `{"statuses":[]}`,
		"missing key": `{"statuses":[{"chargepoint_key":"x","status":"AVAILABLE"}]}`,
	} {
		if _, err := src.Push.ParsePush([]byte(body)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
