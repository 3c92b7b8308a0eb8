package sources

import (
	"encoding/json"
	"fmt"
	"time"

	"chargesync/internal/models"
)

// jsonPushFeed parses the plain JSON push format offered to providers that
// cannot run a full OCPI party: a flat list of per-chargepoint statuses.
type jsonPushFeed struct{}

// NewJSONPushSource builds a push-only source for the given data source. The
// pushed statuses resolve against staticSourceID's chargepoints.
func NewJSONPushSource(id, staticSourceID string) *Source {
	return &Source{
		ID:             id,
		StaticSourceID: staticSourceID,
		Push:           jsonPushFeed{},
	}
}

type pushPayload struct {
	Statuses []struct {
		SiteKey        string    `json:"site_key"`
		ChargepointKey string    `json:"chargepoint_key"`
		Status         string    `json:"status"`
		Timestamp      time.Time `json:"timestamp"`
	} `json:"statuses"`
}

func (jsonPushFeed) ParsePush(body []byte) ([]models.StatusEvent, error) {
	var payload pushPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse push payload: %w", err)
	}
	if len(payload.Statuses) == 0 {
		return nil, fmt.Errorf("push payload contains no statuses")
	}

	events := make([]models.StatusEvent, 0, len(payload.Statuses))
	for _, s := range payload.Statuses {
		if s.SiteKey == "" || s.ChargepointKey == "" {
			return nil, fmt.Errorf("push status missing site_key or chargepoint_key")
		}
		events = append(events, models.StatusEvent{
			SiteKey:        s.SiteKey,
			ChargepointKey: s.ChargepointKey,
			Status: models.RealtimeStatus{
				Status:    models.ParseChargeStatus(s.Status),
				Timestamp: s.Timestamp.UTC(),
			},
		})
	}
	return events, nil
}
