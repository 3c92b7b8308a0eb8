package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"chargesync/internal/models"
)

// NobilRealtimeConfig configures the NOBIL realtime websocket feed
// (Norway and Sweden). The session endpoint is called with an API key and
// returns the short-lived signed websocket URL to connect to.
type NobilRealtimeConfig struct {
	SessionURL string
	APIKey     string
}

// NewNobilRealtimeSource builds the NOBIL realtime source. Its events
// resolve against the chargepoints of the static "nobil" source.
func NewNobilRealtimeSource(cfg NobilRealtimeConfig, client *http.Client, log *zap.Logger) *Source {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resolver := func(ctx context.Context) (string, error) {
		return nobilWebsocketURL(ctx, client, cfg)
	}
	return &Source{
		ID:             "nobil_realtime",
		StaticSourceID: "nobil",
		Stream:         NewWebSocketStream(resolver, nobilDecoder{}, log),
	}
}

func nobilWebsocketURL(ctx context.Context, client *http.Client, cfg NobilRealtimeConfig) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.SessionURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("x-api-key", cfg.APIKey)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("nobil session endpoint returned status %d", resp.StatusCode)
	}

	var session struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&session); err != nil {
		return "", fmt.Errorf("decode nobil session response: %w", err)
	}
	if session.AccessToken == "" {
		return "", fmt.Errorf("nobil session response without websocket url")
	}
	return session.AccessToken, nil
}

// nobilDecoder maps one NOBIL realtime message to a status event. NOBIL site
// keys are stored without the country prefix of the wire-format nobilId
// ("NOR_00123" -> "123").
type nobilDecoder struct{}

func (nobilDecoder) Decode(message []byte) (models.StatusEvent, error) {
	var msg struct {
		NobilID string `json:"nobilId"`
		EvseUID string `json:"evseUId"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(message, &msg); err != nil {
		return models.StatusEvent{}, fmt.Errorf("decode nobil message: %w", err)
	}

	siteKey, err := nobilSiteKey(msg.NobilID)
	if err != nil {
		return models.StatusEvent{}, err
	}
	if msg.EvseUID == "" {
		return models.StatusEvent{}, fmt.Errorf("nobil message without evseUId")
	}

	return models.StatusEvent{
		SiteKey:        siteKey,
		ChargepointKey: msg.EvseUID,
		Status: models.RealtimeStatus{
			Status:    models.ParseChargeStatus(msg.Status),
			Timestamp: time.Now().UTC(),
		},
	}, nil
}

func nobilSiteKey(nobilID string) (string, error) {
	_, raw, found := strings.Cut(nobilID, "_")
	if !found {
		return "", fmt.Errorf("malformed nobilId %q", nobilID)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return "", fmt.Errorf("malformed nobilId %q", nobilID)
	}
	return strconv.Itoa(n), nil
}
