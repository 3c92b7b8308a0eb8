package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"time"

	"go.uber.org/zap"

	"chargesync/internal/models"
)

// MontaConfig configures the Monta partner API feed (Germany).
type MontaConfig struct {
	APIURL       string
	TokenURL     string
	RefreshURL   string
	ClientID     string
	ClientSecret string
	CountryID    int
}

// montaSource pulls realtime chargepoint states from the paginated Monta
// AFIR endpoint, authenticating via the client-credentials token flow.
type montaSource struct {
	cfg    MontaConfig
	client *http.Client
	tokens *TokenProvider
	log    *zap.Logger
}

// NewMontaSource builds the Monta source.
func NewMontaSource(cfg MontaConfig, client *http.Client, log *zap.Logger) *Source {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	tokens := NewTokenProvider(TokenProviderConfig{
		TokenURL:     cfg.TokenURL,
		RefreshURL:   cfg.RefreshURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	}, client, log)
	return &Source{
		ID:      "monta",
		Dynamic: &montaSource{cfg: cfg, client: client, tokens: tokens, log: log},
	}
}

// montaStatuses maps Monta chargepoint states to OCPI statuses.
var montaStatuses = map[string]models.ChargeStatus{
	"available":         models.StatusAvailable,
	"busy":              models.StatusCharging,
	"busy-blocked":      models.StatusBlocked,
	"busy-charging":     models.StatusCharging,
	"busy-non-charging": models.StatusBlocked,
	"busy-non-released": models.StatusBlocked,
	"busy-reserved":     models.StatusReserved,
	"busy-scheduled":    models.StatusReserved,
	"error":             models.StatusOutOfOrder,
	"maintenance":       models.StatusOutOfOrder,
	"disconnected":      models.StatusUnknown,
	"passive":           models.StatusUnknown,
	"exempt":            models.StatusUnknown,
}

type montaChargePoint struct {
	ID       int64  `json:"id"`
	State    string `json:"state"`
	Location struct {
		AddressLabel string `json:"addressLabel"`
	} `json:"location"`
}

type montaPage struct {
	Data []montaChargePoint `json:"data"`
	Meta struct {
		After *string `json:"after"`
	} `json:"meta"`
}

// FetchDynamic fetches the first page eagerly so auth and connectivity
// errors surface before any events are consumed, then walks the remaining
// pages lazily.
func (m *montaSource) FetchDynamic(ctx context.Context) (iter.Seq[models.StatusEvent], error) {
	first, err := m.fetchPage(ctx, "")
	if err != nil {
		return nil, err
	}

	seq := func(yield func(models.StatusEvent) bool) {
		page := first
		for {
			now := time.Now().UTC()
			for _, cp := range page.Data {
				status, ok := montaStatuses[cp.State]
				if !ok {
					status = models.StatusUnknown
				}
				event := models.StatusEvent{
					SiteKey:        cp.Location.AddressLabel,
					ChargepointKey: fmt.Sprintf("%d", cp.ID),
					Status: models.RealtimeStatus{
						Status:    status,
						Timestamp: now,
					},
				}
				if !yield(event) {
					return
				}
			}

			if page.Meta.After == nil {
				return
			}
			next, err := m.fetchPage(ctx, *page.Meta.After)
			if err != nil {
				m.log.Warn("aborting monta pagination", zap.Error(err))
				return
			}
			page = next
		}
	}
	return seq, nil
}

func (m *montaSource) fetchPage(ctx context.Context, after string) (*montaPage, error) {
	token, err := m.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.APIURL, nil)
	if err != nil {
		return nil, err
	}
	query := req.URL.Query()
	if after != "" {
		query.Set("after", after)
	}
	if m.cfg.CountryID != 0 {
		query.Set("countryId", fmt.Sprintf("%d", m.cfg.CountryID))
	}
	req.URL.RawQuery = query.Encode()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("monta api returned status %d", resp.StatusCode)
	}

	var page montaPage
	if err := json.NewDecoder(io.LimitReader(resp.Body, 16<<20)).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode monta page: %w", err)
	}
	return &page, nil
}
