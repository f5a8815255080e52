package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultDriveTimeInterval is the traffic poll cadence.
const DefaultDriveTimeInterval = 5 * time.Minute

// DriveTimeReading is the payload a drive-time endpoint returns per route.
type DriveTimeReading struct {
	Route   string `json:"route"`
	Minutes int    `json:"minutes"`
}

// DriveTimeSource alerts when the current travel time for a route meets the
// configured threshold. Each route is an independent logical key, so one
// congested route alerting does not mask another.
type DriveTimeSource struct {
	url       string
	threshold int // minutes
	client    *http.Client
}

// NewDriveTimeSource polls url (a JSON array of DriveTimeReading) and alerts
// on routes at or above threshold minutes.
func NewDriveTimeSource(url string, threshold int) *DriveTimeSource {
	return &DriveTimeSource{
		url:       url,
		threshold: threshold,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *DriveTimeSource) Poll(ctx context.Context, now time.Time) ([]Alert, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("drive-time fetch failed: %s", resp.Status)
	}

	var readings []DriveTimeReading
	if err := json.NewDecoder(resp.Body).Decode(&readings); err != nil {
		return nil, fmt.Errorf("drive-time decode error: %w", err)
	}

	var alerts []Alert
	for _, r := range readings {
		if r.Minutes < s.threshold {
			continue
		}
		alerts = append(alerts, Alert{
			Key: "drive-time/" + r.Route,
			// The route alone is the payload: a worsening estimate while the
			// route already alerts is not a new occurrence.
			Payload: r.Route,
			Message: Message{
				Type: "traffic",
				Name: r.Route,
				Due:  now.Format("2006-01-02"),
				Data: r,
			},
		})
	}
	return alerts, nil
}
