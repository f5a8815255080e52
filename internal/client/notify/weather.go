package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultWeatherInterval is the weather alert poll cadence.
const DefaultWeatherInterval = 30 * time.Minute

// WeatherAlert is one active alert from the weather endpoint.
type WeatherAlert struct {
	ID       string `json:"id"`
	Headline string `json:"headline"`
	Details  string `json:"details"`
}

// TimeWindow is a day-of-week plus time-of-day window. The zero value
// matches always.
type TimeWindow struct {
	Days []time.Weekday
	From string // "15:04", inclusive
	To   string // "15:04", exclusive
}

// Contains reports whether t falls inside the window. The window predicate
// is evaluated on every poll, never cached.
func (w TimeWindow) Contains(t time.Time) bool {
	if len(w.Days) > 0 {
		match := false
		for _, d := range w.Days {
			if t.Weekday() == d {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	if w.From == "" && w.To == "" {
		return true
	}
	clock := t.Format("15:04")
	if w.From != "" && clock < w.From {
		return false
	}
	if w.To != "" && clock >= w.To {
		return false
	}
	return true
}

// WeatherSource surfaces weather alerts during a configured window. The
// alert body is the content payload, so a materially revised alert (say a
// new snow-accumulation estimate) re-fires even though its id is unchanged.
type WeatherSource struct {
	url    string
	window TimeWindow
	client *http.Client
}

// NewWeatherSource polls url (a JSON array of WeatherAlert) inside window.
func NewWeatherSource(url string, window TimeWindow) *WeatherSource {
	return &WeatherSource{
		url:    url,
		window: window,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *WeatherSource) Poll(ctx context.Context, now time.Time) ([]Alert, error) {
	if !s.window.Contains(now) {
		return nil, nil
	}

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
		return nil, fmt.Errorf("weather fetch failed: %s", resp.Status)
	}

	var raw []WeatherAlert
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("weather decode error: %w", err)
	}

	var alerts []Alert
	for _, a := range raw {
		alerts = append(alerts, Alert{
			Key:     "weather/" + a.ID,
			Payload: a.Headline + "\n" + a.Details,
			Message: Message{
				Type: "weather",
				Name: a.Headline,
				Due:  now.Format("2006-01-02"),
				Data: a,
			},
		})
	}
	return alerts, nil
}
