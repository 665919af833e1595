package narrative

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"biomarkerscope/config"
)

// Der Client hält bewusst keinen Timeout auf dem http.Client; die
// Lebensdauer des Streams wird über den Context begrenzt.
var httpClient = &http.Client{}

// Client kapselt die Verbindung zum Report-Generator.
type Client struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewClient erstellt eine neue Instanz des Narrative-Clients.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{Config: cfg, Logger: logger}
}

// Name gibt den Namen des Providers zurück.
func (c *Client) Name() string {
	return "narrative"
}

// Stream öffnet den Report-Stream für ein (Indikation, Biomarker)-Paar.
// Events kommen über den Kanal, bis der Stream endet; ein Abbruch des
// Contexts bricht die Verbindung ab. Der Fehlerkanal liefert höchstens
// einen Wert und wird danach geschlossen.
func (c *Client) Stream(ctx context.Context, indication, biomarker string) (<-chan Event, <-chan error, error) {
	params := url.Values{
		"indication": {indication},
		"biomarker":  {biomarker},
	}
	streamURL := fmt.Sprintf("%s/api/research/report?%s", c.Config.NarrativeBaseURL, params.Encode())
	log := c.Logger.With(zap.String("indication", indication), zap.String("biomarker", biomarker))
	log.Info("Öffne Report-Stream", zap.String("url", streamURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, nil, fmt.Errorf("report-stream antwortete mit status %d", resp.StatusCode)
	}

	events := make(chan Event)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				// Leerzeilen und Kommentar-Frames überspringen.
				continue
			}
			payload := strings.TrimPrefix(line, "data: ")

			var ev Event
			if err := json.Unmarshal([]byte(payload), &ev); err != nil {
				log.Warn("Unlesbarer SSE-Frame", zap.String("payload", payload), zap.Error(err))
				continue
			}

			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			log.Warn("Report-Stream abgebrochen", zap.Error(err))
			errs <- err
		}
	}()

	return events, errs, nil
}
