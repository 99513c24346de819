package status

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	statusPath       = "/api/get_status"
	maxBodyBytes     = 1 << 20
	DefaultTimeout   = 10 * time.Second
	debugBodyPreview = 2048
)

var (
	// ErrTransport covers network failures, timeouts and non-2xx responses.
	ErrTransport = errors.New("status transport error")
	// ErrMalformedResponse covers wrong content types and missing or invalid fields.
	ErrMalformedResponse = errors.New("malformed status response")
)

// GameState is the validated status of one game server for one tick.
type GameState struct {
	CurrentPlayers int
	MaxPlayers     int
	ServerName     string
	MapName        string
}

type Fetcher struct {
	token  string
	client *http.Client
	log    *slog.Logger
}

type Option func(*Fetcher)

func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.log = l
		}
	}
}

// NewFetcher returns a Fetcher that authenticates with token. A timeout <= 0
// falls back to DefaultTimeout; requests never block indefinitely.
func NewFetcher(token string, timeout time.Duration, opts ...Option) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	f := &Fetcher{
		token:  token,
		client: &http.Client{Timeout: timeout},
		log:    slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch queries {endpoint}/api/get_status. Errors wrap ErrTransport or
// ErrMalformedResponse.
func (f *Fetcher) Fetch(ctx context.Context, endpoint string) (GameState, error) {
	url := strings.TrimRight(endpoint, "/") + statusPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return GameState{}, fmt.Errorf("%w: build request: %v", ErrTransport, err)
	}
	req.Header.Set("Authorization", "Bearer "+f.token)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return GameState{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	contentType := resp.Header.Get("Content-Type")

	f.log.Debug("status response",
		"server", endpoint,
		"status", resp.StatusCode,
		"content_type", contentType,
		"body", preview(body),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return GameState{}, fmt.Errorf("%w: http status %d", ErrTransport, resp.StatusCode)
	}
	if readErr != nil {
		return GameState{}, fmt.Errorf("%w: read body: %v", ErrTransport, readErr)
	}
	if !isJSONMediaType(contentType) {
		return GameState{}, fmt.Errorf("%w: unexpected content type %q", ErrMalformedResponse, contentType)
	}
	return parseGameState(body)
}

type statusEnvelope struct {
	Result *struct {
		CurrentPlayers json.RawMessage `json:"current_players"`
		MaxPlayers     json.RawMessage `json:"max_players"`
		Name           *string         `json:"name"`
		Map            *struct {
			PrettyName *string `json:"pretty_name"`
		} `json:"map"`
	} `json:"result"`
}

func parseGameState(body []byte) (GameState, error) {
	var env statusEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return GameState{}, fmt.Errorf("%w: decode json: %v", ErrMalformedResponse, err)
	}
	r := env.Result
	if r == nil {
		return GameState{}, fmt.Errorf("%w: missing result", ErrMalformedResponse)
	}

	cur, err := parseCount(r.CurrentPlayers)
	if err != nil {
		return GameState{}, fmt.Errorf("%w: current_players: %v", ErrMalformedResponse, err)
	}
	maxPlayers, err := parseCount(r.MaxPlayers)
	if err != nil {
		return GameState{}, fmt.Errorf("%w: max_players: %v", ErrMalformedResponse, err)
	}
	if r.Name == nil {
		return GameState{}, fmt.Errorf("%w: missing name", ErrMalformedResponse)
	}
	if r.Map == nil || r.Map.PrettyName == nil {
		return GameState{}, fmt.Errorf("%w: missing map.pretty_name", ErrMalformedResponse)
	}

	return GameState{
		CurrentPlayers: cur,
		MaxPlayers:     maxPlayers,
		ServerName:     *r.Name,
		MapName:        *r.Map.PrettyName,
	}, nil
}

// parseCount accepts a JSON integer, an integral float, or a numeric string.
func parseCount(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, errors.New("missing")
	}

	var n int
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		v, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", s)
		}
		n = v
	} else {
		var num json.Number
		if err := json.Unmarshal(raw, &num); err != nil {
			return 0, fmt.Errorf("not a number: %s", raw)
		}
		if v, err := num.Int64(); err == nil {
			n = int(v)
		} else {
			fv, ferr := num.Float64()
			if ferr != nil || fv != math.Trunc(fv) || math.Abs(fv) > math.MaxInt32 {
				return 0, fmt.Errorf("not an integer: %s", raw)
			}
			n = int(fv)
		}
	}
	if n < 0 {
		return 0, fmt.Errorf("negative: %d", n)
	}
	return n, nil
}

func isJSONMediaType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

func preview(b []byte) string {
	if len(b) <= debugBodyPreview {
		return string(b)
	}
	return string(b[:debugBodyPreview]) + "...(truncated)"
}
