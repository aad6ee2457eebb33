package policy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Severity classifies an alert for webhook min_severity filtering.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityCritical: 2,
}

// severityFor maps a policy action to an alert severity per spec.md §4.3.
// Allow produces no alert at all; callers should not call Notify for it,
// but severityFor still returns a sentinel for completeness.
func severityFor(a Action) Severity {
	switch a {
	case ActionDeny:
		return SeverityCritical
	case ActionAskUser:
		return SeverityWarning
	case ActionDryRunFirst:
		return SeverityInfo
	default:
		return "" // Allow: no alert
	}
}

// AlertPayload is the JSON body posted to each matching webhook.
type AlertPayload struct {
	Severity    Severity `json:"severity"`
	Timestamp   string   `json:"timestamp"`
	ToolName    string   `json:"tool_name"`
	Arguments   string   `json:"arguments"`
	Action      Action   `json:"action"`
	MatchedRule string   `json:"matched_rule,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	User        string   `json:"user,omitempty"`
}

// WebhookConfig describes one alert destination, as parsed from TOML.
type WebhookConfig struct {
	URL         string   `toml:"url"`
	Token       string   `toml:"token,omitempty"`
	MinSeverity Severity `toml:"min_severity"`
}

// rateLimiter is a token bucket that refills on whole-minute boundaries,
// matching the original's deliberate choice of minute-granularity refill
// rather than a smooth per-second leak.
type rateLimiter struct {
	mu           sync.Mutex
	capacity     int
	tokens       int
	lastRefillAt time.Time
	now          func() time.Time
}

func newRateLimiter(capacity int) *rateLimiter {
	return &rateLimiter{capacity: capacity, tokens: capacity, lastRefillAt: time.Now(), now: time.Now}
}

// allow consumes one token if available, refilling to full capacity once a
// new whole minute has elapsed since the last refill.
func (rl *rateLimiter) allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Truncate(time.Minute).After(rl.lastRefillAt.Truncate(time.Minute)) {
		rl.tokens = rl.capacity
		rl.lastRefillAt = now
	}
	if rl.tokens <= 0 {
		return false
	}
	rl.tokens--
	return true
}

// defaultRateLimit is the spec's default of 10 alerts per minute.
const defaultRateLimit = 10

// HTTPPoster posts an alert payload to a webhook. http.Client satisfies a
// trivial adaptation of this via PostJSON below; tests may substitute a
// fake.
type HTTPPoster interface {
	Post(url, token string, body []byte) error
}

// httpPoster is the default HTTPPoster using net/http.
type httpPoster struct {
	client *http.Client
}

func (p *httpPoster) Post(url, token string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// AlertManager fans out non-allow policy decisions to configured webhooks,
// rate-limiting outbound delivery per spec.md §4.3.
type AlertManager struct {
	webhooks []WebhookConfig
	limiter  *rateLimiter
	poster   HTTPPoster
	logger   *slog.Logger
}

// NewAlertManager constructs an AlertManager with the default 10/min rate
// limit and a real HTTP poster.
func NewAlertManager(webhooks []WebhookConfig, logger *slog.Logger) *AlertManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertManager{
		webhooks: webhooks,
		limiter:  newRateLimiter(defaultRateLimit),
		poster:   &httpPoster{client: &http.Client{Timeout: 5 * time.Second}},
		logger:   logger,
	}
}

// SetPoster overrides the HTTP transport, used by tests to avoid real
// network calls.
func (am *AlertManager) SetPoster(p HTTPPoster) { am.poster = p }

// Notify delivers payload to every configured webhook whose min_severity is
// at or below the payload's severity, subject to the rate limiter. Allow
// decisions (empty Severity) are not delivered to any webhook, but still
// consume no rate-limit token — the limiter only guards actual delivery
// attempts.
func (am *AlertManager) Notify(payload AlertPayload) {
	if payload.Severity == "" {
		return
	}
	payload.Timestamp = time.Now().UTC().Format(time.RFC3339)

	for _, wh := range am.webhooks {
		minSeverity := wh.MinSeverity
		if minSeverity == "" {
			minSeverity = SeverityInfo
		}
		if severityRank[payload.Severity] < severityRank[minSeverity] {
			continue
		}
		if !am.limiter.allow() {
			am.logger.Warn("alert dropped by rate limiter", slog.String("url", wh.URL))
			continue
		}

		body, err := json.Marshal(payload)
		if err != nil {
			am.logger.Warn("failed to marshal alert payload", slog.Any("error", err))
			continue
		}
		if err := am.poster.Post(wh.URL, wh.Token, body); err != nil {
			am.logger.Warn("failed to deliver alert", slog.String("url", wh.URL), slog.Any("error", err))
		}
	}
}
