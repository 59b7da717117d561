package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// FallbackReply is returned to the user whenever the bot endpoint cannot
// produce an answer.
const FallbackReply = "Sorry, I encountered an error. Please try again."

var ErrNotConfigured = errors.New("webhook url not configured")

// Bridge issues the single outbound call per relayed message to the external
// bot endpoint. Transient failures are retried with exponential backoff, a
// breaker sheds load while the endpoint is down, and an outbound limiter
// keeps us polite toward it.
type Bridge struct {
	webhookURL string
	client     *http.Client
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	maxElapsed time.Duration
	log        *zap.Logger
}

func New(webhookURL string, timeout time.Duration, log *zap.Logger) *Bridge {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	tr := &http.Transport{
		DialContext:     (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
	}
	return &Bridge{
		webhookURL: webhookURL,
		client:     &http.Client{Transport: tr, Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "bot-webhook",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
		}),
		limiter:    rate.NewLimiter(rate.Limit(10), 20),
		maxElapsed: timeout,
		log:        log,
	}
}

// Ask forwards the user text and returns the bot's reply field; an empty
// reply with a nil error means the endpoint answered without one and the
// caller should fall back.
func (b *Bridge) Ask(ctx context.Context, sessionID, text string) (string, error) {
	if b.webhookURL == "" {
		return "", ErrNotConfigured
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return "", err
	}
	res, err := b.breaker.Execute(func() (interface{}, error) {
		return b.fetchReply(ctx, sessionID, text)
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

func (b *Bridge) fetchReply(ctx context.Context, sessionID, text string) (string, error) {
	u, err := url.Parse(b.webhookURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("sessionId", sessionID)
	q.Set("action", "sendMessage")
	q.Set("chatInput", text)
	u.RawQuery = q.Encode()

	var reply string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "ChatBot-API/1.0")
		req.Header.Set("X-Request-ID", uuid.NewString())

		resp, err := b.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			_, _ = io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("bot endpoint returned %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			_, _ = io.Copy(io.Discard, resp.Body)
			return backoff.Permanent(fmt.Errorf("bot endpoint returned %d", resp.StatusCode))
		}

		var body struct {
			Reply string `json:"reply"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return backoff.Permanent(fmt.Errorf("decode bot response: %w", err))
		}
		reply = body.Reply
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = b.maxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		b.log.Warn("bot webhook call failed", zap.String("session_id", sessionID), zap.Error(err))
		return "", err
	}
	return reply, nil
}
