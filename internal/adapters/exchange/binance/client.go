package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	prodRESTBase = "https://api.binance.com"
	prodWSBase   = "wss://stream.binance.com:9443"
	testRESTBase = "https://testnet.binance.vision"
	testWSBase   = "wss://stream.testnet.binance.vision"

	// Spot REST weight limit is 6000/min; staying near 18 req/s keeps a
	// comfortable margin for weight-2 endpoints.
	requestsPerSec = 18

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
	recvWindowMS  = 5000
)

// client is the signed Binance REST client with rate limiting and
// bounded retries for transient failures.
type client struct {
	http    *http.Client
	base    string
	wsBase  string
	key     string
	secret  string
	limiter *rate.Limiter
}

func newClient(key, secret string, sandbox bool) *client {
	base, wsBase := prodRESTBase, prodWSBase
	if sandbox {
		base, wsBase = testRESTBase, testWSBase
	}
	return &client{
		http:    &http.Client{Timeout: 10 * time.Second},
		base:    base,
		wsBase:  wsBase,
		key:     key,
		secret:  secret,
		limiter: rate.NewLimiter(requestsPerSec, 5),
	}
}

// apiError is Binance's error envelope for 4xx responses.
type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e apiError) Error() string {
	return fmt.Sprintf("binance: code %d: %s", e.Code, e.Msg)
}

// public performs an unsigned GET.
func (c *client) public(ctx context.Context, path string, q url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, q, false, out)
}

// keyed performs a request authenticated by API key header only, used
// for the user-data stream endpoints.
func (c *client) keyed(ctx context.Context, method, path string, q url.Values, out any) error {
	return c.do(ctx, method, path, q, false, out)
}

// signed performs an authenticated request with timestamp and HMAC
// signature appended to the query string.
func (c *client) signed(ctx context.Context, method, path string, q url.Values, out any) error {
	return c.do(ctx, method, path, q, true, out)
}

func (c *client) do(ctx context.Context, method, path string, q url.Values, sign bool, out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := c.request(ctx, method, path, q, sign)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusTeapot {
			resp.Body.Close()
			slog.Warn("binance: rate limited", "attempt", attempt+1, "status", resp.StatusCode)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			defer resp.Body.Close()
			var apiErr apiError
			if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Code != 0 {
				return apiErr
			}
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if out == nil {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

func (c *client) request(ctx context.Context, method, path string, q url.Values, sign bool) (*http.Response, error) {
	if q == nil {
		q = url.Values{}
	}
	encoded := q.Encode()
	if sign {
		q.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		q.Set("recvWindow", strconv.Itoa(recvWindowMS))
		// The signature covers every other parameter and goes last.
		encoded = q.Encode()
		encoded += "&signature=" + c.sign(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path+"?"+encoded, nil)
	if err != nil {
		return nil, err
	}
	if c.key != "" {
		req.Header.Set("X-MBX-APIKEY", c.key)
	}
	req.Header.Set("Accept", "application/json")
	return c.http.Do(req)
}

// sign computes the HMAC-SHA256 signature over the encoded query.
func (c *client) sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// sleep waits with exponential backoff, respecting the context.
func (c *client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
