package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bimakw/ledger-analyzer/internal/config"
	"github.com/bimakw/ledger-analyzer/internal/domain/entities"
	"github.com/bimakw/ledger-analyzer/internal/domain/repositories"
)

// Ensure Client implements LedgerRepository
var _ repositories.LedgerRepository = (*Client)(nil)

const maxErrorBody = 512

// Client wraps the remote ledger API with a request cache, a rate limiter and retries
type Client struct {
	httpClient *http.Client
	baseURL    string
	config     config.LedgerConfig
	cache      PageCache
	limiter    *rate.Limiter
	logger     *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
	closed atomic.Bool
}

// NewClient creates a new ledger API client. A nil cache selects an in-memory cache.
func NewClient(cfg config.LedgerConfig, cache PageCache, logger *zap.Logger) *Client {
	if cache == nil {
		cache = NewMemoryCache(cfg.CacheCapacity)
	}

	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(cfg.MaxRPS)
	if cfg.MaxRPS <= 0 {
		limit = rate.Inf
	}

	logger.Info("Created ledger client",
		zap.String("base_url", cfg.BaseURL),
		zap.Float64("max_rps", cfg.MaxRPS),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("cache_ttl", cfg.CacheTTL),
	)

	return &Client{
		httpClient: &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		config:     cfg,
		cache:      cache,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
	}
}

// Close releases idle connections; later calls fail with ErrClientClosed
func (c *Client) Close() {
	if c.closed.Swap(true) {
		return
	}
	c.httpClient.CloseIdleConnections()
}

// CacheStats returns cumulative request cache counters
func (c *Client) CacheStats() entities.CacheStats {
	return entities.CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// FetchTransactionPage retrieves one newest-first page of an account's transactions
func (c *Client) FetchTransactionPage(ctx context.Context, address string, offset, pageSize int) ([]entities.RawTransaction, error) {
	address, err := entities.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	if offset < 0 || pageSize <= 0 {
		return nil, fmt.Errorf("%w: offset %d and page size %d", entities.ErrInvalidRequest, offset, pageSize)
	}

	key := CacheKey{
		Operation: OpTransactions,
		Address:   address,
		Cursor:    fmt.Sprintf("%d:%d", offset, pageSize),
	}
	query := url.Values{}
	query.Set("offset", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(pageSize))

	var txs []apiTransaction
	if err := c.fetch(ctx, key, "/accounts/"+address+"/transactions", query, &txs); err != nil {
		return nil, err
	}

	out := make([]entities.RawTransaction, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tx.toRawTransaction())
	}
	return out, nil
}

// FetchDepositEvents retrieves one page of the deposit events of a coin store
func (c *Client) FetchDepositEvents(ctx context.Context, address, tokenType string, cursor entities.EventCursor) ([]entities.LedgerEvent, error) {
	return c.fetchEvents(ctx, OpDepositEvents, "deposit_events", entities.EventDeposit, address, tokenType, cursor)
}

// FetchWithdrawalEvents retrieves one page of the withdrawal events of a coin store
func (c *Client) FetchWithdrawalEvents(ctx context.Context, address, tokenType string, cursor entities.EventCursor) ([]entities.LedgerEvent, error) {
	return c.fetchEvents(ctx, OpWithdrawalEvents, "withdraw_events", entities.EventWithdrawal, address, tokenType, cursor)
}

func (c *Client) fetchEvents(
	ctx context.Context,
	op, field string,
	kind entities.EventKind,
	address, tokenType string,
	cursor entities.EventCursor,
) ([]entities.LedgerEvent, error) {
	address, err := entities.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	if tokenType == "" {
		tokenType = entities.NativeTokenType
	}
	if cursor.Limit <= 0 {
		return nil, fmt.Errorf("%w: event limit must be positive, got %d", entities.ErrInvalidRequest, cursor.Limit)
	}

	key := CacheKey{
		Operation: op,
		Address:   address,
		TokenType: tokenType,
		Cursor:    cursor.String(),
	}
	query := url.Values{}
	query.Set("limit", strconv.Itoa(cursor.Limit))
	if cursor.Start != nil {
		query.Set("start", strconv.FormatUint(*cursor.Start, 10))
	}
	path := "/accounts/" + address + "/events/" + url.PathEscape(tokenType) + "/" + field

	var raw []apiEvent
	if err := c.fetch(ctx, key, path, query, &raw); err != nil {
		if IsNotFound(err) {
			// No coin store of this type on the account
			return []entities.LedgerEvent{}, nil
		}
		return nil, err
	}

	events := make([]entities.LedgerEvent, 0, len(raw))
	skipped := 0
	for _, ev := range raw {
		le, ok := ev.toLedgerEvent(kind, tokenType)
		if !ok {
			skipped++
			continue
		}
		events = append(events, le)
	}

	if skipped > 0 {
		c.logger.Debug("Skipped unrecognized events",
			zap.String("address", address),
			zap.String("operation", op),
			zap.Int("skipped", skipped),
		)
	}

	return events, nil
}

// FetchAccountSnapshot retrieves account metadata and coin balances
func (c *Client) FetchAccountSnapshot(ctx context.Context, address string) (*entities.AccountSnapshot, error) {
	address, err := entities.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}

	var account apiAccount
	if err := c.fetch(ctx, CacheKey{Operation: OpAccount, Address: address}, "/accounts/"+address, nil, &account); err != nil {
		return nil, err
	}

	var resources []apiResource
	if err := c.fetch(ctx, CacheKey{Operation: OpResources, Address: address}, "/accounts/"+address+"/resources", nil, &resources); err != nil {
		return nil, err
	}

	balances := make([]entities.CoinBalance, 0)
	for _, r := range resources {
		if b, ok := r.coinBalance(); ok {
			balances = append(balances, b)
		}
	}

	return &entities.AccountSnapshot{
		Address:           address,
		SequenceNumber:    parseUint(account.SequenceNumber),
		AuthenticationKey: account.AuthenticationKey,
		Balances:          balances,
		FetchedAt:         time.Now().UTC(),
	}, nil
}

// fetch serves key from the cache or performs the request and decodes into dest.
// Only payloads that decode cleanly are cached.
func (c *Client) fetch(ctx context.Context, key CacheKey, path string, query url.Values, dest interface{}) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	if body, ok := c.cache.Get(ctx, key); ok {
		c.hits.Add(1)
		cacheLookupsTotal.WithLabelValues(key.Operation, "hit").Inc()
		if err := json.Unmarshal(body, dest); err != nil {
			return fmt.Errorf("failed to decode cached %s payload: %w", key.Operation, err)
		}
		return nil
	}
	c.misses.Add(1)
	cacheLookupsTotal.WithLabelValues(key.Operation, "miss").Inc()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	body, err := c.doWithRetry(ctx, key.Operation, endpoint)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", key.Operation, err)
	}

	if err := c.cache.Set(ctx, key, body, c.config.CacheTTL); err != nil {
		c.logger.Warn("Failed to cache ledger response",
			zap.String("operation", key.Operation),
			zap.Error(err),
		)
	}

	return nil
}

// doWithRetry issues a GET, retrying transient failures with exponential backoff.
// Every attempt waits on the shared rate limiter.
func (c *Client) doWithRetry(ctx context.Context, op, endpoint string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt - 1)
			retriesTotal.WithLabelValues(op).Inc()

			c.logger.Warn("Ledger request failed, retrying",
				zap.String("operation", op),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(lastErr),
			)

			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("failed to wait for rate limiter: %w", err)
		}

		body, err := c.doRequest(ctx, op, endpoint)
		if err == nil {
			return body, nil
		}

		// The caller gave up; in-flight results are discarded
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: %s failed after %d attempts: %w",
		entities.ErrRemoteUnavailable, op, c.config.MaxRetries+1, lastErr)
}

func (c *Client) doRequest(ctx context.Context, op, endpoint string) ([]byte, error) {
	if c.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.RequestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	requestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues(op, "error").Inc()
		return nil, fmt.Errorf("%s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		requestsTotal.WithLabelValues(op, "error").Inc()
		return nil, fmt.Errorf("failed to read %s response: %w", op, err)
	}

	requestsTotal.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &RemoteError{Operation: op, StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}

// backoff returns RetryDelay * 2^retry, capped at MaxBackoff
func (c *Client) backoff(retry int) time.Duration {
	base := c.config.RetryDelay
	if base <= 0 {
		return 0
	}
	if retry > 30 {
		retry = 30
	}
	d := base * time.Duration(1<<retry)
	if c.config.MaxBackoff > 0 && (d > c.config.MaxBackoff || d <= 0) {
		return c.config.MaxBackoff
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// HealthCheck asks the ledger API for its current ledger info, bypassing cache and retries
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	_, err := c.doRequest(ctx, "health", c.baseURL+"/")
	return err
}
