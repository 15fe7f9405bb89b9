package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/ozanyurt/crm-comms-service/environments"
	"github.com/ozanyurt/crm-comms-service/pkg/logger"
)

// Client caches contact opt-out status so the compliance gate does not hit
// MySQL on every inbound message. The cache is an optimization only: a nil
// or unavailable client degrades to database reads.
type Client struct {
	client valkey.Client
}

const (
	optOutKeyPrefix = "optout:contact:"
	optOutTTL       = 12 * time.Hour
)

func NewRedisClient(cfg environments.RedisConfig) (*Client, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)},
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Valkey client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Infof("Connected to Redis (via Valkey client)")

	return &Client{client: client}, nil
}

// GetOptOutStatus returns the cached status and whether a cache entry
// existed at all.
func (c *Client) GetOptOutStatus(ctx context.Context, contactID int64) (optedOut, found bool, err error) {
	key := fmt.Sprintf("%s%d", optOutKeyPrefix, contactID)

	result := c.client.Do(ctx, c.client.B().Get().Key(key).Build())
	if result.Error() != nil {
		if valkey.IsValkeyNil(result.Error()) {
			return false, false, nil
		}
		return false, false, fmt.Errorf("failed to get opt-out status: %w", result.Error())
	}

	value, err := result.ToString()
	if err != nil {
		return false, false, fmt.Errorf("failed to read opt-out status: %w", err)
	}

	return value == "1", true, nil
}

// SetOptOutStatus writes through on every flag change and on cache misses.
func (c *Client) SetOptOutStatus(ctx context.Context, contactID int64, optedOut bool) error {
	key := fmt.Sprintf("%s%d", optOutKeyPrefix, contactID)

	value := "0"
	if optedOut {
		value = "1"
	}

	err := c.client.Do(ctx, c.client.B().Set().Key(key).Value(value).Ex(optOutTTL).Build()).Error()
	if err != nil {
		return fmt.Errorf("failed to cache opt-out status: %w", err)
	}

	logger.Debugf("Cached opt-out status for contact %d: %s", contactID, value)

	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}

func (c *Client) Close() error {
	c.client.Close()
	return nil
}
