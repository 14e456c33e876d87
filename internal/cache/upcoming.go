package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/fleetdocs/internal/config"
	"github.com/andresuchdata/fleetdocs/internal/domain"
)

const (
	upcomingKeyPrefix = "surveys:upcoming"
	defaultCacheTTL   = 5 * time.Minute
)

// UpcomingSurveyCache stores computed worklists per company and filter.
// Writes to a company's ships or certificates must invalidate its entries.
type UpcomingSurveyCache interface {
	Get(ctx context.Context, filter domain.UpcomingSurveyFilter) (*domain.UpcomingSurveys, bool, error)
	Set(ctx context.Context, filter domain.UpcomingSurveyFilter, result *domain.UpcomingSurveys) error
	InvalidateCompany(ctx context.Context, companyID string) error
	InvalidateAll(ctx context.Context) error
}

type redisUpcomingCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopUpcomingCache struct{}

func NewUpcomingSurveyCache(cfg config.CacheConfig) (UpcomingSurveyCache, error) {
	if !cfg.Enabled {
		return &noopUpcomingCache{}, nil
	}

	opts, err := buildRedisOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	ttl := time.Duration(cfg.UpcomingTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &redisUpcomingCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func NewNoopUpcomingSurveyCache() UpcomingSurveyCache {
	return &noopUpcomingCache{}
}

func (c *redisUpcomingCache) Get(ctx context.Context, filter domain.UpcomingSurveyFilter) (*domain.UpcomingSurveys, bool, error) {
	payload, err := c.client.Get(ctx, buildUpcomingKey(filter)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var result domain.UpcomingSurveys
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, false, fmt.Errorf("decode upcoming survey cache: %w", err)
	}
	if result.Entries == nil {
		result.Entries = []domain.UpcomingSurveyEntry{}
	}

	return &result, true, nil
}

func (c *redisUpcomingCache) Set(ctx context.Context, filter domain.UpcomingSurveyFilter, result *domain.UpcomingSurveys) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode upcoming survey cache: %w", err)
	}

	if err := c.client.Set(ctx, buildUpcomingKey(filter), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisUpcomingCache) InvalidateCompany(ctx context.Context, companyID string) error {
	_, err := purge(ctx, c.client, companyPrefix(companyID))
	return err
}

func (c *redisUpcomingCache) InvalidateAll(ctx context.Context) error {
	_, err := purge(ctx, c.client, upcomingKeyPrefix+":")
	return err
}

func (n *noopUpcomingCache) Get(ctx context.Context, filter domain.UpcomingSurveyFilter) (*domain.UpcomingSurveys, bool, error) {
	return nil, false, nil
}

func (n *noopUpcomingCache) Set(ctx context.Context, filter domain.UpcomingSurveyFilter, result *domain.UpcomingSurveys) error {
	return nil
}

func (n *noopUpcomingCache) InvalidateCompany(ctx context.Context, companyID string) error {
	return nil
}

func (n *noopUpcomingCache) InvalidateAll(ctx context.Context) error {
	return nil
}

func companyPrefix(companyID string) string {
	id := strings.TrimSpace(companyID)
	if id == "" {
		id = "_"
	}
	return fmt.Sprintf("%s:%s:", upcomingKeyPrefix, id)
}

func buildUpcomingKey(filter domain.UpcomingSurveyFilter) string {
	return companyPrefix(filter.CompanyID) + upcomingFilterHash(filter)
}

func upcomingFilterHash(filter domain.UpcomingSurveyFilter) string {
	parts := []string{"today=" + filter.Today.String()}

	if name := strings.ToLower(strings.TrimSpace(filter.ShipName)); name != "" {
		parts = append(parts, "ship_name="+name)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		if label, ok := domain.ParseSurveyStatus(status); ok {
			status = label
		}
		parts = append(parts, "status="+strings.ToLower(status))
	}

	sort.Strings(parts)
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
