package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/fleetdocs/internal/config"
	"github.com/andresuchdata/fleetdocs/internal/domain"
)

func TestBuildUpcomingKey(t *testing.T) {
	today := civil.Date{Year: 2026, Month: time.March, Day: 1}

	base := domain.UpcomingSurveyFilter{CompanyID: "acme", Today: today}
	key := buildUpcomingKey(base)
	assert.True(t, strings.HasPrefix(key, "surveys:upcoming:acme:"))

	t.Run("normalised filters share a key", func(t *testing.T) {
		a := domain.UpcomingSurveyFilter{CompanyID: "acme", ShipName: " Ocean ", Status: "due_soon", Today: today}
		b := domain.UpcomingSurveyFilter{CompanyID: "acme", ShipName: "ocean", Status: "Due Soon", Today: today}
		assert.Equal(t, buildUpcomingKey(a), buildUpcomingKey(b))
	})

	t.Run("today is part of the key", func(t *testing.T) {
		next := base
		next.Today = today.AddDays(1)
		assert.NotEqual(t, key, buildUpcomingKey(next))
	})

	t.Run("companies do not collide", func(t *testing.T) {
		other := base
		other.CompanyID = "globex"
		assert.NotEqual(t, key, buildUpcomingKey(other))
	})

	t.Run("missing company", func(t *testing.T) {
		assert.True(t, strings.HasPrefix(buildUpcomingKey(domain.UpcomingSurveyFilter{Today: today}), "surveys:upcoming:_:"))
	})
}

func TestNewUpcomingSurveyCache_DisabledIsNoop(t *testing.T) {
	c, err := NewUpcomingSurveyCache(config.CacheConfig{Enabled: false})
	require.NoError(t, err)

	ctx := context.Background()
	filter := domain.UpcomingSurveyFilter{CompanyID: "acme"}
	require.NoError(t, c.Set(ctx, filter, &domain.UpcomingSurveys{Total: 3}))

	got, ok, err := c.Get(ctx, filter)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.NoError(t, c.InvalidateCompany(ctx, "acme"))
	assert.NoError(t, c.InvalidateAll(ctx))
}

func TestBuildRedisOptions(t *testing.T) {
	opts, err := buildRedisOptions(config.CacheConfig{})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6379", opts.Addr)

	opts, err = buildRedisOptions(config.CacheConfig{RedisURL: "redis://:secret@cache:6380/2"})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)

	_, err = buildRedisOptions(config.CacheConfig{RedisURL: "http://nope"})
	assert.Error(t, err)
}

func TestPrefixPatternEscapesGlob(t *testing.T) {
	tests := []struct {
		company string
		want    string
	}{
		{"acme", `surveys:upcoming:acme:*`},
		{"*", `surveys:upcoming:\*:*`},
		{"a*", `surveys:upcoming:a\*:*`},
		{"ac?e[1]", `surveys:upcoming:ac\?e\[1\]:*`},
		{`a\b`, `surveys:upcoming:a\\b:*`},
	}

	for _, tt := range tests {
		t.Run(tt.company, func(t *testing.T) {
			assert.Equal(t, tt.want, prefixPattern(companyPrefix(tt.company)))
		})
	}
}
