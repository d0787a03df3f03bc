package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/okulsight/attendance-api/internal/models"
	appErrors "github.com/okulsight/attendance-api/pkg/errors"
)

// RosterCache keeps course rosters (including encoded face references) in
// Redis so repeated attendance passes skip the roster query. Entries are
// invalidated whenever a student's face reference changes.
type RosterCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRosterCache constructs the cache. A nil client disables caching.
func NewRosterCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RosterCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterCache{client: client, ttl: ttl, logger: logger}
}

// Get retrieves the cached roster for a course.
func (c *RosterCache) Get(ctx context.Context, courseID string) ([]models.Student, error) {
	if c.client == nil {
		return nil, appErrors.ErrCacheMiss
	}

	raw, err := c.client.Get(ctx, rosterKey(courseID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get roster %s: %w", courseID, err)
	}

	var students []models.Student
	if err := json.Unmarshal(raw, &students); err != nil {
		return nil, fmt.Errorf("unmarshal cached roster %s: %w", courseID, err)
	}
	return students, nil
}

// Set stores the roster with the configured TTL.
func (c *RosterCache) Set(ctx context.Context, courseID string, students []models.Student) error {
	if c.client == nil {
		return nil
	}

	payload, err := json.Marshal(students)
	if err != nil {
		return fmt.Errorf("marshal roster %s: %w", courseID, err)
	}

	if err := c.client.Set(ctx, rosterKey(courseID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set roster %s: %w", courseID, err)
	}
	return nil
}

// InvalidateAll drops every cached roster. Used after a face re-enrollment,
// since course membership for the student is not tracked in the cache key.
func (c *RosterCache) InvalidateAll(ctx context.Context) error {
	if c.client == nil {
		return nil
	}

	iter := c.client.Scan(ctx, 0, rosterKey("*"), 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis delete %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan rosters: %w", err)
	}
	return nil
}

func rosterKey(courseID string) string {
	return "roster:" + courseID
}
