package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const purgeTimeout = 30 * time.Second

// StartJanitor purges expired entries on the given cron schedule
// (standard five-field spec or descriptors such as "@every 1h").
// The caller stops the returned scheduler.
func StartJanitor(c *ResponseCache, schedule string, logger *zap.Logger) (*cron.Cron, error) {
	j := cron.New()
	_, err := j.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
		defer cancel()

		n := c.Purge(ctx)
		logger.Info("purged expired cache entries", zap.Int("removed", n), zap.Int("remaining", c.Len()))
	})
	if err != nil {
		return nil, fmt.Errorf("invalid cache cleanup schedule %q: %w", schedule, err)
	}
	j.Start()
	return j, nil
}
