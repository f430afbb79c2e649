// internal/controller/runner.go
package controller

import (
	"context"
	"time"
)

// Run homes the servos, then ticks Step at the loop period until ctx is done.
// One goroutine. No overlap: a slow iteration delays the next tick.
func (c *Controller) Run(ctx context.Context) {
	if err := c.d.Servos.Home(c.cfg.HomeAzimuth, c.cfg.HomeElevation); err != nil {
		c.log.Error().Err(err).Msg("homing failed")
	}

	ticker := time.NewTicker(time.Duration(c.cfg.Period) * time.Millisecond)
	defer ticker.Stop()

	c.log.Info().Uint32("period_ms", c.cfg.Period).Msg("control loop started")

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("control loop stopped")
			return
		case <-ticker.C:
			c.Step()
		}
	}
}
