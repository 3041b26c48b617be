package jobs

import (
	"context"
	"log"
	"time"

	"github.com/Vishal-43/smart-attendece-system/internal/codes"
	"github.com/Vishal-43/smart-attendece-system/internal/config"
)

// StartCodeRotationJob keeps displayed QR codes fresh: on every tick it
// rotates codes entering their final grace window. Rotation goes through the
// store's compare-and-swap, so a concurrent manual refresh, or another
// instance running the same job, wins cleanly and this tick skips the row.
func StartCodeRotationJob(ctx context.Context, cfg config.Config, service *codes.Service) {
	if !cfg.CodeRotationEnabled {
		return
	}
	interval := cfg.CodeRotationInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	timeout := cfg.CodeRotationTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	grace := cfg.CodeRotationGrace
	if grace <= 0 {
		grace = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, timeout)
				rotated, err := service.RotateDue(tickCtx, grace)
				cancel()
				if err != nil {
					log.Printf("code rotation job error: %v", err)
					continue
				}
				if rotated > 0 {
					log.Printf("code rotation job rotated %d codes", rotated)
				}
			}
		}
	}()
}
