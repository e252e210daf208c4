package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const sweepTimeout = 30 * time.Second

// ClaimResetter returns stale CHECKING accounts to the idle pool.
type ClaimResetter interface {
	ResetStaleClaims(ctx context.Context) (int64, error)
}

// StaleClaimSweeper periodically releases claims whose callback never
// arrived. It is a blunt instrument: every CHECKING account is reset,
// including ones a worker is still processing.
type StaleClaimSweeper struct {
	resetter ClaimResetter
	interval time.Duration
	done     chan struct{}
	stopped  chan struct{}
}

func NewStaleClaimSweeper(resetter ClaimResetter, interval time.Duration) *StaleClaimSweeper {
	return &StaleClaimSweeper{
		resetter: resetter,
		interval: interval,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

func (j *StaleClaimSweeper) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("stale claim sweeper started")
}

// Stop ends the loop and waits for an in-flight sweep to finish.
func (j *StaleClaimSweeper) Stop() {
	close(j.done)
	<-j.stopped
	log.Info().Msg("stale claim sweeper stopped")
}

func (j *StaleClaimSweeper) run() {
	defer close(j.stopped)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *StaleClaimSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	count, err := j.resetter.ResetStaleClaims(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to reset stale claims")
	} else if count > 0 {
		log.Info().Int64("count", count).Msg("reset stale claims")
	}
}
