package workers

import (
	"time"

	"gonuorbit/metrics"
	"gonuorbit/redis"

	"github.com/rs/zerolog/log"
)

const journalStatsInterval = 30 * time.Second

// Worker_journalStats publishes how many journaled sessions sit in each status.
func Worker_journalStats() {
	for !WorkerShutdown.Load() {
		if err := publishJournalStats(); err != nil {
			log.Warn().Err(err).Msg("Error counting journal sessions")
		}
		time.Sleep(journalStatsInterval)
	}
}

func publishJournalStats() error {
	counts, err := redis.CountSessionsByStatus()
	if err != nil {
		return err
	}
	for status, n := range counts {
		metrics.SetJournalSessions(status, n)
	}
	return nil
}
