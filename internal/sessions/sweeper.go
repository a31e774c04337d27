package sessions

import (
	"context"
	"time"

	"github.com/pairslate/server/internal/logger"
)

// Sweeper periodically evicts idle and abandoned sessions from the store.
// This is advisory cleanup: it frees memory of abandoned sessions and never
// races with message handling, because eviction goes through the same
// serialized store.
type Sweeper struct {
	store         *Store
	checkInterval time.Duration
	idleTimeout   time.Duration
	sessionEnder  SessionEnderFunc
}

// called to notify connected clients when a session is being evicted
type SessionEnderFunc func(sessionID string, reason string)

// creates a new sweeper
func NewSweeper(store *Store, checkInterval, idleTimeout time.Duration, sessionEnder SessionEnderFunc) *Sweeper {
	return &Sweeper{
		store:         store,
		checkInterval: checkInterval,
		idleTimeout:   idleTimeout,
		sessionEnder:  sessionEnder,
	}
}

// begins the sweeper background loop
func (s *Sweeper) Start(ctx context.Context) {
	logger.Info("starting session sweeper",
		"check_interval", s.checkInterval,
		"idle_timeout", s.idleTimeout,
	)

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("session sweeper stopped")
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// runs one eviction pass
func (s *Sweeper) sweep() {
	evicted := s.store.Sweep(s.idleTimeout)
	if len(evicted) == 0 {
		return
	}

	logger.Info("evicted idle sessions", "count", len(evicted))

	for _, sessionID := range evicted {
		logger.Info("session evicted", "session_id", sessionID)

		if s.sessionEnder != nil {
			s.sessionEnder(sessionID, "session expired due to inactivity")
		}
	}
}
