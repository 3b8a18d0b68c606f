package dedup

import (
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// NewInvalidationListener opens a dedicated lib/pq Listener on the
// incident_upserts channel (fired by the store's upsert trigger via
// pg_notify) and returns a channel of invalidated fingerprints, ready to
// hand to Controller.ListenForInvalidation. Closing the returned stop
// function closes the underlying connection.
func NewInvalidationListener(dsn string, logger *zap.Logger) (notifications <-chan string, stop func() error, err error) {
	out := make(chan string, 64)

	reportProblem := func(ev pq.ListenerEventType, connErr error) {
		if connErr != nil {
			logger.Warn("incident_upserts listener connection event", zap.Error(connErr))
		}
	}

	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, reportProblem)
	if listenErr := listener.Listen("incident_upserts"); listenErr != nil {
		_ = listener.Close()
		return nil, nil, listenErr
	}

	go func() {
		defer close(out)
		for notification := range listener.Notify {
			if notification == nil {
				continue
			}
			// Payload is "<fingerprint>:<incident_id>"; only the
			// fingerprint half is needed to key the cache.
			fingerprint, _, cut := strings.Cut(notification.Extra, ":")
			if cut {
				out <- fingerprint
			}
		}
	}()

	return out, listener.Close, nil
}
