package obdlink

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	retrySleep    = time.Second
	maxRetrySleep = 30 * time.Second
)

type Retryable interface {
	Open() error
	Close() error
	Start(ctx context.Context) error
	Name() string
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxRetrySleep {
		return maxRetrySleep
	}
	return d
}

// retry keeps r running until ctx is done, closing and reopening it after
// every failure. Consecutive open failures back off up to maxRetrySleep.
func retry(ctx context.Context, r Retryable) error {
	errStarting := errors.New("starting")
	err := errStarting
	backoff := retrySleep
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			if err != errStarting {
				log.WithField("err", err).
					WithField("backoff", backoff).
					Errorf("%s: reconnecting due to error", r.Name())
				if err = r.Close(); err != nil {
					log.WithField("err", err).Warnf("%s: unable to close", r.Name())
				}
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if err = r.Open(); err != nil {
				backoff = nextBackoff(backoff)
				continue
			}
			backoff = retrySleep
			log.Infof("%s: opened", r.Name())
		}
		err = r.Start(ctx)
	}
}
