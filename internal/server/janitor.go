package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"
)

const janitorLockKey = "quester:janitor:lock"

type pruner interface {
	PruneSuspendedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Janitor prunes suspended runs that outlived their retention window on a
// cron schedule. With Redis configured, a SetNX lock keeps multiple server
// replicas from sweeping at once.
type Janitor struct {
	store     pruner
	schedule  *cronexpr.Expression
	retention time.Duration
	rdb       *redis.Client
	logger    *log.Logger
	stop      chan struct{}
}

// NewJanitor parses the cron spec and builds a stopped janitor. rdb may be
// nil.
func NewJanitor(store pruner, spec string, retention time.Duration, rdb *redis.Client, logger *log.Logger) (*Janitor, error) {
	schedule, err := cronexpr.Parse(spec)
	if err != nil {
		return nil, err
	}
	return &Janitor{
		store:     store,
		schedule:  schedule,
		retention: retention,
		rdb:       rdb,
		logger:    logger,
		stop:      make(chan struct{}),
	}, nil
}

func (j *Janitor) Start() {
	go j.loop()
}

func (j *Janitor) Stop() {
	close(j.stop)
}

func (j *Janitor) loop() {
	for {
		next := j.schedule.Next(time.Now())
		select {
		case <-time.After(time.Until(next)):
			j.sweep()
		case <-j.stop:
			return
		}
	}
}

func (j *Janitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if j.rdb != nil {
		ok, err := j.rdb.SetNX(ctx, janitorLockKey, "1", time.Minute).Result()
		if err != nil {
			j.logger.Printf("janitor lock: %v", err)
			return
		}
		if !ok {
			return
		}
	}

	n, err := j.store.PruneSuspendedBefore(ctx, time.Now().Add(-j.retention))
	if err != nil {
		j.logger.Printf("janitor sweep: %v", err)
		return
	}
	if n > 0 {
		j.logger.Printf("janitor pruned %d expired suspended runs", n)
	}
}
