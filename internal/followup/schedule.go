package followup

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextRun returns the first fire time of expr strictly after from.
func NextRun(expr string, from time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("followup: schedule %q: %w", expr, err)
	}
	return sched.Next(from), nil
}

// Send finds due cards and delivers one digest. It reports the digest it
// sent, or nil when nothing was due.
func Send(ctx context.Context, db *gorm.DB, now time.Time, lookahead time.Duration, n Notifier) (*Digest, error) {
	items, err := Due(db.WithContext(ctx), now, lookahead)
	if err != nil {
		return nil, err
	}
	d := BuildDigest(items, now)
	if d == nil {
		return nil, nil
	}
	if err := n.Notify(ctx, d); err != nil {
		return d, err
	}
	return d, nil
}

// RunOpts holds parameters for Run.
type RunOpts struct {
	DB        *gorm.DB
	Notifier  Notifier
	Schedule  string
	Lookahead time.Duration
	Now       func() time.Time // defaults to time.Now
	OnSent    func(*Digest)    // optional; called after each delivered digest
}

// Run sends a digest every time the schedule fires until ctx is cancelled.
// A failed run is logged and the next one is still scheduled.
func Run(ctx context.Context, opts RunOpts) error {
	if opts.DB == nil {
		return fmt.Errorf("followup: db is required")
	}
	if opts.Notifier == nil {
		return fmt.Errorf("followup: notifier is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	next, err := NextRun(opts.Schedule, now())
	if err != nil {
		return err
	}

	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			fireDigest(ctx, opts, now())
			next, _ = NextRun(opts.Schedule, now())
			timer.Reset(time.Until(next))
		}
	}
}

func fireDigest(ctx context.Context, opts RunOpts, at time.Time) {
	d, err := Send(ctx, opts.DB, at, opts.Lookahead, opts.Notifier)
	if err != nil {
		log.Printf("followup: send digest: %v", err)
		return
	}
	if d == nil {
		return
	}
	log.Printf("followup: sent digest: %s", d.Title)
	if opts.OnSent != nil {
		opts.OnSent(d)
	}
}
