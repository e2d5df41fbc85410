package queue

import (
	"context"
	"time"
)

// RunLeaseRenewer renews jobID's processing lease every LeaseRenewInterval
// until stop is closed or ctx is cancelled. errs receives any renewal
// failure (e.g. the lease was already reclaimed as stalled) and then the
// goroutine exits; the caller should treat that as cause to abandon the
// job.
func (q *Queue) RunLeaseRenewer(ctx context.Context, jobID string, stop <-chan struct{}, errs chan<- error) {
	ticker := time.NewTicker(LeaseRenewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if err := q.RenewLease(ctx, jobID); err != nil {
				select {
				case errs <- err:
				default:
				}
				return
			}
		}
	}
}
