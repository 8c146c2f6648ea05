// Package scheduler drives listing fetches for a want list in paced batches.
//
// Items are capped, partitioned into fixed-size batches and fetched
// concurrently within a batch. A batch fully resolves before the next one
// starts, and batches are separated by a pacing delay that keeps the rate
// limiter's queue short and the long-run request rate polite.
//
// # Usage
//
//	sched, err := scheduler.New(fetcher, scheduler.ConfigFor(client.Authenticated()), logger)
//	if err != nil {
//		return err
//	}
//
//	summary := sched.Run(ctx, scheduler.Job{Items: items, Criteria: criteria},
//		func(item market.WantItem, res listing.Result) {
//			agg.Fold(item, res.Listings)
//		})
//
// The sink is called once per item as soon as its fetch completes, possibly
// from several goroutines at once.
package scheduler
