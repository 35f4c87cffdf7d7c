package matcher

import (
	"context"
	"runtime"
	"sync"

	"github.com/mmdatafocus/rentease_backend/statement"
	"github.com/mmdatafocus/rentease_backend/models"
)

// ScoreBatch scores every transaction against the roster across a bounded
// worker pool. Scoring is pure so there is no shared mutable state; results
// come back in input order. workers <= 0 uses one worker per CPU.
//
// Cancellation stops handing out new rows (rows already picked up finish)
// and returns ctx.Err(), so a partial batch is never mistaken for a scored
// one.
func ScoreBatch(ctx context.Context, transactions []statement.ParsedTransaction, roster []*models.Tenant, workers int) ([]TransactionMatch, error) {
	results := make([]TransactionMatch, len(transactions))
	if len(transactions) == 0 {
		return results, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(transactions) {
		workers = len(transactions)
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = MatchTransaction(transactions[i], roster)
			}
		}()
	}

	for i := range transactions {
		select {
		case <-ctx.Done():
			close(indexes)
			wg.Wait()
			return nil, ctx.Err()
		case indexes <- i:
		}
	}
	close(indexes)
	wg.Wait()
	return results, nil
}
