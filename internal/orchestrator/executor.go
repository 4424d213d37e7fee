package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/procure/internal/generator"
	"github.com/dusk-indust/procure/internal/payload"
)

// BatchFunc produces quotes for one batch of components.
type BatchFunc func(ctx context.Context, batch []payload.Component) (payload.SupplierQuotes, error)

// BatchReport describes one finished batch. Index is 1-based.
type BatchReport struct {
	Index    int
	Batches  int
	Size     int
	Attempts int
	Quotes   int
	Err      error
}

// BatchOutcome is the merged result of every batch.
type BatchOutcome struct {
	Status  Status
	Quotes  payload.SupplierQuotes
	Errors  []string
	Batches int
	Failed  int
}

// Executor splits components into batches and quotes them concurrently.
// A batch that fails every attempt is recorded in Errors; its siblings
// carry on.
type Executor struct {
	BatchSize   int
	MaxParallel int
	Retries     int
	RetryDelay  time.Duration

	// OnBatch is called once per finished batch, in completion order and
	// never concurrently. It may be nil.
	OnBatch func(BatchReport)
}

// Run quotes units in ceil(len/BatchSize) batches. Quotes are merged in
// batch completion order.
func (e Executor) Run(ctx context.Context, units []payload.Component, call BatchFunc) BatchOutcome {
	batches := Partition(units, e.BatchSize)
	out := BatchOutcome{Status: StatusOK, Batches: len(batches)}
	if len(batches) == 0 {
		return out
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(min(len(batches), max(e.MaxParallel, 1)))

	for i, batch := range batches {
		g.Go(func() error {
			res, attempts, err := e.attempt(ctx, batch, call)

			mu.Lock()
			defer mu.Unlock()

			report := BatchReport{
				Index:    i + 1,
				Batches:  len(batches),
				Size:     len(batch),
				Attempts: attempts,
				Err:      err,
			}
			if err != nil {
				out.Failed++
				out.Errors = append(out.Errors, fmt.Sprintf("batch %d: %v", i+1, err))
			} else {
				report.Quotes = len(res.Quotes)
				mergeQuotes(&out.Quotes, res)
			}
			if e.OnBatch != nil {
				e.OnBatch(report)
			}
			return nil
		})
	}
	_ = g.Wait()

	if out.Failed == len(batches) {
		out.Status = StatusError
		out.Quotes = payload.SupplierQuotes{}
	}
	return out
}

// attempt calls fn up to 1+Retries times. It stops early when ctx is done
// or the generator reports a fatal error.
func (e Executor) attempt(ctx context.Context, batch []payload.Component, call BatchFunc) (payload.SupplierQuotes, int, error) {
	var (
		lastErr  error
		attempts int
	)
	for a := 0; a <= e.Retries; a++ {
		if a > 0 && !sleep(ctx, e.RetryDelay*time.Duration(a)) {
			break
		}
		attempts++
		res, err := call(ctx, batch)
		if err == nil {
			return res, attempts, nil
		}
		lastErr = err
		if ctx.Err() != nil || generator.IsFatal(err) {
			break
		}
	}
	return payload.SupplierQuotes{}, attempts, lastErr
}

// mergeQuotes folds src into dst.
func mergeQuotes(dst *payload.SupplierQuotes, src payload.SupplierQuotes) {
	dst.Quotes = append(dst.Quotes, src.Quotes...)
	for _, name := range src.SuppliersUsed {
		if !containsFold(dst.SuppliersUsed, name) {
			dst.SuppliersUsed = append(dst.SuppliersUsed, name)
		}
	}
	dst.TotalEstimatedCost += src.TotalEstimatedCost
	if dst.Reasoning == "" {
		dst.Reasoning = src.Reasoning
	}
}

// Partition splits items into consecutive chunks of at most size.
func Partition[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = 1
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end:end])
	}
	return out
}

// sleep waits for d or until ctx is done, reporting whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
