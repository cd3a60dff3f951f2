package reconcile

import (
	"context"
	"fmt"
)

const (
	DefaultChunkSize   = 50
	DefaultConcurrency = 5
)

// WriteFn persists one NEW or UPDATED record. Idempotent creation/update
// (upsert by natural key) and any retry policy are the writer's
// responsibility; retries must be bounded so a chunk cannot stall forever.
type WriteFn[C Keyed] func(ctx context.Context, rec Classified[C]) error

// Progress is emitted after every settled chunk.
type Progress struct {
	Processed  int     `json:"processed"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// ApplyChunked writes records in ordered chunks of chunkSize, with at most
// concurrency writes in flight per chunk. A chunk fully settles before the
// next starts, so total in-flight work is predictable and progress is
// reported chunk by chunk. A failing item is recorded on the run and does
// not stop its siblings or later chunks. Cancellation is honored between
// chunks only; an in-flight chunk drains so counts match what was written.
func ApplyChunked[C Keyed](ctx context.Context, run *Run, records []Classified[C], chunkSize, concurrency int, write WriteFn[C], onProgress func(Progress)) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	total := len(records)
	for start := 0; start < total; start += chunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + chunkSize
		if end > total {
			end = total
		}
		chunk := records[start:end]

		type itemResult struct {
			rec Classified[C]
			err error
		}
		results := make(chan itemResult, len(chunk))
		sem := make(chan struct{}, concurrency)

		for _, rec := range chunk {
			rec := rec
			sem <- struct{}{}
			go func() {
				defer func() { <-sem }()
				results <- itemResult{rec: rec, err: safeWrite(ctx, write, rec)}
			}()
		}

		// Fan-in: writers share nothing; results are folded here after
		// the chunk settles.
		for range chunk {
			res := <-results
			if res.err != nil {
				run.FailedCount++
				run.Failures = append(run.Failures, Failure{
					NaturalKey: res.rec.Candidate.NaturalKey(),
					Error:      res.err.Error(),
				})
				continue
			}
			if res.rec.State == StateNew {
				run.NewCount++
			} else {
				run.UpdatedCount++
			}
		}

		if onProgress != nil {
			pct := 100.0
			if total > 0 {
				pct = float64(end) / float64(total) * 100
			}
			onProgress(Progress{Processed: end, Total: total, Percentage: pct})
		}
	}
	return nil
}

func safeWrite[C Keyed](ctx context.Context, write WriteFn[C], rec Classified[C]) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("writer panic: %v", p)
		}
	}()
	return write(ctx, rec)
}
