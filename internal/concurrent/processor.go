// Package concurrent runs per-item operations on a bounded worker pool.
package concurrent

import (
	"fmt"
	"sync"
	"time"
)

// Result represents the outcome of an operation for a single item
type Result[R any] struct {
	Index          int
	Value          R
	Error          error
	ProcessingTime time.Duration
}

// Summary aggregates results from a fan-out
type Summary struct {
	Total           int
	SuccessfulCount int
	FailedCount     int
	TotalDuration   time.Duration
}

// Operation is performed on a single item. The index is the item's
// position in the input.
type Operation[T, R any] func(index int, item T) (R, error)

// Process runs operation for every item using a semaphore-bounded pool.
// Results are returned in input order regardless of completion order.
// maxConcurrency <= 0 means one worker per item. A panicking operation is
// reported as that item's error.
func Process[T, R any](items []T, operation Operation[T, R], maxConcurrency int) []Result[R] {
	if len(items) == 0 {
		return []Result[R]{}
	}

	if maxConcurrency <= 0 || maxConcurrency > len(items) {
		maxConcurrency = len(items)
	}

	semaphore := make(chan struct{}, maxConcurrency)
	results := make([]Result[R], len(items))
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		go func(index int, item T) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			startTime := time.Now()
			result := Result[R]{Index: index}

			defer func() {
				if r := recover(); r != nil {
					result.Error = fmt.Errorf("panic: %v", r)
				}
				result.ProcessingTime = time.Since(startTime)
				results[index] = result
			}()

			result.Value, result.Error = operation(index, item)
		}(i, item)
	}

	wg.Wait()
	return results
}

// Aggregate summarizes a slice of results
func Aggregate[R any](results []Result[R]) Summary {
	summary := Summary{Total: len(results)}
	for _, result := range results {
		summary.TotalDuration += result.ProcessingTime
		if result.Error != nil {
			summary.FailedCount++
		} else {
			summary.SuccessfulCount++
		}
	}
	return summary
}
