// Package parallel contains the bounded ForEach loop used to run data-parallel replicas.
package parallel

import "sync"

// ForEach executes a for loop with a limited number of concurrent goroutines.
// Each goroutine processes one integer, from 0 to length.
func ForEach(length, limit int, body func(i int)) {
	if limit <= 0 {
		limit = 1 // Default to 1 if limit is zero or negative
	}
	if length <= 0 {
		return // No iterations to perform
	}
	if limit == 1 {
		for i := 0; i < length; i++ {
			body(i)
		}
		return
	}

	sem := make(chan struct{}, limit) // Semaphore with buffer size 'limit'
	var wg sync.WaitGroup
	wg.Add(length)

	for i := 0; i < length; i++ {
		sem <- struct{}{} // Acquire semaphore
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }() // Release semaphore after function exits

			body(i)
		}(i)
	}

	wg.Wait() // Wait for all goroutines to finish
}

// Shards splits length items into at most parts contiguous [begin, end) ranges
// whose sizes differ by at most one. Empty ranges are never returned.
func Shards(length, parts int) (o [][2]int) {
	if parts <= 0 {
		parts = 1
	}
	if parts > length {
		parts = length
	}
	begin := 0
	for p := 0; p < parts; p++ {
		size := length / parts
		if p < length%parts {
			size++
		}
		o = append(o, [2]int{begin, begin + size})
		begin += size
	}
	return
}
