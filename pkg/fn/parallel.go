package fn

import "sync"

// ParFor calls f(i) for every i in [0, n) with at most workers goroutines.
// workers <= 0 means one goroutine per index. f must only write state owned
// by its index.
func ParFor(n, workers int, f func(i int)) {
	if n <= 0 {
		return
	}
	if workers <= 0 || workers > n {
		workers = n
	}

	var wg sync.WaitGroup
	next := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				f(i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		next <- i
	}
	close(next)
	wg.Wait()
}

// ParMap applies f to each item with bounded concurrency, preserving order.
func ParMap[T, U any](items []T, workers int, f func(T) U) []U {
	out := make([]U, len(items))
	ParFor(len(items), workers, func(i int) {
		out[i] = f(items[i])
	})
	return out
}
