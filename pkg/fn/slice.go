package fn

// Map applies f to each element.
func Map[T, U any](items []T, f func(T) U) []U {
	out := make([]U, len(items))
	for i, v := range items {
		out[i] = f(v)
	}
	return out
}

// Filter returns elements where pred is true, in order. It never returns nil.
func Filter[T any](items []T, pred func(T) bool) []T {
	out := make([]T, 0)
	for _, v := range items {
		if pred(v) {
			out = append(out, v)
		}
	}
	return out
}

// FilterN is Filter that stops after n matches. n <= 0 yields an empty slice.
func FilterN[T any](items []T, n int, pred func(T) bool) []T {
	out := make([]T, 0)
	if n <= 0 {
		return out
	}
	for _, v := range items {
		if !pred(v) {
			continue
		}
		out = append(out, v)
		if len(out) == n {
			break
		}
	}
	return out
}

// Set builds a membership set from items.
func Set[T comparable](items []T) map[T]struct{} {
	out := make(map[T]struct{}, len(items))
	for _, v := range items {
		out[v] = struct{}{}
	}
	return out
}
