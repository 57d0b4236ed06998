package slices

// OfType filters values from a slice satisfying a given type.
func OfType[IN, T any](in []IN) []T {
	var out []T
	if len(in) == 0 {
		return out
	}
	for _, item := range in {
		var a any = item
		if tt, ok := a.(T); ok {
			out = append(out, tt)
		}
	}
	return out
}

// Reversed returns a copy of in in reverse order.
func Reversed[IN any](in []IN) []IN {
	out := make([]IN, len(in))
	for i, item := range in {
		out[len(in)-1-i] = item
	}
	return out
}
