package board

// Move возвращает копию s, в которой элемент from перенесен на позицию to.
// Элементы между позициями сдвигаются на одну, остальные остаются на местах.
// При from == to или индексе вне границ возвращается неизмененная копия.
func Move[T any](s []T, from, to int) []T {
	out := make([]T, len(s))
	copy(out, s)

	if from == to || from < 0 || to < 0 || from >= len(s) || to >= len(s) {
		return out
	}

	item := out[from]
	if from < to {
		copy(out[from:to], out[from+1:to+1])
	} else {
		copy(out[to+1:from+1], out[to:from])
	}
	out[to] = item
	return out
}
