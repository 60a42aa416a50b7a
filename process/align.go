package process

import "golang.org/x/exp/constraints"

func Align[I constraints.Integer](a, b I) I {
	return (a + b - 1) &^ (b - 1)
}

func AlignDown[I constraints.Integer](a, b I) I {
	return a &^ (b - 1)
}

func IsPowerOfTwo[I constraints.Integer](v I) bool {
	return v > 0 && v&(v-1) == 0
}
