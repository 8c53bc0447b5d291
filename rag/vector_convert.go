package rag

import "math"

// NormalizeL2 返回 v 的单位向量副本。
// 零向量无法归一化，原样复制返回；它到任意单位向量的距离恒为 1。
func NormalizeL2(v []float64) []float64 {
	out := make([]float64, len(v))
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		copy(out, v)
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// L2Distance 计算两个等长向量的欧氏距离
func L2Distance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
