package vecstore

import (
	"fmt"
	"sort"
)

// Index 扁平精确内积索引。向量按插入顺序存放在连续内存中,
// 行号即记录序号(0 起);只支持追加与整体重建,不支持删改。
// 构建完成后只读,可在多个 goroutine 间共享。
type Index struct {
	dim  int
	data []float32 // 长度 = count*dim
}

// NewIndex 创建指定维度的空索引。
func NewIndex(dim int) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid index dimension %d", dim)
	}
	return &Index{dim: dim}, nil
}

// Dim 向量维度。
func (ix *Index) Dim() int { return ix.dim }

// Ntotal 已存向量条数。
func (ix *Index) Ntotal() int { return len(ix.data) / ix.dim }

// Add 按顺序追加一批向量,序号依次递增。维度不符立即报错,
// 已追加的部分保持不变。
func (ix *Index) Add(vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != ix.dim {
			return fmt.Errorf("vector %d has dimension %d, index expects %d", i, len(v), ix.dim)
		}
		ix.data = append(ix.data, v...)
	}
	return nil
}

// Search 返回与 query 内积最大的 k 条,按分数降序排列,
// 同分时序号小者在前。k 超过总量时按总量截断。
func (ix *Index) Search(query []float32, k int) ([]float32, []int, error) {
	if len(query) != ix.dim {
		return nil, nil, fmt.Errorf("query has dimension %d, index expects %d", len(query), ix.dim)
	}
	if k <= 0 {
		return nil, nil, fmt.Errorf("invalid top_k %d", k)
	}

	n := ix.Ntotal()
	if n == 0 {
		return nil, nil, nil
	}
	if k > n {
		k = n
	}

	scores := make([]float32, n)
	for i := 0; i < n; i++ {
		scores[i] = dot(query, ix.data[i*ix.dim:(i+1)*ix.dim])
	}

	ordinals := make([]int, n)
	for i := range ordinals {
		ordinals[i] = i
	}
	sort.Slice(ordinals, func(a, b int) bool {
		ia, ib := ordinals[a], ordinals[b]
		if scores[ia] != scores[ib] {
			return scores[ia] > scores[ib]
		}
		return ia < ib
	})

	topScores := make([]float32, k)
	topOrdinals := make([]int, k)
	for i := 0; i < k; i++ {
		topOrdinals[i] = ordinals[i]
		topScores[i] = scores[ordinals[i]]
	}
	return topScores, topOrdinals, nil
}

// Row 返回第 i 行向量的只读视图,越界返回 nil。
func (ix *Index) Row(i int) []float32 {
	if i < 0 || i >= ix.Ntotal() {
		return nil
	}
	return ix.data[i*ix.dim : (i+1)*ix.dim]
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
