package rag

import (
	"fmt"
	"math"
	"math/rand/v2"

	"startuplens/internal/db/vecstore"
)

// 校准过程常量。取值与既有评分标尺绑定,改动会整体平移历史分数,
// 所以不做配置化。
const (
	calibrationMaxSamples = 100 // 探针数上限,实际取 min(100, 2×记录数)
	calibrationBatchSize  = 10  // 每批生成的探针数
	calibrationProbeTopK  = 5   // 每条探针取前几名分数入样
	calibrationDamping    = 15.0
)

// CalibrationParams 背景(零假设)分布参数。由随机探针估计,
// 只依赖索引内容,同一索引版本下可复用。
type CalibrationParams struct {
	Mu      float64
	Sigma   float64
	Samples int
}

// calibrateIndex 以随机单位向量探测索引,估计"无语义查询"能拿到的
// 分数分布:样本量 min(100, 2×记录数),按批生成探针,每条取 top-5 分数。
func calibrateIndex(ix *vecstore.Index, rng *rand.Rand) (*CalibrationParams, error) {
	n := ix.Ntotal()
	if n == 0 {
		return &CalibrationParams{}, nil
	}

	samples := calibrationMaxSamples
	if 2*n < samples {
		samples = 2 * n
	}

	scores := make([]float64, 0, samples*calibrationProbeTopK)
	for done := 0; done < samples; {
		batch := calibrationBatchSize
		if batch > samples-done {
			batch = samples - done
		}
		probes := make([][]float32, batch)
		for i := range probes {
			probes[i] = randomUnitVector(ix.Dim(), rng)
		}
		for _, probe := range probes {
			top, _, err := ix.Search(probe, calibrationProbeTopK)
			if err != nil {
				return nil, fmt.Errorf("probe index: %w", err)
			}
			for _, s := range top {
				scores = append(scores, float64(s))
			}
		}
		done += batch
	}

	mu, sigma := meanStd(scores)
	return &CalibrationParams{Mu: mu, Sigma: sigma, Samples: samples}, nil
}

// ZScore 原始分数相对背景分布的标准分;sigma 为 0 时记为 0。
func (p *CalibrationParams) ZScore(raw float64) float64 {
	if p.Sigma <= 0 {
		return 0
	}
	return (raw - p.Mu) / p.Sigma
}

// Calibrate 将原始内积分数映射到 [0,100]:z 分数经阻尼系数压缩后,
// 走固定的分段线性标尺。
func (p *CalibrationParams) Calibrate(raw float64) float64 {
	scaled := p.ZScore(raw) / calibrationDamping
	score := mapScaled(scaled)
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func mapScaled(s float64) float64 {
	switch {
	case s > 2.5:
		return 90 + (s-2.5)*4.0
	case s >= 2.0:
		return 80 + (s-2.0)*20.0
	case s >= 1.5:
		return 65 + (s-1.5)*30.0
	case s >= 1.0:
		return 45 + (s-1.0)*40.0
	case s > 0.5:
		return 20 + (s-0.5)*50.0
	default:
		return math.Max(0, s*40)
	}
}

// matchBands 标签阈值从高到低排列,顺序即判定顺序。
var matchBands = []struct {
	threshold float64
	label     string
	tier      string
}{
	{95, "Perfect Match", "high"},
	{85, "Excellent Match", "high"},
	{70, "Very Good Match", "medium"},
	{55, "Good Match", "medium"},
	{40, "Fair Match", "low"},
	{25, "Weak Match", "low"},
}

// MatchLabel 返回校准分数对应的标签与展示等级(high/medium/low)。
func MatchLabel(score float64) (label, tier string) {
	for _, b := range matchBands {
		if score >= b.threshold {
			return b.label, b.tier
		}
	}
	return "Poor Match", "low"
}

// randomUnitVector 生成方向均匀的单位向量:各分量取标准正态后整体归一。
func randomUnitVector(dim int, rng *rand.Rand) []float32 {
	v := make([]float32, dim)
	var norm float64
	for i := range v {
		x := rng.NormFloat64()
		v[i] = float32(x)
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		v[0] = 1
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
