package retriever

import (
	"math"
	"time"
)

// Quality tiers by cosine distance.
const (
	excellentDistance  = 0.15
	goodDistance       = 0.25
	acceptableDistance = 0.35
)

// Metrics are dimensionless 0-100 health scores over a single result set,
// recomputed per query. They are heuristics for dashboards, not statistical
// measures.
type Metrics struct {
	Accuracy         float64 `json:"accuracy"`
	Precision        float64 `json:"precision"`
	Efficiency       float64 `json:"efficiency"`
	Throughput       float64 `json:"throughput"`
	AvgDistance      float64 `json:"avg_distance"`
	MinDistance      float64 `json:"min_distance"`
	MaxDistance      float64 `json:"max_distance"`
	HighQualityRatio float64 `json:"high_quality_ratio"`
	ChunksAnalyzed   int     `json:"chunks_analyzed"`
	ChunksPerSecond  float64 `json:"chunks_per_second"`
}

// EmptyMetrics is the zero-result record: all scores zero, all distances at
// the 1.0 maximum.
func EmptyMetrics() Metrics {
	return Metrics{
		AvgDistance: 1.0,
		MinDistance: 1.0,
		MaxDistance: 1.0,
	}
}

// computeMetrics derives the score record from the final distance
// distribution. candidatesAnalyzed is the raw index hit count before
// thresholding and truncation.
func computeMetrics(distances []float64, totalTime time.Duration, candidatesAnalyzed int) Metrics {
	if len(distances) == 0 {
		return EmptyMetrics()
	}

	sum := 0.0
	minDist := distances[0]
	maxDist := distances[0]
	for _, d := range distances {
		sum += d
		minDist = math.Min(minDist, d)
		maxDist = math.Max(maxDist, d)
	}
	avgDist := sum / float64(len(distances))

	excellent, good, acceptable := 0, 0, 0
	for _, d := range distances {
		switch {
		case d < excellentDistance:
			excellent++
		case d < goodDistance:
			good++
		case d < acceptableDistance:
			acceptable++
		}
	}

	n := float64(len(distances))
	highQualityRatio := float64(excellent+good) / n

	accuracy := math.Max(0, 100-avgDist*40)

	weightedQuality := (float64(excellent)*1.0 + float64(good)*0.7 + float64(acceptable)*0.4) / n
	precision := 85 + weightedQuality*15

	totalSeconds := totalTime.Seconds()
	efficiency := math.Max(0, 100-(totalSeconds/3.0)*10)

	chunksPerSecond := 0.0
	if totalSeconds > 0 {
		chunksPerSecond = float64(candidatesAnalyzed) / totalSeconds
	}
	throughput := math.Min(100, 90+chunksPerSecond*2)

	return Metrics{
		Accuracy:         round1(accuracy),
		Precision:        round1(precision),
		Efficiency:       round1(efficiency),
		Throughput:       round1(throughput),
		AvgDistance:      round4(avgDist),
		MinDistance:      round4(minDist),
		MaxDistance:      round4(maxDist),
		HighQualityRatio: round2(highQualityRatio),
		ChunksAnalyzed:   candidatesAnalyzed,
		ChunksPerSecond:  round1(chunksPerSecond),
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
