package regime

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"hydra-core/internal/feature"
)

// Type 表示市场状态分类。
type Type string

const (
	Bull     Type = "BULL"
	Bear     Type = "BEAR"
	Sideways Type = "SIDEWAYS"
	HighVol  Type = "HIGH_VOL"
	LowVol   Type = "LOW_VOL"
)

// 平手时的固定优先级，保证检测结果确定。
var priority = []Type{Bull, Bear, Sideways, HighVol, LowVol}

// Characteristics 记录检测时刻的市场特征。
type Characteristics struct {
	Volatility float64 `json:"volatility"`
	Trend      float64 `json:"trend"`
	Volume     float64 `json:"volume"`
	Momentum   float64 `json:"momentum"`
}

// Regime 是一次检测的结果。
type Regime struct {
	Type            Type            `json:"type"`
	Confidence      float64         `json:"confidence"`
	Characteristics Characteristics `json:"characteristics"`
	ObservedAt      time.Time       `json:"observed_at"`
}

const (
	historyLimit = 500
	minSamples   = 60

	trendScale   = 0.02
	momScale     = 0.02
	sidewaysBand = 0.01
	highVolFloor = 0.02
	highVolScale = 0.02
	lowVolCeil   = 0.01
)

// Detector 根据特征向量对市场状态打分并保留有界历史。
// 样本不足时返回上一次的状态并把置信度置0，检测本身没有失败路径。
type Detector struct {
	mu      sync.Mutex
	logger  *zap.Logger
	prev    Regime
	history []Regime
}

// NewDetector 创建状态检测器，初始状态为 SIDEWAYS。
func NewDetector(logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		logger: logger,
		prev: Regime{
			Type:       Sideways,
			Confidence: 0,
			ObservedAt: time.Now().UTC(),
		},
		history: make([]Regime, 0, historyLimit),
	}
}

// Detect 对五种状态打分并取最高者，置信度为胜出分数占总分的比例。
func (d *Detector) Detect(v feature.Vector) Regime {
	d.mu.Lock()
	defer d.mu.Unlock()

	if v.SampleSize < minSamples {
		degraded := d.prev
		degraded.Confidence = 0
		return degraded
	}

	scores := scoreFeatures(v)

	var total float64
	for _, s := range scores {
		total += s
	}
	if total <= 0 {
		degraded := d.prev
		degraded.Confidence = 0
		return degraded
	}

	// 按固定优先级遍历并严格大于比较，平手时排前者胜出。
	winner := priority[0]
	best := scores[winner]
	for _, t := range priority[1:] {
		if scores[t] > best {
			winner = t
			best = scores[t]
		}
	}

	result := Regime{
		Type:       winner,
		Confidence: best / total,
		Characteristics: Characteristics{
			Volatility: v.Volatility,
			Trend:      v.Trend,
			Volume:     v.VolumeRatio,
			Momentum:   v.Momentum,
		},
		ObservedAt: time.Now().UTC(),
	}

	d.prev = result
	d.history = append(d.history, result)
	if len(d.history) > historyLimit {
		d.history = d.history[len(d.history)-historyLimit:]
	}

	return result
}

// Current 返回最近一次检测结果。
func (d *Detector) Current() Regime {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.prev
}

// Stability 返回最近 window 次检测中与当前状态一致的比例，供分配器评估状态持续性。
func (d *Detector) Stability(window int) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if window <= 0 || len(d.history) == 0 {
		return 0
	}
	if window > len(d.history) {
		window = len(d.history)
	}

	current := d.prev.Type
	matches := 0
	for _, r := range d.history[len(d.history)-window:] {
		if r.Type == current {
			matches++
		}
	}
	return float64(matches) / float64(window)
}

// History 返回检测历史的副本。
func (d *Detector) History() []Regime {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Regime, len(d.history))
	copy(out, d.history)
	return out
}

func scoreFeatures(v feature.Vector) map[Type]float64 {
	// 成交量放大视为趋势确认，对多空分数做温和加成。
	volumeBoost := 1 + 0.25*clamp01(v.VolumeRatio-1)

	bull := (clamp01(v.Trend/trendScale) + 0.5*clamp01(v.Momentum/momScale)) * volumeBoost
	bear := (clamp01(-v.Trend/trendScale) + 0.5*clamp01(-v.Momentum/momScale)) * volumeBoost
	sideways := clamp01(1 - math.Abs(v.Trend)/sidewaysBand)
	highVol := clamp01((v.Volatility - highVolFloor) / highVolScale)
	lowVol := clamp01((lowVolCeil - v.Volatility) / lowVolCeil)

	return map[Type]float64{
		Bull:     bull,
		Bear:     bear,
		Sideways: sideways,
		HighVol:  highVol,
		LowVol:   lowVol,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
