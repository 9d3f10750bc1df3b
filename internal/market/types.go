package market

import "time"

// Candle 表示一根K线。
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// 支持的K线周期。
const (
	Timeframe15m = "15m"
	Timeframe1h  = "1h"
	Timeframe4h  = "4h"
)

// SnapshotRequest 描述一次行情快照的抓取范围。
type SnapshotRequest struct {
	Limit15M int
	Limit1H  int
	Limit4H  int
}

// DefaultSnapshotRequest 返回默认抓取范围。
func DefaultSnapshotRequest() SnapshotRequest {
	return SnapshotRequest{
		Limit15M: 96,
		Limit1H:  120,
		Limit4H:  60,
	}
}

// Snapshot 聚合多周期K线。
type Snapshot struct {
	Symbol     string    `json:"symbol"`
	Candles15M []Candle  `json:"candles_15m"`
	Candles1H  []Candle  `json:"candles_1h"`
	Candles4H  []Candle  `json:"candles_4h"`
	FetchedAt  time.Time `json:"fetched_at"`
}
