package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"hydra-core/internal/feature"
	"hydra-core/internal/market"
)

// marketFeed 共享同一份行情快照给策略、市况检测与组合估值，
// 按 TTL 节流，避免一个决策周期内重复抓取。
type marketFeed struct {
	svc       *market.Service
	extractor *feature.Extractor
	ttl       time.Duration

	mu        sync.Mutex
	snapshot  market.Snapshot
	vector    feature.Vector
	vectorErr error
	fetchedAt time.Time
}

func newMarketFeed(svc *market.Service, extractor *feature.Extractor, ttl time.Duration) *marketFeed {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &marketFeed{svc: svc, extractor: extractor, ttl: ttl}
}

func (f *marketFeed) refresh(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if time.Since(f.fetchedAt) < f.ttl && !f.fetchedAt.IsZero() {
		return nil
	}

	snapshot, err := f.svc.GetSnapshot(ctx, market.DefaultSnapshotRequest())
	if err != nil {
		return err
	}

	f.snapshot = snapshot
	f.fetchedAt = time.Now()
	f.vector, f.vectorErr = f.extractor.Extract(snapshot)
	return nil
}

// Features 返回最新特征向量，样本不足时透传提取错误。
func (f *marketFeed) Features(ctx context.Context) (feature.Vector, error) {
	if err := f.refresh(ctx); err != nil {
		return feature.Vector{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vector, f.vectorErr
}

// LastPrice 返回最近一根1小时K线的收盘价。
func (f *marketFeed) LastPrice(ctx context.Context) (float64, error) {
	if err := f.refresh(ctx); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	candles := f.snapshot.Candles1H
	if len(candles) == 0 {
		return 0, errors.New("app: 行情快照为空")
	}
	return candles[len(candles)-1].Close, nil
}

// Returns 返回1小时收盘价的环比收益序列，用于风险度量。
func (f *marketFeed) Returns(ctx context.Context) ([]float64, error) {
	if err := f.refresh(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	candles := f.snapshot.Candles1H
	if len(candles) < 2 {
		return nil, nil
	}
	out := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		if prev <= 0 {
			continue
		}
		out = append(out, (candles[i].Close-prev)/prev)
	}
	return out, nil
}
