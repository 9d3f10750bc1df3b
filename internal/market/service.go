package market

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Service 聚合多周期K线的并发抓取。
type Service struct {
	client *Client
	logger *zap.Logger
}

// NewService 创建行情快照服务。
func NewService(client *Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client: client,
		logger: logger,
	}
}

// GetSnapshot 并发拉取15分钟、1小时、4小时K线。
func (s *Service) GetSnapshot(ctx context.Context, req SnapshotRequest) (Snapshot, error) {
	defaultReq := DefaultSnapshotRequest()
	if req.Limit15M <= 0 {
		req.Limit15M = defaultReq.Limit15M
	}
	if req.Limit1H <= 0 {
		req.Limit1H = defaultReq.Limit1H
	}
	if req.Limit4H <= 0 {
		req.Limit4H = defaultReq.Limit4H
	}

	var (
		candles15M []Candle
		candles1H  []Candle
		candles4H  []Candle
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		data, err := s.client.FetchCandles(groupCtx, Timeframe15m, int64(req.Limit15M))
		if err != nil {
			return err
		}
		candles15M = data
		return nil
	})

	group.Go(func() error {
		data, err := s.client.FetchCandles(groupCtx, Timeframe1h, int64(req.Limit1H))
		if err != nil {
			return err
		}
		candles1H = data
		return nil
	})

	group.Go(func() error {
		data, err := s.client.FetchCandles(groupCtx, Timeframe4h, int64(req.Limit4H))
		if err != nil {
			return err
		}
		candles4H = data
		return nil
	})

	if err := group.Wait(); err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		Symbol:     s.client.Symbol(),
		Candles15M: candles15M,
		Candles1H:  candles1H,
		Candles4H:  candles4H,
		FetchedAt:  time.Now().UTC(),
	}, nil
}
