package oracle

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"
)

var ErrNoData = errors.New("oracle: no price data")

// 预言机报告的价格：Answer / 10^Decimals 美元
type Price struct {
	Answer    *big.Int
	Decimals  uint8
	RoundID   uint64
	UpdatedAt time.Time
}

// Feed 只读地提供原生资产的最新美元价格
type Feed interface {
	LatestPrice(ctx context.Context) (Price, error)
}

// MockV3Aggregator 本地开发和测试用的模拟预言机
type MockV3Aggregator struct {
	mu       sync.RWMutex
	decimals uint8
	answer   *big.Int
	round    uint64
	updated  time.Time
}

func NewMockV3Aggregator(decimals uint8, initialAnswer *big.Int) *MockV3Aggregator {
	m := &MockV3Aggregator{decimals: decimals}
	m.UpdateAnswer(initialAnswer)
	return m
}

func (m *MockV3Aggregator) UpdateAnswer(answer *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if answer == nil {
		m.answer = nil
	} else {
		m.answer = new(big.Int).Set(answer)
	}
	m.round++
	m.updated = time.Now().UTC()
}

func (m *MockV3Aggregator) LatestPrice(context.Context) (Price, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.answer == nil {
		return Price{}, ErrNoData
	}
	return Price{
		Answer:    new(big.Int).Set(m.answer),
		Decimals:  m.decimals,
		RoundID:   m.round,
		UpdatedAt: m.updated,
	}, nil
}
