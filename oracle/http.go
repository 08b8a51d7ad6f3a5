package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/cloudflare/cfssl/log"
)

// 外部价格接口返回的报告
type report struct {
	Answer    string `json:"answer"` // 十进制整数字符串
	Decimals  uint8  `json:"decimals"`
	RoundID   uint64 `json:"round_id"`
	UpdatedAt int64  `json:"updated_at"` // unix秒
}

// HTTPFeed 通过api获取链下价格
type HTTPFeed struct {
	url    string
	client *http.Client
}

func NewHTTPFeed(url string, timeout time.Duration) *HTTPFeed {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPFeed{url: url, client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFeed) LatestPrice(ctx context.Context) (Price, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return Price{}, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		log.Errorf("price feed request error: %s", err)
		return Price{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Price{}, fmt.Errorf("oracle: price feed returned %d", resp.StatusCode)
	}
	var r report
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return Price{}, fmt.Errorf("oracle: decode report: %w", err)
	}
	answer, ok := new(big.Int).SetString(r.Answer, 10)
	if !ok {
		return Price{}, fmt.Errorf("oracle: bad answer %q", r.Answer)
	}
	log.Debugf("price feed round %d answer %s decimals %d", r.RoundID, answer, r.Decimals)
	return Price{
		Answer:    answer,
		Decimals:  r.Decimals,
		RoundID:   r.RoundID,
		UpdatedAt: time.Unix(r.UpdatedAt, 0).UTC(),
	}, nil
}
