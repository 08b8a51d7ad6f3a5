package meta

import "time"

// 合约事件类型
const (
	EventFunded    = "Funded"    // 众筹入金
	EventWithdrawn = "Withdrawn" // owner提取全部资金
	EventDestroyed = "Destroyed" // 合约销毁
)

type Event struct {
	ID        string            `json:"event_id"`
	Type      string            `json:"type"`
	Contract  string            `json:"contract"`
	Args      map[string]string `json:"args"`
	Timestamp time.Time         `json:"timestamp"`
}
