package event

import (
	"context"
	"sync"
	"time"

	"github.com/cloudflare/cfssl/log"
	"github.com/fundme/meta"
	"github.com/google/uuid"
)

// 合约侧使用，只记录事件，不会失败
type Emitter interface {
	Emit(contract, eventType string, args map[string]string)
}

// 事件最终的去处（redis、websocket日志等）
type Sink interface {
	Publish(ctx context.Context, e meta.Event) error
}

func NewEvent(contract, eventType string, args map[string]string) meta.Event {
	return meta.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Contract:  contract,
		Args:      args,
		Timestamp: time.Now().UTC(),
	}
}

// Journal 缓存一次合约调用产生的事件，调用成功提交后才发布，失败则丢弃
type Journal struct {
	mu      sync.Mutex
	pending []meta.Event
}

func NewJournal() *Journal {
	return &Journal{}
}

func (j *Journal) Emit(contract, eventType string, args map[string]string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.pending = append(j.pending, NewEvent(contract, eventType, args))
}

// 取出并清空缓存的事件
func (j *Journal) Drain() []meta.Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	events := j.pending
	j.pending = nil
	return events
}

func (j *Journal) Discard() {
	j.Drain()
}

// 发布到sink，发布失败只记录日志（状态已经提交）
func (j *Journal) Flush(ctx context.Context, sink Sink) []meta.Event {
	events := j.Drain()
	if sink == nil {
		return events
	}
	for _, e := range events {
		if err := sink.Publish(ctx, e); err != nil {
			log.Errorf("event %s(%s) publish error: %s", e.Type, e.ID, err)
		}
	}
	return events
}

// Recorder 内存中的事件记录，测试和查询用
type Recorder struct {
	mu     sync.Mutex
	events []meta.Event
}

func (r *Recorder) Emit(contract, eventType string, args map[string]string) {
	_ = r.Publish(context.Background(), NewEvent(contract, eventType, args))
}

func (r *Recorder) Publish(_ context.Context, e meta.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Events() []meta.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]meta.Event(nil), r.events...)
}

// Multi 依次发布到多个sink，返回第一个错误
type Multi []Sink

func (m Multi) Publish(ctx context.Context, e meta.Event) error {
	var first error
	for _, s := range m {
		if err := s.Publish(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type discard struct{}

func (discard) Emit(string, string, map[string]string) {}

// Discard 忽略所有事件
var Discard Emitter = discard{}
