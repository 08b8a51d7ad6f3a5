package redis

import (
	"context"
	"encoding/json"

	"github.com/cloudflare/cfssl/log"
	"github.com/fundme/meta"
	"github.com/go-redis/redis/v8"
)

// Sink 将合约事件以JSON形式推入redis list
type Sink struct {
	rdb *redis.Client
	key string
}

func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewSink(rdb *redis.Client, key string) *Sink {
	return &Sink{rdb: rdb, key: key}
}

func (s *Sink) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Sink) Close() error {
	return s.rdb.Close()
}

func (s *Sink) Publish(ctx context.Context, e meta.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return PushToList(ctx, s.rdb, s.key, string(data))
}

// 读取最近的n条事件，n<=0时读取全部
func (s *Sink) Recent(ctx context.Context, n int64) ([]meta.Event, error) {
	start := int64(0)
	if n > 0 {
		start = -n
	}
	vals, err := s.rdb.LRange(ctx, s.key, start, -1).Result()
	if err != nil {
		log.Errorf("event list range error: %s", err)
		return nil, err
	}
	events := make([]meta.Event, 0, len(vals))
	for _, v := range vals {
		var e meta.Event
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			log.Errorf("event unmarshal error: %s", err)
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

// list push
func PushToList(ctx context.Context, rdb *redis.Client, key string, value string) error {
	err := rdb.RPush(ctx, key, value).Err()
	if err != nil {
		log.Errorf("event push to list error: %s", err)
		return err
	}
	return nil
}
