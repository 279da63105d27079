package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/lgoty/benefitsearch/internal/db"
)

// PushCapped prepends value and trims the list to limit items in one round-trip.
func (s *Store) PushCapped(ctx context.Context, key string, value []byte, limit int) error {
	if limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", limit)
	}
	cmds := rueidis.Commands{
		s.b().Lpush().Key(key).Element(rueidis.BinaryString(value)).Build(),
		s.b().Ltrim().Key(key).Start(0).Stop(int64(limit - 1)).Build(),
	}
	results := s.client.DoMulti(ctx, cmds...)
	if err := results[0].Error(); err != nil {
		return &db.Error{Op: db.OpLPush, Err: err}
	}
	if err := results[1].Error(); err != nil {
		return &db.Error{Op: db.OpLTrim, Err: err}
	}
	return nil
}

// Range returns list items [start, stop] inclusive.
func (s *Store) Range(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	cmd := s.b().Lrange().Key(key).Start(start).Stop(stop).Build()
	msgs, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}
		return nil, &db.Error{Op: db.OpLRange, Err: err}
	}
	out := make([][]byte, 0, len(msgs))
	for _, m := range msgs {
		b, err := m.AsBytes()
		if err != nil {
			return nil, &db.Error{Op: db.OpLRange, Err: err}
		}
		out = append(out, b)
	}
	return out, nil
}
