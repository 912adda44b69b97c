/*
Copyright 2026 DebitRelay Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package lockstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// SizeKey is the shared in-flight counter bounding admissions across all
// job kinds.
const SizeKey = "queue:size"

// admitScript is the whole admission decision: lock presence check,
// capacity check, lock creation and counter increment commit together or
// not at all. The lock value is the admission unix time, which lets the
// reaper tell a fresh admission from an orphan whose enqueue never
// happened. Returns 1 admitted, 0 lock already held, -1 queue at capacity.
const admitScript = `
if redis.call('exists', KEYS[1]) == 1 then
  return 0
end
local size = tonumber(redis.call('get', KEYS[2]) or '0')
if size >= tonumber(ARGV[1]) then
  return -1
end
redis.call('set', KEYS[1], ARGV[2])
redis.call('incr', KEYS[2])
return 1
`

// releaseScript deletes the lock and decrements the counter, floored at
// zero. The decrement only happens when the lock was actually present, so
// a redelivered job releasing twice cannot drive the counter negative or
// steal capacity from other in-flight jobs.
const releaseScript = `
if redis.call('del', KEYS[1]) == 1 then
  local size = tonumber(redis.call('get', KEYS[2]) or '0')
  if size > 0 then
    redis.call('decr', KEYS[2])
  end
  return 1
end
return 0
`

// Store owns the per-intent exclusivity locks and the shared queue-size
// counter. All mutation goes through atomic server-side scripts.
type Store struct {
	client   redis.UniversalClient
	capacity int64
}

func NewStore(client redis.UniversalClient, capacity int64) *Store {
	return &Store{client: client, capacity: capacity}
}

// TryAdmit attempts to take the exclusivity lock for lockKey within the
// queue capacity. A false result with nil error means the job is already
// in flight or the queue is full; both are no-op signals, not errors.
func (s *Store) TryAdmit(ctx context.Context, lockKey string) (bool, error) {
	res, err := s.client.Eval(ctx, admitScript, []string{lockKey, SizeKey}, s.capacity, time.Now().Unix()).Result()
	if err != nil {
		return false, errors.Wrapf(err, "admission failed for %s", lockKey)
	}
	return res == int64(1), nil
}

// Release drops the lock for lockKey and frees its queue slot. Safe to call
// for a lock that no longer exists.
func (s *Store) Release(ctx context.Context, lockKey string) error {
	_, err := s.client.Eval(ctx, releaseScript, []string{lockKey, SizeKey}).Result()
	if err != nil {
		return errors.Wrapf(err, "release failed for %s", lockKey)
	}
	return nil
}

// IsLocked reports whether the lock for lockKey is currently held.
func (s *Store) IsLocked(ctx context.Context, lockKey string) (bool, error) {
	n, err := s.client.Exists(ctx, lockKey).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// StaleLocks returns the lock keys matching pattern whose admission time is
// older than olderThan. A stale lock is only an orphan candidate; the
// caller still has to check the queue before releasing it.
func (s *Store) StaleLocks(ctx context.Context, pattern string, olderThan time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-olderThan).Unix()
	var stale []string
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		admittedAt, err := s.client.Get(ctx, key).Int64()
		if err != nil {
			// released between scan and read, or not one of our locks
			continue
		}
		if admittedAt <= cutoff {
			stale = append(stale, key)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning locks")
	}
	return stale, nil
}

// Size returns the current value of the shared in-flight counter.
func (s *Store) Size(ctx context.Context) (int64, error) {
	val, err := s.client.Get(ctx, SizeKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return val, err
}
