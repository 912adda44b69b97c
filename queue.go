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

package relayer

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/debitrelay/relayer/config"
	redis_db "github.com/debitrelay/relayer/internal/redis-db"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// Queue is the durable relay queue. Jobs survive process restarts in the
// Redis-backed broker, and the task ID mirrors the intent's lock key so a
// redelivered enqueue cannot duplicate an in-flight job.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// NewQueue initializes a new Queue instance with the provided configuration.
func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// Enqueue appends one relay job to the durable queue.
func (q *Queue) Enqueue(ctx context.Context, kind JobKind, intentID string, payload interface{}) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	taskOptions := []asynq.Option{
		asynq.TaskID(kind.LockKey(intentID)),
		asynq.Queue(cfg.Queue.RelayQueue),
		asynq.MaxRetry(cfg.Queue.MaxRetryAttempts),
	}
	task := asynq.NewTask(string(kind), data, taskOptions...)
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		logrus.Errorf("error enqueuing %s job for payment intent %s: %v", kind, intentID, err)
		return err
	}
	logrus.Infof(" [*] Successfully enqueued %s job: %s (task %s)", kind, intentID, info.ID)
	return nil
}

// HasTask reports whether the relay queue still knows the task with the
// given ID, in any state. The task ID doubles as the intent's lock key, so
// this answers whether a held lock is backed by a real job.
func (q *Queue) HasTask(ctx context.Context, taskID string) (bool, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return false, err
	}
	_, err = q.Inspector.GetTaskInfo(cfg.Queue.RelayQueue, taskID)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
