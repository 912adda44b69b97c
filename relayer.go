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

	"github.com/debitrelay/relayer/config"
	"github.com/debitrelay/relayer/database"
	"github.com/debitrelay/relayer/internal/chain"
	lockstore "github.com/debitrelay/relayer/internal/lock"
	redis_db "github.com/debitrelay/relayer/internal/redis-db"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("relayer.core")

// taskQueue abstracts the durable queue behind the admission path so that
// tests can observe enqueues without a running Redis-backed broker.
type taskQueue interface {
	Enqueue(ctx context.Context, kind JobKind, intentID string, payload interface{}) error
	HasTask(ctx context.Context, taskID string) (bool, error)
}

// Relayer ties the admission lock store, the durable queue, the data store
// and the chain client together. All relay processing, from batch admission
// through reconciliation, hangs off this struct.
type Relayer struct {
	queue      taskQueue
	locks      *lockstore.Store
	datasource database.IDataSource
	chain      chain.Client
}

func NewRelayer(ds database.IDataSource, chainClient chain.Client) (*Relayer, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	rds, err := redis_db.NewRedisClient(cfg.Redis.Dns)
	if err != nil {
		return nil, err
	}
	return &Relayer{
		queue:      NewQueue(cfg),
		locks:      lockstore.NewStore(rds.Client(), cfg.Queue.Capacity),
		datasource: ds,
		chain:      chainClient,
	}, nil
}

func logAndRecordError(span trace.Span, msg string, err error) error {
	span.RecordError(err)
	logrus.Error(msg, err)
	return err
}
