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
	"fmt"
	"time"

	"github.com/debitrelay/relayer/model"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// RegisterHandlers mounts the relay job handlers on the worker mux.
func (r *Relayer) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(string(JobKindCreatedFixed), r.ProcessRelayTask)
	mux.HandleFunc(string(JobKindRecurringFixed), r.ProcessRelayTask)
	mux.HandleFunc(string(JobKindDynamicPayment), r.ProcessRelayTask)
}

// ProcessRelayTask dispatches one delivered job to the handler for its kind
// and releases the intent's lock once the handler settles, whatever the
// outcome. Handler failures are not retried by the broker: the lock is
// already gone by then, so a retry would race a freshly admitted job. A
// later sweep re-enqueues the intent once its lock is free.
func (r *Relayer) ProcessRelayTask(ctx context.Context, t *asynq.Task) error {
	ctx, span := tracer.Start(ctx, "Processing relay job")
	defer span.End()

	kind := JobKind(t.Type())
	switch kind {
	case JobKindCreatedFixed, JobKindRecurringFixed:
		var intent model.PaymentIntent
		if err := json.Unmarshal(t.Payload(), &intent); err != nil || intent.PaymentIntent == "" {
			return r.dropMalformed(ctx, kind, err)
		}
		defer r.deferredUnlock(kind, intent.PaymentIntent)
		if err := r.HandleFixedPayment(ctx, &intent); err != nil {
			return fmt.Errorf("fixed payment relay failed: %v: %w", err, asynq.SkipRetry)
		}
	case JobKindDynamicPayment:
		var job model.DynamicPaymentRequestJob
		if err := json.Unmarshal(t.Payload(), &job); err != nil || job.PaymentIntent == nil {
			return r.dropMalformed(ctx, kind, err)
		}
		defer r.deferredUnlock(kind, job.PaymentIntent.PaymentIntent)
		if err := r.HandleDynamicPayment(ctx, &job); err != nil {
			return fmt.Errorf("dynamic payment relay failed: %v: %w", err, asynq.SkipRetry)
		}
	default:
		logrus.Errorf("unknown job kind received: %q", t.Type())
		return fmt.Errorf("unknown job kind %q: %w", t.Type(), asynq.SkipRetry)
	}
	return nil
}

// dropMalformed discards a job whose payload cannot be decoded. The task ID
// doubles as the lock key, so the lock can still be released even though
// the intent ID is unreadable.
func (r *Relayer) dropMalformed(ctx context.Context, kind JobKind, cause error) error {
	if cause == nil {
		cause = errors.New("payload missing payment intent")
	}
	logrus.Errorf("dropping malformed %s job: %v", kind, cause)
	if taskID, ok := asynq.GetTaskID(ctx); ok {
		if err := r.locks.Release(context.WithoutCancel(ctx), taskID); err != nil {
			logrus.Errorf("failed to release lock %s for malformed job: %v", taskID, err)
		}
	}
	return fmt.Errorf("malformed %s payload: %v: %w", kind, cause, asynq.SkipRetry)
}

// deferredUnlock releases the intent's lock after processing. It runs on a
// fresh context so a canceled task cannot leave the lock behind.
func (r *Relayer) deferredUnlock(kind JobKind, intentID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.unlockAfterProcessing(ctx, kind, intentID); err != nil {
		logrus.Errorf("failed to release %s lock for payment intent %s: %v", kind, intentID, err)
	}
}
