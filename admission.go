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
	"fmt"

	"github.com/debitrelay/relayer/model"
	"github.com/sirupsen/logrus"
)

// JobKind identifies the processing path a relay job takes through the
// queue. The kind is carried as the task type on the wire and also selects
// the intent's exclusivity lock key, so one intent can be in flight on
// several paths at once but never twice on the same path.
type JobKind string

const (
	JobKindCreatedFixed   JobKind = "created_fixed"
	JobKindRecurringFixed JobKind = "recurring_fixed"
	JobKindDynamicPayment JobKind = "dynamic_payment"
)

func (k JobKind) Valid() bool {
	switch k {
	case JobKindCreatedFixed, JobKindRecurringFixed, JobKindDynamicPayment:
		return true
	}
	return false
}

// LockKey builds the exclusivity lock key guarding one intent on this path.
func (k JobKind) LockKey(intentID string) string {
	switch k {
	case JobKindCreatedFixed:
		return fmt.Sprintf("intents:FIXED:CREATED:%s:LOCK", intentID)
	case JobKindRecurringFixed:
		return fmt.Sprintf("intents:FIXED:RECURRING:%s:LOCK", intentID)
	case JobKindDynamicPayment:
		return fmt.Sprintf("intents:DYNAMIC:%s:LOCK", intentID)
	default:
		panic(fmt.Sprintf("unknown job kind %q", string(k)))
	}
}

// EnqueueCreatedFixed admits a batch of newly created fixed-pricing intents
// for their first payment. Items already in flight or refused by
// backpressure are skipped; a later sweep picks them up again.
func (r *Relayer) EnqueueCreatedFixed(ctx context.Context, intents []*model.PaymentIntent) {
	r.enqueueFixed(ctx, JobKindCreatedFixed, intents)
}

// EnqueueRecurringFixed admits a batch of recurring fixed-pricing intents
// whose next debit interval has elapsed.
func (r *Relayer) EnqueueRecurringFixed(ctx context.Context, intents []*model.PaymentIntent) {
	r.enqueueFixed(ctx, JobKindRecurringFixed, intents)
}

func (r *Relayer) enqueueFixed(ctx context.Context, kind JobKind, intents []*model.PaymentIntent) {
	for _, intent := range intents {
		if err := intent.Validate(); err != nil {
			logrus.Errorf("skipping invalid %s job: %v", kind, err)
			JobsSkipped.WithLabelValues(string(kind)).Inc()
			continue
		}
		if _, err := r.lockForProcessing(ctx, kind, intent.PaymentIntent, intent); err != nil {
			logrus.Errorf("failed to enqueue %s job for payment intent %s: %v", kind, intent.PaymentIntent, err)
		}
	}
}

// EnqueueDynamicPayments admits a batch of locked dynamic payment requests.
// The lock is keyed on the underlying intent, so concurrent requests against
// the same intent collapse to a single in-flight job.
func (r *Relayer) EnqueueDynamicPayments(ctx context.Context, jobs []*model.DynamicPaymentRequestJob) {
	for _, job := range jobs {
		if err := job.Validate(); err != nil {
			logrus.Errorf("skipping invalid %s job: %v", JobKindDynamicPayment, err)
			JobsSkipped.WithLabelValues(string(JobKindDynamicPayment)).Inc()
			continue
		}
		if _, err := r.lockForProcessing(ctx, JobKindDynamicPayment, job.PaymentIntent.PaymentIntent, job); err != nil {
			logrus.Errorf("failed to enqueue %s job for payment request %s: %v", JobKindDynamicPayment, job.ID, err)
		}
	}
}

// lockForProcessing atomically checks the lock and the queue's headroom,
// takes the lock, and hands the job to the durable queue. A failed enqueue
// releases the lock again so the intent is not stranded.
func (r *Relayer) lockForProcessing(ctx context.Context, kind JobKind, intentID string, payload interface{}) (bool, error) {
	ctx, span := tracer.Start(ctx, "Admitting relay job")
	defer span.End()

	lockKey := kind.LockKey(intentID)
	admitted, err := r.locks.TryAdmit(ctx, lockKey)
	if err != nil {
		return false, logAndRecordError(span, "admission error: ", err)
	}
	if !admitted {
		JobsSkipped.WithLabelValues(string(kind)).Inc()
		return false, nil
	}
	if err := r.queue.Enqueue(ctx, kind, intentID, payload); err != nil {
		if relErr := r.locks.Release(ctx, lockKey); relErr != nil {
			logrus.Errorf("failed to release lock %s after enqueue failure: %v", lockKey, relErr)
		}
		return false, logAndRecordError(span, "enqueue error: ", err)
	}
	JobsAdmitted.WithLabelValues(string(kind)).Inc()
	return true, nil
}

func (r *Relayer) unlockAfterProcessing(ctx context.Context, kind JobKind, intentID string) error {
	return r.locks.Release(ctx, kind.LockKey(intentID))
}
