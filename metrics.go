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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsAdmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_jobs_admitted_total",
		Help: "Relay jobs that passed admission and were enqueued.",
	}, []string{"kind"})

	JobsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_jobs_skipped_total",
		Help: "Relay jobs skipped at admission, either already in flight, refused by backpressure, or invalid.",
	}, []string{"kind"})

	SubmissionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_submission_failures_total",
		Help: "Relay transactions that failed to reach the chain.",
	}, []string{"path"})

	RelaysConfirmed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_relays_confirmed_total",
		Help: "Relay transactions confirmed on-chain and reconciled.",
	}, []string{"path"})

	RelaysReverted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_relays_reverted_total",
		Help: "Relay transactions that reverted on-chain after a passing estimate.",
	}, []string{"path"})

	GasRefundUnderflows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_gas_refund_underflows_total",
		Help: "Dynamic payments whose actual fee exceeded the reserved gas allocation.",
	})

	LocksReaped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_orphaned_locks_reaped_total",
		Help: "Admission locks released because no queued task backed them.",
	})
)
