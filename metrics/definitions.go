/*
   Copyright 2018-2019 Banco Bilbao Vizcaya Argentaria, S.A.

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

// Package metrics declares the prometheus collectors instrumented by the
// engine. Exposition is left to the embedder: register DefaultMetrics on
// any prometheus registry and serve it however the process likes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (

	// ENGINE

	VerikvEngineCommitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "verikv_engine_commits_total",
			Help: "Number of committed epochs.",
		},
	)
	VerikvEngineCommitConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "verikv_engine_commit_conflicts_total",
			Help: "Number of head CAS conflicts observed while committing.",
		},
	)
	VerikvEngineCommitRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "verikv_engine_commit_retries_total",
			Help: "Number of commit attempts retried after conflicts or transient I/O failures.",
		},
	)
	VerikvEngineCommitsAbortedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "verikv_engine_commits_aborted_total",
			Help: "Number of commits aborted after exhausting the retry budget.",
		},
	)
	VerikvEngineCommitDurationSeconds = prometheus.NewSummary(
		prometheus.SummaryOpts{
			Name: "verikv_engine_commit_duration_seconds",
			Help: "Duration of the commit operation.",
		},
	)

	// QUERIES

	VerikvEngineGetsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "verikv_engine_gets_total",
			Help: "Number of lookups.",
		},
	)
	VerikvEngineProofsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "verikv_engine_proofs_total",
			Help: "Number of membership and non-membership proofs generated.",
		},
	)

	// PROMETHEUS

	DefaultMetrics = []prometheus.Collector{
		VerikvEngineCommitsTotal,
		VerikvEngineCommitConflictsTotal,
		VerikvEngineCommitRetriesTotal,
		VerikvEngineCommitsAbortedTotal,
		VerikvEngineCommitDurationSeconds,
		VerikvEngineGetsTotal,
		VerikvEngineProofsTotal,
	}
)

// Register adds the default collectors to the given registry. Double
// registration returns an error from prometheus, so embedders should call
// it once per process.
func Register(r *prometheus.Registry) error {
	for _, m := range DefaultMetrics {
		if err := r.Register(m); err != nil {
			return err
		}
	}
	return nil
}
