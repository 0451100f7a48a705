// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type stateMetrics struct {
	messagesProcessed prometheus.Counter
	messagesFailed    prometheus.Counter
	messagesBounced   prometheus.Counter
	messagesDropped   prometheus.Counter
	valueTransferred  prometheus.Counter
	tipsTotal         prometheus.Counter
	cascadeSize       prometheus.Histogram
	accounts          prometheus.Gauge
	wallets           prometheus.Gauge
	logicalTime       prometheus.Gauge
}

func (m *stateMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.messagesProcessed = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "tontip_ledger_messages_processed_total",
		Help: "total messages delivered",
	})
	m.messagesFailed = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "tontip_ledger_messages_failed_total",
		Help: "total messages rejected by the destination account",
	})
	m.messagesBounced = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "tontip_ledger_messages_bounced_total",
		Help: "total bounce messages generated",
	})
	m.messagesDropped = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "tontip_ledger_messages_dropped_total",
		Help: "total messages dropped past the cascade limit",
	})
	m.valueTransferred = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "tontip_ledger_value_transferred_total",
		Help: "total value credited by successful messages, in whole coins",
	})
	m.tipsTotal = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "tontip_ledger_tips_total",
		Help: "total value forwarded as tips, in whole coins",
	})
	m.cascadeSize = promautoFactory.NewHistogram(prometheus.HistogramOpts{
		Name:    "tontip_ledger_cascade_size",
		Help:    "messages delivered per external message",
		Buckets: prometheus.ExponentialBuckets(1, 2, 9), // 1 to 256
	})
	m.accounts = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "tontip_ledger_accounts",
		Help: "current count of deployed program accounts",
	})
	m.wallets = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "tontip_ledger_wallets",
		Help: "current count of plain wallets",
	})
	m.logicalTime = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "tontip_ledger_logical_time",
		Help: "last assigned logical time",
	})
}
