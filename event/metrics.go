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

package event

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// busMetrics methods are safe to call on a nil receiver
type busMetrics struct {
	eventsTotal    *prometheus.CounterVec
	subscribers    *prometheus.GaugeVec
	deliveryErrors *prometheus.CounterVec
}

func newBusMetrics(promRegistry prometheus.Registerer) *busMetrics {
	promautoFactory := promauto.With(promRegistry)
	return &busMetrics{
		eventsTotal: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tontip_event_published_total",
				Help: "total events published by type",
			},
			[]string{"type"},
		),
		subscribers: promautoFactory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tontip_event_subscribers",
				Help: "current subscribers by event type and kind",
			},
			[]string{"type", "kind"},
		),
		deliveryErrors: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tontip_event_delivery_errors_total",
				Help: "failed or dropped event deliveries",
			},
			[]string{"type", "kind"},
		),
	}
}

func (m *busMetrics) published(eventType EventType) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(string(eventType)).Inc()
}

func (m *busMetrics) subscriberAdded(eventType EventType, kind string) {
	if m == nil {
		return
	}
	m.subscribers.WithLabelValues(string(eventType), kind).Inc()
}

func (m *busMetrics) subscriberRemoved(eventType EventType, kind string) {
	if m == nil {
		return
	}
	m.subscribers.WithLabelValues(string(eventType), kind).Dec()
}

func (m *busMetrics) deliveryFailed(eventType EventType, kind string) {
	if m == nil {
		return
	}
	m.deliveryErrors.WithLabelValues(string(eventType), kind).Inc()
}
