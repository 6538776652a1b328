/*
 * GraphStream
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package metrics exposes the counters the rest of the module absorbs
transport and capacity events into instead of returning them as errors -
a dropped push or a lost edge must never unwind a Consume call, only
move a counter. Counters are plain Prometheus collectors so a
deployment can scrape them the same way it would scrape any other Go
service; tests read them through DroppedTotal or the collectors' own
Write method.
*/
package metrics

import (
	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
)

/*
Counters bundles every counter a single GraphStore node exposes. A fresh
Counters must be created per node (two nodes in one test process must not
share collectors, which is also why Counters does not register itself
with the global prometheus.DefaultRegisterer).
*/
type Counters struct {
	Registry *prometheus.Registry

	EdgePulls    prometheus.Counter // edges shipped out in response to a remote EdgeRequest
	EdgePushes   prometheus.Counter // edges received from a remote peer via push
	DroppedEdge  prometheus.Counter // edge-class sends dropped (hwm overflow or timeout)
	DroppedReq   prometheus.Counter // request-class sends dropped
	RequestsSent prometheus.Counter // edge requests emitted to remote owners
	Results      prometheus.Counter // completed matches enqueued
}

/*
New creates a Counters bundle registered with its own private registry.
*/
func New() *Counters {
	reg := prometheus.NewRegistry()

	c := &Counters{
		Registry: reg,
		EdgePulls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "graphstream_edge_pulls_total",
			Help: "Edges shipped to peers in response to an outstanding edge request.",
		}),
		EdgePushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "graphstream_edge_pushes_total",
			Help: "Edges received from remote peers and consumed locally.",
		}),
		DroppedEdge: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "graphstream_dropped_edge_total",
			Help: "Edge-class transport sends dropped (hwm overflow or send timeout).",
		}),
		DroppedReq: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "graphstream_dropped_request_total",
			Help: "Request-class transport sends dropped (hwm overflow or send timeout).",
		}),
		RequestsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "graphstream_edge_requests_sent_total",
			Help: "Edge requests emitted to remote vertex owners.",
		}),
		Results: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "graphstream_results_total",
			Help: "Completed subgraph matches enqueued to the results sink.",
		}),
	}

	reg.MustRegister(c.EdgePulls, c.EdgePushes, c.DroppedEdge, c.DroppedReq, c.RequestsSent, c.Results)

	return c
}

/*
DroppedTotal sums both dropped-message counters into the single number a
deployment should alert on.
*/
func (c *Counters) DroppedTotal() float64 {
	return counterValue(c.DroppedEdge) + counterValue(c.DroppedReq)
}

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
