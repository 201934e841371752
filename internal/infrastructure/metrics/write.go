package metrics

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/tmarsden/edgeflow-core/internal/action"
)

// RecordExecution writes one point per completed action. Implements the
// engine's Recorder seam.
//
// Kind and status are tags (low cardinality); duration is the field.
func (c *Client) RecordExecution(kind action.Kind, status action.Status, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"action_executions",
		map[string]string{
			"kind":   string(kind),
			"status": string(status),
		},
		map[string]interface{}{
			"duration_ms": duration.Milliseconds(),
		},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

// RecordQueueDepth samples the executor queue. Called periodically by
// the main loop, not per action.
func (c *Client) RecordQueueDepth(depth, highWater int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"action_queue",
		nil,
		map[string]interface{}{
			"depth":      depth,
			"high_water": highWater,
		},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

// RecordWatchOutcome writes one point per terminal watch state.
func (c *Client) RecordWatchOutcome(varName, outcome string, elapsed time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"service_watches",
		map[string]string{
			"var_name": varName,
			"outcome":  outcome,
		},
		map[string]interface{}{
			"elapsed_ms": elapsed.Milliseconds(),
		},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom measurement for callers outside the fixed
// telemetry set.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
