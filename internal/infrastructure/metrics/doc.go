// Package metrics writes execution telemetry to InfluxDB.
//
// The engine hands every completed action to RecordExecution through the
// nil-safe Recorder seam; points are batched and written asynchronously
// so a slow or absent metrics backend never blocks the worker.
package metrics
