// Package watch tracks service readiness after a detached remote command.
//
// When a command is launched on a remote host with nohup, its exit code
// says nothing about whether the service behind it actually came up. A
// watch polls the remote log file for a ready or fail marker and publishes
// the outcome into the variable store:
//
//	<var_name>.status      checking -> ready | failed | timeout
//	<var_name>.ready_time  unix timestamp, set on ready only
//
// One goroutine per watch. Watches are keyed by var_name; starting a new
// watch under a running key evicts the old one first. A finished watch
// removes itself from the manager, so no reaper is needed.
package watch
