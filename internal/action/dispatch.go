package action

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmarsden/edgeflow-core/internal/actuator"
	"github.com/tmarsden/edgeflow-core/internal/catalog"
	"github.com/tmarsden/edgeflow-core/internal/remote"
	"github.com/tmarsden/edgeflow-core/internal/watch"
)

// dispatch expands the action's string fields and routes it to the
// handler for its kind. Every path fills a Result; the error mirrors the
// failure for callers that compose on errors.
func (e *Engine) dispatch(a *Action) (Result, error) {
	e.expand(a)

	switch a.Kind {
	case KindRemoteCommand:
		return e.execRemote(a.Remote)
	case KindRemoteCommandRef:
		return e.execRemoteRef(a.RemoteRef)
	case KindCLI:
		return e.execCLI(a.CLI)
	case KindActuator:
		return e.execActuator(a.Actuator)
	case KindGPIO:
		return e.execGPIO(a.GPIO)
	case KindLog:
		return e.execLog(a.Log)
	case KindSetVariable:
		return e.execSetVar(a.SetVar)
	case KindDeviceControl:
		return e.execDevice(a.Device)
	case KindWebhook:
		return e.execWebhook(a.Webhook)
	default:
		err := fmt.Errorf("%w: unknown kind %q", ErrInvalidAction, a.Kind)
		return Result{Status: StatusFailed, Output: err.Error(), Timestamp: time.Now()}, err
	}
}

// expand runs variable expansion over the user-facing string fields of
// the (already copied) action.
func (e *Engine) expand(a *Action) {
	if e.deps.Variables == nil {
		return
	}
	x := e.deps.Variables.Expand

	switch {
	case a.Remote != nil:
		a.Remote.Command = x(a.Remote.Command)
	case a.CLI != nil:
		a.CLI.Command = x(a.CLI.Command)
	case a.Actuator != nil:
		a.Actuator.Text = x(a.Actuator.Text)
		a.Actuator.ImagePath = x(a.Actuator.ImagePath)
		a.Actuator.QRText = x(a.Actuator.QRText)
	case a.Log != nil:
		a.Log.Message = x(a.Log.Message)
	case a.SetVar != nil:
		a.SetVar.Value = x(a.SetVar.Value)
	}
}

// failed builds a failure result and matching error.
func failed(started time.Time, err error, output string) (Result, error) {
	r := newResult(StatusFailed, output, started)
	return r, err
}

// runRemote connects to a host and executes one command. Shared by the
// inline and by-reference remote kinds.
func (e *Engine) runRemote(host *catalog.Host, command string, timeout time.Duration) (remote.ExecResult, error) {
	cfg, err := e.hostConfig(host)
	if err != nil {
		return remote.ExecResult{}, err
	}
	if e.deps.Dialer == nil {
		return remote.ExecResult{}, fmt.Errorf("%w: no remote dialer configured", ErrInvalidAction)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	session, err := e.deps.Dialer.Connect(ctx, cfg)
	if err != nil {
		return remote.ExecResult{}, err
	}
	defer session.Close()

	return session.Exec(ctx, command)
}

func (e *Engine) countRemote() {
	e.statsMu.Lock()
	e.stats.RemoteCommands++
	e.statsMu.Unlock()
}

// execRemote handles the inline remote command kind.
func (e *Engine) execRemote(rc *RemoteCommand) (Result, error) {
	started := time.Now()
	defer e.countRemote()

	host, err := e.resolveHost(context.Background(), rc.HostRef)
	if err != nil {
		return failed(started, err, fmt.Sprintf("host '%s' not found", rc.HostRef))
	}

	timeout := e.cfg.DefaultExecTimeout
	if rc.TimeoutMS > 0 {
		timeout = time.Duration(rc.TimeoutMS) * time.Millisecond
	}

	e.deps.Logger.Info("remote command", "host", rc.HostRef, "command", rc.Command)

	res, err := e.runRemote(host, rc.Command, timeout)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return newResult(StatusTimeout, "remote execution timeout", started), ErrExecutionTimeout
		}
		return failed(started, err, fmt.Sprintf("remote exec failed: %v", err))
	}

	result := newResult(StatusSuccess, res.Output(), started)
	result.ExitCode = res.ExitCode
	if res.ExitCode != 0 {
		result.Status = StatusFailed
		return result, fmt.Errorf("%w: exit code %d", ErrExecutionFailed, res.ExitCode)
	}
	return result, nil
}

// execRemoteRef handles commands defined in the catalog, including nohup
// detachment, result variable publication and service-mode watches.
func (e *Engine) execRemoteRef(ref *RemoteCommandRef) (Result, error) {
	started := time.Now()
	defer e.countRemote()

	if e.deps.Catalog == nil {
		err := fmt.Errorf("%w: no command catalog configured", ErrInvalidAction)
		return failed(started, err, err.Error())
	}

	ctx := context.Background()
	cmd, err := e.deps.Catalog.GetCommand(ctx, ref.CommandID)
	if err != nil {
		return failed(started,
			fmt.Errorf("%w: %s", ErrCommandNotFound, ref.CommandID),
			fmt.Sprintf("command '%s' not found", ref.CommandID))
	}
	if !cmd.Enabled {
		return failed(started,
			fmt.Errorf("%w: %s", ErrCommandDisabled, ref.CommandID),
			fmt.Sprintf("command '%s' is disabled", ref.CommandID))
	}

	host, err := e.resolveHost(ctx, cmd.HostID)
	if err != nil {
		return failed(started, err, fmt.Sprintf("host '%s' not found", cmd.HostID))
	}

	command := cmd.Command
	if e.deps.Variables != nil {
		command = e.deps.Variables.Expand(command)
	}
	if cmd.Nohup {
		command = nohupWrap(command, safeName(cmd.Name))
		e.deps.Logger.Info("nohup mode", "command_id", cmd.ID, "wrapped", command)
	}

	timeout := e.cfg.DefaultExecTimeout
	if cmd.TimeoutSec > 0 {
		timeout = time.Duration(cmd.TimeoutSec) * time.Second
	}

	res, err := e.runRemote(host, command, timeout)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return newResult(StatusTimeout, "remote execution timeout", started), ErrExecutionTimeout
		}
		return failed(started, err, fmt.Sprintf("remote exec failed: %v", err))
	}

	e.deps.Catalog.TouchCommandExec(ctx, cmd.ID)
	e.publishExecVars(cmd, res)
	e.startServiceWatch(cmd)

	result := newResult(StatusSuccess, res.Output(), started)
	result.ExitCode = res.ExitCode
	if res.ExitCode != 0 {
		result.Status = StatusFailed
		return result, fmt.Errorf("%w: exit code %d", ErrExecutionFailed, res.ExitCode)
	}
	return result, nil
}

// publishExecVars writes the execution outcome under the command's
// variable prefix.
func (e *Engine) publishExecVars(cmd *catalog.Command, res remote.ExecResult) {
	if e.deps.Variables == nil || cmd.VarName == nil || *cmd.VarName == "" {
		return
	}
	prefix := *cmd.VarName

	status := "success"
	if res.ExitCode != 0 {
		status = "failed"
	}
	_ = e.deps.Variables.SetInt(prefix+".exit_code", int64(res.ExitCode))
	_ = e.deps.Variables.SetString(prefix+".status", status)
	_ = e.deps.Variables.SetInt(prefix+".timestamp", time.Now().Unix())

	// Debug breadcrumb for automations inspecting their own launch mode.
	pattern := ""
	if cmd.ReadyPattern != nil {
		pattern = *cmd.ReadyPattern
	}
	info := fmt.Sprintf("nohup=%t,svcmode=%t,pattern=%.64s", cmd.Nohup, cmd.ServiceMode, pattern)
	_ = e.deps.Variables.SetString(prefix+".exec_info", info)
}

// startServiceWatch launches a readiness watch for detached service
// commands that configure a ready pattern.
func (e *Engine) startServiceWatch(cmd *catalog.Command) {
	if e.deps.Watches == nil || !cmd.Nohup || !cmd.ServiceMode {
		return
	}
	if cmd.ReadyPattern == nil || *cmd.ReadyPattern == "" {
		return
	}
	if cmd.VarName == nil || *cmd.VarName == "" {
		return
	}

	failPattern := ""
	if cmd.FailPattern != nil {
		failPattern = *cmd.FailPattern
	}

	cfg := watch.Config{
		HostID:        cmd.HostID,
		LogFile:       nohupLogFile(safeName(cmd.Name)),
		ReadyPattern:  *cmd.ReadyPattern,
		FailPattern:   failPattern,
		VarName:       *cmd.VarName,
		Timeout:       time.Duration(cmd.ReadyTimeoutSec) * time.Second,
		CheckInterval: time.Duration(cmd.ReadyCheckIntervalMS) * time.Millisecond,
	}
	if err := e.deps.Watches.Start(cfg); err != nil {
		e.deps.Logger.Warn("failed to start readiness watch",
			"command_id", cmd.ID,
			"error", err,
		)
		return
	}
	e.deps.Logger.Info("service mode: watching log",
		"var_name", *cmd.VarName,
		"ready_pattern", *cmd.ReadyPattern,
	)
}

// execCLI runs a command through the local console.
func (e *Engine) execCLI(cli *CLICommand) (Result, error) {
	started := time.Now()

	if e.deps.Console == nil {
		err := fmt.Errorf("%w: no console configured", ErrInvalidAction)
		return failed(started, err, err.Error())
	}

	timeout := e.cfg.DefaultExecTimeout
	if cli.TimeoutMS > 0 {
		timeout = time.Duration(cli.TimeoutMS) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	e.deps.Logger.Info("cli command", "command", cli.Command)

	res, err := e.deps.Console.Exec(ctx, cli.Command)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return newResult(StatusTimeout, "cli execution timeout", started), ErrExecutionTimeout
		}
		return failed(started, err, fmt.Sprintf("cli exec failed: %v", err))
	}

	output := res.Output
	if output == "" {
		output = fmt.Sprintf("command completed (code=%d)", res.Code)
	}
	result := newResult(StatusSuccess, output, started)
	result.ExitCode = res.Code
	if res.Code != 0 {
		result.Status = StatusFailed
	}

	if e.deps.Variables != nil && cli.VarName != "" {
		status := "success"
		if res.Code != 0 {
			status = "failed"
		}
		_ = e.deps.Variables.SetInt(cli.VarName+".exit_code", int64(res.Code))
		_ = e.deps.Variables.SetString(cli.VarName+".status", status)
		_ = e.deps.Variables.SetString(cli.VarName+".output", result.Output)
	}

	if result.Status != StatusSuccess {
		return result, fmt.Errorf("%w: exit code %d", ErrExecutionFailed, res.Code)
	}
	return result, nil
}

// execActuator resolves the device and branches on the control kind.
// Display kinds require a matrix device.
func (e *Engine) execActuator(ac *ActuatorControl) (Result, error) {
	started := time.Now()
	defer func() {
		e.statsMu.Lock()
		e.stats.ActuatorOps++
		e.statsMu.Unlock()
	}()

	if e.deps.Devices == nil {
		err := fmt.Errorf("%w: no actuator registry configured", ErrInvalidAction)
		return failed(started, err, err.Error())
	}

	device, err := e.deps.Devices.Get(ac.Device)
	if err != nil {
		return failed(started, err, fmt.Sprintf("device '%s' not found", ac.Device))
	}
	name := actuator.ResolveAlias(ac.Device)

	switch ac.Ctrl {
	case CtrlOff:
		if err := device.Off(); err != nil {
			return failed(started, err, fmt.Sprintf("off failed: %v", err))
		}
		return newResult(StatusSuccess, fmt.Sprintf("%s turned off", name), started), nil

	case CtrlBrightness:
		if err := device.SetBrightness(ac.Brightness); err != nil {
			return failed(started, err, fmt.Sprintf("brightness failed: %v", err))
		}
		return newResult(StatusSuccess, fmt.Sprintf("%s brightness=%d", name, ac.Brightness), started), nil

	case CtrlEffect:
		if ac.Effect == "" {
			err := fmt.Errorf("%w: no effect specified", ErrInvalidAction)
			return failed(started, err, "no effect specified")
		}
		if err := device.StartEffect(ac.Effect); err != nil {
			return failed(started, err, fmt.Sprintf("effect '%s' failed: %v", ac.Effect, err))
		}
		return newResult(StatusSuccess, fmt.Sprintf("%s effect=%s started", name, ac.Effect), started), nil

	case CtrlFill, "":
		color, err := actuator.ParseColor(ac.Color)
		if err != nil {
			return failed(started, err, fmt.Sprintf("bad color '%s'", ac.Color))
		}
		if err := device.Fill(color); err != nil {
			return failed(started, err, fmt.Sprintf("fill failed: %v", err))
		}
		return newResult(StatusSuccess, fmt.Sprintf("%s filled with %s", name, color.Hex()), started), nil
	}

	// Remaining kinds are matrix-only.
	matrix, err := e.deps.Devices.GetMatrix(ac.Device)
	if err != nil {
		return failed(started,
			fmt.Errorf("%w: %s on %s", ErrNotSupported, ac.Ctrl, name),
			fmt.Sprintf("%s only supported on matrix", ac.Ctrl))
	}

	switch ac.Ctrl {
	case CtrlText:
		if ac.Text == "" {
			err := fmt.Errorf("%w: no text specified", ErrInvalidAction)
			return failed(started, err, "no text specified")
		}
		err = matrix.DrawText(actuator.TextOptions{
			Text:   ac.Text,
			Font:   ac.Font,
			Color:  ac.Color,
			Scroll: ac.Scroll,
			Loop:   ac.Loop,
			Speed:  ac.Speed,
		})
		if err != nil {
			return failed(started, err, fmt.Sprintf("text failed: %v", err))
		}
		return newResult(StatusSuccess, fmt.Sprintf("text: %.200s", ac.Text), started), nil

	case CtrlImage:
		if ac.ImagePath == "" {
			err := fmt.Errorf("%w: no image path specified", ErrInvalidAction)
			return failed(started, err, "no image path specified")
		}
		err = matrix.DrawImage(actuator.ImageOptions{Path: ac.ImagePath, Center: ac.Center})
		if err != nil {
			return failed(started, err, fmt.Sprintf("image failed: %v", err))
		}
		return newResult(StatusSuccess, fmt.Sprintf("image: %.200s", ac.ImagePath), started), nil

	case CtrlQRCode:
		if ac.QRText == "" {
			err := fmt.Errorf("%w: no QR text specified", ErrInvalidAction)
			return failed(started, err, "no QR text specified")
		}
		err = matrix.DrawQR(actuator.QROptions{Text: ac.QRText, ECC: ac.QRECC, Color: ac.Color})
		if err != nil {
			return failed(started, err, fmt.Sprintf("qrcode failed: %v", err))
		}
		return newResult(StatusSuccess, fmt.Sprintf("qrcode: %.200s", ac.QRText), started), nil

	case CtrlFilter:
		if ac.Filter == "" {
			err := fmt.Errorf("%w: no filter specified", ErrInvalidAction)
			return failed(started, err, "no filter specified")
		}
		if err := matrix.ApplyFilter(ac.Filter); err != nil {
			return failed(started, err, fmt.Sprintf("filter failed: %v", err))
		}
		return newResult(StatusSuccess, fmt.Sprintf("filter: %s", ac.Filter), started), nil

	case CtrlFilterStop:
		if err := matrix.StopFilter(); err != nil {
			return failed(started, err, fmt.Sprintf("filter stop failed: %v", err))
		}
		return newResult(StatusSuccess, "filter stopped", started), nil

	case CtrlTextStop:
		if err := matrix.StopText(); err != nil {
			return failed(started, err, fmt.Sprintf("text stop failed: %v", err))
		}
		return newResult(StatusSuccess, "text stopped", started), nil

	default:
		err = fmt.Errorf("%w: unknown control kind %q", ErrInvalidAction, ac.Ctrl)
		return failed(started, err, err.Error())
	}
}

// execGPIO sets a pin level, optionally pulsing back to the inverse
// after the hold time.
func (e *Engine) execGPIO(g *GPIOControl) (Result, error) {
	started := time.Now()
	defer func() {
		e.statsMu.Lock()
		e.stats.GPIOOps++
		e.statsMu.Unlock()
	}()

	if e.deps.GPIO == nil {
		err := fmt.Errorf("%w: no gpio driver configured", ErrInvalidAction)
		return failed(started, err, err.Error())
	}

	if err := e.deps.GPIO.ConfigureOutput(g.Pin); err != nil {
		return failed(started, err, fmt.Sprintf("gpio config failed: %v", err))
	}
	if err := e.deps.GPIO.SetLevel(g.Pin, g.Level); err != nil {
		return failed(started, err, fmt.Sprintf("gpio set failed: %v", err))
	}

	if g.PulseMS > 0 {
		time.Sleep(time.Duration(g.PulseMS) * time.Millisecond)
		if err := e.deps.GPIO.SetLevel(g.Pin, !g.Level); err != nil {
			e.deps.Logger.Warn("gpio pulse restore failed", "pin", g.Pin, "error", err)
		}
		return newResult(StatusSuccess, fmt.Sprintf("gpio %d pulse %d ms", g.Pin, g.PulseMS), started), nil
	}
	return newResult(StatusSuccess, fmt.Sprintf("gpio %d set to %t", g.Pin, g.Level), started), nil
}

// execLog writes the (already expanded) message at the requested level.
func (e *Engine) execLog(l *LogAction) (Result, error) {
	started := time.Now()

	switch l.Level {
	case "error":
		e.deps.Logger.Error(l.Message)
	case "warn", "warning":
		e.deps.Logger.Warn(l.Message)
	case "debug":
		e.deps.Logger.Debug(l.Message)
	default:
		e.deps.Logger.Info(l.Message)
	}

	return newResult(StatusSuccess, l.Message, started), nil
}

// execSetVar writes a typed value into the variable store.
func (e *Engine) execSetVar(sv *SetVariable) (Result, error) {
	started := time.Now()

	if e.deps.Variables == nil {
		err := fmt.Errorf("%w: no variable store configured", ErrInvalidAction)
		return failed(started, err, err.Error())
	}

	value, err := sv.parseValue()
	if err != nil {
		return failed(started, err, err.Error())
	}
	if err := e.deps.Variables.Set(sv.Name, value); err != nil {
		return failed(started, err, fmt.Sprintf("set variable failed: %v", err))
	}
	return newResult(StatusSuccess, fmt.Sprintf("variable '%s' set", sv.Name), started), nil
}

// execDevice is an acknowledged stub: it succeeds with a note.
func (e *Engine) execDevice(d *DeviceControl) (Result, error) {
	started := time.Now()
	e.deps.Logger.Info("device control", "device", d.Device, "action", d.Action)
	out := fmt.Sprintf("device control: %s.%s (not implemented)", d.Device, d.Action)
	return newResult(StatusSuccess, out, started), nil
}

// execWebhook always fails: the kind is declared but not supported.
func (e *Engine) execWebhook(*WebhookAction) (Result, error) {
	started := time.Now()
	err := fmt.Errorf("%w: webhook", ErrNotSupported)
	return failed(started, err, "webhook actions not supported")
}

// safeName reduces a command name to at most 20 alphanumeric runes for
// use in remote file names. Empty input falls back to "cmd".
func safeName(name string) string {
	out := make([]byte, 0, 20)
	for i := 0; i < len(name) && len(out) < 20; i++ {
		c := name[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return "cmd"
	}
	return string(out)
}

// nohupWrap detaches a command on the remote host, capturing output and
// pid in predictable per-command files.
func nohupWrap(command, safe string) string {
	return fmt.Sprintf("nohup %s > %s 2>&1 & echo $! > %s",
		command, nohupLogFile(safe), nohupPidFile(safe))
}

func nohupLogFile(safe string) string { return fmt.Sprintf("/tmp/ef_nohup_%s.log", safe) }
func nohupPidFile(safe string) string { return fmt.Sprintf("/tmp/ef_nohup_%s.pid", safe) }
