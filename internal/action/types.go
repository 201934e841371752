package action

import (
	"fmt"
	"strconv"
	"time"

	"github.com/tmarsden/edgeflow-core/internal/variable"
)

// Kind discriminates the action variants.
type Kind string

// Action kinds.
const (
	KindRemoteCommand    Kind = "remote_command"
	KindRemoteCommandRef Kind = "remote_command_ref"
	KindCLI              Kind = "cli"
	KindActuator         Kind = "actuator"
	KindGPIO             Kind = "gpio"
	KindLog              Kind = "log"
	KindSetVariable      Kind = "set_variable"
	KindDeviceControl    Kind = "device_control"
	KindWebhook          Kind = "webhook"
)

// Status of an execution.
type Status string

// Execution statuses.
const (
	StatusPending   Status = "pending"
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
	StatusCancelled Status = "cancelled"
)

// maxOutputLen bounds result output. Longer output is truncated silently.
const maxOutputLen = 2048

// Action is a tagged variant: Kind selects which payload pointer is set.
type Action struct {
	Kind Kind `json:"kind"`

	// DelayMS is a pre-execution sleep applied by the worker after
	// dequeue, so admission order stays FIFO.
	DelayMS int `json:"delay_ms,omitempty"`

	// Async marks the action for fire-and-forget dispatch when executed
	// through a template.
	Async bool `json:"async,omitempty"`

	Remote    *RemoteCommand    `json:"remote,omitempty"`
	RemoteRef *RemoteCommandRef `json:"remote_ref,omitempty"`
	CLI       *CLICommand       `json:"cli,omitempty"`
	Actuator  *ActuatorControl  `json:"actuator,omitempty"`
	GPIO      *GPIOControl      `json:"gpio,omitempty"`
	Log       *LogAction        `json:"log,omitempty"`
	SetVar    *SetVariable      `json:"set_var,omitempty"`
	Device    *DeviceControl    `json:"device,omitempty"`
	Webhook   *WebhookAction    `json:"webhook,omitempty"`
}

// RemoteCommand runs a shell command on a host from the host table.
type RemoteCommand struct {
	HostRef   string `json:"host_ref"`
	Command   string `json:"command"`
	TimeoutMS int    `json:"timeout_ms,omitempty"`
}

// RemoteCommandRef runs a command defined in the command catalog. The
// catalog entry carries the host binding plus nohup and service-mode
// options.
type RemoteCommandRef struct {
	CommandID string `json:"command_id"`
}

// CLICommand runs a command through the local console facility.
type CLICommand struct {
	Command   string `json:"command"`
	VarName   string `json:"var_name,omitempty"`
	TimeoutMS int    `json:"timeout_ms,omitempty"`
}

// CtrlKind selects an actuator operation.
type CtrlKind string

// Actuator control kinds. The display kinds (text, image, qrcode,
// filter, filter_stop, text_stop) require a matrix device.
const (
	CtrlOff        CtrlKind = "off"
	CtrlFill       CtrlKind = "fill"
	CtrlBrightness CtrlKind = "brightness"
	CtrlEffect     CtrlKind = "effect"
	CtrlText       CtrlKind = "text"
	CtrlImage      CtrlKind = "image"
	CtrlQRCode     CtrlKind = "qrcode"
	CtrlFilter     CtrlKind = "filter"
	CtrlFilterStop CtrlKind = "filter_stop"
	CtrlTextStop   CtrlKind = "text_stop"
)

// ActuatorControl drives an LED device, addressed by full name or short
// alias.
type ActuatorControl struct {
	Device string   `json:"device"`
	Ctrl   CtrlKind `json:"ctrl"`

	Color      string `json:"color,omitempty"`
	Brightness uint8  `json:"brightness,omitempty"`
	Effect     string `json:"effect,omitempty"`

	Text   string `json:"text,omitempty"`
	Font   string `json:"font,omitempty"`
	Scroll string `json:"scroll,omitempty"`
	Loop   bool   `json:"loop,omitempty"`
	Speed  int    `json:"speed,omitempty"`

	ImagePath string `json:"image_path,omitempty"`
	Center    bool   `json:"center,omitempty"`

	QRText string `json:"qr_text,omitempty"`
	QRECC  string `json:"qr_ecc,omitempty"`

	Filter string `json:"filter,omitempty"`
}

// GPIOControl drives a digital output pin. PulseMS > 0 holds the level
// then inverts it back.
type GPIOControl struct {
	Pin     uint8 `json:"pin"`
	Level   bool  `json:"level"`
	PulseMS int   `json:"pulse_ms,omitempty"`
}

// LogAction writes a message into the process log.
type LogAction struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// SetVariable writes a typed value into the variable store. Value is
// carried as a string and parsed per Type at execution time.
type SetVariable struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// parseValue converts the carried string into a typed variable value.
func (s *SetVariable) parseValue() (variable.Value, error) {
	switch s.Type {
	case "bool":
		b, err := strconv.ParseBool(s.Value)
		if err != nil {
			return variable.Value{}, fmt.Errorf("%w: bad bool %q", ErrInvalidAction, s.Value)
		}
		return variable.Bool(b), nil
	case "int":
		n, err := strconv.ParseInt(s.Value, 10, 64)
		if err != nil {
			return variable.Value{}, fmt.Errorf("%w: bad int %q", ErrInvalidAction, s.Value)
		}
		return variable.Int(n), nil
	case "float":
		f, err := strconv.ParseFloat(s.Value, 64)
		if err != nil {
			return variable.Value{}, fmt.Errorf("%w: bad float %q", ErrInvalidAction, s.Value)
		}
		return variable.Float(f), nil
	case "string", "":
		return variable.String(s.Value), nil
	default:
		return variable.Value{}, fmt.Errorf("%w: unknown value type %q", ErrInvalidAction, s.Type)
	}
}

// DeviceControl is an acknowledged gap: it reports success with a note
// instead of doing anything.
type DeviceControl struct {
	Device string `json:"device"`
	Action string `json:"action"`
}

// WebhookAction is declared but unimplemented and always fails.
type WebhookAction struct {
	URL    string `json:"url"`
	Method string `json:"method,omitempty"`
	Body   string `json:"body,omitempty"`
}

// Validate checks that the payload matching Kind is present and that
// required fields are set.
func (a *Action) Validate() error {
	switch a.Kind {
	case KindRemoteCommand:
		if a.Remote == nil {
			return fmt.Errorf("%w: remote payload missing", ErrInvalidAction)
		}
		if a.Remote.HostRef == "" {
			return ErrMissingHost
		}
		if a.Remote.Command == "" {
			return fmt.Errorf("%w: empty command", ErrInvalidAction)
		}
	case KindRemoteCommandRef:
		if a.RemoteRef == nil || a.RemoteRef.CommandID == "" {
			return fmt.Errorf("%w: command id missing", ErrInvalidAction)
		}
	case KindCLI:
		if a.CLI == nil || a.CLI.Command == "" {
			return fmt.Errorf("%w: empty cli command", ErrInvalidAction)
		}
	case KindActuator:
		if a.Actuator == nil || a.Actuator.Device == "" {
			return fmt.Errorf("%w: actuator device missing", ErrInvalidAction)
		}
	case KindGPIO:
		if a.GPIO == nil {
			return fmt.Errorf("%w: gpio payload missing", ErrInvalidAction)
		}
	case KindLog:
		if a.Log == nil {
			return fmt.Errorf("%w: log payload missing", ErrInvalidAction)
		}
	case KindSetVariable:
		if a.SetVar == nil || a.SetVar.Name == "" {
			return fmt.Errorf("%w: variable name missing", ErrInvalidAction)
		}
	case KindDeviceControl:
		if a.Device == nil {
			return fmt.Errorf("%w: device payload missing", ErrInvalidAction)
		}
	case KindWebhook:
		if a.Webhook == nil {
			return fmt.Errorf("%w: webhook payload missing", ErrInvalidAction)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidAction, a.Kind)
	}
	return nil
}

// DeepCopy returns an independent copy, so a queued snapshot cannot be
// mutated by the caller after admission.
func (a *Action) DeepCopy() Action {
	out := *a
	if a.Remote != nil {
		v := *a.Remote
		out.Remote = &v
	}
	if a.RemoteRef != nil {
		v := *a.RemoteRef
		out.RemoteRef = &v
	}
	if a.CLI != nil {
		v := *a.CLI
		out.CLI = &v
	}
	if a.Actuator != nil {
		v := *a.Actuator
		out.Actuator = &v
	}
	if a.GPIO != nil {
		v := *a.GPIO
		out.GPIO = &v
	}
	if a.Log != nil {
		v := *a.Log
		out.Log = &v
	}
	if a.SetVar != nil {
		v := *a.SetVar
		out.SetVar = &v
	}
	if a.Device != nil {
		v := *a.Device
		out.Device = &v
	}
	if a.Webhook != nil {
		v := *a.Webhook
		out.Webhook = &v
	}
	return out
}

// Result is the uniform outcome record every handler produces.
type Result struct {
	Status     Status    `json:"status"`
	ExitCode   int       `json:"exit_code"`
	Output     string    `json:"output"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// truncateOutput bounds output without signalling. Lossy on purpose so a
// long command output cannot abort an automation.
func truncateOutput(s string) string {
	if len(s) <= maxOutputLen {
		return s
	}
	return s[:maxOutputLen]
}

// newResult stamps a result with status, output and timing.
func newResult(status Status, output string, started time.Time) Result {
	return Result{
		Status:     status,
		Output:     truncateOutput(output),
		DurationMS: time.Since(started).Milliseconds(),
		Timestamp:  time.Now(),
	}
}

// Stats are the engine-wide execution counters.
type Stats struct {
	TotalExecuted  uint64 `json:"total_executed"`
	TotalSuccess   uint64 `json:"total_success"`
	TotalFailed    uint64 `json:"total_failed"`
	TotalTimeout   uint64 `json:"total_timeout"`
	RemoteCommands uint64 `json:"remote_commands"`
	ActuatorOps    uint64 `json:"actuator_actions"`
	GPIOOps        uint64 `json:"gpio_actions"`
	QueueHighWater int    `json:"queue_high_water"`
}
