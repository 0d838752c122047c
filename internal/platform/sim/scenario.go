package sim

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"audioroute/internal/audio"
	applog "audioroute/internal/log"
)

// Step actions understood by Run.
const (
	ActionStart         = "start"
	ActionStop          = "stop"
	ActionActivate      = "activate"
	ActionDeactivate    = "deactivate"
	ActionPlugHeadset   = "plug_headset"
	ActionUnplugHeadset = "unplug_headset"
	ActionBTConnect     = "bt_connect"
	ActionBTDisconnect  = "bt_disconnect"
	ActionSelect        = "select"
	ActionAuto          = "auto"
)

var ErrUnknownAction = errors.New("sim: unknown scenario action")

// Step is one scripted event.
type Step struct {
	Action string                 `yaml:"action"`
	Device *audio.BluetoothDevice `yaml:"device,omitempty"`
	Select *audio.Device          `yaml:"select,omitempty"`
}

func (s Step) String() string {
	switch {
	case s.Device != nil:
		return fmt.Sprintf("%s %s", s.Action, s.Device.Name)
	case s.Select != nil:
		return fmt.Sprintf("%s %s", s.Action, s.Select)
	default:
		return s.Action
	}
}

// Scenario is a simulated host plus a script to run against it.
type Scenario struct {
	Name     string             `yaml:"name"`
	Hardware Hardware           `yaml:"hardware"`
	Session  audio.SessionState `yaml:"session"`
	Steps    []Step             `yaml:"steps"`
}

// LoadScenario reads a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a YAML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	for i, step := range sc.Steps {
		if err := step.validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		// A bare type names the built-in device of that type.
		if step.Select != nil {
			d := audio.NewDevice(step.Select.Type, step.Select.Name)
			sc.Steps[i].Select = &d
		}
	}
	return &sc, nil
}

func (s Step) validate() error {
	switch s.Action {
	case ActionStart, ActionStop, ActionActivate, ActionDeactivate,
		ActionPlugHeadset, ActionUnplugHeadset, ActionAuto:
		return nil
	case ActionBTConnect, ActionBTDisconnect:
		if s.Device == nil {
			return fmt.Errorf("%s requires a device", s.Action)
		}
		return nil
	case ActionSelect:
		if s.Select == nil {
			return fmt.Errorf("%s requires a target device", s.Action)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, s.Action)
	}
}

// Platform builds the simulated host described by the scenario.
func (sc *Scenario) Platform() *Platform {
	return New(sc.Hardware, sc.Session)
}

// Run drives e through the scenario's steps. The start step registers
// listener. After each step report is called with the engine's snapshot.
func (sc *Scenario) Run(e *audio.Engine, p *Platform, listener audio.Listener, report func(Step, audio.Snapshot)) error {
	for i, step := range sc.Steps {
		applog.WithFields(applog.Fields{
			"scenario": sc.Name,
			"step":     i + 1,
			"action":   step.String(),
		}).Debug("sim: running step")

		if err := runStep(e, p, step, listener); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step, err)
		}
		if report != nil {
			report(step, e.Snapshot())
		}
	}
	return nil
}

func runStep(e *audio.Engine, p *Platform, step Step, listener audio.Listener) error {
	switch step.Action {
	case ActionStart:
		return e.Start(listener)
	case ActionStop:
		return e.Stop()
	case ActionActivate:
		return e.Activate()
	case ActionDeactivate:
		return e.Deactivate()
	case ActionPlugHeadset:
		p.PlugHeadset(true)
	case ActionUnplugHeadset:
		p.PlugHeadset(false)
	case ActionBTConnect:
		p.ConnectBluetooth(*step.Device)
	case ActionBTDisconnect:
		p.DisconnectBluetooth(*step.Device)
	case ActionSelect:
		return e.SelectDevice(step.Select)
	case ActionAuto:
		return e.SelectDevice(nil)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, step.Action)
	}
	// Hardware steps post onto the engine loop; a query after the post
	// observes their effect because the loop is FIFO.
	return nil
}
