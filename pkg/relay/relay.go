// Package relay is the reference low-voltage-disconnect machine that edge nodes run against
// the threshold policy the service hands out. It is used by the CLI simulator, the fleet
// benchmark and tests; the service itself never drives a relay.
package relay

import (
	"sync"

	"liyu1981.xyz/hive-telemetry-service/pkg/models"
)

type State int

const (
	Connected State = iota
	Disconnected
)

func (s State) String() string {
	if s == Disconnected {
		return "DISCONNECTED"
	}
	return "CONNECTED"
}

// Transition is one state change; Sample is the index of the voltage sample that caused it,
// or -1 when a policy change did.
type Transition struct {
	Sample  int
	Voltage float64
	From    State
	To      State
}

type Controller struct {
	mu      sync.Mutex
	state   State
	policy  models.ThresholdPolicy
	samples int
}

func NewController(policy models.ThresholdPolicy) *Controller {
	return &Controller{state: Connected, policy: policy}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Policy() models.ThresholdPolicy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policy
}

// SetPolicy replaces the cached policy. Disabling the policy reconnects a disconnected load.
func (c *Controller) SetPolicy(policy models.ThresholdPolicy) *Transition {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.policy = policy
	if c.state == Disconnected && !policy.Enabled {
		return c.move(-1, 0, Connected)
	}
	return nil
}

// Observe evaluates one voltage sample. Samples inside the dead band never move the relay.
func (c *Controller) Observe(voltage float64) *Transition {
	c.mu.Lock()
	defer c.mu.Unlock()

	sample := c.samples
	c.samples++

	switch c.state {
	case Connected:
		if c.policy.Enabled && voltage < c.policy.DisconnectVoltage {
			return c.move(sample, voltage, Disconnected)
		}
	case Disconnected:
		if voltage > c.policy.ReconnectVoltage || !c.policy.Enabled {
			return c.move(sample, voltage, Connected)
		}
	}
	return nil
}

func (c *Controller) move(sample int, voltage float64, to State) *Transition {
	t := &Transition{Sample: sample, Voltage: voltage, From: c.state, To: to}
	c.state = to
	return t
}

// Simulate runs a fresh controller over voltages and returns every transition.
func Simulate(policy models.ThresholdPolicy, voltages []float64) (State, []Transition) {
	c := NewController(policy)
	var transitions []Transition
	for _, v := range voltages {
		if t := c.Observe(v); t != nil {
			transitions = append(transitions, *t)
		}
	}
	return c.State(), transitions
}
