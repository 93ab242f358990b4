package fixture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/netip"
)

// Command text shared by the primary and oracle streams.
const (
	// CommandPrefix starts every source-list command.
	CommandPrefix = "-E"

	// PollCommand asks the device for its current source setting.
	PollCommand = "?E"

	// TerminateCommand tells the device to exit.
	TerminateCommand = ".x"

	// DefaultLabel is the device label echoed in oracle lines.
	DefaultLabel = "x"
)

// Oracle line prefixes. The label follows each prefix.
const (
	oracleReceived = "received command for "
	oracleSetting  = "note: "
	oracleSettingS = " source setting: "
)

// ErrTerminated indicates output was requested after the termination pair.
var ErrTerminated = errors.New("serializer already terminated")

// -------------------------------------------------------------------------
// Serializer FSM
// -------------------------------------------------------------------------

// SerializerState is the state of the dual-stream serializer.
type SerializerState uint8

const (
	// SerializerStart: nothing written yet.
	SerializerStart SerializerState = iota

	// SerializerRunning: at least one delta written.
	SerializerRunning

	// SerializerTerminated: the termination pair was written. Terminal.
	SerializerTerminated
)

// String returns the human-readable name of the state.
func (s SerializerState) String() string {
	switch s {
	case SerializerStart:
		return "Start"
	case SerializerRunning:
		return "Running"
	case SerializerTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// serializerEvent is an input to the serializer FSM.
type serializerEvent uint8

const (
	eventDelta serializerEvent = iota
	eventTerminate
)

type serializerKey struct {
	state SerializerState
	event serializerEvent
}

// serializerTable lists every legal transition. Missing pairs are illegal.
var serializerTable = map[serializerKey]SerializerState{
	{SerializerStart, eventDelta}:       SerializerRunning,
	{SerializerRunning, eventDelta}:     SerializerRunning,
	{SerializerStart, eventTerminate}:   SerializerTerminated,
	{SerializerRunning, eventTerminate}: SerializerTerminated,
}

// serializerNext is a pure lookup over serializerTable.
func serializerNext(s SerializerState, e serializerEvent) (SerializerState, bool) {
	next, ok := serializerTable[serializerKey{s, e}]
	if !ok {
		return s, false
	}
	return next, true
}

// -------------------------------------------------------------------------
// Serializer
// -------------------------------------------------------------------------

// Serializer renders accepted deltas onto the primary (command) stream and
// the oracle (expected output) stream. Both streams are flushed after each
// step so a reader never sees one stream ahead of the other by more than a
// step.
type Serializer struct {
	primary *bufio.Writer
	oracle  *bufio.Writer
	label   string
	state   SerializerState
}

// NewSerializer creates a Serializer in the Start state. An empty label
// uses DefaultLabel.
func NewSerializer(primary, oracle io.Writer, label string) *Serializer {
	if label == "" {
		label = DefaultLabel
	}
	return &Serializer{
		primary: bufio.NewWriter(primary),
		oracle:  bufio.NewWriter(oracle),
		label:   label,
	}
}

// State returns the current serializer state.
func (s *Serializer) State() SerializerState {
	return s.state
}

// DeltaCommand renders d as a primary-stream command line.
func DeltaCommand(d Delta) string {
	return CommandPrefix + d.Kind.Marker() + FormatList(d.Addrs)
}

// WriteDelta writes d and the resulting source set.
func (s *Serializer) WriteDelta(d Delta, sources []netip.Addr) error {
	next, ok := serializerNext(s.state, eventDelta)
	if !ok {
		return fmt.Errorf("write delta in state %s: %w", s.state, ErrTerminated)
	}

	cmd := DeltaCommand(d)
	s.cmd(cmd)
	s.cmd(PollCommand)
	fmt.Fprintln(s.oracle, OracleSetting(s.label, sources))

	if err := s.flush(); err != nil {
		return err
	}
	s.state = next
	return nil
}

// Terminate writes the termination pair. No output may follow.
func (s *Serializer) Terminate() error {
	next, ok := serializerNext(s.state, eventTerminate)
	if !ok {
		return fmt.Errorf("terminate in state %s: %w", s.state, ErrTerminated)
	}

	s.cmd(TerminateCommand)
	if err := s.flush(); err != nil {
		return err
	}
	s.state = next
	return nil
}

// cmd writes a primary line and its oracle echo. Write errors are sticky in
// bufio.Writer and surface on flush.
func (s *Serializer) cmd(line string) {
	fmt.Fprintln(s.primary, line)
	fmt.Fprintln(s.oracle, OracleEcho(s.label, line))
}

func (s *Serializer) flush() error {
	if err := s.primary.Flush(); err != nil {
		return fmt.Errorf("flush primary stream: %w", err)
	}
	if err := s.oracle.Flush(); err != nil {
		return fmt.Errorf("flush oracle stream: %w", err)
	}
	return nil
}

// OracleEcho returns the oracle line that echoes a primary command.
func OracleEcho(label, line string) string {
	return oracleReceived + label + " " + line
}

// OracleSetting returns the oracle line that states the source set.
func OracleSetting(label string, sources []netip.Addr) string {
	return oracleSetting + label + oracleSettingS + CommandPrefix + FormatList(sources)
}
