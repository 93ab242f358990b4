package fixture_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/dantte-lp/deltafix/internal/fixture"
)

func TestSerializerOutput(t *testing.T) {
	t.Parallel()

	var primary, oracle bytes.Buffer
	s := fixture.NewSerializer(&primary, &oracle, "")

	if s.State() != fixture.SerializerStart {
		t.Fatalf("initial state = %s, want Start", s.State())
	}

	steps := []struct {
		delta   fixture.Delta
		sources []string
	}{
		{fixture.Delta{Kind: fixture.Absolute, Addrs: addrs("10.0.0.2", "10.0.0.1", "10.0.0.2")}, []string{"10.0.0.1", "10.0.0.2"}},
		{fixture.Delta{Kind: fixture.Subtractive, Addrs: addrs("10.0.0.1")}, []string{"10.0.0.2"}},
		{fixture.Delta{Kind: fixture.Additive, Addrs: addrs("10.0.0.7")}, []string{"10.0.0.2", "10.0.0.7"}},
		{fixture.Delta{Kind: fixture.Absolute}, nil},
	}
	for i, st := range steps {
		if err := s.WriteDelta(st.delta, addrs(st.sources...)); err != nil {
			t.Fatalf("WriteDelta(%d) error: %v", i, err)
		}
		if s.State() != fixture.SerializerRunning {
			t.Fatalf("state after delta %d = %s, want Running", i, s.State())
		}
	}

	if err := s.Terminate(); err != nil {
		t.Fatalf("Terminate() error: %v", err)
	}
	if s.State() != fixture.SerializerTerminated {
		t.Fatalf("state after Terminate = %s, want Terminated", s.State())
	}

	wantPrimary := "-E10.0.0.2,10.0.0.1,10.0.0.2\n?E\n" +
		"-E-10.0.0.1\n?E\n" +
		"-E+10.0.0.7\n?E\n" +
		"-E-\n?E\n" +
		".x\n"
	if got := primary.String(); got != wantPrimary {
		t.Errorf("primary stream:\n%s\nwant:\n%s", got, wantPrimary)
	}

	wantOracle := "received command for x -E10.0.0.2,10.0.0.1,10.0.0.2\n" +
		"received command for x ?E\n" +
		"note: x source setting: -E10.0.0.1,10.0.0.2\n" +
		"received command for x -E-10.0.0.1\n" +
		"received command for x ?E\n" +
		"note: x source setting: -E10.0.0.2\n" +
		"received command for x -E+10.0.0.7\n" +
		"received command for x ?E\n" +
		"note: x source setting: -E10.0.0.2,10.0.0.7\n" +
		"received command for x -E-\n" +
		"received command for x ?E\n" +
		"note: x source setting: -E-\n" +
		"received command for x .x\n"
	if got := oracle.String(); got != wantOracle {
		t.Errorf("oracle stream:\n%s\nwant:\n%s", got, wantOracle)
	}
}

// TestSerializerNothingAfterTermination verifies the terminal state rejects
// further output and writes nothing.
func TestSerializerNothingAfterTermination(t *testing.T) {
	t.Parallel()

	var primary, oracle bytes.Buffer
	s := fixture.NewSerializer(&primary, &oracle, "eth1")

	if err := s.Terminate(); err != nil {
		t.Fatalf("Terminate() error: %v", err)
	}
	wantP, wantO := primary.String(), oracle.String()

	if err := s.WriteDelta(fixture.Delta{Kind: fixture.Absolute}, nil); !errors.Is(err, fixture.ErrTerminated) {
		t.Errorf("WriteDelta after Terminate: error = %v, want ErrTerminated", err)
	}
	if err := s.Terminate(); !errors.Is(err, fixture.ErrTerminated) {
		t.Errorf("second Terminate: error = %v, want ErrTerminated", err)
	}

	if primary.String() != wantP || oracle.String() != wantO {
		t.Error("output written after termination")
	}
	if want := "received command for eth1 .x\n"; wantO != want {
		t.Errorf("oracle = %q, want %q", wantO, want)
	}
}

type failWriter struct{}

var errWrite = errors.New("write failed")

func (failWriter) Write([]byte) (int, error) { return 0, errWrite }

func TestSerializerWriteError(t *testing.T) {
	t.Parallel()

	var oracle bytes.Buffer
	s := fixture.NewSerializer(failWriter{}, &oracle, "")

	err := s.WriteDelta(fixture.Delta{Kind: fixture.Absolute}, nil)
	if !errors.Is(err, errWrite) {
		t.Fatalf("WriteDelta error = %v, want %v", err, errWrite)
	}
	if s.State() != fixture.SerializerStart {
		t.Errorf("state after failed write = %s, want Start", s.State())
	}
}

// TestSerializerTerminateError verifies a failed termination leaves the
// serializer in its previous state.
func TestSerializerTerminateError(t *testing.T) {
	t.Parallel()

	var oracle bytes.Buffer
	s := fixture.NewSerializer(failWriter{}, &oracle, "")

	if err := s.Terminate(); !errors.Is(err, errWrite) {
		t.Fatalf("Terminate error = %v, want %v", err, errWrite)
	}
	if s.State() != fixture.SerializerStart {
		t.Errorf("state after failed Terminate = %s, want Start", s.State())
	}
}

func TestFormatParseList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want string
	}{
		{"empty", nil, "-"},
		{"v4", []string{"10.0.0.1", "10.2.3.4"}, "10.0.0.1,10.2.3.4"},
		{"v6 compressed", []string{"fd05:aaaa::1", "fd05:aaaa:0:1::"}, "fd05:aaaa::1,fd05:aaaa:0:1::"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := fixture.FormatList(addrs(tt.in...))
			if got != tt.want {
				t.Fatalf("FormatList() = %q, want %q", got, tt.want)
			}

			back, err := fixture.ParseList(got)
			if err != nil {
				t.Fatalf("ParseList(%q) error: %v", got, err)
			}
			if fixture.FormatList(back) != got {
				t.Errorf("ParseList(%q) round trip = %q", got, fixture.FormatList(back))
			}
		})
	}

	if _, err := fixture.ParseList("10.0.0.1,bogus"); !errors.Is(err, fixture.ErrMalformedAddress) {
		t.Errorf("ParseList(bogus) error = %v, want ErrMalformedAddress", err)
	}
}
