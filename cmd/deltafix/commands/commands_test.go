package commands_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dantte-lp/deltafix/cmd/deltafix/commands"
	"github.com/dantte-lp/deltafix/internal/batch"
	"github.com/dantte-lp/deltafix/internal/fixture"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	var out, errOut bytes.Buffer
	root := commands.NewRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)

	err = root.ExecuteContext(t.Context())
	return out.String(), errOut.String(), err
}

func TestGenerateStdStreams(t *testing.T) {
	t.Parallel()

	stdout, stderr, err := execute(t, "generate", "123", "4", "10", "25")
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}

	g, err := fixture.New(fixture.Params{Seed: 123, IPVersion: 4, AddrMax: 10, NumOps: 25})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	var primary, oracle bytes.Buffer
	if _, err := g.Run(t.Context(), &primary, &oracle); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if stdout != primary.String() {
		t.Errorf("stdout differs from the generator primary stream:\n%s", stdout)
	}
	// The default warn log level keeps stderr free of log records.
	if stderr != oracle.String() {
		t.Errorf("stderr differs from the generator oracle stream:\n%s", stderr)
	}
}

func TestGenerateInvalidParams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"bad ipver", []string{"generate", "1", "5", "10", "25"}, fixture.ErrInvalidIPVersion},
		{"zero addrmax", []string{"generate", "1", "4", "0", "25"}, fixture.ErrInvalidAddrMax},
		{"zero numops", []string{"generate", "1", "4", "10", "0"}, fixture.ErrInvalidNumOps},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stdout, stderr, err := execute(t, tt.args...)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("generate error = %v, want %v", err, tt.wantErr)
			}
			if stdout != "" || stderr != "" {
				t.Errorf("output written for invalid parameters: stdout %q stderr %q", stdout, stderr)
			}
		})
	}

	if _, _, err := execute(t, "generate", "seed", "4", "10", "25"); err == nil {
		t.Error("generate accepted a non-integer seed")
	}
	if _, _, err := execute(t, "generate", "1", "4", "10"); err == nil {
		t.Error("generate accepted three arguments")
	}
}

// TestGenerateThenCheck writes both streams to files and verifies them with
// the check command.
func TestGenerateThenCheck(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	primary := filepath.Join(dir, "run.cmd")
	oracle := filepath.Join(dir, "run.oracle")
	metrics := filepath.Join(dir, "run.prom")

	stdout, _, err := execute(t, "generate", "9", "6", "12", "40",
		"-o", primary, "--oracle", oracle, "--metrics-file", metrics)
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}
	if stdout != "" {
		t.Errorf("stdout = %q, want empty when -o is set", stdout)
	}

	prom, err := os.ReadFile(metrics)
	if err != nil {
		t.Fatalf("read metrics file: %v", err)
	}
	if !strings.Contains(string(prom), "deltafix_generator_steps_total") {
		t.Errorf("metrics file missing steps counter:\n%s", prom)
	}

	stdout, _, err = execute(t, "check", "--addrmax", "12", "--ipver", "6", primary, oracle)
	if err != nil {
		t.Fatalf("check error: %v", err)
	}
	if !strings.HasPrefix(stdout, "ok: 40 steps") {
		t.Errorf("check output = %q, want ok: 40 steps", stdout)
	}

	// The v4 base network cannot contain v6 addresses.
	if _, _, err := execute(t, "check", "--ipver", "4", primary, oracle); err == nil {
		t.Error("check accepted v6 addresses against the v4 base")
	}
}

func TestGenerateConfigLabel(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := filepath.Join(dir, "deltafix.yml")
	if err := os.WriteFile(cfg, []byte("output:\n  label: \"eth2\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, stderr, err := execute(t, "--config", cfg, "generate", "1", "4", "5", "3")
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}
	if !strings.HasSuffix(stderr, "received command for eth2 .x\n") {
		t.Errorf("oracle does not use the configured label:\n%s", stderr)
	}
}

func TestBatch(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "fixtures")
	stdout, _, err := execute(t, "batch", "4", "10", "20", "--dir", dir, "--first-seed", "50", "-n", "4", "-j", "2")
	if err != nil {
		t.Fatalf("batch error: %v", err)
	}
	if want := "wrote 4 fixtures to " + dir + "\n"; stdout != want {
		t.Errorf("batch output = %q, want %q", stdout, want)
	}

	m, err := batch.ReadManifest(filepath.Join(dir, batch.ManifestName))
	if err != nil {
		t.Fatalf("ReadManifest() error: %v", err)
	}
	if len(m.Entries) != 4 || m.Entries[0].Seed != 50 {
		t.Errorf("manifest entries = %+v, want 4 starting at seed 50", m.Entries)
	}
}

func TestAddrlist(t *testing.T) {
	t.Parallel()

	stdout, _, err := execute(t, "addrlist", "4", "2")
	if err != nil {
		t.Fatalf("addrlist error: %v", err)
	}
	if want := "10.2.1.4,10.2.2.5\n"; stdout != want {
		t.Errorf("addrlist output = %q, want %q", stdout, want)
	}
}

func TestSpew(t *testing.T) {
	t.Parallel()

	stdout, _, err := execute(t, "spew", "--delay", "0s")
	if err != nil {
		t.Fatalf("spew error: %v", err)
	}
	if lines := strings.Count(stdout, "\n"); lines != 65 {
		t.Errorf("spew wrote %d lines, want 65", lines)
	}
}

func TestVersion(t *testing.T) {
	t.Parallel()

	stdout, _, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error: %v", err)
	}
	if !strings.HasPrefix(stdout, "deltafix ") {
		t.Errorf("version output = %q, want deltafix prefix", stdout)
	}
}
