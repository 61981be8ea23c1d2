package cli

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

var legacyEnv = []string{
	"ACCESS_TOKEN", "PHONE_NUMBER_ID", "VERIFY_TOKEN", "APP_SECRET",
	"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "EMO_CHECKIN_HOURS", "PORT",
	"PUBLIC_BASE_URL", "SESSION_STORE", "SESSION_DB_PATH",
}

// isolate points HOME at a temp dir, blanks credential variables and returns
// a config path inside it
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, name := range legacyEnv {
		t.Setenv(name, "")
	}
	return filepath.Join(home, "iattom.json")
}

// run executes the root command with args and stdin, returning stdout.
// Flag values persist on the shared command tree, so they are reset first.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := GetRootCmd()
	resetFlags()

	out := &bytes.Buffer{}
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	return out.String(), err
}

func resetFlags() {
	root := GetRootCmd()
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	root.PersistentFlags().VisitAll(reset)
	root.Flags().VisitAll(reset)
	for _, c := range root.Commands() {
		c.Flags().VisitAll(reset)
	}
}
