package main

import (
	"bytes"
	"strings"
	"testing"
)

type helpTestCase struct {
	args    []string
	wantOut string
	wantErr bool
}

func TestHealerCLIHelpAndSubcommands(t *testing.T) {
	tests := []helpTestCase{
		{args: []string{"--help"}, wantOut: "Clone a repo, run its tests, and drive it to green"},
		{args: []string{"run", "--help"}, wantOut: "Run the repair pipeline against a repository"},
		{args: []string{"serve", "--help"}, wantOut: "Start the healer HTTP API server"},
		{args: []string{"status", "--help"}, wantOut: "Query the status of a submitted run"},
		{args: []string{"version", "--help"}, wantOut: "Print the healer version"},
		{args: []string{"bogus"}, wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(strings.Join(tc.args, " "), func(t *testing.T) {
			cmd := newRootCmd()
			var buf bytes.Buffer
			cmd.SetOut(&buf)
			cmd.SetErr(&buf)
			cmd.SetArgs(tc.args)

			err := cmd.Execute()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error for args %v", tc.args)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("execute %v: %v", tc.args, err)
			}
			if tc.wantOut != "" && !strings.Contains(buf.String(), tc.wantOut) {
				t.Errorf("args %v: expected output to contain %q, got:\n%s", tc.args, tc.wantOut, buf.String())
			}
		})
	}
}
