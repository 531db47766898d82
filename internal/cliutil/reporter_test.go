package cliutil

import "testing"

func TestReporterCancel(t *testing.T) {
	r := NewReporter(true)
	if r.Cancel() {
		t.Fatal("new reporter should not start cancelled")
	}
	r.RequestCancel()
	if !r.Cancel() {
		t.Fatal("expected Cancel() to report true after RequestCancel")
	}
}

func TestReporterProgressQuiet(t *testing.T) {
	r := NewReporter(true)
	// Quiet mode must not panic and must not print; nothing to assert on
	// stderr, just exercise the full call path.
	r.Progress(50, 100)
	r.Finish()
}
