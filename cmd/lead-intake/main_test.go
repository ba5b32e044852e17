package main

import (
	"errors"
	"os"
	"runtime"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeApp struct {
	done chan struct{}

	runError   bool
	usageError bool
	hupQuits   bool
}

func (a *fakeApp) Run() error {
	<-a.done
	if a.runError {
		return errors.New("Error requested")
	}
	return nil
}

func (a fakeApp) UsageError() bool {
	return a.usageError
}

func (a fakeApp) Hup() bool {
	return a.hupQuits
}

func (a *fakeApp) Quit() {
	close(a.done)
}

//nolint:tparallel // Signal handlers tests: subtests can't be parallel
func TestRun(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		runError   bool
		usageError bool
		hupQuits   bool
		sendSig    syscall.Signal

		wantReturnCode int
	}{
		"Run and exit successfully":            {},
		"Run and return error":                 {runError: true, wantReturnCode: 1},
		"Run and return usage error":           {usageError: true, runError: true, wantReturnCode: 2},
		"Usage error flag alone does not fail": {usageError: true, wantReturnCode: 0},

		// Signals handling
		"SIGINT exits":              {sendSig: syscall.SIGINT},
		"SIGTERM exits":             {sendSig: syscall.SIGTERM},
		"SIGHUP keeps running":      {sendSig: syscall.SIGHUP},
		"SIGHUP exits when it asks": {sendSig: syscall.SIGHUP, hupQuits: true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if runtime.GOOS == "windows" && tc.sendSig != 0 {
				t.Skipf("Skipping test %s on Windows: signals are not supported", name)
			}

			a := fakeApp{
				done:       make(chan struct{}),
				runError:   tc.runError,
				usageError: tc.usageError,
				hupQuits:   tc.hupQuits,
			}

			var rc int
			wait := make(chan struct{})
			go func() {
				rc = run(&a)
				close(wait)
			}()

			time.Sleep(100 * time.Millisecond)

			var exited bool
			if tc.sendSig != 0 {
				require.NoError(t, sendSignal(tc.sendSig), "Teardown: sending signal should return no error")
				select {
				case <-time.After(50 * time.Millisecond):
				case <-wait:
					exited = true
				}

				wantExit := tc.sendSig != syscall.SIGHUP || tc.hupQuits
				require.Equal(t, wantExit, exited, "Unexpected exit state after signal")
			}

			if !exited {
				a.Quit()
				<-wait
			}

			require.Equal(t, tc.wantReturnCode, rc, "Return expected code")
		})
	}
}

// sendSignal sends a signal to the current process.
func sendSignal(sig os.Signal) error {
	process, err := os.FindProcess(os.Getpid())
	if err != nil {
		return err
	}
	return process.Signal(sig)
}
