package app

import (
	"os"
	"syscall"
)

// StopReason records why the monitor loop ended.
type StopReason int32

const (
	StopUnknown StopReason = iota
	StopSIGINT
	StopSIGTERM
	StopContext
	StopFatalError
	StopAppStop
)

func (r StopReason) String() string {
	switch r {
	case StopSIGINT:
		return "sigint"
	case StopSIGTERM:
		return "sigterm"
	case StopContext:
		return "context"
	case StopFatalError:
		return "fatal_error"
	case StopAppStop:
		return "app_stop"
	default:
		return "unknown"
	}
}

func reasonForSignal(sig os.Signal) StopReason {
	switch sig {
	case os.Interrupt:
		return StopSIGINT
	case syscall.SIGTERM:
		return StopSIGTERM
	default:
		return StopUnknown
	}
}

// Process exit statuses.
const (
	ExitOK     = 0
	ExitFatal  = 1
	ExitForced = 130
)

// ExitCode maps the error returned by Run to a process exit status.
func ExitCode(err error) int {
	if err != nil {
		return ExitFatal
	}
	return ExitOK
}
