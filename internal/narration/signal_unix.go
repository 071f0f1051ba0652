//go:build unix

package narration

import (
	"os"
	"syscall"

	"notebook-backend/pkg/logger"
)

func suspend(p *os.Process) {
	if p == nil {
		return
	}
	if err := p.Signal(syscall.SIGSTOP); err != nil {
		logger.Debugf("suspend narration: %v", err)
	}
}

func resume(p *os.Process) {
	if p == nil {
		return
	}
	if err := p.Signal(syscall.SIGCONT); err != nil {
		logger.Debugf("resume narration: %v", err)
	}
}
