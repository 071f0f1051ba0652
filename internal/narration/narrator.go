// Package narration speaks slide narration through an external text-to-speech
// command such as espeak.
package narration

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"notebook-backend/internal/player"
	"notebook-backend/pkg/logger"
)

var ErrNoCommand = errors.New("no narration command configured")

// CommandNarrator runs one TTS process per narration. Cancel kills the
// process; Pause and Resume suspend it where the platform allows.
type CommandNarrator struct {
	command string

	mu      sync.Mutex
	current *exec.Cmd
}

func NewCommandNarrator(command string) *CommandNarrator {
	return &CommandNarrator{command: command}
}

var _ player.Narrator = (*CommandNarrator)(nil)

// Available reports whether the command can be found on PATH.
func (n *CommandNarrator) Available() bool {
	if n.command == "" {
		return false
	}
	_, err := exec.LookPath(n.command)
	return err == nil
}

func (n *CommandNarrator) Start(text string, rate, pitch float64, cb player.Callbacks) error {
	if n.command == "" {
		return ErrNoCommand
	}
	path, err := exec.LookPath(n.command)
	if err != nil {
		return fmt.Errorf("narration command %q: %w", n.command, err)
	}

	cmd := exec.Command(path, commandArgs(n.command, text, rate, pitch)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start narration: %w", err)
	}

	n.mu.Lock()
	if n.current != nil {
		kill(n.current)
	}
	n.current = cmd
	n.mu.Unlock()

	go n.wait(cmd, cb)
	return nil
}

func (n *CommandNarrator) wait(cmd *exec.Cmd, cb player.Callbacks) {
	err := cmd.Wait()

	n.mu.Lock()
	if n.current != cmd {
		// cancelled or replaced; nobody is listening any more
		n.mu.Unlock()
		return
	}
	n.current = nil
	n.mu.Unlock()

	if err != nil {
		logger.WithFields(logrus.Fields{"command": n.command, "error": err}).Debug("narration exited with error")
		if cb.OnError != nil {
			cb.OnError(err)
		}
		return
	}
	if cb.OnEnd != nil {
		cb.OnEnd()
	}
}

func (n *CommandNarrator) Cancel() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current != nil {
		kill(n.current)
		n.current = nil
	}
}

func (n *CommandNarrator) Pause() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current != nil {
		suspend(n.current.Process)
	}
}

func (n *CommandNarrator) Resume() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current != nil {
		resume(n.current.Process)
	}
}

func kill(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	resume(cmd.Process)
	if err := cmd.Process.Kill(); err != nil {
		logger.Debugf("kill narration process: %v", err)
	}
}

// commandArgs maps rate (1.0 = normal) and pitch (1.0 = normal) onto the
// flags of the known engines. Unknown commands just get the text.
func commandArgs(command, text string, rate, pitch float64) []string {
	switch filepath.Base(command) {
	case "espeak", "espeak-ng":
		wpm := int(175 * rate)
		return []string{
			"-s", strconv.Itoa(wpm),
			"-p", strconv.Itoa(int(50 * pitch)),
			"--", text,
		}
	case "say":
		return []string{"-r", strconv.Itoa(int(175 * rate)), "--", text}
	default:
		return []string{text}
	}
}
