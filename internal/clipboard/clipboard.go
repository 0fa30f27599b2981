// Package clipboard copies text to the system clipboard via shell commands.
package clipboard

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// ErrClipboardUnavailable is returned when no clipboard command is installed.
var ErrClipboardUnavailable = errors.New("clipboard unavailable")

// candidate is a clipboard command and the condition under which it applies.
type candidate struct {
	name string
	args []string
	when func() bool
}

func always() bool { return true }

func wayland() bool { return os.Getenv("WAYLAND_DISPLAY") != "" }

// candidates lists the commands to try for each OS, in order.
var candidates = map[string][]candidate{
	"darwin": {
		{name: "pbcopy", when: always},
	},
	"linux": {
		{name: "wl-copy", when: wayland},
		{name: "xclip", args: []string{"-selection", "clipboard"}, when: always},
		{name: "xsel", args: []string{"--clipboard", "--input"}, when: always},
	},
	"windows": {
		{name: "clip", when: always},
	},
}

// lookPath is replaced in tests.
var lookPath = exec.LookPath

// command returns the first usable clipboard command for goos.
func command(goos string) (string, []string, error) {
	for _, c := range candidates[goos] {
		if !c.when() {
			continue
		}
		if path, err := lookPath(c.name); err == nil {
			return path, c.args, nil
		}
	}
	return "", nil, ErrClipboardUnavailable
}

// IsAvailable checks if clipboard functionality is available on this system.
func IsAvailable() bool {
	_, _, err := command(runtime.GOOS)
	return err == nil
}

// Copy copies the given text to the system clipboard.
// Returns ErrClipboardUnavailable if clipboard access is not available.
func Copy(text string) error {
	path, args, err := command(runtime.GOOS)
	if err != nil {
		return err
	}
	cmd := exec.Command(path, args...)
	cmd.Stdin = strings.NewReader(text)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", path, err, strings.TrimSpace(string(out)))
	}
	return nil
}
