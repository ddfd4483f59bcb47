package app

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// systemClipboard writes through the platform clipboard utility. The binary
// is resolved per call so a utility installed after startup is picked up.
type systemClipboard struct{}

// NewSystemClipboard returns the platform clipboard.
func NewSystemClipboard() *systemClipboard {
	return &systemClipboard{}
}

// clipboardCommands returns candidate clipboard write commands for the
// current platform, in preference order.
func clipboardCommands() [][]string {
	switch runtime.GOOS {
	case "windows":
		return [][]string{{"clip.exe"}, {"clip"}}
	case "darwin":
		return [][]string{{"pbcopy"}}
	default:
		return [][]string{
			{"wl-copy"},
			{"xclip", "-selection", "clipboard"},
			{"xsel", "--clipboard", "--input"},
		}
	}
}

// WriteText places text on the system clipboard. Failure of every candidate
// utility means the capability is unavailable on this host.
func (systemClipboard) WriteText(ctx context.Context, text string) error {
	var lastErr error
	for _, candidate := range clipboardCommands() {
		if _, err := exec.LookPath(candidate[0]); err != nil {
			lastErr = err
			continue
		}

		cmd := exec.CommandContext(ctx, candidate[0], candidate[1:]...)
		cmd.Stdin = strings.NewReader(text)
		if err := cmd.Run(); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no clipboard utility found for %s", runtime.GOOS)
	}
	return fmt.Errorf("clipboard write failed: %w", lastErr)
}
