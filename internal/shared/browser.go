package shared

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/skratchdot/open-golang/open"
)

var (
	getRuntime = func() string { return runtime.GOOS }
	openURL    = open.Run
)

// OpenBrowser opens the default system browser to the specified URL.
//
// Tries [open.Run] first and falls back to the platform command on macOS, Linux, and Windows.
func OpenBrowser(url string) error {
	if err := openURL(url); err == nil {
		return nil
	}

	var cmd *exec.Cmd
	rt := getRuntime()
	switch rt {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", rt)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	return nil
}
