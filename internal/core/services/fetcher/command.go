package fetcher

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Tool is the HTTP client binary invoked inside the container.
type Tool string

const (
	ToolCurl Tool = "curl"
	ToolWget Tool = "wget"
)

// ParseTool accepts "curl", "wget" or "" (curl).
func ParseTool(s string) (Tool, error) {
	switch Tool(s) {
	case "", ToolCurl:
		return ToolCurl, nil
	case ToolWget:
		return ToolWget, nil
	default:
		return "", fmt.Errorf("unknown fetch tool %q (want curl or wget)", s)
	}
}

// Command builds the in-container GET for url. The command carries its own
// cap on total run time so it exits even when the client side has given up on
// it. https targets are reached over the container's loopback, where the
// certificate's hostname never matches, so verification is off.
func (t Tool) Command(url string, timeout time.Duration) []string {
	secs := strconv.Itoa(timeoutSeconds(timeout))
	tls := strings.HasPrefix(url, "https://")
	switch t {
	case ToolWget:
		// -T only limits idle reads; timeout(1) caps the whole transfer.
		cmd := []string{"timeout", secs, "wget", "-q", "-T", secs}
		if tls {
			cmd = append(cmd, "--no-check-certificate")
		}
		return append(cmd, "-O", "-", url)
	default:
		// --fail turns HTTP >= 400 into exit code 22 with no body on stdout.
		cmd := []string{"curl", "-sS", "--fail", "--max-time", secs}
		if tls {
			cmd = append(cmd, "--insecure")
		}
		return append(cmd, url)
	}
}

// TimedOut reports whether exitCode means the command ran out of time.
func (t Tool) TimedOut(exitCode int) bool {
	switch t {
	case ToolWget:
		// coreutils timeout exits 124; busybox timeout reports the TERM signal.
		return exitCode == 124 || exitCode == 143
	default:
		// CURLE_OPERATION_TIMEDOUT
		return exitCode == 28
	}
}

func timeoutSeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	return int(math.Ceil(d.Seconds()))
}
