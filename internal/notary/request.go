package notary

import (
	"errors"
	"strings"
)

// ErrRequestHandleNotFound is returned when submission output names no request.
var ErrRequestHandleNotFound = errors.New("no notarization request id found in submission output")

// ExtractRequestHandles returns every request id in submission output, in
// order. A request line contains "requestuuid" in any case; the id is the
// text after its first '='. XML property list output is also accepted.
func ExtractRequestHandles(output []byte) []string {
	if isPlist(output) {
		if status, ok := parsePlistStatus(output); ok {
			if id := status["requestuuid"]; id != "" {
				return []string{id}
			}
		}
	}

	var handles []string
	for _, line := range outputLines(output) {
		if !strings.Contains(strings.ToLower(line), "requestuuid") {
			continue
		}
		parts := strings.Split(line, "=")
		if len(parts) < 2 {
			continue
		}
		if id := strings.TrimSpace(parts[1]); id != "" {
			handles = append(handles, id)
		}
	}
	return handles
}

// RequestHandle returns the first request id in submission output.
func RequestHandle(output []byte) (string, error) {
	handles := ExtractRequestHandles(output)
	if len(handles) == 0 {
		return "", ErrRequestHandleNotFound
	}
	return handles[0], nil
}
