// Package notary submits installer packages for notarization and polls the
// notarization service until it reaches a verdict.
package notary

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"howett.net/plist"
)

// Status is one parsed status response: lowercased field name to trimmed value.
type Status map[string]string

// Value returns the lowercased "status" field.
func (s Status) Value() (string, bool) {
	v, ok := s["status"]
	return strings.ToLower(v), ok
}

// altoolOutput is the XML property list altool prints with --output-format xml.
type altoolOutput struct {
	SuccessMessage string             `plist:"success-message"`
	Upload         notarizationUpload `plist:"notarization-upload"`
	Info           notarizationInfo   `plist:"notarization-info"`
}

type notarizationUpload struct {
	RequestUUID string `plist:"RequestUUID"`
}

type notarizationInfo struct {
	Hash          string `plist:"Hash"`
	LogFileURL    string `plist:"LogFileURL"`
	RequestUUID   string `plist:"RequestUUID"`
	Status        string `plist:"Status"`
	StatusCode    int    `plist:"Status Code"`
	StatusMessage string `plist:"Status Message"`
}

// ParseStatus parses the output of a status check. Plain text output is
// read line by line as "key: value" or "key = value", splitting at whichever
// delimiter comes first. XML property list output is decoded and its
// notarization-info entries are returned under the same lowercased names.
func ParseStatus(output []byte) Status {
	if isPlist(output) {
		if status, ok := parsePlistStatus(output); ok {
			return status
		}
	}

	status := make(Status)
	for _, line := range outputLines(output) {
		key, value, ok := splitField(line)
		if !ok {
			continue
		}
		status[key] = value
	}
	return status
}

// outputLines splits tool output into lines. The scan buffer may grow to the
// whole output, so a long line never cuts off the lines after it.
func outputLines(output []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), len(output)+1)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if scanner.Err() != nil {
		return strings.Split(strings.ReplaceAll(string(output), "\r\n", "\n"), "\n")
	}
	return lines
}

func splitField(line string) (key, value string, ok bool) {
	i := strings.IndexAny(line, ":=")
	if i < 0 {
		return "", "", false
	}
	key = strings.ToLower(strings.TrimSpace(line[:i]))
	if key == "" {
		return "", "", false
	}
	return key, strings.TrimSpace(line[i+1:]), true
}

func isPlist(output []byte) bool {
	trimmed := bytes.TrimSpace(output)
	return bytes.HasPrefix(trimmed, []byte("<?xml")) || bytes.HasPrefix(trimmed, []byte("<plist"))
}

func parsePlistStatus(output []byte) (Status, bool) {
	var out altoolOutput
	if _, err := plist.Unmarshal(output, &out); err != nil {
		return nil, false
	}

	status := make(Status)
	set := func(key, value string) {
		if value != "" {
			status[key] = strings.TrimSpace(value)
		}
	}
	set("success-message", out.SuccessMessage)
	set("requestuuid", out.Info.RequestUUID)
	if out.Info.RequestUUID == "" {
		set("requestuuid", out.Upload.RequestUUID)
	}
	set("status", out.Info.Status)
	set("status message", out.Info.StatusMessage)
	set("logfileurl", out.Info.LogFileURL)
	set("hash", out.Info.Hash)
	if out.Info.Status != "" {
		status["status code"] = strconv.Itoa(out.Info.StatusCode)
	}
	return status, true
}

// Classify maps a status to a terminal outcome. ok is false when the status
// is inconclusive: the field is missing or holds anything other than
// "success" or "invalid".
func Classify(s Status) (outcome Outcome, ok bool) {
	value, present := s.Value()
	if !present {
		return 0, false
	}
	switch value {
	case "success":
		return Success, true
	case "invalid":
		return Rejected, true
	default:
		return 0, false
	}
}
