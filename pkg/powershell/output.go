package powershell

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	successMarker = "SUCCESS:"
	partialMarker = "PARTIAL:"
	errorMarker   = "ERROR:"
)

// ScriptError is an error reported by a script through the ERROR: marker.
type ScriptError struct {
	Message string
}

func (e *ScriptError) Error() string {
	return e.Message
}

// ParseOutcome interprets the SUCCESS:/PARTIAL:/ERROR: convention used by
// remediation scripts. Any ERROR: marker turns the whole output into an error.
func ParseOutcome(output string) (message string, partial bool, err error) {
	if strings.Contains(output, errorMarker) {
		msg := strings.ReplaceAll(output, errorMarker+" ", "")
		msg = strings.ReplaceAll(msg, errorMarker, "")
		err = &ScriptError{Message: strings.TrimSpace(msg)}
		return
	}
	partial = strings.Contains(output, partialMarker)
	message = output
	for _, marker := range []string{successMarker, partialMarker} {
		message = strings.ReplaceAll(message, marker+" ", "")
		message = strings.ReplaceAll(message, marker, "")
	}
	message = strings.TrimSpace(message)
	return
}

func clean(output string) string {
	return strings.TrimSpace(strings.TrimPrefix(output, "\ufeff"))
}

func isEmpty(trimmed string) bool {
	return trimmed == "" || trimmed == "null"
}

// DecodeJSON decodes ConvertTo-Json output into v. Empty and null output
// leave v untouched.
func DecodeJSON(output string, v any) (err error) {
	trimmed := clean(output)
	if isEmpty(trimmed) {
		return
	}
	if err = json.Unmarshal([]byte(trimmed), v); err != nil {
		err = fmt.Errorf("could not parse powershell json output: %w", err)
		return
	}
	return
}

// DecodeList decodes a JSON list. ConvertTo-Json unwraps single element
// arrays, so a lone object is accepted as a one element list.
func DecodeList[T any](output string) (list []T, err error) {
	list = []T{}
	trimmed := clean(output)
	if isEmpty(trimmed) {
		return
	}
	if strings.HasPrefix(trimmed, "[") {
		if err = json.Unmarshal([]byte(trimmed), &list); err != nil {
			err = fmt.Errorf("could not parse powershell json list: %w", err)
			return
		}
		if list == nil {
			list = []T{}
		}
		return
	}
	var single T
	if err = json.Unmarshal([]byte(trimmed), &single); err != nil {
		err = fmt.Errorf("could not parse powershell json object: %w", err)
		return
	}
	list = append(list, single)
	return
}

// ParseCount reads the integer printed on the last non-empty line. Anything
// else counts as zero.
func ParseCount(output string) int64 {
	lines := strings.Split(clean(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		n, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}
