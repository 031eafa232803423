/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package detect

import (
	"encoding/base64"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

const (
	powerShellPath = `C:\Windows\System32\WindowsPowerShell\v1.0\powershell.exe`
	qwinstaPath    = `C:\Windows\System32\qwinsta.exe`
	quserPath      = `C:\Windows\System32\quser.exe`
	tasklistPath   = `C:\Windows\System32\tasklist.exe`

	rdpListener      = "rdp-tcp"
	rdpSessionPrefix = "rdp-tcp#"
	stateListen      = "listen"
	stateActive      = "active"
)

// powerShell wraps script as an -EncodedCommand so it survives the cmd.exe
// line the guest executor builds around it.
func powerShell(script string) GuestCommand {
	args := []string{"-NoProfile", "-NonInteractive", "-ExecutionPolicy", "Bypass"}

	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().String(script)
	if err != nil {
		return GuestCommand{Program: powerShellPath, Args: append(args, "-Command", script)}
	}

	return GuestCommand{
		Program: powerShellPath,
		Args:    append(args, "-EncodedCommand", base64.StdEncoding.EncodeToString([]byte(encoded))),
	}
}

// sessionRow is one line of qwinsta or quser output. Leading names are the
// columns before the session ID; either may be blank in the source table.
type sessionRow struct {
	names []string
	id    int
	state string
}

// parseSessionTable tokenizes qwinsta/quser output. Header lines and lines
// without a numeric ID followed by a state are dropped.
func parseSessionTable(out string) []sessionRow {
	var rows []sessionRow

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimLeft(strings.TrimSpace(line), ">")

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		switch strings.ToUpper(fields[0]) {
		case "SESSIONNAME", "USERNAME":
			continue
		}

		for i := 1; i < len(fields)-1; i++ {
			id, err := strconv.Atoi(fields[i])
			if err != nil {
				continue
			}

			rows = append(rows, sessionRow{
				names: fields[:i],
				id:    id,
				state: strings.ToLower(fields[i+1]),
			})

			break
		}
	}

	return rows
}

// qwinstaStatus reports whether the rdp-tcp listener is up and whether an
// rdp-tcp#N session is active. ok is false when no session row was parsed.
func qwinstaStatus(out string) (listening, active, ok bool) {
	rows := parseSessionTable(out)

	for _, r := range rows {
		name := strings.ToLower(r.names[0])

		switch {
		case name == rdpListener && r.state == stateListen:
			listening = true
		case strings.HasPrefix(name, rdpSessionPrefix) && r.state == stateActive:
			active = true
		}
	}

	return listening, active, len(rows) > 0
}

// quserHasRemoteSession reports an active session that is not on the console.
func quserHasRemoteSession(out string) bool {
	for _, r := range parseSessionTable(out) {
		if r.state != stateActive || len(r.names) < 2 {
			continue
		}

		if strings.HasPrefix(strings.ToLower(r.names[1]), rdpSessionPrefix) {
			return true
		}
	}

	return false
}

// tasklistServiceState reads `tasklist /svc /fi "SERVICES eq TermService"`.
func tasklistServiceState(out string) (running, known bool) {
	lower := strings.ToLower(out)

	for _, line := range strings.Split(lower, "\n") {
		for _, f := range strings.FieldsFunc(line, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' || r == '\r' }) {
			if f == "termservice" {
				return true, true
			}
		}
	}

	if strings.Contains(lower, "no tasks") {
		return false, true
	}

	return false, false
}

// keyValue pulls the value of a KEY=value line.
func keyValue(out, key string) (string, bool) {
	prefix := key + "="

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, prefix) {
			return strings.TrimPrefix(line, prefix), true
		}
	}

	return "", false
}
