package probe

import (
	"regexp"
	"strings"
)

const (
	probeMarker    = "ST-Link Probe"
	serialField    = "ST-LINK SN"
	portField      = "Access Port Number"
	identityMarker = "Device ID"
)

var deviceIDPattern = regexp.MustCompile(`Device ID\s*:\s*(0x[0-9A-Fa-f]+)`)

// ParseList extracts probe records from the output of the list command.
// Each record starts at a line containing "ST-Link Probe"; records without a
// serial are dropped. A serial listed twice keeps its first position and the
// last record's fields. Lines that do not fit the expected shape are ignored.
func ParseList(out string) []Probe {
	var (
		probes []Probe
		index  = make(map[string]int)
		cur    Probe
	)

	flush := func() {
		if cur.Serial == "" {
			return
		}
		if i, ok := index[cur.Serial]; ok {
			probes[i] = cur
			return
		}
		index[cur.Serial] = len(probes)
		probes = append(probes, cur)
	}

	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.Contains(line, probeMarker):
			flush()
			cur = Probe{Status: StatusDisconnected}
		case strings.Contains(line, serialField):
			if v, ok := fieldValue(line); ok {
				cur.Serial = v
			}
		case strings.Contains(line, portField):
			if v, ok := fieldValue(line); ok {
				cur.AccessPort = v
			}
		}
	}
	flush()

	return probes
}

// ParseIdentity reads the output of the connectivity query. The target is
// considered reachable when the tool printed its device ID.
func ParseIdentity(out string) (Status, string) {
	if !strings.Contains(out, identityMarker) {
		return StatusDisconnected, ""
	}
	var id string
	if m := deviceIDPattern.FindStringSubmatch(out); m != nil {
		id = m[1]
	}
	return StatusConnected, id
}

// fieldValue returns the text between the first and second colon of a
// "label : value" line.
func fieldValue(line string) (string, bool) {
	_, rest, ok := strings.Cut(line, ":")
	if !ok {
		return "", false
	}
	value, _, _ := strings.Cut(rest, ":")
	value = strings.TrimSpace(value)
	return value, value != ""
}
