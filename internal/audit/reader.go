package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// HistoryEntry is one parsed trail line as served to clients. User and
// Details are pointers so absent values serialise as JSON null, matching
// what older deployments returned.
type HistoryEntry struct {
	Timestamp string  `json:"timestamp"`
	IP        string  `json:"ip"`
	Session   *string `json:"session"`
	User      *string `json:"user"`
	Status    string  `json:"status"`
	Details   *string `json:"details"`
}

// legacyFieldCount is the minimum fields in a plain-text trail line:
// timestamp - ip - user - status, with details optional.
const legacyFieldCount = 4

// ReadHistory parses the trail at path and returns its entries in file
// order, oldest first. When limit is positive only the most recent limit
// entries are returned.
//
// Two line formats are accepted: the JSON-lines format written by Trail,
// possibly with a logging prefix before the JSON object, and the older
// plain-text "timestamp - ip - user - status - details" format. Lines that
// parse as neither are skipped, so one corrupt line never hides the rest
// of the trail.
func ReadHistory(path string, limit int) ([]HistoryEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []HistoryEntry{}, nil
		}
		return nil, fmt.Errorf("opening audit trail: %w", err)
	}
	defer f.Close()

	entries := []HistoryEntry{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry, ok := parseLine(line)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading audit trail: %w", err)
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// parseLine handles both trail line formats.
func parseLine(line string) (HistoryEntry, bool) {
	if idx := strings.IndexByte(line, '{'); idx != -1 {
		if entry, ok := parseJSONLine(line[idx:]); ok {
			return entry, true
		}
	}
	return parseLegacyLine(line)
}

func parseJSONLine(jsonPart string) (HistoryEntry, bool) {
	var raw struct {
		Timestamp string `json:"timestamp"`
		IP        string `json:"ip"`
		Session   string `json:"session"`
		User      string `json:"user"`
		Status    string `json:"status"`
		Details   string `json:"details"`
	}
	if err := json.Unmarshal([]byte(jsonPart), &raw); err != nil {
		return HistoryEntry{}, false
	}
	if raw.Status == "" {
		return HistoryEntry{}, false
	}
	return HistoryEntry{
		Timestamp: raw.Timestamp,
		IP:        raw.IP,
		Session:   optional(raw.Session),
		User:      optional(raw.User),
		Status:    raw.Status,
		Details:   optional(raw.Details),
	}, true
}

func parseLegacyLine(line string) (HistoryEntry, bool) {
	if strings.HasPrefix(line, "{") || !strings.Contains(line, " - ") {
		return HistoryEntry{}, false
	}
	parts := strings.SplitN(line, " - ", legacyFieldCount+1)
	if len(parts) < legacyFieldCount {
		return HistoryEntry{}, false
	}

	entry := HistoryEntry{
		Timestamp: parts[0],
		IP:        parts[1],
		User:      optional(parts[2]),
		Status:    parts[3],
	}
	if len(parts) > legacyFieldCount {
		entry.Details = optional(parts[4])
	}
	return entry, true
}

// optional maps empty strings and the unknown-user marker to nil.
func optional(s string) *string {
	if s == "" || s == unknownUser {
		return nil
	}
	return &s
}
