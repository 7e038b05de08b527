// Package vpngate imports the public VPN Gate gateway feed into the node
// directory. The feed is a CSV document wrapped in comment markers; each row
// describes one volunteer OpenVPN gateway.
package vpngate

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Entry is one parsed feed row.
type Entry struct {
	HostName    string
	IP          string
	Score       int64
	PingMs      int
	SpeedBps    int64
	CountryCode string
	NumSessions int
}

// SpeedMbps converts the feed's bytes-per-second speed to megabits.
func (e Entry) SpeedMbps() uint {
	return uint(e.SpeedBps * 8 / 1_000_000)
}

// ParseFeed reads the VPN Gate CSV document. Lines starting with '*' are
// frame markers and the header row carries a leading '#'; both are stripped
// before CSV parsing. Rows that fail to parse are skipped, not fatal: the
// feed routinely carries partial rows.
func ParseFeed(r io.Reader) ([]Entry, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}

	var dataLines []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "*") || strings.HasPrefix(line, "#") {
			continue
		}
		dataLines = append(dataLines, line)
	}
	if len(dataLines) == 0 {
		return nil, fmt.Errorf("feed contains no data rows")
	}

	reader := csv.NewReader(strings.NewReader(strings.Join(dataLines, "\n")))
	reader.FieldsPerRecord = -1

	var entries []Entry
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		entry, ok := parseRecord(record)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("feed contains no parseable rows")
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	return entries, nil
}

// Feed column order:
// HostName,IP,Score,Ping,Speed,CountryLong,CountryShort,NumVpnSessions,...
func parseRecord(record []string) (Entry, bool) {
	if len(record) < 8 {
		return Entry{}, false
	}

	hostName := strings.TrimSpace(record[0])
	ip := strings.TrimSpace(record[1])
	country := strings.ToUpper(strings.TrimSpace(record[6]))
	if hostName == "" || ip == "" || len(country) != 2 {
		return Entry{}, false
	}

	score, err := strconv.ParseInt(record[2], 10, 64)
	if err != nil || score < 0 {
		return Entry{}, false
	}
	ping, _ := strconv.Atoi(record[3])
	speed, _ := strconv.ParseInt(record[4], 10, 64)
	sessions, _ := strconv.Atoi(record[7])

	return Entry{
		HostName:    hostName,
		IP:          ip,
		Score:       score,
		PingMs:      ping,
		SpeedBps:    speed,
		CountryCode: country,
		NumSessions: sessions,
	}, true
}

// SeedReputations maps feed scores to reputation seeds by percentile within
// the batch: the best-scored gateway seeds at 90, the worst at 20. Absolute
// feed scores are meaningless across fetches; the ordering is what carries
// signal.
func SeedReputations(entries []Entry) []float64 {
	const (
		floor   = 20.0
		ceiling = 90.0
	)

	seeds := make([]float64, len(entries))
	if len(entries) == 1 {
		seeds[0] = ceiling
		return seeds
	}
	// Entries arrive sorted by score descending.
	for i := range entries {
		percentile := 1 - float64(i)/float64(len(entries)-1)
		seeds[i] = floor + (ceiling-floor)*percentile
	}
	return seeds
}
