package catalog

import (
	"bufio"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

// fieldCount is the number of semicolon separated columns in satslist.csv:
// Satellite;Number;Uplink;Downlink;Beacon;Mode;Callsign;Status.
const fieldCount = 8

// Parse reads the semicolon separated JE9PEL list, keeping only satellites
// whose status is active or operational and dropping duplicate catalog
// numbers (the list repeats a satellite once per payload; the first row
// wins). Malformed rows are skipped with a warning.
func Parse(r io.Reader, logger *slog.Logger) []Info {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		infos []Info
		seen  = make(map[int]bool)
	)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Split(line, ";")
		if len(fields) != fieldCount {
			logger.Warn("skipping malformed catalog row",
				"line", lineNo,
				"fields", len(fields))
			continue
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		status := strings.ToLower(fields[7])
		if status != "active" && status != "operational" {
			continue
		}

		number, err := strconv.Atoi(fields[1])
		if err != nil {
			logger.Warn("skipping catalog row without catalog number",
				"line", lineNo,
				"satellite", fields[0])
			continue
		}
		if seen[number] {
			continue
		}
		seen[number] = true

		info := Info{
			Name:          fields[0],
			CatalogNumber: number,
			Callsign:      fields[6],
			Status:        fields[7],
		}
		info.UplinkRange, info.UplinksMHz = parseFrequencies(fields[2])
		info.DownlinkRange, info.DownlinksMHz = parseFrequencies(fields[3])
		_, info.BeaconsMHz = parseFrequencies(fields[4])
		info.Modes = parseModes(fields[5])

		infos = append(infos, info)
	}

	return infos
}

// parseFrequencies decodes one frequency column. "a-b" is a transponder
// passband, "a/b/c" a list of discrete carriers. Tokens that are not numeric
// (footnotes, band names) are dropped.
func parseFrequencies(s string) (*Range, []float64) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	if strings.Contains(s, "-") {
		parts := strings.SplitN(s, "-", 2)
		low, errLow := parseMHz(parts[0])
		high, errHigh := parseMHz(parts[1])
		if errLow != nil || errHigh != nil {
			return nil, nil
		}
		if high < low {
			low, high = high, low
		}
		return &Range{LowMHz: low, HighMHz: high}, nil
	}

	var freqs []float64
	for _, tok := range strings.Split(s, "/") {
		if f, err := parseMHz(tok); err == nil {
			freqs = append(freqs, f)
		}
	}
	return nil, freqs
}

func parseMHz(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// parseModes splits the mode column on spaces. Digital modes are written
// "1k2 AFSK" style with a rate prefix, and packet rates as "1200bps AFSK";
// the bps rejoin keeps rate and modulation together as one mode token.
func parseModes(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, "bps ", "bps:")
	return strings.Fields(s)
}
