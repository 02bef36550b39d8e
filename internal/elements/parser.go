package elements

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// LineError reports an element line that failed format validation.
// The line number is 1 or 2 within the three-line group.
type LineError struct {
	Line   int
	Reason string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("tle line %d: %s", e.Line, e.Reason)
}

// ParseSet parses one three-line element group into OrbitalElements.
// Both element lines are validated for length, line number prefix, and
// mod-10 checksum before any field is extracted; a failure returns a
// *LineError rather than propagating garbage downstream.
func ParseSet(name, line1, line2 string) (OrbitalElements, error) {
	line1 = strings.TrimRight(line1, "\r\n ")
	line2 = strings.TrimRight(line2, "\r\n ")

	if err := validateLine(1, '1', line1); err != nil {
		return OrbitalElements{}, err
	}
	if err := validateLine(2, '2', line2); err != nil {
		return OrbitalElements{}, err
	}

	catnum, err := strconv.Atoi(strings.TrimSpace(line1[2:7]))
	if err != nil {
		return OrbitalElements{}, &LineError{Line: 1, Reason: fmt.Sprintf("invalid catalog number %q", line1[2:7])}
	}
	cat2, err := strconv.Atoi(strings.TrimSpace(line2[2:7]))
	if err != nil || cat2 != catnum {
		return OrbitalElements{}, &LineError{Line: 2, Reason: "catalog number mismatch between lines"}
	}

	epoch, err := parseEpoch(strings.TrimSpace(line1[18:32]))
	if err != nil {
		return OrbitalElements{}, &LineError{Line: 1, Reason: fmt.Sprintf("invalid epoch: %v", err)}
	}

	bstar, err := parseImpliedExponent(line1[53:61])
	if err != nil {
		return OrbitalElements{}, &LineError{Line: 1, Reason: fmt.Sprintf("invalid drag term %q", line1[53:61])}
	}

	elset, err := strconv.Atoi(strings.TrimSpace(line1[64:68]))
	if err != nil {
		return OrbitalElements{}, &LineError{Line: 1, Reason: fmt.Sprintf("invalid element set number %q", line1[64:68])}
	}

	el := OrbitalElements{
		CatalogNumber: catnum,
		Name:          strings.TrimSpace(name),
		Epoch:         epoch,
		BStar:         bstar,
		ElementSet:    elset,
		Line1:         line1,
		Line2:         line2,
	}

	// Line 2 orbital fields, per the standard column layout.
	fields := []struct {
		dst   *float64
		text  string
		label string
	}{
		{&el.InclinationDeg, line2[8:16], "inclination"},
		{&el.RAANDeg, line2[17:25], "RAAN"},
		{&el.Eccentricity, "." + line2[26:33], "eccentricity"},
		{&el.ArgPerigeeDeg, line2[34:42], "argument of perigee"},
		{&el.MeanAnomalyDeg, line2[43:51], "mean anomaly"},
		{&el.MeanMotion, line2[52:63], "mean motion"},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f.text), 64)
		if err != nil {
			return OrbitalElements{}, &LineError{Line: 2, Reason: fmt.Sprintf("invalid %s %q", f.label, strings.TrimSpace(f.text))}
		}
		*f.dst = v
	}

	return el, nil
}

// Parse reads 3-line NORAD TLE format from r and returns parsed element sets.
// Malformed entries are skipped with a warning log; an error is returned only
// when the reader itself fails.
func Parse(r io.Reader, logger *slog.Logger) ([]OrbitalElements, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	var sets []OrbitalElements
	i := 0
	for i+2 < len(lines) {
		name := lines[i]
		line1 := lines[i+1]
		line2 := lines[i+2]

		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
			// Resync on the next candidate triplet.
			logger.Warn("skipping malformed TLE entry", "line_index", i, "name", name)
			i++
			continue
		}

		el, err := ParseSet(name, line1, line2)
		if err != nil {
			logger.Warn("skipping unparseable TLE entry", "name", name, "error", err)
			i += 3
			continue
		}

		sets = append(sets, el)
		i += 3
	}

	// A trailing 1- or 2-line remainder is a truncated entry, not silence.
	if i < len(lines) {
		logger.Warn("skipping malformed TLE entry", "line_index", i, "name", lines[i])
	}

	return sets, nil
}

func validateLine(num int, prefix byte, line string) error {
	if len(line) != 69 {
		return &LineError{Line: num, Reason: fmt.Sprintf("length %d, expected 69", len(line))}
	}
	if line[0] != prefix {
		return &LineError{Line: num, Reason: fmt.Sprintf("must start with %q, got %q", string(prefix), string(line[0]))}
	}
	if got, want := checksum(line[:68]), int(line[68]-'0'); got != want {
		return &LineError{Line: num, Reason: fmt.Sprintf("checksum %d, line claims %d", got, want)}
	}
	return nil
}

// checksum computes the TLE mod-10 checksum: digits count their value,
// minus signs count one, everything else counts zero.
func checksum(s string) int {
	sum := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

// parseImpliedExponent decodes the TLE "±DDDDD±E" packed notation
// (implied leading decimal point), e.g. " 30099-3" -> 0.30099e-3.
func parseImpliedExponent(s string) (float64, error) {
	if len(s) != 8 {
		return 0, fmt.Errorf("field %q has length %d, expected 8", s, len(s))
	}
	mantissa := strings.TrimSpace(s[:6])
	sign := 1.0
	if strings.HasPrefix(mantissa, "-") {
		sign = -1.0
		mantissa = mantissa[1:]
	} else {
		mantissa = strings.TrimPrefix(mantissa, "+")
	}
	m, err := strconv.ParseFloat("."+mantissa, 64)
	if err != nil {
		return 0, err
	}
	exp, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(s[6:]), "+", ""))
	if err != nil {
		return 0, err
	}
	return sign * m * pow10(exp), nil
}

func pow10(n int) float64 {
	v := 1.0
	for i := 0; i < n; i++ {
		v *= 10
	}
	for i := 0; i > n; i-- {
		v /= 10
	}
	return v
}

// parseEpoch converts a TLE epoch string in YYDDD.DDDDDDDD format to time.Time.
// Year 00-56 -> 2000s, 57-99 -> 1900s.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch string too short: %q", s)
	}

	year, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch year %q: %w", s[:2], err)
	}
	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	dayOfYear, err := strconv.ParseFloat(s[2:], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch day %q: %w", s[2:], err)
	}

	// dayOfYear is 1-based: day 1 = Jan 1.
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return t.Add(time.Duration((dayOfYear - 1) * float64(24*time.Hour))), nil
}
