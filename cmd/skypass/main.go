// Command skypass predicts amateur satellite passes from the command line.
//
// Example:
//
//	skypass --tle amateur.txt --lat "51.3883 N" --lon "0.7542 W" --hours 24
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	cli "github.com/jawher/mow.cli"

	"github.com/hamsat/skytrack/internal/doppler"
	"github.com/hamsat/skytrack/internal/elements"
	"github.com/hamsat/skytrack/internal/passes"
	"github.com/hamsat/skytrack/internal/transform"
)

func main() {
	app := cli.App("skypass", "Predict amateur satellite passes over a ground station")
	app.Spec = "--tle [OPTIONS]"

	var (
		tlePath   = app.StringOpt("tle", "", "path to a TLE file (3-line sets)")
		latStr    = app.StringOpt("lat", "51.38833333333 N", "observer latitude (signed degrees or \"51.3883 N\")")
		lonStr    = app.StringOpt("lon", "0.75416666666 W", "observer longitude (signed degrees or \"0.7542 W\")")
		elev      = app.Float64Opt("elev", 100, "observer elevation in meters")
		hours     = app.Float64Opt("hours", 24, "prediction window in hours")
		horizon   = app.Float64Opt("horizon", 0, "altitude threshold for rise/set in degrees")
		maxPasses = app.IntOpt("max-passes", 0, "maximum passes per satellite (0 = unlimited)")
		satList   = app.StringOpt("sat", "", "comma separated catalog numbers (default: all in file)")
		freqMHz   = app.Float64Opt("freq", 145.9, "downlink frequency in MHz for Doppler")
	)

	app.Action = func() {
		if err := run(*tlePath, *latStr, *lonStr, *elev, *hours, *horizon, *maxPasses, *satList, *freqMHz); err != nil {
			fmt.Fprintln(os.Stderr, "skypass:", err)
			cli.Exit(1)
		}
	}

	app.Run(os.Args)
}

func run(tlePath, latStr, lonStr string, elev, hours, horizon float64, maxPasses int, satList string, freqMHz float64) error {
	lat, err := transform.ParseAngle(latStr)
	if err != nil || lat < -90 || lat > 90 {
		return fmt.Errorf("invalid latitude %q", latStr)
	}
	lon, err := transform.ParseAngle(lonStr)
	if err != nil || lon < -180 || lon > 180 {
		return fmt.Errorf("invalid longitude %q", lonStr)
	}
	observer := transform.NewObserverPosition(lat, lon, elev)

	f, err := os.Open(tlePath)
	if err != nil {
		return err
	}
	defer f.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	sats, err := elements.Parse(f, logger)
	if err != nil {
		return err
	}
	if len(sats) == 0 {
		return fmt.Errorf("no valid element sets in %s", tlePath)
	}

	if satList != "" {
		sats, err = filterByNumbers(sats, satList)
		if err != nil {
			return err
		}
	}

	req := passes.Request{
		Observer:     observer,
		Satellites:   sats,
		Start:        time.Now().UTC(),
		HorizonHours: hours,
		HorizonDeg:   horizon,
		MaxPasses:    maxPasses,
	}
	results := passes.Predict(context.Background(), req)

	for _, r := range results {
		if r.Err != "" {
			fmt.Fprintf(os.Stderr, "skipping %s (%d): %s\n", r.Name, r.CatalogNumber, r.Err)
		}
	}

	carrierHz := freqMHz * 1e6
	listed := passes.SortedList(results)
	if len(listed) == 0 {
		fmt.Println("no passes in window")
		return nil
	}

	for _, p := range listed {
		printPass(p, carrierHz)
	}
	return nil
}

func filterByNumbers(sats []elements.OrbitalElements, satList string) ([]elements.OrbitalElements, error) {
	wanted := make(map[int]bool)
	for _, tok := range strings.Split(satList, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			return nil, fmt.Errorf("invalid --sat entry %q", tok)
		}
		wanted[n] = true
	}

	var out []elements.OrbitalElements
	for _, el := range sats {
		if wanted[el.CatalogNumber] {
			out = append(out, el)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("none of the requested satellites found in the TLE file")
	}
	return out, nil
}

func printPass(p passes.ListedPass, carrierHz float64) {
	fmt.Printf("%-24s", fmt.Sprintf("%s (%d)", p.Name, p.CatalogNumber))

	if p.Rise != nil {
		// Doppler at acquisition, when the shift is near its maximum.
		shift := doppler.Shift(p.Rise.Observation.RangeRateKmS, carrierHz)
		fmt.Printf("  rise %s az %5.1f doppler %+6.0f Hz",
			p.Rise.Time.UTC().Format("15:04:05"), p.Rise.Observation.AzimuthDeg, shift)
	} else {
		fmt.Printf("  rise %-17s", "(in progress)")
	}
	if p.Transit != nil {
		fmt.Printf("  max %s alt %4.1f az %5.1f",
			p.Transit.Time.UTC().Format("15:04:05"),
			p.Transit.Observation.AltitudeDeg,
			p.Transit.Observation.AzimuthDeg)
	}
	if p.Set != nil {
		fmt.Printf("  set %s az %5.1f", p.Set.Time.UTC().Format("15:04:05"), p.Set.Observation.AzimuthDeg)
	} else {
		fmt.Printf("  set (after window)")
	}
	if p.Degraded {
		fmt.Printf("  [stale elements]")
	}
	fmt.Println()
}
