// bitonic_bench sorts generated arrays with the bitonic network on a compute backend, validates each result
// against a sequential sort, and prints a report of the timings.
//
// Usage:
//
//	bitonic_bench -sizes=1000,64k,1M -runs=3 -pattern=random -backend=lanes:workers=8
//
// It exits with status 1 if any run fails or disagrees with the sequential sort.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/bitonic/backends"
	_ "github.com/gomlx/bitonic/backends/default"
	"github.com/gomlx/bitonic/backends/lanes"
	"github.com/gomlx/bitonic/pkg/bitonic"
	"github.com/gomlx/bitonic/pkg/inputs"
	"github.com/gomlx/bitonic/pkg/oracle"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagN     = flag.Int("n", 10000, "Number of elements to sort. Ignored if -sizes is given.")
	flagSizes = flag.String("sizes", "", "Comma-separated list of sizes to sort, e.g.: \"1000,64k,1M\" "+
		"(SI suffixes are accepted). If empty, -n is used.")
	flagRuns     = flag.Int("runs", 1, "Number of runs per size, each with a different seed.")
	flagPattern  = flag.String("pattern", "random", "Input pattern: random, sorted, reversed, equal or organ.")
	flagSeed     = flag.Uint64("seed", 1, "Seed of the first run: run i uses seed+i.")
	flagMax      = flag.Int("max", inputs.DefaultMaxValue, "Generated values are in [1, max].")
	flagBaseline = flag.String("baseline", "standard", "Sequential sort used as ground truth: standard or bubble. "+
		"The bubble sort is O(n^2).")
	flagBackend = flag.String("backend", "", fmt.Sprintf("Backend configuration, formatted as \"<name>:<config>\". "+
		"If empty, $%s is used, or else the first registered backend.", backends.ConfigEnvVar))
	flagPlain    = flag.Bool("plain", false, "Disable colors and styles in the output.")
	flagProgress = flag.Bool("progress", true, "Display a progress bar while running.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if *flagPlain {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	if err := run(); err != nil {
		klog.Errorf("%+v", err)
		os.Exit(1)
	}
}

// parseSizes parses a comma-separated list of sizes, accepting SI suffixes ("64k", "1M").
func parseSizes(list string, defaultSize int) ([]int, error) {
	if strings.TrimSpace(list) == "" {
		return []int{defaultSize}, nil
	}
	var sizes []int
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		size, err := humanize.ParseBytes(part)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid size %q in -sizes", part)
		}
		sizes = append(sizes, int(size))
	}
	if len(sizes) == 0 {
		return nil, errors.Errorf("no sizes given in -sizes=%q", list)
	}
	return sizes, nil
}

// checkLimits validates -runs and -max, and returns the maximum generated value.
func checkLimits(runs, maxValue int) (int32, error) {
	if runs < 1 {
		return 0, errors.Errorf("-runs=%d, it must be >= 1", runs)
	}
	if maxValue < 1 || maxValue > math.MaxInt32 {
		return 0, errors.Errorf("-max=%d, it must be in [1, %d]", maxValue, math.MaxInt32)
	}
	return int32(maxValue), nil
}

// runResult is one row of the report.
type runResult struct {
	size, run int
	report    *bitonic.Report
	err       error
}

func run() error {
	sizes, err := parseSizes(*flagSizes, *flagN)
	if err != nil {
		return err
	}
	maxValue, err := checkLimits(*flagRuns, *flagMax)
	if err != nil {
		return err
	}
	pattern, err := inputs.ParsePattern(*flagPattern)
	if err != nil {
		return err
	}
	baseline, err := oracle.ParseAlgorithm(*flagBaseline)
	if err != nil {
		return err
	}

	var backend backends.Backend
	if *flagBackend != "" {
		backend, err = backends.NewWithConfig(*flagBackend)
	} else {
		backend, err = backends.New()
	}
	if err != nil {
		return err
	}
	defer backend.Finalize()
	sorter, err := bitonic.NewSorter(backend, bitonic.WithBaseline(baseline))
	if err != nil {
		return err
	}
	defer sorter.Finalize()

	numRuns := len(sizes) * *flagRuns
	bar := newProgressBar(numRuns, *flagProgress)
	results := make([]runResult, 0, numRuns)
	start := time.Now()
	for _, size := range sizes {
		for runIdx := range *flagRuns {
			input := inputs.Generate(pattern, size, *flagSeed+uint64(runIdx), maxValue)
			report, err := sorter.SortAndValidate(input)
			results = append(results, runResult{size: size, run: runIdx, report: report, err: err})
			_ = bar.Add(1)
		}
	}
	_ = bar.Finish()
	elapsed := time.Since(start)

	numFailed := printReport(backend, pattern, baseline, results, elapsed)
	if numFailed > 0 {
		return errors.Errorf("%d of %d runs failed or disagree with the sequential sort", numFailed, numRuns)
	}
	return nil
}

// printReport prints the table of runs, and returns the number of failed or invalid runs.
func printReport(backend backends.Backend, pattern inputs.Pattern, baseline oracle.Algorithm, results []runResult, elapsed time.Duration) (numFailed int) {
	fmt.Println(titleStyle.Render(fmt.Sprintf("Bitonic sort: %s", backend.Description())))
	fmt.Printf("    pattern=%s, baseline=%s, total time %s\n\n", pattern, baseline, elapsed.Round(time.Millisecond))

	table := newRunsTable()
	for _, result := range results {
		if !table.RunRow(result) {
			numFailed++
		}
	}
	fmt.Println(table.Table.Render())

	if lanesBackend, ok := backend.(*lanes.Backend); ok {
		stats := lanesBackend.Stats()
		statsTable := newPlainTable(lipgloss.Right, lipgloss.Left)
		statsTable.Row("waves", humanize.Comma(stats.Waves))
		statsTable.Row("lane items", humanize.Comma(stats.Items))
		statsTable.Row("uploaded", humanize.Bytes(uint64(stats.BytesUploaded)))
		statsTable.Row("downloaded", humanize.Bytes(uint64(stats.BytesDownloaded)))
		fmt.Println(statsTable.Render())
	}
	return numFailed
}
