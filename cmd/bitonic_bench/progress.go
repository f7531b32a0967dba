package main

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
)

// ProgressbarStyle to use. Defaults to the ASCII version.
var ProgressbarStyle = progressbar.ThemeASCII

// newProgressBar over the total number of runs, written to stderr so the report on stdout stays clean.
func newProgressBar(numRuns int, enabled bool) *progressbar.ProgressBar {
	if !enabled {
		return progressbar.DefaultSilent(int64(numRuns))
	}
	return progressbar.NewOptions(numRuns,
		progressbar.OptionSetDescription(fmt.Sprintf("sorting (%d runs)", numRuns)),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("runs"),
		progressbar.OptionSetTheme(ProgressbarStyle),
		progressbar.OptionClearOnFinish(),
	)
}
