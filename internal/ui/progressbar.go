package ui

import (
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

// NewProgressBar returns an open-ended row counter for CLI transfers.
func NewProgressBar(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionEnableColorCodes(false),
		progressbar.OptionSetWriter(os.Stdout),
		progressbar.OptionShowBytes(false),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(15),
	)
}

// RowCounter adapts a bar to a row-count callback. The bar is advanced to
// the reported total, so callbacks may skip values.
func RowCounter(bar *progressbar.ProgressBar) func(rows int) {
	return func(rows int) {
		_ = bar.Set(rows)
	}
}
