package pdfcache

import (
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Progress receives the bytes of a download as they are written.
type Progress interface {
	io.Writer
	Finish() error
}

// ProgressFunc starts progress reporting for one download. total is zero when
// the server did not advertise a length.
type ProgressFunc func(label string, total int64) Progress

// NoProgress discards progress.
func NoProgress(string, int64) Progress {
	return discard{}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
func (discard) Finish() error               { return nil }

// BarProgress renders a byte progress bar per download on w.
func BarProgress(w io.Writer) ProgressFunc {
	return func(label string, total int64) Progress {
		size := total
		if size <= 0 {
			size = -1 // spinner: size unknown
		}
		return progressbar.NewOptions64(size,
			progressbar.OptionSetDescription(label),
			progressbar.OptionSetWriter(w),
			progressbar.OptionShowBytes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionOnCompletion(func() { _, _ = io.WriteString(w, "\n") }),
		)
	}
}
