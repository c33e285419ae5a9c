package elog

import (
	"os"

	"github.com/vbauerster/mpb/v5"
	"github.com/vbauerster/mpb/v5/decor"
)

// NewProgress starts a progress bar on stderr. Units of "KiB" render byte
// counters, anything else plain counts. When stderr is not a terminal the
// returned Progress does nothing.
func (log *CLI) NewProgress(label string, units string, total int64) Progress {

	if log.DisableTTY || !isTTY(os.Stderr) || total <= 0 {
		return nopProgress{}
	}

	var counter decor.Decorator
	switch units {
	case "KiB":
		counter = decor.CountersKibiByte("% .1f / % .1f")
	default:
		counter = decor.CountersNoUnit("%d / %d")
	}

	p := mpb.New(mpb.WithOutput(os.Stderr), mpb.WithWidth(40))
	bar := p.AddBar(total,
		mpb.PrependDecorators(
			decor.Name(label, decor.WC{W: len(label) + 1, C: decor.DidentRight}),
			counter,
		),
		mpb.AppendDecorators(decor.Percentage()),
	)

	return &barProgress{p: p, bar: bar, total: total}
}

type barProgress struct {
	p        *mpb.Progress
	bar      *mpb.Bar
	total    int64
	finished bool
}

func (pb *barProgress) Increment(n int64) {
	pb.bar.IncrInt64(n)
}

func (pb *barProgress) Write(p []byte) (int, error) {
	pb.bar.IncrBy(len(p))
	return len(p), nil
}

func (pb *barProgress) Finish(success bool) {
	if pb.finished {
		return
	}
	pb.finished = true
	if success {
		pb.bar.SetTotal(pb.total, true)
	} else {
		pb.bar.Abort(false)
	}
	pb.p.Wait()
}
