package progress

import (
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/cheggaaa/pb/v3/termutil"
)

const plainTemplate = `{{with string . "prefix"}}{{.}} {{end}}{{counters . }} {{bar . }} {{percent . }} {{speed . }} {{rtime . "ETA %s"}}{{with string . "suffix"}} {{.}}{{end}}` + "\n"

// Start returns a running bar. Without a terminal the bar prints plain lines
// so logs stay readable.
func Start(total int64, prefix string, bytes bool) *pb.ProgressBar {
	bar := pb.Start64(total)
	bar.Set("prefix", prefix)
	bar.Set(pb.Bytes, bytes)
	bar.SetRefreshRate(time.Second * 5)
	if w, err := termutil.TerminalWidth(); w == 0 || err != nil {
		bar.SetTemplateString(plainTemplate)
	}
	return bar
}
