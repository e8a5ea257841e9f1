package ingestion

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
	"golang.org/x/time/rate"
)

// Progress reports a running ingestion. On a terminal it rewrites one status line at
// most twice a second; elsewhere it logs at debug level. A nil *Progress is silent.
type Progress struct {
	mu       sync.Mutex
	w        io.Writer
	tty      bool
	logger   *logrus.Logger
	throttle rate.Sometimes

	total   int
	done    int
	failed  int
	records int64
	started time.Time
}

// NewProgress writes to f when it is a terminal and to logger otherwise
func NewProgress(f *os.File, logger *logrus.Logger) *Progress {
	return &Progress{
		w:        f,
		tty:      term.IsTerminal(int(f.Fd())),
		logger:   logger,
		throttle: rate.Sometimes{Interval: 500 * time.Millisecond},
	}
}

func (p *Progress) Start(total int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
	p.started = time.Now()
}

// Record counts one scanned commit
func (p *Progress) Record() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records++
	p.throttle.Do(p.print)
}

// RepoDone counts one finished repository
func (p *Progress) RepoDone(res *RepoResult) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	if res.Err != nil {
		p.failed++
	}
	p.print()
}

// Finish ends the status line
func (p *Progress) Finish() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tty {
		fmt.Fprintln(p.w)
	}
}

func (p *Progress) print() {
	line := fmt.Sprintf("%d/%d repositories, %s commits", p.done, p.total, humanize.Comma(p.records))
	if p.failed > 0 {
		line += fmt.Sprintf(", %d failed", p.failed)
	}
	if !p.tty {
		p.logger.WithField("elapsed", time.Since(p.started).Round(time.Second).String()).Debug(line)
		return
	}
	fmt.Fprintf(p.w, "\r\033[Kingest: %s", line)
}
