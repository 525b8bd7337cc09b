package protocol

import (
	"context"
	"io"
	"path"
	"sync"

	"gopkg.in/cheggaaa/pb.v1"
)

// transferSet holds the cancel functions of in-flight transfers of one
// direction.
type transferSet struct {
	mu      sync.Mutex
	seq     uint64
	cancels map[uint64]context.CancelFunc
}

func newTransferSet() *transferSet {
	return &transferSet{cancels: make(map[uint64]context.CancelFunc)}
}

func (t *transferSet) start() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	t.mu.Lock()
	t.seq++
	id := t.seq
	t.cancels[id] = cancel
	t.mu.Unlock()
	return ctx, func() {
		t.mu.Lock()
		delete(t.cancels, id)
		t.mu.Unlock()
		cancel()
	}
}

func (t *transferSet) cancelAll() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, cancel := range t.cancels {
		cancel()
	}
	return len(t.cancels)
}

func (t *transferSet) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.cancels)
}

// tracker accumulates the bytes of one transfer, which may span several
// files, and emits a Progress event whenever the whole percent changes.
type tracker struct {
	ctx   context.Context
	name  string
	emit  func(Progress)
	bar   *pb.ProgressBar
	total int64

	mu          sync.Mutex
	transferred int64
	percent     int
}

func (n *Native) newTracker(ctx context.Context, event, remotePath string, total int64) *tracker {
	t := &tracker{
		ctx:     ctx,
		name:    remotePath,
		total:   total,
		percent: -1,
		emit: func(p Progress) {
			n.emit(event, p)
		},
	}
	if n.pb {
		t.bar = progressBar(path.Base(remotePath), total)
		t.bar.Start()
	}
	return t
}

func progressBar(title string, total int64) *pb.ProgressBar {
	bar := pb.New64(total)
	bar.SetUnits(pb.U_BYTES)
	bar.ShowSpeed = true
	bar.ShowTimeLeft = true
	bar.ShowPercent = true
	bar.Prefix(title)
	return bar
}

func (t *tracker) add(i int) {
	if i <= 0 {
		return
	}
	if t.bar != nil {
		t.bar.Add(i)
	}
	t.mu.Lock()
	t.transferred += int64(i)
	p, changed := t.step()
	t.mu.Unlock()
	if changed {
		t.emit(p)
	}
}

func (t *tracker) step() (Progress, bool) {
	percent := 100
	if t.total > 0 {
		percent = int(t.transferred * 100 / t.total)
		if percent > 100 {
			percent = 100
		}
	}
	if percent == t.percent {
		return Progress{}, false
	}
	t.percent = percent
	return Progress{Path: t.name, Transferred: t.transferred, Total: t.total, Percent: percent}, true
}

// finish reports 100% for transfers that moved no bytes, such as empty files.
func (t *tracker) finish(err error) {
	if t.bar != nil {
		t.bar.Finish()
	}
	if err != nil {
		return
	}
	t.mu.Lock()
	var (
		p       Progress
		changed bool
	)
	if t.transferred >= t.total {
		p, changed = t.step()
	}
	t.mu.Unlock()
	if changed {
		t.emit(p)
	}
}

func (t *tracker) reader(r io.Reader) io.Reader {
	return &progressReader{r: r, t: t}
}

// progressReader stops with the tracker's context error once it is cancelled.
type progressReader struct {
	r io.Reader
	t *tracker
}

func (pr *progressReader) Read(p []byte) (int, error) {
	if err := pr.t.ctx.Err(); err != nil {
		return 0, err
	}
	i, err := pr.r.Read(p)
	pr.t.add(i)
	return i, err
}
