package cc2531

import (
	"context"
	"sync"

	"github.com/google/gousb"
)

// readResult is one scripted bulk IN transfer
type readResult struct {
	data []byte
	err  error
}

// fakeIn replays scripted transfers; an exhausted script times out
type fakeIn struct {
	mu      sync.Mutex
	results []readResult
	reads   int
}

func (f *fakeIn) push(data ...byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, readResult{data: data})
}

func (f *fakeIn) pushErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, readResult{err: err})
}

// pushPartial scripts a transfer that delivered data before failing
func (f *fakeIn) pushPartial(err error, data ...byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, readResult{data: data, err: err})
}

func (f *fakeIn) ReadContext(ctx context.Context, buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if len(f.results) == 0 {
		return 0, gousb.ErrorTimeout
	}
	r := f.results[0]
	f.results = f.results[1:]
	return copy(buf, r.data), r.err
}

// fakeOut records every frame written
type fakeOut struct {
	writes [][]byte
	short  int // when > 0, report this many bytes written
	err    error
}

func (f *fakeOut) WriteContext(ctx context.Context, buf []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	frame := make([]byte, len(buf))
	copy(frame, buf)
	f.writes = append(f.writes, frame)
	if f.short > 0 {
		return f.short, nil
	}
	return len(buf), nil
}

// recordingSink collects debug dumps
type recordingSink struct {
	labels []string
}

func (r *recordingSink) Dump(label string, data []byte) {
	r.labels = append(r.labels, label)
}

func newFakeDevice() (*Device, *fakeIn, *fakeOut) {
	in := &fakeIn{}
	out := &fakeOut{}
	return newDevice(in, out), in, out
}

// dataFrame builds a well-formed unsolicited capture frame
func dataFrame(rssi int8, lqi uint8, radio ...byte) []byte {
	n := DataHeaderSize + len(radio) + 1
	frame := make([]byte, 0, n)
	frame = append(frame, byte(n), byte(n), CodeGotPacket, byte(rssi), lqi)
	frame = append(frame, radio...)
	return append(frame, Checksum(frame))
}
