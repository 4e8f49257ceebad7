package client

import (
	"io"
	"time"

	"github.com/dlms-go/dlmscosem/base"
	"go.uber.org/zap"
)

var _ base.Stream = (*fakeStream)(nil)

// fakeStream is an in-memory base.Stream double: Write records every frame
// sent, and Read serves pre-programmed response frames one at a time, each
// ending in io.EOF the way the real framed transports this package was
// written against terminate one message.
type fakeStream struct {
	responses [][]byte
	respIdx   int
	cur       []byte

	writes [][]byte

	openErr  error
	writeErr error
}

func newFakeStream(responses ...[]byte) *fakeStream {
	return &fakeStream{responses: responses}
}

func (f *fakeStream) Open() error {
	return f.openErr
}

func (f *fakeStream) Disconnect() error {
	return nil
}

func (f *fakeStream) Close() error {
	return nil
}

func (f *fakeStream) SetLogger(logger *zap.SugaredLogger) {}
func (f *fakeStream) SetDeadline(t time.Time)             {}
func (f *fakeStream) SetTimeout(t time.Duration)          {}
func (f *fakeStream) SetMaxReceivedBytes(m int64)         {}

func (f *fakeStream) GetRxTxBytes() (int64, int64) {
	return 0, 0
}

func (f *fakeStream) Write(src []byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	cp := make([]byte, len(src))
	copy(cp, src)
	f.writes = append(f.writes, cp)
	return nil
}

func (f *fakeStream) Read(p []byte) (int, error) {
	if len(f.cur) == 0 {
		if f.respIdx >= len(f.responses) {
			return 0, io.EOF
		}
		f.cur = f.responses[f.respIdx]
		f.respIdx++
	}
	n := copy(p, f.cur)
	f.cur = f.cur[n:]
	if len(f.cur) == 0 {
		return n, io.EOF
	}
	return n, nil
}
