package uploader

import (
	"context"
	"io"
)

// Callbacks bind a transport to its observer. OnProgress reports
// non-decreasing uploaded byte counts; OnSuccess fires at most once, after the
// final progress report; OnError fires on transfer failure.
type Callbacks struct {
	OnProgress func(uploaded, total int64)
	OnSuccess  func()
	OnError    func(err error)
}

// ChunkTransport performs the resumable byte transfer for a single upload key.
// It carries no business logic. Start begins or continues the transfer from
// the current remote offset; Pause cooperatively stops issuing new chunk
// requests and returns promptly. A transport must not be reused once
// OnSuccess has fired.
type ChunkTransport interface {
	Start(ctx context.Context)
	Pause()
	Done() bool
}

// TransportFactory builds a transport bound to an upload key and a file's
// content. The engine selects the factory (offset HTTP or S3 multipart) at
// wiring time.
type TransportFactory func(uploadID string, src io.ReaderAt, size int64, cb Callbacks) ChunkTransport
