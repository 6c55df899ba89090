// internal/ota/writer.go
package ota

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/tamzrod/provisiond/internal/queue"
	"github.com/tamzrod/provisiond/internal/status"
)

// headerDelimiter ends the multipart part headers.
var headerDelimiter = []byte("\r\n\r\n")

// Region is a handle to one firmware image slot.
type Region struct {
	Label string
}

// ImageWriter is an open write session with unknown final size.
type ImageWriter interface {
	io.Writer
	// Finish validates and commits the image. Called at most once.
	Finish() error
	// Abort discards a partial image.
	Abort() error
}

// Flash is the slot storage the writer commits to.
type Flash interface {
	// Inactive returns the region that is not currently booted.
	Inactive() (Region, error)
	Begin(r Region) (ImageWriter, error)
	SetBoot(r Region) error
}

// Session describes one upload. It lives only for the request.
type Session struct {
	ID             uuid.UUID
	Region         Region
	BytesExpected  int64 // -1 when the request carries no length
	BytesRead      int64
	BytesWritten   int64
	HeaderStripped bool
}

// Config controls chunking and the header window.
type Config struct {
	ChunkSize       int
	MaxHeaderBytes  int
	MaxReadTimeouts int // 0 = retry timeouts forever
}

// Option configures a Writer.
type Option func(*Config)

func WithChunkSize(n int) Option {
	return func(c *Config) { c.ChunkSize = n }
}

func WithMaxHeaderBytes(n int) Option {
	return func(c *Config) { c.MaxHeaderBytes = n }
}

func WithMaxReadTimeouts(n int) Option {
	return func(c *Config) { c.MaxReadTimeouts = n }
}

func defaultConfig() Config {
	return Config{
		ChunkSize:      1024,
		MaxHeaderBytes: 2048,
	}
}

// Writer streams one firmware upload at a time into the inactive region.
type Writer struct {
	cfg    Config
	flash  Flash
	status *queue.Queue[status.Message]
	busy   atomic.Bool
	log    *slog.Logger
}

func New(flash Flash, statusQ *queue.Queue[status.Message], opts ...Option) (*Writer, error) {
	if flash == nil {
		return nil, errors.New("ota: flash required")
	}
	if statusQ == nil {
		return nil, errors.New("ota: status queue required")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ChunkSize <= 0 {
		return nil, errors.New("ota: chunk size must be > 0")
	}
	if cfg.MaxHeaderBytes < len(headerDelimiter) {
		return nil, fmt.Errorf("ota: max header bytes must be >= %d", len(headerDelimiter))
	}

	return &Writer{
		cfg:    cfg,
		flash:  flash,
		status: statusQ,
		log:    slog.With("component", "ota"),
	}, nil
}

// Busy reports whether an upload is being written.
func (w *Writer) Busy() bool { return w.busy.Load() }

// Process consumes body and commits it. The outcome is also reported to the
// status monitor, except for ErrSessionActive which leaves status untouched.
func (w *Writer) Process(ctx context.Context, body io.Reader, contentLength int64) (Session, error) {
	if !w.busy.CompareAndSwap(false, true) {
		return Session{}, ErrSessionActive
	}
	defer w.busy.Store(false)

	sess, err := w.run(body, contentLength)

	msg := status.OTAUpdateSuccessful
	if err != nil {
		msg = status.OTAUpdateFailed
		w.log.Error("firmware update failed",
			"session", sess.ID, "read", sess.BytesRead, "written", sess.BytesWritten, "err", err)
	} else {
		w.log.Info("firmware update committed",
			"session", sess.ID, "region", sess.Region.Label, "written", sess.BytesWritten)
	}

	if qerr := w.status.Send(ctx, msg); qerr != nil {
		w.log.Error("status notify failed", "msg", msg, "err", qerr)
	}
	return sess, err
}

func (w *Writer) run(body io.Reader, contentLength int64) (Session, error) {
	sess := Session{ID: uuid.New(), BytesExpected: contentLength}
	if contentLength < 0 {
		sess.BytesExpected = -1
	}

	buf := make([]byte, w.cfg.ChunkSize)
	var (
		pending  []byte // bytes seen before the delimiter
		img      ImageWriter
		timeouts int
	)

	abort := func(err error) (Session, error) {
		if img != nil {
			if aerr := img.Abort(); aerr != nil {
				w.log.Warn("abort failed", "session", sess.ID, "err", aerr)
			}
		}
		return sess, err
	}

	for sess.BytesExpected < 0 || sess.BytesRead < sess.BytesExpected {
		want := len(buf)
		if sess.BytesExpected >= 0 {
			if rem := sess.BytesExpected - sess.BytesRead; rem < int64(want) {
				want = int(rem)
			}
		}

		n, err := body.Read(buf[:want])
		if n > 0 {
			sess.BytesRead += int64(n)
			chunk := buf[:n]

			if !sess.HeaderStripped {
				pending = append(pending, chunk...)
				idx := bytes.Index(pending, headerDelimiter)
				if idx < 0 {
					if len(pending) > w.cfg.MaxHeaderBytes {
						return abort(ErrDelimiterNotFound)
					}
					chunk = nil
				} else {
					chunk = pending[idx+len(headerDelimiter):]
					pending = nil
					sess.HeaderStripped = true

					region, ierr := w.flash.Inactive()
					if ierr != nil {
						return abort(fmt.Errorf("ota: select region: %w", ierr))
					}
					sess.Region = region
					if img, ierr = w.flash.Begin(region); ierr != nil {
						return abort(fmt.Errorf("ota: begin region %s: %w", region.Label, ierr))
					}
					w.log.Info("writing firmware", "session", sess.ID, "region", region.Label, "expected", sess.BytesExpected)
				}
			}

			if len(chunk) > 0 {
				if _, werr := img.Write(chunk); werr != nil {
					return abort(fmt.Errorf("ota: write region %s: %w", sess.Region.Label, werr))
				}
				sess.BytesWritten += int64(len(chunk))
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if isTimeout(err) {
				timeouts++
				if w.cfg.MaxReadTimeouts > 0 && timeouts > w.cfg.MaxReadTimeouts {
					return abort(ErrTooManyTimeouts)
				}
				continue
			}
			return abort(&ReadError{Offset: sess.BytesRead, Err: err})
		}
		if n == 0 {
			break
		}
	}

	if !sess.HeaderStripped {
		return abort(ErrDelimiterNotFound)
	}

	// Exactly one finalize per opened session.
	if err := img.Finish(); err != nil {
		return sess, fmt.Errorf("ota: finalize: %w", err)
	}
	if err := w.flash.SetBoot(sess.Region); err != nil {
		return sess, fmt.Errorf("ota: set boot region %s: %w", sess.Region.Label, err)
	}
	return sess, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
