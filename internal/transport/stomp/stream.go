package stomp

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// wsStream presents a websocket as the byte stream go-stomp expects.
// Every Write becomes one text message; reads run across message boundaries.
type wsStream struct {
	ws     *websocket.Conn
	reader io.Reader

	writeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
	err       error
}

func newStream(ws *websocket.Conn) *wsStream {
	return &wsStream{
		ws:   ws,
		done: make(chan struct{}),
	}
}

// Read must not be called concurrently.
func (that *wsStream) Read(p []byte) (int, error) {
	for {
		if that.reader == nil {
			_, reader, err := that.ws.NextReader()
			if err != nil {
				that.fail(err)
				return 0, err
			}

			that.reader = reader
		}

		n, err := that.reader.Read(p)
		if errors.Is(err, io.EOF) {
			that.reader = nil
			if n > 0 {
				return n, nil
			}

			continue
		}

		return n, err
	}
}

func (that *wsStream) Write(p []byte) (int, error) {
	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	if err := that.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return 0, fmt.Errorf("failed to set write deadline: %w", err)
	}

	if err := that.ws.WriteMessage(websocket.TextMessage, p); err != nil {
		that.fail(err)
		return 0, fmt.Errorf("failed to write message: %w", err)
	}

	return len(p), nil
}

func (that *wsStream) Close() error {
	that.fail(nil)
	return nil
}

func (that *wsStream) Err() error {
	select {
	case <-that.done:
		return that.err
	default:
		return nil
	}
}

// fail closes the socket once. A nil cause means a local close.
func (that *wsStream) fail(cause error) {
	that.closeOnce.Do(func() {
		that.err = ErrConnectionClosed
		if cause != nil {
			that.err = fmt.Errorf("%w: %w", ErrConnectionClosed, cause)
		}

		close(that.done)
		_ = that.ws.Close()
	})
}

// logAdapter routes go-stomp's logging into slog.
type logAdapter struct {
	logger *slog.Logger
}

func (that logAdapter) Debugf(format string, value ...interface{}) {
	that.logger.Debug(fmt.Sprintf(format, value...))
}

func (that logAdapter) Infof(format string, value ...interface{}) {
	that.logger.Info(fmt.Sprintf(format, value...))
}

func (that logAdapter) Warningf(format string, value ...interface{}) {
	that.logger.Warn(fmt.Sprintf(format, value...))
}

func (that logAdapter) Errorf(format string, value ...interface{}) {
	that.logger.Error(fmt.Sprintf(format, value...))
}

func (that logAdapter) Debug(message string) {
	that.logger.Debug(message)
}

func (that logAdapter) Info(message string) {
	that.logger.Info(message)
}

func (that logAdapter) Warning(message string) {
	that.logger.Warn(message)
}

func (that logAdapter) Error(message string) {
	that.logger.Error(message)
}
