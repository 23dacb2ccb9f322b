package response

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/Suhaibinator/SBlog/pkg/codec"
)

// ErrResponseSent is returned when a second response is written for the same request.
var ErrResponseSent = errors.New("response already sent")

// Response bodies keep <, > and & unescaped.
var jsonCodec = &codec.JSONCodec{EscapeHTML: false}

// Writer wraps an http.ResponseWriter, records the status code and byte count,
// and refuses to send a second status line.
type Writer struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
	superfluous  atomic.Int32
}

// NewWriter wraps w. If w is already a *Writer it is returned unchanged.
func NewWriter(w http.ResponseWriter) *Writer {
	if rw, ok := w.(*Writer); ok {
		return rw
	}
	return &Writer{ResponseWriter: w, statusCode: http.StatusOK}
}

// WriteHeader sends the status line once. Later calls are counted and dropped.
func (w *Writer) WriteHeader(statusCode int) {
	if w.wroteHeader {
		w.superfluous.Add(1)
		return
	}
	w.wroteHeader = true
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Write sends the status line if needed and counts the bytes written.
func (w *Writer) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += int64(n)
	return n, err
}

// Flush calls the underlying ResponseWriter.Flush if it implements http.Flusher.
func (w *Writer) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *Writer) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Written reports whether a response has been started.
func (w *Writer) Written() bool {
	return w.wroteHeader
}

// Status returns the status code sent, or 200 if nothing was written yet.
func (w *Writer) Status() int {
	return w.statusCode
}

// BytesWritten returns the number of body bytes written.
func (w *Writer) BytesWritten() int64 {
	return w.bytesWritten
}

// Superfluous returns how many extra status lines were attempted after the first.
func (w *Writer) Superfluous() int {
	return int(w.superfluous.Load())
}

// writtenReporter is implemented by writers that know whether a response was started.
type writtenReporter interface {
	Written() bool
}

// Sent reports whether a response has already been started on w.
func Sent(w http.ResponseWriter) bool {
	if wr, ok := w.(writtenReporter); ok {
		return wr.Written()
	}
	return false
}

// JSON writes v as a JSON response with the given status code.
// It returns ErrResponseSent if a response was already started on w.
func JSON(w http.ResponseWriter, statusCode int, v any) error {
	if Sent(w) {
		return ErrResponseSent
	}
	return jsonCodec.Encode(w, statusCode, v)
}

// Error writes err as a JSON error envelope. It returns ErrResponseSent if a
// response was already started on w.
func Error(w http.ResponseWriter, err error) error {
	httpErr := AsHTTPError(err)
	return JSON(w, httpErr.StatusCode, httpErr.Body())
}
