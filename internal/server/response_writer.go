package server

import "net/http"

// responseRecorder remembers what a handler sent so the logging, tracing and
// metrics middleware can report it after the fact. One recorder is shared by
// every middleware in the chain.
type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

// recordResponse wraps w, or returns w itself when an outer middleware
// already did.
func recordResponse(w http.ResponseWriter) *responseRecorder {
	if rec, ok := w.(*responseRecorder); ok {
		return rec
	}
	return &responseRecorder{ResponseWriter: w}
}

// WriteHeader passes the first status through; later calls are dropped the
// same way net/http drops superfluous ones.
func (rr *responseRecorder) WriteHeader(status int) {
	if rr.status != 0 {
		return
	}
	rr.status = status
	rr.ResponseWriter.WriteHeader(status)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	if rr.status == 0 {
		rr.WriteHeader(http.StatusOK)
	}
	n, err := rr.ResponseWriter.Write(b)
	rr.bytes += int64(n)
	return n, err
}

// Status is the status sent, 200 if the handler wrote nothing at all.
func (rr *responseRecorder) Status() int {
	if rr.status == 0 {
		return http.StatusOK
	}
	return rr.status
}

// BytesWritten is the size of the response body so far.
func (rr *responseRecorder) BytesWritten() int64 {
	return rr.bytes
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rr *responseRecorder) Unwrap() http.ResponseWriter {
	return rr.ResponseWriter
}

func (rr *responseRecorder) Flush() {
	if f, ok := rr.ResponseWriter.(http.Flusher); ok {
		if rr.status == 0 {
			rr.WriteHeader(http.StatusOK)
		}
		f.Flush()
	}
}
