package api

import (
	"LogFlowSketcher/internal/logging"
	"LogFlowSketcher/internal/prom"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	responseBody []byte
}

func newLoggingResponseWriter(w http.ResponseWriter) *loggingResponseWriter {
	return &loggingResponseWriter{w, http.StatusOK, nil}
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(data []byte) (int, error) {
	if lrw.statusCode >= 400 {
		// collect error response for logging
		lrw.responseBody = append(lrw.responseBody, data...)
	}
	return lrw.ResponseWriter.Write(data)
}

// accessLogLine is one line of the HTTP access log.
type accessLogLine struct {
	Time                string          `json:"time"`
	DurationS           string          `json:"duration_s"`
	Status              int             `json:"status"`
	Method              string          `json:"method"`
	Route               string          `json:"route"`
	Path                string          `json:"path"`
	Query               string          `json:"query"`
	Remote              string          `json:"remote"`
	Useragent           string          `json:"user_agent"`
	ResponseBodyInvalid bool            `json:"response_body_invalid,omitempty"`
	ResponseBody        json.RawMessage `json:"response_body,omitempty"`
}

// MetricHandler measures the time taken to respond, records it in prometheus
// and writes an access log line. The route template must be supplied since it
// is not available from the request.
func MetricHandler(route string, accessLog *logging.AccessLog, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lrw := newLoggingResponseWriter(w)

		start := time.Now()
		fn(lrw, r)
		elapsed := time.Since(start).Seconds()
		prom.RestapiTimes.WithLabelValues(r.Method, route).Observe(elapsed)
		prom.RestapiCodes.WithLabelValues(r.Method, route, fmt.Sprintf("%v", lrw.statusCode)).Inc()

		// encode as json not logfmt to not worry about bad client characters
		line := accessLogLine{
			Time:         start.Format(time.RFC3339),
			DurationS:    fmt.Sprintf("%.4f", elapsed),
			Status:       lrw.statusCode,
			Method:       r.Method,
			Route:        route,
			Path:         r.URL.Path,
			Query:        r.URL.RawQuery,
			Remote:       r.RemoteAddr,
			Useragent:    r.UserAgent(),
			ResponseBody: lrw.responseBody,
		}
		if !json.Valid(line.ResponseBody) {
			line.ResponseBody = nil
			line.ResponseBodyInvalid = len(lrw.responseBody) > 0
		}

		data, err := json.Marshal(line)
		if err != nil {
			log.Error().Err(err).Msg("could not marshal access log line")
			return
		}
		accessLog.Write(data)
	}
}
