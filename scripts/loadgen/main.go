// Command loadgen writes synthetic access-log entries, one JSON object per
// line, with Zipf-distributed endpoints and status codes.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type accessLog struct {
	RequestID  string `json:"request_id"`
	Timestamp  string `json:"timestamp"`
	Message    string `json:"message"`
	Endpoint   string `json:"endpoint"`
	StatusCode int    `json:"status_code"`
}

var statusCodes = []int{200, 201, 204, 301, 304, 400, 401, 403, 404, 409, 429, 500, 502, 503, 504}

func main() {
	outputFile := flag.String("o", "-", "output file path, - for stdout")
	count := flag.Int("c", 10000, "number of entries to generate")
	endpoints := flag.Uint64("endpoints", 500, "number of distinct endpoints")
	skew := flag.Float64("s", 1.1, "Zipf exponent, must be > 1")
	errorRate := flag.Float64("error-rate", 0.1, "fraction of entries with a 4xx/5xx status")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	if *skew <= 1 {
		log.Fatal().Float64("s", *skew).Msg("Zipf exponent must be > 1")
	}
	if *endpoints == 0 {
		log.Fatal().Msg("at least one endpoint is required")
	}

	var out io.Writer = os.Stdout
	if *outputFile != "-" {
		f, err := os.Create(*outputFile)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create output file")
		}
		defer f.Close()
		out = f
	}

	w := bufio.NewWriter(out)
	defer w.Flush()

	g := newGenerator(*seed, *endpoints, *skew, *errorRate)
	for i := range *count {
		line, err := json.Marshal(g.next())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to encode entry")
		}
		w.Write(line)
		w.WriteByte('\n')

		if (i+1)%100000 == 0 {
			log.Info().Int("entries", i+1).Msg("generated")
		}
	}
}

type generator struct {
	rng       *rand.Rand
	endpoint  *rand.Zipf
	status    *rand.Zipf
	errorRate float64
	now       time.Time
}

func newGenerator(seed, endpoints uint64, skew, errorRate float64) *generator {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return &generator{
		rng:       rng,
		endpoint:  rand.NewZipf(rng, skew, 1, endpoints-1),
		status:    rand.NewZipf(rng, skew, 1, uint64(len(statusCodes)-6)),
		errorRate: errorRate,
		now:       time.Now().UTC(),
	}
}

func (g *generator) next() accessLog {
	g.now = g.now.Add(time.Duration(g.rng.IntN(50)) * time.Millisecond)

	status := statusCodes[g.rng.IntN(5)]
	if g.rng.Float64() < g.errorRate {
		// errors are skewed too: a few codes dominate
		status = statusCodes[5+int(g.status.Uint64())]
	}
	endpoint := fmt.Sprintf("/api/v1/resource/%d", g.endpoint.Uint64())

	return accessLog{
		RequestID:  uuid.NewString(),
		Timestamp:  g.now.Format(time.RFC3339Nano),
		Message:    fmt.Sprintf("%d %s", status, endpoint),
		Endpoint:   endpoint,
		StatusCode: status,
	}
}
