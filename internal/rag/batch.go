package rag

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog/log"
)

// replaced in tests
var sleep = time.Sleep

// Batch answers queries sequentially, writing each report to w and
// pausing between questions so hosted providers are not hammered. A
// failed query is handed to onErr and the run continues.
func (e *Engine) Batch(ctx context.Context, w io.Writer, queries []string, delay time.Duration, onErr func(query string, err error)) {
	for i, query := range queries {
		if ctx.Err() != nil {
			log.Warn().Int("remaining", len(queries)-i).Msg("Batch cancelled")
			return
		}
		if i > 0 && delay > 0 {
			sleep(delay)
		}

		answer, err := e.Query(ctx, query)
		if err != nil {
			if onErr != nil {
				onErr(query, err)
			}
			continue
		}
		e.Render(w, answer)
	}
}
