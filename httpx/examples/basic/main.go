package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/seb7887/uibus/httpx"
	"github.com/seb7887/uibus/httpx/backoff"
	"github.com/seb7887/uibus/httpx/policy"
	"github.com/seb7887/uibus/wp"
)

func main() {
	pool := wp.NewPool(4, 16)
	defer pool.Stop()

	client := httpx.NewClient(
		httpx.WithBaseURL("http://localhost:8080"),
		httpx.WithRetry(policy.RetryConfig{
			MaxAttempts:    3,
			OnlyIdempotent: true,
			Backoff: &backoff.ExponentialBackoff{
				Initial: 100 * time.Millisecond,
				Max:     2 * time.Second,
				Factor:  2.0,
				Jitter:  true,
			},
		}),
		httpx.WithTimeout(policy.TimeoutConfig{Request: 10 * time.Second}),
		httpx.WithRequestIDs(),
		httpx.WithScheduler(pool),
	)

	ctx := context.Background()

	resp, err := client.Get(ctx, "/_api/info/version", httpx.Headers{"Accept": "text/plain"})
	if err != nil {
		log.Fatalf("request failed: %v", err)
	}
	version, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	fmt.Printf("version (%d): %s\n", resp.StatusCode, version)

	call, err := client.Go(ctx, &httpx.Request{
		Method:  "GET",
		Path:    "/_api/info/version",
		Headers: httpx.Headers{"Accept": "application/json"},
		Key:     "example",
		Options: []httpx.RequestOption{httpx.WithRequestTimeout(2 * time.Second)},
	}, httpx.Callbacks{
		Success: func(r *httpx.Result) { fmt.Printf("async: %s\n", r.Body) },
		Error:   func(r *httpx.Result) { fmt.Printf("async failed: %v\n", r.Err) },
		Complete: []httpx.ResultFunc{
			func(r *httpx.Result) { fmt.Printf("settled: %s\n", r.Status) },
		},
	})
	if err != nil {
		log.Fatalf("invalid request: %v", err)
	}
	<-call.Done()
}
