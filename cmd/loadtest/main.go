package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lexvault/lexvault/internal/protocol"
)

type Config struct {
	Addr        string
	Concurrency int
	Duration    time.Duration
	SeedDocs    int
}

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	latencies     []time.Duration
	latenciesMu   sync.Mutex
	kinds         map[string]*atomic.Int64
	kindsMu       sync.Mutex
}

func NewStats() *Stats {
	return &Stats{
		latencies: make([]time.Duration, 0, 100000),
		kinds:     make(map[string]*atomic.Int64),
	}
}

func (s *Stats) RecordRequest(duration time.Duration, err error) {
	s.totalRequests.Add(1)

	kind := "ok"
	if err != nil {
		s.errorCount.Add(1)
		kind = "transport"
		var se *protocol.ServerError
		if errors.As(err, &se) {
			kind = se.Kind
		}
	} else {
		s.successCount.Add(1)
		s.latenciesMu.Lock()
		s.latencies = append(s.latencies, duration)
		s.latenciesMu.Unlock()
	}

	s.kindsMu.Lock()
	if _, ok := s.kinds[kind]; !ok {
		s.kinds[kind] = &atomic.Int64{}
	}
	s.kinds[kind].Add(1)
	s.kindsMu.Unlock()
}

var seedTexts = []string{
	"the quick brown fox jumps over the lazy dog",
	"call me {{Narrator}} and the sea calls back",
	"it was the best of times\nit was the worst of times",
	"the {{Hero}} slays the {{Beast}} in the old forest",
	"all the world is a stage and the players strut",
	"the rain in spain falls mainly on the plain",
	"to be or not to be that is the question",
	"the cat sat on the mat and the dog watched",
}

func main() {
	addr := flag.String("addr", "localhost:7420", "vault server address")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	seedDocs := flag.Int("docs", 64, "documents to ingest before the read phase")
	flag.Parse()

	cfg := Config{
		Addr:        *addr,
		Concurrency: *concurrency,
		Duration:    *duration,
		SeedDocs:    *seedDocs,
	}

	fmt.Println("=== LexVault Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.Addr)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Seed docs:   %d\n", cfg.SeedDocs)
	fmt.Println()

	docIDs, err := seedCorpus(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seeding corpus: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Seeded %d documents\n", len(docIDs))

	stats := runLoadTest(cfg, docIDs)
	printReport(stats, cfg.Duration)
}

// seedCorpus ingests the read-phase working set over a single connection
// and returns the assigned document addresses.
func seedCorpus(cfg Config) ([]string, error) {
	client, err := protocol.Dial(cfg.Addr)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	docIDs := make([]string, 0, cfg.SeedDocs)
	for i := 0; i < cfg.SeedDocs; i++ {
		name := fmt.Sprintf("loadtest-%04d", i)
		text := seedTexts[i%len(seedTexts)]
		resp, err := client.Ingest(name, "19", text)
		if err != nil {
			return nil, fmt.Errorf("ingesting %s: %w", name, err)
		}
		docIDs = append(docIDs, resp.DocID)
	}
	return docIDs, nil
}

func runLoadTest(cfg Config, docIDs []string) *Stats {
	stats := NewStats()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")

	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			worker(ctx, cfg, docIDs, stats, workerID)
		}(w)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

// worker hammers the read path over one persistent connection, cycling
// retrieve, info, and bonds. A transport error drops the connection and
// the next iteration redials.
func worker(ctx context.Context, cfg Config, docIDs []string, stats *Stats, workerID int) {
	var client *protocol.Client
	defer func() {
		if client != nil {
			client.Close()
		}
	}()

	iter := workerID
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if client == nil {
			c, err := protocol.Dial(cfg.Addr)
			if err != nil {
				stats.RecordRequest(0, err)
				time.Sleep(100 * time.Millisecond)
				continue
			}
			client = c
		}

		docID := docIDs[iter%len(docIDs)]

		start := time.Now()
		var err error
		switch iter % 10 {
		case 0, 1:
			_, err = client.Info(docID)
		case 2:
			_, err = client.Bonds(docID, "the")
		default:
			_, err = client.Retrieve(docID)
		}
		stats.RecordRequest(time.Since(start), err)
		iter++

		var se *protocol.ServerError
		if err != nil && !errors.As(err, &se) {
			client.Close()
			client = nil
		}
	}
}

func printReport(stats *Stats, duration time.Duration) {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	errCount := stats.errorCount.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Errors:          %d\n", errCount)

	if total > 0 {
		errorRate := float64(errCount) / float64(total) * 100
		fmt.Printf("Error Rate:      %.2f%%\n", errorRate)
		rps := float64(total) / duration.Seconds()
		fmt.Printf("Requests/sec:    %.2f\n", rps)
	}

	stats.latenciesMu.Lock()
	latencies := make([]time.Duration, len(stats.latencies))
	copy(latencies, stats.latencies)
	stats.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool {
			return latencies[i] < latencies[j]
		})

		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", avg)
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P90:    %s\n", percentile(latencies, 90))
		fmt.Printf("P95:    %s\n", percentile(latencies, 95))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])

		var sumSquared float64
		avgFloat := float64(avg)
		for _, l := range latencies {
			diff := float64(l) - avgFloat
			sumSquared += diff * diff
		}
		stddev := time.Duration(math.Sqrt(sumSquared / float64(len(latencies))))
		fmt.Printf("StdDev: %s\n", stddev)
	}

	fmt.Println()
	fmt.Println("=== Outcomes ===")
	stats.kindsMu.Lock()
	kinds := make([]string, 0, len(stats.kinds))
	for kind := range stats.kinds {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Printf("  %-10s %d\n", kind, stats.kinds[kind].Load())
	}
	stats.kindsMu.Unlock()

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the vault running?")
		os.Exit(1)
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
