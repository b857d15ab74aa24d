package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/nulzo/generation-router/pkg/api"
	vegeta "github.com/tsenart/vegeta/v12/lib"
)

const (
	flakyPort  = 9091
	steadyPort = 9092
	appPort    = 8081
)

var completion = []byte(`{"id":"bench-123","model":"bench-model","choices":[{"message":{"role":"assistant","content":"Hello"},"finish_reason":"stop"}],"usage":{"prompt_tokens":12,"completion_tokens":4,"total_tokens":16}}`)

func main() {
	duration := flag.Duration("duration", 10*time.Second, "Duration of the test")
	rate := flag.Int("rate", 50, "Requests per second")
	failRate := flag.Float64("fail-rate", 0.2, "Fraction of requests the flaky upstream rejects")
	strategy := flag.String("strategy", "latency_first", "Routing strategy to request")
	chaos := flag.Bool("chaos", false, "Simulate random client disconnections")
	flag.Parse()

	// the flaky upstream is fast, the steady one is slow but never fails
	go startUpstream(flakyPort, 5*time.Millisecond, *failRate)
	go startUpstream(steadyPort, 40*time.Millisecond, 0)

	fmt.Println("Building application...")
	build := exec.Command("go", "build", "-o", "bin/server", "./cmd/server")
	build.Stdout = os.Stdout
	build.Stderr = os.Stderr
	if err := build.Run(); err != nil {
		log.Fatalf("Failed to build app: %v", err)
	}

	configFile := "bench_config.yaml"
	if err := os.WriteFile(configFile, []byte(benchConfig), 0o644); err != nil {
		log.Fatalf("Failed to write config: %v", err)
	}
	defer os.Remove(configFile)

	fmt.Println("Starting application...")
	app := exec.Command("./bin/server")
	app.Env = append(os.Environ(),
		"CONFIG_FILE="+configFile,
		fmt.Sprintf("SERVER_PORT=%d", appPort),
		"LOG_LEVEL=error",
	)

	logFile, err := os.Create("bench_server.log")
	if err != nil {
		log.Fatalf("Failed to create log file: %v", err)
	}
	defer logFile.Close()
	app.Stdout = logFile
	app.Stderr = logFile

	if err := app.Start(); err != nil {
		log.Fatalf("Failed to start app: %v", err)
	}
	defer func() {
		if app.Process != nil {
			_ = app.Process.Kill()
		}
	}()

	base := fmt.Sprintf("http://localhost:%d", appPort)
	waitForApp(base + "/health")

	body, _ := json.Marshal(api.GenerateRequest{
		Messages: []api.Message{{Role: "user", Content: "Hello"}},
		Strategy: *strategy,
	})

	targeter := vegeta.NewStaticTargeter(vegeta.Target{
		Method: http.MethodPost,
		URL:    base + "/v1/generate",
		Body:   body,
		Header: http.Header{"Content-Type": []string{"application/json"}},
	})

	done := make(chan struct{})
	if *chaos {
		concurrency := min(max(*rate/10, 5), 50)
		go startChaosMonkey(base+"/v1/generate", body, concurrency, done)
	}

	fmt.Printf("Running benchmark: %s duration, %d req/s, strategy %s\n", *duration, *rate, *strategy)

	attacker := vegeta.NewAttacker(vegeta.KeepAlive(true))
	var metrics vegeta.Metrics
	for res := range attacker.Attack(targeter, vegeta.Rate{Freq: *rate, Per: time.Second}, *duration, "Benchmark") {
		metrics.Add(res)
	}
	metrics.Close()
	close(done)

	fmt.Println("--------------------------------------------------")
	fmt.Println("50th percentile: ", metrics.Latencies.P50)
	fmt.Println("99th percentile: ", metrics.Latencies.P99)
	fmt.Println("Mean:            ", metrics.Latencies.Mean)
	fmt.Println("Max:             ", metrics.Latencies.Max)
	fmt.Printf("Success:         %.2f%%\n", metrics.Success*100)
	fmt.Printf("Throughput:      %.2f req/s\n", metrics.Throughput)
	fmt.Println("Status codes:    ", metrics.StatusCodes)
	fmt.Println("--------------------------------------------------")

	if len(metrics.Errors) > 0 {
		fmt.Println("Errors (first 5 unique):")
		seen := make(map[string]bool)
		for _, msg := range metrics.Errors {
			if len(seen) == 5 {
				break
			}
			if !seen[msg] {
				fmt.Println(msg)
				seen[msg] = true
			}
		}
	}

	printBackends(base + "/v1/backends")
	_ = os.Remove("bench.db")
}

// printBackends shows how the rolling windows ended up after the run.
func printBackends(url string) {
	resp, err := http.Get(url)
	if err != nil {
		fmt.Printf("Failed to fetch backends: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var list api.ListResponse[api.BackendInfo]
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		fmt.Printf("Failed to decode backends: %v\n", err)
		return
	}

	fmt.Printf("%-10s %-14s %-10s %-10s\n", "Backend", "AvgLatency", "Successes", "Failures")
	for _, b := range list.Data {
		latency := "unknown"
		if b.AverageLatencyMS != nil {
			latency = fmt.Sprintf("%.1fms", *b.AverageLatencyMS)
		}
		fmt.Printf("%-10s %-14s %-10d %-10d\n", b.ID, latency, b.Window.Successes, b.Window.Failures)
	}
}

func startChaosMonkey(url string, body []byte, concurrency int, done chan struct{}) {
	fmt.Printf("Chaos monkey running with %d disrupters (random disconnects 1-200ms)\n", concurrency)
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go func() {
			defer wg.Done()
			client := &http.Client{}
			for {
				select {
				case <-done:
					return
				default:
				}

				timeout := time.Duration(rand.Intn(200)+1) * time.Millisecond
				ctx, cancel := context.WithTimeout(context.Background(), timeout)
				req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
				req.Header.Set("Content-Type", "application/json")

				if resp, err := client.Do(req); err == nil {
					resp.Body.Close()
				}
				cancel()
				time.Sleep(time.Duration(rand.Intn(50)) * time.Millisecond)
			}
		}()
	}
	wg.Wait()
}

// startUpstream serves an OpenAI-compatible completions endpoint.
func startUpstream(port int, latency time.Duration, failRate float64) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"bench-model","object":"model"}]}`))
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(latency)
		if failRate > 0 && rand.Float64() < failRate {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(completion)
	})
	_ = http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}

func waitForApp(url string) {
	for i := 0; i < 20; i++ {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	log.Fatal("App timed out")
}

var benchConfig = fmt.Sprintf(`
server:
  port: %d
  env: production
log:
  level: error
rate_limit:
  requests_per_second: 0
router:
  default_strategy: latency_first
  max_retries: 2
  retry_base_delay: 10ms
  retry_max_delay: 50ms
database:
  driver: sqlite
  dsn: "file:bench.db?_journal_mode=WAL&_busy_timeout=5000"
metrics:
  enabled: true
backends:
  - id: flaky
    type: openai
    api_key: mock-key
    default_model: bench-model
    base_url: "http://localhost:%d/v1"
    enabled: true
    pricing:
      bench-model: 0.0005
  - id: steady
    type: openai
    api_key: mock-key
    default_model: bench-model
    base_url: "http://localhost:%d/v1"
    enabled: true
    pricing:
      bench-model: 0.002
`, appPort, flakyPort, steadyPort)
