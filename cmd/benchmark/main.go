package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/punchamoorthee/vendingops/internal/domain"
	"github.com/punchamoorthee/vendingops/internal/models"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
)

// outcomes counts responses by error code ("ok" on success).
var (
	mu       sync.Mutex
	outcomes = map[string]uint64{}
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
}

func main() {
	flag.Parse()
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

	client := resty.New().
		SetBaseURL(targetURL).
		SetTimeout(5 * time.Second).
		SetRetryCount(0)

	var catalog []domain.Drink
	if _, err := client.R().SetResult(&catalog).Get("/api/drinks"); err != nil {
		log.Fatalf("Unable to load catalog: %v", err)
	}
	if len(catalog) == 0 {
		log.Fatal("Catalog is empty; run the seeder first")
	}

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go worker(&wg, client, catalog, start)
	}
	wg.Wait()
	printResults(time.Since(start))
}

func worker(wg *sync.WaitGroup, client *resty.Client, catalog []domain.Drink, start time.Time) {
	defer wg.Done()

	for time.Since(start) < duration {
		d := pickDrink(catalog)
		req := models.PaymentRequest{
			Items: []models.PaymentItem{{DrinkName: d.Name, BrandName: d.BrandName, PriceAtPurchase: d.Price, Quantity: 1}},
			Coins: coinsFor(d.Price),
		}

		var failure models.ErrorResponse
		resp, err := client.R().
			SetHeader("Content-Type", "application/json").
			SetBody(req).
			SetError(&failure).
			Post("/api/payments")
		switch {
		case err != nil:
			count("transport_error")
		case resp.StatusCode() == http.StatusOK:
			count("ok")
		case failure.Error != "":
			count(failure.Error)
		default:
			count(fmt.Sprintf("http_%d", resp.StatusCode()))
		}
	}
}

func pickDrink(catalog []domain.Drink) domain.Drink {
	// Hotspot: 90% of traffic goes to the first drink
	if workload == "hotspot" && rand.Float32() < 0.90 {
		return catalog[0]
	}
	return catalog[rand.Intn(len(catalog))]
}

// coinsFor overpays with tens, occasionally adding a random extra coin.
func coinsFor(price int64) []models.PaymentCoin {
	tens := int((price + 9) / 10)
	coins := []models.PaymentCoin{{Denomination: 10, Quantity: tens}}
	if rand.Intn(4) == 0 {
		coins = append(coins, models.PaymentCoin{Denomination: []int64{1, 2, 5}[rand.Intn(3)], Quantity: 1})
	}
	return coins
}

func count(outcome string) {
	mu.Lock()
	outcomes[outcome]++
	mu.Unlock()
}

func printResults(d time.Duration) {
	mu.Lock()
	defer mu.Unlock()

	var total uint64
	for _, n := range outcomes {
		total += n
	}
	results := map[string]interface{}{
		"workload":       workload,
		"duration_sec":   d.Seconds(),
		"total_requests": total,
		"throughput_tps": float64(total) / d.Seconds(),
		"outcomes":       outcomes,
	}
	if total > 0 {
		results["success_rate_pct"] = float64(outcomes["ok"]) / float64(total) * 100
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	// Also save to file
	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		log.Printf("Unable to write %s: %v", filename, err)
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
