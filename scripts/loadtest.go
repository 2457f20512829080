//go:build ignore

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const baseURL = "http://localhost:8080"

type Stats struct {
	TotalRequests   int64
	SuccessRequests int64
	FailedRequests  int64
	TotalLatency    int64
	MinLatency      int64
	MaxLatency      int64
}

func main() {
	rand.Seed(time.Now().UnixNano())

	fmt.Println("QuickHop Load Test")
	fmt.Println("==================")

	// First, seed some data
	fmt.Println("\n1. Creating test data...")
	businessIDs, riderIDs := createTestData()

	if len(businessIDs) == 0 || len(riderIDs) == 0 {
		log.Fatal("Failed to create test data")
	}

	fmt.Printf("Created %d businesses and %d riders\n", len(businessIDs), len(riderIDs))

	// Test 1: Delivery creation throughput
	fmt.Println("\n2. Testing Delivery Creation (200 deliveries, 20 concurrent)...")
	stats, requestIDs := testDeliveryCreation(businessIDs, 200, 20)
	printStats("Delivery Creation", stats)

	// Test 2: Claim contention. Every rider races for the same request;
	// exactly one accept per request should return 200.
	fmt.Println("\n3. Testing Claim Contention (all riders race per request)...")
	testClaimContention(requestIDs, riderIDs)

	// Test 3: Read load on open requests
	fmt.Println("\n4. Testing Request Listing (1000 reads, 50 concurrent)...")
	stats = testRequestListing(1000, 50)
	printStats("Request Listing", stats)

	fmt.Println("\nLoad test completed!")
}

func createTestData() ([]string, []string) {
	businessIDs := make([]string, 0)
	riderIDs := make([]string, 0)

	for i := 0; i < 5; i++ {
		business := map[string]string{
			"email": fmt.Sprintf("loadtest-business-%d-%d@quickhop.example", i, rand.Intn(1000000)),
			"name":  fmt.Sprintf("LoadTest Business %d", i),
			"role":  "business",
		}
		body, _ := json.Marshal(business)
		resp, err := http.Post(baseURL+"/v1/profiles", "application/json", bytes.NewBuffer(body))
		if err != nil {
			continue
		}
		defer resp.Body.Close()

		if resp.StatusCode == 201 {
			var result map[string]interface{}
			json.NewDecoder(resp.Body).Decode(&result)
			if id, ok := result["id"].(string); ok {
				businessIDs = append(businessIDs, id)
			}
		}
	}

	for i := 0; i < 30; i++ {
		rider := map[string]string{
			"email": fmt.Sprintf("loadtest-rider-%d-%d@quickhop.example", i, rand.Intn(1000000)),
			"name":  fmt.Sprintf("LoadTest Rider %d", i),
			"role":  "rider",
			"phone": fmt.Sprintf("98%08d", rand.Intn(100000000)),
		}
		body, _ := json.Marshal(rider)
		resp, err := http.Post(baseURL+"/v1/profiles", "application/json", bytes.NewBuffer(body))
		if err != nil {
			continue
		}
		defer resp.Body.Close()

		if resp.StatusCode == 201 {
			var result map[string]interface{}
			json.NewDecoder(resp.Body).Decode(&result)
			if id, ok := result["id"].(string); ok {
				riderIDs = append(riderIDs, id)
			}
		}
	}

	return businessIDs, riderIDs
}

func testDeliveryCreation(businessIDs []string, numRequests, concurrency int) (*Stats, []string) {
	stats := &Stats{MinLatency: int64(^uint64(0) >> 1)}
	requestIDs := make([]string, 0)
	var mu sync.Mutex
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, concurrency)

	for i := 0; i < numRequests; i++ {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(businessID string, n int) {
			defer wg.Done()
			defer func() { <-semaphore }()

			payload := map[string]interface{}{
				"business_id":    businessID,
				"pickup_address": fmt.Sprintf("%d MG Road", 1+rand.Intn(200)),
				"drop_offs": []map[string]string{
					{
						"customer_name":  fmt.Sprintf("LoadTest Customer %d", n),
						"customer_phone": fmt.Sprintf("91%08d", rand.Intn(100000000)),
						"address":        fmt.Sprintf("%d Church Street", 1+rand.Intn(200)),
					},
				},
			}
			body, _ := json.Marshal(payload)

			start := time.Now()
			resp, err := http.Post(baseURL+"/v1/deliveries", "application/json", bytes.NewBuffer(body))
			latency := time.Since(start).Milliseconds()

			recordLatency(stats, latency)
			if err != nil {
				atomic.AddInt64(&stats.FailedRequests, 1)
				return
			}
			defer resp.Body.Close()

			if resp.StatusCode == 201 {
				atomic.AddInt64(&stats.SuccessRequests, 1)

				var result struct {
					Request struct {
						ID string `json:"id"`
					} `json:"request"`
				}
				json.NewDecoder(resp.Body).Decode(&result)
				if result.Request.ID != "" {
					mu.Lock()
					requestIDs = append(requestIDs, result.Request.ID)
					mu.Unlock()
				}
			} else {
				atomic.AddInt64(&stats.FailedRequests, 1)
			}
		}(businessIDs[rand.Intn(len(businessIDs))], i)
	}

	wg.Wait()
	return stats, requestIDs
}

func testClaimContention(requestIDs, riderIDs []string) {
	var singleWinner, multiWinner, noWinner int64

	// A rider that wins one race goes busy and stops being eligible, so
	// contend on a handful of requests with fresh rider pools.
	numRaces := 10
	if len(requestIDs) < numRaces {
		numRaces = len(requestIDs)
	}
	ridersPerRace := len(riderIDs) / numRaces
	if ridersPerRace < 2 {
		ridersPerRace = 2
	}

	for race := 0; race < numRaces; race++ {
		requestID := requestIDs[race]
		var wins int64
		var wg sync.WaitGroup

		for r := 0; r < ridersPerRace; r++ {
			riderID := riderIDs[(race*ridersPerRace+r)%len(riderIDs)]
			wg.Add(1)

			go func(riderID string) {
				defer wg.Done()

				payload := map[string]string{"rider_id": riderID}
				body, _ := json.Marshal(payload)
				resp, err := http.Post(baseURL+"/v1/requests/"+requestID+"/accept", "application/json", bytes.NewBuffer(body))
				if err != nil {
					return
				}
				defer resp.Body.Close()

				if resp.StatusCode == 200 {
					atomic.AddInt64(&wins, 1)
				}
			}(riderID)
		}
		wg.Wait()

		switch wins {
		case 1:
			singleWinner++
		case 0:
			noWinner++
		default:
			multiWinner++
		}
	}

	fmt.Printf("  Races with exactly one winner: %d/%d\n", singleWinner, numRaces)
	fmt.Printf("  Races with no winner:          %d\n", noWinner)
	fmt.Printf("  Races with multiple winners:   %d  (must be 0)\n", multiWinner)
}

func testRequestListing(numRequests, concurrency int) *Stats {
	stats := &Stats{MinLatency: int64(^uint64(0) >> 1)}
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, concurrency)

	for i := 0; i < numRequests; i++ {
		wg.Add(1)
		semaphore <- struct{}{}

		go func() {
			defer wg.Done()
			defer func() { <-semaphore }()

			start := time.Now()
			resp, err := http.Get(baseURL + "/v1/requests")
			latency := time.Since(start).Milliseconds()

			recordLatency(stats, latency)
			if err != nil {
				atomic.AddInt64(&stats.FailedRequests, 1)
				return
			}
			resp.Body.Close()

			if resp.StatusCode == 200 {
				atomic.AddInt64(&stats.SuccessRequests, 1)
			} else {
				atomic.AddInt64(&stats.FailedRequests, 1)
			}
		}()
	}

	wg.Wait()
	return stats
}

func recordLatency(stats *Stats, latency int64) {
	atomic.AddInt64(&stats.TotalRequests, 1)
	atomic.AddInt64(&stats.TotalLatency, latency)

	for {
		min := atomic.LoadInt64(&stats.MinLatency)
		if latency >= min || atomic.CompareAndSwapInt64(&stats.MinLatency, min, latency) {
			break
		}
	}
	for {
		max := atomic.LoadInt64(&stats.MaxLatency)
		if latency <= max || atomic.CompareAndSwapInt64(&stats.MaxLatency, max, latency) {
			break
		}
	}
}

func printStats(name string, stats *Stats) {
	total := atomic.LoadInt64(&stats.TotalRequests)
	if total == 0 {
		fmt.Printf("  %s: no requests completed\n", name)
		return
	}
	avg := atomic.LoadInt64(&stats.TotalLatency) / total

	fmt.Printf("  %s Results:\n", name)
	fmt.Printf("    Total:   %d\n", total)
	fmt.Printf("    Success: %d\n", atomic.LoadInt64(&stats.SuccessRequests))
	fmt.Printf("    Failed:  %d\n", atomic.LoadInt64(&stats.FailedRequests))
	fmt.Printf("    Latency: avg=%dms min=%dms max=%dms\n", avg, atomic.LoadInt64(&stats.MinLatency), atomic.LoadInt64(&stats.MaxLatency))
}
