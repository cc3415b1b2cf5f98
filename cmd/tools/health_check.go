package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"curveStatApp/internal/app/dto"
)

// Probes a running instance: exits 0 when /health answers "ok", 1 otherwise.
func main() {
	url := flag.String("url", "http://localhost:8080", "base URL of the service")
	timeout := flag.Duration("timeout", 5*time.Second, "request timeout")
	flag.Parse()

	fmt.Println("curveStatApp Health Check Utility")
	fmt.Println("---------------------------------")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	health, err := checkServiceHealth(ctx, *url+"/health")
	if err != nil {
		log.Fatalf("Health check failed: %v", err)
	}

	fmt.Printf("curve:        %s\n", health.CurveAddress)
	fmt.Printf("rpc:          %s\n", health.RPC)
	fmt.Printf("trades:       %d\n", health.TradesCount)
	fmt.Printf("graduated:    %t\n", health.HasGraduated)

	if health.Status != "ok" {
		fmt.Println("Service is NOT healthy!")
		os.Exit(1)
	}
	fmt.Println("Service is healthy!")
}

func checkServiceHealth(ctx context.Context, url string) (*dto.HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var health dto.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("decode health response: %w", err)
	}
	return &health, nil
}
