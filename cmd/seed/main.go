// Command seed triggers the one-time initial seeding of the key pools
// through the running API.
//
// Usage:
//
//	KEYFLOW_SEED_SECRET=... go run ./cmd/seed -url https://localhost:8443
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
)

func main() {
	url := flag.String("url", "http://localhost:8443", "base URL of the keyflow API")
	weekly := flag.Int("weekly", 100, "weekly keys to generate")
	monthly := flag.Int("monthly", 50, "monthly keys to generate")
	lifetime := flag.Int("lifetime", 20, "lifetime keys to generate")
	flag.Parse()

	secret := os.Getenv("KEYFLOW_SEED_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "KEYFLOW_SEED_SECRET is required")
		os.Exit(1)
	}

	body, err := json.Marshal(map[string]any{
		"counts": map[string]int{
			"shadow-weekly":   *weekly,
			"shadow-monthly":  *monthly,
			"shadow-lifetime": *lifetime,
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "encoding request: %v\n", err)
		os.Exit(1)
	}

	req, err := http.NewRequest(http.MethodPost, *url+"/admin/seed", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "building request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Secret", secret)

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed request: %v\n", err)
		os.Exit(1)
	}
	defer res.Body.Close()

	out, _ := io.ReadAll(res.Body)
	fmt.Printf("seed result (%s): %s\n", res.Status, out)
	if res.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}
