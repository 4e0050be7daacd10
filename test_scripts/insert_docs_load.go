package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// product is the document shape this load script inserts into the
// "products" collection: a name, a category used for an equality
// probe, a price used for a range probe, and a small embedding vector
// used for a #similar probe.
type product struct {
	Name     string    `json:"name"`
	Category string    `json:"category"`
	Price    float64   `json:"price"`
	Embed    []float64 `json:"embed"`
}

var categories = []string{"books", "tools", "toys", "food", "electronics"}

func generateProduct() product {
	cat := categories[rand.Intn(len(categories))]
	return product{
		Name:     fmt.Sprintf("%s-%06d", cat, rand.Intn(1_000_000)),
		Category: cat,
		Price:    float64(rand.Intn(10000)) / 100,
		Embed:    []float64{rand.Float64(), rand.Float64(), rand.Float64()},
	}
}

// insertBatch posts a batch of products to /create and returns the ids
// the server assigned them, in request order.
func insertBatch(baseURL string, batch []product) ([]uint64, error) {
	body, err := json.Marshal(map[string][]product{"products": batch})
	if err != nil {
		return nil, fmt.Errorf("marshal batch: %w", err)
	}

	resp, err := http.Post(baseURL+"/create", "application/json", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("post /create: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from /create", resp.StatusCode)
	}

	var out struct {
		NewIds map[string][]uint64 `json:"newIds"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode /create response: %w", err)
	}
	return out.NewIds["products"], nil
}

// selectByCategory runs an equality probe against the "category"
// field and reports how many results came back.
func selectByCategory(baseURL, category string) (int, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"collection": "products",
		"query":      map[string]interface{}{"category": category},
	})
	resp, err := http.Post(baseURL+"/select", "application/json", bytes.NewBuffer(body))
	if err != nil {
		return 0, fmt.Errorf("post /select: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode /select response: %w", err)
	}
	return out.Count, nil
}

// bumpPrice applies a #inc update to one product's price, matching it
// by id, and returns how many documents the server says it touched.
func bumpPrice(baseURL string, id uint64, delta float64) (int, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"collection": "products",
		"query":      map[string]interface{}{"id": id},
		"update": map[string]interface{}{
			"#inc": map[string]interface{}{"key": "price", "value": delta},
		},
	})
	resp, err := http.Post(baseURL+"/update", "application/json", bytes.NewBuffer(body))
	if err != nil {
		return 0, fmt.Errorf("post /update: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		EffectedDocuments int `json:"effectedDocuments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode /update response: %w", err)
	}
	return out.EffectedDocuments, nil
}

const insertBatchSize = 25

func run(numProducts int, baseURL string) {
	fmt.Printf("Starting load run: inserting %d products into %s (batches of %d)\n", numProducts, baseURL, insertBatchSize)

	start := time.Now()
	var allIDs []uint64
	inserted, failedBatches := 0, 0

	for inserted < numProducts {
		n := insertBatchSize
		if remaining := numProducts - inserted; n > remaining {
			n = remaining
		}
		batch := make([]product, n)
		for i := range batch {
			batch[i] = generateProduct()
		}

		ids, err := insertBatch(baseURL, batch)
		if err != nil {
			failedBatches++
			fmt.Printf("batch starting at %d failed: %v\n", inserted, err)
		} else {
			allIDs = append(allIDs, ids...)
		}
		inserted += n
	}

	elapsed := time.Since(start)
	fmt.Printf("Insert done: %d products, %d ids returned, %d failed batches, %.1f products/sec\n",
		numProducts, len(allIDs), failedBatches, float64(numProducts)/elapsed.Seconds())

	fmt.Println(strings.Repeat("-", 60))
	for _, cat := range categories {
		count, err := selectByCategory(baseURL, cat)
		if err != nil {
			fmt.Printf("select category=%s failed: %v\n", cat, err)
			continue
		}
		fmt.Printf("category=%-12s matched %d documents\n", cat, count)
	}

	if len(allIDs) > 0 {
		sample := allIDs[rand.Intn(len(allIDs))]
		n, err := bumpPrice(baseURL, sample, 1.50)
		if err != nil {
			fmt.Printf("price bump on id %d failed: %v\n", sample, err)
		} else {
			fmt.Printf("price bump on id %d touched %d document(s)\n", sample, n)
		}
	}
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run test_scripts/insert_docs_load.go <number_of_products> [server_url]")
		fmt.Println("Example: go run test_scripts/insert_docs_load.go 1000 http://localhost:8080")
		os.Exit(1)
	}

	numProducts, err := strconv.Atoi(os.Args[1])
	if err != nil || numProducts <= 0 {
		fmt.Printf("Error: invalid product count %q\n", os.Args[1])
		os.Exit(1)
	}

	baseURL := "http://localhost:8080"
	if len(os.Args) >= 3 {
		baseURL = os.Args[2]
	}

	rand.Seed(time.Now().UnixNano())
	run(numProducts, baseURL)
}
