// Command knndb starts the embedded document database behind an HTTP
// API: flag-based configuration, load-on-start, graceful shutdown
// with a final save.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kvindex/knndb/pkg/database"
	"github.com/kvindex/knndb/pkg/server"
)

func main() {
	var (
		apiPort     = flag.String("apiPort", "8080", "API server port")
		apiAddress  = flag.String("apiAddress", "", "API server bind address")
		dataPath    = flag.String("dataPath", "./data", "Data directory for collections")
		maxElements = flag.Int("MAX_ELEMENTS_IN_STORAGE", 50000, "Max live documents per storage segment")
		showHelp    = flag.Bool("help", false, "Show help message")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nknndb is an embedded document database with secondary and ANN indexing.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                  # Start with defaults\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -apiPort 9090 -dataPath /var/knndb\n", os.Args[0])
	}

	flag.Parse()
	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	db := database.New(
		database.WithDataDir(*dataPath),
		database.WithMaxElementsInStorage(*maxElements),
	)

	log.Printf("INFO: loading collections from %s", *dataPath)
	if err := db.Load(); err != nil {
		log.Fatalf("ERROR: could not load data path %s: %v", *dataPath, err)
	}
	db.StartManagerLoop()
	defer db.StopManagerLoop()

	srv := server.New(db)
	addr := *apiAddress + ":" + *apiPort
	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv.Router(),
	}

	go func() {
		log.Printf("INFO: starting knndb server on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ERROR: server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("INFO: shutting down server...")

	log.Printf("INFO: saving collections to %s", *dataPath)
	if err := db.Save(); err != nil {
		log.Printf("ERROR: could not save data path %s: %v", *dataPath, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatal("ERROR: server forced to shutdown:", err)
	}
	log.Println("INFO: server exited")
}
