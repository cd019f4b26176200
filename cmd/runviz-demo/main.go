package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"

	testutil "github.com/runviz/runviz/test_util"
)

var (
	port = flag.Int("port", 7600, "Port to serve the demo experiment store on")
	runs = flag.Int("runs", 200, "Number of synthetic runs to generate")
)

func main() {
	flag.Parse()

	store := testutil.NewStore(testutil.GenerateRuns(
		*runs,
		[]float64{1e-4, 3e-4, 1e-3, 3e-3},
		[]string{"adam", "sgd"},
	))

	log.Printf("Serving demo experiment store with %d runs on :%d", *runs, *port)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", *port), store.Handler()); err != nil {
		log.Fatalf("Failed to serve: %s", err)
	}
}
