package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shaunagostinho/ld19-scope/internal/ld19"
	"github.com/shaunagostinho/ld19-scope/internal/scan"
	"github.com/shaunagostinho/ld19-scope/internal/server"
	"github.com/shaunagostinho/ld19-scope/web"
)

// readerJoinTimeout bounds how long shutdown waits for the reader goroutine.
const readerJoinTimeout = time.Second

func main() {
	configPath := flag.String("config", "/etc/ld19scope/config.yaml", "Path to config file")
	demo := flag.Bool("demo", false, "Run with a simulated LD19 stream")
	listenAddr := flag.String("listen", "", "Override listen address (e.g. :8080)")
	listPorts := flag.Bool("list-ports", false, "List serial ports and exit")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	if *listPorts {
		ports, err := ld19.ListPorts()
		if err != nil {
			log.Fatalf("[main] %v", err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	log.Println("[main] ld19scope starting")

	cfg := server.LoadConfig(*configPath)
	if *demo {
		cfg.Lidar.Type = "demo"
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[main] %v", err)
	}

	run := ld19.NewRunFlag()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %v, shutting down", sig)
		run.Stop()
		cancel()
	}()

	// One reader feeds both views; each route has its own filter and buffer.
	src := server.Sources{Run: run}
	var routes []*ld19.Route
	if cfg.Cloud.Enabled {
		buf, err := scan.New[ld19.Sample](cfg.CloudBuffer())
		if err != nil {
			log.Fatalf("[main] cloud buffer: %v", err)
		}
		src.Cloud = buf
		routes = append(routes, &ld19.Route{Name: "cloud", Filter: ld19.ValidOnly(), Sink: buf})
	}
	if cfg.Radar.Enabled {
		buf, err := scan.New[ld19.Sample](cfg.RadarBuffer())
		if err != nil {
			log.Fatalf("[main] radar buffer: %v", err)
		}
		src.Radar = buf
		routes = append(routes, &ld19.Route{Name: "radar", Filter: cfg.RadarFilter(), Sink: buf})
	}

	var open ld19.Opener = ld19.OpenSerial
	if cfg.Lidar.Type == "demo" {
		open = ld19.OpenDemo
	}
	reader := ld19.NewReader(cfg.ReaderConfig(), open, run, routes...)
	src.Reader = reader.Stats

	// The viewer keeps serving even if the sensor is missing or dies.
	readerDone := make(chan struct{})
	if err := reader.Connect(); err != nil {
		log.Printf("[main] lidar unavailable: %v", err)
		close(readerDone)
	} else {
		go func() {
			defer close(readerDone)
			if err := reader.Run(); err != nil {
				log.Printf("[main] reader exited: %v", err)
			}
		}()
	}

	srv := server.New(cfg, src, web.FS)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("[main] server exited: %v", err)
	}

	run.Stop()
	select {
	case <-readerDone:
	case <-time.After(readerJoinTimeout):
		log.Printf("[main] reader did not stop within %v, exiting anyway", readerJoinTimeout)
	}
	log.Println("[main] exiting")
}
