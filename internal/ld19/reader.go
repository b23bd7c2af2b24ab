package ld19

import (
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"
)

// RunFlag is the process-wide running flag shared by the reader and its
// consumers. It starts true and is cleared exactly once.
type RunFlag struct {
	stopped atomic.Bool
}

// NewRunFlag returns a flag in the running state.
func NewRunFlag() *RunFlag { return &RunFlag{} }

// Running reports whether shutdown has not been requested yet.
func (f *RunFlag) Running() bool { return !f.stopped.Load() }

// Stop clears the flag. It returns true only for the call that cleared it.
func (f *RunFlag) Stop() bool { return f.stopped.CompareAndSwap(false, true) }

// Sink receives one packet's worth of accepted samples under a single lock.
// The slice is reused after AppendBatch returns; implementations must copy it.
type Sink interface {
	AppendBatch(samples []Sample)
}

// Route pairs a filter with the buffer that receives what passes it.
type Route struct {
	Name   string
	Filter Filter
	Sink   Sink

	scratch []Sample
}

// Config holds the reader's transport settings.
type Config struct {
	PortPath    string
	BaudRate    int
	ReadTimeout time.Duration
}

// Stats are the reader's running counters.
type Stats struct {
	Packets     uint64 `json:"packets"`
	Samples     uint64 `json:"samples"` // raw samples decoded
	Accepted    uint64 `json:"accepted"`
	FrameMisses uint64 `json:"frameMisses"`
	Anomalies   uint64 `json:"anomalies"`
}

// maxAnomalyLogs caps how many decode anomalies are logged individually.
const maxAnomalyLogs = 10

// Reader owns the serial connection and feeds decoded samples to its routes.
type Reader struct {
	cfg    Config
	open   Opener
	routes []*Route
	run    *RunFlag

	port Port

	packets     atomic.Uint64
	samples     atomic.Uint64
	accepted    atomic.Uint64
	frameMisses atomic.Uint64
	anomalies   atomic.Uint64
}

// NewReader creates a reader. If open is nil OpenSerial is used.
func NewReader(cfg Config, open Opener, run *RunFlag, routes ...*Route) *Reader {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 230400
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 100 * time.Millisecond
	}
	if open == nil {
		open = OpenSerial
	}
	return &Reader{
		cfg:    cfg,
		open:   open,
		routes: routes,
		run:    run,
	}
}

// Connect opens the transport once. There is no retry: on failure the running
// flag is cleared and the error is returned.
func (r *Reader) Connect() error {
	port, err := r.open(r.cfg.PortPath, r.cfg.BaudRate, r.cfg.ReadTimeout)
	if err != nil {
		r.run.Stop()
		if !errors.Is(err, ErrTransport) {
			err = fmt.Errorf("%w: open %s: %v", ErrTransport, r.cfg.PortPath, err)
		}
		return err
	}
	r.port = port
	log.Printf("[ld19] connected to %s", r.cfg.PortPath)
	return nil
}

// Run drives the synchronizer until the running flag is cleared or the
// transport fails. It closes the port on the way out and returns the
// transport error, if any. Connect must have succeeded first.
func (r *Reader) Run() error {
	if r.port == nil {
		r.run.Stop()
		return fmt.Errorf("%w: not connected", ErrTransport)
	}
	defer r.close()

	frames := NewSynchronizer(r.port)
	for r.run.Running() {
		payload, ok, err := frames.Next()
		if err != nil {
			r.run.Stop()
			log.Printf("[ld19] reader stopping: %v", err)
			return err
		}
		if !ok {
			r.frameMisses.Add(1)
			continue
		}
		r.handlePacket(payload)
	}
	return nil
}

func (r *Reader) handlePacket(payload []byte) {
	raw, err := DecodePacket(payload)
	if err != nil {
		if n := r.anomalies.Add(1); n <= maxAnomalyLogs {
			log.Printf("[ld19] dropping packet: %v", err)
		}
		return
	}
	r.packets.Add(1)
	r.samples.Add(SamplesPerPacket)

	for _, rt := range r.routes {
		rt.scratch = rt.Filter.Apply(rt.scratch[:0], raw[:])
		if len(rt.scratch) == 0 {
			continue
		}
		rt.Sink.AppendBatch(rt.scratch)
		r.accepted.Add(uint64(len(rt.scratch)))
	}
}

func (r *Reader) close() {
	if err := r.port.Close(); err != nil {
		log.Printf("[ld19] close %s: %v", r.cfg.PortPath, err)
	}
	st := r.Stats()
	log.Printf("[ld19] port closed (packets=%d, accepted=%d, misses=%d, anomalies=%d)",
		st.Packets, st.Accepted, st.FrameMisses, st.Anomalies)
}

// Stats returns a snapshot of the reader counters. Safe from any goroutine.
func (r *Reader) Stats() Stats {
	return Stats{
		Packets:     r.packets.Load(),
		Samples:     r.samples.Load(),
		Accepted:    r.accepted.Load(),
		FrameMisses: r.frameMisses.Load(),
		Anomalies:   r.anomalies.Load(),
	}
}
