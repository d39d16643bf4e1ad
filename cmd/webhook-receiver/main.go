// A tiny receiver for exercising webhook deliveries locally. It stores every
// payload in memory and serves them back for inspection.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type received struct {
	At      time.Time         `json:"received_at"`
	Headers map[string]string `json:"headers"`
	Body    json.RawMessage   `json:"body"`
}

type store struct {
	mu       sync.Mutex
	payloads []received
}

func (s *store) add(p received) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, p)
}

func (s *store) all() []received {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]received, len(s.payloads))
	copy(out, s.payloads)
	return out
}

func (s *store) clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.payloads)
	s.payloads = nil
	return n
}

func main() {
	port := flag.Int("port", 8081, "listen port")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	st := &store{}

	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"payloads": st.all()})
	})
	r.Post("/webhook", func(w http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(req.Body)
		if err != nil || !json.Valid(body) {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		p := received{
			At:      time.Now(),
			Headers: map[string]string{"X-Delivery-ID": req.Header.Get("X-Delivery-ID")},
			Body:    body,
		}
		st.add(p)
		log.Info().Str("delivery_id", p.Headers["X-Delivery-ID"]).Msg("webhook received")
		writeJSON(w, map[string]string{"status": "received"})
	})
	r.Get("/clear", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]int{"cleared": st.clear()})
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Info().Str("addr", addr).Msg("webhook receiver listening")
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
