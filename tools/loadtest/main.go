package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/devaloi/chatrooms/internal/chatapi"
	"github.com/devaloi/chatrooms/internal/domain"
)

func main() {
	origin := flag.String("origin", "http://localhost:8080", "Service origin")
	clients := flag.Int("clients", 10, "Number of concurrent clients")
	messages := flag.Int("messages", 10, "Messages per client")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	c, err := chatapi.New(*origin)
	if err != nil {
		log.Fatal().Err(err).Msg("bad origin")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	room, err := c.CreateRoom(ctx, "loadtest")
	if err != nil {
		log.Fatal().Err(err).Msg("create room")
	}
	log.Info().Int("clients", *clients).Int("messages", *messages).Str("room_id", room.RoomID).Msg("load test starting")

	var (
		connected int64
		sent      int64
		received  int64
		failures  int64
		latencies []time.Duration
		latencyMu sync.Mutex
	)

	start := time.Now()
	var eg errgroup.Group
	for i := 0; i < *clients; i++ {
		eg.Go(func() error {
			user := fmt.Sprintf("user_%d", i)
			s := c.ConnectRoomSocket(room.RoomID, user)
			defer s.Close()
			if err := s.Wait(ctx); err != nil {
				atomic.AddInt64(&failures, 1)
				log.Warn().Err(err).Str("user", user).Msg("connect failed")
				return nil
			}
			atomic.AddInt64(&connected, 1)

			// Own messages echo back; their round trip is the latency sample.
			pending := make(map[string]time.Time)
			var pendingMu sync.Mutex
			readerDone := make(chan struct{})
			go func() {
				defer close(readerDone)
				for msg := range s.Messages() {
					atomic.AddInt64(&received, 1)
					if msg.Username != user {
						continue
					}
					pendingMu.Lock()
					if at, ok := pending[msg.Message]; ok {
						delete(pending, msg.Message)
						latencyMu.Lock()
						latencies = append(latencies, time.Since(at))
						latencyMu.Unlock()
					}
					pendingMu.Unlock()
				}
			}()

			for j := 0; j < *messages; j++ {
				text := fmt.Sprintf("msg %d from %s", j, user)
				pendingMu.Lock()
				pending[text] = time.Now()
				pendingMu.Unlock()
				if err := s.Send(domain.Message{Username: user, Message: text}); err != nil {
					atomic.AddInt64(&failures, 1)
					s.Close()
					<-readerDone
					return nil
				}
				atomic.AddInt64(&sent, 1)
				time.Sleep(10 * time.Millisecond)
			}

			// Wait a bit for remaining messages.
			time.Sleep(500 * time.Millisecond)
			s.Close()
			<-readerDone
			return nil
		})
	}
	_ = eg.Wait()
	elapsed := time.Since(start)

	slices.Sort(latencies)

	fmt.Println("\n=== Load Test Results ===")
	fmt.Printf("Duration:    %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("Clients:     %d connected\n", connected)
	fmt.Printf("Sent:        %d messages\n", sent)
	fmt.Printf("Received:    %d messages\n", received)
	fmt.Printf("Errors:      %d\n", failures)
	if len(latencies) > 0 {
		fmt.Printf("Latency p50: %s\n", percentile(latencies, 50))
		fmt.Printf("Latency p95: %s\n", percentile(latencies, 95))
		fmt.Printf("Latency p99: %s\n", percentile(latencies, 99))
	}
	fmt.Printf("Throughput:  %.0f msgs/sec\n", float64(sent)/elapsed.Seconds())
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
