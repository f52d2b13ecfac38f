package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"golang.org/x/time/rate"
)

var (
	deviceTypes = []string{"android", "iOS"}
	locales     = []string{"US", "CA", "NY", "IL", "RU", "FR", "BR", "IN"}
	appVersions = []string{"2.3.0", "2.2.1", "2.1.8", "1.9.4"}
)

type loginEvent struct {
	UserID     string `json:"user_id,omitempty"`
	AppVersion string `json:"app_version,omitempty"`
	DeviceType string `json:"device_type,omitempty"`
	IP         string `json:"ip,omitempty"`
	Locale     string `json:"locale,omitempty"`
	DeviceID   string `json:"device_id,omitempty"`
	Timestamp  int64  `json:"timestamp,omitempty"`
}

func main() {
	brokers := flag.String("brokers", "localhost:29092", "Comma-separated Kafka broker addresses")
	topic := flag.String("topic", "user-login", "Target topic")
	concurrency := flag.Int("c", 4, "Number of concurrent workers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the run")
	eps := flag.Int("eps", 500, "Events per second limit")
	dropRate := flag.Float64("drop-rate", 0.1, "Fraction of events with a randomly omitted field")
	flag.Parse()

	log.Printf("Producing synthetic login events to %s (topic %s)", *brokers, *topic)
	log.Printf("Concurrency: %d, Duration: %s, EPS: %d", *concurrency, *duration, *eps)

	writer := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(*brokers, ",")...),
		Topic:        *topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 20 * time.Millisecond,
	}
	defer writer.Close()

	var wg sync.WaitGroup
	var successCount, errorCount atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*eps), 100) // Allow bursts up to 100

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

			for {
				select {
				case <-ctx.Done():
					return
				default:
					if err := limiter.Wait(ctx); err != nil {
						return
					}

					event := randomEvent(rng, *dropRate)
					payload, err := json.Marshal(event)
					if err != nil {
						continue // Should not happen
					}

					err = writer.WriteMessages(ctx, kafka.Message{
						Key:   []byte(event.UserID),
						Value: payload,
					})
					if err != nil {
						errorCount.Add(1)
						continue
					}
					successCount.Add(1)
				}
			}
		}(i)
	}

	wg.Wait()

	log.Printf("Done. Produced: %d, Errors: %d", successCount.Load(), errorCount.Load())
}

func randomEvent(rng *rand.Rand, dropRate float64) loginEvent {
	event := loginEvent{
		UserID:     uuid.NewString(),
		AppVersion: appVersions[rng.Intn(len(appVersions))],
		DeviceType: deviceTypes[rng.Intn(len(deviceTypes))],
		IP:         fmt.Sprintf("%d.%d.%d.%d", rng.Intn(223)+1, rng.Intn(256), rng.Intn(256), rng.Intn(256)),
		Locale:     locales[rng.Intn(len(locales))],
		DeviceID:   uuid.NewString(),
		Timestamp:  time.Now().Unix(),
	}

	// Occasionally omit a field to exercise downstream defaulting.
	if rng.Float64() < dropRate {
		switch rng.Intn(4) {
		case 0:
			event.Locale = ""
		case 1:
			event.AppVersion = ""
		case 2:
			event.DeviceID = ""
		case 3:
			event.Timestamp = 0
		}
	}

	return event
}
