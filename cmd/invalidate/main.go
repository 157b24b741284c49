// Command invalidate publishes a cache purge event for the facade instances
// consuming the invalidation topic.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/joho/godotenv"

	"github.com/sedn/nbn-facade/internal/core/config"
	"github.com/sedn/nbn-facade/internal/core/model"
	"github.com/sedn/nbn-facade/internal/invalidation"
	"github.com/sedn/nbn-facade/internal/logger"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	kind := flag.String("kind", "", "query kind to purge; empty purges every kind")
	search := flag.String("search", "", "search value prefix; empty purges the whole kind")
	brokers := flag.String("brokers", cfg.Invalidation.Brokers, "comma separated Kafka brokers")
	topic := flag.String("topic", cfg.Invalidation.Topic, "invalidation topic")
	source := flag.String("source", "cli", "source recorded on the event")
	flag.Parse()

	if err := run(*kind, *search, *brokers, *topic, *source); err != nil {
		fmt.Fprintln(os.Stderr, "invalidate:", err)
		os.Exit(1)
	}
}

func run(kind, search, brokers, topic, source string) error {
	ev := invalidation.NewPurge(logger.NewID(), strings.TrimSpace(kind), search, source, time.Now())
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("%w (kinds: %s)", err, kindList())
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	scfg := sarama.NewConfig()
	scfg.Version = sarama.V2_5_0_0
	scfg.Producer.Return.Successes = true
	scfg.Producer.RequiredAcks = sarama.WaitForAll
	prod, err := sarama.NewSyncProducer(config.SplitCSV(brokers), scfg)
	if err != nil {
		return fmt.Errorf("producer create: %w", err)
	}
	defer func() { _ = prod.Close() }()

	part, off, err := prod.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(ev.Label()),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	fmt.Printf("published %s id=%s partition=%d offset=%d\n", ev.Label(), ev.ID, part, off)
	return nil
}

func kindList() string {
	ks := model.Kinds()
	out := make([]string, len(ks))
	for i, k := range ks {
		out[i] = string(k)
	}
	return strings.Join(out, ", ")
}
