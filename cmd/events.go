package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"erp/internal/services"
	"erp/pkg/rabbitmq"

	"github.com/spf13/cobra"
	"github.com/streadway/amqp"
)

// eventsCmd represents the events command
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Consume inventory events from RabbitMQ and log them",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.RabbitMQ.URL == "" {
			return errors.New("RABBITMQ_URL is required")
		}

		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{
			URL:      cfg.RabbitMQ.URL,
			Exchange: cfg.RabbitMQ.Exchange,
			Queue:    cfg.RabbitMQ.Queue,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ client: %w", err)
		}

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		done := make(chan error, 1)
		go func() {
			done <- mqClient.ConsumeInventoryEvents(handleInventoryEvent)
		}()

		select {
		case err := <-done:
			mqClient.Close()
			return err
		case <-quit:
			log.Println("Stopping event consumer...")
			return mqClient.Close()
		}
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}

// handleInventoryEvent logs one inventory event. Bodies that are not
// inventory events are rejected.
func handleInventoryEvent(msg amqp.Delivery) error {
	var event services.InventoryEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		return fmt.Errorf("malformed event: %w", err)
	}
	if event.Type == "" {
		return errors.New("event without type")
	}

	switch event.Type {
	case services.EventLowStock:
		log.Printf("LOW STOCK: item %d %q has %d left (threshold %d)", event.ItemID, event.Name, deref(event.Quantity), event.Threshold)
	case services.EventItemDeleted:
		log.Printf("%s: item %d by %s", event.Type, event.ItemID, actorOrUnknown(event.Actor))
	default:
		log.Printf("%s: item %d %q quantity=%d by %s", event.Type, event.ItemID, event.Name, deref(event.Quantity), actorOrUnknown(event.Actor))
	}
	return nil
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func actorOrUnknown(actor string) string {
	if actor == "" {
		return "unknown"
	}
	return actor
}
