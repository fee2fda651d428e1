package storagemonitor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shirou/gopsutil/disk"
)

// StorageLimitEvent represents the data sent when the storage limit is hit.
type StorageLimitEvent struct {
	Message     string
	UsedPercent float64
}

// EventBroker handles the subscription and broadcasting of storage limit events.
type EventBroker struct {
	subscribers []chan StorageLimitEvent
	mu          sync.Mutex
}

// NewEventBroker initializes a new EventBroker.
func NewEventBroker() *EventBroker {
	return &EventBroker{}
}

// Subscribe adds a new subscriber to the broker.
func (b *EventBroker) Subscribe() chan StorageLimitEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan StorageLimitEvent, 1) // Buffered channel
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Broadcast sends the event to all subscribers.
func (b *EventBroker) Broadcast(event StorageLimitEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, subscriber := range b.subscribers {
		// Non-blocking send with select
		select {
		case subscriber <- event:
		default:
			fmt.Println("Warning: subscriber channel is full. Event not sent.")
		}
	}
}

// Monitor watches the disk holding the capture spool directory and broadcasts
// an event when usage crosses the threshold. Capture writers subscribe and
// stop spooling until usage recovers.
type Monitor struct {
	Path      string
	Threshold float64
	Interval  time.Duration
	Broker    *EventBroker
}

// NewMonitor creates a Monitor for the given path. Threshold is a percentage
// between 0 and 100.
func NewMonitor(path string, threshold float64, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Monitor{
		Path:      path,
		Threshold: threshold,
		Interval:  interval,
		Broker:    NewEventBroker(),
	}
}

// CheckOnce reads the current disk usage for the monitored path. It returns
// the used percentage and whether it exceeds the threshold.
func (m *Monitor) CheckOnce() (float64, bool, error) {
	usage, err := disk.Usage(m.Path)
	if err != nil {
		return 0, false, err
	}
	return usage.UsedPercent, usage.UsedPercent > m.Threshold, nil
}

// Start runs the usage check on a ticker until the context is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			usedPercent, over, err := m.CheckOnce()
			if err != nil {
				log.Printf("Error getting disk usage: %v", err)
				continue
			}
			if over {
				m.Broker.Broadcast(StorageLimitEvent{
					Message:     fmt.Sprintf("Disk usage %.2f%% exceeds threshold %.2f%%", usedPercent, m.Threshold),
					UsedPercent: usedPercent,
				})
			}
		}
	}
}

// StartLoggerSubscriber logs every storage limit event the broker emits.
func StartLoggerSubscriber(broker *EventBroker) {
	logSub := broker.Subscribe()
	go func() {
		for event := range logSub {
			log.Printf("Logger: %s\n", event.Message)
		}
	}()
}
