package logger

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"sort"
	"sync"
	"time"
)

// Publisher ships a digest batch. pkg/kafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

type CollectorConfig struct {
	Interval  time.Duration // flush interval
	MaxGroups int           // distinct groups before an early flush
	Topic     string
	Source    string   // service name stamped on each digest
	GroupBy   []string // field keys that split groups, e.g. "kind", "stage"
	Publisher Publisher
}

// Digest is one group of identical error entries seen during an interval.
type Digest struct {
	Source    string                 `json:"source"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Caller    string                 `json:"caller"`
	Fields    map[string]interface{} `json:"fields"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// Collector folds repeated error logs into periodic digests so a burst of
// identical failures becomes a single message with a count.
type Collector struct {
	cfg    CollectorConfig
	groups map[uint64]*Digest
	mu     sync.Mutex
	wg     sync.WaitGroup
	stop   chan struct{}
	once   sync.Once
	now    func() time.Time
}

func NewCollector(cfg CollectorConfig) *Collector {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.MaxGroups <= 0 {
		cfg.MaxGroups = 100
	}
	c := &Collector{
		cfg:    cfg,
		groups: make(map[uint64]*Digest),
		stop:   make(chan struct{}),
		now:    time.Now,
	}
	c.wg.Add(1)
	go c.loop()
	return c
}

func (c *Collector) Add(level, msg string, fields map[string]interface{}, caller string) {
	key := c.groupKey(level, msg, fields, caller)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if d, ok := c.groups[key]; ok {
		d.Count++
		d.LastSeen = now
	} else {
		kept := make(map[string]interface{}, len(c.cfg.GroupBy))
		for _, k := range c.cfg.GroupBy {
			if v, ok := fields[k]; ok {
				kept[k] = v
			}
		}
		c.groups[key] = &Digest{
			Source:    c.cfg.Source,
			Level:     level,
			Message:   msg,
			Caller:    caller,
			Fields:    kept,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}

	if len(c.groups) >= c.cfg.MaxGroups {
		c.flushLocked()
	}
}

func (c *Collector) groupKey(level, msg string, fields map[string]interface{}, caller string) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%s\x00%s", level, msg, caller)
	for _, k := range c.cfg.GroupBy {
		if v, ok := fields[k]; ok {
			fmt.Fprintf(h, "\x00%s=%v", k, v)
		}
	}
	return h.Sum64()
}

// Pending reports the number of groups awaiting flush.
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.groups)
}

func (c *Collector) loop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.flushLocked()
			c.mu.Unlock()
		case <-c.stop:
			c.mu.Lock()
			batch := c.drainLocked()
			c.mu.Unlock()
			c.publish(batch)
			return
		}
	}
}

func (c *Collector) drainLocked() []Digest {
	if len(c.groups) == 0 {
		return nil
	}
	batch := make([]Digest, 0, len(c.groups))
	for _, d := range c.groups {
		batch = append(batch, *d)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].FirstSeen.Before(batch[j].FirstSeen) })
	c.groups = make(map[uint64]*Digest)
	return batch
}

func (c *Collector) flushLocked() {
	batch := c.drainLocked()
	if batch == nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.publish(batch)
	}()
}

func (c *Collector) publish(batch []Digest) {
	if len(batch) == 0 || c.cfg.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.cfg.Publisher.Publish(ctx, c.cfg.Topic, []byte(c.cfg.Source), batch); err != nil {
		// The logger cannot log its own delivery failures.
		fmt.Fprintf(os.Stderr, "log digest publish failed: %v\n", err)
	}
}

// Close publishes what is pending and waits for in-flight sends.
func (c *Collector) Close() {
	c.once.Do(func() {
		close(c.stop)
		c.wg.Wait()
	})
}
