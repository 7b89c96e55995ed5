package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	replayLimit = 1000
	replayTTL   = 24 * time.Hour
)

type Event struct {
	ID   int64       `json:"id"`
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type subscriber struct {
	ch chan Event
}

// Hub fans activity events out to live subscribers per project and keeps a
// bounded replay buffer in redis for reconnecting clients.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[uint][]*subscriber // projectID -> subscribers
	closed      bool

	// publishing holds one lock per project so IDs reach subscribers in order.
	publishMu  sync.Mutex
	publishing map[uint]*sync.Mutex

	rdb *redis.Client
}

func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		subscribers: make(map[uint][]*subscriber),
		publishing:  make(map[uint]*sync.Mutex),
		rdb:         rdb,
	}
}

func (h *Hub) projectLock(projectID uint) *sync.Mutex {
	h.publishMu.Lock()
	defer h.publishMu.Unlock()
	l, ok := h.publishing[projectID]
	if !ok {
		l = &sync.Mutex{}
		h.publishing[projectID] = l
	}
	return l
}

func streamKey(projectID uint) string { return fmt.Sprintf("activity:stream:%d", projectID) }
func seqKey(projectID uint) string    { return fmt.Sprintf("activity:stream:%d:seq", projectID) }

func (h *Hub) Subscribe(projectID uint) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &subscriber{ch: make(chan Event, 256)}
	if h.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	h.subscribers[projectID] = append(h.subscribers[projectID], sub)

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			subs := h.subscribers[projectID]
			for i, s := range subs {
				if s == sub {
					h.subscribers[projectID] = append(subs[:i], subs[i+1:]...)
					close(sub.ch)
					break
				}
			}
			if len(h.subscribers[projectID]) == 0 {
				delete(h.subscribers, projectID)
			}
		})
	}
	return sub.ch, unsub
}

// Close ends every live subscription; their channels are closed and later
// subscriptions get a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for projectID, subs := range h.subscribers {
		for _, sub := range subs {
			close(sub.ch)
		}
		delete(h.subscribers, projectID)
	}
}

// Broadcast stamps the event with the next sequence number, appends it to the
// replay buffer and delivers it to live subscribers. Broadcasts for one project
// are serialized, so subscribers see IDs in increasing order. An event whose
// sequence number could not be allocated goes out with ID 0 and is not
// buffered. Slow subscribers drop events.
func (h *Hub) Broadcast(ctx context.Context, projectID uint, eventType string, data interface{}) Event {
	ev := Event{Type: eventType, Data: data}

	lock := h.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	id, err := h.rdb.Incr(ctx, seqKey(projectID)).Result()
	if err != nil {
		zap.L().Warn("activity stream sequence failed", zap.Uint("project_id", projectID), zap.Error(err))
	} else {
		ev.ID = id
		payload, _ := json.Marshal(ev)
		key := streamKey(projectID)
		pipe := h.rdb.TxPipeline()
		pipe.RPush(ctx, key, string(payload))
		pipe.LTrim(ctx, key, -replayLimit, -1)
		pipe.Expire(ctx, key, replayTTL)
		pipe.Expire(ctx, seqKey(projectID), replayTTL)
		if _, err := pipe.Exec(ctx); err != nil {
			zap.L().Warn("activity stream append failed", zap.Uint("project_id", projectID), zap.Error(err))
		}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subscribers[projectID] {
		select {
		case sub.ch <- ev:
		default:
			// drop if full
		}
	}
	return ev
}

// ReplayAfter returns buffered events with an ID greater than lastID.
func (h *Hub) ReplayAfter(ctx context.Context, projectID uint, lastID int64) ([]Event, error) {
	items, err := h.rdb.LRange(ctx, streamKey(projectID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(items))
	for _, item := range items {
		var ev Event
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			continue
		}
		if ev.ID > lastID {
			events = append(events, ev)
		}
	}
	return events, nil
}

func ParseLastEventID(header string) int64 {
	if header == "" {
		return 0
	}
	id, _ := strconv.ParseInt(header, 10, 64)
	return id
}
