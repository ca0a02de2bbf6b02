package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queue key names. The processing queue holds events popped but not yet
// acknowledged; stuck entries are requeued by the timeout loop.
const (
	mainQueueName       = "lunchvote:events"
	processingQueueName = "lunchvote:events:processing"
	deadLetterQueueName = "lunchvote:events:dead"
	retriesHashName     = "lunchvote:events:retries"
)

// redisQueue is a Redis-list-backed event queue with at-least-once delivery
// and a dead letter queue for events that keep failing.
type redisQueue struct {
	client            *redis.Client
	ctx               context.Context
	handler           Handler
	running           bool
	stopChan          chan struct{}
	wg                sync.WaitGroup
	processingTimeout time.Duration
	retryDelay        time.Duration
	maxRetries        int
}

func newRedisQueue(client *redis.Client) *redisQueue {
	return &redisQueue{
		client:            client,
		ctx:               context.Background(),
		stopChan:          make(chan struct{}),
		processingTimeout: time.Minute,
		retryDelay:        5 * time.Second,
		maxRetries:        3,
	}
}

func (q *redisQueue) registerHandler(handler Handler) {
	q.handler = handler
}

func (q *redisQueue) push(event Event) error {
	data, err := marshalEvent(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %v", err)
	}
	if err := q.client.LPush(q.ctx, mainQueueName, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue event: %v", err)
	}
	return nil
}

func (q *redisQueue) start() error {
	if q.handler == nil {
		return fmt.Errorf("handler not registered")
	}
	if q.running {
		return nil
	}
	q.running = true

	q.wg.Add(2)
	go q.consumeLoop()
	go q.timeoutCheckLoop()

	log.Println("redis event queue consumer started")
	return nil
}

func (q *redisQueue) stop() {
	if !q.running {
		return
	}
	close(q.stopChan)
	q.wg.Wait()
	q.running = false
	log.Println("redis event queue consumer stopped")
}

func (q *redisQueue) consumeLoop() {
	defer q.wg.Done()
	for {
		select {
		case <-q.stopChan:
			return
		default:
			// Atomic pop-and-park so a crashed consumer never loses
			// the event.
			result, err := q.client.BRPopLPush(q.ctx, mainQueueName, processingQueueName, time.Second).Result()
			if err != nil {
				if err != redis.Nil {
					log.Printf("failed to pop event: %v", err)
				}
				continue
			}
			q.processMessage(result)
		}
	}
}

func (q *redisQueue) timeoutCheckLoop() {
	defer q.wg.Done()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-q.stopChan:
			return
		case <-ticker.C:
			q.requeueStuck()
		}
	}
}

// requeueStuck moves events that sat in the processing queue past the
// timeout back to the main queue, or to the dead letter queue once they
// exhaust their retries.
func (q *redisQueue) requeueStuck() {
	messages, err := q.client.LRange(q.ctx, processingQueueName, 0, -1).Result()
	if err != nil {
		log.Printf("failed to inspect processing queue: %v", err)
		return
	}

	now := time.Now().Unix()
	for _, msgData := range messages {
		var event Event
		if err := json.Unmarshal([]byte(msgData), &event); err != nil {
			q.moveToDeadLetter(msgData)
			continue
		}
		if now-event.Timestamp <= int64(q.processingTimeout.Seconds()) {
			continue
		}

		retries, _ := q.client.HGet(q.ctx, retriesHashName, event.MessageID).Int()
		if retries >= q.maxRetries {
			log.Printf("event %s exhausted retries, moving to dead letter queue", event.MessageID)
			q.moveToDeadLetter(msgData)
			continue
		}

		q.client.HIncrBy(q.ctx, retriesHashName, event.MessageID, 1)
		event.Timestamp = now
		updated, _ := json.Marshal(event)
		q.client.LRem(q.ctx, processingQueueName, 1, msgData)
		q.client.LPush(q.ctx, mainQueueName, updated)
	}
}

func (q *redisQueue) processMessage(msgData string) {
	var event Event
	if err := json.Unmarshal([]byte(msgData), &event); err != nil {
		log.Printf("failed to decode event: %v", err)
		q.moveToDeadLetter(msgData)
		return
	}

	if err := q.handler(event); err != nil {
		log.Printf("event handler failed for %s: %v", event.MessageID, err)

		retries, _ := q.client.HGet(q.ctx, retriesHashName, event.MessageID).Int()
		if retries >= q.maxRetries {
			q.moveToDeadLetter(msgData)
			return
		}
		q.client.HIncrBy(q.ctx, retriesHashName, event.MessageID, 1)
		event.Timestamp = time.Now().Unix()
		updated, _ := json.Marshal(event)
		q.client.LRem(q.ctx, processingQueueName, 1, msgData)
		time.AfterFunc(q.retryDelay, func() {
			q.client.LPush(q.ctx, mainQueueName, updated)
		})
		return
	}

	q.client.LRem(q.ctx, processingQueueName, 1, msgData)
	q.client.HDel(q.ctx, retriesHashName, event.MessageID)
}

func (q *redisQueue) moveToDeadLetter(msgData string) {
	q.client.LPush(q.ctx, deadLetterQueueName, msgData)
	q.client.LRem(q.ctx, processingQueueName, 1, msgData)
}

// QueueStats reports the queue depths, surfaced on the status endpoint.
func (q *redisQueue) queueStats() map[string]int64 {
	stats := make(map[string]int64)
	mainLen, _ := q.client.LLen(q.ctx, mainQueueName).Result()
	procLen, _ := q.client.LLen(q.ctx, processingQueueName).Result()
	deadLen, _ := q.client.LLen(q.ctx, deadLetterQueueName).Result()
	stats["main_queue"] = mainLen
	stats["processing_queue"] = procLen
	stats["dead_letter_queue"] = deadLen
	return stats
}

// Stats exposes queue depths from the bus, nil when running in-process.
func (b *EventBus) Stats() map[string]int64 {
	if b.redisQueue == nil {
		return nil
	}
	return b.redisQueue.queueStats()
}
