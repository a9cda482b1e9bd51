package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Aman-20/Telegram-bot/internal/logger"
)

// WorkerPool fans inbound updates out to a fixed set of goroutines so a slow
// provider call for one user never blocks the update loop.
type WorkerPool struct {
	bot           *Bot
	messageQueue  chan *tgbotapi.Message
	callbackQueue chan *tgbotapi.CallbackQuery
	workerCount   int

	// Bounds concurrent provider/network operations across all workers.
	opSemaphore chan struct{}

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.RWMutex
}

type WorkerPoolConfig struct {
	Workers          int
	MessageQueueSize int
	MaxConcurrentOps int
}

func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		Workers:          16,
		MessageQueueSize: 100,
		MaxConcurrentOps: 8,
	}
}

func NewWorkerPool(bot *Bot, config WorkerPoolConfig) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		bot:           bot,
		messageQueue:  make(chan *tgbotapi.Message, config.MessageQueueSize),
		callbackQueue: make(chan *tgbotapi.CallbackQuery, config.MessageQueueSize),
		workerCount:   config.Workers,
		opSemaphore:   make(chan struct{}, config.MaxConcurrentOps),
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (wp *WorkerPool) Start() error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.started {
		return fmt.Errorf("worker pool already started")
	}

	logger.Info("Starting worker pool", map[string]interface{}{
		"workers":            wp.workerCount,
		"queue_size":         cap(wp.messageQueue),
		"max_concurrent_ops": cap(wp.opSemaphore),
	})

	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}

	wp.started = true
	return nil
}

// Stop closes the queues and waits for in-flight work to finish.
func (wp *WorkerPool) Stop() error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if !wp.started {
		return fmt.Errorf("worker pool not started")
	}

	close(wp.messageQueue)
	close(wp.callbackQueue)
	wp.cancel()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.InfoMsg("Worker pool stopped gracefully")
	case <-time.After(30 * time.Second):
		return fmt.Errorf("worker pool shutdown timed out")
	}

	wp.started = false
	return nil
}

// SubmitMessage queues a message, dropping it when the queue is full.
func (wp *WorkerPool) SubmitMessage(message *tgbotapi.Message) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if !wp.started {
		return fmt.Errorf("worker pool not started")
	}

	select {
	case wp.messageQueue <- message:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	default:
		logger.Warn("Message queue full, dropping message", map[string]interface{}{
			"chat_id": message.Chat.ID,
		})
		return fmt.Errorf("message queue full")
	}
}

// SubmitCallback queues a callback query, dropping it when the queue is full.
func (wp *WorkerPool) SubmitCallback(callback *tgbotapi.CallbackQuery) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if !wp.started {
		return fmt.Errorf("worker pool not started")
	}

	select {
	case wp.callbackQueue <- callback:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	default:
		logger.Warn("Callback queue full, dropping callback", map[string]interface{}{
			"callback_id": callback.ID,
		})
		return fmt.Errorf("callback queue full")
	}
}

// worker drains both queues until they close. A panic in a handler kills only
// the current item, not the worker.
func (wp *WorkerPool) worker(workerID int) {
	defer wp.wg.Done()

	for {
		select {
		case message, ok := <-wp.messageQueue:
			if !ok {
				return
			}
			wp.runGuarded(workerID, message.Chat.ID, func() error {
				return wp.bot.handleMessage(message)
			})

		case callback, ok := <-wp.callbackQueue:
			if !ok {
				return
			}
			wp.runGuarded(workerID, callback.Message.Chat.ID, func() error {
				return wp.bot.handleCallbackQuery(callback)
			})

		case <-wp.ctx.Done():
			return
		}
	}
}

func (wp *WorkerPool) runGuarded(workerID int, chatID int64, fn func() error) {
	select {
	case wp.opSemaphore <- struct{}{}:
		defer func() { <-wp.opSemaphore }()
	case <-wp.ctx.Done():
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Worker panic recovered", map[string]interface{}{
				"worker_id": workerID,
				"chat_id":   chatID,
				"panic":     r,
			})
		}
	}()

	started := time.Now()
	if err := fn(); err != nil {
		logger.Error("Error processing update", map[string]interface{}{
			"worker_id": workerID,
			"chat_id":   chatID,
			"error":     err.Error(),
		})
		wp.bot.sendResponse(chatID, wp.bot.errorMessage(err))
	}

	logger.Debug("Update processed", map[string]interface{}{
		"worker_id": workerID,
		"chat_id":   chatID,
		"duration":  time.Since(started).String(),
	})
}

// Stats reports queue depth and concurrency for the admin /usage view.
func (wp *WorkerPool) Stats() map[string]interface{} {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	return map[string]interface{}{
		"started":           wp.started,
		"message_queue":     len(wp.messageQueue),
		"callback_queue":    len(wp.callbackQueue),
		"active_operations": len(wp.opSemaphore),
		"workers":           wp.workerCount,
	}
}
