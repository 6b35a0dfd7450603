package queue

import (
	"context"
	"log"
	"sync"
)

// JobProcessor processes jobs from queues with a fixed worker pool
type JobProcessor struct {
	queue       *RedisQueue
	handlers    map[string]JobHandler
	workerCount int
	stopChan    chan struct{}
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewJobProcessor creates a new JobProcessor
func NewJobProcessor(queue *RedisQueue, workerCount int) *JobProcessor {
	ctx, cancel := context.WithCancel(context.Background())
	return &JobProcessor{
		queue:       queue,
		handlers:    make(map[string]JobHandler),
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// RegisterHandler registers a handler for a specific queue
func (p *JobProcessor) RegisterHandler(queueName string, handler JobHandler) {
	p.handlers[queueName] = handler
}

// Start starts the job processor
func (p *JobProcessor) Start() {
	log.Printf("Starting job processor with %d workers", p.workerCount)

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop stops the job processor and waits for in-flight jobs
func (p *JobProcessor) Stop() {
	log.Println("Stopping job processor")
	close(p.stopChan)
	p.cancel()
	p.wg.Wait()
	log.Println("Job processor stopped")
}

// worker is a goroutine that polls registered queues for jobs
func (p *JobProcessor) worker(id int) {
	defer p.wg.Done()

	queues := make([]string, 0, len(p.handlers))
	for queueName := range p.handlers {
		queues = append(queues, queueName)
	}

	if len(queues) == 0 {
		log.Printf("Worker %d exiting: no queues registered", id)
		return
	}

	for {
		select {
		case <-p.stopChan:
			return
		default:
			for _, queueName := range queues {
				job, err := p.queue.Dequeue(queueName)
				if err != nil {
					log.Printf("Worker %d: failed to dequeue from %s: %v", id, queueName, err)
					continue
				}
				if job == nil {
					continue
				}
				p.processJob(job)
			}
		}
	}
}

func (p *JobProcessor) processJob(job *Job) {
	handler, ok := p.handlers[job.Queue]
	if !ok {
		log.Printf("No handler registered for queue: %s", job.Queue)
		return
	}

	if err := handler(p.ctx, *job); err != nil {
		if failErr := p.queue.Fail(job, err); failErr != nil {
			log.Printf("Failed to record job failure for %s: %v", job.ID, failErr)
		}
		return
	}

	job.Status = JobStatusCompleted
}
