package queue

import (
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/codebuildervaibhav/whisper-session/internal/types"
)

// ErrStopped is returned by Enqueue after Stop
var ErrStopped = errors.New("pipeline stopped")

// Archiver saves a result locally and returns where it was written
type Archiver interface {
	SaveResult(result *types.TranscriptionResult) (string, error)
}

// Uploader copies a result to remote storage and returns a link to it
type Uploader interface {
	Upload(result *types.TranscriptionResult) (string, error)
}

// Recorder stores result metadata
type Recorder interface {
	SaveResult(result *types.TranscriptionResult, wordCount int, localPath, gdriveURL string) error
}

// Sink receives every archived result
type Sink interface {
	Handle(result types.TranscriptionResult)
}

// Stages are the optional steps of the pipeline. A nil stage is skipped.
type Stages struct {
	Local    Archiver
	Drive    Uploader
	Metadata Recorder
	Sink     Sink
}

const uploadAttempts = 3

// Pipeline archives completed results on a pool of workers
type Pipeline struct {
	jobQueue    chan *Job
	workerCount int
	stages      Stages

	// backoff is the wait after a failed upload attempt
	backoff func(attempt int) time.Duration

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// NewPipeline creates a new result pipeline
func NewPipeline(workerCount int, stages Stages) *Pipeline {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pipeline{
		jobQueue:    make(chan *Job, 100),
		workerCount: workerCount,
		stages:      stages,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * time.Second
		},
	}
}

// Start launches the workers
func (p *Pipeline) Start() {
	log.Printf("Starting result pipeline with %d workers", p.workerCount)
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Enqueue schedules result for archiving. It never blocks the caller for
// longer than it takes to buffer the job.
func (p *Pipeline) Enqueue(result types.TranscriptionResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}

	job := NewJob(result)
	select {
	case p.jobQueue <- job:
	default:
		return fmt.Errorf("pipeline queue full, dropping result %s", job.ID)
	}
	log.Printf("Result %s enqueued (session %d)", job.ID, result.Session)
	return nil
}

// Stop drains queued jobs and waits for the workers to exit
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobQueue)
	p.mu.Unlock()

	p.wg.Wait()
	log.Println("Result pipeline stopped")
}

// worker processes jobs from the queue
func (p *Pipeline) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobQueue {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("Worker %d: PANIC processing result %s: %v\n%s",
						id, job.ID, r, string(debug.Stack()))
					job.Status = StatusFailed
					job.Error = fmt.Errorf("worker panic: %v", r)
				}
			}()

			p.processJob(id, job)
		}()
	}
}

// processJob runs every configured stage for one result
func (p *Pipeline) processJob(workerID int, job *Job) {
	job.Status = StatusProcessing
	result := job.Result

	// Step 1: Save locally. The remaining stages do not need the file.
	if p.stages.Local != nil {
		localPath, err := p.stages.Local.SaveResult(result)
		if err != nil {
			log.Printf("Worker %d: Local save failed for result %s: %v", workerID, job.ID, err)
			job.Error = fmt.Errorf("local save failed: %v", err)
		} else {
			job.LocalPath = localPath
		}
	}

	// Step 2: Upload to Google Drive (with retry)
	if p.stages.Drive != nil {
		var err error
		for attempt := 1; attempt <= uploadAttempts; attempt++ {
			var url string
			url, err = p.stages.Drive.Upload(result)
			if err == nil {
				job.GDriveURL = url
				break
			}
			log.Printf("Worker %d: Google Drive upload attempt %d/%d failed: %v", workerID, attempt, uploadAttempts, err)
			if attempt < uploadAttempts {
				time.Sleep(p.backoff(attempt))
			}
		}
		if err != nil {
			log.Printf("Worker %d: WARNING - Google Drive upload failed after %d attempts, continuing with local save only",
				workerID, uploadAttempts)
		}
	}

	// Step 3: Save metadata to database
	if p.stages.Metadata != nil {
		wordCount := len(strings.Fields(result.Text))
		if err := p.stages.Metadata.SaveResult(result, wordCount, job.LocalPath, job.GDriveURL); err != nil {
			log.Printf("Worker %d: Database save failed: %v", workerID, err)
		}
	}

	// Step 4: Hand off to the completion sink
	if p.stages.Sink != nil {
		p.stages.Sink.Handle(*result)
	}

	if job.Error != nil {
		job.Status = StatusFailed
		log.Printf("Worker %d: Result %s processed with errors: %v", workerID, job.ID, job.Error)
		return
	}

	job.Status = StatusCompleted
	log.Printf("Worker %d: Result %s archived (local: %s, gdrive: %s)",
		workerID, job.ID, job.LocalPath, job.GDriveURL)
}
