package worker

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os/exec"
	"sync"
	"time"
)

const maxEventLine = 64 * 1024 * 1024

// ProcessConfig describes how to launch the worker process
type ProcessConfig struct {
	Command   string
	Args      []string
	Dir       string
	QueueSize int
}

// ProcessChannel runs the worker as a child process and exchanges
// newline-delimited JSON over its stdin and stdout
type ProcessChannel struct {
	*dispatcher
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	outbound  chan Request
	done      chan struct{}
	exited    chan struct{}
	readers   sync.WaitGroup
	closeOnce sync.Once
}

// StartProcess launches the worker and starts the reader and writer loops
func StartProcess(cfg ProcessConfig) (*ProcessChannel, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("worker command is empty")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 8
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Dir = cfg.Dir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stdin: %v", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stdout: %v", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stderr: %v", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker %s: %v", cfg.Command, err)
	}
	log.Printf("Worker process started: %s (pid %d)", cfg.Command, cmd.Process.Pid)

	pc := &ProcessChannel{
		dispatcher: newDispatcher(),
		cmd:        cmd,
		stdin:      stdin,
		outbound:   make(chan Request, cfg.QueueSize),
		done:       make(chan struct{}),
		exited:     make(chan struct{}),
	}

	pc.readers.Add(2)
	go pc.writeLoop()
	go pc.readLoop(stdout)
	go pc.logStderr(stderr)
	go pc.wait()

	return pc, nil
}

// Send queues a request without blocking
func (pc *ProcessChannel) Send(req Request) error {
	select {
	case <-pc.done:
		return ErrClosed
	case <-pc.exited:
		return ErrClosed
	default:
	}

	select {
	case pc.outbound <- req:
		return nil
	default:
		return ErrQueueFull
	}
}

// OnMessage registers the inbound event handler
func (pc *ProcessChannel) OnMessage(handler func(Event)) {
	pc.setHandler(handler)
}

// Close closes the worker's stdin and waits briefly for it to exit before
// killing it
func (pc *ProcessChannel) Close() error {
	pc.closeOnce.Do(func() {
		close(pc.done)
		pc.stdin.Close()

		select {
		case <-pc.exited:
		case <-time.After(5 * time.Second):
			log.Printf("Worker did not exit in time, killing pid %d", pc.cmd.Process.Pid)
			pc.cmd.Process.Kill()
			<-pc.exited
		}
	})
	return nil
}

func (pc *ProcessChannel) writeLoop() {
	enc := json.NewEncoder(pc.stdin)
	for {
		select {
		case req := <-pc.outbound:
			if err := enc.Encode(req); err != nil {
				log.Printf("Failed to write request for session %d to worker: %v", req.Session, err)
			}
		case <-pc.done:
			return
		case <-pc.exited:
			return
		}
	}
}

// readLoop keeps draining stdout after Close so the worker never blocks on
// a full pipe while shutting down.
func (pc *ProcessChannel) readLoop(stdout io.Reader) {
	defer pc.readers.Done()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 1024*1024), maxEventLine)

	delivering := true
	for scanner.Scan() {
		line := scanner.Bytes()
		if !delivering || len(line) == 0 {
			continue
		}

		ev, err := DecodeEvent(line)
		if err != nil {
			log.Printf("Worker: %v", err)
			continue
		}
		delivering = pc.deliver(ev, pc.done)
	}

	if err := scanner.Err(); err != nil {
		log.Printf("Worker stdout read error: %v", err)
	}
}

func (pc *ProcessChannel) wait() {
	pc.readers.Wait()
	err := pc.cmd.Wait()
	if err != nil {
		log.Printf("Worker process exited: %v", err)
	} else {
		log.Println("Worker process exited")
	}
	close(pc.exited)
}

func (pc *ProcessChannel) logStderr(stderr io.Reader) {
	defer pc.readers.Done()

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		log.Printf("Worker stderr: %s", scanner.Text())
	}
}
