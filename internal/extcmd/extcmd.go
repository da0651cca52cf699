// Package extcmd implements the operator-facing external command pipe: a
// named FIFO accepting the classic `[<timestamp>] <COMMAND>;<args...>` text
// protocol.
package extcmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
)

// Command is one parsed external command.
type Command struct {
	Timestamp int64
	Name      string
	Args      []string
	Raw       string
}

// Handler processes one external command. Errors are logged, never fatal.
type Handler func(cmd *Command) error

// Processor reads external commands from a named pipe and dispatches them to
// registered handlers.
type Processor struct {
	pipePath string
	mu       sync.RWMutex
	handlers map[string]Handler
	stopChan chan struct{}
	wg       sync.WaitGroup
	log      zerolog.Logger
}

// NewProcessor creates a processor reading from pipePath.
func NewProcessor(pipePath string, log zerolog.Logger) *Processor {
	return &Processor{
		pipePath: pipePath,
		handlers: make(map[string]Handler),
		stopChan: make(chan struct{}),
		log:      log,
	}
}

// RegisterHandler registers a handler for a command name.
func (p *Processor) RegisterHandler(name string, h Handler) {
	p.mu.Lock()
	p.handlers[name] = h
	p.mu.Unlock()
}

// Dispatch invokes the handler registered for name. Other front-ends route
// commands through the same handlers as the pipe.
func (p *Processor) Dispatch(cmd *Command) error {
	p.mu.RLock()
	handler, ok := p.handlers[cmd.Name]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown external command %q", cmd.Name)
	}
	return handler(cmd)
}

// Start creates the FIFO if needed and begins reading in a goroutine.
func (p *Processor) Start() error {
	if _, err := os.Stat(p.pipePath); os.IsNotExist(err) {
		if err := syscall.Mkfifo(p.pipePath, 0660); err != nil {
			return fmt.Errorf("create command pipe %s: %w", p.pipePath, err)
		}
	}
	p.wg.Add(1)
	go p.readLoop()
	return nil
}

// Stop terminates the read loop and waits for it.
func (p *Processor) Stop() {
	close(p.stopChan)
	// Unblock a readLoop stuck in os.Open on the FIFO: a nonblocking
	// write-side open wakes up the blocking read-side open.
	fd, err := syscall.Open(p.pipePath, syscall.O_WRONLY|syscall.O_NONBLOCK, 0)
	if err == nil {
		syscall.Close(fd)
	}
	p.wg.Wait()
}

func (p *Processor) readLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopChan:
			return
		default:
		}

		f, err := os.Open(p.pipePath)
		if err != nil {
			select {
			case <-p.stopChan:
				return
			default:
				continue
			}
		}

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			select {
			case <-p.stopChan:
				f.Close()
				return
			default:
			}

			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			cmd, err := Parse(line)
			if err != nil {
				p.log.Warn().Err(err).Str("line", line).Msg("bad external command")
				continue
			}
			if err := p.Dispatch(cmd); err != nil {
				p.log.Warn().Err(err).Str("command", cmd.Name).Msg("external command failed")
			}
		}
		f.Close()
	}
}

// Parse parses one command line of the form
// `[<timestamp>] <COMMAND_NAME>;<arg1>;<arg2>;...`.
func Parse(line string) (*Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, fmt.Errorf("empty command")
	}
	if line[0] != '[' {
		return nil, fmt.Errorf("missing timestamp bracket")
	}
	closeBracket := strings.IndexByte(line, ']')
	if closeBracket < 0 {
		return nil, fmt.Errorf("missing closing bracket")
	}

	ts, err := strconv.ParseInt(line[1:closeBracket], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp: %w", err)
	}

	rest := strings.TrimSpace(line[closeBracket+1:])
	cmd := &Command{Timestamp: ts, Raw: line}

	semiIdx := strings.IndexByte(rest, ';')
	if semiIdx < 0 {
		cmd.Name = rest
		return cmd, nil
	}
	cmd.Name = rest[:semiIdx]
	cmd.Args = splitArgs(cmd.Name, rest[semiIdx+1:])
	return cmd, nil
}

// splitArgs splits on semicolons up to the command's expected arity; the
// last argument keeps any semicolons it contains (free-text comments and
// plugin output).
func splitArgs(cmdName, argStr string) []string {
	n := expectedArgCount(cmdName)
	if n <= 0 {
		if argStr == "" {
			return nil
		}
		return []string{argStr}
	}

	args := make([]string, 0, n)
	remaining := argStr
	for i := 0; i < n-1; i++ {
		idx := strings.IndexByte(remaining, ';')
		if idx < 0 {
			args = append(args, remaining)
			return args
		}
		args = append(args, remaining[:idx])
		remaining = remaining[idx+1:]
	}
	return append(args, remaining)
}

func expectedArgCount(cmdName string) int {
	switch cmdName {
	case "ACKNOWLEDGE_HOST_PROBLEM":
		return 6 // host;sticky;notify;persistent;author;comment
	case "ACKNOWLEDGE_SVC_PROBLEM":
		return 7 // host;svc;sticky;notify;persistent;author;comment
	case "REMOVE_HOST_ACKNOWLEDGEMENT":
		return 1
	case "REMOVE_SVC_ACKNOWLEDGEMENT":
		return 2
	case "SCHEDULE_HOST_DOWNTIME":
		return 8 // host;start;end;fixed;trigger;duration;author;comment
	case "SCHEDULE_SVC_DOWNTIME":
		return 9 // host;svc;start;end;fixed;trigger;duration;author;comment
	case "DEL_HOST_DOWNTIME", "DEL_SVC_DOWNTIME":
		return 1
	case "SCHEDULE_FORCED_HOST_CHECK":
		return 2 // host;ts
	case "SCHEDULE_FORCED_SVC_CHECK":
		return 3 // host;svc;ts
	case "PROCESS_HOST_CHECK_RESULT":
		return 3 // host;code;output
	case "PROCESS_SERVICE_CHECK_RESULT":
		return 4 // host;svc;code;output
	case "ENABLE_HOST_CHECK", "DISABLE_HOST_CHECK":
		return 1
	case "ENABLE_SVC_CHECK", "DISABLE_SVC_CHECK":
		return 2
	case "ADD_HOST_COMMENT":
		return 4 // host;persistent;author;comment
	case "ADD_SVC_COMMENT":
		return 5 // host;svc;persistent;author;comment
	case "DEL_HOST_COMMENT", "DEL_SVC_COMMENT":
		return 1
	default:
		return 0
	}
}
