package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/Mavahu/opacity-go/progress"
)

// formatter colors terminal output unless NO_COLOR is set or stdout is not
// a terminal.
type formatter struct {
	color *color.Color
}

func (f formatter) Sprint(a ...any) string {
	text := fmt.Sprint(a...)
	if noColor() {
		return text
	}
	return f.color.Sprint(text)
}

func noColor() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return true
	}
	return color.NoColor
}

var (
	successText = formatter{color.New(color.FgGreen)}
	errorText   = formatter{color.New(color.FgRed)}
	warningText = formatter{color.New(color.FgYellow)}
	pathText    = formatter{color.New(color.FgCyan)}
	dimText     = formatter{color.New(color.Faint)}
)

// out returns the writer commands print to.
func (a *app) out() io.Writer {
	if a.stdout != nil {
		return a.stdout
	}
	return os.Stdout
}

// readSecret prompts on stderr and reads without echo from a terminal. A
// piped stdin is read up to the first newline.
func readSecret(in io.Reader, prompt string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(os.Stderr, prompt)
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read handle: %w", err)
		}
		return strings.TrimSpace(string(secret)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read handle: %w", err)
	}
	return strings.TrimSpace(line), nil
}

var pastTense = map[progress.Op]string{
	progress.Upload:   "uploaded",
	progress.Download: "downloaded",
	progress.Delete:   "deleted",
	progress.Move:     "moved",
}

type activeItem struct {
	name    string
	percent int
}

// spinnerSink renders progress events: a spinner for work in flight and one
// line per finished or failed item.
type spinnerSink struct {
	out   io.Writer
	label string
	spin  *spinner.Spinner

	mu     sync.Mutex
	active map[string]*activeItem
	order  []string
}

var _ progress.Sink = (*spinnerSink)(nil)

func newSpinnerSink(out io.Writer, label string, animate bool) *spinnerSink {
	s := &spinnerSink{out: out, label: label, active: make(map[string]*activeItem)}
	if animate {
		sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
		_ = sp.Color("cyan")
		s.spin = sp
	}
	return s
}

func (s *spinnerSink) OnInit(op progress.Op, handle, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[handle]; !ok {
		s.order = append(s.order, handle)
	}
	s.active[handle] = &activeItem{name: name}
	s.refreshLocked()
}

func (s *spinnerSink) OnProgress(op progress.Op, handle string, percent int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it, ok := s.active[handle]; ok {
		it.percent = percent
		s.refreshLocked()
	}
}

func (s *spinnerSink) OnFinished(op progress.Op, handle string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := s.removeLocked(handle)
	s.printLocked(fmt.Sprintf("%s %s %s", successText.Sprint("✓"), pastTense[op], pathText.Sprint(name)))
}

func (s *spinnerSink) OnFailed(op progress.Op, handle string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := s.removeLocked(handle)
	s.printLocked(fmt.Sprintf("%s %s %s: %v", errorText.Sprint("✗"), op, pathText.Sprint(name), err))
}

// removeLocked drops handle from the active set and returns its name, or a
// shortened handle when no init event was seen.
func (s *spinnerSink) removeLocked(handle string) string {
	it, ok := s.active[handle]
	if !ok {
		if len(handle) > 12 {
			return handle[:12] + "…"
		}
		return handle
	}
	delete(s.active, handle)
	for i, h := range s.order {
		if h == handle {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return it.name
}

func (s *spinnerSink) refreshLocked() {
	if s.spin == nil {
		return
	}
	if len(s.active) == 0 {
		s.spin.Stop()
		return
	}

	var suffix string
	if len(s.order) == 1 {
		it := s.active[s.order[0]]
		suffix = fmt.Sprintf(" %s %s %d%%", s.label, it.name, it.percent)
	} else {
		total := 0
		for _, it := range s.active {
			total += it.percent
		}
		suffix = fmt.Sprintf(" %s %d items %d%%", s.label, len(s.active), total/len(s.active))
	}
	s.spin.Lock()
	s.spin.Suffix = suffix
	s.spin.Unlock()
	if !s.spin.Active() {
		s.spin.Start()
	}
}

// printLocked writes a line above the spinner.
func (s *spinnerSink) printLocked(line string) {
	if s.spin != nil && s.spin.Active() {
		s.spin.Stop()
		fmt.Fprintln(s.out, line)
		s.refreshLocked()
		return
	}
	fmt.Fprintln(s.out, line)
}

func (s *spinnerSink) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.spin != nil {
		s.spin.Stop()
	}
}

// humanSize formats n bytes with a binary unit.
func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
