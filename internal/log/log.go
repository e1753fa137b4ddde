package log

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
)

// EnvLevel overrides the configured level when set, e.g.
// PAGE_TRACKER_LOG=debug page-tracker serve
const EnvLevel = "PAGE_TRACKER_LOG"

// InitLogger installs a CompactHandler writing to w on the apex default
// logger and returns it. The level comes from EnvLevel when set,
// otherwise from level.
func InitLogger(level string, w io.Writer) (log.Interface, error) {
	if env := strings.TrimSpace(os.Getenv(EnvLevel)); env != "" {
		level = env
	}
	parsed, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, err
	}

	logger := &log.Logger{
		Handler: NewCompactHandler(w),
		Level:   parsed,
	}
	log.Log = logger
	return logger, nil
}

// CompactHandler writes one line per entry:
//
//	2006-01-02 15:04:05 I message key=value key=value
//
// Fields are sorted by name so lines are stable.
type CompactHandler struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

func NewCompactHandler(w io.Writer) *CompactHandler {
	if w == nil {
		w = os.Stderr
	}
	return &CompactHandler{w: w, now: time.Now}
}

// HandleLog implements the log.Handler interface
func (h *CompactHandler) HandleLog(e *log.Entry) error {
	var b strings.Builder
	timestamp := h.now().Format("2006-01-02 15:04:05")
	level := strings.ToUpper(e.Level.String())
	fmt.Fprintf(&b, "%s %.1s %s", timestamp, level, e.Message)

	names := e.Fields.Names()
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, " %s=%v", name, formatValue(e.Fields.Get(name)))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func formatValue(v interface{}) string {
	s := fmt.Sprint(v)
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return fmt.Sprintf("%q", s)
	}
	return s
}
