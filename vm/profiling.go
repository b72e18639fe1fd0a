package vm

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/achronyme/achronyme-core-sub001/opcodes"
)

// DebugLevel controls how much instrumentation the dispatch loop collects
// per instruction. Basic only counts; Detailed also appends human-readable
// debug records (breakpoint hits, watched-variable writes) a host can print.
type DebugLevel int

const (
	DebugLevelNone DebugLevel = iota
	DebugLevelBasic
	DebugLevelDetailed
)

// HotSpot describes an instruction pointer that executed frequently.
type HotSpot struct {
	IP    int
	Count int
}

// Profiler is an optional instrumentation layer a host installs via
// VM.SetProfiler before calling Execute/CallValue. Each Profiler is stamped
// with its own trace id at construction, so a host correlating several VM
// runs (e.g. a REPL evaluating one line at a time) can tell their profiler
// reports and uncaught-exception diagnostics apart.
type Profiler struct {
	traceID string
	level   DebugLevel

	breakpoints map[int]struct{}
	watchVars   map[string]struct{}

	mu                sync.Mutex
	instructionCounts map[int]int
	opcodeCounts      map[opcodes.Opcode]int
	debug             []string
}

// NewProfiler constructs a Profiler at the given debug level, tagged with a
// fresh trace id.
func NewProfiler(level DebugLevel) *Profiler {
	return &Profiler{
		traceID:           uuid.NewString(),
		level:             level,
		breakpoints:       make(map[int]struct{}),
		watchVars:         make(map[string]struct{}),
		instructionCounts: make(map[int]int),
		opcodeCounts:      make(map[opcodes.Opcode]int),
		debug:             make([]string, 0, 64),
	}
}

// TraceID identifies this profiler's run across reports and uncaught
// exceptions raised while it was attached.
func (p *Profiler) TraceID() string { return p.traceID }

func (p *Profiler) SetBreakpoint(ip int) { p.breakpoints[ip] = struct{}{} }

func (p *Profiler) WatchVariable(name string) {
	if name != "" {
		p.watchVars[name] = struct{}{}
	}
}

// onInstruction is called by run() before every opcode dispatch. At
// DebugLevelNone it does nothing; Basic counts instructions and opcodes;
// Detailed additionally records breakpoint hits.
func (p *Profiler) onInstruction(frame *CallFrame) {
	if p.level == DebugLevelNone {
		return
	}
	ip := frame.IP
	op := frame.Proto.Code[ip].Op()

	p.mu.Lock()
	p.instructionCounts[ip]++
	p.opcodeCounts[op]++
	p.mu.Unlock()

	if p.level < DebugLevelDetailed {
		return
	}
	if _, hit := p.breakpoints[ip]; hit {
		p.addDebug(fmt.Sprintf("[%s] breakpoint hit: %s@%d in %s", p.traceID, op, ip, frame.Name))
	}
}

// onFieldWrite lets SetField report a write to a watched
// field name; it is a no-op unless that name was registered via
// WatchVariable and the profiler is at DebugLevelDetailed.
func (p *Profiler) onFieldWrite(name string, frame *CallFrame) {
	if p.level < DebugLevelDetailed {
		return
	}
	if _, watched := p.watchVars[name]; !watched {
		return
	}
	p.addDebug(fmt.Sprintf("[%s] watched field %q written in %s@%d", p.traceID, name, frame.Name, frame.IP))
}

func (p *Profiler) addDebug(message string) {
	p.mu.Lock()
	p.debug = append(p.debug, message)
	p.mu.Unlock()
}

// DebugRecords returns a copy of the accumulated Detailed-level debug log.
func (p *Profiler) DebugRecords() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.debug))
	copy(out, p.debug)
	return out
}

// HotSpots returns the n most-executed instruction pointers, most frequent
// first, ties broken by lower IP. n<=0 returns every IP seen.
func (p *Profiler) HotSpots(n int) []HotSpot {
	p.mu.Lock()
	defer p.mu.Unlock()
	spots := make([]HotSpot, 0, len(p.instructionCounts))
	for ip, count := range p.instructionCounts {
		spots = append(spots, HotSpot{IP: ip, Count: count})
	}
	sort.Slice(spots, func(i, j int) bool {
		if spots[i].Count == spots[j].Count {
			return spots[i].IP < spots[j].IP
		}
		return spots[i].Count > spots[j].Count
	})
	if n <= 0 || n >= len(spots) {
		return spots
	}
	return spots[:n]
}

// Render produces a one-line human-readable summary, the shape `inspect`
// prints alongside a module's disassembly.
func (p *Profiler) Render() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.instructionCounts) == 0 {
		return fmt.Sprintf("[%s] (no profiling data)", p.traceID)
	}
	total := 0
	for _, count := range p.instructionCounts {
		total += count
	}
	return fmt.Sprintf("[%s] instructions executed: %d, unique ips: %d", p.traceID, total, len(p.instructionCounts))
}
