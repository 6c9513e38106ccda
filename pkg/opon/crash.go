package opon

import (
	"fmt"
	"io"
	"runtime/debug"
	"sync"
)

// CrashReporter prints the flight recorder of the attached Opon when the
// embedding program panics. Install it with Register and a deferred Recover
// at the top of the goroutine running the VM.
type CrashReporter struct {
	mu          sync.Mutex
	w           io.Writer
	once        sync.Once
	installed   bool
	current     *Opon
	snapshotDir string
}

// NewCrashReporter returns a reporter writing to w.
func NewCrashReporter(w io.Writer) *CrashReporter {
	return &CrashReporter{w: w}
}

// SetSnapshotDir makes Report also write a CBOR snapshot into dir.
func (r *CrashReporter) SetSnapshotDir(dir string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshotDir = dir
}

// Register attaches o. The reporter is installed once; later calls only
// replace the attached Opon.
func (r *CrashReporter) Register(o *Opon) {
	r.once.Do(func() {
		r.mu.Lock()
		r.installed = true
		r.mu.Unlock()
	})
	r.mu.Lock()
	r.current = o
	r.mu.Unlock()
}

// Installed reports whether Register has been called.
func (r *CrashReporter) Installed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.installed
}

// Recover must be deferred directly. It reports a panic in progress and
// then re-panics so default crash handling proceeds.
func (r *CrashReporter) Recover() {
	if p := recover(); p != nil {
		r.Report(p)
		panic(p)
	}
}

// Report writes a crash header, the cause and the recorder dump. It returns
// the path of the snapshot file, if one was written.
func (r *CrashReporter) Report(cause any) string {
	r.mu.Lock()
	o, w, dir := r.current, r.w, r.snapshotDir
	r.mu.Unlock()

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== OYEKU'S INTERRUPTION (CRASH DETECTED) ===")
	fmt.Fprintln(w, "\"The divination board trembles...")
	fmt.Fprintln(w, " What followed the cowries reveals the path to failure.\"")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Cause: %v\n", cause)
	if stack := debug.Stack(); len(stack) > 0 {
		fmt.Fprintf(w, "\n%s\n", stack)
	}

	if o == nil {
		fmt.Fprintln(w, "(no opon registered)")
		return ""
	}
	o.Dump(w)

	if dir == "" {
		return ""
	}
	path, err := o.WriteSnapshot(dir, fmt.Sprint(cause))
	if err != nil {
		fmt.Fprintf(w, "snapshot failed: %v\n", err)
		return ""
	}
	fmt.Fprintf(w, "Snapshot written to %s\n", path)
	return path
}
