package snippets

import (
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/ormasoftchile/ravenwf/pkg/xmltree"
)

var runInfoID = Identity{Tag: "RunInfo"}

// RunInfo is the <RunInfo> block: job naming, parallelism and the step
// sequence. It has no class and cannot be referenced.
type RunInfo struct{ Base }

// NewRunInfo creates an empty RunInfo block.
func NewRunInfo() RunInfo { return RunInfo{newBase(runInfoID, "")} }

// AsRunInfo wraps an existing <RunInfo> node.
func AsRunInfo(n *xmltree.Node) RunInfo { return RunInfo{wrap(n, runInfoID)} }

// JobName returns the job name, or "".
func (r RunInfo) JobName() string { return r.text("JobName") }

// SetJobName sets the job name.
func (r RunInfo) SetJobName(name string) { r.setText("JobName", name) }

// WorkingDir returns the working directory, or "".
func (r RunInfo) WorkingDir() string { return r.text("WorkingDir") }

// SetWorkingDir sets the working directory.
func (r RunInfo) SetWorkingDir(dir string) { r.setText("WorkingDir", dir) }

// BatchSize returns batchSize and whether it is set.
func (r RunInfo) BatchSize() (int, bool) { return r.intText("batchSize") }

// SetBatchSize sets batchSize.
func (r RunInfo) SetBatchSize(n int) { r.setText("batchSize", n) }

// InternalParallel reports whether internalParallel is set to true.
func (r RunInfo) InternalParallel() bool {
	v, ok := r.lookupText("internalParallel")
	if !ok {
		return false
	}
	b, _ := strconv.ParseBool(strings.TrimSpace(v))
	return b
}

// SetInternalParallel sets internalParallel. Setting false removes the node.
func (r RunInfo) SetInternalParallel(on bool) {
	if !on {
		r.unset("internalParallel")
		return
	}
	r.setText("internalParallel", true)
}

// NumMPI returns NumMPI and whether it is set.
func (r RunInfo) NumMPI() (int, bool) { return r.intText("NumMPI") }

// SetNumMPI sets NumMPI.
func (r RunInfo) SetNumMPI(n int) { r.setText("NumMPI", n) }

func (r RunInfo) intText(tag string) (int, bool) {
	v, ok := r.lookupText(tag)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

// SetParallelRunSettings switches the run to mpi mode with a runQSUB child.
// The memory setting goes under <mode>; every other setting goes directly
// under RunInfo, in sorted key order.
func (r RunInfo) SetParallelRunSettings(settings map[string]string) {
	mode := xmltree.MustFindOrCreate(r.node, "mode")
	mode.Text = "mpi"
	xmltree.MustFindOrCreate(mode, "runQSUB")
	if mem := settings["memory"]; mem != "" {
		xmltree.MustFindOrCreate(mode, "memory").Text = mem
	}
	keys := make([]string, 0, len(settings))
	for k := range settings {
		if k != "memory" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		r.setText(k, settings[k])
	}
}

// Sequence returns the step sequence.
func (r RunInfo) Sequence() Sequence { return Sequence{list: r.list("Sequence")} }

// Sequence is the ordered, duplicate-free list of step names a workflow runs.
// It is stored as the comma-joined text of RunInfo/Sequence.
type Sequence struct {
	list *ListView
}

// Names returns the step names in order.
func (s Sequence) Names() []string { return s.list.Items() }

// Len returns the number of steps.
func (s Sequence) Len() int { return s.list.Len() }

// Add inserts name at index, or appends when index is omitted or negative.
// An index past the end appends. A name already in the sequence fails with
// *DuplicateStepError.
func (s Sequence) Add(name string, index ...int) error {
	names := s.list.Items()
	if slices.Contains(names, name) {
		return &DuplicateStepError{Name: name, Sequence: names}
	}
	if len(index) == 0 || index[0] < 0 {
		s.list.Append(name)
		return nil
	}
	s.list.Insert(index[0], name)
	return nil
}

// AddAfter inserts name right after an existing step, or appends when after
// is not in the sequence.
func (s Sequence) AddAfter(after, name string) error {
	i := s.IndexOf(after)
	if i < 0 {
		return s.Add(name)
	}
	return s.Add(name, i+1)
}

// IndexOf returns the position of name, or -1.
func (s Sequence) IndexOf(name string) int { return s.list.Index(name) }

// Contains reports whether name is in the sequence.
func (s Sequence) Contains(name string) bool { return s.IndexOf(name) >= 0 }

// Remove deletes name and reports whether it was present.
func (s Sequence) Remove(name string) bool { return s.list.Remove(name) }

// Set replaces the sequence. Duplicates are rejected.
func (s Sequence) Set(names ...string) error {
	seen := make(map[string]bool, len(names))
	for i, n := range names {
		if seen[n] {
			return &DuplicateStepError{Name: n, Sequence: names[:i]}
		}
		seen[n] = true
	}
	s.list.Replace(names...)
	return nil
}
