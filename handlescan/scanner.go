// (c) Copyright 2024 MediaForge Technologies LP

// Package handlescan runs the background scanner that identifies every process holding
// an open kernel handle to the target device or one of its volumes, along with the
// access rights in use.  The scan drives the "waiting for exclusive access" experience:
// the front end shows the blocking processes and either waits or asks the user to close
// them.
package handlescan

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/mediaforge/boot-host-libs/logger"
	"github.com/mediaforge/boot-host-libs/model"
)

const (
	// passThrottle is the pause between two scan passes
	passThrottle = 1 * time.Second

	// idleThrottle is the pause when armed with nothing to watch
	idleThrottle = 500 * time.Millisecond

	// stopTimeout bounds how long Stop waits for the scanning goroutine to exit
	stopTimeout = 5 * time.Second

	// readPollInterval is the pause between GetBlocking warm-up polls
	readPollInterval = 100 * time.Millisecond

	// grantedAccessMask are the read (bit 0), write (bit 1) and execute (bit 5) bits of
	// a handle's granted access that make it interesting
	grantedAccessMask = 0x23
)

// OwnedHandle is a handle duplicated into our own address space
type OwnedHandle interface {
	// IsDiskHandle reports whether the handle refers to a disk file object.  Other
	// handle types are skipped fast, not least because querying their names can hang.
	IsDiskHandle() bool
	// QueryName returns the kernel object name of the handle
	QueryName() (string, bool)
	Close()
}

// ProcessHandle is an open process with duplicate, query and read rights
type ProcessHandle interface {
	// DuplicateHandle duplicates the given handle value of this process into our own
	// address space
	DuplicateHandle(handle uintptr) (OwnedHandle, error)
	// CommandLine resolves a display command line for the process, trying the richest
	// source first
	CommandLine() (string, bool)
	Close()
}

// OsHandleEnumerator abstracts the OS surface the scanner walks.  The real
// implementation backs it with the system handle table and native process APIs; tests
// use a double.  Implementations must tolerate handle values that turn invalid between
// snapshot and use, failing the single call instead of the process.
type OsHandleEnumerator interface {
	// Snapshot returns the full system handle table
	Snapshot() ([]model.HandleEntry, error)
	// OpenProcess opens the given process for handle duplication and inspection
	OpenProcess(pid uint64) (ProcessHandle, error)
	// IsRunning cheaply reports whether a PID still names a live process
	IsRunning(pid uint64) bool
}

// Scanner owns the scanning goroutine and the blocking-process ring.  A single coarse
// mutex guards every mutation; the scanner copies what it needs under the mutex and
// releases it before any OS enumeration.
type Scanner struct {
	enum OsHandleEnumerator

	mutex    sync.Mutex
	armed    chan struct{} // buffered wake-up signal for the scan loop
	done     chan struct{}
	active   bool
	started  bool
	watched  []string
	produced uint32 // version of the watched set
	consumed uint32 // version the scan loop has picked up
	pass     uint32
	ring     [model.MaxBlockingProcesses]model.ProcessEntry
}

// NewScanner creates a scanner on top of the given enumerator.  The scanning goroutine
// is not started until Start is called.
func NewScanner(enum OsHandleEnumerator) *Scanner {
	return &Scanner{
		enum:  enum,
		armed: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Start launches the scanning goroutine.  The goroutine sleeps until the first Arm
// call assigns a watched-name set.
func (s *Scanner) Start() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.active = true
	go s.run()
}

// Stop asks the scanning goroutine to exit and waits for it, bounded by stopTimeout so
// a hung scan pass cannot wedge shutdown.
func (s *Scanner) Stop() {
	s.mutex.Lock()
	if !s.started {
		s.mutex.Unlock()
		return
	}
	s.active = false
	s.mutex.Unlock()
	s.wake()

	select {
	case <-s.done:
	case <-time.After(stopTimeout):
		log.Error("Handle scanner did not exit within timeout")
	}
}

// Arm assigns the watched handle-name set (the target's device paths) and wakes the
// scanning goroutine.  Passing an empty set effectively pauses scanning.
func (s *Scanner) Arm(names []string) {
	s.mutex.Lock()
	s.watched = append([]string(nil), names...)
	s.produced++
	s.mutex.Unlock()
	s.wake()
}

func (s *Scanner) wake() {
	select {
	case s.armed <- struct{}{}:
	default:
	}
}

func (s *Scanner) isActive() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.active
}

// Snapshot returns a consistent copy of the scanner state
func (s *Scanner) Snapshot() model.BlockingSet {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	set := model.BlockingSet{
		Version:      s.produced,
		Pass:         s.pass,
		WatchedNames: append([]string(nil), s.watched...),
	}
	for i := range s.ring {
		if s.ring[i].Pid != 0 {
			set.Processes = append(set.Processes, s.ring[i])
		}
	}
	return set
}

// GetBlocking reports the processes currently blocking the watched targets.  It waits,
// bounded by timeout, until at least one full pass has completed with the current
// watched set, then filters the ring by the requested access mask.  When ignoreStale is
// set, entries whose PID no longer names a running process are dropped.  The first
// return value is the combined access mask of the returned entries.
func (s *Scanner) GetBlocking(timeout time.Duration, accessMask byte, ignoreStale bool) (byte, []model.ProcessEntry) {
	deadline := time.Now().Add(timeout)

	var ring [model.MaxBlockingProcesses]model.ProcessEntry
	for {
		s.mutex.Lock()
		warmedUp := s.produced == s.consumed && s.pass >= 1
		if warmedUp {
			ring = s.ring
		}
		s.mutex.Unlock()
		if warmedUp {
			break
		}
		if time.Now().After(deadline) {
			if timeout != 0 {
				log.Warn("Timeout while retrieving conflicting process list")
			}
			return 0, nil
		}
		time.Sleep(readPollInterval)
	}

	// The ring was copied under the mutex; the liveness probe below is an OS call and
	// must run outside it
	var combined byte
	var entries []model.ProcessEntry
	for i := range ring {
		entry := ring[i]
		if entry.Pid == 0 {
			continue
		}
		if entry.AccessMask&accessMask == 0 {
			continue
		}
		if ignoreStale && !s.enum.IsRunning(entry.Pid) {
			continue
		}
		combined |= entry.AccessMask
		entries = append(entries, entry)
	}
	return combined & accessMask, entries
}

// syntheticProcessName is the last-resort display name for a process whose command line
// could not be resolved
func syntheticProcessName(pid uint64) string {
	return fmt.Sprintf("Unknown_Process_%d", pid)
}

// emplace records or refreshes the ring entry for a matching process and prunes
// entries that have not been seen for two passes.  Caller does NOT hold the mutex.
func (s *Scanner) emplace(pid uint64, accessMask byte, cmdline string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	// Prune entries that have not been detected for a few passes
	for i := range s.ring {
		if s.ring[i].Pid != 0 && s.pass >= 2 && s.ring[i].SeenOnPass < s.pass-1 {
			s.ring[i] = model.ProcessEntry{}
		}
	}
	// Try to reuse an existing entry for the current pid
	slot := -1
	for i := range s.ring {
		if s.ring[i].Pid == pid {
			slot = i
			break
		}
	}
	if slot == -1 {
		for i := range s.ring {
			if s.ring[i].Pid == 0 {
				slot = i
				break
			}
		}
	}
	if slot == -1 {
		log.Debug("Handle scanner: no empty process slot")
		return
	}
	s.ring[slot] = model.ProcessEntry{
		Pid:        pid,
		AccessMask: accessMask & 0x7,
		Cmdline:    cmdline,
		SeenOnPass: s.pass,
	}
}

// run is the scanning goroutine
func (s *Scanner) run() {
	defer close(s.done)

	var watched []string

	for {
		s.mutex.Lock()
		if !s.active {
			s.mutex.Unlock()
			return
		}
		// Work on our own copy of the handle names so the mutex is not held during
		// string comparison.  Update only when the version has changed; a version bump
		// resets the pass counter so readers know the ring is warming up again.
		if s.produced != s.consumed {
			watched = append([]string(nil), s.watched...)
			s.consumed = s.produced
			s.pass = 0
			// Results collected for the previous target set are meaningless now
			s.ring = [model.MaxBlockingProcesses]model.ProcessEntry{}
		}
		idle := len(watched) == 0
		s.mutex.Unlock()

		if idle {
			// Nothing to watch yet: sleep on the arming signal
			select {
			case <-s.armed:
			case <-time.After(idleThrottle):
			}
			continue
		}

		s.scanPass(watched)

		s.mutex.Lock()
		s.pass++
		// Evict ghosts: anything not refreshed on the previous or current pass is a
		// process that let go of its handles
		for i := range s.ring {
			if s.ring[i].Pid != 0 && s.pass >= 2 && s.ring[i].SeenOnPass < s.pass-1 {
				s.ring[i] = model.ProcessEntry{}
			}
		}
		s.mutex.Unlock()

		select {
		case <-s.armed:
		case <-time.After(passThrottle):
		}
	}
}

// scanPass walks one full system handle table
func (s *Scanner) scanPass(watched []string) {
	handles, err := s.enum.Snapshot()
	if err != nil {
		log.Debugf("Handle snapshot failed: %v", err)
		time.Sleep(passThrottle)
		return
	}

	// Walk entries sorted by PID so each process is opened exactly once
	sort.SliceStable(handles, func(i, j int) bool {
		return handles[i].Pid < handles[j].Pid
	})

	var (
		process          ProcessHandle
		processPid       uint64
		accessDeniedPid  uint64
		accumulatedMask  uint32
		cmdline          string
		found            bool
	)

	flush := func() {
		if found {
			s.emplace(processPid, foldAccessMask(accumulatedMask), cmdline)
		}
		found = false
		accumulatedMask = 0
		cmdline = ""
	}
	closeProcess := func() {
		flush()
		if process != nil {
			process.Close()
			process = nil
		}
	}
	defer closeProcess()

	for i := range handles {
		if !s.isActive() {
			return
		}
		entry := &handles[i]

		// Filter out handles that are not opened with read, write or execute access
		if entry.GrantedAccess&grantedAccessMask == 0 {
			continue
		}

		// Don't bother with processes we can't access
		if entry.Pid == accessDeniedPid && accessDeniedPid != 0 {
			continue
		}

		if process == nil || entry.Pid != processPid {
			closeProcess()
			processPid = entry.Pid
			p, err := s.enum.OpenProcess(entry.Pid)
			if err != nil {
				process = nil
				accessDeniedPid = entry.Pid
				continue
			}
			process = p
		}

		// Duplicate the handle into our own address space so its properties can be
		// queried.  Handles can go invalid between the snapshot and here; a failed
		// duplicate just skips this handle.
		dup, err := process.DuplicateHandle(entry.Handle)
		if err != nil {
			continue
		}
		// Filter non-storage handles; they are of no interest and querying their names
		// can freeze
		if !dup.IsDiskHandle() {
			dup.Close()
			continue
		}
		name, ok := dup.QueryName()
		dup.Close()
		if !ok {
			continue
		}

		// Match against our target name(s).  The comparison is a length-bounded prefix
		// match: a volume handle name extends the device name.
		if !matchesWatched(watched, name) {
			continue
		}
		found = true
		accumulatedMask |= entry.GrantedAccess

		// Where possible resolve a display command line; the enumerator falls back to
		// the executable path, the image name and finally a synthetic name
		if line, ok := process.CommandLine(); ok {
			cmdline = line
		} else {
			cmdline = syntheticProcessName(entry.Pid)
		}
	}
}

// matchesWatched reports whether the handle name starts with any watched name
func matchesWatched(watched []string, name string) bool {
	for _, w := range watched {
		if len(w) <= len(name) && strings.HasPrefix(name, w) {
			return true
		}
	}
	return false
}

// foldAccessMask folds a granted access mask into the r/w/x bits.  The execute bit
// arrives as bit 5 and is repositioned to bit 2.
func foldAccessMask(granted uint32) byte {
	mask := granted & grantedAccessMask
	if mask&0x20 != 0 {
		mask = (mask & 0x03) | 0x04
	}
	return byte(mask & 0x07)
}
