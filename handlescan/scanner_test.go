// (c) Copyright 2024 MediaForge Technologies LP

package handlescan

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaforge/boot-host-libs/model"
)

///////////////////////////////////////////////////////////////////////////////////////////////////
// Enumerator test double
///////////////////////////////////////////////////////////////////////////////////////////////////

type fakeHandle struct {
	name string
	disk bool
}

type fakeProcess struct {
	pid     uint64
	cmdline string
	noCmd   bool
	handles map[uintptr]fakeHandle
}

type fakeEnum struct {
	mutex   sync.Mutex
	procs   map[uint64]*fakeProcess
	denied  map[uint64]bool
	stopped map[uint64]bool
}

func newFakeEnum() *fakeEnum {
	return &fakeEnum{
		procs:   make(map[uint64]*fakeProcess),
		denied:  make(map[uint64]bool),
		stopped: make(map[uint64]bool),
	}
}

func (f *fakeEnum) addProcess(pid uint64, cmdline string) *fakeProcess {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	p := &fakeProcess{pid: pid, cmdline: cmdline, handles: make(map[uintptr]fakeHandle)}
	f.procs[pid] = p
	return p
}

func (f *fakeEnum) addHandle(pid uint64, handle uintptr, name string, disk bool, access uint32) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.procs[pid].handles[handle] = fakeHandle{name: name, disk: disk}
	// access is attached at snapshot time through the entry list below
	_ = access
}

func (f *fakeEnum) removeHandle(pid uint64, handle uintptr) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	delete(f.procs[pid].handles, handle)
}

func (f *fakeEnum) Snapshot() ([]model.HandleEntry, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	var entries []model.HandleEntry
	for pid, p := range f.procs {
		for h := range p.handles {
			// Encode read access in the low bit by convention; individual tests that
			// need other masks register them through snapshotAccess
			access := uint32(0x1)
			if alt, ok := snapshotAccess[h]; ok {
				access = alt
			}
			entries = append(entries, model.HandleEntry{
				Pid:           pid,
				Handle:        h,
				GrantedAccess: access,
			})
		}
	}
	return entries, nil
}

// snapshotAccess overrides the granted access reported for specific handle values
var snapshotAccess = map[uintptr]uint32{}

type fakeProcessHandle struct {
	enum *fakeEnum
	pid  uint64
}

func (f *fakeEnum) OpenProcess(pid uint64) (ProcessHandle, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.denied[pid] {
		return nil, errors.New("access denied")
	}
	if _, ok := f.procs[pid]; !ok {
		return nil, errors.New("no such process")
	}
	return &fakeProcessHandle{enum: f, pid: pid}, nil
}

func (f *fakeEnum) IsRunning(pid uint64) bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return !f.stopped[pid]
}

type fakeOwnedHandle struct {
	handle fakeHandle
}

func (p *fakeProcessHandle) DuplicateHandle(handle uintptr) (OwnedHandle, error) {
	p.enum.mutex.Lock()
	defer p.enum.mutex.Unlock()
	proc := p.enum.procs[p.pid]
	h, ok := proc.handles[handle]
	if !ok {
		// Mirrors a handle that went invalid between snapshot and use
		return nil, errors.New("invalid handle")
	}
	return &fakeOwnedHandle{handle: h}, nil
}

func (p *fakeProcessHandle) CommandLine() (string, bool) {
	p.enum.mutex.Lock()
	defer p.enum.mutex.Unlock()
	proc := p.enum.procs[p.pid]
	if proc.noCmd {
		return "", false
	}
	return proc.cmdline, true
}

func (p *fakeProcessHandle) Close() {}

func (h *fakeOwnedHandle) IsDiskHandle() bool {
	return h.handle.disk
}

func (h *fakeOwnedHandle) QueryName() (string, bool) {
	return h.handle.name, true
}

func (h *fakeOwnedHandle) Close() {}

///////////////////////////////////////////////////////////////////////////////////////////////////
// Tests
///////////////////////////////////////////////////////////////////////////////////////////////////

func startScanner(t *testing.T, enum *fakeEnum) *Scanner {
	t.Helper()
	s := NewScanner(enum)
	s.Start()
	t.Cleanup(s.Stop)
	return s
}

func TestScannerFindsBlockingProcesses(t *testing.T) {
	watched := []string{`\Device\Harddisk3\DR3`, `\Device\HarddiskVolume42`}

	enum := newFakeEnum()
	enum.addProcess(101, `C:\apps\backup.exe --watch`)
	enum.addHandle(101, 0x44, `\Device\Harddisk3\DR3`, true, 0x1)
	enum.addProcess(102, `C:\Windows\explorer.exe`)
	enum.addHandle(102, 0x48, `\Device\HarddiskVolume42\Some\File.txt`, true, 0x1)
	// Unrelated handles must not be reported
	enum.addProcess(103, `C:\other.exe`)
	enum.addHandle(103, 0x4c, `\Device\HarddiskVolume9`, true, 0x1)
	// Non-disk handles on a watched name are skipped
	enum.addProcess(104, `C:\pipe-user.exe`)
	enum.addHandle(104, 0x50, `\Device\Harddisk3\DR3`, false, 0x1)
	// Processes we cannot open are skipped for the pass
	enum.addProcess(105, `C:\system-service.exe`)
	enum.addHandle(105, 0x54, `\Device\Harddisk3\DR3`, true, 0x1)
	enum.denied[105] = true

	s := startScanner(t, enum)
	s.Arm(watched)

	mask, entries := s.GetBlocking(3*time.Second, 0x7, false)
	assert.NotZero(t, mask&model.AccessRead, "read bit expected in the combined mask")

	pids := map[uint64]model.ProcessEntry{}
	for _, e := range entries {
		// Every reported entry has an access mask and a pid
		assert.NotZero(t, e.AccessMask)
		assert.NotZero(t, e.Pid)
		assert.NotEmpty(t, e.Cmdline)
		pids[e.Pid] = e
	}
	assert.Contains(t, pids, uint64(101))
	assert.Contains(t, pids, uint64(102))
	assert.NotContains(t, pids, uint64(103))
	assert.NotContains(t, pids, uint64(104))
	assert.NotContains(t, pids, uint64(105))

	assert.Equal(t, `C:\apps\backup.exe --watch`, pids[101].Cmdline)
}

func TestScannerEvictsReleasedHandles(t *testing.T) {
	watched := []string{`\Device\HarddiskVolume7`}

	enum := newFakeEnum()
	enum.addProcess(201, `C:\locker.exe`)
	enum.addHandle(201, 0x60, `\Device\HarddiskVolume7\open.doc`, true, 0x1)

	s := startScanner(t, enum)
	s.Arm(watched)

	_, entries := s.GetBlocking(3*time.Second, 0x7, false)
	require.Len(t, entries, 1)

	// Once the process lets go of the handle, the entry must disappear within three
	// passes
	enum.removeHandle(201, 0x60)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_, entries = s.GetBlocking(time.Second, 0x7, false)
		if len(entries) == 0 {
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	t.Fatalf("entry still present after eviction deadline: %+v", entries)
}

func TestScannerIgnoresStaleProcesses(t *testing.T) {
	enum := newFakeEnum()
	enum.addProcess(301, `C:\gone.exe`)
	enum.addHandle(301, 0x70, `\Device\HarddiskVolume3`, true, 0x1)

	s := startScanner(t, enum)
	s.Arm([]string{`\Device\HarddiskVolume3`})

	_, entries := s.GetBlocking(3*time.Second, 0x7, false)
	require.Len(t, entries, 1)

	enum.mutex.Lock()
	enum.stopped[301] = true
	enum.mutex.Unlock()

	_, entries = s.GetBlocking(time.Second, 0x7, true)
	assert.Empty(t, entries)
}

func TestScannerSyntheticName(t *testing.T) {
	enum := newFakeEnum()
	p := enum.addProcess(401, "")
	p.noCmd = true
	enum.addHandle(401, 0x80, `\Device\HarddiskVolume5`, true, 0x1)

	s := startScanner(t, enum)
	s.Arm([]string{`\Device\HarddiskVolume5`})

	_, entries := s.GetBlocking(3*time.Second, 0x7, false)
	require.Len(t, entries, 1)
	assert.Equal(t, "Unknown_Process_401", entries[0].Cmdline)
}

func TestScannerRearmResetsPassCount(t *testing.T) {
	enum := newFakeEnum()
	enum.addProcess(501, `C:\a.exe`)
	enum.addHandle(501, 0x90, `\Device\HarddiskVolume11`, true, 0x1)

	s := startScanner(t, enum)
	s.Arm([]string{`\Device\HarddiskVolume11`})
	_, entries := s.GetBlocking(3*time.Second, 0x7, false)
	require.Len(t, entries, 1)

	// Re-arming with a different target must produce results for the new target only
	s.Arm([]string{`\Device\HarddiskVolume12`})
	_, entries = s.GetBlocking(3*time.Second, 0x7, false)
	assert.Empty(t, entries)
}

func TestScannerGetBlockingTimesOutUnarmed(t *testing.T) {
	enum := newFakeEnum()
	s := startScanner(t, enum)

	start := time.Now()
	mask, entries := s.GetBlocking(300*time.Millisecond, 0x7, false)
	assert.Zero(t, mask)
	assert.Empty(t, entries)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestFoldAccessMask(t *testing.T) {
	// The execute bit arrives as bit 5 and is repositioned to bit 2
	assert.Equal(t, byte(0x4), foldAccessMask(0x20))
	assert.Equal(t, byte(0x5), foldAccessMask(0x21))
	assert.Equal(t, byte(0x7), foldAccessMask(0x23))
	assert.Equal(t, byte(0x1), foldAccessMask(0x1))
	assert.Equal(t, byte(0x3), foldAccessMask(0x3))
	assert.Equal(t, byte(0x0), foldAccessMask(0x1c0))
}

func TestMatchesWatched(t *testing.T) {
	watched := []string{`\Device\Harddisk3\DR3`}
	assert.True(t, matchesWatched(watched, `\Device\Harddisk3\DR3`))
	assert.True(t, matchesWatched(watched, `\Device\Harddisk3\DR3\anything`))
	assert.False(t, matchesWatched(watched, `\Device\Harddisk3\DR`))
	assert.False(t, matchesWatched(watched, `\Device\Harddisk30`))
}

func TestScannerStop(t *testing.T) {
	enum := newFakeEnum()
	s := NewScanner(enum)
	s.Start()
	s.Arm([]string{`\Device\HarddiskVolume1`})

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Stop did not return")
	}
}
