package tasks

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// memTransport records frames in arrival order.
type memTransport struct {
	mu      sync.Mutex
	content []string
	blocks  []string
}

func (m *memTransport) SendContent(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.content = append(m.content, text)
}

func (m *memTransport) SendBlock(typ string, data interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks = append(m.blocks, typ)
}

func (m *memTransport) snapshot() ([]string, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.content...), append([]string(nil), m.blocks...)
}

func TestTaskLifecycle(t *testing.T) {
	s := NewSupervisor(time.Minute)
	task, err := s.Create("w1", "u1", "question")
	if err != nil {
		t.Fatal(err)
	}
	if task.Status() != StatusPending {
		t.Errorf("status = %s, want pending", task.Status())
	}

	ctx, err := task.Start(context.Background(), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if task.Status() != StatusRunning {
		t.Errorf("status = %s, want running", task.Status())
	}

	// double start is rejected
	if _, err := task.Start(context.Background(), time.Minute); err == nil {
		t.Error("second Start succeeded")
	}

	task.Complete()
	if task.Status() != StatusCompleted || !task.Terminal() {
		t.Errorf("status = %s, want completed", task.Status())
	}
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Error("run context not cancelled on Complete")
	}

	// terminal states are one-way
	task.Fail("late error")
	if task.Status() != StatusCompleted || task.Error() != "" {
		t.Errorf("terminal state mutated: %s / %q", task.Status(), task.Error())
	}
}

func TestTaskCancel(t *testing.T) {
	s := NewSupervisor(time.Minute)
	task, _ := s.Create("w1", "u1", "q")
	ctx, _ := task.Start(context.Background(), time.Minute)

	task.Cancel()
	if task.Status() != StatusCancelled {
		t.Errorf("status = %s, want cancelled", task.Status())
	}
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Error("run context not cancelled")
	}
}

func TestSupervisorOneTaskPerWork(t *testing.T) {
	s := NewSupervisor(time.Minute)
	first, err := s.Create("w1", "u1", "q1")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Create("w1", "u1", "q2"); err == nil {
		t.Error("second Create for a pending task succeeded")
	}
	first.Start(context.Background(), time.Minute)
	if _, err := s.Create("w1", "u1", "q2"); err == nil {
		t.Error("second Create for a running task succeeded")
	}

	// other works are independent
	if _, err := s.Create("w2", "u1", "q"); err != nil {
		t.Errorf("Create for another work: %v", err)
	}

	first.Complete()
	replacement, err := s.Create("w1", "u1", "q3")
	if err != nil {
		t.Fatalf("Create after terminal: %v", err)
	}
	if replacement.ID == first.ID {
		t.Error("terminal task was not replaced")
	}
}

func TestRunningExcludesTerminal(t *testing.T) {
	s := NewSupervisor(time.Minute)
	task, _ := s.Create("w1", "u1", "q")
	if _, ok := s.Running("w1"); !ok {
		t.Error("pending task should count as running for busy checks")
	}
	task.Start(context.Background(), time.Minute)
	task.Complete()
	if _, ok := s.Running("w1"); ok {
		t.Error("terminal task reported as running")
	}
	if _, ok := s.Get("w1"); !ok {
		t.Error("terminal record should stay visible via Get")
	}
}

func TestEmitBuffersAndForwards(t *testing.T) {
	s := NewSupervisor(time.Minute)
	task, _ := s.Create("w1", "u1", "q")

	task.EmitContent("before attach")

	tr := &memTransport{}
	task.Attach(tr)
	content, _ := tr.snapshot()
	if len(content) != 1 || content[0] != "before attach" {
		t.Errorf("replay = %v", content)
	}

	task.EmitContent("live")
	task.EmitBlock("tool_call", map[string]interface{}{"name": "tree"})
	content, blocks := tr.snapshot()
	if len(content) != 2 || content[1] != "live" {
		t.Errorf("content = %v", content)
	}
	if len(blocks) != 1 || blocks[0] != "tool_call" {
		t.Errorf("blocks = %v", blocks)
	}
}

func TestAttachReplaysInOrderAndNewerWins(t *testing.T) {
	s := NewSupervisor(time.Minute)
	task, _ := s.Create("w1", "u1", "q")
	for i := 0; i < 5; i++ {
		task.EmitContent(fmt.Sprintf("t%d", i))
	}

	old := &memTransport{}
	task.Attach(old)
	newer := &memTransport{}
	task.Attach(newer)

	task.EmitContent("after")
	oldContent, _ := old.snapshot()
	newContent, _ := newer.snapshot()

	if len(oldContent) != 5 {
		t.Errorf("old transport got %d frames, want only the replay", len(oldContent))
	}
	want := []string{"t0", "t1", "t2", "t3", "t4", "after"}
	if len(newContent) != len(want) {
		t.Fatalf("new transport = %v, want %v", newContent, want)
	}
	for i := range want {
		if newContent[i] != want[i] {
			t.Errorf("newContent[%d] = %q, want %q", i, newContent[i], want[i])
		}
	}
}

func TestAttachNotifyMarkerBeforeLiveFrames(t *testing.T) {
	s := NewSupervisor(time.Minute)
	task, _ := s.Create("w1", "u1", "q")
	task.EmitContent("r0")
	task.EmitContent("r1")

	// hammer the task with live emissions while attaching; none may land
	// between the end of the replay and the marker
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
				task.EmitContent("live")
			}
		}
	}()

	tr := &memTransport{}
	replayed := -1
	task.AttachNotify(tr, func() {
		c, _ := tr.snapshot()
		replayed = len(c)
		tr.SendContent("marker")
	})
	close(stop)
	<-done

	if replayed < 2 {
		t.Fatalf("marker ran after %d replayed frames, want at least the buffered 2", replayed)
	}
	content, _ := tr.snapshot()
	if content[replayed] != "marker" {
		t.Errorf("frame %q delivered between replay and marker", content[replayed])
	}
	for i, c := range content[replayed+1:] {
		if c != "live" {
			t.Errorf("post-marker frame %d = %q, want live emission", i, c)
		}
	}
}

func TestDetachOnlyClearsOwnTransport(t *testing.T) {
	s := NewSupervisor(time.Minute)
	task, _ := s.Create("w1", "u1", "q")

	a := &memTransport{}
	b := &memTransport{}
	task.Attach(a)
	task.Attach(b)

	// stale connection detaching must not silence the live one
	task.Detach(a)
	task.EmitContent("x")
	if content, _ := b.snapshot(); len(content) == 0 {
		t.Error("live transport lost after stale Detach")
	}

	task.Detach(b)
	task.EmitContent("buffered only")
	if content, _ := b.snapshot(); len(content) != 1 {
		t.Errorf("detached transport still receiving: %v", content)
	}
}

func TestEmitDropsOldestAtCapacity(t *testing.T) {
	s := NewSupervisor(time.Minute)
	task, _ := s.Create("w1", "u1", "q")

	for i := 0; i < maxBufferedOutputs+10; i++ {
		task.EmitContent(fmt.Sprintf("m%d", i))
	}

	tr := &memTransport{}
	task.Attach(tr)
	content, _ := tr.snapshot()
	if len(content) != maxBufferedOutputs {
		t.Fatalf("replayed %d frames, want %d", len(content), maxBufferedOutputs)
	}
	if content[0] != "m10" {
		t.Errorf("oldest surviving frame = %q, want m10", content[0])
	}
	if content[len(content)-1] != fmt.Sprintf("m%d", maxBufferedOutputs+9) {
		t.Errorf("newest frame = %q", content[len(content)-1])
	}
}

func TestGC(t *testing.T) {
	s := NewSupervisor(time.Minute)
	done, _ := s.Create("w1", "u1", "q")
	done.Start(context.Background(), time.Minute)
	done.Complete()
	live, _ := s.Create("w2", "u1", "q")
	live.Start(context.Background(), time.Minute)

	if removed := s.GC(time.Hour); removed != 0 {
		t.Errorf("GC removed %d inside grace period", removed)
	}
	if removed := s.GC(0); removed != 1 {
		t.Errorf("GC removed %d, want 1", removed)
	}
	if _, ok := s.Get("w1"); ok {
		t.Error("terminal task survived GC")
	}
	if _, ok := s.Get("w2"); !ok {
		t.Error("running task was collected")
	}
}
