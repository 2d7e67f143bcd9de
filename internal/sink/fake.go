package sink

import (
	"context"
	"fmt"
	"sync"
)

// SentGroup records one call to SendMediaGroup against a Fake, for test
// assertions.
type SentGroup struct {
	Caption  string
	FilePaths []string
}

// Fake is an in-memory Adapter used by Sync Engine tests (spec.md §9: "allow
// a fake implementation for tests"), grounded on the teacher's test-fixture
// style in internal/ingester/*_test.go.
type Fake struct {
	mu          sync.Mutex
	nextID      int
	SentGroups  []SentGroup
	SentTexts   []string
	HealthErr   error
	SendErr     error
	Disconnected bool
}

var _ Adapter = (*Fake)(nil)

// NewFake constructs an empty Fake sink.
func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) SendMediaGroup(ctx context.Context, p MediaGroupParams) (MediaGroupResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SendErr != nil {
		return MediaGroupResult{}, f.SendErr
	}

	var ids []string
	for i, group := range groupFiles(p.Files) {
		var paths []string
		for range group {
			f.nextID++
			ids = append(ids, fmt.Sprintf("msg-%d", f.nextID))
		}
		for _, file := range group {
			paths = append(paths, file.Path)
		}
		f.SentGroups = append(f.SentGroups, SentGroup{Caption: caption(p, i), FilePaths: paths})
	}
	return MediaGroupResult{MessageIDs: ids}, nil
}

func (f *Fake) SendText(ctx context.Context, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SentTexts = append(f.SentTexts, message)
	return nil
}

func (f *Fake) HealthCheck(ctx context.Context) error {
	return f.HealthErr
}

func (f *Fake) Disconnect() error {
	f.Disconnected = true
	return nil
}
