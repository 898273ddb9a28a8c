package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

const auditFileName = "audit_events.jsonl"

// FileRepository appends events as JSON lines to a file that is only ever
// opened in append mode
type FileRepository struct {
	path  string
	mutex sync.Mutex
}

// NewFileRepository creates a file-backed audit repository in dataDir
func NewFileRepository(dataDir string) (*FileRepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileRepository{path: filepath.Join(dataDir, auditFileName)}, nil
}

// Append writes event as one line and syncs the file
func (r *FileRepository) Append(ctx context.Context, event AuditEvent) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open audit file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return f.Sync()
}

// ListByActor scans the file and returns the actor's events, most recent first
func (r *FileRepository) ListByActor(ctx context.Context, actorID uuid.UUID, filter Filter) ([]AuditEvent, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	f, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []AuditEvent{}, nil
		}
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}
	defer f.Close()

	var events []AuditEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var event AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			return nil, fmt.Errorf("failed to decode audit event: %w", err)
		}
		if event.ActorID == actorID {
			events = append(events, event)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit file: %w", err)
	}

	return selectEvents(events, actorID, filter.normalized()), nil
}
