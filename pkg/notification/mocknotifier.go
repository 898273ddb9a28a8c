package notification

import (
	"context"
	"sync"
)

type MockNotifier struct {
	mu      sync.Mutex
	Notices []NewDeviceNotice
	Err     error
}

func (m *MockNotifier) NotifyNewDevice(ctx context.Context, notice NewDeviceNotice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notices = append(m.Notices, notice)
	return m.Err
}

// Sent returns a copy of the recorded notices
func (m *MockNotifier) Sent() []NewDeviceNotice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]NewDeviceNotice(nil), m.Notices...)
}
