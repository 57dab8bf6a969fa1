package services

import (
	"github.com/stretchr/testify/mock"

	"pitchstats/pkg/contracts/events"
)

// MockRunHub is a testify mock of the RunHub broadcast surface.
type MockRunHub struct {
	mock.Mock
}

func (m *MockRunHub) BroadcastRunSnapshot(snap events.RunSnapshot, traceID string) {
	m.Called(snap, traceID)
}

func (m *MockRunHub) BroadcastError(code, message string, fatal bool) {
	m.Called(code, message, fatal)
}
