package settings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/isolated-regex/internal/metrics"
)

// Backend persists the settings document
type Backend interface {
	Load(ctx context.Context) (*Document, error)
	Save(ctx context.Context, doc *Document) error
	Close() error
}

// Manager owns the settings document on behalf of the host. Saves are
// debounced: a burst of SaveDebounced calls results in one write.
type Manager struct {
	mu      sync.Mutex
	doc     *Document
	timer   *time.Timer
	pending bool

	saveMu  sync.Mutex
	backend Backend
	delay   time.Duration
	timeout time.Duration
	logger  *zap.Logger
}

// NewManager loads the document from backend
func NewManager(ctx context.Context, backend Backend, delay time.Duration, logger *zap.Logger) (*Manager, error) {
	doc, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if doc == nil {
		doc = NewDocument()
	}

	logger.Info("Settings loaded", zap.Int("rules", doc.Rules()))

	return &Manager{
		doc:     doc,
		backend: backend,
		delay:   delay,
		timeout: 10 * time.Second,
		logger:  logger,
	}, nil
}

// Update runs fn with exclusive access to the document
func (m *Manager) Update(fn func(doc *Document)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.doc)
}

// SaveDebounced schedules a save after the debounce delay, pushing back any
// save already scheduled. Errors are logged, never returned.
func (m *Manager) SaveDebounced() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending = true
	if m.timer != nil {
		m.timer.Reset(m.delay)
		return
	}
	m.timer = time.AfterFunc(m.delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		if err := m.Flush(ctx); err != nil {
			m.logger.Error("Debounced settings save failed", zap.Error(err))
		}
	})
}

// Flush writes the document now if a save is pending
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if !m.pending {
		m.mu.Unlock()
		return nil
	}
	m.pending = false
	snapshot := m.doc.Clone()
	m.mu.Unlock()

	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	start := time.Now()
	if err := m.backend.Save(ctx, snapshot); err != nil {
		metrics.SettingsSaves.WithLabelValues("error").Inc()
		m.mu.Lock()
		m.pending = true
		m.mu.Unlock()
		return fmt.Errorf("failed to save settings: %w", err)
	}

	metrics.SettingsSaves.WithLabelValues("ok").Inc()
	m.logger.Debug("Settings saved",
		zap.Int("rules", snapshot.Rules()),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// Close flushes pending changes and closes the backend
func (m *Manager) Close(ctx context.Context) error {
	flushErr := m.Flush(ctx)
	if err := m.backend.Close(); err != nil {
		return fmt.Errorf("failed to close settings backend: %w", err)
	}
	return flushErr
}
