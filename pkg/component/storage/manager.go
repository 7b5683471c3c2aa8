package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Manager is a registry of named storage clients with centralized health
// checking and shutdown. It is safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	clients map[string]Client
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{clients: make(map[string]Client)}
}

// Register adds a client under a unique name.
func (m *Manager) Register(name string, client Client) error {
	if name == "" {
		return fmt.Errorf("storage client name cannot be empty")
	}
	if client == nil {
		return fmt.Errorf("storage client cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.clients[name]; exists {
		return fmt.Errorf("storage client %q is already registered", name)
	}
	m.clients[name] = client
	return nil
}

// MustRegister registers a client and panics on failure. Intended for
// bootstrap code where a registration error is fatal.
func (m *Manager) MustRegister(name string, client Client) {
	if err := m.Register(name, client); err != nil {
		panic(fmt.Sprintf("failed to register storage client: %v", err))
	}
}

// Get retrieves a client by name.
func (m *Manager) Get(name string) (Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	client, exists := m.clients[name]
	if !exists {
		return nil, fmt.Errorf("storage client %q not found", name)
	}
	return client, nil
}

// Has reports whether a client with the given name is registered.
func (m *Manager) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.clients[name]
	return exists
}

// List returns the names of all registered clients.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.clients))
	for name := range m.clients {
		names = append(names, name)
	}
	return names
}

// HealthCheck probes a single client and measures latency.
func (m *Manager) HealthCheck(ctx context.Context, name string) HealthStatus {
	client, err := m.Get(name)
	if err != nil {
		return HealthStatus{Name: name, Healthy: false, Error: err}
	}

	start := time.Now()
	err = client.Ping(ctx)
	return HealthStatus{
		Name:    name,
		Healthy: err == nil,
		Latency: time.Since(start),
		Error:   err,
	}
}

// HealthCheckAll probes every registered client concurrently.
func (m *Manager) HealthCheckAll(ctx context.Context) map[string]HealthStatus {
	m.mu.RLock()
	clients := make(map[string]Client, len(m.clients))
	for name, client := range m.clients {
		clients[name] = client
	}
	m.mu.RUnlock()

	statuses := make(map[string]HealthStatus, len(clients))
	var statusMu sync.Mutex
	var wg sync.WaitGroup

	for name, client := range clients {
		wg.Add(1)
		go func(n string, c Client) {
			defer wg.Done()

			start := time.Now()
			err := c.Ping(ctx)

			statusMu.Lock()
			statuses[n] = HealthStatus{
				Name:    n,
				Healthy: err == nil,
				Latency: time.Since(start),
				Error:   err,
			}
			statusMu.Unlock()
		}(name, client)
	}

	wg.Wait()
	return statuses
}

// AllHealthy reports whether every registered client passes its probe.
func (m *Manager) AllHealthy(ctx context.Context) bool {
	for _, status := range m.HealthCheckAll(ctx) {
		if !status.Healthy {
			return false
		}
	}
	return true
}

// CloseAll closes every registered client and empties the registry.
// It keeps going past failures and returns the first error seen.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for name, client := range m.clients {
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close storage client %q: %w", name, err)
		}
		delete(m.clients, name)
	}
	return firstErr
}
