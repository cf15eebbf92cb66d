package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/wricardo/roomgate/game/service"
)

var (
	ErrModeNotFound = errors.New("game mode not found")
	ErrInvalidMode  = errors.New("invalid game mode")
)

// builtinModes are always available, even without a modes directory. A file
// with the same id overrides the built-in entry.
var builtinModes = []service.ModeInfo{
	{ID: "deathmatch", Name: "Deathmatch", Description: "Every player for themselves", MaxPlayers: 16},
	{ID: "team-deathmatch", Name: "Team Deathmatch", Description: "Two teams, most eliminations wins", MaxPlayers: 16},
	{ID: "capture-the-flag", Name: "Capture the Flag", Description: "Steal the enemy flag and bring it home", MaxPlayers: 12},
	{ID: "coop", Name: "Co-op", Description: "Small squads against the environment", MaxPlayers: 4},
	{ID: "race", Name: "Race", Description: "First across the line wins", MaxPlayers: 8},
	{ID: "free-roam", Name: "Free Roam", Description: "No objective, just hang out", MaxPlayers: service.MaxPlayerCap},
}

// Manager handles game mode loading and caching
type Manager struct {
	modeDir string
	modes   map[string]*service.ModeInfo
	mu      sync.RWMutex
}

var _ service.ModeCatalog = (*Manager)(nil)

// NewManager creates a new mode manager. An empty modeDir serves the
// built-in modes only.
func NewManager(modeDir string) (*Manager, error) {
	if modeDir != "" {
		if _, err := os.Stat(modeDir); os.IsNotExist(err) {
			return nil, fmt.Errorf("mode directory does not exist: %s", modeDir)
		}
	}

	m := &Manager{
		modeDir: modeDir,
		modes:   make(map[string]*service.ModeInfo),
	}
	m.RefreshCache()
	return m, nil
}

// Lookup returns a mode by id, loading it from disk on first use
func (m *Manager) Lookup(id string) (*service.ModeInfo, error) {
	m.mu.RLock()
	// Check cache first
	if mode, exists := m.modes[id]; exists {
		m.mu.RUnlock()
		return mode, nil
	}
	m.mu.RUnlock()

	if m.modeDir == "" || validateID(id) != nil {
		return nil, ErrModeNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if mode, exists := m.modes[id]; exists {
		return mode, nil
	}

	mode, err := m.readFile(filepath.Join(m.modeDir, id+".json"))
	if err != nil {
		return nil, err
	}
	m.modes[mode.ID] = mode
	return mode, nil
}

// List returns every available mode ordered by id, picking up files added
// since the last refresh. Files that fail to parse or validate are skipped.
func (m *Manager) List() []*service.ModeInfo {
	if m.modeDir != "" {
		if entries, err := os.ReadDir(m.modeDir); err == nil {
			for _, entry := range entries {
				if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
					continue
				}
				m.Lookup(strings.TrimSuffix(entry.Name(), ".json"))
			}
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*service.ModeInfo, 0, len(m.modes))
	for _, mode := range m.modes {
		result = append(result, mode)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// SaveMode validates a mode and writes it to the mode directory
func (m *Manager) SaveMode(mode *service.ModeInfo) error {
	if m.modeDir == "" {
		return errors.New("no mode directory configured")
	}
	if err := ValidateMode(mode); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMode, err)
	}

	data, err := json.MarshalIndent(mode, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal mode: %w", err)
	}

	path := filepath.Join(m.modeDir, mode.ID+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write mode file: %w", err)
	}

	// Update cache
	m.mu.Lock()
	saved := *mode
	m.modes[mode.ID] = &saved
	m.mu.Unlock()

	return nil
}

// RefreshCache drops cached modes and reloads the built-ins followed by
// every valid file in the mode directory
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modes = make(map[string]*service.ModeInfo)
	for i := range builtinModes {
		mode := builtinModes[i]
		m.modes[mode.ID] = &mode
	}

	if m.modeDir == "" {
		return
	}
	entries, err := os.ReadDir(m.modeDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		// Skip invalid files
		if mode, err := m.readFile(filepath.Join(m.modeDir, entry.Name())); err == nil {
			m.modes[mode.ID] = mode
		}
	}
}

// Validate checks every JSON file in the mode directory and returns the
// problems keyed by file name. Valid files are absent from the result.
func (m *Manager) Validate() (map[string]error, error) {
	problems := make(map[string]error)
	if m.modeDir == "" {
		return problems, nil
	}
	entries, err := os.ReadDir(m.modeDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read mode directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if _, err := m.readFile(filepath.Join(m.modeDir, entry.Name())); err != nil {
			problems[entry.Name()] = err
		}
	}
	return problems, nil
}

// readFile parses and validates one mode file. The file name is the id
// unless the file sets one explicitly.
func (m *Manager) readFile(path string) (*service.ModeInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrModeNotFound
		}
		return nil, fmt.Errorf("failed to read mode file: %w", err)
	}

	var mode service.ModeInfo
	if err := json.Unmarshal(data, &mode); err != nil {
		return nil, fmt.Errorf("failed to parse mode: %w", err)
	}
	stem := strings.TrimSuffix(filepath.Base(path), ".json")
	if mode.ID == "" {
		mode.ID = stem
	}
	if mode.ID != stem {
		return nil, fmt.Errorf("%w: id %q does not match file name %q", ErrInvalidMode, mode.ID, stem)
	}
	if err := ValidateMode(&mode); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMode, err)
	}
	return &mode, nil
}

// ValidateMode checks a mode definition
func ValidateMode(mode *service.ModeInfo) error {
	if mode == nil {
		return errors.New("mode is nil")
	}
	if err := validateID(mode.ID); err != nil {
		return err
	}
	if strings.TrimSpace(mode.Name) == "" {
		return errors.New("name is required")
	}
	if mode.MaxPlayers < 1 || mode.MaxPlayers > service.MaxPlayerCap {
		return fmt.Errorf("maxPlayers must be between 1 and %d", service.MaxPlayerCap)
	}
	return nil
}

// validateID restricts ids to lowercase letters, digits and dashes so an id
// can always be used as a file name
func validateID(id string) error {
	if id == "" {
		return errors.New("id is required")
	}
	for _, r := range id {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-') {
			return fmt.Errorf("id %q may only contain a-z, 0-9 and '-'", id)
		}
	}
	return nil
}
