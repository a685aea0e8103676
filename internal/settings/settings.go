package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// ValidModels is the allow-list of Claude model identifiers the
// settings store accepts.
var ValidModels = []string{
	"claude-sonnet-4-5-20250929",
	"claude-haiku-4-5-20251001",
	"claude-opus-4-5-20251101",
	"claude-sonnet-4-6",
}

// Token budget bounds accepted by Update.
const (
	MinMaxTokens = 256
	MaxMaxTokens = 32768
)

// Trading modes.
const (
	ModeDemo = "demo"
	ModeReal = "real"
)

// Settings is the runtime-mutable configuration. One instance exists
// per process; all mutation goes through Store.Update.
type Settings struct {
	TradingMode     string `json:"trading_mode"`
	ClaudeModel     string `json:"claude_model"`
	ClaudeMaxTokens int    `json:"claude_max_tokens"`
}

// Patch is a partial update to Settings. Nil fields are left untouched.
type Patch struct {
	TradingMode     *string `json:"trading_mode,omitempty"`
	ClaudeModel     *string `json:"claude_model,omitempty"`
	ClaudeMaxTokens *int    `json:"claude_max_tokens,omitempty"`
}

// IsEmpty reports whether the patch changes nothing
func (p Patch) IsEmpty() bool {
	return p.TradingMode == nil && p.ClaudeModel == nil && p.ClaudeMaxTokens == nil
}

// ValidationError is returned by Update when a patch violates a rule.
// The patch is rejected as a whole; state is unchanged.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

// Store holds runtime settings with mutual exclusion and JSON file
// persistence. In-memory state is authoritative; persistence is
// best-effort.
type Store struct {
	mu       sync.RWMutex
	data     Settings
	path     string
	liveCred func() bool
	logger   zerolog.Logger
}

// New creates a Store initialized from defaults merged with the
// persisted file at path. A missing or corrupt file is never fatal.
// liveCred reports whether live trading credentials are configured; it
// gates switching trading_mode to real.
func New(path string, defaults Settings, liveCred func() bool, logger zerolog.Logger) *Store {
	if liveCred == nil {
		liveCred = func() bool { return os.Getenv("KIS_APP_KEY") != "" }
	}

	s := &Store{
		data:     defaults,
		path:     path,
		liveCred: liveCred,
		logger:   logger,
	}
	if s.data.TradingMode == "" {
		s.data.TradingMode = ModeDemo
	}
	s.load()
	return s
}

func (s *Store) load() {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("Failed to read settings file, using defaults")
		}
		return
	}

	loaded := s.data
	if err := json.Unmarshal(raw, &loaded); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Corrupt settings file, using defaults")
		return
	}

	s.data = loaded
	s.logger.Info().Str("path", s.path).Msg("Loaded runtime settings")
}

func (s *Store) persist() {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		s.logger.Error().Err(err).Msg("Failed to create settings directory")
		return
	}

	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to marshal settings")
		return
	}

	if err := os.WriteFile(s.path, raw, 0644); err != nil {
		s.logger.Error().Err(err).Str("path", s.path).Msg("Failed to persist settings")
	}
}

// Snapshot returns a copy of the full settings
func (s *Store) Snapshot() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// TradingMode returns the current trading mode
func (s *Store) TradingMode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.TradingMode
}

// ClaudeModel returns the current model identifier
func (s *Store) ClaudeModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.ClaudeModel
}

// ClaudeMaxTokens returns the current per-turn token budget
func (s *Store) ClaudeMaxTokens() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.ClaudeMaxTokens
}

// Update validates and applies a patch atomically. On any violation the
// whole patch is rejected with a *ValidationError and state is
// unchanged. On success the new state is persisted before returning;
// persistence failure is logged but does not roll back.
func (s *Store) Update(patch Patch) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var problems []string

	if patch.TradingMode != nil {
		mode := *patch.TradingMode
		if mode != ModeDemo && mode != ModeReal {
			problems = append(problems, fmt.Sprintf("Invalid trading_mode: %s", mode))
		} else if mode == ModeReal && !s.liveCred() {
			problems = append(problems, "실전투자 모드로 전환하려면 KIS_APP_KEY 환경변수가 필요합니다")
		}
	}

	if patch.ClaudeModel != nil {
		if !isValidModel(*patch.ClaudeModel) {
			problems = append(problems, fmt.Sprintf("Invalid model: %s", *patch.ClaudeModel))
		}
	}

	if patch.ClaudeMaxTokens != nil {
		if *patch.ClaudeMaxTokens < MinMaxTokens || *patch.ClaudeMaxTokens > MaxMaxTokens {
			problems = append(problems, "claude_max_tokens must be between 256 and 32768")
		}
	}

	if len(problems) > 0 {
		return s.data, &ValidationError{Problems: problems}
	}

	if patch.TradingMode != nil {
		s.data.TradingMode = *patch.TradingMode
	}
	if patch.ClaudeModel != nil {
		s.data.ClaudeModel = *patch.ClaudeModel
	}
	if patch.ClaudeMaxTokens != nil {
		s.data.ClaudeMaxTokens = *patch.ClaudeMaxTokens
	}

	s.persist()
	return s.data, nil
}

func isValidModel(model string) bool {
	for _, m := range ValidModels {
		if m == model {
			return true
		}
	}
	return false
}
