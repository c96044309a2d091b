package settings

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"strconv"
	"sync"
	"time"

	"github.com/jmylchreest/compressr/internal/config"
	"github.com/jmylchreest/compressr/internal/storage"
)

// Store is the layered settings store. All methods are safe for concurrent
// use; the mutex is held per operation and never across file decoding of
// untrusted size.
type Store struct {
	mu     sync.Mutex
	ws     *storage.Workspace
	logger *slog.Logger

	globalFile string
	userFile   string

	defaults Document
	global   Document
	users    map[string]*UserOverlay
}

// NewStore loads both settings layers from the workspace. Missing files
// start from defaults (the global file is created); corrupt files reset to
// defaults with a warning instead of failing startup.
func NewStore(ws *storage.Workspace, cfg *config.Config, nvidiaAvailable bool, logger *slog.Logger) (*Store, error) {
	s := &Store{
		ws:         ws,
		logger:     logger.With("component", "settings"),
		globalFile: cfg.Storage.SettingsFile,
		userFile:   cfg.Storage.UserSettingsFile,
		defaults:   DefaultDocument(cfg, nvidiaAvailable),
		users:      make(map[string]*UserOverlay),
	}

	if err := s.loadGlobal(); err != nil {
		return nil, err
	}
	s.loadUsers()

	return s, nil
}

func (s *Store) loadGlobal() error {
	s.global = s.cloneDefaults()

	exists, err := s.ws.Exists(s.globalFile)
	if err != nil {
		return fmt.Errorf("checking settings file: %w", err)
	}
	if !exists {
		if err := s.persistGlobalLocked(); err != nil {
			return fmt.Errorf("creating settings file: %w", err)
		}
		s.logger.Info("created default settings", "file", s.globalFile)
		return nil
	}

	data, err := s.ws.ReadFile(s.globalFile)
	if err != nil {
		return fmt.Errorf("reading settings file: %w", err)
	}

	// Unmarshaling over the defaults gives deep-merge semantics: keys the
	// file omits keep their default values.
	merged := s.cloneDefaults()
	if err := json.Unmarshal(data, &merged); err != nil {
		s.logger.Warn("settings file is corrupt, using defaults", "file", s.globalFile, "error", err)
		s.global = s.cloneDefaults()
		return nil
	}
	if merged.ActivePreset != PresetCustom {
		if _, ok := merged.CompressionPresets[merged.ActivePreset]; !ok {
			s.logger.Warn("unknown active preset, falling back",
				"preset", merged.ActivePreset, "fallback", PresetBalanced)
			merged.ActivePreset = PresetBalanced
		}
	}
	s.global = merged
	return nil
}

func (s *Store) loadUsers() {
	exists, err := s.ws.Exists(s.userFile)
	if err != nil || !exists {
		return
	}

	data, err := s.ws.ReadFile(s.userFile)
	if err != nil {
		s.logger.Warn("reading user settings failed", "file", s.userFile, "error", err)
		return
	}

	var loaded map[string]*UserOverlay
	if err := json.Unmarshal(data, &loaded); err != nil {
		s.logger.Warn("user settings file is corrupt, ignoring", "file", s.userFile, "error", err)
		return
	}

	// Re-validate on load: JSON numbers arrive as float64 and stale entries
	// may be out of range. Invalid entries are dropped.
	for userKey, overlay := range loaded {
		if overlay == nil {
			continue
		}
		clean := &UserOverlay{ActivePreset: overlay.ActivePreset}
		for category, kv := range overlay.Overrides {
			for key, value := range kv {
				coerced, err := validateValue(category, key, value)
				if err != nil {
					s.logger.Warn("dropping invalid user override",
						"user", userKey, "category", category, "key", key, "error", err)
					continue
				}
				if clean.Overrides == nil {
					clean.Overrides = make(map[string]map[string]any)
				}
				if clean.Overrides[category] == nil {
					clean.Overrides[category] = make(map[string]any)
				}
				clean.Overrides[category][key] = coerced
			}
		}
		if !clean.empty() {
			s.users[userKey] = clean
		}
	}
}

func (s *Store) cloneDefaults() Document {
	doc := s.defaults
	doc.CompressionPresets = maps.Clone(s.defaults.CompressionPresets)
	return doc
}

func (s *Store) persistGlobalLocked() error {
	data, err := json.MarshalIndent(&s.global, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	return s.ws.AtomicWrite(s.globalFile, data)
}

func (s *Store) persistUsersLocked() error {
	data, err := json.MarshalIndent(s.users, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding user settings: %w", err)
	}
	return s.ws.AtomicWrite(s.userFile, data)
}

func userKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

func (s *Store) overlayLocked(userID int64) *UserOverlay {
	if userID == 0 {
		return nil
	}
	return s.users[userKey(userID)]
}

// Get returns the effective value of one key for a user. The user layer
// wins over the global layer.
func (s *Store) Get(category, key string, userID int64) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if overlay := s.overlayLocked(userID); overlay != nil {
		if kv, ok := overlay.Overrides[category]; ok {
			if value, ok := kv[key]; ok {
				return value, true
			}
		}
	}
	return s.global.getKey(category, key)
}

// GetCategory returns the effective key/value view of a category for a user.
// Unknown categories yield an empty map, never an error.
func (s *Store) GetCategory(category string, userID int64) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[string]any)
	for _, key := range categoryKeys[category] {
		if value, ok := s.global.getKey(category, key); ok {
			result[key] = value
		}
	}
	if overlay := s.overlayLocked(userID); overlay != nil {
		for key, value := range overlay.Overrides[category] {
			result[key] = value
		}
	}
	return result
}

// Set validates and stores one key. A non-zero userID writes the user layer,
// zero writes the global layer. Both layers persist before Set returns; the
// global file is replaced atomically.
func (s *Store) Set(category, key string, value any, userID int64) error {
	coerced, err := validateValue(category, key, value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if userID != 0 {
		uk := userKey(userID)
		overlay := s.users[uk]
		if overlay == nil {
			overlay = &UserOverlay{}
			s.users[uk] = overlay
		}
		if overlay.Overrides == nil {
			overlay.Overrides = make(map[string]map[string]any)
		}
		if overlay.Overrides[category] == nil {
			overlay.Overrides[category] = make(map[string]any)
		}
		overlay.Overrides[category][key] = coerced
		return s.persistUsersLocked()
	}

	if err := s.global.setKey(category, key, coerced); err != nil {
		return err
	}
	return s.persistGlobalLocked()
}

// ActivePreset returns the effective preset name for a user. Unknown names
// resolve to the balanced fallback.
func (s *Store) ActivePreset(userID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activePresetLocked(userID)
}

func (s *Store) activePresetLocked(userID int64) string {
	name := s.global.ActivePreset
	if overlay := s.overlayLocked(userID); overlay != nil && overlay.ActivePreset != "" {
		name = overlay.ActivePreset
	}
	if name == PresetCustom {
		return name
	}
	if _, ok := s.global.CompressionPresets[name]; !ok {
		return PresetBalanced
	}
	return name
}

// SetActivePreset selects a preset (or "custom") for a user, or globally
// when userID is zero.
func (s *Store) SetActivePreset(name string, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name != PresetCustom {
		if _, ok := s.global.CompressionPresets[name]; !ok {
			return fmt.Errorf("unknown preset %q", name)
		}
	}

	if userID != 0 {
		uk := userKey(userID)
		overlay := s.users[uk]
		if overlay == nil {
			overlay = &UserOverlay{}
			s.users[uk] = overlay
		}
		overlay.ActivePreset = name
		return s.persistUsersLocked()
	}

	s.global.ActivePreset = name
	return s.persistGlobalLocked()
}

// ActiveProfile resolves the effective encode profile for a user. Presets
// overlay the custom_compression base; hardware selections fall back to
// balanced when no hardware encoder is available.
func (s *Store) ActiveProfile(userID int64, hwAvailable bool) EncodeProfile {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := s.effectiveCompressionLocked(userID)
	name := s.activePresetLocked(userID)

	if name != PresetCustom {
		preset, ok := s.global.CompressionPresets[name]
		if !ok {
			preset = s.global.CompressionPresets[PresetBalanced]
		}
		if isHardwareCodec(preset.Codec) && !hwAvailable {
			preset = s.global.CompressionPresets[PresetBalanced]
		}
		return overlayPreset(base, preset)
	}

	profile := profileFromCustom(base)
	if profile.IsHardware() && !hwAvailable {
		return overlayPreset(base, s.global.CompressionPresets[PresetBalanced])
	}
	return profile
}

// AvailablePresets lists selectable presets in menu order. Hardware presets
// are hidden when no NVIDIA encoder is available; custom is always last.
func (s *Store) AvailablePresets(nvidiaAvailable bool) []PresetInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]PresetInfo, 0, len(presetOrder)+1)
	for _, name := range presetOrder {
		preset, ok := s.global.CompressionPresets[name]
		if !ok {
			continue
		}
		if isHardwareCodec(preset.Codec) && !nvidiaAvailable {
			continue
		}
		infos = append(infos, PresetInfo{Name: name, Description: PresetDescription(name)})
	}
	infos = append(infos, PresetInfo{Name: PresetCustom, Description: PresetDescription(PresetCustom)})
	return infos
}

// Export writes the global layer as indented JSON.
func (s *Store) Export(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(&s.global)
}

// Import replaces the global layer with a JSON document, merged over
// defaults and validated as a whole. Nothing changes on error.
func (s *Store) Import(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading import: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merged := s.cloneDefaults()
	if err := json.Unmarshal(data, &merged); err != nil {
		return fmt.Errorf("decoding import: %w", err)
	}
	if err := merged.Validate(); err != nil {
		return fmt.Errorf("validating import: %w", err)
	}

	s.global = merged
	return s.persistGlobalLocked()
}

// ResetToDefaults clears a user's overrides, or resets the global document
// when userID is zero.
func (s *Store) ResetToDefaults(userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if userID != 0 {
		delete(s.users, userKey(userID))
		return s.persistUsersLocked()
	}

	s.global = s.cloneDefaults()
	return s.persistGlobalLocked()
}

func (s *Store) effectiveCompressionLocked(userID int64) CompressionSettings {
	c := s.global.CustomCompression
	if overlay := s.overlayLocked(userID); overlay != nil {
		for key, value := range overlay.Overrides[CategoryCompression] {
			_ = c.set(key, value)
		}
	}
	return c
}

// Output returns the effective output settings for a user.
func (s *Store) Output(userID int64) OutputSettings {
	s.mu.Lock()
	defer s.mu.Unlock()

	o := s.global.Output
	if overlay := s.overlayLocked(userID); overlay != nil {
		for key, value := range overlay.Overrides[CategoryOutput] {
			_ = o.set(key, value)
		}
	}
	return o
}

// Preview returns the effective preview settings for a user.
func (s *Store) Preview(userID int64) PreviewSettings {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.global.Preview
	if overlay := s.overlayLocked(userID); overlay != nil {
		for key, value := range overlay.Overrides[CategoryPreview] {
			_ = p.set(key, value)
		}
	}
	return p
}

// Advanced returns the effective advanced settings for a user.
func (s *Store) Advanced(userID int64) AdvancedSettings {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.global.Advanced
	if overlay := s.overlayLocked(userID); overlay != nil {
		for key, value := range overlay.Overrides[CategoryAdvanced] {
			_ = a.set(key, value)
		}
	}
	return a
}

// Thumbnail returns the effective thumbnail settings for a user.
func (s *Store) Thumbnail(userID int64) ThumbnailSettings {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.global.Thumbnail
	if overlay := s.overlayLocked(userID); overlay != nil {
		for key, value := range overlay.Overrides[CategoryThumbnail] {
			_ = t.set(key, value)
		}
	}
	return t
}

// ProgressInterval returns the effective progress edit cadence for a user.
func (s *Store) ProgressInterval(userID int64) time.Duration {
	return time.Duration(s.Advanced(userID).ProgressUpdateInterval) * time.Second
}

// GlobalDocument returns a copy of the global layer for diagnostics.
func (s *Store) GlobalDocument() Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.global
	doc.CompressionPresets = maps.Clone(s.global.CompressionPresets)
	return doc
}
