package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"mixcore/internal/audio"
	"mixcore/internal/diag"
	"mixcore/internal/library"
	"mixcore/internal/wav"

	wruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// App exposes the mixer engine and sound library to the Wails frontend.
type App struct {
	settings *SettingsStore
	store    *library.Store
	diag     diag.Sink

	mu     sync.Mutex
	engine *audio.Engine
	voices map[int]*audio.Voice // clip ID -> loaded Voice, lazily populated

	uiCtx context.Context
}

// NewApp loads settings from settingsPath, opens the sound library, but does
// not open an output device — call Start (typically from the bound
// frontend, once the user has picked a device) to bring the engine up.
func NewApp(settingsPath string, d diag.Sink) (*App, error) {
	store, err := NewSettingsStore(settingsPath)
	if err != nil {
		return nil, err
	}
	if d == nil {
		d = diag.NopSink{}
	}
	s := store.Get()
	if err := os.MkdirAll(s.LibraryFolder, 0755); err != nil {
		return nil, err
	}

	lib, err := library.Open(s.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open sound library: %w", err)
	}

	return &App{
		settings: store,
		store:    lib,
		diag:     d,
		voices:   make(map[int]*audio.Voice),
	}, nil
}

// SetUIContext is called by the Wails runtime once the frontend is bound, so
// event emission and file dialogs have a context to use.
func (a *App) SetUIContext(ctx context.Context) { a.uiCtx = ctx }

// Close tears down the engine, if running, and the library connection.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.engine != nil {
		_ = a.engine.Close()
		a.engine = nil
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// --- Settings API ---

func (a *App) GetSettings() UISettings { return a.settings.Get() }

func (a *App) SaveSettings(jsonStr string) (UISettings, error) {
	var cfg UISettings
	if err := json.Unmarshal([]byte(jsonStr), &cfg); err != nil {
		return UISettings{}, err
	}
	applyDefaults(&cfg)
	if err := a.settings.Save(cfg); err != nil {
		return UISettings{}, err
	}
	return cfg, nil
}

// ListOutputDevices enumerates OS-reported playback devices.
func (a *App) ListOutputDevices() ([]string, error) {
	return audio.Devices()
}

// --- Engine lifecycle ---

// IsEngineRunning reports whether the mixer is currently bound to a device.
func (a *App) IsEngineRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.engine != nil
}

// StartEngine opens deviceName with the settings' sample rate/block
// configuration and starts the mixer.
func (a *App) StartEngine(deviceName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.engine != nil {
		return fmt.Errorf("engine already running")
	}

	s := a.settings.Get()
	eng, err := audio.NewEngine(audio.Config{
		DeviceName:      deviceName,
		SampleRate:      s.SampleRate,
		Channels:        2,
		BlockCount:      s.BlockCount,
		SamplesPerBlock: s.SamplesPerBlock,
		Diag:            a.diag,
	})
	if err != nil {
		return err
	}
	a.engine = eng
	return nil
}

// StopEngine closes the mixer and drops all loaded voices.
func (a *App) StopEngine() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.engine == nil {
		return nil
	}
	err := a.engine.Close()
	a.engine = nil
	a.voices = make(map[int]*audio.Voice)
	return err
}

func (a *App) EngineMute(on bool) error {
	eng, err := a.requireEngine()
	if err != nil {
		return err
	}
	if on {
		eng.Mute()
	} else {
		eng.Unmute()
	}
	return nil
}

func (a *App) EngineVolume(v float64) error {
	eng, err := a.requireEngine()
	if err != nil {
		return err
	}
	eng.VolumeTo(v)
	return nil
}

func (a *App) requireEngine() (*audio.Engine, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.engine == nil {
		return nil, fmt.Errorf("engine is not running")
	}
	return a.engine, nil
}

// --- Sound library API ---

func (a *App) ListClips() ([]*library.Clip, error) {
	return a.store.List()
}

// ImportClip reads path as a WAVE file and catalogues it under name.
func (a *App) ImportClip(name, path, tags string) (*library.Clip, error) {
	r, err := wav.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	c := &library.Clip{
		Name:          name,
		FilePath:      path,
		Tags:          tags,
		SampleRate:    r.SampleRate,
		Channels:      r.Channels,
		BitsPerSample: r.BitsPerSample,
		DefaultVolume: 1.0,
	}
	if err := a.store.Create(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (a *App) UpdateClipTags(id int, tags string) error {
	return a.store.UpdateTags(id, tags)
}

func (a *App) DeleteClip(id int) error {
	a.mu.Lock()
	delete(a.voices, id)
	a.mu.Unlock()
	return a.store.Delete(id)
}

// --- Playback API ---

// PlayClip loads (if not already loaded) and plays clip id. Calling it again
// while the clip is already sounding stacks a second, independent playback.
func (a *App) PlayClip(id int) error {
	v, err := a.voiceFor(id)
	if err != nil {
		return err
	}
	v.Play()
	a.emitClipEvent("playing", id)
	return nil
}

func (a *App) StopClip(id int) error {
	a.mu.Lock()
	v, ok := a.voices[id]
	a.mu.Unlock()
	if !ok {
		return nil
	}
	v.Stop()
	a.emitClipEvent("stopped", id)
	return nil
}

func (a *App) SetClipLoop(id int, loop bool) error {
	a.mu.Lock()
	v, ok := a.voices[id]
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("clip %d is not loaded", id)
	}
	if loop {
		v.Loop()
	} else {
		v.Unloop()
	}
	return nil
}

func (a *App) SetClipVolume(id int, vol float64) error {
	a.mu.Lock()
	v, ok := a.voices[id]
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("clip %d is not loaded", id)
	}
	v.VolumeTo(vol)
	return nil
}

func (a *App) voiceFor(id int) (*audio.Voice, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.engine == nil {
		return nil, fmt.Errorf("engine is not running")
	}
	if v, ok := a.voices[id]; ok {
		return v, nil
	}

	c, err := a.store.Get(id)
	if err != nil {
		return nil, err
	}
	v, err := audio.NewVoice(a.engine).LoadWAVE(c.FilePath)
	if err != nil {
		return nil, fmt.Errorf("read clip %d: %w", id, err)
	}
	v.VolumeTo(c.DefaultVolume)
	if c.DefaultLoop {
		v.Loop()
	}
	a.voices[id] = v
	return v, nil
}

// PickWavFile opens a native file picker restricted to .wav files.
func (a *App) PickWavFile() (string, error) {
	if a.uiCtx == nil {
		return "", fmt.Errorf("UI context not set")
	}
	path, err := wruntime.OpenFileDialog(a.uiCtx, wruntime.OpenDialogOptions{
		Title:            "Choose a sound file",
		DefaultDirectory: filepath.Dir(a.settings.Get().LibraryFolder),
		Filters:          []wruntime.FileFilter{{DisplayName: "WAV", Pattern: "*.wav"}},
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

func (a *App) emitClipEvent(kind string, id int) {
	if a.uiCtx == nil {
		return
	}
	wruntime.EventsEmit(a.uiCtx, "clip:"+strings.ToLower(kind), id)
}
