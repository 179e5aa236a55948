// Package updater checks for daemon releases and downloads installers.
package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/semver"

	"github.com/cliptray/cliptrayd/internal/apperror"
	"github.com/cliptray/cliptrayd/internal/events"
)

// Download states reported through DownloadProgress.
const (
	StatusStarting    = "Starting"
	StatusDownloading = "Downloading"
	StatusCompleted   = "Completed"
	StatusFailed      = "Failed"
)

// ReleaseInfo describes the latest published release.
type ReleaseInfo struct {
	Version      string `json:"version"`
	ReleaseNotes string `json:"release_notes"`
	DownloadURL  string `json:"download_url"`
	UpdateNeeded bool   `json:"update_needed"`
}

// DownloadProgress is streamed to clients while an installer downloads.
type DownloadProgress struct {
	TotalBytes      int64   `json:"total_bytes"`
	DownloadedBytes int64   `json:"downloaded_bytes"`
	Percentage      float64 `json:"percentage"`
	Speed           float64 `json:"speed"` // bytes per second
	Status          string  `json:"status"`
}

// InstallerInfo points at a downloaded installer on disk.
type InstallerInfo struct {
	FilePath string `json:"file_path"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
}

type githubRelease struct {
	TagName string `json:"tag_name"`
	Body    string `json:"body"`
	Assets  []struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

// Manager checks the release feed and owns at most one download at a time.
type Manager struct {
	client         *http.Client
	releasesURL    string
	currentVersion string
	downloadDir    string
	bus            *events.Bus
	logger         *slog.Logger
	shutdown       func()
	launch         func(cmd *exec.Cmd) error

	mu     sync.Mutex
	cancel context.CancelFunc
}

type Option func(*Manager)

func WithReleasesURL(url string) Option {
	return func(m *Manager) { m.releasesURL = url }
}

func WithDownloadDir(dir string) Option {
	return func(m *Manager) { m.downloadDir = dir }
}

// WithShutdown sets the hook the manager calls after it hands an installer
// to the OS, so the daemon can exit and let the installer replace it.
func WithShutdown(fn func()) Option {
	return func(m *Manager) { m.shutdown = fn }
}

func New(repo, currentVersion string, bus *events.Bus, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		client:         &http.Client{Timeout: 30 * time.Second},
		releasesURL:    fmt.Sprintf("https://api.github.com/repos/%s/releases/latest", repo),
		currentVersion: currentVersion,
		downloadDir:    os.TempDir(),
		bus:            bus,
		logger:         logger,
		launch:         func(cmd *exec.Cmd) error { return cmd.Start() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Check fetches the latest release and compares it to the running version.
func (m *Manager) Check(ctx context.Context) (*ReleaseInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.releasesURL, nil)
	if err != nil {
		return nil, fmt.Errorf("updater: building release request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, apperror.Unavailable("release feed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("updater: release feed returned %s", resp.Status)
	}

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("updater: decoding release: %w", err)
	}

	info := &ReleaseInfo{
		Version:      strings.TrimPrefix(release.TagName, "v"),
		ReleaseNotes: release.Body,
		UpdateNeeded: newerVersion(release.TagName, m.currentVersion),
	}
	if asset := pickAsset(release); asset != "" {
		info.DownloadURL = asset
	}
	return info, nil
}

// Download fetches the installer, streaming progress events while it runs.
// A second download while one is active is refused.
func (m *Manager) Download(ctx context.Context, url string) (*InstallerInfo, error) {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return nil, apperror.Conflict("a download is already in progress")
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	defer func() {
		cancel()
		m.mu.Lock()
		m.cancel = nil
		m.mu.Unlock()
	}()

	m.publish(DownloadProgress{Status: StatusStarting})

	info, err := m.download(ctx, url)
	if err != nil {
		m.publish(DownloadProgress{Status: StatusFailed})
		return nil, err
	}

	m.publish(DownloadProgress{
		TotalBytes:      info.FileSize,
		DownloadedBytes: info.FileSize,
		Percentage:      100,
		Status:          StatusCompleted,
	})
	m.logger.Info("installer downloaded", "file", info.FileName, "bytes", info.FileSize)
	return info, nil
}

// Cancel aborts the active download, if any.
func (m *Manager) Cancel() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel == nil {
		return false
	}
	m.cancel()
	return true
}

// Install hands the downloaded installer to the OS and then asks the daemon
// to shut down so the installer can replace the binary.
func (m *Manager) Install(info *InstallerInfo) error {
	if _, err := os.Stat(info.FilePath); err != nil {
		return apperror.NotFound("installer", info.FileName)
	}
	cmd := installerCommand(runtime.GOOS, info.FilePath)
	if err := m.launch(cmd); err != nil {
		return fmt.Errorf("updater: launching installer: %w", err)
	}
	m.logger.Info("installer launched, shutting down", "file", info.FilePath)
	if m.shutdown != nil {
		go m.shutdown()
	}
	return nil
}

// installerCommand picks the OS launcher for a downloaded installer.
// Windows packages run silently; elsewhere the file is handed to the
// desktop opener.
func installerCommand(goos, path string) *exec.Cmd {
	switch goos {
	case "windows":
		switch strings.ToLower(filepath.Ext(path)) {
		case ".msi":
			return exec.Command("msiexec", "/i", path, "/quiet", "/norestart")
		case ".exe":
			return exec.Command(path, "/S", "/silent", "/norestart")
		default:
			return exec.Command("cmd", "/c", "start", "", path)
		}
	case "darwin":
		return exec.Command("open", path)
	default:
		return exec.Command("xdg-open", path)
	}
}

func (m *Manager) download(ctx context.Context, url string) (*InstallerInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("updater: building download request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("updater: downloading installer: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("updater: download returned %s", resp.Status)
	}

	fileName := filepath.Base(url)
	filePath := filepath.Join(m.downloadDir, fileName)
	out, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("updater: creating installer file: %w", err)
	}
	defer out.Close()

	total := resp.ContentLength
	var downloaded int64
	start := time.Now()
	lastEvent := start
	buf := make([]byte, 64*1024)

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				out.Close()
				os.Remove(filePath)
				return nil, fmt.Errorf("updater: writing installer file: %w", err)
			}
			downloaded += int64(n)

			if time.Since(lastEvent) >= 200*time.Millisecond {
				lastEvent = time.Now()
				m.publish(progressEvent(total, downloaded, start))
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			// a partial installer must never be installable later
			out.Close()
			os.Remove(filePath)
			return nil, fmt.Errorf("updater: reading installer: %w", readErr)
		}
	}

	return &InstallerInfo{
		FilePath: filePath,
		FileName: fileName,
		FileSize: downloaded,
	}, nil
}

func progressEvent(total, downloaded int64, start time.Time) DownloadProgress {
	p := DownloadProgress{
		TotalBytes:      total,
		DownloadedBytes: downloaded,
		Status:          StatusDownloading,
	}
	if total > 0 {
		p.Percentage = float64(downloaded) / float64(total) * 100
	}
	if elapsed := time.Since(start).Seconds(); elapsed > 0 {
		p.Speed = float64(downloaded) / elapsed
	}
	return p
}

func (m *Manager) publish(p DownloadProgress) {
	m.bus.Publish(events.DownloadProgress, p)
}

// newerVersion reports whether latest is a higher semantic version than
// current. Tags may carry a "v" prefix or not.
func newerVersion(latest, current string) bool {
	l := ensureV(latest)
	c := ensureV(current)
	if !semver.IsValid(l) || !semver.IsValid(c) {
		return false
	}
	return semver.Compare(l, c) > 0
}

func ensureV(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

// pickAsset chooses the installer asset matching the running platform.
func pickAsset(release githubRelease) string {
	patterns := map[string][]string{
		"windows": {".msi", ".exe"},
		"darwin":  {".dmg", ".pkg"},
		"linux":   {".AppImage", ".deb", ".rpm"},
	}
	for _, suffix := range patterns[runtime.GOOS] {
		for _, asset := range release.Assets {
			if strings.HasSuffix(asset.Name, suffix) {
				return asset.BrowserDownloadURL
			}
		}
	}
	if len(release.Assets) > 0 {
		return release.Assets[0].BrowserDownloadURL
	}
	return ""
}
