// Package update checks GitHub releases for a newer agentoast build and
// can replace the running binary in place.
package update

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/shuntaka9576/agentoast/internal/config"
)

const (
	// GitHubRepo is the repository checked for releases
	GitHubRepo = "shuntaka9576/agentoast"

	// CacheFileName stores the last release check result
	CacheFileName = "update-cache.json"

	// DefaultCheckInterval between release checks. Overridable via
	// config.toml [update] check_interval_hours.
	DefaultCheckInterval = 1 * time.Hour
)

var checkInterval = DefaultCheckInterval

// SetCheckInterval sets the release check interval from config.
func SetCheckInterval(hours int) {
	if hours > 0 {
		checkInterval = time.Duration(hours) * time.Hour
	}
}

// Release is a GitHub release as returned by the releases API.
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	PublishedAt time.Time `json:"published_at"`
	HTMLURL     string    `json:"html_url"`
	Assets      []Asset   `json:"assets"`
}

// Asset is one downloadable file attached to a release.
type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
}

// checkCache stores the last check result so repeated invocations do not
// hit the GitHub API inside the check interval.
type checkCache struct {
	CheckedAt      time.Time `json:"checked_at"`
	LatestVersion  string    `json:"latest_version"`
	CurrentVersion string    `json:"current_version"`
	DownloadURL    string    `json:"download_url"`
	ReleaseURL     string    `json:"release_url"`
}

// Info describes whether a newer release exists.
type Info struct {
	Available      bool
	CurrentVersion string
	LatestVersion  string
	DownloadURL    string
	ReleaseURL     string
}

func cachePath() (string, error) {
	dir, err := config.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, CacheFileName), nil
}

func loadCache() (*checkCache, error) {
	path, err := cachePath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c checkCache
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func saveCache(c *checkCache) error {
	path, err := cachePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func fetchLatestRelease() (*Release, error) {
	url := fmt.Sprintf("https://api.github.com/repos/%s/releases/latest", GitHubRepo)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetching release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("parsing release: %w", err)
	}
	return &release, nil
}

// assetURL returns the download URL matching the running platform.
// Release archives are named agentoast_X.Y.Z_os_arch.tar.gz.
func assetURL(release *Release) string {
	version := strings.TrimPrefix(release.TagName, "v")
	want := fmt.Sprintf("agentoast_%s_%s_%s.tar.gz", version, runtime.GOOS, runtime.GOARCH)

	for _, asset := range release.Assets {
		if asset.Name == want {
			return asset.BrowserDownloadURL
		}
	}
	return ""
}

// CompareVersions compares two semantic versions.
// Returns -1 if v1 < v2, 0 if equal, 1 if v1 > v2.
func CompareVersions(v1, v2 string) int {
	v1 = strings.TrimPrefix(v1, "v")
	v2 = strings.TrimPrefix(v2, "v")

	parts1 := strings.Split(v1, ".")
	parts2 := strings.Split(v2, ".")
	for len(parts1) < 3 {
		parts1 = append(parts1, "0")
	}
	for len(parts2) < 3 {
		parts2 = append(parts2, "0")
	}

	for i := 0; i < 3; i++ {
		var n1, n2 int
		_, _ = fmt.Sscanf(parts1[i], "%d", &n1)
		_, _ = fmt.Sscanf(parts2[i], "%d", &n2)
		if n1 < n2 {
			return -1
		}
		if n1 > n2 {
			return 1
		}
	}
	return 0
}

// Check reports whether a newer release is available. The cached result
// is used when fresh unless force is set.
func Check(currentVersion string, force bool) (*Info, error) {
	info := &Info{CurrentVersion: currentVersion}

	if !force {
		c, err := loadCache()
		if err == nil && time.Since(c.CheckedAt) < checkInterval {
			info.LatestVersion = c.LatestVersion
			info.DownloadURL = c.DownloadURL
			info.ReleaseURL = c.ReleaseURL
			info.Available = CompareVersions(currentVersion, c.LatestVersion) < 0
			return info, nil
		}
	}

	release, err := fetchLatestRelease()
	if err != nil {
		return info, err
	}

	latest := strings.TrimPrefix(release.TagName, "v")
	downloadURL := assetURL(release)

	// Cache save failures only cost an extra API call next time.
	_ = saveCache(&checkCache{
		CheckedAt:      time.Now(),
		LatestVersion:  latest,
		CurrentVersion: currentVersion,
		DownloadURL:    downloadURL,
		ReleaseURL:     release.HTMLURL,
	})

	info.LatestVersion = latest
	info.DownloadURL = downloadURL
	info.ReleaseURL = release.HTMLURL
	info.Available = CompareVersions(currentVersion, latest) < 0
	return info, nil
}

// CheckAsync runs Check in the background and delivers the result on the
// returned channel. Errors degrade to "no update available".
func CheckAsync(currentVersion string) <-chan *Info {
	ch := make(chan *Info, 1)
	go func() {
		info, err := Check(currentVersion, false)
		if err != nil {
			ch <- &Info{CurrentVersion: currentVersion}
		} else {
			ch <- info
		}
		close(ch)
	}()
	return ch
}

// Apply downloads the release archive and swaps the running binary.
func Apply(downloadURL string) error {
	if downloadURL == "" {
		return fmt.Errorf("no release asset for %s/%s", runtime.GOOS, runtime.GOARCH)
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating executable: %w", err)
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return fmt.Errorf("resolving symlinks: %w", err)
	}

	fmt.Printf("Downloading %s...\n", downloadURL)
	client := &http.Client{Timeout: 120 * time.Second}
	resp, err := client.Get(downloadURL)
	if err != nil {
		return fmt.Errorf("downloading release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	tmpFile, err := os.CreateTemp("", "agentoast-update-*.tar.gz")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	_, err = io.Copy(tmpFile, resp.Body)
	tmpFile.Close()
	if err != nil {
		return fmt.Errorf("saving download: %w", err)
	}

	fmt.Println("Extracting...")
	binary, err := extractBinary(tmpPath)
	if err != nil {
		return fmt.Errorf("extracting archive: %w", err)
	}

	// Write next to the target, then swap with renames so a failure
	// between steps leaves a runnable binary in place.
	newPath := execPath + ".new"
	if err := os.WriteFile(newPath, binary, 0o755); err != nil {
		return fmt.Errorf("writing new binary: %w", err)
	}

	oldPath := execPath + ".old"
	if err := os.Rename(execPath, oldPath); err != nil {
		os.Remove(newPath)
		return fmt.Errorf("backing up current binary: %w", err)
	}
	if err := os.Rename(newPath, execPath); err != nil {
		_ = os.Rename(oldPath, execPath)
		return fmt.Errorf("installing new binary: %w", err)
	}
	os.Remove(oldPath)

	fmt.Println("✓ Update complete")
	return nil
}

// extractBinary pulls the agentoast binary out of a release tarball.
func extractBinary(tarPath string) ([]byte, error) {
	file, err := os.Open(tarPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	gzr, err := gzip.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if header.Typeflag == tar.TypeReg && filepath.Base(header.Name) == "agentoast" {
			return io.ReadAll(tr)
		}
	}
	return nil, fmt.Errorf("agentoast binary not found in archive")
}
