// SPDX-License-Identifier: MPL-2.0

// Package selfupdate replaces the running gauntlet binary with a release
// downloaded from GitHub. The flow is: detect how the binary was installed,
// compare versions, download the platform archive, verify its SHA256 against
// the release's checksums.txt, extract, and atomically swap the executable.
// Homebrew and go-install binaries are never touched; the updater points the
// user at the owning package manager.
package selfupdate

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/mod/semver"
)

// maxArchiveBytes bounds release downloads and extracted binaries against
// decompression bombs.
const maxArchiveBytes = 500 << 20

var (
	// ErrInvalidVersion indicates a version string that is not valid semver.
	ErrInvalidVersion = errors.New("invalid semantic version")
	// ErrChecksumMismatch indicates the downloaded archive failed verification.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrAssetNotFound indicates the release has no asset for this platform.
	ErrAssetNotFound = errors.New("release asset not found")
	// ErrManagedInstall indicates a package manager owns the binary.
	ErrManagedInstall = errors.New("binary is managed by a package manager")

	// osExecutable is a test seam for os.Executable.
	osExecutable = os.Executable
)

type (
	// Check is the outcome of comparing the running version to a release.
	Check struct {
		CurrentVersion string
		LatestVersion  string
		Target         *Release // nil when no applicable upgrade exists
		InstallMethod  InstallMethod
		Available      bool
		Message        string
	}

	// Updater drives the check/apply upgrade flow.
	Updater struct {
		client         *GitHubClient
		currentVersion string
	}

	// UpdaterOption configures an Updater during construction.
	UpdaterOption func(*Updater)
)

// WithGitHubClient overrides the default release client.
func WithGitHubClient(c *GitHubClient) UpdaterOption {
	return func(u *Updater) { u.client = c }
}

// NewUpdater creates an Updater for the currently running version.
func NewUpdater(currentVersion string, opts ...UpdaterOption) *Updater {
	u := &Updater{currentVersion: currentVersion}
	for _, opt := range opts {
		opt(u)
	}
	if u.client == nil {
		u.client = NewGitHubClient()
	}
	return u
}

// CheckUpgrade compares the running version against the latest stable
// release, or against targetVersion when given. Managed installs return
// immediately with guidance and no API call.
func (u *Updater) CheckUpgrade(ctx context.Context, targetVersion string) (*Check, error) {
	execPath, err := resolveExecPath()
	if err != nil {
		return nil, fmt.Errorf("resolving executable path: %w", err)
	}

	method := DetectInstallMethod(execPath)
	if method.Managed() {
		return &Check{
			CurrentVersion: u.currentVersion,
			InstallMethod:  method,
			Message:        managedMessage(method, execPath),
		}, nil
	}

	var release *Release
	if targetVersion != "" {
		tag, err := normalizeVersion(targetVersion)
		if err != nil {
			return nil, err
		}
		if release, err = u.client.ReleaseByTag(ctx, tag); err != nil {
			return nil, fmt.Errorf("fetching release %s: %w", tag, err)
		}
	} else {
		if release, err = u.client.LatestRelease(ctx); err != nil {
			return nil, fmt.Errorf("fetching latest release: %w", err)
		}
	}

	check := &Check{
		CurrentVersion: u.currentVersion,
		LatestVersion:  release.TagName,
		InstallMethod:  method,
	}

	current, err := normalizeVersion(u.currentVersion)
	if err != nil {
		// Dev builds have no semver; any release is an upgrade.
		check.Target = release
		check.Available = true
		check.Message = fmt.Sprintf("Upgrade available: %s -> %s", u.currentVersion, release.TagName)
		return check, nil
	}

	switch {
	case targetVersion != "":
		check.Target = release
		check.Available = release.TagName != current
		check.Message = fmt.Sprintf("Switching %s -> %s", current, release.TagName)
	case semver.Compare(release.TagName, current) > 0:
		check.Target = release
		check.Available = true
		check.Message = fmt.Sprintf("Upgrade available: %s -> %s", current, release.TagName)
	default:
		check.Message = fmt.Sprintf("Already up to date (%s)", current)
	}
	return check, nil
}

// Apply downloads the release archive for this platform, verifies it against
// the release's checksums.txt, and atomically replaces the running binary.
func (u *Updater) Apply(ctx context.Context, release *Release) error {
	execPath, err := resolveExecPath()
	if err != nil {
		return fmt.Errorf("resolving executable path: %w", err)
	}
	if DetectInstallMethod(execPath).Managed() {
		return ErrManagedInstall
	}

	archiveName := archiveAssetName(release.TagName)
	archiveAsset, ok := findAsset(release, archiveName)
	if !ok {
		return fmt.Errorf("%w: %s in release %s", ErrAssetNotFound, archiveName, release.TagName)
	}

	// A release without checksums is not installable; refusing beats
	// swapping the binary for unverified bytes.
	sumsAsset, ok := findAsset(release, "checksums.txt")
	if !ok {
		return fmt.Errorf("%w: checksums.txt in release %s", ErrAssetNotFound, release.TagName)
	}

	var archive bytes.Buffer
	if err := u.client.DownloadAsset(ctx, archiveAsset, &archive, maxArchiveBytes); err != nil {
		return err
	}

	var sums bytes.Buffer
	if err := u.client.DownloadAsset(ctx, sumsAsset, &sums, maxJSONResponseBytes); err != nil {
		return err
	}
	if err := verifyChecksum(&sums, archiveName, archive.Bytes()); err != nil {
		return err
	}

	binary, err := extractBinary(archive.Bytes())
	if err != nil {
		return err
	}
	return replaceExecutable(execPath, binary)
}

// resolveExecPath returns the running executable with symlinks resolved, so
// install-method heuristics see the real location.
func resolveExecPath() (string, error) {
	execPath, err := osExecutable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
		return resolved, nil
	}
	return execPath, nil
}

// normalizeVersion canonicalizes "1.2.0" or "v1.2.0" to a "v"-prefixed tag.
func normalizeVersion(v string) (string, error) {
	tag := v
	if !strings.HasPrefix(tag, "v") {
		tag = "v" + tag
	}
	if !semver.IsValid(tag) {
		return "", fmt.Errorf("%w: %q", ErrInvalidVersion, v)
	}
	return tag, nil
}

// archiveAssetName builds the platform asset filename, e.g.
// "gauntlet_1.2.0_linux_amd64.tar.gz". Release filenames carry the bare
// version, tags carry the v prefix.
func archiveAssetName(tag string) string {
	return fmt.Sprintf("gauntlet_%s_%s_%s.tar.gz",
		strings.TrimPrefix(tag, "v"), runtime.GOOS, runtime.GOARCH)
}

func findAsset(release *Release, name string) (Asset, bool) {
	for _, a := range release.Assets {
		if a.Name == name {
			return a, true
		}
	}
	return Asset{}, false
}

// verifyChecksum checks data against the sha256sum-format checksums file
// ("<hex>  <filename>" per line).
func verifyChecksum(sums io.Reader, filename string, data []byte) error {
	scanner := bufio.NewScanner(sums)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 || fields[1] != filename {
			continue
		}
		got := sha256.Sum256(data)
		gotHex := hex.EncodeToString(got[:])
		if !strings.EqualFold(gotHex, fields[0]) {
			return fmt.Errorf("%w for %s: expected %s, got %s",
				ErrChecksumMismatch, filename, fields[0], gotHex)
		}
		return nil
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading checksums: %w", err)
	}
	return fmt.Errorf("%w: %s has no entry in checksums.txt", ErrAssetNotFound, filename)
}

// extractBinary pulls the gauntlet executable out of a tar.gz archive. It
// matches on base name so flat and nested archive layouts both work.
func extractBinary(archive []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(archive))
	if err != nil {
		return nil, fmt.Errorf("opening release archive: %w", err)
	}
	defer gz.Close()

	want := "gauntlet"
	if runtime.GOOS == "windows" {
		want = "gauntlet.exe"
	}

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading release archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg || filepath.Base(hdr.Name) != want {
			continue
		}
		binary, err := io.ReadAll(io.LimitReader(tr, maxArchiveBytes+1))
		if err != nil {
			return nil, fmt.Errorf("extracting binary: %w", err)
		}
		if len(binary) > maxArchiveBytes {
			return nil, fmt.Errorf("extracting binary: exceeds %d byte limit", maxArchiveBytes)
		}
		return binary, nil
	}
	return nil, fmt.Errorf("%w: no %s in archive", ErrAssetNotFound, want)
}

// replaceExecutable swaps the binary in place: write a temp file next to the
// target (same filesystem, so rename is atomic), then rename over it. On
// Windows the running binary cannot be unlinked, so it is moved aside first.
func replaceExecutable(execPath string, binary []byte) error {
	dir := filepath.Dir(execPath)
	tmp, err := os.CreateTemp(dir, ".gauntlet-upgrade-*")
	if err != nil {
		return fmt.Errorf("staging new binary: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(binary); err != nil {
		tmp.Close()
		return fmt.Errorf("writing new binary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing new binary: %w", err)
	}
	if err := os.Chmod(tmpName, 0o755); err != nil {
		return fmt.Errorf("marking new binary executable: %w", err)
	}

	if runtime.GOOS == "windows" {
		old := execPath + ".old"
		os.Remove(old)
		if err := os.Rename(execPath, old); err != nil {
			return fmt.Errorf("moving current binary aside: %w", err)
		}
	}
	if err := os.Rename(tmpName, execPath); err != nil {
		return fmt.Errorf("installing new binary: %w", err)
	}
	return nil
}

func managedMessage(method InstallMethod, execPath string) string {
	switch method {
	case InstallMethodHomebrew:
		return fmt.Sprintf("Detected Homebrew installation at %s\nUpgrade with: brew upgrade gauntlet", execPath)
	case InstallMethodGoInstall:
		return fmt.Sprintf("Detected go install at %s\nUpgrade with: go install %s@latest", execPath, modulePath)
	default:
		return ""
	}
}
