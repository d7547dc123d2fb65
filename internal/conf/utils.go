package conf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/tphakala/train-spotter/internal/errors"
	"github.com/tphakala/train-spotter/internal/logger"
)

// appDirName is the per-user and system configuration directory name.
const appDirName = "train-spotter"

// containerConfigDir is the volume mount searched first inside containers.
const containerConfigDir = "/config"

// GetDefaultConfigPaths returns the directories searched for config.yaml in
// priority order. When one of them already holds a config file only that
// directory is returned, so a newly written default lands where it will be
// found again.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategorySystem).
			Context("operation", "get-home-directory").
			Build()
	}

	configPaths := searchPaths(homeDir, runtime.GOOS, RunningInContainer())

	for _, path := range configPaths {
		if _, err := os.Stat(filepath.Join(path, "config.yaml")); err == nil {
			return []string{path}, nil
		}
	}

	return configPaths, nil
}

func searchPaths(homeDir, goos string, inContainer bool) []string {
	if goos == "windows" {
		return []string{
			".",
			filepath.Join(homeDir, "AppData", "Roaming", appDirName),
		}
	}

	paths := []string{
		".",
		filepath.Join(homeDir, ".config", appDirName),
		"/etc/" + appDirName,
	}
	if inContainer {
		paths = append([]string{containerConfigDir}, paths...)
	}
	return paths
}

// RunningInContainer reports whether the process runs under docker or podman.
func RunningInContainer() bool {
	for _, marker := range []string{"/.dockerenv", "/run/.containerenv"} {
		if _, err := os.Stat(marker); err == nil {
			return true
		}
	}
	if v, ok := os.LookupEnv("container"); ok && v != "" {
		return true
	}

	file, err := os.Open("/proc/self/cgroup")
	if err != nil {
		return false
	}
	defer file.Close() //nolint:errcheck // read only

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "docker") || strings.Contains(line, "podman") {
			return true
		}
	}
	return false
}

// moveFile renames src to dst, copying when the rename crosses filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src) //nolint:gosec // path produced by os.CreateTemp
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close() //nolint:errcheck // read only

	out, err := os.Create(dst) //nolint:gosec // dst is the located config file
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copying config: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", dst, err)
	}

	if err := os.Remove(src); err != nil {
		GetLogger().Warn("Failed to remove temporary config file",
			logger.String("path", src),
			logger.Error(err))
	}
	return nil
}
