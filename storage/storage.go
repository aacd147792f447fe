// Package storage owns the ephemeral upload and output directories:
// machine-named input files, download resolution, and every path by which
// an artifact eventually gets deleted.
package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/disk"
)

type Manager struct {
	inputDir    string
	outputDir   string
	maxUpload   int64
	retention   time.Duration
	minFreeDisk int64
}

func NewManager(inputDir, outputDir string, maxUpload int64, retention time.Duration, minFreeDisk int64) (*Manager, error) {
	for _, dir := range []string{inputDir, outputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	return &Manager{
		inputDir:    inputDir,
		outputDir:   outputDir,
		maxUpload:   maxUpload,
		retention:   retention,
		minFreeDisk: minFreeDisk,
	}, nil
}

func (m *Manager) OutputDir() string { return m.outputDir }

// OutputPath joins a generated filename into the output directory.
func (m *Manager) OutputPath(filename string) string {
	return filepath.Join(m.outputDir, filename)
}

// SaveUpload stores an uploaded file under a generated name so the
// user-supplied filename never touches the filesystem. Returns the stored
// path.
func (m *Manager) SaveUpload(fh *multipart.FileHeader) (string, error) {
	if fh.Size > m.maxUpload {
		return "", fmt.Errorf("file size %d exceeds limit of %d bytes", fh.Size, m.maxUpload)
	}

	ext := filepath.Ext(fh.Filename)
	if ext == "" {
		ext = ".mp4"
	}
	dst := filepath.Join(m.inputDir, uuid.NewString()+ext)

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create input file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("store upload: %w", err)
	}
	return dst, nil
}

// Resolve maps a requested download name onto a file in the output
// directory. The name is reduced to its base to block traversal; when the
// exact name is absent a URL-decode comparison over the directory entries
// catches encoding mismatches before giving up.
func (m *Manager) Resolve(filename string) (string, error) {
	clean := filepath.Base(filename)
	path := filepath.Join(m.outputDir, clean)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return "", fmt.Errorf("file not found")
	}
	for _, e := range entries {
		decoded, derr := url.QueryUnescape(e.Name())
		if e.Name() == clean || (derr == nil && decoded == clean) {
			return filepath.Join(m.outputDir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("file not found")
}

// ScheduleRemoval deletes the file after the delay. A zero delay removes
// it on the spot, for failure-path rollback.
func (m *Manager) ScheduleRemoval(path string, delay time.Duration) {
	if delay <= 0 {
		remove(path)
		return
	}
	time.AfterFunc(delay, func() { remove(path) })
}

func remove(path string) {
	if err := os.Remove(path); err == nil {
		log.Printf("removed artifact: %s", filepath.Base(path))
	} else if !os.IsNotExist(err) {
		log.Printf("failed to remove %s: %v", filepath.Base(path), err)
	}
}

// Sweep removes entries older than the retention window from both working
// directories. Jobs that finished normally are already gone; this catches
// orphans left by crashes and abandoned downloads.
func (m *Manager) Sweep() {
	now := time.Now()
	for _, dir := range []string{m.inputDir, m.outputDir} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			info, err := e.Info()
			if err != nil {
				continue
			}
			if now.Sub(info.ModTime()) > m.retention {
				remove(filepath.Join(dir, e.Name()))
			}
		}
	}
}

// SweepLoop runs Sweep on a ticker until the context is canceled.
func (m *Manager) SweepLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
			if free, err := m.FreeDisk(); err == nil {
				log.Printf("output dir free space: %d MB", free/(1024*1024))
			}
		}
	}
}

// FreeDisk returns free bytes on the volume holding the output directory.
func (m *Manager) FreeDisk() (int64, error) {
	abs, err := filepath.Abs(m.outputDir)
	if err != nil {
		return 0, err
	}
	usage, err := disk.Usage(abs)
	if err != nil {
		return 0, err
	}
	return int64(usage.Free), nil
}

// CheckDiskSpace refuses new work when the volume is nearly full. Probe
// errors are logged and waved through rather than blocking uploads.
func (m *Manager) CheckDiskSpace() error {
	free, err := m.FreeDisk()
	if err != nil {
		log.Printf("warning: could not get disk usage: %v", err)
		return nil
	}
	if free < m.minFreeDisk {
		return fmt.Errorf("not enough free disk space: %d bytes available, %d required", free, m.minFreeDisk)
	}
	return nil
}

// InputExt returns the lower-cased extension of a stored or original name.
func InputExt(name string) string {
	return strings.ToLower(filepath.Ext(name))
}
