package sync

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/openmined/cloudsync/internal/cloudpath"
	"github.com/openmined/cloudsync/internal/utils"
	gitignore "github.com/sabhiram/go-gitignore"
)

const IgnoreFileName = ".cloudsyncignore"

var defaultIgnoreLines = []string{
	// cloudsync
	IgnoreFileName,
	".cloudsync.lock",
	// IDE/Editor-specific
	".vscode",
	".idea",
	// General excludes
	".git",
	"*.tmp",
	"*.swp",
	// OS-specific
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
	"Icon\r",
}

// SyncIgnoreList decides which cloud paths take no part in a mapping pass. Ignore
// rules use gitignore syntax; include patterns use doublestar globs and, when set,
// restrict the files (not folders) that are mapped.
type SyncIgnoreList struct {
	baseDir string
	ignore  *gitignore.GitIgnore
	include []string
}

func NewSyncIgnoreList(baseDir string, include ...string) *SyncIgnoreList {
	return &SyncIgnoreList{
		baseDir: baseDir,
		ignore:  gitignore.CompileIgnoreLines(defaultIgnoreLines...),
		include: include,
	}
}

// Load compiles the default rules plus the lines of the ignore file in baseDir.
func (s *SyncIgnoreList) Load() error {
	for _, pattern := range s.include {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid include pattern %q", pattern)
		}
	}

	ignoreLines := append([]string{}, defaultIgnoreLines...)
	ignorePath := filepath.Join(s.baseDir, IgnoreFileName)

	if utils.FileExists(ignorePath) {
		file, err := os.Open(ignorePath)
		if err != nil {
			return fmt.Errorf("open ignore file: %w", err)
		}
		defer file.Close()

		rules := 0
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimRight(scanner.Text(), " ")
			if line != "" && !strings.HasPrefix(line, "#") {
				ignoreLines = append(ignoreLines, line)
				rules++
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read ignore file: %w", err)
		}
		slog.Info("loaded ignore file", "path", ignorePath, "rules", rules)
	}

	s.ignore = gitignore.CompileIgnoreLines(ignoreLines...)
	return nil
}

// ShouldIgnoreFile reports whether the file at cloudPath is excluded.
func (s *SyncIgnoreList) ShouldIgnoreFile(cloudPath string) bool {
	rel := cloudpath.StripStartingSlash(cloudpath.Clean(cloudPath))
	if s.ignore.MatchesPath(rel) {
		return true
	}
	if len(s.include) == 0 {
		return false
	}
	for _, pattern := range s.include {
		if ok, _ := doublestar.Match(strings.TrimPrefix(pattern, "/"), rel); ok {
			return false
		}
	}
	return true
}

// ShouldIgnoreFolder reports whether the folder at cloudPath is excluded.
func (s *SyncIgnoreList) ShouldIgnoreFolder(cloudPath string) bool {
	rel := cloudpath.StripStartingSlash(cloudpath.Clean(cloudPath))
	if rel == "" {
		return false
	}
	return s.ignore.MatchesPath(rel + "/")
}

func (s *SyncIgnoreList) filterLocal(result *ListLocalFolderResult) *ListLocalFolderResult {
	filtered := &ListLocalFolderResult{}
	for _, f := range result.Files {
		if s.ShouldIgnoreFile(f.CloudPath) {
			slog.Debug("ignored local file", "path", f.CloudPath)
			continue
		}
		filtered.Files = append(filtered.Files, f)
	}
	for _, f := range result.Folders {
		if s.ShouldIgnoreFolder(f.CloudPath) {
			slog.Debug("ignored local folder", "path", f.CloudPath)
			continue
		}
		filtered.Folders = append(filtered.Folders, f)
	}
	return filtered
}

func (s *SyncIgnoreList) filterCloud(result *ListCloudFolderResult) *ListCloudFolderResult {
	filtered := &ListCloudFolderResult{}
	for _, f := range result.Files {
		if s.ShouldIgnoreFile(f.CloudPath) {
			slog.Debug("ignored cloud file", "path", f.CloudPath)
			continue
		}
		filtered.Files = append(filtered.Files, f)
	}
	for _, f := range result.Folders {
		if s.ShouldIgnoreFolder(f.CloudPath) {
			slog.Debug("ignored cloud folder", "path", f.CloudPath)
			continue
		}
		filtered.Folders = append(filtered.Folders, f)
	}
	return filtered
}
