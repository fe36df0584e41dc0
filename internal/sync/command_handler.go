package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrAborted        = errors.New("aborted by user")
)

const (
	CommandDownload = "download"
	CommandUpload   = "upload"
	CommandSync     = "sync"
)

// UI is what the command handler needs from the console.
type UI interface {
	Output(msg string)
	Message(msg string)
	// Confirm asks a yes/no question. It returns ErrAborted when the user quits.
	Confirm(question string, defaultAnswer bool) (bool, error)
}

// Synchronizer is the part of SyncService the command handler drives.
type Synchronizer interface {
	LocalRoot() string
	MapFolder(ctx context.Context, cloudPath string) (*MapFolderResult, error)
	DownloadFiles(ctx context.Context, files []*CloudFileMetadata) error
	UploadFiles(ctx context.Context, files []*LocalFileMetadata) error
}

type CommandHandler struct {
	service Synchronizer
	ui      UI
}

func NewCommandHandler(service Synchronizer, ui UI) *CommandHandler {
	return &CommandHandler{service: service, ui: ui}
}

// Handle runs one of the download, upload or sync commands on cloudPath. Command
// names are matched exactly.
func (h *CommandHandler) Handle(ctx context.Context, command string, cloudPath string) error {
	switch command {
	case CommandDownload:
		return h.sync(ctx, cloudPath, true, false)
	case CommandUpload:
		return h.sync(ctx, cloudPath, false, true)
	case CommandSync:
		return h.sync(ctx, cloudPath, true, true)
	default:
		slog.Error("unknown command", "command", command)
		return fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
}

func (h *CommandHandler) sync(ctx context.Context, cloudPath string, download, upload bool) error {
	h.ui.Output(fmt.Sprintf("Synchronizing %s cloud folder", cloudPath))
	h.ui.Output(fmt.Sprintf("Download files %t", download))
	h.ui.Output(fmt.Sprintf("Upload files %t", upload))

	result, err := h.service.MapFolder(ctx, cloudPath)
	if err != nil {
		return fmt.Errorf("map folder %s: %w", cloudPath, err)
	}

	h.reportProblems(result)

	var errs []error
	if download {
		if err := h.download(ctx, result.Download); err != nil {
			if errors.Is(err, ErrAborted) {
				return err
			}
			errs = append(errs, err)
		}
	}
	if upload {
		if err := h.upload(ctx, result.Upload); err != nil {
			if errors.Is(err, ErrAborted) {
				return errors.Join(append(errs, err)...)
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *CommandHandler) download(ctx context.Context, files []*CloudFileMetadata) error {
	if len(files) == 0 {
		h.ui.Message("nothing to download")
		return nil
	}

	var size int64
	lines := make([]string, len(files))
	for i, f := range files {
		lines[i] = fmt.Sprintf("%s (%s)", f.CloudPath, humanize.IBytes(uint64(f.Size)))
		size += f.Size
	}
	h.ui.Message(fmt.Sprintf("Download files (%s)\n - %s", humanize.IBytes(uint64(size)), strings.Join(lines, "\n - ")))

	question := fmt.Sprintf("Do you want to Download %d files above to %s?", len(files), h.service.LocalRoot())
	ok, err := h.ui.Confirm(question, true)
	if err != nil {
		return err
	}
	if !ok {
		h.ui.Message("download files cancelled")
		return nil
	}
	return h.service.DownloadFiles(ctx, files)
}

func (h *CommandHandler) upload(ctx context.Context, files []*LocalFileMetadata) error {
	if len(files) == 0 {
		h.ui.Message("nothing to upload")
		return nil
	}

	var size int64
	lines := make([]string, len(files))
	for i, f := range files {
		lines[i] = fmt.Sprintf("%s (%s)", f.CloudPath, humanize.IBytes(uint64(f.Size)))
		size += f.Size
	}
	h.ui.Message(fmt.Sprintf("Upload files (%s)\n - %s", humanize.IBytes(uint64(size)), strings.Join(lines, "\n - ")))

	question := fmt.Sprintf("Do you want to Upload %d files above from %s?", len(files), h.service.LocalRoot())
	ok, err := h.ui.Confirm(question, true)
	if err != nil {
		return err
	}
	if !ok {
		h.ui.Message("upload files cancelled")
		return nil
	}
	return h.service.UploadFiles(ctx, files)
}

func (h *CommandHandler) reportProblems(result *MapFolderResult) {
	if len(result.Conflicts) > 0 {
		lines := make([]string, len(result.Conflicts))
		for i, c := range result.Conflicts {
			lines[i] = fmt.Sprintf("%s (%s)", c.Cloud.CloudPath, c.Comparison)
		}
		h.ui.Message(fmt.Sprintf("Conflicts, left untouched\n - %s", strings.Join(lines, "\n - ")))
	}
	if len(result.Failed) > 0 {
		lines := make([]string, len(result.Failed))
		for i, f := range result.Failed {
			lines[i] = f.Error()
		}
		h.ui.Message(fmt.Sprintf("Failed to compare\n - %s", strings.Join(lines, "\n - ")))
	}
}

var _ Synchronizer = (*SyncService)(nil)
