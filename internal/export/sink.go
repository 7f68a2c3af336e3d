package export

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrShareCancelled means the user dismissed the share handoff.
	ErrShareCancelled = errors.New("share cancelled")

	// ErrShareUnavailable means the sink cannot be used on this platform.
	ErrShareUnavailable = errors.New("share mechanism unavailable")
)

// Artifact is a named byte blob ready to be handed to the platform.
type Artifact struct {
	Name     string
	MIMEType string
	Data     []byte
}

// ShareSink is one way of getting an artifact to the user.
type ShareSink interface {
	Name() string
	// Available reports whether the sink can run here without side effects.
	Available(ctx context.Context) bool
	// Share hands a over and returns where it went (path, URI, ...).
	Share(ctx context.Context, a Artifact) (string, error)
}

// Runner executes an external command. Tests replace it.
type Runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// NativeShare pipes the artifact to a platform share command such as
// "kdeconnect-cli --share" or a desktop portal helper. The file path is
// appended as the last argument. A non-zero exit counts as cancellation.
type NativeShare struct {
	Command []string
	TempDir string
	Run     Runner
	// LookPath finds the command; exec.LookPath by default.
	LookPath func(file string) (string, error)
}

func (n *NativeShare) Name() string { return "native" }

func (n *NativeShare) Available(ctx context.Context) bool {
	if len(n.Command) == 0 || n.Command[0] == "" {
		return false
	}
	look := n.LookPath
	if look == nil {
		look = exec.LookPath
	}
	_, err := look(n.Command[0])
	return err == nil
}

func (n *NativeShare) Share(ctx context.Context, a Artifact) (string, error) {
	if !n.Available(ctx) {
		return "", ErrShareUnavailable
	}
	dir := n.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	path, err := writeArtifact(dir, a)
	if err != nil {
		return "", fmt.Errorf("NativeShare: %w", err)
	}

	run := n.Run
	if run == nil {
		run = execRunner
	}
	args := append(append([]string{}, n.Command[1:]...), path)
	if err := run(ctx, n.Command[0], args...); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("NativeShare: %w: %v", ErrShareCancelled, err)
		}
		return "", fmt.Errorf("NativeShare: run %s: %w", n.Command[0], err)
	}
	return path, nil
}

// Downloader saves an artifact where the user will find it.
type Downloader interface {
	Download(ctx context.Context, a Artifact) (string, error)
}

// DirDownloader writes artifacts into a downloads directory.
type DirDownloader struct {
	Dir string
}

// DefaultDownloadDir is ~/Downloads, or the working directory if the home
// directory is unknown.
func DefaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Downloads")
}

func (d DirDownloader) Download(ctx context.Context, a Artifact) (string, error) {
	dir := d.Dir
	if dir == "" {
		dir = DefaultDownloadDir()
	}
	path, err := writeArtifact(dir, a)
	if err != nil {
		return "", fmt.Errorf("Download: %w", err)
	}
	return path, nil
}

// writeArtifact writes a into dir through a temp file and rename.
func writeArtifact(dir string, a Artifact) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create dir %q: %w", dir, err)
	}
	name := filepath.Base(a.Name)
	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(a.Data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write %q: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close %q: %w", tmp.Name(), err)
	}
	path := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("rename to %q: %w", path, err)
	}
	return path, nil
}

// URLOpener opens a URL (mailto:, https:) with the platform handler.
type URLOpener interface {
	Open(ctx context.Context, rawURL string) error
}

// SystemOpener uses xdg-open, open or rundll32 depending on GOOS.
type SystemOpener struct {
	GOOS string
	Run  Runner
}

func (o SystemOpener) Open(ctx context.Context, rawURL string) error {
	run := o.Run
	if run == nil {
		run = execRunner
	}
	var err error
	switch o.GOOS {
	case "darwin":
		err = run(ctx, "open", rawURL)
	case "windows":
		err = run(ctx, "rundll32", "url.dll,FileProtocolHandler", rawURL)
	default:
		err = run(ctx, "xdg-open", rawURL)
	}
	if err != nil {
		return fmt.Errorf("open %q: %w", rawURL, err)
	}
	return nil
}

// DefaultEmailDelay lets the download start before the mail client opens.
const DefaultEmailDelay = 1500 * time.Millisecond

// DownloadAndEmail saves the artifact, waits briefly and opens a pre-filled
// email draft. The file is not attached: there is no portable way to attach
// from a mailto link, so the body asks the user to attach it.
type DownloadAndEmail struct {
	Downloader Downloader
	Opener     URLOpener
	To         string
	Subject    string
	Delay      time.Duration
	Logger     zerolog.Logger
	// Wait sleeps for d or until ctx is done; a timer by default.
	Wait func(ctx context.Context, d time.Duration) error
}

func (d *DownloadAndEmail) Name() string { return "download_email" }

// Available is true whenever a Downloader is set; this is the last resort.
func (d *DownloadAndEmail) Available(ctx context.Context) bool {
	return d.Downloader != nil
}

func (d *DownloadAndEmail) Share(ctx context.Context, a Artifact) (string, error) {
	if d.Downloader == nil {
		return "", ErrShareUnavailable
	}
	path, err := d.Downloader.Download(ctx, a)
	if err != nil {
		return "", fmt.Errorf("DownloadAndEmail: %w", err)
	}
	if d.Opener == nil {
		return path, nil
	}

	wait := d.Wait
	if wait == nil {
		wait = sleepContext
	}
	delay := d.Delay
	if delay <= 0 {
		delay = DefaultEmailDelay
	}
	if err := wait(ctx, delay); err != nil {
		return path, nil
	}

	// The download already succeeded; a missing mail client only costs the
	// convenience of the draft.
	if err := d.Opener.Open(ctx, MailtoURL(d.To, d.Subject, filepath.Base(path))); err != nil {
		d.Logger.Warn().Err(err).Msg("Failed to open email draft after download")
	}
	return path, nil
}

// MailtoURL builds a mailto link with subject and a body that names the
// downloaded file. Spaces are encoded as %20; mail clients do not decode '+'.
func MailtoURL(to, subject, fileName string) string {
	if subject == "" {
		subject = ledgerTitle
	}
	body := fmt.Sprintf("Sổ doanh thu đã được tải về máy với tên %s. Vui lòng đính kèm tệp này trước khi gửi.", fileName)

	var b strings.Builder
	b.WriteString("mailto:")
	b.WriteString(url.PathEscape(to))
	b.WriteString("?subject=")
	b.WriteString(mailtoEscape(subject))
	b.WriteString("&body=")
	b.WriteString(mailtoEscape(body))
	return b.String()
}

func mailtoEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var (
	_ ShareSink = (*NativeShare)(nil)
	_ ShareSink = (*DownloadAndEmail)(nil)
)
