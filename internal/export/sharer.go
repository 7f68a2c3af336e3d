package export

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/rs/zerolog"
)

// ErrShareFailed is returned when no sink accepted the artifact.
var ErrShareFailed = errors.New("no share mechanism succeeded")

// DefaultDriveURL is opened by SaveToDriveAssist.
const DefaultDriveURL = "https://drive.google.com/drive/my-drive"

// ShareResult tells the user where the artifact went.
type ShareResult struct {
	FileName string `json:"fileName"`
	Sink     string `json:"sink"`
	Location string `json:"location"`
}

// DriveResult is the outcome of SaveToDriveAssist.
type DriveResult struct {
	FileName    string `json:"fileName"`
	Path        string `json:"path"`
	OpenedDrive bool   `json:"openedDrive"`
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, question string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, question string) (bool, error) {
	return f(ctx, question)
}

// PromptConfirmer asks on Out and reads one line from In.
type PromptConfirmer struct {
	In  io.Reader
	Out io.Writer
}

func (p PromptConfirmer) Confirm(ctx context.Context, question string) (bool, error) {
	if _, err := fmt.Fprintf(p.Out, "%s [y/N]: ", question); err != nil {
		return false, err
	}
	line, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "c", "có", "co":
		return true, nil
	}
	return false, nil
}

// Observer is told how each share attempt ended.
type Observer interface {
	ShareAttempted(sink string, err error)
}

// Sharer renders the ledger and tries each sink in order. The last sink is
// normally DownloadAndEmail, which is always available.
type Sharer struct {
	sinks      []ShareSink
	downloader Downloader
	opener     URLOpener
	driveURL   string
	log        zerolog.Logger
	observer   Observer
}

// SharerOptions configures NewSharer.
type SharerOptions struct {
	Sinks      []ShareSink
	Downloader Downloader
	Opener     URLOpener
	DriveURL   string
	Logger     zerolog.Logger
	Observer   Observer
}

func NewSharer(opts SharerOptions) *Sharer {
	s := &Sharer{
		sinks:      opts.Sinks,
		downloader: opts.Downloader,
		opener:     opts.Opener,
		driveURL:   opts.DriveURL,
		log:        opts.Logger,
		observer:   opts.Observer,
	}
	if s.driveURL == "" {
		s.driveURL = DefaultDriveURL
	}
	return s
}

// Render builds the artifact for doc, named after the tax payer.
func Render(doc domain.LedgerDocument) (Artifact, error) {
	data, err := RenderSpreadsheet(doc)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Name: FileName(doc.Info.Name), MIMEType: MIMETypeXLSX, Data: data}, nil
}

// Share hands the rendered ledger to the first sink that is available and
// does not fail or get cancelled.
func (s *Sharer) Share(ctx context.Context, doc domain.LedgerDocument) (ShareResult, error) {
	a, err := Render(doc)
	if err != nil {
		return ShareResult{}, fmt.Errorf("Share: %w", err)
	}

	var lastErr error = ErrShareUnavailable
	for _, sink := range s.sinks {
		log := s.log.With().Str("sink", sink.Name()).Logger()
		if !sink.Available(ctx) {
			log.Debug().Msg("Share sink unavailable; trying next")
			continue
		}

		location, err := sink.Share(ctx, a)
		if s.observer != nil {
			s.observer.ShareAttempted(sink.Name(), err)
		}
		if err == nil {
			log.Info().Str("file", a.Name).Str("location", location).Msg("Ledger shared")
			return ShareResult{FileName: a.Name, Sink: sink.Name(), Location: location}, nil
		}
		if ctx.Err() != nil {
			return ShareResult{}, fmt.Errorf("Share: %w", ctx.Err())
		}

		if errors.Is(err, ErrShareCancelled) {
			log.Info().Msg("Share cancelled; falling back")
		} else {
			log.Warn().Err(err).Msg("Share failed; falling back")
		}
		lastErr = err
	}
	return ShareResult{}, fmt.Errorf("Share: %w: %w", ErrShareFailed, lastErr)
}

// SaveToDriveAssist downloads the artifact and offers to open the cloud
// drive page so the user can upload it by hand. Declining is not an error.
func (s *Sharer) SaveToDriveAssist(ctx context.Context, doc domain.LedgerDocument, confirm Confirmer) (DriveResult, error) {
	if s.downloader == nil {
		return DriveResult{}, fmt.Errorf("SaveToDriveAssist: %w", ErrShareUnavailable)
	}
	a, err := Render(doc)
	if err != nil {
		return DriveResult{}, fmt.Errorf("SaveToDriveAssist: %w", err)
	}
	path, err := s.downloader.Download(ctx, a)
	if err != nil {
		return DriveResult{}, fmt.Errorf("SaveToDriveAssist: %w", err)
	}
	res := DriveResult{FileName: a.Name, Path: path}

	if confirm == nil || s.opener == nil {
		return res, nil
	}
	ok, err := confirm.Confirm(ctx, fmt.Sprintf("Đã tải %s. Mở Google Drive để tải lên?", a.Name))
	if err != nil {
		s.log.Debug().Err(err).Msg("Drive confirmation failed; treating as no")
		return res, nil
	}
	if !ok {
		return res, nil
	}
	if err := s.opener.Open(ctx, s.driveURL); err != nil {
		return res, fmt.Errorf("SaveToDriveAssist: %w", err)
	}
	res.OpenedDrive = true
	return res, nil
}
