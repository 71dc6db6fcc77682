// Package session owns the editing state of one browser tab: the original
// upload, the edit history and the processing flag. Controllers are
// explicit objects handed to each request handler by the Manager.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fpang/ai-image-editor/internal/chat"
	"github.com/fpang/ai-image-editor/internal/filehandler"
	"github.com/fpang/ai-image-editor/internal/history"
	"github.com/fpang/ai-image-editor/internal/imageref"
	"github.com/fpang/ai-image-editor/internal/operation"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// State is the controller's lifecycle position.
type State string

const (
	StateEmpty      State = "empty"
	StateLoaded     State = "loaded"
	StateProcessing State = "processing"
)

var (
	// ErrBusy rejects any mutation while an operation is in flight.
	ErrBusy = errors.New("an operation is already in progress")
	// ErrNoImage rejects operations before the first upload.
	ErrNoImage = errors.New("no image has been uploaded")
)

// Fetcher resolves a remote result URL into bytes.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (imageref.Ref, error)
}

// Options configure a controller.
type Options struct {
	HistoryLimit   int
	MaxUploadBytes int64
	// Fetcher is required when the editor may return URLs.
	Fetcher Fetcher
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Outcome is the result of ApplyOperation. Failures are values.
type Outcome struct {
	Success   bool
	Operation operation.Name
	Error     string
	// Err is the sentinel for controller rejections (ErrBusy, ErrNoImage).
	Err     error
	Entry   *history.Entry
	Source  chat.PayloadSource
	Elapsed time.Duration
}

// Controller is the state machine for one editing session. It is safe for
// concurrent use; at most one ApplyOperation runs at a time.
type Controller struct {
	mu sync.Mutex

	id        string
	editor    chat.Editor
	fetcher   Fetcher
	maxUpload int64
	now       func() time.Time

	original   imageref.Ref
	fileName   string
	metadata   *filehandler.ImageMetadata
	history    *history.Store
	processing bool
	status     string

	createdAt  time.Time
	lastActive time.Time
}

// NewController creates an empty session.
func NewController(editor chat.Editor, opts Options) *Controller {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	t := now()
	return &Controller{
		id:         uuid.NewString(),
		editor:     editor,
		fetcher:    opts.Fetcher,
		maxUpload:  opts.MaxUploadBytes,
		now:        now,
		history:    history.New(opts.HistoryLimit),
		status:     "Upload an image to start editing",
		createdAt:  t,
		lastActive: t,
	}
}

// ID returns the session identifier.
func (c *Controller) ID() string {
	return c.id
}

// Upload validates the file and makes it the new original. History is
// cleared. Validation failures are *filehandler.ValidationError.
func (c *Controller) Upload(file filehandler.Upload) error {
	file, err := filehandler.ValidateUpload(file, c.maxUpload)
	if err != nil {
		return err
	}

	metadata, err := filehandler.ExtractImageMetadata(file.Data)
	if err != nil {
		return &filehandler.ValidationError{Message: filehandler.MsgInvalidType}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.processing {
		return ErrBusy
	}

	c.original = imageref.FromBytes(file.Data, file.MIMEType)
	c.fileName = file.Name
	c.metadata = metadata
	c.history.Clear()
	c.status = "Image uploaded"
	c.touch()

	log.Info().
		Str("session", c.id).
		Str("file", file.Name).
		Str("mime_type", file.MIMEType).
		Int("size", len(file.Data)).
		Int("width", metadata.Width).
		Int("height", metadata.Height).
		Msg("Image uploaded")
	return nil
}

// ApplyOperation sends the current image to the remote editor. On success
// the result is appended to history and becomes current; on failure the
// state is unchanged. Concurrent calls are rejected with ErrBusy.
func (c *Controller) ApplyOperation(ctx context.Context, op operation.Operation) Outcome {
	name := op.Name()

	c.mu.Lock()
	if c.original.IsZero() {
		c.mu.Unlock()
		return Outcome{Operation: name, Err: ErrNoImage, Error: ErrNoImage.Error()}
	}
	if c.processing {
		c.mu.Unlock()
		return Outcome{Operation: name, Err: ErrBusy, Error: ErrBusy.Error()}
	}
	input := c.currentLocked()
	c.processing = true
	c.status = fmt.Sprintf("Applying %s...", name)
	c.touch()
	c.mu.Unlock()

	res := c.editor.Edit(ctx, input, op)
	if res.Success && !res.Payload.HasData() {
		res = c.resolve(ctx, res)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.processing = false
	c.touch()

	if !res.Success {
		c.status = "Error: " + res.Error
		log.Warn().
			Str("session", c.id).
			Str("operation", string(name)).
			Str("error", res.Error).
			Msg("Operation failed")
		return Outcome{Operation: name, Error: res.Error, Elapsed: res.Elapsed}
	}

	entry := history.Entry{Image: res.Payload, Operation: name, Timestamp: c.now()}
	c.history.Append(entry)
	c.status = fmt.Sprintf("%s applied successfully", name)

	log.Info().
		Str("session", c.id).
		Str("operation", string(name)).
		Str("source", string(res.Source)).
		Int("history_len", c.history.Len()).
		Dur("duration", res.Elapsed).
		Msg("Operation applied")

	return Outcome{
		Success:   true,
		Operation: name,
		Entry:     &entry,
		Source:    res.Source,
		Elapsed:   res.Elapsed,
	}
}

// resolve downloads a URL payload so history always carries bytes.
func (c *Controller) resolve(ctx context.Context, res chat.Result) chat.Result {
	if res.Payload.URL == "" {
		res.Success = false
		res.Error = "Remote service returned an empty image"
		return res
	}
	if c.fetcher == nil {
		res.Success = false
		res.Error = "Cannot download the edited image"
		return res
	}
	ref, err := c.fetcher.Fetch(ctx, res.Payload.URL)
	if err != nil {
		log.Debug().Err(err).Str("session", c.id).Msg("Result fetch failed")
		res.Success = false
		res.Error = "Failed to download the edited image"
		return res
	}
	res.Payload = ref
	return res
}

// Undo steps back one edit. It reports false when nothing was undone.
func (c *Controller) Undo() (bool, error) {
	return c.navigate("Undo", c.history.Undo)
}

// Redo steps forward one edit. It reports false when nothing was redone.
func (c *Controller) Redo() (bool, error) {
	return c.navigate("Redo", c.history.Redo)
}

func (c *Controller) navigate(label string, step func() bool) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.processing {
		return false, ErrBusy
	}
	c.touch()
	if !step() {
		return false, nil
	}
	c.status = c.positionStatus(label)
	return true, nil
}

// JumpTo moves to a history index; history.OriginalIndex shows the original.
func (c *Controller) JumpTo(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.processing {
		return ErrBusy
	}
	if err := c.history.JumpTo(i); err != nil {
		return err
	}
	c.status = c.positionStatus("Jumped")
	c.touch()
	return nil
}

// Reset discards all edits and shows the original again.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.processing {
		return ErrBusy
	}
	c.history.Clear()
	if !c.original.IsZero() {
		c.status = "Reset to original image"
	}
	c.touch()
	return nil
}

// Current returns the image currently shown.
func (c *Controller) Current() (imageref.Ref, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.original.IsZero() {
		return imageref.Ref{}, false
	}
	return c.currentLocked(), true
}

// Original returns the uploaded image.
func (c *Controller) Original() (imageref.Ref, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.original, !c.original.IsZero()
}

// FileName returns the original upload's name.
func (c *Controller) FileName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fileName
}

// Entries returns a copy of the edit history.
func (c *Controller) Entries() []history.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Entries()
}

// LastActive reports the time of the last interaction.
func (c *Controller) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

func (c *Controller) currentLocked() imageref.Ref {
	if e, ok := c.history.Current(); ok {
		return e.Image
	}
	return c.original
}

func (c *Controller) stateLocked() State {
	switch {
	case c.processing:
		return StateProcessing
	case c.original.IsZero():
		return StateEmpty
	default:
		return StateLoaded
	}
}

func (c *Controller) positionStatus(label string) string {
	if e, ok := c.history.Current(); ok {
		return fmt.Sprintf("%s: showing %s (%d of %d)", label, e.Operation, c.history.Index()+1, c.history.Len())
	}
	return label + ": showing original image"
}

func (c *Controller) touch() {
	c.lastActive = c.now()
}
