package form

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/listing-dashboard/internal/client"
	"github.com/vyrodovalexey/listing-dashboard/internal/model"
)

// GenericFailureMessage is shown when the backend gave no structured reason.
const GenericFailureMessage = "Something went wrong."

// Controller errors.
var (
	ErrBusy         = errors.New("a submission is already in flight")
	ErrClosed       = errors.New("form session is closed")
	ErrInvalidDraft = errors.New("draft failed validation")
	ErrSubmitFailed = errors.New("submission failed")
)

// Submitter dispatches create and update requests to the backend.
type Submitter interface {
	CreateListing(ctx context.Context, fields model.ListingFields, images []model.ImageFile) (string, error)
	UpdateListing(ctx context.Context, id string, fields model.ListingFields) (string, error)
}

// Mode tells whether a session creates a new listing or edits one.
type Mode int

// Form modes.
const (
	ModeCreate Mode = iota
	ModeEdit
)

func (m Mode) String() string {
	if m == ModeEdit {
		return "edit"
	}
	return "create"
}

// State is a form session's lifecycle position.
type State int

// Form states.
const (
	StateEmpty State = iota
	StateEditing
	StateSubmitting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateEditing:
		return "editing"
	case StateSubmitting:
		return "submitting"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Option configures a Controller.
type Option func(*Controller)

// WithOnSuccess sets the callback run after a successful submission. The
// dashboard uses it to reload the listing collection.
func WithOnSuccess(fn func(ctx context.Context)) Option {
	return func(c *Controller) {
		c.onSuccess = fn
	}
}

// WithOnClose sets the callback run when the session closes, after success or
// cancel.
func WithOnClose(fn func()) Option {
	return func(c *Controller) {
		c.onClose = fn
	}
}

// Controller manages one create-or-edit session.
type Controller struct {
	submitter Submitter
	logger    *zap.Logger
	onSuccess func(ctx context.Context)
	onClose   func()

	mu        sync.Mutex
	state     State
	mode      Mode
	listingID string
	draft     Draft
	errors    FieldErrors
	message   string
}

// New creates a Controller in the Empty state.
func New(submitter Submitter, logger *zap.Logger, opts ...Option) *Controller {
	c := &Controller{
		submitter: submitter,
		logger:    logger,
		errors:    FieldErrors{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize starts the session. With an existing listing the session edits
// it and the image field is suppressed; without one it creates a new listing.
func (c *Controller) Initialize(existing *model.Listing) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.errors = FieldErrors{}
	c.message = ""

	if existing != nil {
		c.mode = ModeEdit
		c.listingID = existing.ID
		c.draft = DraftFrom(*existing)
	} else {
		c.mode = ModeCreate
		c.listingID = ""
		c.draft = Draft{}
	}

	c.state = StateEditing
}

// SetDraft replaces the draft with user input. Images are dropped in edit
// mode.
func (c *Controller) SetDraft(d Draft) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateClosed:
		return ErrClosed
	case StateSubmitting:
		return ErrBusy
	}

	if c.mode == ModeEdit {
		d.Images = nil
	}
	c.draft = d
	c.state = StateEditing

	return nil
}

// Validate checks the current draft and records the result.
func (c *Controller) Validate() FieldErrors {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.errors = c.draft.Validate(c.mode == ModeCreate)
	return copyErrors(c.errors)
}

// Submit validates the draft and, if valid, sends it to the backend. Only one
// submission per session can be in flight.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateClosed:
		c.mu.Unlock()
		return ErrClosed
	case StateSubmitting:
		c.mu.Unlock()
		return ErrBusy
	}

	c.errors = c.draft.Validate(c.mode == ModeCreate)
	if !c.errors.Valid() {
		c.state = StateEditing
		c.mu.Unlock()
		return ErrInvalidDraft
	}

	c.state = StateSubmitting
	c.message = ""
	mode := c.mode
	id := c.listingID
	fields := c.draft.Fields()
	images := c.draft.Images
	c.mu.Unlock()

	var (
		msg string
		err error
	)
	if mode == ModeEdit {
		msg, err = c.submitter.UpdateListing(ctx, id, fields)
	} else {
		msg, err = c.submitter.CreateListing(ctx, fields, images)
	}

	if err != nil {
		c.logger.Error("listing submission failed",
			zap.String("mode", mode.String()),
			zap.String("id", id),
			zap.Error(err),
		)

		c.mu.Lock()
		c.message = failureMessage(err)
		c.state = StateEditing
		c.mu.Unlock()

		return fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}

	c.logger.Info("listing submitted",
		zap.String("mode", mode.String()),
		zap.String("id", id),
	)

	c.mu.Lock()
	c.message = msg
	c.draft = Draft{}
	c.state = StateClosed
	c.mu.Unlock()

	if c.onSuccess != nil {
		c.onSuccess(ctx)
	}
	if c.onClose != nil {
		c.onClose()
	}

	return nil
}

// Cancel discards the draft and closes the session without any request.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	if c.state == StateSubmitting {
		c.mu.Unlock()
		return ErrBusy
	}
	alreadyClosed := c.state == StateClosed
	c.draft = Draft{}
	c.errors = FieldErrors{}
	c.state = StateClosed
	c.mu.Unlock()

	if !alreadyClosed && c.onClose != nil {
		c.onClose()
	}

	return nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Mode returns whether the session creates or edits.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Busy reports whether a submission is in flight. The UI disables the submit
// trigger while it is set.
func (c *Controller) Busy() bool {
	return c.State() == StateSubmitting
}

// ImagesEnabled reports whether the image upload field is shown.
func (c *Controller) ImagesEnabled() bool {
	return c.Mode() == ModeCreate
}

// ListingID returns the ID of the listing being edited, if any.
func (c *Controller) ListingID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listingID
}

// Draft returns a copy of the current draft.
func (c *Controller) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()

	d := c.draft
	d.Images = append([]model.ImageFile(nil), c.draft.Images...)
	return d
}

// Errors returns the field errors of the last validation.
func (c *Controller) Errors() FieldErrors {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyErrors(c.errors)
}

// Message returns the last submission outcome message.
func (c *Controller) Message() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.message
}

func failureMessage(err error) string {
	if msg, ok := client.FirstMessage(err); ok {
		return msg
	}
	return GenericFailureMessage
}

func copyErrors(errs FieldErrors) FieldErrors {
	out := make(FieldErrors, len(errs))
	for k, v := range errs {
		out[k] = v
	}
	return out
}
