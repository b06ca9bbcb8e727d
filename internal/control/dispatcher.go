package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/nao1215/sitemirror/internal/config"
	"github.com/nao1215/sitemirror/internal/session"
)

// ErrUnknownCommand is reported for channels outside the command table.
var ErrUnknownCommand = errors.New("unknown command")

// errBadParams marks parameter decoding failures.
var errBadParams = errors.New("invalid params")

// Command channels.
const (
	CommandStart              = "start"
	CommandStop               = "stop"
	CommandGetDownloadPath    = "getDownloadPath"
	CommandGetSysDownloadPath = "getSysDownloadPath"
)

// Command is an operator request.
type Command struct {
	// ID is echoed in the Result so socket clients can match replies.
	ID      string          `json:"id,omitempty"`
	Channel string          `json:"channel"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Result is the reply to a Command.
type Result struct {
	ID     string `json:"id,omitempty"`
	Status int    `json:"status"`
	Data   any    `json:"data"`
	Error  string `json:"error,omitempty"`
}

// Session is the part of a mirror session the dispatcher drives.
type Session interface {
	Start(ctx context.Context, job session.Job) error
	Stop()
}

// SystemDirResolver resolves a named system directory.
type SystemDirResolver func(name string) (string, error)

type handler func(ctx context.Context, params json.RawMessage) (any, error)

// Dispatcher routes commands to their handlers.
type Dispatcher struct {
	handlers map[string]handler
	session  Session
	picker   Picker
	sysDir   SystemDirResolver
	logger   *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithPicker sets the directory picker of getDownloadPath.
func WithPicker(p Picker) DispatcherOption {
	return func(d *Dispatcher) {
		d.picker = p
	}
}

// WithSystemDirResolver sets the resolver of getSysDownloadPath.
func WithSystemDirResolver(r SystemDirResolver) DispatcherOption {
	return func(d *Dispatcher) {
		d.sysDir = r
	}
}

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a Dispatcher for s.
func NewDispatcher(s Session, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		session: s,
		picker:  CancelPicker{},
		sysDir:  config.SystemDir,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.handlers = map[string]handler{
		CommandStart:              d.start,
		CommandStop:               d.stop,
		CommandGetDownloadPath:    d.getDownloadPath,
		CommandGetSysDownloadPath: d.getSysDownloadPath,
	}
	return d
}

// Commands returns the supported channels, sorted.
func (d *Dispatcher) Commands() []string {
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Dispatch runs cmd and reports the outcome as a Result.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) Result {
	h, ok := d.handlers[cmd.Channel]
	if !ok {
		d.logger.Warn("unknown command", "channel", cmd.Channel)
		return Result{
			ID:     cmd.ID,
			Status: http.StatusNotFound,
			Error:  fmt.Sprintf("%v: %s", ErrUnknownCommand, cmd.Channel),
		}
	}

	d.logger.Debug("dispatching command", "channel", cmd.Channel)
	data, err := h(ctx, cmd.Params)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errBadParams) || errors.Is(err, session.ErrInvalidSeed) || errors.Is(err, config.ErrUnknownSystemDir) {
			status = http.StatusBadRequest
		}
		d.logger.Warn("command failed", "channel", cmd.Channel, "error", err)
		return Result{ID: cmd.ID, Status: status, Error: err.Error()}
	}
	return Result{ID: cmd.ID, Status: http.StatusOK, Data: data}
}

// decodeParams unmarshals params into v. Missing params leave v untouched.
func decodeParams(params json.RawMessage, v any) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return fmt.Errorf("%w: %w", errBadParams, err)
	}
	return nil
}

func (d *Dispatcher) start(ctx context.Context, params json.RawMessage) (any, error) {
	var job session.Job
	if err := decodeParams(params, &job); err != nil {
		return nil, err
	}
	if err := d.session.Start(ctx, job); err != nil {
		return nil, err
	}
	return nil, nil
}

func (d *Dispatcher) stop(_ context.Context, _ json.RawMessage) (any, error) {
	d.session.Stop()
	return nil, nil
}

func (d *Dispatcher) getDownloadPath(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		Properties json.RawMessage `json:"properties"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	path, ok, err := d.picker.PickDirectory(ctx, dialogProperties(p.Properties))
	if err != nil {
		return nil, fmt.Errorf("failed to pick directory: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return path, nil
}

func (d *Dispatcher) getSysDownloadPath(_ context.Context, params json.RawMessage) (any, error) {
	var p struct {
		Path string `json:"path"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	dir, err := d.sysDir(p.Path)
	if err != nil {
		return nil, err
	}
	return dir, nil
}
