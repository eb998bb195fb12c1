package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/folio/internal/display"
	"github.com/hpungsan/folio/internal/errors"
	"github.com/hpungsan/folio/internal/gallery"
	"github.com/hpungsan/folio/internal/media"
	"github.com/hpungsan/folio/internal/playback"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	host *gallery.Host
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(host *gallery.Host) *Handlers {
	return &Handlers{host: host}
}

// Request types for each tool

// SetTextRequest represents the arguments for gallery_set_text.
type SetTextRequest struct {
	Text *string `json:"text"`
}

// SetImageRequest represents the arguments for gallery_set_image.
type SetImageRequest struct {
	Index     *int   `json:"index"`
	Path      string `json:"path"`
	MediaType string `json:"media_type,omitempty"`
	Alt       string `json:"alt,omitempty"`
}

// RemoveImageRequest represents the arguments for gallery_remove_image.
type RemoveImageRequest struct {
	Index *int `json:"index"`
}

// SetAudioRequest represents the arguments for gallery_set_audio.
type SetAudioRequest struct {
	Path      string `json:"path"`
	MediaType string `json:"media_type,omitempty"`
	Name      string `json:"name,omitempty"`
}

// StateOutput is the result of gallery_state.
type StateOutput struct {
	State       gallery.State     `json:"state"`
	Headline    []display.Segment `json:"headline"`
	Embedded    bool              `json:"embedded"`
	Autoplay    playback.State    `json:"autoplay"`
	SessionOpen bool              `json:"session_open"`
	LiveUploads int               `json:"live_uploads"`
}

// Handler implementations

// HandleState handles the gallery_state tool call.
func (h *Handlers) HandleState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	embedded := h.host.Embedded()
	state := h.host.Store.Snapshot()
	return successResult(StateOutput{
		State:       state,
		Headline:    display.Format(h.host.HeadlineFor(state, embedded)),
		Embedded:    embedded,
		Autoplay:    h.host.Autoplay.State(),
		SessionOpen: h.host.Session.IsOpen(),
		LiveUploads: h.host.Registry.Stats().Live,
	})
}

// HandleOpen handles the gallery_open tool call.
func (h *Handlers) HandleOpen(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h.host.Session.Open()
	return successResult(h.host.Session.Draft())
}

// HandleSetText handles the gallery_set_text tool call.
func (h *Handlers) HandleSetText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SetTextRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Text == nil {
		return errorResult(errors.NewInvalidRequest("text is required")), nil
	}
	if err := h.host.Session.SetText(*input.Text); err != nil {
		return errorResult(err), nil
	}
	return successResult(h.host.Session.Draft())
}

// HandleSetImage handles the gallery_set_image tool call.
func (h *Handlers) HandleSetImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SetImageRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Index == nil {
		return errorResult(errors.NewInvalidRequest("index is required")), nil
	}
	f, err := openFile(input.Path, input.MediaType)
	if err != nil {
		return errorResult(err), nil
	}

	if _, err := h.host.Session.UploadImage(ctx, *input.Index, f, input.Alt); err != nil {
		return errorResult(err), nil
	}
	return successResult(h.host.Session.Draft())
}

// HandleRemoveImage handles the gallery_remove_image tool call.
func (h *Handlers) HandleRemoveImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RemoveImageRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Index == nil {
		return errorResult(errors.NewInvalidRequest("index is required")), nil
	}
	if err := h.host.Session.RemoveImage(*input.Index); err != nil {
		return errorResult(err), nil
	}
	return successResult(h.host.Session.Draft())
}

// HandleSetAudio handles the gallery_set_audio tool call.
func (h *Handlers) HandleSetAudio(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SetAudioRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	f, err := openFile(input.Path, input.MediaType)
	if err != nil {
		return errorResult(err), nil
	}

	if _, err := h.host.Session.UploadAudio(ctx, f, input.Name); err != nil {
		return errorResult(err), nil
	}
	return successResult(h.host.Session.Draft())
}

// HandleClearAudio handles the gallery_clear_audio tool call.
func (h *Handlers) HandleClearAudio(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.host.Session.ClearAudio(); err != nil {
		return errorResult(err), nil
	}
	return successResult(h.host.Session.Draft())
}

// HandleSave handles the gallery_save tool call.
func (h *Handlers) HandleSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, err := h.host.Session.Save()
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(state)
}

// HandleCancel handles the gallery_cancel tool call.
func (h *Handlers) HandleCancel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h.host.Session.Cancel()
	return successResult(map[string]any{
		"cancelled":    true,
		"live_uploads": h.host.Registry.Stats().Live,
	})
}

func openFile(path, mediaType string) (*media.DiskFile, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	f, err := media.OpenDiskFile(path, mediaType)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot read %s: %v", path, err))
	}
	return f, nil
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var fErr *errors.FolioError
	if stderrors.As(err, &fErr) {
		message := fErr.Message
		// Keep wrapper context ("slot 3: ...") around the typed message.
		if prefix, ok := strings.CutSuffix(err.Error(), fErr.Error()); ok && prefix != "" {
			message = prefix + message
		}
		errorObj := map[string]any{
			"code":    fErr.Code,
			"message": message,
			"status":  fErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths
		if fErr.Code != errors.ErrInternal && fErr.Details != nil {
			errorObj["details"] = fErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
