package web

import (
	"bytes"
	stderrors "errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/hpungsan/folio/internal/config"
	"github.com/hpungsan/folio/internal/display"
	"github.com/hpungsan/folio/internal/embed"
	"github.com/hpungsan/folio/internal/errors"
	"github.com/hpungsan/folio/internal/gallery"
	"github.com/hpungsan/folio/internal/media"
	"github.com/hpungsan/folio/internal/playback"
)

// multipartOverhead is the room left for form fields around an upload.
const multipartOverhead = 1 << 20

// Handlers contains HTTP route handlers for the gallery and the editor.
type Handlers struct {
	host     *gallery.Host
	renderer *Renderer
	log      *zap.Logger
}

// StateResponse is the body of GET /api/state.
type StateResponse struct {
	State    gallery.State        `json:"state"`
	Headline []display.Segment    `json:"headline"`
	Embedded bool                 `json:"embedded"`
	Gallery  config.GalleryParams `json:"gallery"`
	Autoplay AutoplayResponse     `json:"autoplay"`
}

// AutoplayResponse reports the coordinator's view of the committed track.
type AutoplayResponse struct {
	State   playback.State    `json:"state"`
	Attempt *playback.Attempt `json:"attempt,omitempty"`
}

// embedded settles embedding on the first conclusive request. In auto mode
// that is a navigation carrying Sec-Fetch-Dest or the page script's frame
// report; anything else gets the provisional answer without latching.
func (h *Handlers) embedded(r *http.Request) bool {
	if h.host.Config().Embed == config.EmbedAuto && embed.Conclusive(r) {
		return h.host.Embed.Detect(embed.FromRequest(r))
	}
	return h.host.Embedded()
}

// EmbedResponse is the body of POST /embed.
type EmbedResponse struct {
	Embedded bool `json:"embedded"`
}

// HandleEmbed handles POST /embed: the page script reports its frame check
// on load. A page rendered before the decision reloads if the answer differs.
func (h *Handlers) HandleEmbed(w http.ResponseWriter, r *http.Request) {
	switch r.Header.Get(embed.FrameAccessHeader) {
	case embed.FrameTop, embed.FrameEmbedded, embed.FrameDenied:
	default:
		h.renderer.renderError(w, r, errors.NewInvalidRequest(embed.FrameAccessHeader+" must be top, embedded, or denied"))
		return
	}
	renderJSON(w, http.StatusOK, EmbedResponse{Embedded: h.embedded(r)})
}

// HandleGallery handles GET /: the gallery with its headline and audio.
func (h *Handlers) HandleGallery(w http.ResponseWriter, r *http.Request) {
	embedded := h.embedded(r)
	state := h.host.Store.Snapshot()

	data := GalleryPageData{
		PageData: PageData{
			Title:   display.Plain(display.Format(state.Text)),
			Version: h.renderer.version,
		},
		Headline:        headline(h.host.HeadlineFor(state, embedded)),
		Images:          state.Images,
		Audio:           state.Audio,
		CanEdit:         !embedded,
		Params:          h.host.Config().Gallery,
	}
	// Each page load is a new audio element. Once the track's one attempt is
	// spent, played or not, only the manual controls can start it.
	if a, ok := h.host.Autoplay.Pending(); ok {
		data.Attempt = &a
	} else {
		data.ControlsVisible = state.Audio != nil
	}

	h.renderer.renderPage(w, r, "gallery", data)
}

// HandleState handles GET /api/state: committed state as JSON.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	embedded := h.embedded(r)
	state := h.host.Store.Snapshot()

	resp := StateResponse{
		State:    state,
		Headline: display.Format(h.host.HeadlineFor(state, embedded)),
		Embedded: embedded,
		Gallery:  h.host.Config().Gallery,
		Autoplay: AutoplayResponse{State: h.host.Autoplay.State()},
	}
	if a, ok := h.host.Autoplay.Pending(); ok {
		resp.Autoplay.Attempt = &a
	}
	renderJSON(w, http.StatusOK, resp)
}

// HandleEditOpen handles POST /edit/open: start (or resume) editing.
func (h *Handlers) HandleEditOpen(w http.ResponseWriter, r *http.Request) {
	if !h.editable(w, r) {
		return
	}
	h.host.Session.Open()
	h.done(w, r, "/edit")
}

// HandleEdit handles GET /edit: the editor for the open draft.
func (h *Handlers) HandleEdit(w http.ResponseWriter, r *http.Request) {
	if !h.editable(w, r) {
		return
	}
	draft := h.host.Session.Draft()
	if !draft.Open {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	slots := make([]SlotView, len(draft.Images))
	for i, s := range draft.Images {
		slots[i] = SlotView{Index: i, Slot: s}
	}

	h.renderer.renderPage(w, r, "edit", EditPageData{
		PageData: PageData{
			Title:   "Edit gallery",
			Version: h.renderer.version,
		},
		Text:    draft.Text,
		Preview: headline(draft.Text),
		Slots:   slots,
		Audio:   draft.Audio,
		Notice:  r.URL.Query().Get("notice"),
	})
}

// HandleThumb handles GET /edit/thumbs/{id}: a scaled preview of an upload
// still held by the draft or the committed gallery.
func (h *Handlers) HandleThumb(w http.ResponseWriter, r *http.Request) {
	if !h.editable(w, r) {
		return
	}
	p, ok := h.host.Thumbs.Get(r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	// Uploads are served back verbatim when they cannot be scaled.
	w.Header().Set("Content-Security-Policy", "default-src 'none'; sandbox")
	w.Header().Set("Content-Type", p.MediaType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	_, _ = w.Write(p.Data)
}

// HandleEditText handles POST /edit/text.
func (h *Handlers) HandleEditText(w http.ResponseWriter, r *http.Request) {
	if !h.editable(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		h.fail(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}
	if err := h.host.Session.SetText(r.FormValue("text")); err != nil {
		h.fail(w, r, err)
		return
	}
	h.done(w, r, "/edit")
}

// HandleUploadImage handles POST /edit/images/{index}: multipart field "file".
func (h *Handlers) HandleUploadImage(w http.ResponseWriter, r *http.Request) {
	if !h.editable(w, r) {
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		h.fail(w, r, errors.NewInvalidRequest("image index must be an integer"))
		return
	}
	f, err := h.formFile(w, r, media.KindImage, h.host.Config().ImageMaxBytes)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.host.Session.UploadImage(r.Context(), index, f, ""); err != nil {
		h.fail(w, r, err)
		return
	}
	h.done(w, r, "/edit")
}

// HandleRemoveImage handles POST /edit/images/{index}/remove.
func (h *Handlers) HandleRemoveImage(w http.ResponseWriter, r *http.Request) {
	if !h.editable(w, r) {
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		h.fail(w, r, errors.NewInvalidRequest("image index must be an integer"))
		return
	}
	if err := h.host.Session.RemoveImage(index); err != nil {
		h.fail(w, r, err)
		return
	}
	h.done(w, r, "/edit")
}

// HandleUploadAudio handles POST /edit/audio: multipart field "file".
func (h *Handlers) HandleUploadAudio(w http.ResponseWriter, r *http.Request) {
	if !h.editable(w, r) {
		return
	}
	f, err := h.formFile(w, r, media.KindAudio, h.host.Config().AudioMaxBytes)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.host.Session.UploadAudio(r.Context(), f, ""); err != nil {
		h.fail(w, r, err)
		return
	}
	h.done(w, r, "/edit")
}

// HandleClearAudio handles POST /edit/audio/remove.
func (h *Handlers) HandleClearAudio(w http.ResponseWriter, r *http.Request) {
	if !h.editable(w, r) {
		return
	}
	if err := h.host.Session.ClearAudio(); err != nil {
		h.fail(w, r, err)
		return
	}
	h.done(w, r, "/edit")
}

// HandleSave handles POST /edit/save: commit the draft.
func (h *Handlers) HandleSave(w http.ResponseWriter, r *http.Request) {
	if !h.editable(w, r) {
		return
	}
	state, err := h.host.Session.Save()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, state)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleCancel handles POST /edit/cancel: discard the draft.
func (h *Handlers) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.host.Session.Cancel()
	h.done(w, r, "/")
}

// HandlePlayback handles POST /playback/{attempt}: the page reports how its
// play() call went. result is "played" or "rejected".
func (h *Handlers) HandlePlayback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	var playErr error
	switch r.FormValue("result") {
	case "played":
	case "rejected":
		playErr = playback.ErrAutoplayRejected
	default:
		h.renderer.renderError(w, r, errors.NewInvalidRequest(`result must be "played" or "rejected"`))
		return
	}

	accepted := h.host.Autoplay.Report(r.PathValue("attempt"), playErr)
	if !accepted {
		h.log.Debug("stale playback report ignored", zap.String("attempt", r.PathValue("attempt")))
	}
	renderJSON(w, http.StatusOK, map[string]any{
		"accepted":         accepted,
		"controls_visible": h.host.Autoplay.ControlsVisible(),
	})
}

// editable rejects editor requests while the gallery runs embedded.
func (h *Handlers) editable(w http.ResponseWriter, r *http.Request) bool {
	if h.embedded(r) {
		h.renderer.renderError(w, r, errors.NewForbidden("editing is unavailable while the gallery is embedded"))
		return false
	}
	return true
}

// done finishes a successful editor action: JSON clients get the draft,
// browsers are sent to next.
func (h *Handlers) done(w http.ResponseWriter, r *http.Request, next string) {
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, h.host.Session.Draft())
		return
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// fail reports an editor error. Browser forms go back to the editor with a
// notice while the draft is still open; everything else gets the typed error.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	fErr := asFolioError(err)
	if wantsJSON(r) || r.Header.Get("HX-Request") == "true" ||
		fErr.Status >= http.StatusInternalServerError || !h.host.Session.IsOpen() {
		h.renderer.renderError(w, r, err)
		return
	}
	http.Redirect(w, r, "/edit?notice="+url.QueryEscape(fErr.Message), http.StatusSeeOther)
}

// formFile streams the "file" part of a multipart upload. The declared type
// is checked from the part header before the body is read, then the size, so
// a wrong type is reported as such however large the file is.
func (h *Handlers) formFile(w http.ResponseWriter, r *http.Request, kind media.Kind, limit int64) (*media.BytesFile, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, errors.NewInvalidRequest("invalid multipart upload")
	}
	part, err := filePart(mr)
	if err != nil {
		return nil, uploadError(err, kind, limit, r.ContentLength)
	}
	defer part.Close()

	declared := part.Header.Get("Content-Type")
	if !kind.Accepts(declared) {
		return nil, errors.NewInvalidMediaType(string(kind), declared)
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(part, limit+1))
	if err != nil {
		return nil, uploadError(err, kind, limit, r.ContentLength)
	}
	if n > limit {
		return nil, errors.NewMediaTooLarge(string(kind), limit, max(n, r.ContentLength))
	}
	return &media.BytesFile{FileName: part.FileName(), Type: declared, Data: buf.Bytes()}, nil
}

// filePart skips ahead to the part named "file".
func filePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		p, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		if p.FormName() == "file" {
			return p, nil
		}
		_ = p.Close()
	}
}

// uploadError maps a failed multipart read. Running into the body cap means
// the file is too large; anything else is a malformed request.
func uploadError(err error, kind media.Kind, limit, contentLength int64) error {
	if err == io.EOF {
		return errors.NewInvalidRequest("file is required")
	}
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		return errors.NewMediaTooLarge(string(kind), limit, max(contentLength, limit+1))
	}
	return errors.NewInvalidRequest("invalid multipart upload")
}
