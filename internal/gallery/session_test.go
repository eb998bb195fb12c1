package gallery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/folio/internal/config"
	"github.com/hpungsan/folio/internal/errors"
	"github.com/hpungsan/folio/internal/media"
	"github.com/hpungsan/folio/internal/media/mediatest"
	"github.com/hpungsan/folio/internal/playback"
)

func newTestHost(t *testing.T) *Host {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Images = []config.ImageConfig{
		{Src: "https://example.com/1.jpg", Alt: "One"},
		{Src: "https://example.com/2.jpg", Alt: "Two"},
	}
	return NewHost(cfg, nil)
}

func pngFile(name string) *media.BytesFile {
	return &media.BytesFile{FileName: name, Type: "image/png", Data: []byte(name)}
}

func mp3File(name string) *media.BytesFile {
	return &media.BytesFile{FileName: name, Type: "audio/mpeg", Data: []byte(name)}
}

func uploadImage(t *testing.T, h *Host, index int, name string) media.Handle {
	t.Helper()
	handle, err := h.Session.UploadImage(context.Background(), index, pngFile(name), "")
	require.NoError(t, err)
	return handle
}

func uploadAudio(t *testing.T, h *Host, name string) media.Handle {
	t.Helper()
	handle, err := h.Session.UploadAudio(context.Background(), mp3File(name), "")
	require.NoError(t, err)
	return handle
}

func TestOpen_SeedsFromCommitted(t *testing.T) {
	h := newTestHost(t)
	h.Session.Open()

	d := h.Session.Draft()
	require.True(t, d.Open)
	assert.Equal(t, "I'm; Batman", d.Text)
	require.Len(t, d.Images, MaxSlots)
	assert.Equal(t, "One", d.Images[0].Alt)
	assert.Equal(t, "Two", d.Images[1].Alt)
	assert.True(t, d.Images[2].Empty())
}

func TestOpen_WhileOpenDoesNotReseed(t *testing.T) {
	h := newTestHost(t)
	h.Session.Open()
	require.NoError(t, h.Session.SetText("draft in progress"))

	h.Session.Open()
	assert.Equal(t, "draft in progress", h.Session.Draft().Text)
}

func TestEditsRequireOpenSession(t *testing.T) {
	h := newTestHost(t)

	assert.True(t, errors.Is(h.Session.SetText("x"), errors.ErrSessionClosed))
	assert.True(t, errors.Is(h.Session.RemoveImage(0), errors.ErrSessionClosed))
	assert.True(t, errors.Is(h.Session.ClearAudio(), errors.ErrSessionClosed))
	_, err := h.Session.Save()
	assert.True(t, errors.Is(err, errors.ErrSessionClosed))
	_, err = h.Session.UploadImage(context.Background(), 0, pngFile("a"), "")
	assert.True(t, errors.Is(err, errors.ErrSessionClosed))
	assert.Equal(t, 0, h.Registry.Stats().Live)
}

func TestSetImage_IndexBounds(t *testing.T) {
	h := newTestHost(t)
	h.Session.Open()

	assert.True(t, errors.Is(h.Session.SetImage(-1, media.Persistent("x"), ""), errors.ErrInvalidRequest))
	assert.True(t, errors.Is(h.Session.SetImage(MaxSlots, media.Persistent("x"), ""), errors.ErrInvalidRequest))
	_, err := h.Session.UploadImage(context.Background(), MaxSlots, pngFile("a"), "")
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestReselectingSlotReleasesPreviousUpload(t *testing.T) {
	h := newTestHost(t)
	h.Session.Open()

	first := uploadImage(t, h, 4, "first")
	second := uploadImage(t, h, 4, "second")

	assert.False(t, h.Registry.Live(first), "replaced upload must be released immediately")
	assert.True(t, h.Registry.Live(second))
	assert.Equal(t, second, h.Session.Draft().Images[4].Handle)
	assert.Equal(t, "Image 5", h.Session.Draft().Images[4].Alt)
}

func TestRemoveImage_ReleasesOrphan(t *testing.T) {
	h := newTestHost(t)
	h.Session.Open()
	up := uploadImage(t, h, 2, "a")

	require.NoError(t, h.Session.RemoveImage(2))
	assert.False(t, h.Registry.Live(up))
	assert.True(t, h.Session.Draft().Images[2].Empty())
}

func TestRemoveImage_KeepsCommittedUpload(t *testing.T) {
	h := newTestHost(t)
	h.Session.Open()
	up := uploadImage(t, h, 2, "a")
	_, err := h.Session.Save()
	require.NoError(t, err)

	h.Session.Open()
	require.NoError(t, h.Session.RemoveImage(2))
	assert.True(t, h.Registry.Live(up), "committed handle stays live while displayed")

	h.Session.Cancel()
	assert.True(t, h.Registry.Live(up))
	assert.True(t, h.Store.Snapshot().References(up))
}

func TestSameHandleInTwoSlots(t *testing.T) {
	h := newTestHost(t)
	h.Session.Open()
	up := uploadImage(t, h, 3, "a")
	require.NoError(t, h.Session.SetImage(5, up, "copy"))

	require.NoError(t, h.Session.RemoveImage(3))
	assert.True(t, h.Registry.Live(up), "still reachable from slot 5")

	require.NoError(t, h.Session.RemoveImage(5))
	assert.False(t, h.Registry.Live(up))
}

func TestSetImage_RefusesReleasedUpload(t *testing.T) {
	h := newTestHost(t)
	h.Session.Open()
	up := uploadImage(t, h, 3, "a")
	h.Session.Cancel()
	require.False(t, h.Registry.Live(up))

	h.Session.Open()
	err := h.Session.SetImage(3, up, "alt")
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
	assert.True(t, h.Session.Draft().Images[3].Empty())

	state, err := h.Session.Save()
	require.NoError(t, err)
	assert.False(t, state.References(up))
}

func TestSetAudio_RefusesReleasedUpload(t *testing.T) {
	h := newTestHost(t)
	h.Session.Open()
	up := uploadAudio(t, h, "song.mp3")
	require.NoError(t, h.Session.ClearAudio())
	require.False(t, h.Registry.Live(up))

	err := h.Session.SetAudio(AudioDescriptor{Handle: up, Name: "Song"})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
	assert.Nil(t, h.Session.Draft().Audio)
}

func TestUpload_AppliesAltAndName(t *testing.T) {
	h := newTestHost(t)
	h.Session.Open()

	img, err := h.Session.UploadImage(context.Background(), 4, pngFile("a.png"), "Sunset")
	require.NoError(t, err)
	track, err := h.Session.UploadAudio(context.Background(), mp3File("song.mp3"), "Theme")
	require.NoError(t, err)

	d := h.Session.Draft()
	assert.Equal(t, ImageSlot{Handle: img, Alt: "Sunset"}, d.Images[4])
	require.NotNil(t, d.Audio)
	assert.Equal(t, track, d.Audio.Handle)
	assert.Equal(t, "Theme", d.Audio.Name)
}

func TestCancel_ReleasesSessionUploadsOnly(t *testing.T) {
	h := newTestHost(t)

	// Commit one upload first.
	h.Session.Open()
	committed := uploadImage(t, h, 2, "committed")
	committedAudio := uploadAudio(t, h, "committed.mp3")
	_, err := h.Session.Save()
	require.NoError(t, err)

	h.Session.Open()
	a := uploadImage(t, h, 3, "a")
	b := uploadImage(t, h, 7, "b")
	c := uploadAudio(t, h, "c.mp3")
	require.NoError(t, h.Session.RemoveImage(2))
	require.NoError(t, h.Session.SetText("discarded"))

	h.Session.Cancel()

	for _, up := range []media.Handle{a, b, c} {
		assert.False(t, h.Registry.Live(up))
	}
	assert.True(t, h.Registry.Live(committed))
	assert.True(t, h.Registry.Live(committedAudio))
	assert.False(t, h.Session.IsOpen())
	assert.Equal(t, "I'm; Batman", h.Store.Snapshot().Text)
	assert.Equal(t, media.Stats{Live: 2, Released: 3}, h.Registry.Stats())
}

func TestCancel_WhenClosedIsNoop(t *testing.T) {
	h := newTestHost(t)
	h.Session.Cancel()
	assert.False(t, h.Session.IsOpen())
}

func TestSave_CommitsNonEmptySlotsInOrder(t *testing.T) {
	h := newTestHost(t)
	h.Session.Open()
	require.NoError(t, h.Session.RemoveImage(0))
	up := uploadImage(t, h, 6, "six")
	require.NoError(t, h.Session.SetText("Hello, World"))

	state, err := h.Session.Save()
	require.NoError(t, err)

	require.Len(t, state.Images, 2)
	assert.Equal(t, "Two", state.Images[0].Alt)
	assert.Equal(t, up, state.Images[1].Handle)
	assert.Equal(t, "Hello, World", state.Text)
	assert.Equal(t, state, h.Store.Snapshot())
	assert.False(t, h.Session.IsOpen())
	assert.True(t, h.Registry.Live(up))
}

func TestSave_ReleasesDroppedCommittedUploadsOnce(t *testing.T) {
	h := newTestHost(t)
	h.Session.Open()
	old := uploadImage(t, h, 2, "old")
	oldAudio := uploadAudio(t, h, "old.mp3")
	_, err := h.Session.Save()
	require.NoError(t, err)

	h.Session.Open()
	require.NoError(t, h.Session.RemoveImage(2))
	require.NoError(t, h.Session.ClearAudio())
	assert.True(t, h.Registry.Live(old), "still displayed until save")
	_, err = h.Session.Save()
	require.NoError(t, err)

	assert.False(t, h.Registry.Live(old))
	assert.False(t, h.Registry.Live(oldAudio))
	assert.Equal(t, 2, h.Registry.Stats().Released)

	// A later cancel must not release anything again.
	h.Session.Open()
	h.Session.Cancel()
	assert.Equal(t, 2, h.Registry.Stats().Released)
}

func TestSave_EmptyGallery(t *testing.T) {
	h := newTestHost(t)
	h.Session.Open()
	require.NoError(t, h.Session.RemoveImage(0))
	require.NoError(t, h.Session.RemoveImage(1))

	state, err := h.Session.Save()
	require.NoError(t, err)
	assert.Empty(t, state.Images)
}

func TestUpload_OutOfOrderCompletion(t *testing.T) {
	h := newTestHost(t)
	h.Session.Open()

	slot3 := mediatest.NewGated("three.png", "image/png", []byte("three"))
	slot1 := mediatest.NewGated("one.png", "image/png", []byte("one"))

	type res struct {
		h   media.Handle
		err error
	}
	done3 := make(chan res, 1)
	done1 := make(chan res, 1)
	go func() {
		up, err := h.Session.UploadImage(context.Background(), 3, slot3, "")
		done3 <- res{up, err}
	}()
	go func() {
		up, err := h.Session.UploadImage(context.Background(), 1, slot1, "")
		done1 <- res{up, err}
	}()

	slot1.Release()
	r1 := <-done1
	require.NoError(t, r1.err)
	slot3.Release()
	r3 := <-done3
	require.NoError(t, r3.err)

	d := h.Session.Draft()
	assert.Equal(t, media.DataURI("image/png", []byte("one")), d.Images[1].Handle.URI)
	assert.Equal(t, media.DataURI("image/png", []byte("three")), d.Images[3].Handle.URI)
	assert.Equal(t, "Image 2", d.Images[1].Alt)
	assert.Equal(t, "Image 4", d.Images[3].Alt)
}

func TestUpload_OversizedLeavesSlotUnchanged(t *testing.T) {
	h := newTestHost(t)
	h.Session.Open()
	before := h.Session.Draft().Images[0]

	big := &mediatest.SizedFile{FileName: "big.jpg", Type: "image/jpeg", Bytes: 15 * 1024 * 1024}
	_, err := h.Session.UploadImage(context.Background(), 0, big, "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMediaTooLarge))
	assert.Equal(t, before, h.Session.Draft().Images[0])
	assert.Equal(t, media.Stats{}, h.Registry.Stats())
}

func TestUpload_WrongKindLeavesDraftUnchanged(t *testing.T) {
	h := newTestHost(t)
	h.Session.Open()

	_, err := h.Session.UploadAudio(context.Background(), pngFile("not-audio.png"), "")
	assert.True(t, errors.Is(err, errors.ErrInvalidMediaType))
	assert.Nil(t, h.Session.Draft().Audio)
	assert.True(t, h.Session.IsOpen(), "a failed upload does not end the session")
}

func TestUpload_LateResultAfterCancelIsReleased(t *testing.T) {
	h := newTestHost(t)
	h.Session.Open()

	slow := mediatest.NewGated("slow.png", "image/png", []byte("slow"))
	errc := make(chan error, 1)
	go func() {
		_, err := h.Session.UploadImage(context.Background(), 0, slow, "")
		errc <- err
	}()
	<-slow.Opened()

	h.Session.Cancel()
	slow.Release()

	err := <-errc
	assert.True(t, errors.Is(err, errors.ErrSessionClosed))
	assert.Equal(t, media.Stats{Live: 0, Released: 1}, h.Registry.Stats())
}

func TestUpload_LateResultAfterReopenIsReleased(t *testing.T) {
	h := newTestHost(t)
	h.Session.Open()

	slow := mediatest.NewGated("slow.png", "image/png", []byte("slow"))
	errc := make(chan error, 1)
	go func() {
		_, err := h.Session.UploadImage(context.Background(), 0, slow, "")
		errc <- err
	}()
	<-slow.Opened()

	_, err := h.Session.Save()
	require.NoError(t, err)
	h.Session.Open()
	slow.Release()

	err = <-errc
	assert.True(t, errors.Is(err, errors.ErrSessionClosed))
	assert.Equal(t, 0, h.Registry.Stats().Live)
	assert.Equal(t, "One", h.Session.Draft().Images[0].Alt, "new draft is untouched")
}

func TestUpload_CallerContextEndsButResultStillLands(t *testing.T) {
	h := newTestHost(t)
	h.Session.Open()

	slow := mediatest.NewGated("slow.png", "image/png", []byte("slow"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Session.UploadImage(ctx, 5, slow, "")
	require.ErrorIs(t, err, context.Canceled)

	slow.Release()
	require.Eventually(t, func() bool {
		return !h.Session.Draft().Images[5].Empty()
	}, time.Second, 5*time.Millisecond)

	h.Session.Cancel()
	assert.Equal(t, 0, h.Registry.Stats().Live)
}

func TestSave_AutoplayEdgeTriggered(t *testing.T) {
	h := newTestHost(t)
	require.Equal(t, 0, h.Autoplay.Attempts())

	h.Session.Open()
	track := uploadAudio(t, h, "track.mp3")
	_, err := h.Session.Save()
	require.NoError(t, err)
	require.Equal(t, 1, h.Autoplay.Attempts())

	a, ok := h.Autoplay.Pending()
	require.True(t, ok)
	assert.Equal(t, track, a.Handle)
	h.Autoplay.Report(a.ID, playback.ErrAutoplayRejected)
	require.True(t, h.Autoplay.ControlsVisible())

	// Text-only change keeps the same track: no new attempt, controls stay.
	h.Session.Open()
	require.NoError(t, h.Session.SetText("new words"))
	_, err = h.Session.Save()
	require.NoError(t, err)
	assert.Equal(t, 1, h.Autoplay.Attempts())
	assert.True(t, h.Autoplay.ControlsVisible())

	// Different track: exactly one new attempt.
	h.Session.Open()
	uploadAudio(t, h, "other.mp3")
	_, err = h.Session.Save()
	require.NoError(t, err)
	assert.Equal(t, 2, h.Autoplay.Attempts())
	assert.False(t, h.Autoplay.ControlsVisible())
	assert.False(t, h.Registry.Live(track))
}

func TestHost_ConfiguredAudioAttemptsOnce(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Audio = &config.AudioConfig{Src: "https://example.com/theme.mp3", Name: "Theme"}
	h := NewHost(cfg, nil)

	assert.Equal(t, 1, h.Autoplay.Attempts())
	require.NotNil(t, h.Store.Snapshot().Audio)
	assert.Equal(t, "Theme", h.Store.Snapshot().Audio.DisplayName())
}

func TestHost_CapsConfiguredImages(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Images = nil
	for i := 0; i < MaxSlots+3; i++ {
		cfg.Images = append(cfg.Images, config.ImageConfig{Src: "https://example.com/" + DefaultAlt(i) + ".jpg"})
	}
	h := NewHost(cfg, nil)
	assert.Len(t, h.Store.Snapshot().Images, MaxSlots)
}

func TestHost_Headline(t *testing.T) {
	h := newTestHost(t)
	s := h.Store.Snapshot()
	assert.Equal(t, "I'm; Batman", h.HeadlineFor(s, false))
	assert.Equal(t, "damnnn", h.HeadlineFor(s, true))
}

func TestHost_Teardown(t *testing.T) {
	h := newTestHost(t)
	h.Session.Open()
	committed := uploadImage(t, h, 2, "kept")
	_, err := h.Session.Save()
	require.NoError(t, err)

	h.Session.Open()
	drafted := uploadImage(t, h, 3, "draft")
	_, ok := h.Thumbs.Get(drafted.ID)
	require.True(t, ok)

	h.Teardown()

	assert.False(t, h.Registry.Live(committed))
	assert.False(t, h.Registry.Live(drafted))
	assert.False(t, h.Session.IsOpen())
	assert.Equal(t, 0, h.Registry.Stats().Live)
	assert.Equal(t, 0, h.Thumbs.Len())
}
