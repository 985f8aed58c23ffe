package queue

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahirjain10/go-assets/internal/assets"
	"github.com/mahirjain10/go-assets/internal/fetch"
	"github.com/mahirjain10/go-assets/internal/observability"
	queueErrors "github.com/mahirjain10/go-assets/internal/queue/errors"
	"github.com/mahirjain10/go-assets/internal/queue/handlers"
	"github.com/mahirjain10/go-assets/internal/queue/models"
	"github.com/mahirjain10/go-assets/internal/thumbnail"
	"github.com/mahirjain10/go-assets/internal/types"
	"github.com/mahirjain10/go-assets/internal/utils"
)

type recordingPublisher struct {
	mu       sync.Mutex
	messages []types.StatusMessage
	err      error
}

func (p *recordingPublisher) PublishStatus(ctx context.Context, msg *types.StatusMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, *msg)
	return nil
}

func (p *recordingPublisher) statuses() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, m := range p.messages {
		out = append(out, m.Data.Status)
	}
	return out
}

func (p *recordingPublisher) last() types.StatusData {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.messages[len(p.messages)-1].Data
}

type fakeMirror struct {
	uploads int
	fail    int
	deleted []string
}

func (m *fakeMirror) UploadAsset(ctx context.Context, name, filePath string) (string, error) {
	m.uploads++
	if m.uploads <= m.fail {
		return "", errors.New("connection reset")
	}
	if _, err := os.Stat(filePath); err != nil {
		return "", err
	}
	return "https://cdn.example/assets/" + name, nil
}

func (m *fakeMirror) DeleteAsset(ctx context.Context, name string) error {
	m.deleted = append(m.deleted, name)
	return nil
}

type fixture struct {
	store     *assets.Store
	publisher *recordingPublisher
	mirror    *fakeMirror
	metrics   *observability.Metrics
	processor *Processor
	server    *httptest.Server
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		img.Set(w/2, y, color.RGBA{G: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func newFixture(t *testing.T, withMirror bool) *fixture {
	t.Helper()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	store, err := assets.NewStore(filepath.Join(t.TempDir(), "assets"), zerolog.Nop(), metrics)
	require.NoError(t, err)

	img := jpegBytes(t, 640, 480)
	mux := http.NewServeMux()
	mux.HandleFunc("/photo.jpg", func(w http.ResponseWriter, r *http.Request) { w.Write(img) })
	mux.HandleFunc("/missing.jpg", http.NotFound)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	fetcher := fetch.NewFetcher(srv.Client(), 0, t.TempDir(), zerolog.Nop(), metrics)
	f := &fixture{store: store, publisher: &recordingPublisher{}, metrics: metrics, server: srv}

	var mirror handlers.Mirror
	if withMirror {
		f.mirror = &fakeMirror{}
		mirror = f.mirror
	}
	handler := handlers.NewThumbnailHandler(store, fetcher, mirror, thumbnail.Size{Width: 64, Height: 64}, zerolog.Nop()).WithRetry(3, time.Millisecond)
	f.processor = NewProcessor(handler, f.publisher, metrics, zerolog.Nop())
	return f
}

func jobBody(t *testing.T, pattern string, data any) []byte {
	t.Helper()
	raw, err := utils.SerializeJSON(data)
	require.NoError(t, err)
	body, err := utils.SerializeJSON(types.JobMessage{Pattern: pattern, Data: raw})
	require.NoError(t, err)
	return body
}

func intPtr(v int) *int { return &v }

func assetConfig(t *testing.T, store *assets.Store, name string) (image.Config, string) {
	t.Helper()
	p, err := store.Path(name)
	require.NoError(t, err)
	f, err := os.Open(p)
	require.NoError(t, err)
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	return cfg, format
}

func TestProcessCreateFromBase64(t *testing.T) {
	f := newFixture(t, false)
	data := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegBytes(t, 800, 600))

	err := f.processor.Process(context.Background(), jobBody(t, types.PatternCreateThumbnail, types.CreateThumbnail{Id: "1", UserId: "u", Image: data}))
	require.NoError(t, err)

	assert.Equal(t, []string{types.PROCESSING, types.PROCESSED}, f.publisher.statuses())
	last := f.publisher.last()
	assert.Equal(t, "1", last.ID)
	assert.Empty(t, last.PublicURL)

	cfg, format := assetConfig(t, f.store, last.Filename)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 64, cfg.Width)
	assert.Equal(t, 64, cfg.Height)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.JobsTotal.WithLabelValues(types.PatternCreateThumbnail, "success")))
}

func TestProcessCreateFromURLWithMirror(t *testing.T) {
	f := newFixture(t, true)
	f.mirror.fail = 2

	job := types.CreateThumbnail{Id: "2", URL: f.server.URL + "/photo.jpg", Width: intPtr(0)}
	require.NoError(t, f.processor.Process(context.Background(), jobBody(t, types.PatternCreateThumbnail, job)))

	last := f.publisher.last()
	assert.Equal(t, types.PROCESSED, last.Status)
	assert.Equal(t, "https://cdn.example/assets/"+last.Filename, last.PublicURL)
	assert.Equal(t, 3, f.mirror.uploads)

	cfg, _ := assetConfig(t, f.store, last.Filename)
	assert.Equal(t, 640, cfg.Width, "explicit zero width keeps native size")
	assert.Equal(t, 480, cfg.Height)
}

func TestProcessCreateUploadFailureRemovesAsset(t *testing.T) {
	f := newFixture(t, true)
	f.mirror.fail = 10
	data := base64.StdEncoding.EncodeToString(jpegBytes(t, 100, 100))

	err := f.processor.Process(context.Background(), jobBody(t, types.PatternCreateThumbnail, types.CreateThumbnail{Id: "3", Image: data}))

	assert.ErrorIs(t, err, handlers.ErrUpload)
	assert.False(t, models.ShouldRequeue(err))
	assert.Equal(t, queueErrors.ErrUpload, f.publisher.last().ErrorMsg)
	entries, readErr := os.ReadDir(f.store.Root())
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestProcessCreateFailures(t *testing.T) {
	cases := []struct {
		name    string
		job     func(f *fixture) types.CreateThumbnail
		msg     string
		requeue bool
	}{
		{"no image", func(*fixture) types.CreateThumbnail { return types.CreateThumbnail{} }, queueErrors.ErrNoImage, false},
		{"bad base64", func(*fixture) types.CreateThumbnail { return types.CreateThumbnail{Image: "***"} }, queueErrors.ErrPayload, false},
		{"gif", func(*fixture) types.CreateThumbnail {
			return types.CreateThumbnail{Image: base64.StdEncoding.EncodeToString([]byte("GIF89a....."))}
		}, queueErrors.ErrFormat, false},
		{"corrupt jpeg", func(*fixture) types.CreateThumbnail {
			return types.CreateThumbnail{Image: base64.StdEncoding.EncodeToString([]byte("\xff\xd8\xff garbage"))}
		}, queueErrors.ErrCorrupted, false},
		{"bad size", func(*fixture) types.CreateThumbnail {
			return types.CreateThumbnail{Image: base64.StdEncoding.EncodeToString([]byte("\xff\xd8")), Width: intPtr(100), Height: intPtr(0)}
		}, queueErrors.ErrSize, false},
		{"404", func(f *fixture) types.CreateThumbnail { return types.CreateThumbnail{URL: f.server.URL + "/missing.jpg"} }, queueErrors.ErrDownload, false},
		{"unreachable", func(*fixture) types.CreateThumbnail { return types.CreateThumbnail{URL: "http://127.0.0.1:1/x.jpg"} }, queueErrors.ErrDownloadIO, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture(t, false)
			err := f.processor.Process(context.Background(), jobBody(t, types.PatternCreateThumbnail, c.job(f)))

			require.Error(t, err)
			assert.Equal(t, c.requeue, models.ShouldRequeue(err))
			assert.Equal(t, []string{types.PROCESSING, types.FAILED}, f.publisher.statuses())
			assert.Equal(t, c.msg, f.publisher.last().ErrorMsg)
		})
	}
}

func TestProcessRemove(t *testing.T) {
	f := newFixture(t, true)
	p, err := f.store.Path("old.png")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))

	body := jobBody(t, types.PatternRemoveAsset, types.RemoveAsset{Id: "9", Filename: "old.png"})
	require.NoError(t, f.processor.Process(context.Background(), body))
	assert.Equal(t, types.REMOVED, f.publisher.last().Status)
	assert.Equal(t, []string{"old.png"}, f.mirror.deleted)

	err = f.processor.Process(context.Background(), body)
	assert.ErrorIs(t, err, assets.ErrNotFound)
	assert.False(t, models.ShouldRequeue(err))
	assert.Equal(t, queueErrors.ErrNotFound, f.publisher.last().ErrorMsg)
	assert.Equal(t, []string{"old.png", "old.png"}, f.mirror.deleted)

	err = f.processor.Process(context.Background(), jobBody(t, types.PatternRemoveAsset, types.RemoveAsset{Filename: "../etc"}))
	assert.ErrorIs(t, err, assets.ErrInvalidName)
	assert.Equal(t, queueErrors.ErrInvalidName, f.publisher.last().ErrorMsg)
}

func TestProcessRejectsMalformedMessages(t *testing.T) {
	f := newFixture(t, false)

	for _, body := range [][]byte{
		[]byte("{"),
		[]byte(`{"pattern":"thumbnail.resize","data":{}}`),
		[]byte(`{"pattern":"thumbnail.create","data":"nope"}`),
	} {
		err := f.processor.Process(context.Background(), body)
		require.Error(t, err)
		assert.False(t, models.ShouldRequeue(err))
	}
	assert.Empty(t, f.publisher.statuses())
}

func TestProcessPublishFailures(t *testing.T) {
	f := newFixture(t, false)
	data := base64.StdEncoding.EncodeToString(jpegBytes(t, 10, 10))
	body := jobBody(t, types.PatternCreateThumbnail, types.CreateThumbnail{Image: data})

	f.publisher.err = errors.New("statusQueueChannel is not initialized")
	assert.NoError(t, f.processor.Process(context.Background(), body), "non-fatal publish errors are logged only")

	f.publisher.err = amqp.ErrClosed
	err := f.processor.Process(context.Background(), body)
	require.Error(t, err)
	assert.True(t, IsFatalError(err))
}

func TestIsFatalError(t *testing.T) {
	assert.True(t, IsFatalError(amqp.ErrClosed))
	assert.True(t, IsFatalError(&amqp.Error{Code: amqp.ConnectionForced, Recover: false}))
	assert.False(t, IsFatalError(&amqp.Error{Code: amqp.ContentTooLarge, Recover: true}))
	assert.False(t, IsFatalError(errors.New("timeout")))
}
