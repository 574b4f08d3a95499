package driver_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/browsergrid/pilot/driver"
	"github.com/browsergrid/pilot/wire"
)

// scriptedPeer replies to successive commands from a fixed list, then
// keeps reading until the client hangs up.
func scriptedPeer(replies []wire.Result) func(ws *websocket.Conn) {
	return func(ws *websocket.Conn) {
		for _, r := range replies {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
			data, _ := json.Marshal(r)
			if ws.WriteMessage(websocket.TextMessage, data) != nil {
				return
			}
		}
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}
}

// capturePeer forwards every decoded command to captured and answers
// each one with a bare success.
func capturePeer(captured chan<- map[string]any) func(ws *websocket.Conn) {
	return func(ws *websocket.Conn) {
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			var fields map[string]any
			if json.Unmarshal(data, &fields) != nil {
				continue
			}
			captured <- fields
			reply, _ := json.Marshal(wire.Result{Success: true})
			if ws.WriteMessage(websocket.TextMessage, reply) != nil {
				return
			}
		}
	}
}

func openBrowser(t *testing.T, url string, opts ...driver.BrowserOption) *driver.Browser {
	t.Helper()
	conn := newConn(t, url, nil)
	require.NoError(t, conn.Connect(context.Background()))
	t.Cleanup(func() { conn.Close(context.Background()) })
	opts = append(opts, driver.WithBrowserLogger(zap.NewNop()))
	return driver.NewBrowser(conn, opts...)
}

func TestBrowser_VerbsEncodeTheirFields(t *testing.T) {
	captured := make(chan map[string]any, 8)
	url := startPeer(t, capturePeer(captured))
	b := openBrowser(t, url)
	ctx := context.Background()

	require.NoError(t, b.Navigate(ctx, "https://example.com/login"))
	fields := <-captured
	assert.Equal(t, "navigate", fields["action"])
	assert.Equal(t, "https://example.com/login", fields["url"])
	assert.NotContains(t, fields, "x")
	assert.NotContains(t, fields, "text")

	require.NoError(t, b.Click(ctx, 0, 0))
	fields = <-captured
	assert.Equal(t, "click", fields["action"])
	assert.Equal(t, float64(0), fields["x"], "origin clicks must keep their coordinates")
	assert.Equal(t, float64(0), fields["y"])

	require.NoError(t, b.TypeText(ctx, "hello world"))
	fields = <-captured
	assert.Equal(t, "type_text", fields["action"])
	assert.Equal(t, "hello world", fields["text"])

	require.NoError(t, b.Scroll(ctx, 0, -120))
	fields = <-captured
	assert.Equal(t, "scroll", fields["action"])
	assert.Equal(t, float64(0), fields["delta_x"])
	assert.Equal(t, float64(-120), fields["delta_y"])

	require.NoError(t, b.ResizeViewport(ctx, 0, 0))
	fields = <-captured
	assert.Equal(t, "resize_viewport", fields["action"])
	assert.Equal(t, float64(1280), fields["width"], "non-positive sizes fall back to the configured viewport")
	assert.Equal(t, float64(720), fields["height"])
}

func TestBrowser_FailedVerbSurfacesServerMessage(t *testing.T) {
	url := startPeer(t, scriptedPeer([]wire.Result{
		{Success: false, Error: "no clickable element at 10,10"},
	}))
	b := openBrowser(t, url)

	err := b.Click(context.Background(), 10, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "click failed")
	assert.Contains(t, err.Error(), "no clickable element at 10,10")
}

func TestBrowser_CaptureScreenshotReturnsEmbeddedBytes(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}
	url := startPeer(t, scriptedPeer([]wire.Result{
		{Success: true, Image: payload},
	}))
	b := openBrowser(t, url)

	img, err := b.CaptureScreenshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, payload, img)
}

func TestBrowser_CaptureScreenshotFailureIsTyped(t *testing.T) {
	url := startPeer(t, scriptedPeer([]wire.Result{
		{Success: false, Error: "renderer busy"},
	}))
	b := openBrowser(t, url)

	_, err := b.CaptureScreenshot(context.Background())
	var shotErr *driver.ScreenshotFailedError
	require.ErrorAs(t, err, &shotErr)
	assert.Equal(t, "renderer busy", shotErr.Reason)
	assert.Contains(t, err.Error(), "renderer busy")
}

func TestBrowser_CaptureScreenshotWithoutImageDataFails(t *testing.T) {
	url := startPeer(t, scriptedPeer([]wire.Result{
		{Success: true},
	}))
	b := openBrowser(t, url)

	_, err := b.CaptureScreenshot(context.Background())
	var shotErr *driver.ScreenshotFailedError
	require.ErrorAs(t, err, &shotErr)
}

func TestBrowser_CaptureScreenshotFollowsRemoteURL(t *testing.T) {
	payload := []byte("remote image bytes")
	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	t.Cleanup(images.Close)

	url := startPeer(t, scriptedPeer([]wire.Result{
		{Success: true, ImageURL: images.URL + "/shots/1.png"},
	}))
	b := openBrowser(t, url, driver.WithHTTPClient(images.Client()))

	img, err := b.CaptureScreenshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, payload, img)
}

func TestBrowser_CaptureScreenshotDownloadFailureLeavesImageAbsent(t *testing.T) {
	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusInternalServerError)
	}))
	t.Cleanup(images.Close)

	url := startPeer(t, scriptedPeer([]wire.Result{
		{Success: true, ImageURL: images.URL + "/shots/404.png"},
	}))
	b := openBrowser(t, url, driver.WithHTTPClient(images.Client()))

	img, err := b.CaptureScreenshot(context.Background())
	require.NoError(t, err, "a capture that succeeded remotely is not an error here")
	assert.Nil(t, img)
}

func TestBrowser_VerbsRequireAnOpenConnection(t *testing.T) {
	conn := newConn(t, "ws://127.0.0.1:9222/session", nil)
	b := driver.NewBrowser(conn)

	require.ErrorIs(t, b.Navigate(context.Background(), "https://example.com"), driver.ErrNotConnected)
	_, err := b.CaptureScreenshot(context.Background())
	require.ErrorIs(t, err, driver.ErrNotConnected)
}
