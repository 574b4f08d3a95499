package driver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/browsergrid/pilot/wire"
)

// Browser is the verb-oriented facade over a Conn. Each verb builds one
// validated command, sends it, and interprets the reply. Verbs block
// until their own reply settles, which keeps calls naturally serialized
// the way the FIFO correlation contract wants them.
type Browser struct {
	conn   *Conn
	httpc  *http.Client
	logger *zap.Logger
}

// NewBrowser wraps an existing connection manager. The caller keeps
// ownership of conn and its lifecycle.
func NewBrowser(conn *Conn, opts ...BrowserOption) *Browser {
	b := &Browser{
		conn:   conn,
		httpc:  &http.Client{Timeout: 30 * time.Second},
		logger: conn.logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Navigate loads pageURL in the remote browser. Page loads get the longer
// navigate timeout from the settings.
func (b *Browser) Navigate(ctx context.Context, pageURL string) error {
	cmd, err := wire.NewCommand(wire.ActionNavigate)
	if err != nil {
		return err
	}
	cmd.URL = pageURL
	cmd.Timeout = b.conn.settings.NavigateTimeout
	_, err = b.send(ctx, cmd)
	return err
}

// Click presses the primary button at viewport coordinates x, y.
func (b *Browser) Click(ctx context.Context, x, y int) error {
	cmd, err := wire.NewCommand(wire.ActionClick)
	if err != nil {
		return err
	}
	cmd.X = wire.Int(x)
	cmd.Y = wire.Int(y)
	cmd.Timeout = b.conn.settings.CommandTimeout
	_, err = b.send(ctx, cmd)
	return err
}

// TypeText types text into the focused element.
func (b *Browser) TypeText(ctx context.Context, text string) error {
	cmd, err := wire.NewCommand(wire.ActionTypeText)
	if err != nil {
		return err
	}
	cmd.Text = text
	cmd.Timeout = b.conn.settings.CommandTimeout
	_, err = b.send(ctx, cmd)
	return err
}

// Scroll scrolls the page by dx, dy pixels.
func (b *Browser) Scroll(ctx context.Context, dx, dy int) error {
	cmd, err := wire.NewCommand(wire.ActionScroll)
	if err != nil {
		return err
	}
	cmd.DeltaX = wire.Int(dx)
	cmd.DeltaY = wire.Int(dy)
	cmd.Timeout = b.conn.settings.CommandTimeout
	_, err = b.send(ctx, cmd)
	return err
}

// ResizeViewport sets the remote viewport. Non-positive dimensions fall
// back to the settings defaults.
func (b *Browser) ResizeViewport(ctx context.Context, width, height int) error {
	if width <= 0 {
		width = b.conn.settings.ViewportWidth
	}
	if height <= 0 {
		height = b.conn.settings.ViewportHeight
	}
	cmd, err := wire.NewCommand(wire.ActionResizeViewport)
	if err != nil {
		return err
	}
	cmd.Width = wire.Int(width)
	cmd.Height = wire.Int(height)
	cmd.Timeout = b.conn.settings.CommandTimeout
	_, err = b.send(ctx, cmd)
	return err
}

// CaptureScreenshot captures the current page and returns the image
// bytes. A reply that reports failure or carries no image data at all is
// a *ScreenshotFailedError. When the reply references a remote URL
// instead of embedding bytes, the image is downloaded; a failed download
// is not an error, the image is simply absent and both return values are
// nil.
func (b *Browser) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	cmd, err := wire.NewCommand(wire.ActionCaptureScreenshot)
	if err != nil {
		return nil, err
	}
	cmd.Timeout = b.conn.settings.CommandTimeout

	res, err := b.conn.Send(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, &ScreenshotFailedError{Reason: res.Error}
	}
	if len(res.Image) > 0 {
		return res.Image, nil
	}
	if res.ImageURL != "" {
		return b.fetchImage(ctx, res.ImageURL)
	}
	return nil, &ScreenshotFailedError{Reason: "reply carried no image data"}
}

// send issues cmd and folds a failed reply into an error carrying the
// server's message.
func (b *Browser) send(ctx context.Context, cmd *wire.Command) (*wire.Result, error) {
	res, err := b.conn.Send(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		if res.Error != "" {
			return nil, fmt.Errorf("%s failed: %s", cmd.Action, res.Error)
		}
		return nil, fmt.Errorf("%s failed", cmd.Action)
	}
	return res, nil
}

// fetchImage follows a remote capture reference. Transient download
// failures leave the image absent rather than failing the capture; the
// caller detects the missing payload.
func (b *Browser) fetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		b.logger.Warn("invalid image URL in reply", zap.String("url", imageURL), zap.Error(err))
		return nil, nil
	}
	resp, err := b.httpc.Do(req)
	if err != nil {
		b.logger.Warn("image download failed", zap.String("url", imageURL), zap.Error(err))
		return nil, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b.logger.Warn("image download failed",
			zap.String("url", imageURL),
			zap.String("status", resp.Status))
		return nil, nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		b.logger.Warn("image download interrupted", zap.String("url", imageURL), zap.Error(err))
		return nil, nil
	}
	b.logger.Debug("image downloaded", zap.String("url", imageURL), zap.Int("bytes", len(data)))
	return data, nil
}
