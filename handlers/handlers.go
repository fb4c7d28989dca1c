// Package handlers registers the built-in job definitions served by the
// courier binary. They simulate slow side-effecting work so the
// pipeline can be exercised end to end without external services.
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/parcelworks/courier/job"
)

// EmailPayload is the payload for the send_email job type.
type EmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ResizePayload is the payload for the resize_image job type.
type ResizePayload struct {
	SourceURL string `json:"source_url"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// Register installs the built-in job definitions into the registry.
func Register(reg *job.Registry, logger *slog.Logger) {
	job.RegisterDefinition(reg, job.NewDefinition("send_email",
		func(ctx context.Context, p EmailPayload) error {
			return sendEmail(ctx, logger, p)
		},
	))

	job.RegisterDefinition(reg, job.NewDefinition("resize_image",
		func(ctx context.Context, p ResizePayload) error {
			return resizeImage(ctx, logger, p)
		},
		job.WithMaxRetries(5),
	))
}

func sendEmail(ctx context.Context, logger *slog.Logger, p EmailPayload) error {
	if p.To == "" {
		return fmt.Errorf("send_email: missing recipient")
	}

	// Stand-in for an SMTP round trip.
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}

	logger.Info("email sent",
		"to", p.To,
		"subject", p.Subject,
	)
	return nil
}

func resizeImage(ctx context.Context, logger *slog.Logger, p ResizePayload) error {
	if p.SourceURL == "" {
		return fmt.Errorf("resize_image: missing source_url")
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("resize_image: invalid dimensions %dx%d", p.Width, p.Height)
	}

	select {
	case <-time.After(250 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}

	logger.Info("image resized",
		"source_url", p.SourceURL,
		"width", p.Width,
		"height", p.Height,
	)
	return nil
}
