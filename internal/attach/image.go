// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package attach

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"os"

	"github.com/jeranaias/glmchat/internal/i18n"
)

// MaxImageBytes is the largest image accepted as an attachment.
const MaxImageBytes = 20 * 1024 * 1024

// LoadImage reads an image file for attaching.
func LoadImage(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("image exceeds %d MB", MaxImageBytes/(1024*1024))
	}
	return data, nil
}

// ImageSize decodes the dimensions of an encoded image.
func ImageSize(data []byte) (width, height int, ok bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}

// DescribeImage returns a one-sentence description of an attached image.
func DescribeImage(data []byte, loc *i18n.Localizer) string {
	w, h, ok := ImageSize(data)
	if !ok {
		return loc.T(i18n.ImageUnparseable)
	}
	return loc.T(i18n.ImageDimensions, fmt.Sprintf("%dx%d", w, h))
}
