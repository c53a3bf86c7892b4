package image

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"ingredient-detector/internal/pkg/common"
)

func encodeTestImage(t *testing.T, format string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, G: 30, B: 30, A: 255})

	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg":
		err = jpeg.Encode(&buf, img, nil)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	default:
		t.Fatalf("unknown format %s", format)
	}
	if err != nil {
		t.Fatalf("encode %s: %v", format, err)
	}
	return buf.Bytes()
}

func TestMimeType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{name: "png", data: encodeTestImage(t, "png"), want: "image/png"},
		{name: "jpeg", data: encodeTestImage(t, "jpeg"), want: "image/jpeg"},
		{name: "gif", data: encodeTestImage(t, "gif"), want: "image/gif"},
		{name: "unknown bytes default to jpeg", data: []byte("definitely not an image"), want: DefaultMimeType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MimeType(tt.data); got != tt.want {
				t.Errorf("MimeType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProcessorValidate(t *testing.T) {
	pngData := encodeTestImage(t, "png")

	tests := []struct {
		name    string
		maxSize int64
		data    []byte
		wantErr error
	}{
		{name: "valid", maxSize: 1 << 20, data: pngData},
		{name: "unlimited", maxSize: 0, data: pngData},
		{name: "empty", maxSize: 1 << 20, data: nil, wantErr: common.ErrInput},
		{name: "too large", maxSize: 8, data: pngData, wantErr: common.ErrInvalidImageSize},
		{name: "not an image", maxSize: 1 << 20, data: []byte("hello"), wantErr: common.ErrInvalidImageType},
		{name: "heic container", maxSize: 1 << 20, data: append([]byte("\x00\x00\x00\x18ftypheic\x00\x00\x00\x00mif1heic"), make([]byte, 16)...), wantErr: common.ErrInvalidImageType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewProcessor(tt.maxSize).Validate(tt.data)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
			if common.ErrorCode(err) != common.ErrCodeInput {
				t.Errorf("ErrorCode = %s, want %s", common.ErrorCode(err), common.ErrCodeInput)
			}
		})
	}
}

func TestDataURI(t *testing.T) {
	uri := DataURI(encodeTestImage(t, "png"))
	if !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Errorf("DataURI() = %q", uri[:30])
	}
}

func TestIsImageContentType(t *testing.T) {
	if !IsImageContentType("image/webp") || !IsImageContentType(" IMAGE/PNG") {
		t.Error("expected image content types to be accepted")
	}
	if IsImageContentType("application/pdf") {
		t.Error("expected non-image content type to be rejected")
	}
}
