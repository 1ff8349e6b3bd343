package api

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Client-side validation errors. These fire before any network call; the
// service still enforces its own rules.
var (
	ErrUnsupportedAudioType = errors.New("unsupported audio file type")
	ErrUnsupportedImageType = errors.New("unsupported image file type")
)

var allowedAudioExts = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".webm": true,
	".ogg":  true,
	".m4a":  true,
}

var allowedAudioMIMEs = map[string]bool{
	"audio/wav":    true,
	"audio/x-wav":  true,
	"audio/wave":   true,
	"audio/mpeg":   true,
	"audio/mp3":    true,
	"audio/webm":   true,
	"audio/ogg":    true,
	"audio/mp4":    true,
	"audio/x-m4a":  true,
	"video/webm":   true, // browser recorders label audio-only captures this way
}

var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
}

var allowedImageMIMEs = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
}

// ValidateAudio accepts a file when either its MIME type or its filename
// extension matches the supported audio formats.
func ValidateAudio(filename, mimeType string) error {
	if matches(filename, mimeType, allowedAudioExts, allowedAudioMIMEs) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedAudioType, describeFile(filename, mimeType))
}

// ValidateImage accepts a file when either its MIME type or its filename
// extension matches the supported image formats.
func ValidateImage(filename, mimeType string) error {
	if matches(filename, mimeType, allowedImageExts, allowedImageMIMEs) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedImageType, describeFile(filename, mimeType))
}

func matches(filename, mimeType string, exts, mimes map[string]bool) bool {
	if mimeType != "" {
		// Strip parameters like "; codecs=opus".
		if i := strings.IndexByte(mimeType, ';'); i >= 0 {
			mimeType = mimeType[:i]
		}
		if mimes[strings.ToLower(strings.TrimSpace(mimeType))] {
			return true
		}
	}
	ext := strings.ToLower(filepath.Ext(filename))
	return ext != "" && exts[ext]
}

func describeFile(filename, mimeType string) string {
	switch {
	case filename != "" && mimeType != "":
		return fmt.Sprintf("%s (%s)", filename, mimeType)
	case filename != "":
		return filename
	case mimeType != "":
		return mimeType
	}
	return "unnamed file"
}
