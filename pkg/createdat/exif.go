package createdat

import (
	"bytes"
	"encoding/binary"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// exifLayout is the EXIF DateTime format: "YYYY:MM:DD HH:MM:SS".
const exifLayout = "2006:01:02 15:04:05"

// exifTags are checked in order; the first tag with a parseable value wins.
var exifTags = []exif.FieldName{
	exif.DateTimeOriginal,
	exif.DateTimeDigitized,
	exif.DateTime,
}

type exifExtractor struct{}

func (e exifExtractor) CreatedAt(data []byte) (time.Time, bool, error) {
	if len(data) == 0 {
		return time.Time{}, false, nil
	}

	payload, ok := exifPayload(data)
	if !ok || len(payload) == 0 {
		return time.Time{}, false, nil
	}

	// Decode may hand back a partially populated *Exif together with a
	// non-critical error, so only a nil result is treated as "no metadata".
	x, _ := exif.Decode(bytes.NewReader(payload))
	if x == nil {
		return time.Time{}, false, nil
	}

	for _, tag := range exifTags {
		if tm, ok := exifTimeFromTag(x, tag); ok {
			return tm, true, nil
		}
	}

	return time.Time{}, false, nil
}

func exifTimeFromTag(x *exif.Exif, tag exif.FieldName) (time.Time, bool) {
	f, err := x.Get(tag)
	if err != nil {
		return time.Time{}, false
	}

	s, err := f.StringVal()
	if err != nil {
		return time.Time{}, false
	}
	s = strings.TrimRight(s, "\x00")

	// No timezone in EXIF; the value is kept as naive wall-clock time.
	tm, err := time.ParseInLocation(exifLayout, s, time.UTC)
	if err != nil || tm.Year() < 1 {
		return time.Time{}, false
	}

	return tm, true
}

var (
	pngSignature = []byte("\x89PNG\r\n\x1a\n")
	exifHeader   = []byte("Exif\x00\x00")
)

// exifPayload returns what the EXIF decoder should read: the eXIf chunk of a PNG, the
// EXIF chunk of a WebP, or data itself for JPEG and TIFF. ok is false when a PNG or
// WebP carries no EXIF chunk.
func exifPayload(data []byte) ([]byte, bool) {
	switch {
	case bytes.HasPrefix(data, pngSignature):
		return pngChunk(data[len(pngSignature):], "eXIf")
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return riffChunk(data[12:], "EXIF")
	default:
		return data, true
	}
}

// pngChunk walks length-type-data-crc chunks up to IEND.
func pngChunk(b []byte, want string) ([]byte, bool) {
	for len(b) >= 8 {
		size := uint64(binary.BigEndian.Uint32(b[:4]))
		typ := string(b[4:8])
		b = b[8:]
		if size+4 > uint64(len(b)) {
			return nil, false
		}
		if typ == want {
			return bytes.TrimPrefix(b[:size], exifHeader), true
		}
		if typ == "IEND" {
			return nil, false
		}
		b = b[size+4:]
	}
	return nil, false
}

// riffChunk walks little-endian RIFF chunks; odd-sized chunks carry one pad byte.
func riffChunk(b []byte, want string) ([]byte, bool) {
	for len(b) >= 8 {
		typ := string(b[:4])
		size := uint64(binary.LittleEndian.Uint32(b[4:8]))
		b = b[8:]
		if size > uint64(len(b)) {
			return nil, false
		}
		if typ == want {
			return bytes.TrimPrefix(b[:size], exifHeader), true
		}
		size += size & 1
		if size > uint64(len(b)) {
			return nil, false
		}
		b = b[size:]
	}
	return nil, false
}
