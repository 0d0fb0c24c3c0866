// Package createdat provides best-effort attribution of an uploaded image's capture timestamp.
//
// The timestamp attribution follows a priority order: embedded EXIF metadata first, then two
// filename patterns. EXIF is read from JPEG APP1 segments, bare TIFF blocks, PNG eXIf
// chunks and WebP EXIF chunks. An image with no discoverable date is a normal outcome, not an error.
package createdat
