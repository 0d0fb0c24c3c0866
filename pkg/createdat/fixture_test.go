package createdat

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"testing"
)

const (
	tagDateTime          uint16 = 0x0132
	tagExifIFDPointer    uint16 = 0x8769
	tagDateTimeOriginal  uint16 = 0x9003
	tagDateTimeDigitized uint16 = 0x9004

	typeASCII uint16 = 2
	typeLong  uint16 = 4
)

type asciiTag struct {
	id    uint16
	value string
}

// buildTIFF lays out a big-endian TIFF with ASCII tags in IFD0 and, when present,
// an Exif sub-IFD referenced from IFD0.
func buildTIFF(t *testing.T, ifd0, exifIFD []asciiTag) []byte {
	t.Helper()

	n0 := len(ifd0)
	if len(exifIFD) > 0 {
		n0++
	}
	ifd0Off := uint32(8)
	exifOff := ifd0Off + uint32(2+12*n0+4)
	dataOff := exifOff
	if len(exifIFD) > 0 {
		dataOff += uint32(2 + 12*len(exifIFD) + 4)
	}

	var data bytes.Buffer
	entry := func(buf *bytes.Buffer, tag asciiTag) {
		val := append([]byte(tag.value), 0)
		_ = binary.Write(buf, binary.BigEndian, tag.id)
		_ = binary.Write(buf, binary.BigEndian, typeASCII)
		_ = binary.Write(buf, binary.BigEndian, uint32(len(val)))
		if len(val) <= 4 {
			inline := make([]byte, 4)
			copy(inline, val)
			buf.Write(inline)
			return
		}
		_ = binary.Write(buf, binary.BigEndian, dataOff+uint32(data.Len()))
		data.Write(val)
	}

	var out bytes.Buffer
	out.WriteString("MM")
	_ = binary.Write(&out, binary.BigEndian, uint16(42))
	_ = binary.Write(&out, binary.BigEndian, ifd0Off)

	_ = binary.Write(&out, binary.BigEndian, uint16(n0))
	for _, tag := range ifd0 {
		entry(&out, tag)
	}
	if len(exifIFD) > 0 {
		_ = binary.Write(&out, binary.BigEndian, tagExifIFDPointer)
		_ = binary.Write(&out, binary.BigEndian, typeLong)
		_ = binary.Write(&out, binary.BigEndian, uint32(1))
		_ = binary.Write(&out, binary.BigEndian, exifOff)
	}
	_ = binary.Write(&out, binary.BigEndian, uint32(0))

	if len(exifIFD) > 0 {
		_ = binary.Write(&out, binary.BigEndian, uint16(len(exifIFD)))
		for _, tag := range exifIFD {
			entry(&out, tag)
		}
		_ = binary.Write(&out, binary.BigEndian, uint32(0))
	}

	if uint32(out.Len()) != dataOff {
		t.Fatalf("tiff layout mismatch: header %d bytes, data offset %d", out.Len(), dataOff)
	}
	out.Write(data.Bytes())
	return out.Bytes()
}

// jpegWithEXIF wraps a TIFF block in a minimal JPEG APP1 segment.
func jpegWithEXIF(t *testing.T, ifd0, exifIFD []asciiTag) []byte {
	t.Helper()

	payload := append([]byte("Exif\x00\x00"), buildTIFF(t, ifd0, exifIFD)...)

	var out bytes.Buffer
	out.Write([]byte{0xFF, 0xD8, 0xFF, 0xE1})
	_ = binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write([]byte{0xFF, 0xD9})
	return out.Bytes()
}

// pngWithEXIF builds a PNG with an IHDR, an eXIf chunk holding the TIFF block, and IEND.
func pngWithEXIF(t *testing.T, ifd0, exifIFD []asciiTag) []byte {
	t.Helper()

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], 1)
	binary.BigEndian.PutUint32(ihdr[4:8], 1)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 2 // truecolor

	var out bytes.Buffer
	out.Write(pngSignature)
	pngWriteChunk(&out, "IHDR", ihdr)
	if ifd0 != nil || exifIFD != nil {
		pngWriteChunk(&out, "eXIf", buildTIFF(t, ifd0, exifIFD))
	}
	pngWriteChunk(&out, "IEND", nil)
	return out.Bytes()
}

func pngWriteChunk(out *bytes.Buffer, typ string, data []byte) {
	_ = binary.Write(out, binary.BigEndian, uint32(len(data)))
	out.WriteString(typ)
	out.Write(data)
	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)
	_ = binary.Write(out, binary.BigEndian, crc.Sum32())
}

// webpWithEXIF builds an extended WebP: a VP8X header chunk followed by an EXIF chunk.
// prefix is written before the TIFF block, as some encoders keep the JPEG "Exif\x00\x00" marker.
func webpWithEXIF(t *testing.T, prefix string, ifd0, exifIFD []asciiTag) []byte {
	t.Helper()

	var chunks bytes.Buffer
	vp8x := make([]byte, 10)
	vp8x[0] = 0x08 // EXIF flag
	riffWriteChunk(&chunks, "VP8X", vp8x)
	riffWriteChunk(&chunks, "EXIF", append([]byte(prefix), buildTIFF(t, ifd0, exifIFD)...))

	var out bytes.Buffer
	out.WriteString("RIFF")
	_ = binary.Write(&out, binary.LittleEndian, uint32(4+chunks.Len()))
	out.WriteString("WEBP")
	out.Write(chunks.Bytes())
	return out.Bytes()
}

func riffWriteChunk(out *bytes.Buffer, typ string, data []byte) {
	out.WriteString(typ)
	_ = binary.Write(out, binary.LittleEndian, uint32(len(data)))
	out.Write(data)
	if len(data)%2 == 1 {
		out.WriteByte(0)
	}
}
