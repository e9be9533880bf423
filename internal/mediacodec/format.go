package mediacodec

import "bytes"

// Format identifies the sniffed file format of a decrypted media payload.
type Format string

const (
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatGIF     Format = "gif"
	FormatWEBP    Format = "webp"
	FormatTIFF    Format = "tiff"
	FormatOGG     Format = "ogg"
	FormatMP3     Format = "mp3"
	FormatWAV     Format = "wav"
	FormatUnknown Format = "unknown"
)

// MIME returns the MIME type for the format, or application/octet-stream
// when the format is unknown.
func (f Format) MIME() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatGIF:
		return "image/gif"
	case FormatWEBP:
		return "image/webp"
	case FormatTIFF:
		return "image/tiff"
	case FormatOGG:
		return "audio/ogg"
	case FormatMP3:
		return "audio/mpeg"
	case FormatWAV:
		return "audio/wav"
	}
	return "application/octet-stream"
}

// IsImage reports whether the format is one of the recognized image formats.
func (f Format) IsImage() bool {
	switch f {
	case FormatJPEG, FormatPNG, FormatGIF, FormatWEBP, FormatTIFF:
		return true
	}
	return false
}

// IsAudio reports whether the format is one of the recognized audio formats.
func (f Format) IsAudio() bool {
	switch f {
	case FormatOGG, FormatMP3, FormatWAV:
		return true
	}
	return false
}

type signature struct {
	format Format
	prefix []byte
	// tag is an additional marker that must appear at tagOffset, used by
	// RIFF containers to tell WEBP and WAV apart.
	tag       []byte
	tagOffset int
}

// Signatures are checked in order; the first match wins.
var signatures = []signature{
	{format: FormatJPEG, prefix: []byte{0xFF, 0xD8, 0xFF}},
	{format: FormatPNG, prefix: []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	{format: FormatGIF, prefix: []byte{0x47, 0x49, 0x46}},
	{format: FormatWEBP, prefix: []byte{0x52, 0x49, 0x46, 0x46}, tag: []byte("WEBP"), tagOffset: 8},
	{format: FormatWAV, prefix: []byte{0x52, 0x49, 0x46, 0x46}, tag: []byte("WAVE"), tagOffset: 8},
	{format: FormatTIFF, prefix: []byte{0x49, 0x49, 0x2A, 0x00}},
	{format: FormatTIFF, prefix: []byte{0x4D, 0x4D, 0x00, 0x2A}},
	{format: FormatOGG, prefix: []byte("OggS")},
	{format: FormatMP3, prefix: []byte("ID3")},
	{format: FormatMP3, prefix: []byte{0xFF, 0xFB}},
	{format: FormatMP3, prefix: []byte{0xFF, 0xF3}},
	{format: FormatMP3, prefix: []byte{0xFF, 0xF2}},
}

// DetectFormat sniffs the format of data by its magic-number prefix.
// Unrecognized data yields FormatUnknown, never an error; disposition is the
// caller's decision.
func DetectFormat(data []byte) Format {
	for _, sig := range signatures {
		if !bytes.HasPrefix(data, sig.prefix) {
			continue
		}
		if sig.tag != nil {
			end := sig.tagOffset + len(sig.tag)
			if len(data) < end || !bytes.Equal(data[sig.tagOffset:end], sig.tag) {
				continue
			}
		}
		return sig.format
	}
	return FormatUnknown
}
