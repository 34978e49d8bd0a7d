package archive

import (
	"bytes"
	"io"
	"os"
	"unicode/utf8"
)

// Format represents the type of a dump file
type Format string

const (
	FormatZip        Format = "zip"
	FormatCustomDump Format = "dump"
	FormatPlainSQL   Format = "sql"
	FormatUnknown    Format = "unknown"
)

var (
	zipMagic    = []byte("PK\x03\x04")
	zipEmpty    = []byte("PK\x05\x06")
	pgdumpMagic = []byte("PGDMP")
)

// DetectFormat detects the format of a dump file from its leading bytes
func DetectFormat(path string) (Format, error) {
	file, err := os.Open(path)
	if err != nil {
		return FormatUnknown, err
	}
	defer file.Close()

	return DetectReader(file)
}

// DetectReader detects the format from the first bytes of r
func DetectReader(r io.Reader) (Format, error) {
	buffer := make([]byte, 512)
	n, err := io.ReadFull(r, buffer)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FormatUnknown, err
	}
	return detect(buffer[:n]), nil
}

func detect(head []byte) Format {
	switch {
	case bytes.HasPrefix(head, zipMagic), bytes.HasPrefix(head, zipEmpty):
		return FormatZip
	case bytes.HasPrefix(head, pgdumpMagic):
		return FormatCustomDump
	case looksLikeSQL(head):
		return FormatPlainSQL
	default:
		return FormatUnknown
	}
}

// looksLikeSQL accepts printable UTF-8 text, which is what pg_dump emits in
// plain format
func looksLikeSQL(head []byte) bool {
	trimmed := bytes.TrimSpace(head)
	if len(trimmed) == 0 {
		return false
	}
	// the buffer may cut a multi-byte rune in half
	for len(trimmed) > 0 && !utf8.Valid(trimmed) {
		trimmed = trimmed[:len(trimmed)-1]
	}
	if len(trimmed) == 0 {
		return false
	}
	for _, b := range trimmed {
		if b < 0x09 || (b > 0x0d && b < 0x20) {
			return false
		}
	}
	return true
}

// String returns human-readable format name
func (f Format) String() string {
	switch f {
	case FormatZip:
		return "Zip archive (dump.sql + filestore)"
	case FormatCustomDump:
		return "PostgreSQL custom dump"
	case FormatPlainSQL:
		return "Plain SQL script"
	default:
		return "Unknown"
	}
}
