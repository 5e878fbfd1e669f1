package cart

import (
	"bytes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/klauspost/compress/zlib"
)

type layout struct {
	meta         Metadata
	key          []byte
	payloadStart int64
	payloadEnd   int64
}

// ReadMetadata returns the header and footer of the container in r without
// decompressing the payload.
func ReadMetadata(r io.ReaderAt, size int64, opts ...Option) (Metadata, error) {
	l, err := readLayout(r, size, opts)
	if err != nil {
		return Metadata{}, err
	}
	return l.meta, nil
}

// Unpack writes the payload of the container in r to w and returns its
// metadata. The payload is checked against the footer's length and SHA-256.
func Unpack(r io.ReaderAt, size int64, w io.Writer, opts ...Option) (Metadata, error) {
	l, err := readLayout(r, size, opts)
	if err != nil {
		return Metadata{}, err
	}

	section := io.NewSectionReader(r, l.payloadStart, l.payloadEnd-l.payloadStart)
	decrypted := &cipher.StreamReader{S: newCipher(l.key), R: section}
	zr, err := zlib.NewReader(decrypted)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: payload: %w", ErrFormat, err)
	}
	defer zr.Close()

	hasher := sha256.New()
	n, err := io.Copy(io.MultiWriter(w, hasher), zr)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: payload: %w", ErrFormat, err)
	}

	if want := l.meta.Footer.Length; want != "" && want != strconv.FormatInt(n, 10) {
		return Metadata{}, fmt.Errorf("%w: length %d, footer says %s", ErrIntegrity, n, want)
	}
	if want := l.meta.Footer.SHA256; want != "" && want != hex.EncodeToString(hasher.Sum(nil)) {
		return Metadata{}, fmt.Errorf("%w: sha256 mismatch", ErrIntegrity)
	}
	return l.meta, nil
}

// ReadFileMetadata opens path and returns its container metadata.
func ReadFileMetadata(path string, opts ...Option) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return Metadata{}, err
	}
	return ReadMetadata(f, info.Size(), opts...)
}

// IsContainer reports whether r starts with the container magic.
func IsContainer(r io.ReaderAt) bool {
	buf := make([]byte, len(headerMagic))
	if _, err := r.ReadAt(buf, 0); err != nil {
		return false
	}
	return string(buf) == headerMagic
}

func readLayout(r io.ReaderAt, size int64, opts []Option) (layout, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return layout{}, err
	}
	if size < headerSize+trailerSize {
		return layout{}, fmt.Errorf("%w: %d bytes is too short", ErrFormat, size)
	}

	head := make([]byte, headerSize)
	if _, err := r.ReadAt(head, 0); err != nil {
		return layout{}, fmt.Errorf("%w: read header: %w", ErrFormat, err)
	}
	if string(head[:4]) != headerMagic {
		return layout{}, fmt.Errorf("%w: bad header magic", ErrFormat)
	}
	version := int16(binary.LittleEndian.Uint16(head[4:6]))
	if version != Version {
		return layout{}, fmt.Errorf("%w: unsupported version %d", ErrFormat, version)
	}
	headerKey := head[14 : 14+KeySize]
	body := uint64(size - headerSize - trailerSize)
	rawHeaderLen := binary.LittleEndian.Uint64(head[14+KeySize:])
	if rawHeaderLen > body {
		return layout{}, fmt.Errorf("%w: optional header length %d exceeds container", ErrFormat, rawHeaderLen)
	}
	headerLen := int64(rawHeaderLen)

	l := layout{meta: Metadata{Version: version}}
	switch {
	case o.key != nil:
		l.key = o.key
		l.meta.KeyKind = "override"
	case isZeroKey(headerKey):
		return layout{}, ErrKeyRequired
	default:
		l.key = append([]byte(nil), headerKey...)
		l.meta.KeyKind = "embedded"
		if bytes.Equal(l.key, DefaultKey) {
			l.meta.KeyKind = "default"
		}
	}

	tail := make([]byte, trailerSize)
	if _, err := r.ReadAt(tail, size-trailerSize); err != nil {
		return layout{}, fmt.Errorf("%w: read trailer: %w", ErrFormat, err)
	}
	if string(tail[:4]) != trailerMagic {
		return layout{}, fmt.Errorf("%w: bad trailer magic", ErrFormat)
	}
	rawFooterPos := binary.LittleEndian.Uint64(tail[12:20])
	rawFooterLen := binary.LittleEndian.Uint64(tail[20:28])
	payloadStart := uint64(headerSize) + rawHeaderLen
	trailerPos := uint64(size - trailerSize)
	if rawFooterLen > body || (rawFooterLen > 0 && (rawFooterPos < payloadStart || rawFooterPos > trailerPos-rawFooterLen)) {
		return layout{}, fmt.Errorf("%w: segment offsets out of range", ErrFormat)
	}
	footerPos := int64(rawFooterPos)
	footerLen := int64(rawFooterLen)

	l.payloadStart = int64(payloadStart)
	l.payloadEnd = size - trailerSize
	if footerLen > 0 {
		l.payloadEnd = footerPos
	}

	if headerLen > 0 {
		raw := make([]byte, headerLen)
		if _, err := r.ReadAt(raw, headerSize); err != nil {
			return layout{}, fmt.Errorf("%w: read optional header: %w", ErrFormat, err)
		}
		plain := crypt(l.key, raw)
		if !json.Valid(plain) {
			return layout{}, fmt.Errorf("%w: optional header is not JSON (wrong key?)", ErrFormat)
		}
		l.meta.Header = plain
	}
	if footerLen > 0 {
		raw := make([]byte, footerLen)
		if _, err := r.ReadAt(raw, footerPos); err != nil {
			return layout{}, fmt.Errorf("%w: read optional footer: %w", ErrFormat, err)
		}
		if err := json.Unmarshal(crypt(l.key, raw), &l.meta.Footer); err != nil {
			return layout{}, fmt.Errorf("%w: optional footer (wrong key?): %w", ErrFormat, err)
		}
	}
	return l, nil
}
