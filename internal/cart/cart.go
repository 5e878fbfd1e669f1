package cart

import (
	"bytes"
	"crypto/rc4"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// Version is the only container version this package writes or reads.
	Version int16 = 1

	// KeySize is the RC4 key length stored in the mandatory header.
	KeySize = 16

	headerMagic  = "CART"
	trailerMagic = "TRAC"
	headerSize   = 4 + 2 + 8 + KeySize + 8
	trailerSize  = 4 + 8 + 8 + 8
)

// DefaultKey is the published default RC4 key: the first eight digits of pi,
// repeated.
var DefaultKey = []byte{3, 1, 4, 1, 5, 9, 2, 6, 3, 1, 4, 1, 5, 9, 2, 6}

var (
	// ErrFormat reports input that is not a well-formed container.
	ErrFormat = errors.New("cart: invalid container")
	// ErrKeyRequired reports a container packed with an override key when none was supplied.
	ErrKeyRequired = errors.New("cart: container requires an override key")
	// ErrIntegrity reports a payload that does not match the digests in its footer.
	ErrIntegrity = errors.New("cart: payload integrity check failed")
)

// Footer is the optional footer written after the payload.
type Footer struct {
	MD5    string `json:"md5"`
	SHA1   string `json:"sha1"`
	SHA256 string `json:"sha256"`
	Length string `json:"length"`
}

// Metadata describes a container without its payload.
type Metadata struct {
	Version int16           `json:"version"`
	KeyKind string          `json:"key"`
	Header  json.RawMessage `json:"header,omitempty"`
	Footer  Footer          `json:"footer"`
}

// DecodeHeader unmarshals the optional header into v.
func (m Metadata) DecodeHeader(v any) error {
	if len(m.Header) == 0 {
		return fmt.Errorf("%w: container has no optional header", ErrFormat)
	}
	return json.Unmarshal(m.Header, v)
}

type options struct {
	key []byte
}

// Option customizes packing and unpacking.
type Option func(*options)

// WithKey overrides the RC4 key. An empty key keeps the default.
func WithKey(key []byte) Option {
	return func(o *options) {
		if len(key) > 0 {
			o.key = append([]byte(nil), key...)
		}
	}
}

func buildOptions(opts []Option) (options, error) {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.key != nil && len(o.key) != KeySize {
		return o, fmt.Errorf("cart: key must be %d bytes, got %d", KeySize, len(o.key))
	}
	return o, nil
}

func newCipher(key []byte) *rc4.Cipher {
	c, err := rc4.NewCipher(key)
	if err != nil {
		// Key length is checked before any cipher is created.
		panic(err)
	}
	return c
}

// crypt applies a fresh RC4 stream to data.
func crypt(key, data []byte) []byte {
	out := make([]byte, len(data))
	newCipher(key).XORKeyStream(out, data)
	return out
}

func isZeroKey(key []byte) bool {
	return bytes.Equal(key, make([]byte, KeySize))
}
