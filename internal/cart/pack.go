package cart

import (
	"crypto/cipher"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/klauspost/compress/zlib"
)

// Pack reads data from r and writes a container to w. header is marshalled to
// JSON as the optional header; a nil header writes none. Output is a pure
// function of the data, the header, and the key.
func Pack(r io.Reader, w io.Writer, header any, opts ...Option) (Footer, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return Footer{}, err
	}
	key := DefaultKey
	headerKey := DefaultKey
	if o.key != nil {
		key = o.key
		headerKey = make([]byte, KeySize)
	}

	var optHeader []byte
	if header != nil {
		raw, err := json.Marshal(header)
		if err != nil {
			return Footer{}, fmt.Errorf("cart: encode header: %w", err)
		}
		optHeader = crypt(key, raw)
	}

	cw := &countingWriter{w: w}

	mandatory := make([]byte, 0, headerSize)
	mandatory = append(mandatory, headerMagic...)
	mandatory = binary.LittleEndian.AppendUint16(mandatory, uint16(Version))
	mandatory = binary.LittleEndian.AppendUint64(mandatory, 0)
	mandatory = append(mandatory, headerKey...)
	mandatory = binary.LittleEndian.AppendUint64(mandatory, uint64(len(optHeader)))
	if _, err := cw.Write(mandatory); err != nil {
		return Footer{}, fmt.Errorf("cart: write header: %w", err)
	}
	if _, err := cw.Write(optHeader); err != nil {
		return Footer{}, fmt.Errorf("cart: write optional header: %w", err)
	}

	md5h, sha1h, sha256h := md5.New(), sha1.New(), sha256.New()
	encrypted := &cipher.StreamWriter{S: newCipher(key), W: cw}
	zw, err := zlib.NewWriterLevel(encrypted, zlib.DefaultCompression)
	if err != nil {
		return Footer{}, fmt.Errorf("cart: init compressor: %w", err)
	}
	length, err := io.Copy(io.MultiWriter(zw, md5h, sha1h, sha256h), r)
	if err != nil {
		return Footer{}, fmt.Errorf("cart: write payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return Footer{}, fmt.Errorf("cart: flush payload: %w", err)
	}

	footer := Footer{
		MD5:    hex.EncodeToString(md5h.Sum(nil)),
		SHA1:   hex.EncodeToString(sha1h.Sum(nil)),
		SHA256: hex.EncodeToString(sha256h.Sum(nil)),
		Length: strconv.FormatInt(length, 10),
	}
	rawFooter, err := json.Marshal(footer)
	if err != nil {
		return Footer{}, fmt.Errorf("cart: encode footer: %w", err)
	}
	footerPos := cw.n
	optFooter := crypt(key, rawFooter)
	if _, err := cw.Write(optFooter); err != nil {
		return Footer{}, fmt.Errorf("cart: write optional footer: %w", err)
	}

	trailer := make([]byte, 0, trailerSize)
	trailer = append(trailer, trailerMagic...)
	trailer = binary.LittleEndian.AppendUint64(trailer, 0)
	trailer = binary.LittleEndian.AppendUint64(trailer, uint64(footerPos))
	trailer = binary.LittleEndian.AppendUint64(trailer, uint64(len(optFooter)))
	if _, err := cw.Write(trailer); err != nil {
		return Footer{}, fmt.Errorf("cart: write trailer: %w", err)
	}
	return footer, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
