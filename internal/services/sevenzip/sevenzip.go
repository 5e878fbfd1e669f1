package sevenzip

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/bodgit/sevenzip"

	"vxextract/internal/services"
)

// ErrPassword reports that the archive could not be decrypted with the
// configured password.
var ErrPassword = errors.New("archive password rejected")

// Member is one entry of an opened archive.
type Member struct {
	Name     string
	Modified time.Time
	Size     uint64
	IsDir    bool
	open     func() (io.ReadCloser, error)
}

// NewMember builds a member backed by open, for archives that do not come
// from disk.
func NewMember(name string, modified time.Time, size uint64, open func() (io.ReadCloser, error)) Member {
	return Member{Name: name, Modified: modified, Size: size, open: open}
}

// Open returns a reader over the decrypted member content.
func (m Member) Open() (io.ReadCloser, error) {
	if m.open == nil {
		return nil, errors.New("member has no content")
	}
	rc, err := m.open()
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "7z", "open member", m.Name, err)
	}
	return rc, nil
}

// Archive is an opened archive.
type Archive interface {
	Members() []Member
	Close() error
}

// Opener opens archives with a password.
type Opener interface {
	Open(path, password string) (Archive, error)
}

// Client opens archives from disk.
type Client struct{}

// New constructs a disk-backed opener.
func New() Client {
	return Client{}
}

// Open decrypts the archive headers at path using password.
func (Client) Open(path, password string) (Archive, error) {
	rc, err := sevenzip.OpenReaderWithPassword(path, password)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "7z", "open archive", path, err)
		}
		var readErr *sevenzip.ReadError
		if errors.As(err, &readErr) && readErr.Encrypted {
			return nil, services.Wrap(services.ErrConfiguration, "7z", "decrypt archive", path, fmt.Errorf("%w: %w", ErrPassword, err))
		}
		return nil, services.Wrap(services.ErrExternalTool, "7z", "open archive", path, err)
	}
	return &diskArchive{rc: rc}, nil
}

type diskArchive struct {
	rc *sevenzip.ReadCloser
}

func (a *diskArchive) Members() []Member {
	members := make([]Member, 0, len(a.rc.File))
	for _, f := range a.rc.File {
		members = append(members, Member{
			Name:     f.Name,
			Modified: f.Modified,
			Size:     f.UncompressedSize,
			IsDir:    f.FileInfo().IsDir(),
			open:     f.Open,
		})
	}
	return members
}

func (a *diskArchive) Close() error {
	return a.rc.Close()
}
