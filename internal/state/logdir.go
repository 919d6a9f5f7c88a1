package state

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio"
	"github.com/klauspost/pgzip"

	"github.com/kdebuilder/kdebuilder/internal/kdeerr"
)

// NewRunLogDir creates a fresh timestamped directory under logDir and
// atomically re-points the "latest" symlink at it. stamp is
// caller-supplied (e.g. time.Now().Format(...)) since this package
// must not call the clock itself.
func NewRunLogDir(logDir, stamp string) (string, error) {
	dir := filepath.Join(logDir, stamp)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", kdeerr.Wrap(err, "creating log directory "+dir)
	}
	link := filepath.Join(logDir, "latest")
	if err := renameio.Symlink(stamp, link); err != nil {
		return "", kdeerr.Wrap(err, "updating latest symlink")
	}
	return dir, nil
}

// CompressLog gzips src in place (via pgzip's parallel deflate) and
// removes the uncompressed original, for finished per-module build
// logs once a run completes.
func CompressLog(src string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", kdeerr.Wrap(err, "opening log "+src)
	}
	defer in.Close()

	dst := src + ".gz"
	out, err := os.Create(dst)
	if err != nil {
		return "", kdeerr.Wrap(err, "creating compressed log "+dst)
	}
	defer out.Close()

	gz := pgzip.NewWriter(out)
	buf := bufio.NewReader(in)
	if _, err := io.Copy(gz, buf); err != nil {
		gz.Close()
		return "", kdeerr.Wrap(err, "compressing log "+src)
	}
	if err := gz.Close(); err != nil {
		return "", kdeerr.Wrap(err, "finalizing compressed log "+dst)
	}
	if err := os.Remove(src); err != nil {
		return "", kdeerr.Wrap(err, "removing uncompressed log "+src)
	}
	return dst, nil
}
