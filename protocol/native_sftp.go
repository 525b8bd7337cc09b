package protocol

import (
	"bytes"
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Lvzhenqian/sshsftp/errors"
	"github.com/kr/fs"
	"github.com/pkg/sftp"
)

func (n *Native) OpenSftp() error {
	cli, err := n.conn()
	if err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sftp != nil {
		return nil
	}
	client, err := sftp.NewClient(cli)
	if err != nil {
		return errors.Wrapf(err, "open sftp subsystem")
	}
	n.sftp = client
	return nil
}

func (n *Native) sftpClient() (*sftp.Client, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sftp == nil {
		return nil, ErrSftpClosed
	}
	return n.sftp, nil
}

func (n *Native) DisconnectSftp() error {
	n.mu.Lock()
	client := n.sftp
	n.sftp = nil
	n.mu.Unlock()
	if client == nil {
		return ErrSftpClosed
	}
	return client.Close()
}

func remoteRealpath(ph string, c *sftp.Client) string {
	if ph != "~" && !strings.HasPrefix(ph, "~/") {
		return ph
	}
	wd, err := c.Getwd()
	if err != nil {
		return ph
	}
	return path.Join(wd, strings.TrimPrefix(ph, "~"))
}

func (n *Native) ListDir(dir string) ([]string, error) {
	c, err := n.sftpClient()
	if err != nil {
		return nil, err
	}
	infos, err := c.ReadDir(remoteRealpath(dir, c))
	if err != nil {
		return nil, errors.Wrapf(err, "read dir %s", dir)
	}
	records := make([]string, 0, len(infos))
	for _, fi := range infos {
		record, err := NewRawEntry(fi).Encode()
		if err != nil {
			return nil, errors.Wrapf(err, "encode entry %s", fi.Name())
		}
		records = append(records, record)
	}
	return records, nil
}

func (n *Native) Rename(oldPath, newPath string) error {
	c, err := n.sftpClient()
	if err != nil {
		return err
	}
	return errors.Wrapf(c.Rename(remoteRealpath(oldPath, c), remoteRealpath(newPath, c)), "rename %s", oldPath)
}

func (n *Native) Mkdir(dir string) error {
	c, err := n.sftpClient()
	if err != nil {
		return err
	}
	return errors.Wrapf(c.Mkdir(remoteRealpath(dir, c)), "mkdir %s", dir)
}

func (n *Native) Remove(file string) error {
	c, err := n.sftpClient()
	if err != nil {
		return err
	}
	return errors.Wrapf(c.Remove(remoteRealpath(file, c)), "remove %s", file)
}

func (n *Native) RemoveDir(dir string) error {
	c, err := n.sftpClient()
	if err != nil {
		return err
	}
	return errors.Wrapf(c.RemoveDirectory(remoteRealpath(dir, c)), "remove dir %s", dir)
}

func (n *Native) Chmod(file string, mode os.FileMode) error {
	c, err := n.sftpClient()
	if err != nil {
		return err
	}
	return errors.Wrapf(c.Chmod(remoteRealpath(file, c), mode), "chmod %s", file)
}

func (n *Native) Upload(localPath, remoteDir string) error {
	return n.UploadNamed(localPath, remoteDir, filepath.Base(localPath))
}

func (n *Native) UploadNamed(localPath, remoteDir, name string) error {
	srcFile, err := os.Open(localRealPath(localPath))
	if err != nil {
		return errors.Wrapf(err, "open %s", localPath)
	}
	defer srcFile.Close()
	stat, err := srcFile.Stat()
	if err != nil {
		return errors.Wrapf(err, "stat %s", localPath)
	}
	return n.upload(srcFile, stat.Size(), remoteDir, name)
}

func (n *Native) UploadInline(content []byte, remoteDir, name string) error {
	return n.upload(bytes.NewReader(content), int64(len(content)), remoteDir, name)
}

func (n *Native) upload(src io.Reader, size int64, remoteDir, name string) (err error) {
	c, err := n.sftpClient()
	if err != nil {
		return err
	}
	ctx, done := n.uploads.start()
	defer done()

	dst := path.Join(remoteRealpath(remoteDir, c), name)
	t := n.newTracker(ctx, EventUploadProgress, dst, size)
	defer func() { t.finish(err) }()

	dstFile, err := c.Create(dst)
	if err != nil {
		return errors.Wrapf(err, "create %s", dst)
	}
	defer closeInto(&err, dstFile, dst)

	if _, err = io.Copy(dstFile, t.reader(src)); err != nil {
		return errors.Wrapf(err, "upload %s", dst)
	}
	return nil
}

func (n *Native) Download(remotePath, localDir string) (local string, err error) {
	c, err := n.sftpClient()
	if err != nil {
		return "", err
	}
	ctx, done := n.downloads.start()
	defer done()

	src := remoteRealpath(remotePath, c)
	stat, err := c.Stat(src)
	if err != nil {
		return "", errors.Wrapf(err, "stat %s", src)
	}
	localDir = localRealPath(localDir)
	if stat.IsDir() {
		return n.downloadDir(ctx, c, src, localDir)
	}

	local = filepath.Join(localDir, path.Base(src))
	t := n.newTracker(ctx, EventDownloadProgress, src, stat.Size())
	defer func() { t.finish(err) }()
	if err = copyRemoteFile(c, t, src, local); err != nil {
		return "", err
	}
	return local, nil
}

func copyRemoteFile(c *sftp.Client, t *tracker, src, dst string) (err error) {
	srcFile, err := c.Open(src)
	if err != nil {
		return errors.Wrapf(err, "open %s", src)
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		return errors.Wrapf(err, "create %s", dst)
	}
	defer closeInto(&err, dstFile, dst)

	if _, err = io.Copy(dstFile, t.reader(srcFile)); err != nil {
		return errors.Wrapf(err, "download %s", src)
	}
	return nil
}

// downloadDir mirrors the remote tree rooted at root into localDir and
// reports progress over the total size of its files.
func (n *Native) downloadDir(ctx context.Context, c *sftp.Client, root, localDir string) (local string, err error) {
	var total int64
	sizer := c.Walk(root)
	for sizer.Step() {
		if sizer.Err() != nil {
			return "", errors.Wrapf(sizer.Err(), "walk %s", sizer.Path())
		}
		if !sizer.Stat().IsDir() {
			total += sizer.Stat().Size()
		}
	}

	t := n.newTracker(ctx, EventDownloadProgress, root, total)
	defer func() { t.finish(err) }()

	base := path.Dir(root)
	if err = mirror(c.Walk(root), c, t, base, localDir); err != nil {
		return "", err
	}
	return filepath.Join(localDir, path.Base(root)), nil
}

func mirror(w *fs.Walker, c *sftp.Client, t *tracker, base, localDir string) error {
	for w.Step() {
		if w.Err() != nil {
			return errors.Wrapf(w.Err(), "walk %s", w.Path())
		}
		if err := t.ctx.Err(); err != nil {
			return err
		}
		rel := strings.TrimPrefix(w.Path(), base)
		dst := filepath.Join(localDir, filepath.FromSlash(rel))
		if w.Stat().IsDir() {
			if err := os.MkdirAll(dst, 0755); err != nil {
				return errors.Wrapf(err, "mkdir %s", dst)
			}
			continue
		}
		if err := copyRemoteFile(c, t, w.Path(), dst); err != nil {
			return err
		}
	}
	return nil
}

func (n *Native) CancelUpload() {
	if i := n.uploads.cancelAll(); i > 0 {
		n.logger.Debugf("cancelled %d upload(s)", i)
	}
}

func (n *Native) CancelDownload() {
	if i := n.downloads.cancelAll(); i > 0 {
		n.logger.Debugf("cancelled %d download(s)", i)
	}
}

// closeInto closes c and reports its error through err unless err is set.
func closeInto(err *error, c io.Closer, name string) {
	if closeErr := c.Close(); closeErr != nil && *err == nil {
		*err = errors.Wrapf(closeErr, "close %s", name)
	}
}
