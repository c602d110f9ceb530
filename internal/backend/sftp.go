package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"net"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/ferryfs/ferry/internal/progress"
	"github.com/ferryfs/ferry/internal/resource"
)

func init() {
	Register(Driver{
		Scheme: "sftp",
		New:    NewSFTPFS,
	})
}

// SFTPFS implements the contract over an SSH connection. Resource paths are
// "host/absolute/remote/path", mirroring how object-store resources fold the
// bucket into the path.
type SFTPFS struct {
	Base
	client *sftp.Client
	sshc   *ssh.Client
	host   string
}

// NewSFTPFS dials sftp://user@host[:port]/ and returns a connected backend
// instance. Auth order: ssh-agent, then the password or key_file options.
func NewSFTPFS(rawURL string, opt Options) (FileSystem, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid sftp URL %q: %w", rawURL, err)
	}

	user := u.User.Username()
	if user == "" {
		user = opt.Config["user"]
	}
	if user == "" {
		user = os.Getenv("USER")
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "22"
	}

	var authMethods []ssh.AuthMethod
	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			authMethods = append(authMethods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		}
	}
	if pw, ok := u.User.Password(); ok {
		authMethods = append(authMethods, ssh.Password(pw))
	} else if pw := opt.Config["password"]; pw != "" {
		authMethods = append(authMethods, ssh.Password(pw))
	}
	if keyFile := opt.Config["key_file"]; keyFile != "" {
		keyData, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("reading key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(keyData)
		if err != nil {
			return nil, fmt.Errorf("parsing key file %s: %w", keyFile, err)
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}
	if len(authMethods) == 0 {
		return nil, fmt.Errorf("no usable auth method for %s@%s", user, host)
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	addr := net.JoinHostPort(host, port)
	sshc, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", addr, err)
	}
	client, err := sftp.NewClient(sshc)
	if err != nil {
		sshc.Close()
		return nil, fmt.Errorf("sftp session: %w", err)
	}

	f := &SFTPFS{
		Base:   NewBase("sftp", opt),
		client: client,
		sshc:   sshc,
		host:   host,
	}
	f.Bind(f)
	return f, nil
}

// Close tears down the SFTP session and SSH connection.
func (f *SFTPFS) Close() error {
	f.client.Close()
	return f.sshc.Close()
}

func (f *SFTPFS) remotePath(res resource.Resource) string {
	_, p, _ := strings.Cut(res.Path(), "/")
	return "/" + p
}

func (f *SFTPFS) toResource(remote string) resource.Resource {
	return resource.New("sftp", f.host+remote)
}

// Checksum runs md5sum on the remote host.
func (f *SFTPFS) Checksum(_ context.Context, res resource.Resource) (string, error) {
	out, err := f.exec("md5sum " + shellQuote(f.remotePath(res)))
	if err != nil {
		return "", err
	}
	fields := strings.Fields(string(out))
	if len(fields) == 0 {
		return "", fmt.Errorf("unexpected md5sum output for %s", res)
	}
	return fields[0], nil
}

// Exists implements FileSystem.
func (f *SFTPFS) Exists(_ context.Context, res resource.Resource) (bool, error) {
	_, err := f.client.Lstat(f.remotePath(res))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// IsDir implements FileSystem.
func (f *SFTPFS) IsDir(_ context.Context, res resource.Resource) (bool, error) {
	info, err := f.client.Stat(f.remotePath(res))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

// IsFile implements FileSystem.
func (f *SFTPFS) IsFile(_ context.Context, res resource.Resource) (bool, error) {
	info, err := f.client.Stat(f.remotePath(res))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// IsExec implements FileSystem.
func (f *SFTPFS) IsExec(_ context.Context, res resource.Resource) (bool, error) {
	info, err := f.client.Stat(f.remotePath(res))
	if err != nil {
		return false, err
	}
	return info.Mode()&0o111 != 0, nil
}

// IsEmpty implements FileSystem.
func (f *SFTPFS) IsEmpty(_ context.Context, res resource.Resource) (bool, error) {
	p := f.remotePath(res)
	info, err := f.client.Stat(p)
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		entries, err := f.client.ReadDir(p)
		if err != nil {
			return false, err
		}
		return len(entries) == 0, nil
	}
	return info.Size() == 0, nil
}

// Info implements FileSystem.
func (f *SFTPFS) Info(_ context.Context, res resource.Resource) (*Info, error) {
	info, err := f.client.Stat(f.remotePath(res))
	if err != nil {
		return nil, err
	}
	return &Info{
		Size:  info.Size(),
		Mtime: info.ModTime(),
		Mode:  info.Mode(),
		IsDir: info.IsDir(),
	}, nil
}

// WalkFiles yields every file under root using the SFTP walker.
func (f *SFTPFS) WalkFiles(ctx context.Context, root resource.Resource) iter.Seq2[resource.Resource, error] {
	rootPath := f.remotePath(root)
	return func(yield func(resource.Resource, error) bool) {
		walker := f.client.Walk(rootPath)
		for walker.Step() {
			if ctx.Err() != nil {
				yield(resource.Resource{}, ctx.Err())
				return
			}
			if err := walker.Err(); err != nil {
				if !yield(resource.Resource{}, err) {
					return
				}
				continue
			}
			if walker.Stat().IsDir() {
				continue
			}
			if !yield(f.toResource(walker.Path()), nil) {
				return
			}
		}
	}
}

// Ls lists the immediate children of a remote directory.
func (f *SFTPFS) Ls(_ context.Context, res resource.Resource, detail bool) ([]Entry, error) {
	infos, err := f.client.ReadDir(f.remotePath(res))
	if err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })

	out := make([]Entry, 0, len(infos))
	for _, info := range infos {
		entry := Entry{Resource: res.Join(info.Name())}
		if detail {
			entry.Info = &Info{
				Size:  info.Size(),
				Mtime: info.ModTime(),
				Mode:  info.Mode(),
				IsDir: info.IsDir(),
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// Find lists every file under res, optionally restricted to relative paths
// beginning with prefix.
func (f *SFTPFS) Find(ctx context.Context, res resource.Resource, detail bool, prefix string) ([]Entry, error) {
	var out []Entry
	for file, err := range f.WalkFiles(ctx, res) {
		if err != nil {
			return nil, err
		}
		if prefix != "" {
			rel, err := file.RelativeTo(res)
			if err != nil || !strings.HasPrefix(rel, prefix) {
				continue
			}
		}
		entry := Entry{Resource: file}
		if detail {
			info, err := f.Info(ctx, file)
			if err != nil {
				return nil, err
			}
			entry.Info = info
		}
		out = append(out, entry)
	}
	return out, nil
}

// Open implements FileSystem.
func (f *SFTPFS) Open(_ context.Context, res resource.Resource) (io.ReadCloser, error) {
	return f.client.Open(f.remotePath(res))
}

// Remove deletes a remote file or directory tree.
func (f *SFTPFS) Remove(_ context.Context, res resource.Resource) error {
	p := f.remotePath(res)
	info, err := f.client.Stat(p)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return f.client.RemoveAll(p)
	}
	return f.client.Remove(p)
}

// MakeDirs implements FileSystem.
func (f *SFTPFS) MakeDirs(_ context.Context, res resource.Resource) error {
	return f.client.MkdirAll(f.remotePath(res))
}

// Copy duplicates a remote file by running cp on the remote host, so the
// content never crosses the wire.
func (f *SFTPFS) Copy(_ context.Context, from, to resource.Resource) error {
	_, err := f.exec(fmt.Sprintf("cp %s %s",
		shellQuote(f.remotePath(from)), shellQuote(f.remotePath(to))))
	return err
}

// Move overrides the copy-then-remove fallback with a native rename.
func (f *SFTPFS) Move(_ context.Context, from, to resource.Resource) error {
	return f.client.Rename(f.remotePath(from), f.remotePath(to))
}

// Symlink implements FileSystem.
func (f *SFTPFS) Symlink(_ context.Context, from, to resource.Resource) error {
	return f.client.Symlink(f.remotePath(from), f.remotePath(to))
}

// Hardlink implements FileSystem.
func (f *SFTPFS) Hardlink(_ context.Context, from, to resource.Resource) error {
	return f.client.Link(f.remotePath(from), f.remotePath(to))
}

// GetFile downloads one remote file into a local path.
func (f *SFTPFS) GetFile(_ context.Context, from resource.Resource, localDst string, cb progress.Callback) error {
	src, err := f.client.Open(f.remotePath(from))
	if err != nil {
		return fmt.Errorf("sftp open %s: %w", from, err)
	}
	defer src.Close()

	if info, err := src.Stat(); err == nil {
		cb.SetSize(info.Size())
	}
	return writeFileFrom(progress.NewCallbackReader(src, cb), localDst)
}

// PutFile uploads one local file to a remote path.
func (f *SFTPFS) PutFile(_ context.Context, localSrc string, to resource.Resource, cb progress.Callback) error {
	src, err := os.Open(localSrc)
	if err != nil {
		return err
	}
	defer src.Close()

	if info, err := src.Stat(); err == nil {
		cb.SetSize(info.Size())
	}

	dst, err := f.client.Create(f.remotePath(to))
	if err != nil {
		return fmt.Errorf("sftp create %s: %w", to, err)
	}
	if _, err := io.Copy(dst, progress.NewCallbackReader(src, cb)); err != nil {
		dst.Close()
		return fmt.Errorf("uploading to %s: %w", to, err)
	}
	return dst.Close()
}

// UploadStream writes an in-memory stream to a remote path.
func (f *SFTPFS) UploadStream(_ context.Context, r io.Reader, to resource.Resource, _ int64) error {
	dst, err := f.client.Create(f.remotePath(to))
	if err != nil {
		return fmt.Errorf("sftp create %s: %w", to, err)
	}
	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		return fmt.Errorf("uploading to %s: %w", to, err)
	}
	return dst.Close()
}

// exec runs a command on the remote host over a fresh SSH session.
func (f *SFTPFS) exec(cmdLine string) ([]byte, error) {
	sess, err := f.sshc.NewSession()
	if err != nil {
		return nil, fmt.Errorf("ssh session: %w", err)
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	if err := sess.Run(cmdLine); err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return nil, &CmdError{
				Scheme:   f.Scheme(),
				Cmd:      cmdLine,
				ExitCode: exitErr.ExitStatus(),
				Stderr:   stderr.String(),
			}
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n\"'\\$`!#&|;(){}[]<>?*~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}
