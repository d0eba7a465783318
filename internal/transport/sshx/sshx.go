// Package sshx is the SSH transport: commands run over golang.org/x/crypto/ssh
// sessions, transfers go over SFTP.
package sshx

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/spinlock99/bootleg/internal/transport"
)

// Config carries connection defaults. Per-host attributes with the same
// names (user, port, identity) take precedence.
type Config struct {
	User         string
	Port         int
	IdentityFile string
}

// Transport implements transport.Transport over SSH.
type Transport struct {
	defaults Config
}

// New creates an SSH transport with the given defaults.
func New(defaults Config) *Transport {
	if defaults.Port == 0 {
		defaults.Port = 22
	}
	return &Transport{defaults: defaults}
}

// Name returns the transport identifier.
func (t *Transport) Name() string {
	return "ssh"
}

// Open dials host and authenticates with the configured private key.
// Host keys are not verified.
func (t *Transport) Open(ctx context.Context, host string, attrs map[string]interface{}) (transport.Session, error) {
	user := stringAttr(attrs, "user", t.defaults.User)
	port := intAttr(attrs, "port", t.defaults.Port)
	identity := stringAttr(attrs, "identity", t.defaults.IdentityFile)

	key, err := os.ReadFile(identity)
	if err != nil {
		return nil, fmt.Errorf("read identity file: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parse identity file %s: %w", identity, err)
	}

	cfg := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	clientConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}

	return &session{host: host, client: ssh.NewClient(clientConn, chans, reqs)}, nil
}

type session struct {
	host   string
	client *ssh.Client
	sftp   *sftp.Client
}

// Execute runs command on the host. workingDir, when set, is entered with a
// cd prefix before the command runs.
func (s *session) Execute(ctx context.Context, command, workingDir string) (*transport.ExecResult, error) {
	sess, err := s.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("new session on %s: %w", s.host, err)
	}
	defer sess.Close()

	var stdout, stderr strings.Builder
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	full := command
	if workingDir != "" {
		full = fmt.Sprintf("cd %s && %s", shellQuote(workingDir), command)
	}

	done := make(chan error, 1)
	go func() { done <- sess.Run(full) }()

	select {
	case <-ctx.Done():
		sess.Close()
		<-done
		return nil, ctx.Err()
	case err = <-done:
	}

	exitStatus := 0
	if err != nil {
		exitErr, ok := err.(*ssh.ExitError)
		if !ok {
			return nil, fmt.Errorf("run %q on %s: %w", command, s.host, err)
		}
		exitStatus = exitErr.ExitStatus()
	}

	return &transport.ExecResult{
		Command:    command,
		ExitStatus: exitStatus,
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
	}, nil
}

// Upload copies localPath to remotePath, recursing into directories. Parent
// directories of remotePath must already exist on the host.
func (s *session) Upload(ctx context.Context, localPath, remotePath string) error {
	c, err := s.sftpClient()
	if err != nil {
		return err
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", localPath, err)
	}
	if !info.IsDir() {
		return s.uploadFile(c, localPath, remotePath, info.Mode())
	}

	return filepath.WalkDir(localPath, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(localPath, p)
		if err != nil {
			return err
		}
		target := remotePath
		if rel != "." {
			target = path.Join(remotePath, filepath.ToSlash(rel))
		}
		if d.IsDir() {
			if err := c.Mkdir(target); err != nil && !isRemoteExist(err) {
				return fmt.Errorf("mkdir %s on %s: %w", target, s.host, err)
			}
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		return s.uploadFile(c, p, target, fi.Mode())
	})
}

func (s *session) uploadFile(c *sftp.Client, localPath, remotePath string, mode os.FileMode) error {
	in, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer in.Close()

	out, err := c.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create %s on %s: %w", remotePath, s.host, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("write %s on %s: %w", remotePath, s.host, err)
	}
	if err := c.Chmod(remotePath, mode.Perm()); err != nil {
		return fmt.Errorf("chmod %s on %s: %w", remotePath, s.host, err)
	}
	return out.Close()
}

// Download copies remotePath to localPath, recursing into directories.
func (s *session) Download(ctx context.Context, remotePath, localPath string) error {
	c, err := s.sftpClient()
	if err != nil {
		return err
	}

	info, err := c.Stat(remotePath)
	if err != nil {
		return fmt.Errorf("stat %s on %s: %w", remotePath, s.host, err)
	}
	if !info.IsDir() {
		return s.downloadFile(c, remotePath, localPath)
	}

	walker := c.Walk(remotePath)
	for walker.Step() {
		if err := walker.Err(); err != nil {
			return fmt.Errorf("walk %s on %s: %w", remotePath, s.host, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel := strings.TrimPrefix(walker.Path(), remotePath)
		rel = strings.TrimPrefix(rel, "/")
		target := localPath
		if rel != "" {
			target = filepath.Join(localPath, filepath.FromSlash(rel))
		}
		if walker.Stat().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("mkdir %s: %w", target, err)
			}
			continue
		}
		if err := s.downloadFile(c, walker.Path(), target); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) downloadFile(c *sftp.Client, remotePath, localPath string) error {
	in, err := c.Open(remotePath)
	if err != nil {
		return fmt.Errorf("open %s on %s: %w", remotePath, s.host, err)
	}
	defer in.Close()

	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("write %s: %w", localPath, err)
	}
	return out.Close()
}

func (s *session) sftpClient() (*sftp.Client, error) {
	if s.sftp != nil {
		return s.sftp, nil
	}
	c, err := sftp.NewClient(s.client)
	if err != nil {
		return nil, fmt.Errorf("open sftp on %s: %w", s.host, err)
	}
	s.sftp = c
	return c, nil
}

func (s *session) Close() error {
	if s.sftp != nil {
		s.sftp.Close()
	}
	return s.client.Close()
}

func isRemoteExist(err error) bool {
	return err != nil && (os.IsExist(err) || strings.Contains(err.Error(), "file exists"))
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func stringAttr(attrs map[string]interface{}, key, fallback string) string {
	if v, ok := attrs[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

func intAttr(attrs map[string]interface{}, key string, fallback int) int {
	switch v := attrs[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
