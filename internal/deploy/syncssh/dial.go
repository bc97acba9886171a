package syncssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"github.com/vk/sitepipe/internal/deploy"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

const dialTimeout = 30 * time.Second

type sftpFS struct {
	*sftp.Client
	ssh   *ssh.Client
	agent net.Conn
}

func (f *sftpFS) Create(p string) (io.WriteCloser, error) {
	return f.Client.Create(p)
}

func (f *sftpFS) Close() error {
	errs := []error{f.Client.Close(), f.ssh.Close()}
	if f.agent != nil {
		errs = append(errs, f.agent.Close())
	}
	return errors.Join(errs...)
}

// DialSFTP opens an SSH connection and starts an SFTP session on it.
// Authentication tries the ssh-agent, then the key file, then a password.
func DialSFTP(ctx context.Context, t deploy.Target) (RemoteFS, error) {
	cfg, agentConn, err := clientConfig(t)
	closeAgent := func() {
		if agentConn != nil {
			agentConn.Close()
		}
	}
	if err != nil {
		closeAgent()
		return nil, err
	}

	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", t.Addr())
	if err != nil {
		closeAgent()
		return nil, err
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, t.Addr(), cfg)
	if err != nil {
		conn.Close()
		closeAgent()
		return nil, fmt.Errorf("ssh handshake: %w", err)
	}
	client := ssh.NewClient(c, chans, reqs)

	sc, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		closeAgent()
		return nil, fmt.Errorf("starting sftp: %w", err)
	}
	return &sftpFS{Client: sc, ssh: client, agent: agentConn}, nil
}

func clientConfig(t deploy.Target) (*ssh.ClientConfig, net.Conn, error) {
	var (
		methods   []ssh.AuthMethod
		agentConn net.Conn
	)
	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if c, err := net.Dial("unix", sock); err == nil {
			agentConn = c
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(c).Signers))
		}
	}
	if t.KeyFile != "" {
		key, err := os.ReadFile(expandHome(t.KeyFile))
		if err != nil {
			return nil, agentConn, fmt.Errorf("reading ssh key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, agentConn, fmt.Errorf("parsing ssh key %s: %w", t.KeyFile, err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if t.Password != "" {
		methods = append(methods, ssh.Password(t.Password))
	}
	if len(methods) == 0 {
		return nil, agentConn, errors.New("no ssh authentication available: start ssh-agent or set ssh.key_file")
	}

	hostKey, err := hostKeyCallback(t)
	if err != nil {
		return nil, agentConn, err
	}
	return &ssh.ClientConfig{
		User:            t.User,
		Auth:            methods,
		HostKeyCallback: hostKey,
		Timeout:         dialTimeout,
	}, agentConn, nil
}

func hostKeyCallback(t deploy.Target) (ssh.HostKeyCallback, error) {
	if t.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	file := t.KnownHosts
	if file == "" {
		file = "~/.ssh/known_hosts"
	}
	cb, err := knownhosts.New(expandHome(file))
	if err != nil {
		return nil, fmt.Errorf("loading known hosts: %w", err)
	}
	return cb, nil
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}
