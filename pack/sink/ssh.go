package sink

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"

	ctxio "github.com/jbenet/go-context/io"
	"github.com/kevinburke/ssh_config"
	"github.com/skeema/knownhosts"
	sshagent "github.com/xanzy/ssh-agent"
	"golang.org/x/crypto/ssh"

	"github.com/go-git/gopack/pack/perr"
)

// SSHTransport sends pack data over a single long-lived SSH session,
// the one transport this module fully owns rather than delegating to a
// generic HTTP client (spec.md §4.5).
type SSHTransport struct {
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
}

// SSHDialOptions configures DialSSH. Host aliases (HostName, Port,
// User) are resolved through ~/.ssh/config; identity files are not
// read, authentication goes through ssh-agent only.
type SSHDialOptions struct {
	Host    string
	Port    string
	User    string
	Dialer  func(network, addr string) (net.Conn, error)
	Command string
	// HostKeyCallback overrides the default ~/.ssh/known_hosts lookup,
	// for tests and for callers managing their own trust store.
	HostKeyCallback ssh.HostKeyCallback
}

// DialSSH opens an SSH connection and starts Command as a remote
// process whose stdin receives the pack stream. Host resolution honors
// ~/.ssh/config aliases; authentication goes through a running
// ssh-agent; host keys are checked against ~/.ssh/known_hosts.
func DialSSH(ctx context.Context, opts SSHDialOptions) (*SSHTransport, error) {
	host := ssh_config.Get(opts.Host, "HostName")
	if host == "" {
		host = opts.Host
	}
	port := ssh_config.Get(opts.Host, "Port")
	if opts.Port != "" {
		port = opts.Port
	}
	if port == "" {
		port = "22"
	}
	user := ssh_config.Get(opts.Host, "User")
	if opts.User != "" {
		user = opts.User
	}
	if user == "" {
		user = "git"
	}

	auths, err := sshAuthMethods()
	if err != nil {
		return nil, perr.Wrap(perr.SinkFailure, err).AddDetails("collecting ssh auth methods")
	}

	hostKeyCallback := opts.HostKeyCallback
	if hostKeyCallback == nil {
		khPath := filepath.Join(os.Getenv("HOME"), ".ssh", "known_hosts")
		cb, err := knownhosts.New(khPath)
		if err != nil {
			return nil, perr.Wrap(perr.SinkFailure, err).AddDetails("loading known_hosts from %s", khPath)
		}
		hostKeyCallback = cb
	}

	cfg := &ssh.ClientConfig{
		User:            user,
		Auth:            auths,
		HostKeyCallback: hostKeyCallback,
	}

	addr := net.JoinHostPort(host, port)
	dial := opts.Dialer
	if dial == nil {
		dial = net.Dial
	}

	conn, err := dial("tcp", addr)
	if err != nil {
		return nil, perr.Wrap(perr.SinkFailure, err).AddDetails("dialing %s", addr)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		return nil, perr.Wrap(perr.SinkFailure, err).AddDetails("ssh handshake with %s", addr)
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, perr.Wrap(perr.SinkFailure, err).AddDetails("opening ssh session")
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		client.Close()
		return nil, perr.Wrap(perr.SinkFailure, err).AddDetails("opening stdin pipe")
	}

	command := opts.Command
	if command == "" {
		command = "git-receive-pack"
	}
	if err := session.Start(command); err != nil {
		session.Close()
		client.Close()
		return nil, perr.Wrap(perr.SinkFailure, err).AddDetails("starting remote command %q", command)
	}

	return &SSHTransport{client: client, session: session, stdin: stdin}, nil
}

// sshAuthMethods collects auth methods from a running ssh-agent, the
// way go-git's own plumbing/transport/ssh does.
func sshAuthMethods() ([]ssh.AuthMethod, error) {
	agentClient, _, err := sshagent.New()
	if err != nil || agentClient == nil {
		return nil, nil
	}
	return []ssh.AuthMethod{ssh.PublicKeysCallback(agentClient.Signers)}, nil
}

// SendPackData writes p to the remote command's stdin, honoring ctx
// cancellation mid-write via a context-aware io.Writer wrapper.
func (t *SSHTransport) SendPackData(ctx context.Context, p []byte) error {
	w := ctxio.NewWriter(ctx, t.stdin)
	if _, err := w.Write(p); err != nil {
		return perr.Wrap(perr.SinkFailure, err).AddDetails("writing %d bytes over ssh", len(p))
	}
	return nil
}

// Close finishes the remote command and tears down the session.
func (t *SSHTransport) Close() error {
	_ = t.stdin.Close()
	err := t.session.Wait()
	t.session.Close()
	t.client.Close()
	if err != nil {
		return perr.Wrap(perr.SinkFailure, err).AddDetails("waiting for remote command")
	}
	return nil
}
