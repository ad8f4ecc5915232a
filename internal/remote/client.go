package remote

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"github.com/skeema/knownhosts"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/term"

	"db-sync-tool/internal/config"
	apperrors "db-sync-tool/internal/errors"
)

const dialTimeout = 10 * time.Second

// ConnectOptions tunes how SSH sessions are opened.
type ConnectOptions struct {
	// KnownHostsPath overrides ~/.ssh/known_hosts.
	KnownHostsPath string
	// Interactive allows prompting for a password on the terminal as
	// the last auth resort. When false, a missing credential is a
	// connection error instead of a hang.
	Interactive bool
}

// Client is an established SSH connection to one endpoint, possibly
// routed through a bastion.
type Client struct {
	conn    *ssh.Client
	bastion *ssh.Client
	label   string
}

// Connect opens an SSH connection to the endpoint, hopping through its
// jump host when one is configured. Host keys are always verified
// against the known-hosts store; an unknown key is fatal.
func Connect(ctx context.Context, endpoint config.EndpointConfig, opts ConnectOptions) (*Client, error) {
	hostKeyCallback, err := hostKeyVerifier(opts.KnownHostsPath)
	if err != nil {
		return nil, err
	}

	label := endpoint.Label(endpoint.Host)

	if endpoint.JumpHost != nil {
		return connectViaJumpHost(ctx, endpoint, hostKeyCallback, opts, label)
	}

	clientConfig, err := clientConfig(endpoint.User, endpoint.Host,
		endpoint.SSHKey, endpoint.Password, hostKeyCallback, opts)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(endpoint.Host, fmt.Sprintf("%d", endpoint.Port))
	conn, err := dial(ctx, addr, clientConfig)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrorTypeConnection,
			fmt.Sprintf("cannot connect to %s", label), err)
	}
	return &Client{conn: conn, label: label}, nil
}

// connectViaJumpHost opens the bastion connection first, then tunnels
// a second authenticated connection to the endpoint's private address
// through it. One hop only; nested jumps are not supported.
func connectViaJumpHost(ctx context.Context, endpoint config.EndpointConfig,
	hostKey ssh.HostKeyCallback, opts ConnectOptions, label string) (*Client, error) {

	jump := endpoint.JumpHost
	jumpUser := jump.User
	if jumpUser == "" {
		jumpUser = endpoint.User
	}
	jumpKey := jump.SSHKey
	if jumpKey == "" {
		jumpKey = endpoint.SSHKey
	}

	jumpConfig, err := clientConfig(jumpUser, jump.Host, jumpKey, jump.Password, hostKey, opts)
	if err != nil {
		return nil, err
	}
	jumpAddr := net.JoinHostPort(jump.Host, fmt.Sprintf("%d", jump.Port))
	bastion, err := dial(ctx, jumpAddr, jumpConfig)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrorTypeConnection,
			fmt.Sprintf("cannot connect to jump host %s", jump.Host), err)
	}

	private := jump.Private
	if private == "" {
		private = endpoint.Host
	}
	targetAddr := net.JoinHostPort(private, fmt.Sprintf("%d", endpoint.Port))
	tunnel, err := bastion.Dial("tcp", targetAddr)
	if err != nil {
		bastion.Close()
		return nil, apperrors.New(apperrors.ErrorTypeConnection,
			fmt.Sprintf("cannot reach %s through jump host %s", targetAddr, jump.Host), err)
	}

	endpointConfig, err := clientConfig(endpoint.User, private,
		endpoint.SSHKey, endpoint.Password, hostKey, opts)
	if err != nil {
		bastion.Close()
		return nil, err
	}
	conn, chans, reqs, err := ssh.NewClientConn(tunnel, targetAddr, endpointConfig)
	if err != nil {
		bastion.Close()
		return nil, apperrors.New(apperrors.ErrorTypeConnection,
			fmt.Sprintf("cannot authenticate against %s", label), err)
	}

	return &Client{
		conn:    ssh.NewClient(conn, chans, reqs),
		bastion: bastion,
		label:   label,
	}, nil
}

// Run executes a command in a fresh session and returns trimmed
// stdout. The session is torn down when the context is cancelled.
func (c *Client) Run(ctx context.Context, command string) (string, error) {
	session, err := c.conn.NewSession()
	if err != nil {
		return "", apperrors.New(apperrors.ErrorTypeConnection,
			fmt.Sprintf("cannot open session on %s", c.label), err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		session.Close()
		<-done
		return "", apperrors.Classify(ctx.Err())
	case err := <-done:
		if err != nil {
			message := strings.TrimSpace(stderr.String())
			if message == "" {
				message = err.Error()
			}
			return "", fmt.Errorf("command failed on %s: %s", c.label, message)
		}
	}
	return strings.TrimSpace(stdout.String()), nil
}

// SFTP opens a file-transfer channel on the existing connection.
func (c *Client) SFTP() (*sftp.Client, error) {
	client, err := sftp.NewClient(c.conn)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrorTypeConnection,
			fmt.Sprintf("cannot open sftp channel on %s", c.label), err)
	}
	return client, nil
}

// Label returns the endpoint name used in log output.
func (c *Client) Label() string {
	return c.label
}

// Close tears down the connection and its bastion hop.
func (c *Client) Close() error {
	err := c.conn.Close()
	if c.bastion != nil {
		if berr := c.bastion.Close(); err == nil {
			err = berr
		}
	}
	return err
}

func dial(ctx context.Context, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	d := net.Dialer{Timeout: cfg.Timeout}
	netConn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	conn, chans, reqs, err := ssh.NewClientConn(netConn, addr, cfg)
	if err != nil {
		netConn.Close()
		return nil, err
	}
	return ssh.NewClient(conn, chans, reqs), nil
}

// clientConfig assembles auth methods in precedence order: explicit
// key file, running agent, configured password, interactive prompt.
// Without any usable method the connection fails fast instead of
// waiting on a prompt that cannot happen.
func clientConfig(user, host, keyPath, password string,
	hostKey ssh.HostKeyCallback, opts ConnectOptions) (*ssh.ClientConfig, error) {

	var methods []ssh.AuthMethod

	if keyPath != "" {
		signer, err := loadPrivateKey(keyPath)
		if err != nil {
			return nil, apperrors.New(apperrors.ErrorTypeConnection,
				fmt.Sprintf("cannot load ssh key %s", keyPath), err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if agentConn, err := net.Dial("unix", sock); err == nil {
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(agentConn).Signers))
		}
	}

	if password != "" {
		methods = append(methods, ssh.Password(password))
	}

	if len(methods) == 0 {
		if !opts.Interactive {
			return nil, apperrors.Newf(apperrors.ErrorTypeConnection,
				"no ssh credentials for %s@%s and no terminal to prompt on", user, host)
		}
		methods = append(methods, ssh.PasswordCallback(func() (string, error) {
			fmt.Fprintf(os.Stderr, "password for %s@%s: ", user, host)
			entered, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(os.Stderr)
			return string(entered), err
		}))
	}

	return &ssh.ClientConfig{
		User:            user,
		Auth:            methods,
		HostKeyCallback: hostKey,
		Timeout:         dialTimeout,
	}, nil
}

func loadPrivateKey(path string) (ssh.Signer, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, path[1:])
	}
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ssh.ParsePrivateKey(key)
}

// hostKeyVerifier loads the known-hosts store. There is no insecure
// fallback: an unknown or changed host key aborts the run.
func hostKeyVerifier(path string) (ssh.HostKeyCallback, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, apperrors.New(apperrors.ErrorTypeConnection,
				"cannot locate known_hosts", err)
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	callback, err := knownhosts.New(path)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrorTypeConnection,
			fmt.Sprintf("cannot load known_hosts from %s", path), err)
	}
	return callback.HostKeyCallback(), nil
}
