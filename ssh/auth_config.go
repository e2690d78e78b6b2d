// Copyright © NGRSoftlab 2020-2025

package ssh

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// auth holds the credentials tried when connecting to a node
type auth struct {
	password   string // optional password
	keyPath    string // optional path to private key file
	keyBytes   []byte // optional private key data
	passphrase string // optional, if the private key is encrypted
	useAgent   bool   // optional, unix only
}

func (a *auth) withPassword(password string) error {
	if len(password) == 0 {
		return fmt.Errorf("password empty")
	}
	a.password = password
	return nil
}

func (a *auth) withPrivateKeyPath(path, passphrase string) error {
	if len(path) == 0 {
		return fmt.Errorf("private key path empty")
	}
	a.keyPath = path
	a.passphrase = passphrase
	return nil
}

func (a *auth) withPrivateKeyBytes(privateKey []byte, passphrase string) error {
	if len(privateKey) == 0 {
		return fmt.Errorf("private key bytes empty")
	}
	a.keyBytes = privateKey
	a.passphrase = passphrase
	return nil
}

func (a *auth) withAgent() error {
	a.useAgent = true
	return nil
}

// agentAuth dials SSH_AUTH_SOCK and returns the agent's signers as an auth method
func (a *auth) agentAuth() (ssh.AuthMethod, error) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, fmt.Errorf("dial agent: SSH_AUTH_SOCK is not set")
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, fmt.Errorf("dial agent: %w", err)
	}
	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers), nil
}

// authMethods returns the configured methods in the order
// agent → private key (file, then bytes) → password.
// Methods that fail to load are skipped; it is an error only if none remain
func (a *auth) authMethods() ([]ssh.AuthMethod, error) {
	methods := make([]ssh.AuthMethod, 0, 4)
	var problems []error

	if a.useAgent {
		if m, err := a.agentAuth(); err != nil {
			problems = append(problems, fmt.Errorf("agent: %w", err))
		} else {
			methods = append(methods, m)
		}
	}

	if a.keyPath != "" {
		signer, err := a.signerFromFile()
		if err != nil {
			problems = append(problems, fmt.Errorf("read key file: %w", err))
		} else {
			methods = append(methods, ssh.PublicKeys(signer))
		}
	}

	if len(a.keyBytes) > 0 {
		signer, err := parseSigner(a.keyBytes, a.passphrase)
		if err != nil {
			problems = append(problems, fmt.Errorf("read key bytes: %w", err))
		} else {
			methods = append(methods, ssh.PublicKeys(signer))
		}
	}

	if a.password != "" {
		// PAM based servers only answer keyboard-interactive
		methods = append(methods,
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					answers[i] = a.password
				}
				return answers, nil
			}),
			ssh.Password(a.password),
		)
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("no valid auth methods available: %w", errors.Join(problems...))
	}
	return methods, nil
}

func (a *auth) signerFromFile() (ssh.Signer, error) {
	keyData, err := os.ReadFile(a.keyPath)
	if err != nil {
		return nil, err
	}
	return parseSigner(keyData, a.passphrase)
}

// parseSigner parses a PEM private key, decrypting it with passphrase if one is given
func parseSigner(data []byte, passphrase string) (ssh.Signer, error) {
	if len(passphrase) > 0 {
		signer, err := ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
		if err != nil && strings.Contains(err.Error(), "key is not password protected") {
			return ssh.ParsePrivateKey(data)
		}
		return signer, err
	}
	return ssh.ParsePrivateKey(data)
}
