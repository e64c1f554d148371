// Package bundle manages per-identity certificate material and the assembled
// OpenVPN client configuration on disk. The presence of the assembled
// {identity}.ovpn file is the durable marker that provisioning completed.
package bundle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	caCertFile   = "ca.crt"
	tlsCryptFile = "tls-crypt.key"
)

var (
	ErrNotFound        = errors.New("client configuration not found")
	ErrMissingMaterial = errors.New("certificate material missing")
)

type Store struct {
	// Dir holds all client material: {identity}.crt, {identity}.key and the
	// assembled {identity}.ovpn, plus the shared ca.crt and optional
	// tls-crypt.key.
	Dir string

	// RemoteHost and RemotePort fill the "remote" line of assembled bundles.
	RemoteHost string
	RemotePort int
}

func NewStore(dir, remoteHost string, remotePort int) *Store {
	return &Store{Dir: dir, RemoteHost: remoteHost, RemotePort: remotePort}
}

func (s *Store) BundlePath(identity string) string {
	return filepath.Join(s.Dir, identity+".ovpn")
}

func (s *Store) certPath(identity string) string {
	return filepath.Join(s.Dir, identity+".crt")
}

func (s *Store) keyPath(identity string) string {
	return filepath.Join(s.Dir, identity+".key")
}

// Exists reports whether the assembled bundle is on disk.
func (s *Store) Exists(identity string) bool {
	return fileExists(s.BundlePath(identity))
}

// Read returns the assembled bundle verbatim.
func (s *Store) Read(identity string) ([]byte, error) {
	data, err := os.ReadFile(s.BundlePath(identity))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read bundle for %s: %w", identity, err)
	}
	return data, nil
}

// Assemble builds the client configuration document from the material the CA
// tool produced. Section order is fixed; the tls-crypt section is included
// only when the shared PSK file exists.
func (s *Store) Assemble(identity string) (string, error) {
	lines := []string{
		"client",
		"dev tun",
		"proto udp",
		fmt.Sprintf("remote %s %d", s.RemoteHost, s.RemotePort),
		"resolv-retry infinite",
		"nobind",
		"persist-key",
		"persist-tun",
		"remote-cert-tls server",
		"auth SHA512",
		"ignore-unknown-option block-outside-dns",
		"verb 3",
	}

	sections := []struct {
		tag      string
		path     string
		optional bool
	}{
		{"ca", filepath.Join(s.Dir, caCertFile), false},
		{"cert", s.certPath(identity), false},
		{"key", s.keyPath(identity), false},
		{"tls-crypt", filepath.Join(s.Dir, tlsCryptFile), true},
	}

	for _, sec := range sections {
		data, err := os.ReadFile(sec.path)
		if err != nil {
			if os.IsNotExist(err) && sec.optional {
				continue
			}
			if os.IsNotExist(err) {
				return "", fmt.Errorf("%w: %s", ErrMissingMaterial, sec.path)
			}
			return "", fmt.Errorf("failed to read %s: %w", sec.path, err)
		}
		lines = append(lines, "<"+sec.tag+">", strings.TrimSpace(string(data)), "</"+sec.tag+">")
	}

	return strings.Join(lines, "\n"), nil
}

// Write persists an assembled bundle atomically (temp file + rename) so a
// concurrent Read never observes a partial document. Returns the bundle path.
func (s *Store) Write(identity, doc string) (string, error) {
	path := s.BundlePath(identity)

	tmp, err := os.CreateTemp(s.Dir, "."+identity+".ovpn.*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp bundle: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(doc); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write bundle for %s: %w", identity, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close temp bundle: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to publish bundle for %s: %w", identity, err)
	}
	return path, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
