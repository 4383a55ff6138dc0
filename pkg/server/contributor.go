package server

import (
	"os"
	"path/filepath"

	"github.com/TaIos/mod-tls/pkg/cert"
)

// FileContributor contributes managed certificates from a directory
// tree: <dir>/<server>/cert.pem and key.pem are added to a vhost's
// configured certificates, and <dir>/<server>/fallback-cert.pem and
// fallback-key.pem serve as the interim certificate when nothing else
// exists. External certificate automation drops files there; this core
// only reads them at startup.
type FileContributor struct {
	dir string
}

// NewFileContributor creates a contributor rooted at dir. An empty dir
// yields a contributor that never contributes.
func NewFileContributor(dir string) *FileContributor {
	return &FileContributor{dir: dir}
}

// AddCertFiles returns the managed certificate specs for a server.
func (f *FileContributor) AddCertFiles(server string) []*cert.Spec {
	return f.pair(server, "cert.pem", "key.pem")
}

// AddFallbackCertFiles returns the interim certificate specs for a
// server without any real certificates.
func (f *FileContributor) AddFallbackCertFiles(server string) []*cert.Spec {
	return f.pair(server, "fallback-cert.pem", "fallback-key.pem")
}

func (f *FileContributor) pair(server, certName, keyName string) []*cert.Spec {
	if f.dir == "" {
		return nil
	}
	certFile := filepath.Join(f.dir, server, certName)
	keyFile := filepath.Join(f.dir, server, keyName)
	if !fileExists(certFile) || !fileExists(keyFile) {
		return nil
	}
	return []*cert.Spec{{CertFile: certFile, KeyFile: keyFile}}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
