package certwatch

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AgenciaV10/wsnap/internal/telemetry/logger"
)

func pairPaths(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "server.crt"), filepath.Join(dir, "server.key")
}

func TestNewWatcher(t *testing.T) {
	certFile, keyFile := pairPaths(t)
	writeTestPair(t, certFile, keyFile)

	w, err := NewWatcher(certFile, keyFile, WithLogger(logger.Discard()))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	cert, err := w.GetCertificate(&tls.ClientHelloInfo{})
	if err != nil || cert == nil {
		t.Fatalf("GetCertificate() = %v, %v", cert, err)
	}
	if w.Reloads() != 1 {
		t.Errorf("Reloads() = %d, want 1", w.Reloads())
	}
	if w.debounce != DefaultDebounce {
		t.Errorf("debounce = %v, want %v", w.debounce, DefaultDebounce)
	}
}

func TestNewWatcher_Errors(t *testing.T) {
	certFile, keyFile := pairPaths(t)
	if _, err := NewWatcher(certFile, keyFile); err == nil {
		t.Error("NewWatcher() should fail for missing files")
	}

	if err := os.WriteFile(certFile, []byte("junk"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(keyFile, []byte("junk"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewWatcher(certFile, keyFile); err == nil {
		t.Error("NewWatcher() should fail for invalid PEM")
	}
}

func TestWatcher_StopIdempotent(t *testing.T) {
	certFile, keyFile := pairPaths(t)
	writeTestPair(t, certFile, keyFile)

	w, err := NewWatcher(certFile, keyFile, WithLogger(logger.Discard()))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.StartAsync()
	time.Sleep(50 * time.Millisecond)
	w.Stop()
	w.Stop()
}

func TestWatcher_ReloadOnChange(t *testing.T) {
	certFile, keyFile := pairPaths(t)
	writeTestPair(t, certFile, keyFile)

	w, err := NewWatcher(certFile, keyFile,
		WithLogger(logger.Discard()),
		WithDebounce(50*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	initial, _ := w.GetCertificate(nil)

	w.StartAsync()
	defer w.Stop()
	time.Sleep(100 * time.Millisecond)

	writeTestPair(t, certFile, keyFile)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cur, _ := w.GetCertificate(nil); cur != initial {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("certificate was not reloaded after the files changed")
}

func TestWatcher_FailedReloadKeepsPair(t *testing.T) {
	certFile, keyFile := pairPaths(t)
	writeTestPair(t, certFile, keyFile)

	w, err := NewWatcher(certFile, keyFile, WithLogger(logger.Discard()))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()
	initial, _ := w.GetCertificate(nil)

	if err := os.WriteFile(certFile, []byte("broken"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	w.reloadLogged()

	if cur, _ := w.GetCertificate(nil); cur != initial {
		t.Error("a failed reload should keep the previous certificate")
	}
}

func TestWatcher_TLSConfig(t *testing.T) {
	certFile, keyFile := pairPaths(t)
	writeTestPair(t, certFile, keyFile)

	w, err := NewWatcher(certFile, keyFile, WithLogger(logger.Discard()))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	cfg := w.TLSConfig()
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %x, want TLS 1.2", cfg.MinVersion)
	}
	cert, err := cfg.GetCertificate(&tls.ClientHelloInfo{})
	if err != nil || cert == nil {
		t.Errorf("GetCertificate() = %v, %v", cert, err)
	}
}

// writeTestPair writes a fresh self-signed certificate and key.
func writeTestPair(t *testing.T, certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		t.Fatalf("serial: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "localhost"},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey: %v", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	if err := os.WriteFile(certFile, certPEM, 0o600); err != nil {
		t.Fatalf("write cert: %v", err)
	}
}
