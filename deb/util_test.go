package deb

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/blakesmith/ar"
)

func TestCountingWriter(t *testing.T) {
	var buf bytes.Buffer
	cw := &countingWriter{w: &buf}

	n, err := cw.Write([]byte("hello"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != 5 || cw.n != 5 {
		t.Errorf("expected 5 bytes counted, got n=%d count=%d", n, cw.n)
	}
	if buf.String() != "hello" {
		t.Errorf("buffer mismatch")
	}
}

func TestAddBufferToAr(t *testing.T) {
	var buf bytes.Buffer
	arW := ar.NewWriter(&buf)
	if err := arW.WriteGlobalHeader(); err != nil {
		t.Fatalf("WriteGlobalHeader failed: %v", err)
	}

	// Odd length so the member needs padding.
	content := []byte("content")
	if err := addBufferToAr(arW, "first", content); err != nil {
		t.Fatalf("addBufferToAr failed: %v", err)
	}
	if err := addBufferToAr(arW, "second", []byte("ok")); err != nil {
		t.Fatalf("addBufferToAr failed: %v", err)
	}

	arR := ar.NewReader(&buf)
	for _, want := range []struct {
		name string
		size int64
	}{{"first", 7}, {"second", 2}} {
		hdr, err := arR.Next()
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if strings.TrimSpace(hdr.Name) != want.name || hdr.Size != want.size {
			t.Errorf("got member %q (%d bytes), want %q (%d bytes)", hdr.Name, hdr.Size, want.name, want.size)
		}
	}
}

func TestAddFileToAr(t *testing.T) {
	dir := t.TempDir()
	// Several full chunks plus an odd tail, so only the end needs padding.
	big := bytes.Repeat([]byte("0123456789abcdef"), arChunk/8)
	big = append(big, 'z')
	path := filepath.Join(dir, "data.tar")
	if err := os.WriteFile(path, big, 0644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	arW := ar.NewWriter(&buf)
	if err := arW.WriteGlobalHeader(); err != nil {
		t.Fatal(err)
	}
	if err := addFileToAr(arW, "data.tar", path); err != nil {
		t.Fatalf("addFileToAr failed: %v", err)
	}
	if err := addBufferToAr(arW, "after", []byte("ok")); err != nil {
		t.Fatal(err)
	}
	if err := addFileToAr(arW, "missing", filepath.Join(dir, "missing")); err == nil {
		t.Error("expected an error for a missing file")
	}

	arR := ar.NewReader(&buf)
	hdr, err := arR.Next()
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(arR)
	if err != nil {
		t.Fatal(err)
	}
	if hdr.Size != int64(len(big)) || !bytes.Equal(got, big) {
		t.Errorf("data member mismatch: %d bytes, want %d", len(got), len(big))
	}
	hdr, err = arR.Next()
	if err != nil {
		t.Fatalf("member after an odd-sized file is unreadable: %v", err)
	}
	if strings.TrimSpace(hdr.Name) != "after" {
		t.Errorf("got member %q, want after", hdr.Name)
	}
}

// Helper to generate a temporary GPG key
func generateTestKey(t *testing.T) string {
	t.Helper()
	entity, err := openpgp.NewEntity("Test", "test", "test@example.com", nil)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PrivateKeyType, nil)
	if err != nil {
		t.Fatalf("armor encode failed: %v", err)
	}
	if err := entity.SerializePrivate(w, nil); err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	w.Close()
	return buf.String()
}

func TestSignBytes(t *testing.T) {
	key := generateTestKey(t)

	signed, err := signBytes([]byte("sign me"), key)
	if err != nil {
		t.Fatalf("signBytes failed: %v", err)
	}
	if !strings.Contains(string(signed), "-----BEGIN PGP SIGNED MESSAGE-----") {
		t.Error("output does not look like a signed message")
	}
}

func TestSignBytesBadKey(t *testing.T) {
	if _, err := signBytes([]byte("sign me"), "not a key"); err == nil {
		t.Error("expected an error for an invalid key")
	}
}

func TestExtractPublicKey(t *testing.T) {
	key := generateTestKey(t)

	pubArmored, err := extractPublicKey(key, true)
	if err != nil {
		t.Fatalf("extractPublicKey armored failed: %v", err)
	}
	if !strings.Contains(string(pubArmored), "-----BEGIN PGP PUBLIC KEY BLOCK-----") {
		t.Error("output does not look like an armored public key")
	}

	pubBin, err := extractPublicKey(key, false)
	if err != nil {
		t.Fatalf("extractPublicKey binary failed: %v", err)
	}
	if len(pubBin) == 0 {
		t.Error("binary key is empty")
	}
}
