package deb

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/clearsign"
	"github.com/blakesmith/ar"
)

// countingWriter wraps an io.Writer and counts the bytes written.
type countingWriter struct {
	w io.Writer
	n int64
}

// Write writes p to the underlying io.Writer and increments the byte count.
func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// addBufferToAr writes a named byte slice as a file entry to the AR archive.
// It constructs the AR header with mode 0644 and the current timestamp.
func addBufferToAr(w *ar.Writer, name string, body []byte) error {
	header := &ar.Header{
		Name:    name,
		Size:    int64(len(body)),
		Mode:    0644,
		ModTime: time.Now(),
	}
	if err := w.WriteHeader(header); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// arChunk is the copy buffer of addFileToAr. It must be even: ar.Writer pads
// every odd-sized Write, so only the last chunk of a member may be odd.
const arChunk = 64 << 10

// addFileToAr streams the file at path into the AR archive as a member named
// name, without holding it in memory.
func addFileToAr(w *ar.Writer, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return err
	}

	header := &ar.Header{
		Name:    name,
		Size:    fi.Size(),
		Mode:    0644,
		ModTime: time.Now(),
	}
	if err := w.WriteHeader(header); err != nil {
		return err
	}
	buf := make([]byte, arChunk)
	var written int64
	for written < header.Size {
		n, err := io.ReadFull(f, buf[:min(int64(len(buf)), header.Size-written)])
		if err != nil {
			return fmt.Errorf("short read after %d of %d bytes: %w", written+int64(n), header.Size, err)
		}
		if _, err := w.Write(buf[:n]); err != nil {
			return err
		}
		written += int64(n)
	}
	return nil
}

// signBytes signs the provided input bytes using the provided ASCII-armored PGP private key.
// It returns the signed message in ASCII-armored format (clearsigned).
func signBytes(input []byte, key string) ([]byte, error) {
	signer, err := readSigner(key)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	w, err := clearsign.Encode(&out, signer.PrivateKey, nil)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(input); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// extractPublicKey extracts the public key from an ASCII-armored PGP private key.
// If armored is true, it returns the public key in ASCII-armored format.
// Otherwise, it returns the binary serialized public key.
func extractPublicKey(key string, armored bool) ([]byte, error) {
	signer, err := readSigner(key)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if !armored {
		if err := signer.Serialize(&buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		return nil, err
	}
	if err := signer.Serialize(w); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func readSigner(key string) (*openpgp.Entity, error) {
	entities, err := openpgp.ReadArmoredKeyRing(strings.NewReader(key))
	if err != nil {
		return nil, err
	}
	for _, e := range entities {
		if e.PrivateKey != nil {
			return e, nil
		}
	}
	return nil, fmt.Errorf("no private key found")
}
