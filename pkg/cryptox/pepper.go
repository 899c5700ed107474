package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const pepperBytes = 32

// The pepper is a server-side secret appended to every password before
// hashing. It lives in a file next to the database and is created on first use.
var pepperState struct {
	mu    sync.Mutex
	path  string
	value string
}

// SetPepperPath sets the pepper file location and forgets any cached value.
func SetPepperPath(path string) {
	pepperState.mu.Lock()
	defer pepperState.mu.Unlock()

	pepperState.path = path
	pepperState.value = ""
}

func loadPepper() (string, error) {
	pepperState.mu.Lock()
	defer pepperState.mu.Unlock()

	if pepperState.value != "" {
		return pepperState.value, nil
	}
	if pepperState.path == "" {
		return "", errors.New("pepper path not configured")
	}

	path := filepath.Clean(pepperState.path)
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		pepperState.value = strings.TrimSpace(string(raw))
		if pepperState.value == "" {
			return "", errors.New("pepper file is empty")
		}
		return pepperState.value, nil
	case !errors.Is(err, fs.ErrNotExist):
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", err
	}

	buf := make([]byte, pepperBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	value := base64.RawURLEncoding.EncodeToString(buf)

	// O_EXCL so two processes racing on first start agree on one pepper.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, fs.ErrExist) {
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		pepperState.value = strings.TrimSpace(string(raw))
		return pepperState.value, nil
	}
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := f.WriteString(value); err != nil {
		return "", err
	}

	pepperState.value = value
	return value, nil
}
