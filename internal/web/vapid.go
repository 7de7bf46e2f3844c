package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
)

const vapidKeysFileName = "vapid_keys.json"

type vapidKeysFile struct {
	PublicKey  string    `json:"publicKey"`
	PrivateKey string    `json:"privateKey"`
	Subject    string    `json:"subject,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// EnsureVAPIDKeys returns a persisted VAPID keypair from the data dir,
// generating and saving one on first use. Keys set explicitly in the config
// file take precedence over this file; callers check that first.
func EnsureVAPIDKeys(dataDir, subject string) (publicKey, privateKey string, generated bool, err error) {
	if dataDir == "" {
		return "", "", false, fmt.Errorf("data dir is required")
	}
	keysPath := filepath.Join(dataDir, vapidKeysFileName)
	subject = strings.TrimSpace(subject)

	if file, loadErr := loadVAPIDKeysFile(keysPath); loadErr == nil {
		if subject != "" && strings.TrimSpace(file.Subject) != subject {
			file.Subject = subject
			file.UpdatedAt = time.Now().UTC()
			if writeErr := writeVAPIDKeysFile(keysPath, file); writeErr != nil {
				return "", "", false, writeErr
			}
		}
		return file.PublicKey, file.PrivateKey, false, nil
	} else if !errors.Is(loadErr, os.ErrNotExist) {
		return "", "", false, loadErr
	}

	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", false, fmt.Errorf("generate vapid keypair: %w", err)
	}

	now := time.Now().UTC()
	file := &vapidKeysFile{
		PublicKey:  strings.TrimSpace(publicKey),
		PrivateKey: strings.TrimSpace(privateKey),
		Subject:    subject,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := writeVAPIDKeysFile(keysPath, file); err != nil {
		return "", "", false, err
	}
	return file.PublicKey, file.PrivateKey, true, nil
}

func loadVAPIDKeysFile(path string) (*vapidKeysFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("read vapid keys file: %w", err)
	}

	var file vapidKeysFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse vapid keys file: %w", err)
	}
	file.PublicKey = strings.TrimSpace(file.PublicKey)
	file.PrivateKey = strings.TrimSpace(file.PrivateKey)
	file.Subject = strings.TrimSpace(file.Subject)
	if file.PublicKey == "" || file.PrivateKey == "" {
		return nil, fmt.Errorf("vapid keys file is missing required keys")
	}
	return &file, nil
}

func writeVAPIDKeysFile(path string, file *vapidKeysFile) error {
	if strings.TrimSpace(file.PublicKey) == "" || strings.TrimSpace(file.PrivateKey) == "" {
		return fmt.Errorf("vapid keys payload is missing key values")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("mkdir vapid dir: %w", err)
	}

	raw, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal vapid keys: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write temp vapid keys: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename vapid keys file: %w", err)
	}
	return nil
}
