package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/lihengcn/GeminiEligibilityCheck/internal/model"
)

const tmpSuffix = ".tmp"

// fileRecord is the on-disk form of one account. Status is read as a plain
// string so an unknown name does not fail the whole load.
type fileRecord struct {
	Email              string `json:"email"`
	Password           string `json:"password"`
	RecoveryEmail      string `json:"recoveryEmail"`
	AuthenticatorToken string `json:"authenticatorToken"`
	AppPassword        string `json:"appPassword"`
	AuthenticatorURL   string `json:"authenticatorUrl"`
	MessagesURL        string `json:"messagesUrl"`
	SheeridURL         string `json:"sheeridUrl,omitempty"`
	Sold               bool   `json:"sold"`
	Finished           bool   `json:"finished"`
	Status             string `json:"status"`
}

func load(path string) (*table, error) {
	t := newTable()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return t, nil
	}

	var records []fileRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}

	for _, r := range records {
		email := strings.TrimSpace(r.Email)
		if email == "" {
			log.Warn().Str("path", path).Msg("Dropping snapshot row without email")
			continue
		}
		status, ok := model.ParseStatus(r.Status)
		if !ok {
			log.Warn().
				Str("email", email).
				Str("status", r.Status).
				Msg("Unknown status in snapshot, loading as IDLE")
			status = model.StatusIdle
		}
		t.put(model.Account{
			Email:              email,
			Password:           r.Password,
			RecoveryEmail:      r.RecoveryEmail,
			AuthenticatorToken: r.AuthenticatorToken,
			AppPassword:        r.AppPassword,
			AuthenticatorURL:   r.AuthenticatorURL,
			MessagesURL:        r.MessagesURL,
			SheeridURL:         r.SheeridURL,
			Sold:               r.Sold,
			Finished:           r.Finished,
			Status:             status,
		})
	}
	return t, nil
}

// persist replaces the snapshot file with the contents of t. The new state
// is written to a sibling temp file, synced, then renamed over the old one,
// so readers only ever see a complete snapshot.
func persist(path string, t *table) error {
	data, err := json.MarshalIndent(t.ordered(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	tmp := path + tmpSuffix
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp snapshot: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}
