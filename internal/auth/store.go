package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/99designs/keyring"
	"golang.org/x/oauth2"
)

// TokenStore persists the OAuth token between sessions.
type TokenStore interface {
	Load() (*oauth2.Token, error)
	Save(token *oauth2.Token, config *oauth2.Config) error
}

// pythonToken represents the token.json format written by Python's google-auth library.
type pythonToken struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refresh_token"`
	TokenURI     string   `json:"token_uri"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	Scopes       []string `json:"scopes"`
	Expiry       string   `json:"expiry,omitempty"`
}

const pythonExpiryLayout = "2006-01-02T15:04:05.999999Z"

// decodePythonToken converts google-auth token JSON into a Go oauth2.Token.
func decodePythonToken(data []byte) (*oauth2.Token, error) {
	var pt pythonToken
	if err := json.Unmarshal(data, &pt); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	// Parse expiry time. Python writes ISO 8601 with microseconds.
	var expiry time.Time
	if pt.Expiry != "" {
		for _, layout := range []string{
			pythonExpiryLayout,
			"2006-01-02T15:04:05Z",
			time.RFC3339,
			time.RFC3339Nano,
		} {
			if t, err := time.Parse(layout, pt.Expiry); err == nil {
				expiry = t
				break
			}
		}
	}

	return &oauth2.Token{
		AccessToken:  pt.Token,
		RefreshToken: pt.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       expiry,
	}, nil
}

// encodePythonToken renders a token in the google-auth format so the
// Python tooling can keep using it.
func encodePythonToken(token *oauth2.Token, config *oauth2.Config) ([]byte, error) {
	pt := pythonToken{
		Token:        token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenURI:     config.Endpoint.TokenURL,
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Scopes:       config.Scopes,
	}
	if !token.Expiry.IsZero() {
		pt.Expiry = token.Expiry.UTC().Format(pythonExpiryLayout)
	}
	return json.MarshalIndent(pt, "", "  ")
}

// FileStore keeps the token in a token.json file.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the token file. A missing file yields ErrNoToken.
func (s *FileStore) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoToken, s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	return decodePythonToken(data)
}

// Save writes the token file with owner-only permissions.
func (s *FileStore) Save(token *oauth2.Token, config *oauth2.Config) error {
	data, err := encodePythonToken(token, config)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

const (
	keyringService = "mailassist"
	keyringKey     = "gmail-token"
)

// OpenKeyring opens the OS keyring, falling back to an encrypted file
// backend under fileDir.
func OpenKeyring(fileDir string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: keyringService,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("mailassist-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// KeyringStore keeps the token, in the same JSON format, in a keyring.
type KeyringStore struct {
	ring keyring.Keyring
}

// NewKeyringStore returns a store backed by ring.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

// Load reads the token item. A missing item yields ErrNoToken.
func (s *KeyringStore) Load() (*oauth2.Token, error) {
	item, err := s.ring.Get(keyringKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("getting credential %q: %w", keyringKey, err)
	}
	return decodePythonToken(item.Data)
}

// Save stores the token item.
func (s *KeyringStore) Save(token *oauth2.Token, config *oauth2.Config) error {
	data, err := encodePythonToken(token, config)
	if err != nil {
		return err
	}
	err = s.ring.Set(keyring.Item{
		Key:         keyringKey,
		Data:        data,
		Label:       "mailassist Gmail token",
		Description: "OAuth token for the Gmail API",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", keyringKey, err)
	}
	return nil
}
