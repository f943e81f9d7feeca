package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rohankatakam/paperwalk/internal/errors"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// CredentialManager resolves the provider API key.
// Priority: environment variable → keychain → credentials file.
type CredentialManager struct {
	keyring  keyStore
	filePath string
	getenv   func(string) string
}

// keyStore is the keychain surface CredentialManager needs
type keyStore interface {
	IsAvailable() bool
	GetAPIKey() (string, error)
	SaveAPIKey(string) error
}

// Credentials is the on-disk credentials file layout
type Credentials struct {
	SemanticScholarAPIKey string `yaml:"semantic_scholar_api_key"`
}

// NewCredentialManager creates a new credential manager
func NewCredentialManager() *CredentialManager {
	homeDir, _ := os.UserHomeDir()
	return &CredentialManager{
		keyring:  NewKeyringManager(),
		filePath: filepath.Join(homeDir, ".config", "paperwalk", "credentials.yaml"),
		getenv:   os.Getenv,
	}
}

// GetAPIKey returns the first key found. An empty key with nil error means
// none is configured; the provider still answers unauthenticated requests.
func (cm *CredentialManager) GetAPIKey() (string, error) {
	if key := cm.getenv(APIKeyEnvVar); key != "" {
		return key, nil
	}

	if cm.keyring.IsAvailable() {
		if key, err := cm.keyring.GetAPIKey(); err == nil && key != "" {
			return key, nil
		}
	}

	creds, err := cm.loadFile()
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrap(err, errors.ErrorTypeConfig, errors.SeverityMedium,
			fmt.Sprintf("failed to read credentials file %s", cm.filePath))
	}
	return creds.SemanticScholarAPIKey, nil
}

// SaveAPIKey stores the key in the keychain, or the credentials file when
// no keychain is available. It returns where the key went.
func (cm *CredentialManager) SaveAPIKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.ValidationErrorf("api key cannot be empty")
	}

	if cm.keyring.IsAvailable() {
		if err := cm.keyring.SaveAPIKey(key); err != nil {
			return "", errors.Wrap(err, errors.ErrorTypeConfig, errors.SeverityHigh,
				"failed to save API key to keychain")
		}
		return "keychain", nil
	}

	if err := cm.saveFile(Credentials{SemanticScholarAPIKey: key}); err != nil {
		return "", errors.FileSystemError(err, "failed to write credentials file")
	}
	return cm.filePath, nil
}

// PromptAPIKey reads a key from the terminal without echo, or a line from
// in when it is not a terminal.
func (cm *CredentialManager) PromptAPIKey(in *os.File, out io.Writer) (string, error) {
	fmt.Fprint(out, "Semantic Scholar API key: ")

	if term.IsTerminal(int(in.Fd())) {
		b, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// FilePath returns the credentials file location
func (cm *CredentialManager) FilePath() string {
	return cm.filePath
}

func (cm *CredentialManager) loadFile() (*Credentials, error) {
	data, err := os.ReadFile(cm.filePath)
	if err != nil {
		return nil, err
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

func (cm *CredentialManager) saveFile(creds Credentials) error {
	if err := os.MkdirAll(filepath.Dir(cm.filePath), 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(creds)
	if err != nil {
		return err
	}

	// user-only read/write
	return os.WriteFile(cm.filePath, data, 0600)
}
