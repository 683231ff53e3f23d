package feed

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// CredentialEnv is the environment variable consulted when no key file is
// configured.
const CredentialEnv = "GRIDGLANCE_API_KEY"

// ReadCredentialFile reads a single-line API key from path. Surrounding
// whitespace is removed.
func ReadCredentialFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read api key file (%s): %w", path, err)
	}
	key := strings.TrimSpace(string(b))
	if key == "" {
		return "", fmt.Errorf("api key file (%s) is empty", path)
	}
	return key, nil
}

// LoadCredential returns the API key from keyFile if set. Otherwise it looks
// for CredentialEnv in dotenvFile (when set) and then in the environment.
func LoadCredential(keyFile, dotenvFile string) (string, error) {
	if keyFile != "" {
		return ReadCredentialFile(keyFile)
	}
	if dotenvFile != "" {
		env, err := godotenv.Read(dotenvFile)
		if err != nil {
			return "", fmt.Errorf("failed to read dotenv file (%s): %w", dotenvFile, err)
		}
		if key := strings.TrimSpace(env[CredentialEnv]); key != "" {
			return key, nil
		}
	}
	if key := strings.TrimSpace(os.Getenv(CredentialEnv)); key != "" {
		return key, nil
	}
	return "", errors.New("no api key configured")
}
