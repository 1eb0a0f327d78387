package sshrun

import (
	"encoding/json"
	"fmt"
	"os"
)

// credentials is the on-disk shape of credentials.json. The file is kept
// out of version control so passwords never land in Git.
type credentials struct {
	Password string `json:"password"`
}

// LoadPassword reads the SSH password from the given credentials file.
// The file must contain at least {"password": "..."}.
func LoadPassword(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf(
				"missing credentials file: %s. Create it with e.g. {\"password\": \"makerbase\"}", path)
		}
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	var creds credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if creds.Password == "" {
		return "", fmt.Errorf("invalid password in %s: expected non-empty 'password' field", path)
	}
	return creds.Password, nil
}
