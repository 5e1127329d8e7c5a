package clients

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// LoadSeedFile reads a JSON array of clients from path. Entries without a
// type are classified from the presence of a secret, entries without a
// creation time are stamped with now.
func LoadSeedFile(path string, now time.Time) ([]*Client, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("[LoadSeedFile] reading seed file: %w", err)
	}

	var seeded []*Client
	if err := json.Unmarshal(raw, &seeded); err != nil {
		return nil, fmt.Errorf("[LoadSeedFile] parsing seed file: %w", err)
	}

	for i, client := range seeded {
		if client.ID == "" {
			return nil, fmt.Errorf("[LoadSeedFile] entry %d: client id is required", i)
		}
		if len(client.RedirectURIs) == 0 {
			return nil, fmt.Errorf("[LoadSeedFile] client %q: %w", client.ID, ErrNoRedirectURIs)
		}
		for _, uri := range client.RedirectURIs {
			if err := ValidateRedirectURI(uri); err != nil {
				return nil, fmt.Errorf("[LoadSeedFile] client %q: %w: %s", client.ID, err, uri)
			}
		}
		switch client.Type {
		case ClientTypeConfidential, ClientTypePublic:
		case "":
			if client.Secret == "" {
				client.Type = ClientTypePublic
			} else {
				client.Type = ClientTypeConfidential
			}
		default:
			return nil, fmt.Errorf("[LoadSeedFile] client %q: unknown type %q", client.ID, client.Type)
		}
		if client.Type == ClientTypeConfidential && client.Secret == "" {
			return nil, fmt.Errorf("[LoadSeedFile] client %q: confidential client needs a secret", client.ID)
		}
		if client.CreatedAt.IsZero() {
			client.CreatedAt = now
		}
	}

	return seeded, nil
}
