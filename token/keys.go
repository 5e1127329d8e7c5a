package token

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// KeySource provides the JSON Web Key Set document published at the key set
// endpoint.
type KeySource interface {
	Document() []byte
}

// StaticKeys serves a fixed key set document, typically loaded from disk at
// startup. This server signs nothing itself; the published set exists so
// relying parties that fetch the endpoint get a well formed answer.
type StaticKeys struct {
	document []byte
}

var _ KeySource = (*StaticKeys)(nil)

var emptyKeySet = []byte(`{"keys":[]}`)

// NewStaticKeys validates the document and wraps it. An empty document
// yields a key set with no keys.
func NewStaticKeys(document []byte) (*StaticKeys, error) {
	if len(document) == 0 {
		return &StaticKeys{document: emptyKeySet}, nil
	}

	var doc struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.Unmarshal(document, &doc); err != nil {
		return nil, errors.Wrap(err, "[NewStaticKeys] parsing key set document")
	}
	if doc.Keys == nil {
		return nil, errors.New("[NewStaticKeys] key set document has no keys member")
	}

	return &StaticKeys{document: document}, nil
}

// LoadStaticKeys reads a key set document from path. An empty path yields a
// key set with no keys.
func LoadStaticKeys(path string) (*StaticKeys, error) {
	if path == "" {
		return NewStaticKeys(nil)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "[LoadStaticKeys] reading key set document")
	}
	return NewStaticKeys(raw)
}

// Document returns the raw key set JSON.
func (s *StaticKeys) Document() []byte {
	return s.document
}
