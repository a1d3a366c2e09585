package store

import (
	"io"

	"github.com/soyeahso/shaperelay/internal/activation"
	"github.com/soyeahso/shaperelay/internal/logging"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenBackend returns the activation backend named by kind ("json" or
// "sqlite") at path. The closer releases the database, if one was opened.
func OpenBackend(kind, path string, log *logging.Logger) (activation.Backend, io.Closer, error) {
	if kind == "sqlite" {
		db, err := Open(path, log)
		if err != nil {
			return nil, nil, err
		}
		return NewActiveChannels(db), db, nil
	}
	return NewJSONFile(path), nopCloser{}, nil
}
