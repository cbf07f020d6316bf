// Package storagesvc persists rendered documents, on the local disk or on Alibaba Cloud OSS.
package storagesvc

import (
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/reportcard"
)

const (
	StoreLocal = "local"
	StoreOSS   = "oss"
)

var ErrInvalidName = errors.New("invalid document name")

// NewDocumentStore returns the store of the configured kind.
func NewDocumentStore(conf *core.Config) (reportcard.DocumentStore, error) {
	switch conf.Documents.Store {
	case StoreLocal, "":
		return NewLocalStore(conf.Documents.Root)
	case StoreOSS:
		return NewOSSStore(conf.Documents)
	default:
		return nil, errors.Errorf("unsupported document store %q", conf.Documents.Store)
	}
}

// cleanName validates a slash separated relative name, e.g. report_cards/s1/2023-2024_first-term_0a1b2c3d.pdf.
func cleanName(name string) (string, error) {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, `\`) {
		return "", errors.Wrap(ErrInvalidName, name)
	}
	clean := path.Clean(name)
	if clean != name || clean == "." || strings.HasPrefix(clean, "../") || clean == ".." {
		return "", errors.Wrap(ErrInvalidName, name)
	}
	return clean, nil
}
