// Package bonkmap wraps the map catalog entries a client works with. All
// variants carry the same compressed blob the editor produces; decoding
// is deferred until asked for and cached.
package bonkmap

import (
	"context"
	"sync"

	"github.com/Safizapi/bonk-bot/codec"
)

// Map is a catalog entry whose blob can be decoded to a full document.
type Map interface {
	ID() int
	Name() string
	Author() string
	EncodedData() string
	Decode() (*codec.MapDocument, error)
}

// decoded caches a blob decode so repeat calls do not re-walk the
// physics tables.
type decoded struct {
	once sync.Once
	doc  *codec.MapDocument
	err  error
}

func (d *decoded) get(blob string) (*codec.MapDocument, error) {
	d.once.Do(func() {
		d.doc, d.err = codec.DecodeMap(blob)
	})
	return d.doc, d.err
}

// Deleter removes an owned map from the account's storage.
type Deleter interface {
	DeleteMap(ctx context.Context, mapID int) error
}

// AccountMap is a map owned by the logged-in account.
type AccountMap struct {
	MapID        int
	MapName      string
	AuthorName   string
	Blob         string
	CreationDate string
	Published    bool
	VotesUp      int
	VotesDown    int

	deleter Deleter
	dec     decoded
}

// NewAccountMap binds an owned map to the API surface that can delete it.
func NewAccountMap(deleter Deleter, m AccountMap) *AccountMap {
	m.deleter = deleter
	return &m
}

func (m *AccountMap) ID() int             { return m.MapID }
func (m *AccountMap) Name() string        { return m.MapName }
func (m *AccountMap) Author() string      { return m.AuthorName }
func (m *AccountMap) EncodedData() string { return m.Blob }

func (m *AccountMap) Decode() (*codec.MapDocument, error) { return m.dec.get(m.Blob) }

// Delete removes the map from the account's storage.
func (m *AccountMap) Delete(ctx context.Context) error {
	return m.deleter.DeleteMap(ctx, m.MapID)
}

// CatalogMap is a published map from the public catalog.
type CatalogMap struct {
	MapID         int
	MapName       string
	AuthorName    string
	Blob          string
	PublishedDate string
	VotesUp       int
	VotesDown     int

	dec decoded
}

func (m *CatalogMap) ID() int             { return m.MapID }
func (m *CatalogMap) Name() string        { return m.MapName }
func (m *CatalogMap) Author() string      { return m.AuthorName }
func (m *CatalogMap) EncodedData() string { return m.Blob }

func (m *CatalogMap) Decode() (*codec.MapDocument, error) { return m.dec.get(m.Blob) }

// LegacyMap is a map from the original game's catalog. Its blob uses the
// same container but an early format version.
type LegacyMap struct {
	MapID        int
	MapName      string
	AuthorName   string
	Blob         string
	CreationDate string
	ModifiedDate string
	VotesUp      int
	VotesDown    int

	dec decoded
}

func (m *LegacyMap) ID() int             { return m.MapID }
func (m *LegacyMap) Name() string        { return m.MapName }
func (m *LegacyMap) Author() string      { return m.AuthorName }
func (m *LegacyMap) EncodedData() string { return m.Blob }

func (m *LegacyMap) Decode() (*codec.MapDocument, error) { return m.dec.get(m.Blob) }

// EphemeralMap is a map seen only inside a room: a map-change push or a
// suggestion. It has no catalog identity beyond what its metadata block
// carries.
type EphemeralMap struct {
	MapName    string
	AuthorName string
	Blob       string

	dec decoded
}

func (m *EphemeralMap) ID() int             { return -1 }
func (m *EphemeralMap) Name() string        { return m.MapName }
func (m *EphemeralMap) Author() string      { return m.AuthorName }
func (m *EphemeralMap) EncodedData() string { return m.Blob }

func (m *EphemeralMap) Decode() (*codec.MapDocument, error) { return m.dec.get(m.Blob) }

// FromEncoded builds an EphemeralMap by decoding the blob's metadata
// block for its display fields.
func FromEncoded(blob string) (*EphemeralMap, error) {
	meta, err := codec.DecodeMapMetadata(blob)
	if err != nil {
		return nil, err
	}
	return &EphemeralMap{MapName: meta.Name, AuthorName: meta.Author, Blob: blob}, nil
}
