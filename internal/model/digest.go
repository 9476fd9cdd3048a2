package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for content hashes. The version suffix allows a future
// change of the canonical form without colliding with old digests.
const (
	DomainDataset = "ecomgen/dataset/v1"
	DomainTable   = "ecomgen/table/v1"
	DomainConfig  = "ecomgen/config/v1"
)

// runNamespace is the UUIDv5 namespace of run identifiers.
var runNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/roach88/ecomgen/run"))

// hashWithDomain computes SHA256(domain + 0x00 + data) as hex.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// CanonicalTable serializes a table as a JSON array
// [name, [columns...], [[cells...]...]] with NFC-normalized strings and no
// HTML escaping. Equal tables always produce equal bytes.
func CanonicalTable(t Table) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	if err := writeCanonicalString(&buf, t.Name); err != nil {
		return nil, err
	}
	buf.WriteString(",[")
	for i, c := range t.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeCanonicalString(&buf, c.Name); err != nil {
			return nil, err
		}
	}
	buf.WriteString("],[")
	for r, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return nil, fmt.Errorf("%s row %d: %d cells for %d columns", t.Name, r, len(row), len(t.Columns))
		}
		if r > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('[')
		for i, cell := range row {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalString(&buf, cell); err != nil {
				return nil, fmt.Errorf("%s row %d: %w", t.Name, r, err)
			}
		}
		buf.WriteByte(']')
	}
	buf.WriteString("]]")
	return buf.Bytes(), nil
}

func writeCanonicalString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	// Encode appends a newline.
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'}))
	return nil
}

// TableDigest returns the content hash of one table.
func TableDigest(t Table) (string, error) {
	data, err := CanonicalTable(t)
	if err != nil {
		return "", fmt.Errorf("TableDigest: %w", err)
	}
	return hashWithDomain(DomainTable, data), nil
}

// Digest returns the content hash of the whole dataset: the dataset-domain
// hash of the table digests in schema order. Two runs with the same seed
// and configuration produce the same digest.
func (d *Dataset) Digest() (string, error) {
	var buf bytes.Buffer
	for _, t := range d.Tables() {
		td, err := TableDigest(t)
		if err != nil {
			return "", err
		}
		buf.WriteString(t.Name)
		buf.WriteByte('=')
		buf.WriteString(td)
		buf.WriteByte('\n')
	}
	return hashWithDomain(DomainDataset, buf.Bytes()), nil
}

// ConfigDigest returns the content hash of a serialized configuration.
func ConfigDigest(canonical []byte) string {
	return hashWithDomain(DomainConfig, canonical)
}

// RunID derives the run identifier from the seed and the configuration
// digest. Equal inputs give equal identifiers.
func RunID(seed uint64, configDigest string) string {
	return uuid.NewSHA1(runNamespace, fmt.Appendf(nil, "%d/%s", seed, configDigest)).String()
}
