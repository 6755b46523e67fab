package kie

import (
	"fmt"
	"os"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Asset is one unit of rule source registered with a Builder.
type Asset interface {
	// Name identifies the asset in logs and errors.
	Name() string

	// Content returns the asset's bytes.
	Content() ([]byte, error)
}

// Text returns an asset holding DRL text. The text is NFC-normalized.
func Text(s string) Asset {
	return textAsset(s)
}

// Bytes returns an asset holding raw rule source bytes, passed through unchanged.
func Bytes(b []byte) Asset {
	return bytesAsset(b)
}

// File returns an asset read from path when it is added.
func File(path string) Asset {
	return fileAsset(path)
}

// Files returns one File asset per path.
func Files(paths ...string) []Asset {
	out := make([]Asset, len(paths))
	for i, p := range paths {
		out[i] = File(p)
	}
	return out
}

type textAsset string

func (a textAsset) Name() string { return "text" }

func (a textAsset) Content() ([]byte, error) {
	s := string(a)
	if !utf8.ValidString(s) {
		return nil, ErrInvalidUTF8
	}
	return []byte(norm.NFC.String(s)), nil
}

type bytesAsset []byte

func (a bytesAsset) Name() string { return "bytes" }

func (a bytesAsset) Content() ([]byte, error) {
	return []byte(a), nil
}

type fileAsset string

func (a fileAsset) Name() string { return string(a) }

func (a fileAsset) Content() ([]byte, error) {
	data, err := os.ReadFile(string(a))
	if err != nil {
		return nil, fmt.Errorf("read asset: %w", err)
	}
	return data, nil
}
