package assets

import (
	"encoding/json"
	"fmt"
	"io"

	"asset-bank/core/asset"

	"github.com/tailscale/hujson"
)

// Data is a parsed JSON document.
type Data struct {
	base
	Value any
}

// Decode unmarshals the document into v.
func (d *Data) Decode(v any) error {
	raw, err := json.Marshal(d.Value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// LoadData parses JSON, tolerating comments and trailing commas.
func LoadData(r io.Reader, _ asset.Metadata) (asset.Asset, error) {
	var v any
	if err := decodeLenient(r, &v); err != nil {
		return nil, fmt.Errorf("load data: %w", err)
	}
	return &Data{Value: v}, nil
}

func decodeLenient(r io.Reader, v any) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	standard, err := hujson.Standardize(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(standard, v)
}

// Text is a plain text document.
type Text struct {
	base
	Content string
}

// LoadText reads the whole document.
func LoadText(r io.Reader, _ asset.Metadata) (asset.Asset, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("load text: %w", err)
	}
	return &Text{Content: string(raw)}, nil
}
