package utils

import (
	"bytes"

	"github.com/BurntSushi/toml"
	"github.com/RaveNoX/go-jsonmerge"
	"gopkg.in/yaml.v3"
)

func TomlDecode(data string) (interface{}, error) {
	var out interface{}
	_, err := toml.Decode(data, &out)
	return out, err
}

func YamlDecode(data string) (interface{}, error) {
	var out interface{}
	if err := yaml.Unmarshal([]byte(data), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Merge deep-merges patch over data. Maps merge key by key; any other value
// in patch replaces the one in data.
func Merge(data, patch interface{}) (interface{}, error) {
	out, info := jsonmerge.Merge(data, patch)
	if len(info.Errors) > 0 {
		return nil, info.Errors[0]
	}
	return out, nil
}

func TomlEncode(in interface{}) (string, error) {
	buf := new(bytes.Buffer)
	if err := toml.NewEncoder(buf).Encode(in); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func YamlEncode(in interface{}) (string, error) {
	buf := new(bytes.Buffer)
	enc := yaml.NewEncoder(buf)
	enc.SetIndent(2)
	if err := enc.Encode(in); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
