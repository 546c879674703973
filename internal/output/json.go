package output

import (
	"encoding/json"

	"github.com/zycxfyh/nexus-verse/internal/ailink"
)

// JSONFormatter renders results as JSON. Credentials never serialize.
type JSONFormatter struct {
	Indent bool
}

// FormatConfigurations renders configurations as a JSON array.
func (f *JSONFormatter) FormatConfigurations(configs []ailink.Configuration) (string, error) {
	if configs == nil {
		configs = []ailink.Configuration{}
	}
	return f.marshal(configs)
}

// FormatProvider renders the provider descriptor as JSON.
func (f *JSONFormatter) FormatProvider(provider *ailink.Provider) (string, error) {
	if provider == nil {
		return "", nil
	}
	return f.marshal(provider)
}

func (f *JSONFormatter) marshal(value any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(value, "", "  ")
	} else {
		data, err = json.Marshal(value)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
