package publishers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"subforge/internal/chain"
	"subforge/internal/pipeline"
)

// Proxy is one published node. Field names follow the Clash proxy list so
// the document can be merged into a client template.
type Proxy struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Server      string `json:"server,omitempty" yaml:"server,omitempty"`
	Port        int    `json:"port,omitempty" yaml:"port,omitempty"`
	Country     string `json:"country,omitempty" yaml:"country,omitempty"`
	DialerProxy string `json:"dialer-proxy,omitempty" yaml:"dialer-proxy,omitempty"`
	Link        string `json:"link,omitempty" yaml:"link,omitempty"`
}

type Document struct {
	Subscription string             `json:"subscription" yaml:"subscription"`
	GeneratedAt  time.Time          `json:"generated-at" yaml:"generated-at"`
	Proxies      []Proxy            `json:"proxies" yaml:"proxies"`
	ProxyGroups  []chain.ProxyGroup `json:"proxy-groups,omitempty" yaml:"proxy-groups,omitempty"`
}

func NewDocument(res *pipeline.Result) *Document {
	doc := &Document{
		Subscription: res.Plan,
		GeneratedAt:  time.Now().UTC().Truncate(time.Second),
		Proxies:      make([]Proxy, 0, len(res.Nodes)),
		ProxyGroups:  res.Groups,
	}
	for _, out := range res.Nodes {
		doc.Proxies = append(doc.Proxies, Proxy{
			Name:        out.DisplayName,
			Type:        strings.ToLower(string(out.Node.Protocol)),
			Server:      out.Node.Server,
			Port:        out.Node.Port,
			Country:     out.Node.CountryCode,
			DialerProxy: out.DialerProxy,
			Link:        out.Node.Link,
		})
	}
	return doc
}

// Render serialises doc using the "format" param ("yaml" by default, or
// "json"). With "base64" set the result is base64 encoded.
func Render(doc *Document, config map[string]interface{}) (string, error) {
	format, _ := config["format"].(string)

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(format) {
	case "", "yaml", "yml":
		data, err = yaml.Marshal(doc)
	case "json":
		data, err = json.MarshalIndent(doc, "", "  ")
	default:
		return "", fmt.Errorf("unknown output format '%s'", format)
	}
	if err != nil {
		return "", fmt.Errorf("failed to render subscription '%s': %w", doc.Subscription, err)
	}

	useBase64, _ := config["base64"].(bool)
	if useBase64 {
		return base64.StdEncoding.EncodeToString(data), nil
	}
	return string(data), nil
}
