package dedupe

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subforge/internal/model"
)

func names(nodes []model.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.OriginalName)
	}
	return out
}

func nodes() []model.Node {
	return []model.Node{
		{ID: "1", OriginalName: "a", Protocol: model.ProtocolVMess, Server: "1.1.1.1", Port: 443},
		{ID: "2", OriginalName: "b", Protocol: model.ProtocolVMess, Server: "1.1.1.1", Port: 443},
		{ID: "3", OriginalName: "c", Protocol: model.ProtocolTrojan, Server: "1.1.1.1", Port: 443},
		{ID: "4", OriginalName: "d", Protocol: model.ProtocolTrojan, Server: "2.2.2.2", Port: 443},
		{ID: "5", OriginalName: "e", Protocol: model.ProtocolShadowsocks, Server: "2.2.2.2", Port: 443},
		{ID: "6", OriginalName: "f", Protocol: model.ProtocolShadowsocks, Server: "2.2.2.2", Port: 443},
	}
}

func TestNoneIsPassthrough(t *testing.T) {
	out := Dedupe(nodes(), Config{Mode: ModeNone})
	assert.Equal(t, nodes(), out)
}

func TestCommonServerPortKeepsFirst(t *testing.T) {
	in := []model.Node{
		{ID: "x", OriginalName: "香港 A", Server: "hk.example.com", Port: 8388},
		{ID: "y", OriginalName: "香港 B", Server: "hk.example.com", Port: 8388},
	}
	out := Dedupe(in, Config{Mode: ModeCommon, CommonFields: []string{"server", "port"}})
	require.Len(t, out, 1)
	assert.Equal(t, "x", out[0].ID)
}

func TestCommonAcrossProtocols(t *testing.T) {
	out := Dedupe(nodes(), Config{Mode: ModeCommon, CommonFields: []string{"server", "port"}})
	assert.Equal(t, []string{"a", "d"}, names(out))
}

func TestCommonWithoutFieldsIsPassthrough(t *testing.T) {
	assert.Len(t, Dedupe(nodes(), Config{Mode: ModeCommon}), 6)
}

func TestMissingFieldIsEmptyNotEqualToOtherField(t *testing.T) {
	in := []model.Node{
		{ID: "1", Server: "", Group: "g"},
		{ID: "2", Server: "g", Group: ""},
	}
	out := Dedupe(in, Config{Mode: ModeCommon, CommonFields: []string{"server", "group"}})
	assert.Len(t, out, 2)

	in = []model.Node{{ID: "1"}, {ID: "2"}}
	out = Dedupe(in, Config{Mode: ModeCommon, CommonFields: []string{"nonexistent"}})
	assert.Len(t, out, 1)
}

func TestProtocolModeOnlyConfiguredProtocols(t *testing.T) {
	cfg := Config{Mode: ModeProtocol, ProtocolRules: map[string][]string{
		"vmess":  {"server", "port"},
		"trojan": {},
	}}
	out := Dedupe(nodes(), cfg)
	// vmess collapses, trojan has an empty rule and ss has none: both pass through
	assert.Equal(t, []string{"a", "c", "d", "e", "f"}, names(out))
}

func TestProtocolModeKeySpacesAreSeparate(t *testing.T) {
	cfg := Config{Mode: ModeProtocol, ProtocolRules: map[string][]string{
		"VMess":  {"server"},
		"Trojan": {"server"},
		"ss":     {"server", "port"},
	}}
	out := Dedupe(nodes(), cfg)
	assert.Equal(t, []string{"a", "c", "d", "e"}, names(out))
}

func TestDedupeIsIdempotent(t *testing.T) {
	cfg := Config{Mode: ModeCommon, CommonFields: []string{"server"}}
	once := Dedupe(nodes(), cfg)
	assert.Equal(t, once, Dedupe(once, cfg))
}

func TestUnmarshalConfig(t *testing.T) {
	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(`{"mode":"protocol","protocolRules":{"vmess":["server","port"]}}`), &cfg))
	assert.Equal(t, ModeProtocol, cfg.Mode)
	assert.Equal(t, []string{"server", "port"}, cfg.ProtocolRules["vmess"])

	require.NoError(t, json.Unmarshal([]byte(`{}`), &cfg))
	assert.Equal(t, ModeNone, cfg.Mode)

	require.Error(t, json.Unmarshal([]byte(`{"mode":"fuzzy"}`), &cfg))
}
