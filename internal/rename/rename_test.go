package rename

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subforge/internal/model"
)

func TestPreprocessRegexStripsPrefix(t *testing.T) {
	rules := []PreprocessRule{{MatchMode: MatchRegex, Pattern: "^github-", Replacement: "", Enabled: true}}
	assert.Equal(t, "香港节点-01", Preprocess("github-香港节点-01", rules))
}

func TestPreprocessOrderAndModes(t *testing.T) {
	rules := []PreprocessRule{
		{MatchMode: MatchText, Pattern: "节点", Replacement: "", Enabled: true},
		{MatchMode: MatchRegex, Pattern: `(\d+)$`, Replacement: "#$1", Enabled: true},
		{MatchMode: MatchText, Pattern: "香港", Replacement: "HK", Enabled: false},
		{MatchMode: MatchText, Pattern: "", Replacement: "x", Enabled: true},
	}
	assert.Equal(t, "香港-#01", Preprocess("香港节点-01", rules))
}

func TestPreprocessInvalidRegexIsNoop(t *testing.T) {
	rules := []PreprocessRule{{MatchMode: MatchRegex, Pattern: "([", Replacement: "", Enabled: true}}
	assert.Equal(t, "github-香港节点-01", Preprocess("github-香港节点-01", rules))
}

func TestPreprocessTextReplacesAll(t *testing.T) {
	rules := []PreprocessRule{{MatchMode: MatchText, Pattern: "-", Replacement: " ", Enabled: true}}
	assert.Equal(t, "a b c", Preprocess("a-b-c", rules))
}

func TestRenderScenario(t *testing.T) {
	ctx := Context{Name: "Test", Protocol: "VMess", Country: "HK"}
	assert.Equal(t, "[VMess]HK-Test", Render("[$Protocol]$LinkCountry-$Name", ctx))
}

func TestRenderAllTokens(t *testing.T) {
	ctx := Context{
		Name: "sys", LinkName: "link", Country: "JP", SpeedMBs: 12.346, DelayMs: 87,
		Group: "grp", Source: "src", Protocol: "Trojan", Tags: []string{"a", "b"}, Index: 7,
	}
	got := Render("$Index|$Flag|$Name|$LinkName|$LinkCountry|$Speed|$Delay|$Group|$Source|$Protocol|$Tags|$Tag", ctx)
	assert.Equal(t, "7|🇯🇵|sys|link|JP|12.35MB/s|87ms|grp|src|Trojan|a|b|a", got)
}

func TestRenderUnknownTokensStayLiteral(t *testing.T) {
	ctx := Context{Name: "n", Tags: nil}
	assert.Equal(t, "$Foo n $ $$ $Tag", Render("$Foo $Name $ $$ $Tag", Context{Name: "n", Tags: []string{"$Tag"}}))
	assert.Equal(t, "price: $5", Render("price: $5", ctx))
}

func TestRenderLiteralTemplate(t *testing.T) {
	for _, ctx := range []Context{{}, {Name: "x", Country: "US", Index: 3}} {
		assert.Equal(t, "固定名称", Render("固定名称", ctx))
	}
}

func TestRenderEmptyTemplateFallsBack(t *testing.T) {
	assert.Equal(t, "香港节点-01", Render("", Context{LinkName: "香港节点-01", Name: "other"}))
}

func TestFlag(t *testing.T) {
	assert.Equal(t, "🇭🇰", Flag("HK"))
	assert.Equal(t, "🇺🇸", Flag("us"))
	assert.Equal(t, Flag("CN"), Flag("TW"))
	assert.Equal(t, "🌐", Flag(""))
	assert.Equal(t, "🌐", Flag("XYZ"))
	assert.Equal(t, "🌐", Flag("1A"))
}

func TestApplyIndexesAndUniqueNames(t *testing.T) {
	nodes := []model.Node{
		{ID: "a", OriginalName: "github-HK", CountryCode: "HK"},
		{ID: "b", OriginalName: "github-HK", CountryCode: "HK"},
		{ID: "c", OriginalName: "github-JP", CountryCode: "JP"},
		{ID: "d", OriginalName: "github-HK", CountryCode: "HK"},
	}
	opts := Options{
		Template:    "$LinkName",
		Preprocess:  []PreprocessRule{{MatchMode: MatchRegex, Pattern: "^github-", Enabled: true}},
		UniqueNames: true,
	}
	got := Apply(nodes, opts)
	require.Len(t, got, 4)
	assert.Equal(t, []string{"HK", "HK 2", "JP", "HK 3"}, []string{got[0].DisplayName, got[1].DisplayName, got[2].DisplayName, got[3].DisplayName})
	assert.Equal(t, 3, got[2].Index)
	assert.Equal(t, "JP", got[2].LinkName)

	opts.UniqueNames = false
	opts.Template = "$Index-$LinkCountry"
	got = Apply(nodes, opts)
	assert.Equal(t, "4-HK", got[3].DisplayName)
}

func TestPreprocessRuleDefaults(t *testing.T) {
	var rules []PreprocessRule
	require.NoError(t, json.Unmarshal([]byte(`[{"matchMode":"regex","pattern":"^x","replacement":""}]`), &rules))
	assert.True(t, rules[0].Enabled)
	require.Error(t, json.Unmarshal([]byte(`[{"matchMode":"wild"}]`), &rules))
}
