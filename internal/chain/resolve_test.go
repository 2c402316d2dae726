package chain

import (
	"encoding/json"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subforge/internal/condition"
	"subforge/internal/model"
	_ "subforge/internal/selectors/strategies"
)

func cond(field string, op condition.Operator, value string) condition.Group {
	return condition.Group{Logic: condition.LogicAnd, Conditions: []condition.Condition{{Field: field, Operator: op, Value: condition.Value(value)}}}
}

func testPool() []Candidate {
	nodes := []model.Node{
		{ID: "hk1", CountryCode: "HK", DelayMs: 200, DelayStatus: model.StatusSuccess},
		{ID: "hk2", CountryCode: "HK", DelayMs: 80, DelayStatus: model.StatusSuccess},
		{ID: "jp1", CountryCode: "JP", DelayMs: 150, DelayStatus: model.StatusSuccess},
		{ID: "us1", CountryCode: "US", DelayMs: 300, DelayStatus: model.StatusSuccess},
		{ID: "us2", CountryCode: "US", DelayMs: 250, DelayStatus: model.StatusSuccess},
	}
	out := make([]Candidate, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, Candidate{Node: n, Name: "node-" + n.ID})
	}
	return out
}

func TestEmptyChainIsNoop(t *testing.T) {
	res, err := Resolve(Chain{Target: Target{Kind: TargetSpecifiedNode, NodeID: "missing"}}, testPool(), Options{})
	require.NoError(t, err)
	assert.Empty(t, res.DialerProxy)
	assert.Empty(t, res.Groups)
}

func TestTwoCustomGroupsToSpecifiedNode(t *testing.T) {
	c := Chain{
		Hops: []Hop{
			{Payload: CustomGroup{GroupName: "Entry", NodeConditions: cond("country", condition.OpEquals, "HK")}},
			{Payload: CustomGroup{GroupName: "Relay", GroupType: "url-test", NodeConditions: cond("country", condition.OpEquals, "JP")}},
		},
		Target: Target{Kind: TargetSpecifiedNode, NodeID: "us1"},
	}
	res, err := Resolve(c, testPool(), Options{})
	require.NoError(t, err)

	require.Len(t, res.Groups, 2)
	assert.Equal(t, ProxyGroup{Name: "Entry", Type: "select", Proxies: []string{"node-hk1", "node-hk2"}}, res.Groups[0])
	assert.Equal(t, ProxyGroup{Name: "Relay", Type: "url-test", Proxies: []string{"node-jp1"}, URL: DefaultTestURL, Interval: DefaultInterval}, res.Groups[1])

	_, entryWired := res.Upstream("hk1")
	assert.False(t, entryWired)
	up, _ := res.Upstream("jp1")
	assert.Equal(t, "Entry", up)
	up, _ = res.Upstream("us1")
	assert.Equal(t, "Relay", up)
	_, ok := res.Upstream("us2")
	assert.False(t, ok)

	assert.Equal(t, []Identity{{Kind: IdentityGroup, Name: "Entry"}, {Kind: IdentityGroup, Name: "Relay"}}, res.Hops)
}

func TestTemplateGroupEntryAndTargetAll(t *testing.T) {
	c := Chain{
		Hops:   []Hop{{Payload: TemplateGroup{GroupName: "🚀 节点选择"}}, {Payload: SpecifiedNode{NodeID: "jp1"}}},
		Target: Target{Kind: TargetAll},
	}
	res, err := Resolve(c, testPool(), Options{TemplateGroups: []string{"🚀 节点选择"}})
	require.NoError(t, err)
	assert.Empty(t, res.Groups)
	assert.Equal(t, map[string]string{
		"jp1": "🚀 节点选择",
		"hk1": "node-jp1",
		"hk2": "node-jp1",
		"us1": "node-jp1",
		"us2": "node-jp1",
	}, res.DialerProxy)
}

func TestTemplateGroupValidation(t *testing.T) {
	c := Chain{Hops: []Hop{{Payload: TemplateGroup{GroupName: "Missing"}}}}
	_, err := Resolve(c, testPool(), Options{TemplateGroups: []string{"Proxy"}})
	require.ErrorIs(t, err, ErrUndefinedTemplateGroup)

	c = Chain{Hops: []Hop{{Payload: TemplateGroup{}}}}
	_, err = Resolve(c, testPool(), Options{})
	require.ErrorIs(t, err, ErrUndefinedTemplateGroup)
}

func TestTemplateGroupPastEntryIsCustomGroup(t *testing.T) {
	c := Chain{Hops: []Hop{
		{Payload: SpecifiedNode{NodeID: "hk1"}},
		{Payload: TemplateGroup{GroupName: "Relay"}},
	}}
	_, err := Resolve(c, testPool(), Options{})
	// the normalized custom group has no conditions, so it claims hk1 again
	require.ErrorIs(t, err, ErrNodeReused)

	var decoded Chain
	raw := `{"hops":[{"type":"specified_node","nodeId":"hk1"},{"type":"template_group","groupName":"Relay","nodeConditions":{"logic":"and","conditions":[{"field":"country","operator":"equals","value":"US"}]}}],"target":{"type":"conditions","conditions":{"conditions":[{"field":"country","operator":"equals","value":"JP"}]}}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	assert.Equal(t, KindCustomGroup, decoded.Hops[1].Kind())

	res, err := Resolve(decoded, testPool(), Options{})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"us1": "node-hk1", "us2": "node-hk1", "jp1": "Relay"}, res.DialerProxy)
}

func TestDynamicNodeModes(t *testing.T) {
	hk := cond("country", condition.OpEquals, "HK")
	for mode, want := range map[string]string{"first": "hk1", "fastest": "hk2", "": "hk1"} {
		c := Chain{Hops: []Hop{{Payload: DynamicNode{NodeConditions: hk, SelectMode: mode}}}, Target: Target{Kind: TargetSpecifiedNode, NodeID: "us1"}}
		res, err := Resolve(c, testPool(), Options{})
		require.NoError(t, err, mode)
		assert.Equal(t, want, res.Hops[0].NodeID, mode)
		assert.Equal(t, map[string]string{"us1": "node-" + want}, res.DialerProxy, mode)
	}
}

func TestDynamicRandomUsesInjectedSource(t *testing.T) {
	c := Chain{Hops: []Hop{{Payload: DynamicNode{NodeConditions: condition.Group{}, SelectMode: "random"}}}}
	pick := func(seed uint64) string {
		res, err := Resolve(c, testPool(), Options{Rand: rand.New(rand.NewPCG(seed, 1))})
		require.NoError(t, err)
		return res.Hops[0].NodeID
	}
	assert.Equal(t, pick(99), pick(99))
}

func TestStructuralFailures(t *testing.T) {
	none := cond("country", condition.OpEquals, "DE")
	tests := []struct {
		name  string
		chain Chain
		kind  error
		hop   int
	}{
		{"dangling hop", Chain{Hops: []Hop{{Payload: SpecifiedNode{NodeID: "gone"}}}}, ErrDanglingNode, 0},
		{"dangling target", Chain{Hops: []Hop{{Payload: SpecifiedNode{NodeID: "hk1"}}}, Target: Target{Kind: TargetSpecifiedNode, NodeID: "gone"}}, ErrDanglingNode, TargetHop},
		{"empty custom group", Chain{Hops: []Hop{{Payload: SpecifiedNode{NodeID: "hk1"}}, {Payload: CustomGroup{GroupName: "G", NodeConditions: none}}}}, ErrEmptyHop, 1},
		{"empty dynamic node", Chain{Hops: []Hop{{Payload: DynamicNode{NodeConditions: none}}}}, ErrEmptyHop, 0},
		{"unknown select mode", Chain{Hops: []Hop{{Payload: DynamicNode{SelectMode: "slowest"}}}}, ErrUnknownSelectMode, 0},
		{"target in chain", Chain{Hops: []Hop{{Payload: SpecifiedNode{NodeID: "hk1"}}}, Target: Target{Kind: TargetSpecifiedNode, NodeID: "hk1"}}, ErrTargetInChain, TargetHop},
		{"group name equals node name", Chain{Hops: []Hop{{Payload: CustomGroup{GroupName: "node-hk1"}}}}, ErrNameConflict, 0},
		{"too many hops", Chain{Hops: make([]Hop, 5)}, ErrTooManyHops, MaxHops},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Resolve(tt.chain, testPool(), Options{})
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, tt.kind), err.Error())
			var re *ResolveError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, tt.hop, re.Hop)
		})
	}
}

func TestDefaultGroupName(t *testing.T) {
	c := Chain{Hops: []Hop{
		{Payload: SpecifiedNode{NodeID: "us1"}},
		{Payload: CustomGroup{NodeConditions: cond("country", condition.OpEquals, "JP")}},
	}}
	res, err := Resolve(c, testPool(), Options{})
	require.NoError(t, err)
	assert.Equal(t, "Chain-2", res.Groups[0].Name)
	assert.Equal(t, "node-us1", res.DialerProxy["jp1"])
}

func TestResolveDoesNotMutatePool(t *testing.T) {
	pool := testPool()
	c := Chain{Hops: []Hop{{Payload: CustomGroup{GroupName: "G", NodeConditions: cond("country", condition.OpEquals, "HK")}}}}
	_, err := Resolve(c, pool, Options{})
	require.NoError(t, err)
	assert.Equal(t, testPool(), pool)
}

func TestChainJSONRoundTripKeepsPosition(t *testing.T) {
	raw := `{"hops":[{"type":"dynamic_node","selectMode":"fastest","nodeConditions":{"logic":"or","conditions":[]},"position":{"x":120,"y":40}}],"target":{"type":"all"}}`
	var c Chain
	require.NoError(t, json.Unmarshal([]byte(raw), &c))
	require.Len(t, c.Hops, 1)
	assert.JSONEq(t, `{"x":120,"y":40}`, string(c.Hops[0].Position))
	dn, ok := c.Hops[0].Payload.(DynamicNode)
	require.True(t, ok)
	assert.Equal(t, "fastest", dn.SelectMode)
	assert.Equal(t, condition.LogicOr, dn.NodeConditions.Logic)

	out, err := json.Marshal(c)
	require.NoError(t, err)
	var back Chain
	require.NoError(t, json.Unmarshal(out, &back))
	assert.JSONEq(t, `{"x":120,"y":40}`, string(back.Hops[0].Position))
	assert.Equal(t, TargetAll, back.Target.Kind)
}

func TestChainJSONRejectsUnknownKinds(t *testing.T) {
	var c Chain
	require.Error(t, json.Unmarshal([]byte(`{"hops":[{"type":"teleport"}]}`), &c))
	require.Error(t, json.Unmarshal([]byte(`{"hops":[],"target":{"type":"some"}}`), &c))
}
