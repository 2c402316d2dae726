package model

import (
	"strconv"
	"strings"
	"time"
)

type Protocol string

const (
	ProtocolShadowsocks  Protocol = "SS"
	ProtocolShadowsocksR Protocol = "SSR"
	ProtocolVMess        Protocol = "VMess"
	ProtocolVLESS        Protocol = "VLESS"
	ProtocolTrojan       Protocol = "Trojan"
	ProtocolHysteria     Protocol = "Hysteria"
	ProtocolHysteria2    Protocol = "Hysteria2"
	ProtocolTUIC         Protocol = "TUIC"
	ProtocolWireGuard    Protocol = "WireGuard"
	ProtocolAnyTLS       Protocol = "AnyTLS"
	ProtocolSocks5       Protocol = "SOCKS5"
	ProtocolHTTP         Protocol = "HTTP"
)

var knownProtocols = []Protocol{
	ProtocolShadowsocks, ProtocolShadowsocksR, ProtocolVMess, ProtocolVLESS,
	ProtocolTrojan, ProtocolHysteria, ProtocolHysteria2, ProtocolTUIC,
	ProtocolWireGuard, ProtocolAnyTLS, ProtocolSocks5, ProtocolHTTP,
}

// ParseProtocol maps the usual spellings ("ss", "shadowsocks", "hy2", "vmess")
// onto the canonical constant. Unknown names are returned unchanged.
func ParseProtocol(s string) Protocol {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "shadowsocks":
		return ProtocolShadowsocks
	case "shadowsocksr":
		return ProtocolShadowsocksR
	case "hy2":
		return ProtocolHysteria2
	case "hy":
		return ProtocolHysteria
	case "socks", "socks5":
		return ProtocolSocks5
	case "https":
		return ProtocolHTTP
	}
	for _, p := range knownProtocols {
		if strings.EqualFold(string(p), s) {
			return p
		}
	}
	return Protocol(s)
}

type Status string

const (
	StatusUntested Status = "untested"
	StatusSuccess  Status = "success"
	StatusTimeout  Status = "timeout"
	StatusError    Status = "error"
)

func ParseStatus(s string) (Status, bool) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusUntested, StatusSuccess, StatusTimeout, StatusError:
		return st, true
	case "":
		return StatusUntested, true
	}
	return "", false
}

// Node is one candidate proxy as stored in the pool. It is treated as
// immutable by every pipeline stage.
type Node struct {
	ID           string   `gorm:"primaryKey" yaml:"id" json:"id"`
	Sort         int      `gorm:"index" yaml:"-" json:"-"`
	Name         string   `yaml:"name" json:"name"`                   // system label
	OriginalName string   `yaml:"original_name" json:"originalName"` // name as published upstream
	Protocol     Protocol `gorm:"index" yaml:"protocol" json:"protocol"`
	Group        string   `yaml:"group" json:"group"`
	Source       string   `gorm:"index" yaml:"source" json:"source"`
	Tags         []string `gorm:"serializer:json" yaml:"tags" json:"tags"`
	CountryCode  string   `yaml:"country" json:"countryCode"`

	Server string `yaml:"server" json:"server"`
	Port   int    `yaml:"port" json:"port"`

	DelayMs     int     `yaml:"delay_ms" json:"delayMs"`
	SpeedMBs    float64 `yaml:"speed_mbs" json:"speedMBs"`
	DelayStatus Status  `yaml:"delay_status" json:"delayStatus"`
	SpeedStatus Status  `yaml:"speed_status" json:"speedStatus"`

	// Link is the opaque upstream payload (share link or clash mapping).
	Link string `yaml:"link" json:"link"`

	CreatedAt time.Time `yaml:"-" json:"-"`
	UpdatedAt time.Time `yaml:"-" json:"-"`
}

// Field returns the textual value of a named attribute. The second result is
// false when the node has no such attribute.
func (n Node) Field(name string) (string, bool) {
	switch name {
	case "id":
		return n.ID, true
	case "name", "node_name":
		return n.Name, true
	case "original_name", "link_name":
		return n.OriginalName, true
	case "protocol", "type":
		return string(n.Protocol), true
	case "group", "tag_group":
		return n.Group, true
	case "source":
		return n.Source, true
	case "tags":
		return strings.Join(n.Tags, "|"), true
	case "tag":
		if len(n.Tags) == 0 {
			return "", true
		}
		return n.Tags[0], true
	case "country", "country_code":
		return n.CountryCode, true
	case "server":
		return n.Server, true
	case "port":
		if n.Port == 0 {
			return "", true
		}
		return strconv.Itoa(n.Port), true
	case "delay_time":
		return strconv.Itoa(n.DelayMs), true
	case "speed":
		return strconv.FormatFloat(n.SpeedMBs, 'f', -1, 64), true
	case "delay_status":
		return string(n.DelayStatus), true
	case "speed_status":
		return string(n.SpeedStatus), true
	case "link":
		return n.Link, true
	}
	return "", false
}

func (n Node) HasTag(tag string) bool {
	for _, t := range n.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Subscription is the persisted rule configuration of one subscription.
// Multi-value sets are comma-joined, structured rules are JSON text.
type Subscription struct {
	ID   uint   `gorm:"primaryKey" yaml:"-"`
	Name string `gorm:"uniqueIndex" yaml:"name"`

	Sources string `yaml:"sources"`

	CountryWhitelist  string `yaml:"country_whitelist"`
	CountryBlacklist  string `yaml:"country_blacklist"`
	TagWhitelist      string `yaml:"tag_whitelist"`
	TagBlacklist      string `yaml:"tag_blacklist"`
	ProtocolWhitelist string `yaml:"protocol_whitelist"`
	ProtocolBlacklist string `yaml:"protocol_blacklist"`
	NameWhitelist     string `yaml:"name_whitelist"`
	NameBlacklist     string `yaml:"name_blacklist"`
	NodeConditions    string `yaml:"node_conditions"`
	FilterOrder       string `yaml:"filter_order"`

	DelayTimeMax int     `yaml:"delay_time_max"`
	MinSpeed     float64 `yaml:"min_speed"`

	DedupConfig     string `yaml:"dedup_config"`
	PreprocessRules string `yaml:"preprocess_rules"`
	NameTemplate    string `yaml:"name_template"`
	ProxyChain      string `yaml:"proxy_chain"`

	CreatedAt time.Time `yaml:"-"`
	UpdatedAt time.Time `yaml:"-"`
}
