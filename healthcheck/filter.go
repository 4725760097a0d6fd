// Copyright 2025 Patrick J. Scruggs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package healthcheck classifies load balancer and orchestrator probes so the
// otlphttp and otlpgrpc middleware can tag, demote or drop their completion
// records instead of shipping one record per probe.
package healthcheck

import (
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/pjscruggs/slogotlp/otlp"
)

// Mode describes how matched probe traffic is treated.
type Mode string

const (
	// ModeTag keeps the record and adds TagKey=true.
	ModeTag Mode = "tag"
	// ModeDemote lowers the record level to DemoteTo and tags it.
	ModeDemote Mode = "demote"
	// ModeDrop suppresses the completion record.
	ModeDrop Mode = "drop"
)

// DefaultTagKey is the attribute added to matched records.
const DefaultTagKey = "health_check"

// Config lists the signals that identify probe traffic.
type Config struct {
	Mode     Mode
	TagKey   string
	DemoteTo otlp.Level

	// Paths are exact HTTP URL paths; PathPrefixes match with strings.HasPrefix.
	Paths        []string
	PathPrefixes []string

	// Methods are full gRPC method names such as "/grpc.health.v1.Health/Check".
	Methods        []string
	MethodPrefixes []string

	UserAgentPatterns []*regexp.Regexp

	// RemoteCIDRs match the peer address and, for HTTP, the first
	// X-Forwarded-For entry.
	RemoteCIDRs []*net.IPNet
}

// DefaultConfig returns a demote-mode configuration covering the usual
// Kubernetes probe paths and the standard gRPC health service.
func DefaultConfig() Config {
	return Config{
		Mode:              ModeDemote,
		TagKey:            DefaultTagKey,
		DemoteTo:          otlp.LevelDebug,
		Paths:             []string{"/healthz", "/readyz", "/livez"},
		Methods:           []string{"/grpc.health.v1.Health/Check", "/grpc.health.v1.Health/Watch"},
		UserAgentPatterns: []*regexp.Regexp{regexp.MustCompile(`^kube-probe/`)},
	}
}

// Decision is the outcome of matching one request.
type Decision struct {
	Matched  bool
	Mode     Mode
	TagKey   string
	DemoteTo otlp.Level
}

// Drop reports whether the completion record should be suppressed.
func (d Decision) Drop() bool {
	return d.Matched && d.Mode == ModeDrop
}

// Args returns the tag attribute as key/value args, or nil.
func (d Decision) Args() []any {
	if !d.Matched || d.Mode == ModeDrop || d.TagKey == "" {
		return nil
	}
	return []any{d.TagKey, true}
}

// ApplyLevel lowers level to the demote target for matched demote decisions.
// Levels already at or below the target are returned unchanged.
func (d Decision) ApplyLevel(level otlp.Level) otlp.Level {
	if !d.Matched || d.Mode != ModeDemote {
		return level
	}
	return min(level, d.DemoteTo)
}

// Filter matches requests against a Config. A nil *Filter matches nothing.
type Filter struct {
	cfg         Config
	pathExact   map[string]struct{}
	methodExact map[string]struct{}
}

// NewFilter prepares a Filter. An empty Mode defaults to ModeTag and an empty
// TagKey to DefaultTagKey.
func NewFilter(cfg Config) *Filter {
	if cfg.Mode == "" {
		cfg.Mode = ModeTag
	}
	if cfg.TagKey == "" {
		cfg.TagKey = DefaultTagKey
	}
	return &Filter{
		cfg:         cfg,
		pathExact:   toSet(cfg.Paths),
		methodExact: toSet(cfg.Methods),
	}
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

// MatchHTTP classifies an HTTP request.
func (f *Filter) MatchHTTP(r *http.Request) Decision {
	if f == nil || r == nil || r.URL == nil {
		return Decision{}
	}
	if _, ok := f.pathExact[r.URL.Path]; ok {
		return f.decision()
	}
	if hasPrefix(r.URL.Path, f.cfg.PathPrefixes) {
		return f.decision()
	}
	if f.matchUserAgent(r.UserAgent()) {
		return f.decision()
	}
	if f.matchIP(r.RemoteAddr) || f.matchIP(firstForwardedIP(r.Header.Values("X-Forwarded-For"))) {
		return f.decision()
	}
	return Decision{}
}

// MatchGRPC classifies a gRPC call by method, user agent and peer address.
func (f *Filter) MatchGRPC(fullMethod, userAgent, peerAddr string) Decision {
	if f == nil {
		return Decision{}
	}
	if _, ok := f.methodExact[fullMethod]; ok {
		return f.decision()
	}
	if hasPrefix(fullMethod, f.cfg.MethodPrefixes) {
		return f.decision()
	}
	if f.matchUserAgent(userAgent) || f.matchIP(peerAddr) {
		return f.decision()
	}
	return Decision{}
}

func (f *Filter) decision() Decision {
	return Decision{
		Matched:  true,
		Mode:     f.cfg.Mode,
		TagKey:   f.cfg.TagKey,
		DemoteTo: f.cfg.DemoteTo,
	}
}

func hasPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func (f *Filter) matchUserAgent(ua string) bool {
	if ua == "" {
		return false
	}
	for _, re := range f.cfg.UserAgentPatterns {
		if re != nil && re.MatchString(ua) {
			return true
		}
	}
	return false
}

func (f *Filter) matchIP(addr string) bool {
	if len(f.cfg.RemoteCIDRs) == 0 || addr == "" {
		return false
	}
	ip := parseIP(addr)
	if ip == nil {
		return false
	}
	for _, cidr := range f.cfg.RemoteCIDRs {
		if cidr != nil && cidr.Contains(ip) {
			return true
		}
	}
	return false
}

func parseIP(input string) net.IP {
	input = strings.TrimSpace(input)
	if host, _, err := net.SplitHostPort(input); err == nil {
		input = host
	}
	return net.ParseIP(input)
}

func firstForwardedIP(values []string) string {
	for _, value := range values {
		for part := range strings.SplitSeq(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				return part
			}
		}
	}
	return ""
}
