// Package security は外部URLへのアクセス制御と、ユーザー由来テキストの無害化を提供する。
package security

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// ErrBlockedDestination はアクセスが禁止された宛先を示す。
var ErrBlockedDestination = errors.New("blocked destination")

// URLGuard は外部フィード取得時の宛先制御を行う。
type URLGuard interface {
	// Check はURLを静的に検証する。DNS解決は行わない。
	Check(rawURL string) error
	// Client は接続時に解決後のIPアドレスも検証するHTTPクライアントを返す。
	// connectは接続とTLSハンドシェイク、readはレスポンスヘッダー受信までの上限。
	Client(connect, read time.Duration) *http.Client
}

var (
	guardSchemes = []string{"http", "https"}

	// 内部ネットワーク、ループバック、リンクローカル（メタデータIP含む）、CGNAT、マルチキャスト
	guardPrefixes = mustPrefixes(
		"0.0.0.0/8",
		"10.0.0.0/8",
		"100.64.0.0/10",
		"127.0.0.0/8",
		"169.254.0.0/16",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"224.0.0.0/4",
		"::/128",
		"::1/128",
		"fc00::/7",
		"fe80::/10",
		"ff00::/8",
	)

	guardHosts = map[string]struct{}{
		"localhost":                {},
		"metadata.google.internal": {},
	}
)

func mustPrefixes(cidrs ...string) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(cidrs))
	for _, c := range cidrs {
		out = append(out, netip.MustParsePrefix(c))
	}
	return out
}

type urlGuard struct{}

// NewURLGuard はURLGuardを生成する。
func NewURLGuard() URLGuard {
	return &urlGuard{}
}

// Client はsafeurlでラップしたクライアントを返す。
// 接続先ポートは80/443に限定される。全体のタイムアウトはconnect+read。
func (g *urlGuard) Client(connect, read time.Duration) *http.Client {
	cfg := safeurl.GetConfigBuilder().
		SetTimeout(connect + read).
		SetAllowedSchemes(guardSchemes...).
		SetAllowedPorts(80, 443).
		Build()
	client := safeurl.Client(cfg).Client

	// safeurlはDialerのControlフックで宛先を検証するため、DialContextは差し替えずに包む
	if tr, ok := client.Transport.(*http.Transport); ok {
		tr.TLSHandshakeTimeout = connect
		tr.ResponseHeaderTimeout = read
		if dial := tr.DialContext; dial != nil && connect > 0 {
			tr.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				ctx, cancel := context.WithTimeout(ctx, connect)
				defer cancel()
				return dial(ctx, network, addr)
			}
		}
	}
	return client
}

func (g *urlGuard) Check(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return fmt.Errorf("%w: empty URL", ErrBlockedDestination)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("URLの解析に失敗しました: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrBlockedDestination, u.Scheme)
	}

	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		return fmt.Errorf("%w: empty host", ErrBlockedDestination)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if isGuardedAddr(addr) {
			return fmt.Errorf("%w: address %s", ErrBlockedDestination, addr)
		}
		return nil
	}

	if _, ok := guardHosts[host]; ok || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("%w: host %s", ErrBlockedDestination, host)
	}
	return nil
}

func isGuardedAddr(addr netip.Addr) bool {
	// ::ffff:127.0.0.1 のようなIPv4射影アドレスはIPv4として判定する
	addr = addr.Unmap()
	for _, p := range guardPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
