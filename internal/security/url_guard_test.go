package security

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestURLGuard_Client(t *testing.T) {
	guard := NewURLGuard()
	client := guard.Client(2*time.Second, 3*time.Second)
	if client == nil {
		t.Fatal("Client() は nil を返してはならない")
	}
	if client.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want %v", client.Timeout, 5*time.Second)
	}
	tr, ok := client.Transport.(*http.Transport)
	if !ok || client.Transport == http.DefaultTransport {
		t.Fatalf("Transport = %T, want safeurlの*http.Transport", client.Transport)
	}
	if tr.TLSHandshakeTimeout != 2*time.Second {
		t.Errorf("TLSHandshakeTimeout = %v, want %v", tr.TLSHandshakeTimeout, 2*time.Second)
	}
	if tr.ResponseHeaderTimeout != 3*time.Second {
		t.Errorf("ResponseHeaderTimeout = %v, want %v", tr.ResponseHeaderTimeout, 3*time.Second)
	}
	if tr.DialContext == nil {
		t.Error("DialContext が設定されているべき")
	}
}

// TestURLGuard_ClientBlocksLoopback はhttptestサーバー（127.0.0.1）への接続が拒否されることを検証する。
func TestURLGuard_ClientBlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewURLGuard().Client(time.Second, 4*time.Second)
	if _, err := client.Get(ts.URL); err == nil {
		t.Fatal("ループバックへのリクエストはエラーになるべき")
	}
}

func TestURLGuard_Check_Allowed(t *testing.T) {
	guard := NewURLGuard()

	for _, u := range []string{
		"https://example.com",
		"https://feeds.example.com/rss.xml",
		"http://blog.example.org/feed",
		"https://8.8.8.8/feed",
		"https://www.reddit.com/r/golang/.rss",
	} {
		t.Run(u, func(t *testing.T) {
			if err := guard.Check(u); err != nil {
				t.Errorf("Check(%q) = %v, want nil", u, err)
			}
		})
	}
}

func TestURLGuard_Check_Blocked(t *testing.T) {
	guard := NewURLGuard()

	tests := []struct {
		name string
		url  string
	}{
		{"プライベートIP 10.x", "http://10.0.0.1/feed"},
		{"プライベートIP 172.16.x", "http://172.16.5.4/"},
		{"プライベートIP 192.168.x", "http://192.168.1.1/"},
		{"ループバック", "http://127.0.0.1:8080/"},
		{"IPv6ループバック", "http://[::1]/"},
		{"IPv4射影ループバック", "http://[::ffff:127.0.0.1]/"},
		{"メタデータIP", "http://169.254.169.254/latest/meta-data/"},
		{"CGNAT", "http://100.64.0.1/"},
		{"ゼロアドレス", "http://0.0.0.0/"},
		{"localhost", "http://localhost/feed"},
		{"localhost末尾ドット", "http://localhost./feed"},
		{"サブドメインlocalhost", "http://app.localhost/"},
		{"GCPメタデータ", "http://metadata.google.internal/"},
		{"ftpスキーム", "ftp://example.com/feed"},
		{"fileスキーム", "file:///etc/passwd"},
		{"空文字列", ""},
		{"ホストなし", "https:///feed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.Check(tt.url)
			if err == nil {
				t.Fatalf("Check(%q) = nil, want error", tt.url)
			}
			if !errors.Is(err, ErrBlockedDestination) {
				t.Errorf("Check(%q) = %v, want ErrBlockedDestination", tt.url, err)
			}
		})
	}
}

func TestURLGuard_Check_Unparseable(t *testing.T) {
	if err := NewURLGuard().Check("http://[::1"); err == nil {
		t.Error("解析できないURLはエラーになるべき")
	}
}
