package security

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseIP(t *testing.T, raw string) net.IP {
	t.Helper()
	ip := net.ParseIP(raw)
	require.NotNil(t, ip, raw)
	return ip
}

func TestValidateURLRejectsBadSchemes(t *testing.T) {
	assert.Error(t, ValidateURL("ftp://example.com/file"))
	assert.Error(t, ValidateURL("file:///etc/passwd"))
	assert.Error(t, ValidateURL("://not-a-url"))
}

func TestValidateURLRejectsMissingHost(t *testing.T) {
	assert.Error(t, ValidateURL("https:///path-only"))
}

func TestValidateURLRejectsLoopbackLiteral(t *testing.T) {
	assert.Error(t, ValidateURL("http://127.0.0.1:8080/admin"))
	assert.Error(t, ValidateURL("http://[::1]/admin"))
}

func TestValidateURLRejectsPrivateLiteral(t *testing.T) {
	assert.Error(t, ValidateURL("http://10.0.0.5/internal"))
	assert.Error(t, ValidateURL("http://192.168.1.1/router"))
	assert.Error(t, ValidateURL("http://169.254.169.254/latest/meta-data"))
}

func TestIsBlockedIPCoversRanges(t *testing.T) {
	blocked := []string{"127.0.0.1", "10.1.2.3", "172.16.0.1", "192.168.0.1", "169.254.169.254", "0.0.0.0", "::1"}
	for _, raw := range blocked {
		assert.True(t, isBlockedIP(mustParseIP(t, raw)), raw)
	}
	allowed := []string{"8.8.8.8", "1.1.1.1", "2606:4700:4700::1111"}
	for _, raw := range allowed {
		assert.False(t, isBlockedIP(mustParseIP(t, raw)), raw)
	}
}

func TestSafeHTTPClientRefusesLoopbackDial(t *testing.T) {
	client := SafeHTTPClient(2 * time.Second)
	_, err := client.Get("http://127.0.0.1:1/")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "disallowed")
}
