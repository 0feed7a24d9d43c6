package safety

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	addrs map[string][]net.IPAddr
}

func (f *fakeResolver) LookupIPAddr(_ context.Context, host string) ([]net.IPAddr, error) {
	return f.addrs[host], nil
}

func TestValidateAndResolveURL_DirectIP(t *testing.T) {
	ctx := context.Background()

	t.Run("allows public http", func(t *testing.T) {
		_, err := validateAndResolveWith(ctx, "http://1.1.1.1/path", &fakeResolver{})
		require.NoError(t, err)
	})

	t.Run("blocks ftp scheme", func(t *testing.T) {
		_, err := validateAndResolveWith(ctx, "ftp://1.1.1.1", &fakeResolver{})
		assert.Error(t, err)
	})

	t.Run("blocks loopback", func(t *testing.T) {
		_, err := validateAndResolveWith(ctx, "http://127.0.0.1/admin", &fakeResolver{})
		assert.Error(t, err)
	})

	t.Run("blocks private 10/8", func(t *testing.T) {
		_, err := validateAndResolveWith(ctx, "http://10.0.0.1", &fakeResolver{})
		assert.Error(t, err)
	})

	t.Run("blocks private 172.16/12", func(t *testing.T) {
		_, err := validateAndResolveWith(ctx, "http://172.16.0.1", &fakeResolver{})
		assert.Error(t, err)
	})

	t.Run("blocks private 192.168/16", func(t *testing.T) {
		_, err := validateAndResolveWith(ctx, "http://192.168.1.1", &fakeResolver{})
		assert.Error(t, err)
	})

	t.Run("blocks link-local metadata endpoint", func(t *testing.T) {
		_, err := validateAndResolveWith(ctx, "http://169.254.169.254/latest/meta-data/", &fakeResolver{})
		assert.Error(t, err)
	})

	t.Run("blocks zero address", func(t *testing.T) {
		_, err := validateAndResolveWith(ctx, "http://0.0.0.0", &fakeResolver{})
		assert.Error(t, err)
	})

	t.Run("blocks ipv6 loopback", func(t *testing.T) {
		_, err := validateAndResolveWith(ctx, "http://[::1]:8080", &fakeResolver{})
		assert.Error(t, err)
	})

	t.Run("blocks ipv6 unspecified", func(t *testing.T) {
		_, err := validateAndResolveWith(ctx, "http://[::]:8080", &fakeResolver{})
		assert.Error(t, err)
	})
}

func TestValidateAndResolveURL_Domain(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves and returns public addrs", func(t *testing.T) {
		resolver := &fakeResolver{addrs: map[string][]net.IPAddr{
			"example.com": {{IP: net.ParseIP("93.184.216.34")}},
		}}
		resolved, err := validateAndResolveWith(ctx, "https://example.com", resolver)
		require.NoError(t, err)
		assert.Equal(t, "example.com", resolved.Host)
		assert.NotEmpty(t, resolved.Addrs)
	})

	t.Run("blocks domain resolving to private ip (rebinding)", func(t *testing.T) {
		resolver := &fakeResolver{addrs: map[string][]net.IPAddr{
			"evil.example": {{IP: net.ParseIP("192.168.1.1")}},
		}}
		_, err := validateAndResolveWith(ctx, "http://evil.example", resolver)
		assert.Error(t, err)
	})

	t.Run("blocks domain with no resolved addresses", func(t *testing.T) {
		resolver := &fakeResolver{addrs: map[string][]net.IPAddr{}}
		_, err := validateAndResolveWith(ctx, "http://nowhere.example", resolver)
		assert.Error(t, err)
	})
}
