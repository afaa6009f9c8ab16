package redisclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantAddrs []string
		wantDB    int
		wantPass  string
		wantErr   bool
	}{
		{name: "single url", raw: "redis://:secret@localhost:6379/2", wantAddrs: []string{"localhost:6379"}, wantDB: 2, wantPass: "secret"},
		{name: "plain addresses", raw: "a:6379, b:6379", wantAddrs: []string{"a:6379", "b:6379"}},
		{name: "mixed", raw: "redis://a:6379/0,b:6379", wantAddrs: []string{"a:6379", "b:6379"}},
		{name: "empty", raw: " , ", wantErr: true},
		{name: "bad scheme", raw: "http://a:6379", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := ParseOptions(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAddrs, opts.Addrs)
			assert.Equal(t, tt.wantDB, opts.DB)
			assert.Equal(t, tt.wantPass, opts.Password)
		})
	}
}
