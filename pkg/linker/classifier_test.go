package linker_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/devicelink/pkg/linker"
	"github.com/dmitrymomot/devicelink/pkg/protocol"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		info protocol.CloseInfo
		want linker.Outcome
	}{
		{
			name: "logged out is terminal with purge",
			info: protocol.CloseInfo{Code: protocol.CodeLoggedOut, Reason: "device unlinked"},
			want: linker.OutcomeLoggedOut,
		},
		{
			name: "bad session is terminal without purge",
			info: protocol.CloseInfo{Code: protocol.CodeBadSession},
			want: linker.OutcomeError,
		},
		{
			name: "no code at all is unclassifiable",
			info: protocol.CloseInfo{Err: errors.New("panic in client")},
			want: linker.OutcomeError,
		},
		{
			name: "restart required reconnects",
			info: protocol.CloseInfo{Code: protocol.CodeRestartRequired},
			want: linker.OutcomeRetry,
		},
		{
			name: "connection lost reconnects",
			info: protocol.CloseInfo{Code: protocol.CodeConnectionLost, Reason: "network"},
			want: linker.OutcomeRetry,
		},
		{
			name: "connection closed reconnects",
			info: protocol.CloseInfo{Code: protocol.CodeConnectionClosed},
			want: linker.OutcomeRetry,
		},
		{
			name: "connection replaced reconnects",
			info: protocol.CloseInfo{Code: protocol.CodeConnectionReplaced},
			want: linker.OutcomeRetry,
		},
		{
			name: "unknown nonzero code reconnects",
			info: protocol.CloseInfo{Code: 599},
			want: linker.OutcomeRetry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, linker.Classify(tt.info))
			// Pure function: repeated classification of the same cause never
			// changes its mind.
			assert.Equal(t, tt.want, linker.Classify(tt.info))
		})
	}
}
