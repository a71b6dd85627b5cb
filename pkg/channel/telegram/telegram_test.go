package telegram

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/mymmrac/telego"

	"coralrelay/pkg/bus"
	"coralrelay/pkg/config"
)

func TestNewAdapterRequiresToken(t *testing.T) {
	if _, err := NewAdapter(config.TelegramConfig{Token: "  "}, nil); err == nil {
		t.Fatal("expected error without token")
	}
}

func TestAllowFromSet(t *testing.T) {
	allowed := allowFromSet([]string{" 123 ", "", "456", "123"})
	if len(allowed) != 2 {
		t.Fatalf("allowFromSet len = %d, want 2", len(allowed))
	}
	if _, ok := allowed["123"]; !ok {
		t.Fatal("allowFromSet missing 123")
	}
	if got := allowFromSet([]string{" "}); got != nil {
		t.Fatalf("allowFromSet blanks = %v, want nil", got)
	}
}

func TestInboundFromUpdate(t *testing.T) {
	adapter := &Adapter{allowFrom: map[string]struct{}{"1": {}}, log: slog.New(slog.DiscardHandler)}

	tests := []struct {
		name   string
		update telego.Update
		wantOK bool
	}{
		{
			name:   "allowed text",
			update: telego.Update{UpdateID: 9, Message: &telego.Message{Text: " /agents ", From: &telego.User{ID: 1}, Chat: telego.Chat{ID: 77}}},
			wantOK: true,
		},
		{
			name:   "denied sender",
			update: telego.Update{Message: &telego.Message{Text: "/agents", From: &telego.User{ID: 2}, Chat: telego.Chat{ID: 77}}},
		},
		{
			name:   "no text",
			update: telego.Update{Message: &telego.Message{From: &telego.User{ID: 1}, Chat: telego.Chat{ID: 77}}},
		},
		{name: "no message", update: telego.Update{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inbound, ok := adapter.inboundFromUpdate(tt.update)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if inbound.Content != "/agents" || inbound.ChatID != "77" || inbound.SenderID != "1" {
				t.Fatalf("inbound = %+v", inbound)
			}
			if inbound.Metadata["update_id"] != "9" {
				t.Fatalf("metadata = %v", inbound.Metadata)
			}
		})
	}
}

func TestReplyText(t *testing.T) {
	if got := replyText(bus.OutboundMessage{Content: " ok ", Error: "boom"}); got != "ok" {
		t.Fatalf("replyText = %q, want content", got)
	}
	if got := replyText(bus.OutboundMessage{Error: "boom"}); got != "boom" {
		t.Fatalf("replyText = %q, want error", got)
	}
}

func TestPreviewText(t *testing.T) {
	if got := previewText(" hello "); got != "hello" {
		t.Fatalf("previewText short = %q, want %q", got, "hello")
	}

	got := previewText(strings.Repeat("a", messagePreviewLimit+20))
	if len(got) != messagePreviewLimit+3 || !strings.HasSuffix(got, "...") {
		t.Fatalf("previewText long = %q", got)
	}
}
