package feishu

import (
	"testing"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
)

func strPtr(s string) *string {
	return &s
}

func newEvent(msgType, chatType, content string, mentions ...*larkim.MentionEvent) *larkim.P2MessageReceiveV1Data {
	return &larkim.P2MessageReceiveV1Data{
		Sender: &larkim.EventSender{
			SenderId:   &larkim.UserId{OpenId: strPtr("ou_sender")},
			SenderType: strPtr("user"),
		},
		Message: &larkim.EventMessage{
			MessageId:   strPtr("om_1"),
			ChatId:      strPtr("oc_1"),
			ChatType:    strPtr(chatType),
			MessageType: strPtr(msgType),
			Content:     strPtr(content),
			CreateTime:  strPtr("1700000000000"),
			Mentions:    mentions,
		},
	}
}

func mention(key, openID, name string) *larkim.MentionEvent {
	return &larkim.MentionEvent{
		Key:  strPtr(key),
		Id:   &larkim.UserId{OpenId: strPtr(openID)},
		Name: strPtr(name),
	}
}

func TestConvertMessage_TextWithBotMention(t *testing.T) {
	c := NewClient("cli_app", "secret")
	c.SetBotOpenID("ou_bot")

	ev := newEvent("text", ChatTypeGroup, `{"text":"@_user_1 apa kabar?"}`,
		mention("@_user_1", "ou_bot", "Flatpee"))

	msg := c.convertMessage(ev)
	if msg == nil {
		t.Fatal("Expected message")
	}
	if msg.Content != "@Flatpee apa kabar?" {
		t.Errorf("Expected mention replaced, got %q", msg.Content)
	}
	if !msg.MentionsBot {
		t.Error("Expected MentionsBot to be true")
	}
	if len(msg.Mentions) != 1 || msg.Mentions[0] != "ou_bot" {
		t.Errorf("Expected [ou_bot], got %v", msg.Mentions)
	}
	if msg.SenderID != "ou_sender" {
		t.Errorf("Expected sender ou_sender, got %s", msg.SenderID)
	}
	if msg.CreateTime != 1700000000000 {
		t.Errorf("Expected create time parsed, got %d", msg.CreateTime)
	}
	if msg.HasMedia {
		t.Error("Expected text message to have no media")
	}
}

func TestConvertMessage_OtherMention(t *testing.T) {
	c := NewClient("cli_app", "secret")
	c.SetBotOpenID("ou_bot")

	ev := newEvent("text", ChatTypeGroup, `{"text":"@_user_1 lunch?"}`,
		mention("@_user_1", "ou_alice", "Alice"))

	msg := c.convertMessage(ev)
	if msg.MentionsBot {
		t.Error("Expected MentionsBot to be false")
	}
}

func TestConvertMessage_Media(t *testing.T) {
	c := NewClient("cli_app", "secret")

	for _, msgType := range []string{"image", "file", "audio", "sticker"} {
		msg := c.convertMessage(newEvent(msgType, ChatTypeP2P, `{"image_key":"img_1"}`))
		if msg == nil {
			t.Fatalf("%s: expected message", msgType)
		}
		if !msg.HasMedia {
			t.Errorf("%s: expected HasMedia", msgType)
		}
	}
}

func TestConvertMessage_PostWithImage(t *testing.T) {
	c := NewClient("cli_app", "secret")

	content := `{"title":"Laporan","content":[[{"tag":"text","text":"lihat ini"},{"tag":"img","image_key":"img_1"}]]}`
	msg := c.convertMessage(newEvent("post", ChatTypeGroup, content))
	if msg == nil {
		t.Fatal("Expected message")
	}
	if msg.Content != "Laporan\nlihat ini" {
		t.Errorf("Unexpected content %q", msg.Content)
	}
	if !msg.HasMedia {
		t.Error("Expected post with image to have media")
	}
}

func TestConvertMessage_Unsupported(t *testing.T) {
	c := NewClient("cli_app", "secret")

	if msg := c.convertMessage(newEvent("system", ChatTypeGroup, `{}`)); msg != nil {
		t.Errorf("Expected nil for unsupported type, got %+v", msg)
	}
}

func TestConvertMessage_ReplyParent(t *testing.T) {
	c := NewClient("cli_app", "secret")

	ev := newEvent("text", ChatTypeGroup, `{"text":"iya"}`)
	ev.Message.ParentId = strPtr("om_parent")

	msg := c.convertMessage(ev)
	if msg.ParentID != "om_parent" {
		t.Errorf("Expected parent id, got %q", msg.ParentID)
	}
}

func TestParseTextContent_Invalid(t *testing.T) {
	if got := parseTextContent("not json", nil); got != "" {
		t.Errorf("Expected empty string, got %q", got)
	}
}
