package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
)

const (
	ChatTypeGroup = "group"
	ChatTypeP2P   = "p2p"
)

// Message represents a received Feishu message
type Message struct {
	ChatID        string
	MsgID         string
	MsgType       string // text, post, image, file, audio, media, sticker
	ChatType      string // p2p (private), group
	Content       string // Text content, mention placeholders replaced with names
	SenderID      string
	Mentions      []string // Mentioned open_ids
	MentionsBot   bool     // True if the bot was mentioned
	ParentID      string   // Quoted message id, if this is a reply
	QuotedFromBot bool     // True if the quoted message was sent by the bot
	HasMedia      bool
	CreateTime    int64 // Message creation time (milliseconds Unix timestamp from Feishu)
}

// MessageHandler is the callback for received messages
type MessageHandler func(msg *Message)

// Client is the Feishu API client
type Client struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
	wsCli     *larkws.Client
	onMessage MessageHandler
	ctx       context.Context
	cancel    context.CancelFunc
	botOpenID string
}

// NewClient creates a new Feishu client
func NewClient(appID, appSecret string) *Client {
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		larkCli:   lark.NewClient(appID, appSecret),
	}
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler MessageHandler) {
	c.onMessage = handler
}

// SetBotOpenID overrides the bot's open_id instead of fetching it at startup
func (c *Client) SetBotOpenID(openID string) {
	c.botOpenID = openID
}

// BotOpenID returns the bot's own open_id
func (c *Client) BotOpenID() string {
	return c.botOpenID
}

// Start connects to Feishu via WebSocket and starts listening for messages
func (c *Client) Start() error {
	c.ctx, c.cancel = context.WithCancel(context.Background())

	if c.botOpenID == "" {
		if err := c.fetchBotOpenID(c.ctx); err != nil {
			fmt.Printf("[Feishu] Warning: failed to fetch bot open_id: %v\n", err)
		}
	}

	// Must return quickly so the SDK can ACK, otherwise Feishu redelivers
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			go c.handleMessage(event)
			return nil
		})

	c.wsCli = larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	fmt.Println("[Feishu] Starting WebSocket connection...")

	// Start WebSocket (blocking)
	return c.wsCli.Start(c.ctx)
}

// Stop disconnects from Feishu
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// fetchBotOpenID fetches the bot's own open_id
func (c *Client) fetchBotOpenID(ctx context.Context) error {
	tokenBody, _ := json.Marshal(map[string]string{"app_id": c.appID, "app_secret": c.appSecret})
	tokenReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://open.feishu.cn/open-apis/auth/v3/tenant_access_token/internal",
		strings.NewReader(string(tokenBody)))
	if err != nil {
		return fmt.Errorf("build token request: %w", err)
	}
	tokenReq.Header.Set("Content-Type", "application/json")

	tokenResp, err := http.DefaultClient.Do(tokenReq)
	if err != nil {
		return fmt.Errorf("get token: %w", err)
	}
	defer tokenResp.Body.Close()

	var tokenResult struct {
		Code              int    `json:"code"`
		TenantAccessToken string `json:"tenant_access_token"`
	}
	if err := json.NewDecoder(tokenResp.Body).Decode(&tokenResult); err != nil {
		return fmt.Errorf("decode token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://open.feishu.cn/open-apis/bot/v3/info", nil)
	if err != nil {
		return fmt.Errorf("build bot info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tokenResult.TenantAccessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("get bot info: %w", err)
	}
	defer resp.Body.Close()

	var botResult struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Bot  struct {
			OpenID  string `json:"open_id"`
			AppName string `json:"app_name"`
		} `json:"bot"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&botResult); err != nil {
		return fmt.Errorf("decode bot info: %w", err)
	}

	if botResult.Code != 0 {
		return fmt.Errorf("API error: %s", botResult.Msg)
	}

	c.botOpenID = botResult.Bot.OpenID
	fmt.Printf("[Feishu] Bot open_id: %s (name=%s)\n", c.botOpenID, botResult.Bot.AppName)
	return nil
}

// handleMessage converts an incoming event and passes it to the handler
func (c *Client) handleMessage(event *larkim.P2MessageReceiveV1) {
	if event.Event == nil || event.Event.Message == nil {
		return
	}
	// Ignore messages sent by the bot itself
	if sender := event.Event.Sender; sender != nil && sender.SenderType != nil && *sender.SenderType == "app" {
		return
	}

	msg := c.convertMessage(event.Event)
	if msg == nil {
		return
	}

	if msg.ParentID != "" {
		msg.QuotedFromBot = c.isBotMessage(context.Background(), msg.ParentID)
	}

	if c.onMessage != nil {
		c.onMessage(msg)
	}
}

// convertMessage maps the SDK event to a Message, without network calls
func (c *Client) convertMessage(ev *larkim.P2MessageReceiveV1Data) *Message {
	rawMsg := ev.Message

	msg := &Message{
		ChatID:   deref(rawMsg.ChatId),
		MsgID:    deref(rawMsg.MessageId),
		MsgType:  deref(rawMsg.MessageType),
		ChatType: deref(rawMsg.ChatType),
		ParentID: deref(rawMsg.ParentId),
	}
	if msg.ChatID == "" || msg.MsgID == "" {
		return nil
	}

	// Parse create time (milliseconds Unix timestamp)
	if ts, err := strconv.ParseInt(deref(rawMsg.CreateTime), 10, 64); err == nil {
		msg.CreateTime = ts
	}

	if ev.Sender != nil && ev.Sender.SenderId != nil {
		msg.SenderID = deref(ev.Sender.SenderId.OpenId)
	}

	// Mentions, plus a map from mention key (@_user_1) to display name
	mentionMap := make(map[string]string)
	for _, mention := range rawMsg.Mentions {
		if mention.Id != nil && mention.Id.OpenId != nil {
			openID := *mention.Id.OpenId
			msg.Mentions = append(msg.Mentions, openID)
			if c.botOpenID != "" && openID == c.botOpenID {
				msg.MentionsBot = true
			}
		}
		if mention.Key != nil && mention.Name != nil {
			mentionMap[*mention.Key] = *mention.Name
		}
	}

	content := deref(rawMsg.Content)
	switch msg.MsgType {
	case "text":
		msg.Content = parseTextContent(content, mentionMap)
	case "post":
		text, hasImages := parsePostContent(content, mentionMap)
		msg.Content = text
		msg.HasMedia = hasImages
	case "image", "file", "audio", "media", "sticker":
		msg.HasMedia = true
	default:
		fmt.Printf("[Feishu] Unsupported message type: %s\n", msg.MsgType)
		return nil
	}

	return msg
}

// isBotMessage checks whether a message was sent by this bot
func (c *Client) isBotMessage(ctx context.Context, msgID string) bool {
	req := larkim.NewGetMessageReqBuilder().
		MessageId(msgID).
		Build()

	resp, err := c.larkCli.Im.Message.Get(ctx, req)
	if err != nil {
		fmt.Printf("[Feishu] Failed to get parent message %s: %v\n", msgID, err)
		return false
	}
	if !resp.Success() || resp.Data == nil || len(resp.Data.Items) == 0 {
		return false
	}

	// Bot senders are reported by app_id
	sender := resp.Data.Items[0].Sender
	return sender != nil && deref(sender.SenderType) == "app" && deref(sender.Id) == c.appID
}

// SendText sends a text message to a chat
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(larkim.MsgTypeText).
			Content(textContent(text)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send message error: %s", resp.Msg)
	}

	fmt.Printf("[Feishu] Message sent to %s\n", chatID)
	return nil
}

// ReplyText replies to a message, quoting it
func (c *Client) ReplyText(ctx context.Context, msgID, text string) error {
	req := larkim.NewReplyMessageReqBuilder().
		MessageId(msgID).
		Body(larkim.NewReplyMessageReqBodyBuilder().
			MsgType(larkim.MsgTypeText).
			Content(textContent(text)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Reply(ctx, req)
	if err != nil {
		return fmt.Errorf("reply message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("reply message error: %s", resp.Msg)
	}

	fmt.Printf("[Feishu] Reply sent to message %s\n", msgID)
	return nil
}

func textContent(text string) string {
	contentJSON, _ := json.Marshal(map[string]string{"text": text})
	return string(contentJSON)
}

// parseTextContent extracts text from a text message
func parseTextContent(content string, mentionMap map[string]string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}
	return replaceMentions(parsed.Text, mentionMap)
}

// parsePostContent extracts text from a rich text message and reports embedded images
func parsePostContent(content string, mentionMap map[string]string) (string, bool) {
	var parsed struct {
		Title   string `json:"title"`
		Content [][]struct {
			Tag      string `json:"tag"`
			Text     string `json:"text,omitempty"`
			ImageKey string `json:"image_key,omitempty"`
			UserID   string `json:"user_id,omitempty"`
		} `json:"content"`
	}

	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return "", false
	}

	var lines []string
	hasImages := false

	if parsed.Title != "" {
		lines = append(lines, parsed.Title)
	}

	for _, line := range parsed.Content {
		var parts []string
		for _, elem := range line {
			switch elem.Tag {
			case "text":
				if elem.Text != "" {
					parts = append(parts, elem.Text)
				}
			case "at":
				if name, ok := mentionMap[elem.UserID]; ok {
					parts = append(parts, "@"+name)
				} else if elem.UserID != "" {
					parts = append(parts, "@"+elem.UserID)
				}
			case "img", "media":
				hasImages = true
			}
		}
		if len(parts) > 0 {
			lines = append(lines, strings.Join(parts, ""))
		}
	}

	return replaceMentions(strings.Join(lines, "\n"), mentionMap), hasImages
}

// replaceMentions replaces mention placeholders (@_user_1) with @Name
func replaceMentions(text string, mentionMap map[string]string) string {
	for key, name := range mentionMap {
		text = strings.ReplaceAll(text, key, "@"+name)
	}
	return text
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
