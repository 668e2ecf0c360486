package tui

import (
	"fmt"
	"strings"
	"time"

	"faqbot/internal/faq"

	"github.com/charmbracelet/bubbles/viewport"
)

// Bubble roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatBubble represents a single chat message
type ChatBubble struct {
	Role      string
	Content   string
	Kind      string   // response kind for assistant bubbles
	Score     *float64 // set for matched answers
	Timestamp time.Time
}

// ChatViewModel manages the transcript viewport
type ChatViewModel struct {
	Messages      []ChatBubble
	Viewport      viewport.Model
	Width         int
	Height        int
	Styles        Styles
	AssistantName string
}

// NewChatViewModel creates a new chat view
func NewChatViewModel(styles Styles, assistantName string) ChatViewModel {
	vp := viewport.New(80, 20)
	vp.SetContent("")
	if assistantName == "" {
		assistantName = "Assistant"
	}
	return ChatViewModel{
		Viewport:      vp,
		Styles:        styles,
		AssistantName: assistantName,
	}
}

// SetSize updates the viewport dimensions
func (c *ChatViewModel) SetSize(width, height int) {
	c.Width = width
	c.Height = height
	c.Viewport.Width = width
	c.Viewport.Height = height
	c.refreshContent()
}

// AddMessage appends a user or system message.
func (c *ChatViewModel) AddMessage(role, content string) {
	c.append(ChatBubble{Role: role, Content: content, Timestamp: time.Now()})
}

// AddResponse appends an assistant answer.
func (c *ChatViewModel) AddResponse(resp faq.Response) {
	c.append(ChatBubble{
		Role:      RoleAssistant,
		Content:   resp.Answer,
		Kind:      resp.Kind,
		Score:     resp.Score,
		Timestamp: time.Now(),
	})
}

func (c *ChatViewModel) append(b ChatBubble) {
	c.Messages = append(c.Messages, b)
	c.refreshContent()
	c.Viewport.GotoBottom()
}

func (c *ChatViewModel) refreshContent() {
	c.Viewport.SetContent(c.render())
}

func (c *ChatViewModel) render() string {
	width := c.Width - 6
	if width < 20 {
		width = 20
	}

	var sb strings.Builder
	for i, m := range c.Messages {
		if i > 0 {
			sb.WriteString("\n")
		}
		stamp := c.Styles.Muted.Render(m.Timestamp.Format("15:04"))
		switch m.Role {
		case RoleUser:
			sb.WriteString(c.Styles.UserLabel.Render("You") + " " + stamp + "\n")
			sb.WriteString(c.Styles.UserBubble.Width(width).Render(m.Content))
		case RoleAssistant:
			sb.WriteString(c.Styles.AssistantLabel.Render(c.AssistantName) + " " + stamp)
			if badge := c.scoreBadge(m); badge != "" {
				sb.WriteString("  " + badge)
			}
			sb.WriteString("\n")
			sb.WriteString(c.Styles.AssistantBubble.Width(width).Render(m.Content))
		default:
			sb.WriteString(c.Styles.SystemBubble.Width(width).Render(m.Content))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (c *ChatViewModel) scoreBadge(m ChatBubble) string {
	if m.Score == nil {
		if m.Kind != "" && m.Kind != faq.KindMatched {
			return c.Styles.Muted.Render(m.Kind)
		}
		return ""
	}
	label := fmt.Sprintf("score %.2f", *m.Score)
	if *m.Score >= 0.5 {
		return c.Styles.ScoreHigh.Render(label)
	}
	return c.Styles.ScoreLow.Render(label)
}
