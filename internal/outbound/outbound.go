// Package outbound delivers normalized gateway responses to Slack.
package outbound

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/droidagent/slack-gateway-go/internal/logger"
)

// Section blocks are split at this many characters. Slack caps section
// text at 3000; staying well under leaves room for the file permalink
// suffix.
const blockTextLimit = 2000

// Response is what the router hands the poster after normalizing a
// handler result. A zero-value response posts nothing.
type Response struct {
	ChannelID   string
	ThreadTS    string
	Text        string
	FileContent string

	// Ephemeral posts only to RecipientID instead of the channel.
	Ephemeral   bool
	RecipientID string
}

// Empty reports whether there is nothing to deliver.
func (r *Response) Empty() bool {
	return r == nil || (r.Text == "" && r.FileContent == "") || r.ChannelID == ""
}

// Poster is the response sink the router writes to. The router never
// touches the Slack API directly.
type Poster interface {
	Post(ctx context.Context, resp *Response) error
}

// slackAPI is the slice of the Slack client the poster uses.
type slackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	PostEphemeralContext(ctx context.Context, channelID, userID string, options ...slack.MsgOption) (string, error)
	UploadFileV2Context(ctx context.Context, params slack.UploadFileV2Parameters) (*slack.FileSummary, error)
	GetFileInfoContext(ctx context.Context, fileID string, count, page int) (*slack.File, []slack.Comment, *slack.Paging, error)
}

// SlackPoster posts responses through the Slack Web API.
type SlackPoster struct {
	api slackAPI
	log *logger.Logger
}

func NewSlackPoster(botToken string, log *logger.Logger) *SlackPoster {
	return &SlackPoster{
		api: slack.New(botToken),
		log: log.WithModule("outbound"),
	}
}

// Post delivers a response, uploading any attached file first and
// linking it from the message text.
func (p *SlackPoster) Post(ctx context.Context, resp *Response) error {
	if resp.Empty() {
		return nil
	}

	text := resp.Text
	if resp.FileContent != "" {
		text = p.attachFile(ctx, text, resp.FileContent)
	}

	opts := []slack.MsgOption{
		slack.MsgOptionBlocks(SplitBlocks(text)...),
		slack.MsgOptionText(text, false),
	}
	if resp.ThreadTS != "" {
		opts = append(opts, slack.MsgOptionTS(resp.ThreadTS))
	}

	if resp.Ephemeral && resp.RecipientID != "" {
		if _, err := p.api.PostEphemeralContext(ctx, resp.ChannelID, resp.RecipientID, opts...); err != nil {
			return fmt.Errorf("post ephemeral to %s: %w", resp.ChannelID, err)
		}
		return nil
	}

	if _, _, err := p.api.PostMessageContext(ctx, resp.ChannelID, opts...); err != nil {
		return fmt.Errorf("post message to %s: %w", resp.ChannelID, err)
	}
	return nil
}

// attachFile uploads content as a text snippet and appends its
// permalink to the message. Upload failures degrade to a notice rather
// than dropping the whole response.
func (p *SlackPoster) attachFile(ctx context.Context, text, content string) string {
	summary, err := p.api.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		Title:    "Gateway Tool Result",
		Filename: "gateway_tool_result.txt",
		Content:  content,
		FileSize: len(content),
	})
	if err != nil {
		p.log.WithError(err).Error("file upload failed")
		return text + "\n\nError uploading file."
	}

	file, _, _, err := p.api.GetFileInfoContext(ctx, summary.ID, 0, 0)
	if err != nil || file.Permalink == "" {
		p.log.WithError(err).WithField("file_id", summary.ID).Warn("no permalink for uploaded file")
		return text
	}
	return text + fmt.Sprintf("\n\n<%s|Tool Results>", file.Permalink)
}

// SplitBlocks chunks text into mrkdwn section blocks, splitting on
// rune boundaries.
func SplitBlocks(text string) []slack.Block {
	runes := []rune(text)
	blocks := make([]slack.Block, 0, len(runes)/blockTextLimit+1)
	for start := 0; start < len(runes); start += blockTextLimit {
		end := start + blockTextLimit
		if end > len(runes) {
			end = len(runes)
		}
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, string(runes[start:end]), false, false),
			nil, nil,
		))
	}
	return blocks
}
