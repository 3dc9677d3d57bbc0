package outbound

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/slack-go/slack"

	"github.com/droidagent/slack-gateway-go/internal/logger"
)

type fakeSlack struct {
	posted    []postCall
	ephemeral []postCall
	uploads   []slack.UploadFileV2Parameters

	uploadErr error
	permalink string
}

type postCall struct {
	channel string
	user    string
	opts    []slack.MsgOption
}

func (f *fakeSlack) PostMessageContext(_ context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	f.posted = append(f.posted, postCall{channel: channelID, opts: options})
	return channelID, "1700.1", nil
}

func (f *fakeSlack) PostEphemeralContext(_ context.Context, channelID, userID string, options ...slack.MsgOption) (string, error) {
	f.ephemeral = append(f.ephemeral, postCall{channel: channelID, user: userID, opts: options})
	return "1700.2", nil
}

func (f *fakeSlack) UploadFileV2Context(_ context.Context, params slack.UploadFileV2Parameters) (*slack.FileSummary, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.uploads = append(f.uploads, params)
	return &slack.FileSummary{ID: "F1"}, nil
}

func (f *fakeSlack) GetFileInfoContext(context.Context, string, int, int) (*slack.File, []slack.Comment, *slack.Paging, error) {
	return &slack.File{Permalink: f.permalink}, nil, nil, nil
}

func testPoster(api slackAPI) *SlackPoster {
	return &SlackPoster{api: api, log: logger.NewWithWriter("error", io.Discard)}
}

func TestPostBroadcast(t *testing.T) {
	t.Parallel()

	api := &fakeSlack{}
	p := testPoster(api)

	err := p.Post(context.Background(), &Response{ChannelID: "C1", Text: "done"})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if len(api.posted) != 1 || len(api.ephemeral) != 0 {
		t.Fatalf("posted=%d ephemeral=%d, want one broadcast", len(api.posted), len(api.ephemeral))
	}
	if api.posted[0].channel != "C1" {
		t.Errorf("channel = %q", api.posted[0].channel)
	}
}

func TestPostEphemeralVisibility(t *testing.T) {
	t.Parallel()

	api := &fakeSlack{}
	p := testPoster(api)

	err := p.Post(context.Background(), &Response{
		ChannelID:   "C1",
		Text:        "just for you",
		Ephemeral:   true,
		RecipientID: "U1",
	})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if len(api.ephemeral) != 1 || len(api.posted) != 0 {
		t.Fatalf("posted=%d ephemeral=%d, want one ephemeral", len(api.posted), len(api.ephemeral))
	}
	if api.ephemeral[0].user != "U1" {
		t.Errorf("recipient = %q", api.ephemeral[0].user)
	}
}

func TestPostEmptyResponseIsNoop(t *testing.T) {
	t.Parallel()

	api := &fakeSlack{}
	p := testPoster(api)

	for _, resp := range []*Response{
		nil,
		{},
		{ChannelID: "C1"},
		{Text: "no channel"},
	} {
		if err := p.Post(context.Background(), resp); err != nil {
			t.Errorf("Post(%+v): %v", resp, err)
		}
	}
	if len(api.posted)+len(api.ephemeral) != 0 {
		t.Errorf("empty responses must not reach the API")
	}
}

func TestPostUploadsFileAndLinksIt(t *testing.T) {
	t.Parallel()

	api := &fakeSlack{permalink: "https://files.example/F1"}
	p := testPoster(api)

	err := p.Post(context.Background(), &Response{ChannelID: "C1", Text: "report", FileContent: "raw output"})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if len(api.uploads) != 1 {
		t.Fatalf("uploads = %d, want 1", len(api.uploads))
	}
	if api.uploads[0].Content != "raw output" {
		t.Errorf("upload content = %q", api.uploads[0].Content)
	}
	if api.uploads[0].FileSize != len("raw output") {
		t.Errorf("upload size = %d", api.uploads[0].FileSize)
	}
	if len(api.posted) != 1 {
		t.Fatalf("message was not posted after upload")
	}
}

func TestPostUploadFailureDegrades(t *testing.T) {
	t.Parallel()

	api := &fakeSlack{uploadErr: errors.New("upload quota")}
	p := testPoster(api)

	err := p.Post(context.Background(), &Response{ChannelID: "C1", Text: "report", FileContent: "raw"})
	if err != nil {
		t.Fatalf("Post should not fail when only the upload fails: %v", err)
	}
	if len(api.posted) != 1 {
		t.Fatal("message must still be posted")
	}
}

func TestSplitBlocks(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		text string
		want int
	}{
		{"short", "hello", 1},
		{"exactly one block", strings.Repeat("a", blockTextLimit), 1},
		{"one over", strings.Repeat("a", blockTextLimit+1), 2},
		{"several", strings.Repeat("b", blockTextLimit*3+5), 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			blocks := SplitBlocks(tc.text)
			if len(blocks) != tc.want {
				t.Errorf("got %d blocks, want %d", len(blocks), tc.want)
			}
		})
	}
}

func TestSplitBlocksRuneSafe(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("é", blockTextLimit+10)
	blocks := SplitBlocks(text)
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	var rebuilt strings.Builder
	for _, b := range blocks {
		section, ok := b.(*slack.SectionBlock)
		if !ok {
			t.Fatalf("block type %T, want section", b)
		}
		rebuilt.WriteString(section.Text.Text)
	}
	if rebuilt.String() != text {
		t.Error("blocks do not reassemble to the original text")
	}
}
