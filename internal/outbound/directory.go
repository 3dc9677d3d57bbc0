package outbound

import (
	"context"
	"sync"

	"github.com/slack-go/slack"

	"github.com/droidagent/slack-gateway-go/internal/logger"
)

type directoryAPI interface {
	GetConversationInfoContext(ctx context.Context, input *slack.GetConversationInfoInput) (*slack.Channel, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
}

// SlackDirectory resolves channel and user IDs to display names,
// caching results for the life of the process. Lookups are best
// effort: on API failure the empty string is returned and matchers
// fall back to the raw ID.
type SlackDirectory struct {
	api directoryAPI
	log *logger.Logger

	channels sync.Map // channelID -> name
	users    sync.Map // userID -> name
}

func NewSlackDirectory(botToken string, log *logger.Logger) *SlackDirectory {
	return &SlackDirectory{
		api: slack.New(botToken),
		log: log.WithModule("directory"),
	}
}

func (d *SlackDirectory) ChannelName(ctx context.Context, channelID string) string {
	if name, ok := d.channels.Load(channelID); ok {
		return name.(string)
	}
	ch, err := d.api.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{ChannelID: channelID})
	if err != nil {
		d.log.WithError(err).WithField("channel_id", channelID).Debug("channel lookup failed")
		return ""
	}
	d.channels.Store(channelID, ch.Name)
	return ch.Name
}

func (d *SlackDirectory) UserName(ctx context.Context, userID string) string {
	if name, ok := d.users.Load(userID); ok {
		return name.(string)
	}
	user, err := d.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		d.log.WithError(err).WithField("user_id", userID).Debug("user lookup failed")
		return ""
	}
	name := user.Profile.DisplayName
	if name == "" {
		name = user.RealName
	}
	if name == "" {
		name = user.Name
	}
	d.users.Store(userID, name)
	return name
}
