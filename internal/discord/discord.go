package discord

import "context"

type VoiceStateEvent struct {
	GuildID         string
	UserID          string
	UserIsBot       bool
	BeforeChannelID string
	AfterChannelID  string
}

// ButtonEvent is delivered when a user presses one of the status message
// controls. Responses go through the provided callbacks so the domain
// layer never touches interaction tokens.
type ButtonEvent struct {
	GuildID           string
	ChannelID         string
	UserID            string
	CustomID          string
	RespondEphemeral  func(content string) error
	ShowSettingsModal func(defaults SettingsDefaults) error
}

type SettingsDefaults struct {
	FocusMinutes int
	BreakMinutes int
	Sound        bool
	Voice        bool
}

type SettingsModalEvent struct {
	GuildID          string
	UserID           string
	FocusRaw         string
	BreakRaw         string
	SoundRaw         string
	VoiceRaw         string
	RespondEphemeral func(content string) error
}

type MessageEvent struct {
	GuildID     string
	ChannelID   string
	UserID      string
	Username    string
	AvatarURL   string
	Content     string
	UserIsAdmin bool
	Reply       func(content string) error
	ReplyEmbed  func(embed Embed) error
}

type GuildJoinEvent struct {
	GuildID   string
	GuildName string
}

type ButtonStyle int

const (
	ButtonSuccess ButtonStyle = iota
	ButtonSecondary
	ButtonDanger
)

type Button struct {
	CustomID string
	Label    string
	Style    ButtonStyle
}

type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

type Embed struct {
	Title        string
	Description  string
	Color        int
	Fields       []EmbedField
	FooterText   string
	ThumbnailURL string
	Timestamp    bool
}

// StatusMessage is the full status artifact: text content, an embed
// showing the attached card image, and the interactive controls.
type StatusMessage struct {
	Content   string
	Embed     Embed
	ImageName string
	ImageBody []byte
	Buttons   []Button
}

type FileMessage struct {
	ChannelID string
	Content   string
	Filename  string
	FileBody  []byte
}

type VoiceParticipant struct {
	UserID string
	IsBot  bool
}

type MemberInfo struct {
	UserID      string
	DisplayName string
	AvatarURL   string
}

type Client interface {
	Connect(ctx context.Context) error
	Close() error
	Run() error
	RegisterVoiceStateUpdateHandler(handler func(VoiceStateEvent))
	RegisterButtonHandler(handler func(ButtonEvent))
	RegisterSettingsModalHandler(handler func(SettingsModalEvent))
	RegisterMessageHandler(handler func(MessageEvent))
	RegisterGuildJoinHandler(handler func(GuildJoinEvent))
	GetBotUserID() (string, error)
	SendStatusMessage(channelID string, msg StatusMessage) (string, error)
	EditStatusMessage(channelID, messageID string, msg StatusMessage) error
	DeleteMessage(channelID, messageID string) error
	SendChannelMessage(channelID, content string) error
	SendEmbedMessage(channelID string, embed Embed) error
	SendChannelMessageWithFile(msg FileMessage) error
	RenameChannel(channelID, name string) error
	ChannelName(channelID string) (string, error)
	GuildName(guildID string) (string, error)
	ListGuildIDs() ([]string, error)
	ResolveMember(guildID, userID string) (MemberInfo, error)
	GetUserVoiceChannelID(guildID, userID string) (string, error)
	ListVoiceChannelParticipants(guildID, channelID string) ([]VoiceParticipant, error)
	DisconnectMember(guildID, userID string) error
	FallbackTextChannel(guildID string) (string, error)
	JoinVoiceChannel(guildID, channelID string) (VoiceConnection, error)
}

// VoiceConnection is one live voice session. Play sends pre-encoded opus
// frames at the voice frame rate and returns when playback finishes or the
// context expires, whichever comes first.
type VoiceConnection interface {
	WaitReady(ctx context.Context) error
	Play(ctx context.Context, frames [][]byte) error
	Disconnect() error
}
