package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/pomora/pomora/internal/discord"
)

const settingsModalID = "settings_modal"

// A guild create event this long after the actual join is the gateway
// replaying known guilds at startup, not a real invite.
const guildJoinFreshness = time.Minute

type Client struct {
	session   *discordgo.Session
	token     string
	botUserID string
}

func NewClient(token string) discordpkg.Client {
	return &Client{
		token: token,
	}
}

func (c *Client) Connect(ctx context.Context) error {
	_ = ctx
	s, err := discordgo.New("Bot " + c.token)
	if err != nil {
		return err
	}
	c.session = s
	s.Identify.Intents = discordgo.MakeIntent(
		discordgo.IntentsGuilds |
			discordgo.IntentsGuildVoiceStates |
			discordgo.IntentsGuildMessages |
			discordgo.IntentMessageContent)
	s.State.TrackVoice = true
	s.State.TrackChannels = true
	if err := s.Open(); err != nil {
		return err
	}
	userID, err := c.GetBotUserID()
	if err != nil {
		return err
	}
	c.botUserID = userID
	return nil
}

func (c *Client) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

func (c *Client) Run() error {
	select {}
}

func (c *Client) GetBotUserID() (string, error) {
	if c.botUserID != "" {
		return c.botUserID, nil
	}
	if c.session == nil {
		return "", fmt.Errorf("discord session is not initialized")
	}
	if c.session.State != nil && c.session.State.User != nil && c.session.State.User.ID != "" {
		c.botUserID = c.session.State.User.ID
		return c.botUserID, nil
	}
	u, err := c.session.User("@me")
	if err != nil {
		return "", err
	}
	c.botUserID = u.ID
	return c.botUserID, nil
}

func (c *Client) RegisterVoiceStateUpdateHandler(handler func(discordpkg.VoiceStateEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
		if vs == nil {
			return
		}
		beforeChannelID := ""
		if vs.BeforeUpdate != nil {
			beforeChannelID = vs.BeforeUpdate.ChannelID
		}
		afterChannelID := vs.ChannelID
		if beforeChannelID == afterChannelID && beforeChannelID != "" {
			return
		}
		if vs.GuildID == "" || vs.UserID == "" {
			return
		}
		handler(discordpkg.VoiceStateEvent{
			GuildID:         vs.GuildID,
			UserID:          vs.UserID,
			UserIsBot:       c.resolveUserIsBot(vs.GuildID, vs.UserID, vs.VoiceState),
			BeforeChannelID: beforeChannelID,
			AfterChannelID:  afterChannelID,
		})
	})
}

func (c *Client) RegisterButtonHandler(handler func(discordpkg.ButtonEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		if ic == nil || ic.Type != discordgo.InteractionMessageComponent {
			return
		}
		data := ic.MessageComponentData()
		userID := interactionUserID(ic)
		if data.CustomID == "" || userID == "" {
			return
		}
		handler(discordpkg.ButtonEvent{
			GuildID:   ic.GuildID,
			ChannelID: ic.ChannelID,
			UserID:    userID,
			CustomID:  data.CustomID,
			RespondEphemeral: func(content string) error {
				return s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
					Type: discordgo.InteractionResponseChannelMessageWithSource,
					Data: &discordgo.InteractionResponseData{
						Content: content,
						Flags:   discordgo.MessageFlagsEphemeral,
					},
				})
			},
			ShowSettingsModal: func(defaults discordpkg.SettingsDefaults) error {
				return s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
					Type: discordgo.InteractionResponseModal,
					Data: &discordgo.InteractionResponseData{
						CustomID:   settingsModalID,
						Title:      "Session Settings",
						Components: settingsModalComponents(defaults),
					},
				})
			},
		})
	})
}

func (c *Client) RegisterSettingsModalHandler(handler func(discordpkg.SettingsModalEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		if ic == nil || ic.Type != discordgo.InteractionModalSubmit {
			return
		}
		data := ic.ModalSubmitData()
		if data.CustomID != settingsModalID {
			return
		}
		userID := interactionUserID(ic)
		if userID == "" {
			return
		}
		values := modalTextValues(data)
		handler(discordpkg.SettingsModalEvent{
			GuildID:  ic.GuildID,
			UserID:   userID,
			FocusRaw: values["focus_time"],
			BreakRaw: values["break_time"],
			SoundRaw: values["sound_toggle"],
			VoiceRaw: values["voice_toggle"],
			RespondEphemeral: func(content string) error {
				return s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
					Type: discordgo.InteractionResponseChannelMessageWithSource,
					Data: &discordgo.InteractionResponseData{
						Content: content,
						Flags:   discordgo.MessageFlagsEphemeral,
					},
				})
			},
		})
	})
}

func (c *Client) RegisterMessageHandler(handler func(discordpkg.MessageEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m == nil || m.Author == nil || m.Author.Bot || m.GuildID == "" {
			return
		}
		handler(discordpkg.MessageEvent{
			GuildID:     m.GuildID,
			ChannelID:   m.ChannelID,
			UserID:      m.Author.ID,
			Username:    preferredDiscordName(m.Author.GlobalName, m.Author.Username, m.Author.ID),
			AvatarURL:   m.Author.AvatarURL("128"),
			Content:     m.Content,
			UserIsAdmin: c.userIsAdmin(m.Author.ID, m.ChannelID),
			Reply: func(content string) error {
				_, err := s.ChannelMessageSendReply(m.ChannelID, content, m.Reference())
				return err
			},
			ReplyEmbed: func(embed discordpkg.Embed) error {
				_, err := s.ChannelMessageSendEmbedReply(m.ChannelID, buildEmbed(embed, ""), m.Reference())
				return err
			},
		})
	})
}

func (c *Client) RegisterGuildJoinHandler(handler func(discordpkg.GuildJoinEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, g *discordgo.GuildCreate) {
		if g == nil || g.Guild == nil {
			return
		}
		if g.JoinedAt.IsZero() || time.Since(g.JoinedAt) > guildJoinFreshness {
			return
		}
		handler(discordpkg.GuildJoinEvent{
			GuildID:   g.ID,
			GuildName: g.Name,
		})
	})
}

func (c *Client) SendStatusMessage(channelID string, msg discordpkg.StatusMessage) (string, error) {
	sent, err := c.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:    msg.Content,
		Embeds:     []*discordgo.MessageEmbed{buildEmbed(msg.Embed, msg.ImageName)},
		Files:      imageFiles(msg.ImageName, msg.ImageBody),
		Components: buildButtons(msg.Buttons),
	})
	if err != nil {
		return "", err
	}
	return sent.ID, nil
}

func (c *Client) EditStatusMessage(channelID, messageID string, msg discordpkg.StatusMessage) error {
	edit := discordgo.NewMessageEdit(channelID, messageID)
	edit.SetContent(msg.Content)
	edit.SetEmbed(buildEmbed(msg.Embed, msg.ImageName))
	components := buildButtons(msg.Buttons)
	edit.Components = &components
	if len(msg.ImageBody) > 0 {
		edit.Files = imageFiles(msg.ImageName, msg.ImageBody)
		edit.Attachments = &[]*discordgo.MessageAttachment{}
	}
	_, err := c.session.ChannelMessageEditComplex(edit)
	return err
}

func (c *Client) DeleteMessage(channelID, messageID string) error {
	return c.session.ChannelMessageDelete(channelID, messageID)
}

func (c *Client) SendChannelMessage(channelID, content string) error {
	_, err := c.session.ChannelMessageSend(channelID, content)
	return err
}

func (c *Client) SendEmbedMessage(channelID string, embed discordpkg.Embed) error {
	_, err := c.session.ChannelMessageSendEmbed(channelID, buildEmbed(embed, ""))
	return err
}

func (c *Client) SendChannelMessageWithFile(msg discordpkg.FileMessage) error {
	_, err := c.session.ChannelMessageSendComplex(msg.ChannelID, &discordgo.MessageSend{
		Content: msg.Content,
		Files: []*discordgo.File{
			{Name: msg.Filename, ContentType: "image/png", Reader: bytes.NewReader(msg.FileBody)},
		},
	})
	return err
}

func (c *Client) RenameChannel(channelID, name string) error {
	_, err := c.session.ChannelEdit(channelID, &discordgo.ChannelEdit{Name: name})
	return err
}

func (c *Client) ChannelName(channelID string) (string, error) {
	channel := c.resolveChannel(channelID)
	if channel == nil {
		return "", fmt.Errorf("channel %s could not be resolved", channelID)
	}
	return channel.Name, nil
}

func (c *Client) GuildName(guildID string) (string, error) {
	guild := c.resolveGuild(guildID)
	if guild == nil {
		return "", fmt.Errorf("guild %s could not be resolved", guildID)
	}
	return guild.Name, nil
}

func (c *Client) ListGuildIDs() ([]string, error) {
	if c.session == nil || c.session.State == nil {
		return nil, fmt.Errorf("discord session is not initialized")
	}
	guilds := c.session.State.Guilds
	ids := make([]string, 0, len(guilds))
	for _, g := range guilds {
		if g != nil && g.ID != "" {
			ids = append(ids, g.ID)
		}
	}
	return ids, nil
}

func (c *Client) ResolveMember(guildID, userID string) (discordpkg.MemberInfo, error) {
	info := discordpkg.MemberInfo{UserID: userID, DisplayName: userID}

	member := c.resolveGuildMember(guildID, userID)
	if member != nil {
		if member.Nick != "" {
			info.DisplayName = member.Nick
		}
		if member.User != nil {
			if info.DisplayName == userID {
				info.DisplayName = preferredDiscordName(member.User.GlobalName, member.User.Username, userID)
			}
			info.AvatarURL = member.User.AvatarURL("128")
		}
	}
	if info.DisplayName == userID {
		u, err := c.session.User(userID)
		if err == nil && u != nil {
			info.DisplayName = preferredDiscordName(u.GlobalName, u.Username, userID)
			info.AvatarURL = u.AvatarURL("128")
		}
	}
	return info, nil
}

func (c *Client) GetUserVoiceChannelID(guildID, userID string) (string, error) {
	if c.session == nil {
		return "", nil
	}
	if c.session.State != nil {
		vs, err := c.session.State.VoiceState(guildID, userID)
		if err == nil && vs != nil {
			return vs.ChannelID, nil
		}
		guild, err := c.session.State.Guild(guildID)
		if err == nil && guild != nil {
			for _, state := range guild.VoiceStates {
				if state != nil && state.UserID == userID {
					return state.ChannelID, nil
				}
			}
		}
	}

	// Cache may be cold right after bot startup; ask Discord API directly as fallback.
	vs, err := c.session.UserVoiceState(guildID, userID)
	if err != nil {
		if isRESTNotFound(err) {
			return "", nil
		}
		return "", err
	}
	if vs == nil {
		return "", nil
	}
	return vs.ChannelID, nil
}

func (c *Client) ListVoiceChannelParticipants(guildID, channelID string) ([]discordpkg.VoiceParticipant, error) {
	if c.session == nil || c.session.State == nil {
		return nil, nil
	}
	guild, err := c.session.State.Guild(guildID)
	if err != nil || guild == nil {
		return nil, nil
	}
	participants := make([]discordpkg.VoiceParticipant, 0)
	seen := make(map[string]struct{})
	for _, state := range guild.VoiceStates {
		if state == nil || state.ChannelID != channelID || state.UserID == "" {
			continue
		}
		if _, exists := seen[state.UserID]; exists {
			continue
		}
		seen[state.UserID] = struct{}{}
		participants = append(participants, discordpkg.VoiceParticipant{
			UserID: state.UserID,
			IsBot:  c.resolveUserIsBot(guildID, state.UserID, state),
		})
	}
	return participants, nil
}

func (c *Client) DisconnectMember(guildID, userID string) error {
	return c.session.GuildMemberMove(guildID, userID, nil)
}

// FallbackTextChannel picks the first text channel the bot can speak in,
// used when a guild never configured a report channel.
func (c *Client) FallbackTextChannel(guildID string) (string, error) {
	channels, err := c.guildChannels(guildID)
	if err != nil {
		return "", err
	}
	for _, channel := range channels {
		if channel == nil || channel.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		perms, err := c.session.State.UserChannelPermissions(c.botUserID, channel.ID)
		if err != nil {
			continue
		}
		if perms&discordgo.PermissionSendMessages != 0 {
			return channel.ID, nil
		}
	}
	return "", fmt.Errorf("no writable text channel in guild %s", guildID)
}

func (c *Client) JoinVoiceChannel(guildID, channelID string) (discordpkg.VoiceConnection, error) {
	vc, err := c.session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, err
	}
	return &voiceConnectionImpl{vc: vc}, nil
}

func (c *Client) guildChannels(guildID string) ([]*discordgo.Channel, error) {
	if c.session.State != nil {
		guild, err := c.session.State.Guild(guildID)
		if err == nil && guild != nil && len(guild.Channels) > 0 {
			return guild.Channels, nil
		}
	}
	return c.session.GuildChannels(guildID)
}

func (c *Client) userIsAdmin(userID, channelID string) bool {
	if c.session == nil || c.session.State == nil {
		return false
	}
	perms, err := c.session.State.UserChannelPermissions(userID, channelID)
	if err != nil {
		perms, err = c.session.UserChannelPermissions(userID, channelID)
		if err != nil {
			return false
		}
	}
	return perms&discordgo.PermissionAdministrator != 0
}

func (c *Client) resolveUserIsBot(guildID, userID string, state *discordgo.VoiceState) bool {
	if isBot, ok := botFlagFromVoiceState(state); ok {
		return isBot
	}
	if isBot, ok := c.botFlagFromSessionState(guildID, userID); ok {
		return isBot
	}
	return c.botFlagFromUserAPI(userID)
}

func botFlagFromVoiceState(state *discordgo.VoiceState) (bool, bool) {
	if state != nil && state.Member != nil && state.Member.User != nil {
		return state.Member.User.Bot, true
	}
	return false, false
}

func (c *Client) botFlagFromSessionState(guildID, userID string) (bool, bool) {
	if c.session == nil || c.session.State == nil {
		return false, false
	}
	if c.session.State.User != nil && c.session.State.User.ID == userID {
		return true, true
	}
	member, err := c.session.State.Member(guildID, userID)
	if err == nil && member != nil && member.User != nil {
		return member.User.Bot, true
	}
	return false, false
}

func (c *Client) botFlagFromUserAPI(userID string) bool {
	u, err := c.session.User(userID)
	if err != nil {
		return false
	}
	return u.Bot
}

func (c *Client) resolveGuild(guildID string) *discordgo.Guild {
	if c.session == nil {
		return nil
	}
	if c.session.State != nil {
		guild, err := c.session.State.Guild(guildID)
		if err == nil && guild != nil && guild.Name != "" {
			return guild
		}
	}
	guild, err := c.session.Guild(guildID)
	if err != nil || guild == nil {
		return nil
	}
	if guild.Name == "" {
		return nil
	}
	return guild
}

func (c *Client) resolveChannel(channelID string) *discordgo.Channel {
	if c.session == nil {
		return nil
	}
	if c.session.State != nil {
		channel, err := c.session.State.Channel(channelID)
		if err == nil && channel != nil && channel.Name != "" {
			return channel
		}
	}
	channel, err := c.session.Channel(channelID)
	if err != nil || channel == nil {
		return nil
	}
	if channel.Name == "" {
		return nil
	}
	return channel
}

func (c *Client) resolveGuildMember(guildID, userID string) *discordgo.Member {
	if c.session == nil {
		return nil
	}
	if c.session.State != nil {
		member, err := c.session.State.Member(guildID, userID)
		if err == nil && member != nil {
			return member
		}
	}
	member, err := c.session.GuildMember(guildID, userID)
	if err != nil {
		return nil
	}
	return member
}

func interactionUserID(ic *discordgo.InteractionCreate) string {
	if ic.Member != nil && ic.Member.User != nil {
		return ic.Member.User.ID
	}
	if ic.User != nil {
		return ic.User.ID
	}
	return ""
}

func preferredDiscordName(globalName, username, fallback string) string {
	if globalName != "" {
		return globalName
	}
	if username != "" {
		return username
	}
	return fallback
}

func isRESTNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Response == nil {
		return false
	}
	return restErr.Response.StatusCode == http.StatusNotFound
}

func buildEmbed(embed discordpkg.Embed, imageName string) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       embed.Title,
		Description: embed.Description,
		Color:       embed.Color,
	}
	for _, f := range embed.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	if embed.FooterText != "" {
		out.Footer = &discordgo.MessageEmbedFooter{Text: embed.FooterText}
	}
	if embed.ThumbnailURL != "" {
		out.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: embed.ThumbnailURL}
	}
	if embed.Timestamp {
		out.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if imageName != "" {
		out.Image = &discordgo.MessageEmbedImage{URL: "attachment://" + imageName}
	}
	return out
}

func imageFiles(name string, body []byte) []*discordgo.File {
	if name == "" || len(body) == 0 {
		return nil
	}
	return []*discordgo.File{
		{Name: name, ContentType: "image/png", Reader: bytes.NewReader(body)},
	}
}

func buildButtons(buttons []discordpkg.Button) []discordgo.MessageComponent {
	if len(buttons) == 0 {
		return nil
	}
	row := discordgo.ActionsRow{}
	for _, b := range buttons {
		row.Components = append(row.Components, discordgo.Button{
			Label:    b.Label,
			Style:    buttonStyle(b.Style),
			CustomID: b.CustomID,
		})
	}
	return []discordgo.MessageComponent{row}
}

func buttonStyle(style discordpkg.ButtonStyle) discordgo.ButtonStyle {
	switch style {
	case discordpkg.ButtonSuccess:
		return discordgo.SuccessButton
	case discordpkg.ButtonDanger:
		return discordgo.DangerButton
	default:
		return discordgo.SecondaryButton
	}
}

func settingsModalComponents(defaults discordpkg.SettingsDefaults) []discordgo.MessageComponent {
	required := true
	textRow := func(customID, label, value string) discordgo.MessageComponent {
		return discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.TextInput{
					CustomID: customID,
					Label:    label,
					Style:    discordgo.TextInputShort,
					Value:    value,
					Required: &required,
				},
			},
		}
	}
	return []discordgo.MessageComponent{
		textRow("focus_time", "Focus minutes", fmt.Sprintf("%d", defaults.FocusMinutes)),
		textRow("break_time", "Break minutes", fmt.Sprintf("%d", defaults.BreakMinutes)),
		textRow("sound_toggle", "Sound alerts (ON/OFF)", onOff(defaults.Sound)),
		textRow("voice_toggle", "Voice alerts (ON/OFF)", onOff(defaults.Voice)),
	}
}

func onOff(enabled bool) string {
	if enabled {
		return "ON"
	}
	return "OFF"
}

func modalTextValues(data discordgo.ModalSubmitInteractionData) map[string]string {
	values := make(map[string]string)
	for _, row := range data.Components {
		actionsRow, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, component := range actionsRow.Components {
			input, ok := component.(*discordgo.TextInput)
			if !ok {
				continue
			}
			values[input.CustomID] = strings.TrimSpace(input.Value)
		}
	}
	return values
}
