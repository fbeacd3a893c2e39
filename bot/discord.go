package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"

	"GuildBot/commands"
	"GuildBot/utils"
)

// discordPlatform implements commands.Platform over a discordgo session.
// Lookups go to the state cache first and fall back to the REST API.
type discordPlatform struct {
	s *discordgo.Session
}

func newDiscordPlatform(s *discordgo.Session) *discordPlatform {
	return &discordPlatform{s: s}
}

func (p *discordPlatform) Send(ctx context.Context, channelID int64, text string) (int64, error) {
	msg, err := p.s.ChannelMessageSend(utils.FormatSnowflake(channelID), text, discordgo.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}
	return utils.ParseSnowflake(msg.ID)
}

func (p *discordPlatform) SendDirect(ctx context.Context, userID int64, text string) error {
	ch, err := p.s.UserChannelCreate(utils.FormatSnowflake(userID), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open direct channel: %w", err)
	}
	if _, err := p.s.ChannelMessageSend(ch.ID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send direct message: %w", err)
	}
	return nil
}

func (p *discordPlatform) DeleteMessage(ctx context.Context, channelID, messageID int64) error {
	return p.s.ChannelMessageDelete(utils.FormatSnowflake(channelID), utils.FormatSnowflake(messageID), discordgo.WithContext(ctx))
}

func (p *discordPlatform) Role(ctx context.Context, guildID, roleID int64) (commands.Role, error) {
	roles, err := p.roles(ctx, guildID)
	if err != nil {
		return commands.Role{}, err
	}
	id := utils.FormatSnowflake(roleID)
	for _, r := range roles {
		if r.ID == id {
			return toRole(r), nil
		}
	}
	return commands.Role{}, commands.ErrUnknownRole
}

// FindRole accepts a role mention, a raw id or an exact role name.
func (p *discordPlatform) FindRole(ctx context.Context, guildID int64, query string) (commands.Role, error) {
	query = strings.TrimSpace(query)
	if id, err := utils.ParseRoleMention(query); err == nil {
		return p.Role(ctx, guildID, id)
	}
	if id, err := utils.ParseSnowflake(query); err == nil && id != 0 {
		if r, err := p.Role(ctx, guildID, id); err == nil {
			return r, nil
		}
	}

	roles, err := p.roles(ctx, guildID)
	if err != nil {
		return commands.Role{}, err
	}
	for _, r := range roles {
		if r.Name == query {
			return toRole(r), nil
		}
	}
	return commands.Role{}, commands.ErrUnknownRole
}

func (p *discordPlatform) MemberRoles(ctx context.Context, guildID, userID int64) ([]int64, error) {
	gid, uid := utils.FormatSnowflake(guildID), utils.FormatSnowflake(userID)
	member, err := p.s.State.Member(gid, uid)
	if err != nil {
		member, err = p.s.GuildMember(gid, uid, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("get member: %w", err)
		}
	}
	out := make([]int64, 0, len(member.Roles))
	for _, r := range member.Roles {
		id, err := utils.ParseSnowflake(r)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

func (p *discordPlatform) AddMemberRole(ctx context.Context, guildID, userID, roleID int64) error {
	err := p.s.GuildMemberRoleAdd(utils.FormatSnowflake(guildID), utils.FormatSnowflake(userID), utils.FormatSnowflake(roleID), discordgo.WithContext(ctx))
	return roleError(err)
}

func (p *discordPlatform) RemoveMemberRole(ctx context.Context, guildID, userID, roleID int64) error {
	err := p.s.GuildMemberRoleRemove(utils.FormatSnowflake(guildID), utils.FormatSnowflake(userID), utils.FormatSnowflake(roleID), discordgo.WithContext(ctx))
	return roleError(err)
}

func (p *discordPlatform) roles(ctx context.Context, guildID int64) ([]*discordgo.Role, error) {
	gid := utils.FormatSnowflake(guildID)
	if g, err := p.s.State.Guild(gid); err == nil && len(g.Roles) > 0 {
		return g.Roles, nil
	}
	roles, err := p.s.GuildRoles(gid, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("get guild roles: %w", err)
	}
	return roles, nil
}

// permissions returns the member's permission bits in the channel.
func (p *discordPlatform) permissions(userID, channelID string) int64 {
	perms, err := p.s.State.UserChannelPermissions(userID, channelID)
	if err != nil {
		perms, err = p.s.UserChannelPermissions(userID, channelID)
		if err != nil {
			return 0
		}
	}
	return perms
}

func toRole(r *discordgo.Role) commands.Role {
	id, _ := utils.ParseSnowflake(r.ID)
	return commands.Role{ID: id, Name: r.Name}
}

func roleError(err error) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) {
		if rest.Message != nil && rest.Message.Code == discordgo.ErrCodeUnknownRole {
			return commands.ErrUnknownRole
		}
		if rest.Response != nil && rest.Response.StatusCode == http.StatusForbidden {
			return commands.Reply(err, "I don't have permission to manage that role.")
		}
	}
	return err
}
