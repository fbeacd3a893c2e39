// Package commandtest provides an in-memory commands.Platform for tests.
package commandtest

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"

	"GuildBot/commands"
	"GuildBot/utils"
)

// Sent is one message recorded by the fake platform.
type Sent struct {
	ChannelID int64
	UserID    int64 // set for direct messages
	Text      string
}

// Platform is a fake chat service holding guild roles and member roles in
// memory. It is safe for concurrent use.
type Platform struct {
	mu      sync.Mutex
	nextID  int64
	roles   map[int64][]commands.Role           // guild -> roles
	members map[int64]map[int64]map[int64]bool // guild -> user -> role set
	sent    []Sent
	deleted []int64
}

func NewPlatform() *Platform {
	return &Platform{
		nextID:  1000,
		roles:   make(map[int64][]commands.Role),
		members: make(map[int64]map[int64]map[int64]bool),
	}
}

// AddRole creates a role in a guild.
func (p *Platform) AddRole(guildID int64, role commands.Role) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roles[guildID] = append(p.roles[guildID], role)
}

// DeleteRole removes a role from a guild and from all its members.
func (p *Platform) DeleteRole(guildID, roleID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roles[guildID] = slices.DeleteFunc(p.roles[guildID], func(r commands.Role) bool { return r.ID == roleID })
	for _, set := range p.members[guildID] {
		delete(set, roleID)
	}
}

// HasRole reports whether the member currently holds the role.
func (p *Platform) HasRole(guildID, userID, roleID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.members[guildID][userID][roleID]
}

// Sent returns every message sent so far.
func (p *Platform) Sent() []Sent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.sent)
}

// Texts returns the text of every message sent so far.
func (p *Platform) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.sent))
	for i, s := range p.sent {
		out[i] = s.Text
	}
	return out
}

// Last returns the text of the most recent message, or "".
func (p *Platform) Last() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.sent) == 0 {
		return ""
	}
	return p.sent[len(p.sent)-1].Text
}

// Reset forgets sent messages.
func (p *Platform) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = nil
	p.deleted = nil
}

func (p *Platform) Send(_ context.Context, channelID int64, text string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	p.sent = append(p.sent, Sent{ChannelID: channelID, Text: text})
	return p.nextID, nil
}

func (p *Platform) SendDirect(_ context.Context, userID int64, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, Sent{UserID: userID, Text: text})
	return nil
}

func (p *Platform) DeleteMessage(_ context.Context, _, messageID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, messageID)
	return nil
}

func (p *Platform) Role(_ context.Context, guildID, roleID int64) (commands.Role, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.roles[guildID] {
		if r.ID == roleID {
			return r, nil
		}
	}
	return commands.Role{}, commands.ErrUnknownRole
}

func (p *Platform) FindRole(_ context.Context, guildID int64, query string) (commands.Role, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id, err := utils.ParseRoleMention(query); err == nil {
		for _, r := range p.roles[guildID] {
			if r.ID == id {
				return r, nil
			}
		}
	}
	if id, err := strconv.ParseInt(query, 10, 64); err == nil {
		for _, r := range p.roles[guildID] {
			if r.ID == id {
				return r, nil
			}
		}
	}
	for _, r := range p.roles[guildID] {
		if r.Name == strings.TrimSpace(query) {
			return r, nil
		}
	}
	return commands.Role{}, commands.ErrUnknownRole
}

func (p *Platform) MemberRoles(_ context.Context, guildID, userID int64) ([]int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []int64
	for id, ok := range p.members[guildID][userID] {
		if ok {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (p *Platform) AddMemberRole(_ context.Context, guildID, userID, roleID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.members[guildID] == nil {
		p.members[guildID] = make(map[int64]map[int64]bool)
	}
	if p.members[guildID][userID] == nil {
		p.members[guildID][userID] = make(map[int64]bool)
	}
	p.members[guildID][userID][roleID] = true
	return nil
}

func (p *Platform) RemoveMemberRole(_ context.Context, guildID, userID, roleID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.members[guildID][userID], roleID)
	return nil
}

// GuildMessage builds a guild message from userID with the given content.
func GuildMessage(guildID, userID int64, content string) commands.Message {
	return commands.Message{
		ID:        1,
		ChannelID: 10,
		GuildID:   guildID,
		Author:    commands.User{ID: userID, Name: "user" + strconv.FormatInt(userID, 10)},
		Content:   content,
	}
}

// DirectMessage builds a direct message from userID.
func DirectMessage(userID int64, content string) commands.Message {
	return commands.Message{
		ID:        1,
		ChannelID: 20,
		Author:    commands.User{ID: userID, Name: "user" + strconv.FormatInt(userID, 10)},
		Content:   content,
	}
}
